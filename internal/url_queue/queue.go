package urlqueue

import (
	"bufio"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadLines fills a queue from a line-delimited list. Lines are trimmed and
// blank lines skipped.
func ReadLines(source string, r io.Reader) (*URLQueue, error) {
	q := NewURLQueue(source)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		q.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "read list %s", source)
	}
	return q, nil
}
