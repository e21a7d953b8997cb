package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindConfiguration ErrorKind = "configuration"
	KindFetch         ErrorKind = "fetch"
	KindExtraction    ErrorKind = "extraction"
	KindSink          ErrorKind = "sink"
	KindCancelled     ErrorKind = "cancelled"
)

var (
	// ErrPaginationExhausted ends a seed's page sequence. Not a failure.
	ErrPaginationExhausted = errors.New("pagination exhausted")
	// ErrRecordDropped is returned by a stage that filtered a record out.
	ErrRecordDropped = errors.New("record dropped")
)

type CrawlError struct {
	Kind ErrorKind
	Seed string
	Err  error
}

func (e *CrawlError) Error() string {
	if e.Seed == "" {
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s error for %s: %v", e.Kind, e.Seed, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

func NewConfigurationError(err error) error {
	return &CrawlError{Kind: KindConfiguration, Err: err}
}

func NewFetchError(seed string, err error) error {
	return &CrawlError{Kind: KindFetch, Seed: seed, Err: err}
}

func NewExtractionError(seed string, err error) error {
	return &CrawlError{Kind: KindExtraction, Seed: seed, Err: err}
}

func NewSinkError(seed string, err error) error {
	return &CrawlError{Kind: KindSink, Seed: seed, Err: err}
}

// KindOf reports the taxonomy kind of err, or "" when err is not a CrawlError.
func KindOf(err error) ErrorKind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}

// Dropped wraps ErrRecordDropped with a human readable reason.
func Dropped(reason string) error {
	return fmt.Errorf("%w: %s", ErrRecordDropped, reason)
}
