package pipeline_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"timeline_spider/internal/config"
	"timeline_spider/internal/models"
	"timeline_spider/internal/pipeline"
)

func TestFilterStage_RetweetPolicies(t *testing.T) {
	tests := []struct {
		policy      string
		html        string
		wantDropped bool
	}{
		{config.RetweetDrop, retweetHTML, true},
		{config.RetweetDrop, tweetHTML, false},
		{config.RetweetKeepOnly, retweetHTML, false},
		{config.RetweetKeepOnly, tweetHTML, true},
		{config.RetweetOff, retweetHTML, false},
		{config.RetweetOff, tweetHTML, false},
	}
	for _, tt := range tests {
		stage, err := pipeline.NewFilterStage(tt.policy, 0)
		require.NoError(t, err)

		raw := rawRecord(t, tt.html, "nasa")
		for i := 0; i < 2; i++ {
			_, err = stage.Process(context.Background(), &pipeline.Item{Raw: raw})
			if tt.wantDropped {
				assert.ErrorIs(t, err, models.ErrRecordDropped, tt.policy)
			} else {
				assert.NoError(t, err, tt.policy)
			}
		}
	}
}

func TestFilterStage_MinLength(t *testing.T) {
	stage, err := pipeline.NewFilterStage(config.RetweetDrop, 10)
	require.NoError(t, err)

	short := rawRecord(t, `<div class="tweet"><p class="tweet-text">tiny</p></div>`, "nasa")
	_, err = stage.Process(context.Background(), &pipeline.Item{Raw: short})
	assert.ErrorIs(t, err, models.ErrRecordDropped)

	// rune count, not bytes
	exact := rawRecord(t, `<div class="tweet"><p class="tweet-text">ééééééééé</p></div>`, "nasa")
	_, err = stage.Process(context.Background(), &pipeline.Item{Raw: exact})
	assert.ErrorIs(t, err, models.ErrRecordDropped)

	long := rawRecord(t, `<div class="tweet"><p class="tweet-text">long enough text</p></div>`, "nasa")
	item, err := stage.Process(context.Background(), &pipeline.Item{Raw: long})
	require.NoError(t, err)
	assert.NotNil(t, item)

	missing := rawRecord(t, `<div class="tweet"></div>`, "nasa")
	_, err = stage.Process(context.Background(), &pipeline.Item{Raw: missing})
	assert.ErrorIs(t, err, models.ErrRecordDropped)
}

func TestNewFilterStage_Validation(t *testing.T) {
	_, err := pipeline.NewFilterStage("sometimes", 0)
	assert.Error(t, err)
	_, err = pipeline.NewFilterStage(config.RetweetDrop, -1)
	assert.Error(t, err)
}

func TestShape_ExactAttributeValues(t *testing.T) {
	html := `<div class="tweet" data-tweet-id="123456789012345678">
<span class="_timestamp" data-time="1499999999"></span>
<p class="tweet-text">Hello <a href="/x">@x</a>, <b>world</b>!</p></div>`

	rec := pipeline.Shape(rawRecord(t, html, "nasa"))
	require.NotNil(t, rec.ID)
	require.NotNil(t, rec.TimestampEpoch)
	assert.Equal(t, "123456789012345678", *rec.ID)
	assert.Equal(t, "1499999999", *rec.TimestampEpoch)
	assert.Equal(t, "nasa", rec.Author)
	assert.Equal(t, "Hello @x, world!", rec.Text)
}

func TestShape_MissingAttributesAreNil(t *testing.T) {
	rec := pipeline.Shape(rawRecord(t, `<div class="tweet"><p class="tweet-text">x</p></div>`, "esa"))
	assert.Nil(t, rec.ID)
	assert.Nil(t, rec.TimestampEpoch)
	assert.Equal(t, "x", rec.Text)
	assert.Equal(t, "esa", rec.Author)
}

func TestCleanStage_RemovesLinksWithoutTrimming(t *testing.T) {
	stage := pipeline.NewCleanStage(pipeline.DefaultCleanRules(), zap.NewNop())

	got := stage.Clean("check this out http://t.co/abc123 pic.twitter.com/xyz")
	assert.Equal(t, "check this out  ", got)
	assert.Equal(t, int64(2), stage.Removals())
}

func TestCleanStage_Idempotent(t *testing.T) {
	stage := pipeline.NewCleanStage(pipeline.DefaultCleanRules(), zap.NewNop())

	inputs := []string{
		"",
		"no links here",
		"check this out http://t.co/abc123 pic.twitter.com/xyz",
		"https://a.b/c https://d.e/f",
		"glued:http://t.co/xpic.twitter.com/y tail",
		"pic.twitter.com/a http://x.y pic.twitter.com/b",
		"httpspic.twitter.com/z://t.co/q",
		strings.Repeat("http://t.co/1 ", 20),
	}
	for _, in := range inputs {
		once := stage.Clean(in)
		assert.Equal(t, once, stage.Clean(once), in)
		assert.NotContains(t, once, "http://", in)
		assert.NotContains(t, once, "pic.twitter.com/", in)
	}
}

func TestCleanStage_NoopBeforeShape(t *testing.T) {
	stage := pipeline.NewCleanStage(pipeline.DefaultCleanRules(), zap.NewNop())
	item := &pipeline.Item{Raw: models.RawRecord{Author: "nasa"}}

	out, err := stage.Process(context.Background(), item)
	require.NoError(t, err)
	assert.Nil(t, out.Shaped)
}
