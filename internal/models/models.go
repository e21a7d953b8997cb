package models

import (
	"timeline_spider/internal/document"
)

// Seed is one independent crawl starting point.
type Seed struct {
	Raw string
	URL string
}

// ContinuationPayload is the JSON body returned by the timeline scroll endpoint.
type ContinuationPayload struct {
	ItemsHTML    string `json:"items_html"`
	MinPosition  string `json:"min_position"`
	HasMoreItems *bool  `json:"has_more_items"`
}

type Page struct {
	URL        string
	StatusCode int
	Body       []byte
	Doc        document.Node
	Payload    *ContinuationPayload
	Author     string
	Step       int
}

type RawRecord struct {
	Node   document.Node
	Author string
}

type ShapedRecord struct {
	ID             *string `json:"tweet_id" bson:"tweet_id"`
	Author         string  `json:"user" bson:"user"`
	TimestampEpoch *string `json:"time_epoch" bson:"time_epoch"`
	Text           string  `json:"tweet" bson:"tweet"`
}

func (r *ShapedRecord) Key() string {
	if r.ID == nil {
		return ""
	}
	return *r.ID
}

// RawView is what gets persisted for a record that never went through the
// shape stage.
type RawView struct {
	Author string `json:"user" bson:"user"`
	HTML   string `json:"html" bson:"html"`
}

func (r *RawView) Key() string { return "" }

// Persistable is anything a sink can store. Key is the upsert identity; an
// empty key means append-only.
type Persistable interface {
	Key() string
}

type SeedFailure struct {
	Seed  string `json:"seed"`
	Kind  string `json:"kind"`
	Error string `json:"error"`
}

type Summary struct {
	RunID     string        `json:"run_id"`
	Seeds     int           `json:"seeds"`
	Pages     int64         `json:"pages"`
	Extracted int64         `json:"extracted"`
	Dropped   int64         `json:"dropped"`
	Persisted int64         `json:"persisted"`
	Failures  []SeedFailure `json:"failures"`

	CleanedFragments int64 `json:"cleaned_fragments"`
}
