package extractor

import (
	"timeline_spider/internal/models"
)

// Extractor turns a fetched page into raw records, one per content node.
type Extractor struct {
	selector string
}

func New(contentSelector string) *Extractor {
	return &Extractor{selector: contentSelector}
}

// Extract pairs every node matching the content selector with author. A page
// without matches, or without a document, yields nothing.
func (e *Extractor) Extract(page *models.Page, author string) []models.RawRecord {
	if page == nil || page.Doc == nil {
		return nil
	}
	nodes := page.Doc.Find(e.selector)
	records := make([]models.RawRecord, 0, len(nodes))
	for _, node := range nodes {
		records = append(records, models.RawRecord{Node: node, Author: author})
	}
	return records
}
