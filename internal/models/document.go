package models

import (
	"strings"
	"time"
)

// DocumentItem is one normalized regulatory news item as produced by the
// feed ingestion layer. Items are read-only from the analysis side.
type DocumentItem struct {
	ID         string
	Source     string
	URL        string
	Title      string
	Summary    string
	Published  time.Time
	Tags       []string
	Categories []string
}

// Key returns the identity used for deduplication: the URL when present,
// otherwise a key derived from the title.
func (d DocumentItem) Key() string {
	if d.URL != "" {
		return d.URL
	}
	return "title:" + strings.ToLower(strings.TrimSpace(d.Title))
}

// Text returns the searchable text of the item (title plus summary).
func (d DocumentItem) Text() string {
	if d.Summary == "" {
		return d.Title
	}
	return d.Title + " " + d.Summary
}

type ContentType string

const (
	ContentTypeHTML ContentType = "html"
	ContentTypePDF  ContentType = "pdf"
)

type SourceChannel string

const (
	ChannelProxy  SourceChannel = "proxy"
	ChannelDirect SourceChannel = "direct"
)

// ExtractionResult is the outcome of fetching and extracting one resource.
// Content is always truncated to the configured maximum length;
// OriginalLength reflects the pre-truncation length.
type ExtractionResult struct {
	Success        bool
	Content        string
	ContentType    ContentType
	Truncated      bool
	OriginalLength int
	SourceChannel  SourceChannel
	Error          string
}

// Relationship classifies why two documents were matched.
type Relationship string

const (
	RelationSameRegulation Relationship = "same-regulation"
	RelationReferences     Relationship = "references"
	RelationReferencedBy   Relationship = "referenced-by"
	RelationAmendment      Relationship = "amendment"
	RelationRelated        Relationship = "related"
)

// RelatedMatch pairs a candidate document with its relevance score against
// a target. Matches are computed fresh per query and never persisted.
type RelatedMatch struct {
	Candidate    DocumentItem
	Score        int
	Relationship Relationship
}

// DocumentSummary is the structured per-document view returned alongside
// the assembled context text.
type DocumentSummary struct {
	Position     int
	Relationship Relationship
	Title        string
	URL          string
	Date         string
	Summary      string
	References   []string
	Content      string
}

// ContextResult is the output of the context builder: one bounded text
// artifact plus the same metadata in structured form.
type ContextResult struct {
	Context   string
	Documents []DocumentSummary
}
