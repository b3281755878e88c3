package slink

import "context"

// Mapping describes how one collection maps onto the search index.
type Mapping struct {
	// Index is the target index name.
	Index string `json:"index"`

	// Type labels documents from this collection.
	Type string `json:"type"`

	// ParentField, when set, names the document field whose value is
	// used as the routing parent for indexed documents.
	ParentField string `json:"parent,omitempty"`
}

// IndexingSink applies bulk batches and change events to the search
// index.
type IndexingSink interface {
	// BulkSize returns the number of documents per bulk batch.
	BulkSize() int

	// Mapping returns the index mapping for the collection.
	Mapping(coll string) Mapping

	// EnsureMapping makes the collection's target index exist.
	EnsureMapping(ctx context.Context, coll string) error

	// SendBulk indexes all documents of the batch.
	SendBulk(ctx context.Context, batch *BulkBatch) error

	// Replicate applies one document-level change event.
	Replicate(ctx context.Context, coll string, event *ChangeEvent) error

	// DeleteCollection removes all documents previously indexed for
	// the collection.
	DeleteCollection(ctx context.Context, coll string) error
}
