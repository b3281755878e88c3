package slink

import (
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Op describes a single bulk index operation. The document's primary id
// travels here, not inside the indexed payload.
type Op struct {
	Index  string
	Type   string
	DocID  string
	Parent string
}

// BulkBatch accumulates index operations as alternating entries: an Op
// descriptor followed by its document payload. A batch of N documents
// therefore holds 2*N entries.
type BulkBatch struct {
	entries []any
	docs    int
}

func NewBulkBatch(size int) *BulkBatch {
	return &BulkBatch{
		entries: make([]any, 0, size*2),
	}
}

// Append adds one operation and its document to the batch.
func (b *BulkBatch) Append(op Op, doc bson.D) {
	b.entries = append(b.entries, op, doc)
	b.docs++
}

// Docs returns the number of documents in the batch.
func (b *BulkBatch) Docs() int {
	return b.docs
}

// Entries returns the underlying entry list. Entries at even offsets
// are Op descriptors, odd offsets are bson.D payloads.
func (b *BulkBatch) Entries() []any {
	return b.entries
}

// Take hands off the accumulated entries as a new batch and resets the
// receiver for reuse.
func (b *BulkBatch) Take() *BulkBatch {
	taken := &BulkBatch{
		entries: b.entries,
		docs:    b.docs,
	}

	b.entries = make([]any, 0, cap(b.entries))
	b.docs = 0

	return taken
}
