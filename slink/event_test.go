package slink //nolint:testpackage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChangeEventIsDML(t *testing.T) {
	t.Parallel()

	dml := []OperationType{Insert, Update, Replace, Delete}
	for _, op := range dml {
		assert.True(t, (&ChangeEvent{OperationType: op}).IsDML(), string(op))
	}

	ddl := []OperationType{Drop, DropDatabase, Rename, Invalidate}
	for _, op := range ddl {
		assert.False(t, (&ChangeEvent{OperationType: op}).IsDML(), string(op))
	}
}

func TestChangeEventDocID(t *testing.T) {
	t.Parallel()

	event := &ChangeEvent{}
	event.DocumentKey.ID = oid(5)
	assert.Equal(t, oid(5).Hex(), event.DocID())

	event.DocumentKey.ID = "user-5"
	assert.Equal(t, "user-5", event.DocID())

	event.DocumentKey.ID = int32(5)
	assert.Equal(t, "5", event.DocID())
}
