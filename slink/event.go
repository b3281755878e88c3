package slink

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// OperationType is the kind of change reported by the change feed.
type OperationType string

const (
	Insert       OperationType = "insert"
	Update       OperationType = "update"
	Replace      OperationType = "replace"
	Delete       OperationType = "delete"
	Drop         OperationType = "drop"
	DropDatabase OperationType = "dropDatabase"
	Rename       OperationType = "rename"
	Invalidate   OperationType = "invalidate"
)

// Namespace is the database and collection a change event belongs to.
type Namespace struct {
	Database   string `bson:"db"`
	Collection string `bson:"coll"`
}

func (ns Namespace) String() string {
	return ns.Database + "." + ns.Collection
}

// ChangeEvent is a single event received from the change feed. For
// document-level events, FullDocument carries the current state of the
// changed document. Delete and invalidate events have no FullDocument.
type ChangeEvent struct {
	ID            bson.Raw      `bson:"_id"`
	OperationType OperationType `bson:"operationType"`
	Namespace     Namespace     `bson:"ns"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
	FullDocument bson.D `bson:"fullDocument"`
}

// ResumeToken returns the event's position marker in the feed.
func (e *ChangeEvent) ResumeToken() bson.Raw {
	return e.ID
}

// IsDML reports whether the event is a document-level change that can
// be applied to the search index.
func (e *ChangeEvent) IsDML() bool {
	switch e.OperationType {
	case Insert, Update, Replace, Delete:
		return true
	}

	return false
}

// DocID returns the string form of the changed document's primary id.
func (e *ChangeEvent) DocID() string {
	switch id := e.DocumentKey.ID.(type) {
	case bson.ObjectID:
		return id.Hex()
	case string:
		return id
	default:
		return fmt.Sprint(id)
	}
}
