package slink

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/searchlink/searchlink/config"
	"github.com/searchlink/searchlink/errors"
)

// ErrEndOfStream is returned by [Cursor.Next] when the cursor is
// exhausted.
var ErrEndOfStream = errors.New("end of stream")

// ErrFeedClosed is returned by [Feed.Next] when the change feed has
// been closed without an error.
var ErrFeedClosed = errors.New("change feed closed")

// Cursor iterates the documents of one bootstrap dump pass.
type Cursor interface {
	// Count returns the number of documents matched when the cursor
	// was opened.
	Count() int64

	Next(ctx context.Context) (bson.D, error)
	Close(ctx context.Context) error
}

// Feed delivers change events for one collection.
type Feed interface {
	Next(ctx context.Context) (*ChangeEvent, error)
	Close(ctx context.Context) error
}

// DataSource opens dump cursors and change feeds against the source
// database.
type DataSource interface {
	// Find opens a cursor over all documents with a primary id greater
	// than afterID, ordered by id ascending.
	Find(ctx context.Context, coll string, afterID bson.ObjectID) (Cursor, error)

	// Watch opens a change feed for the collection. A nil resumeAfter
	// starts the feed at the current position.
	Watch(ctx context.Context, coll string, resumeAfter bson.Raw) (Feed, error)
}

// MongoSource is the MongoDB-backed [DataSource].
type MongoSource struct {
	client *mongo.Client
	db     string
}

func NewMongoSource(client *mongo.Client, db string) *MongoSource {
	return &MongoSource{
		client: client,
		db:     db,
	}
}

func (s *MongoSource) Find(ctx context.Context, coll string, afterID bson.ObjectID) (Cursor, error) {
	c := s.client.Database(s.db).Collection(coll)
	filter := bson.D{{Key: "_id", Value: bson.D{{Key: "$gt", Value: afterID}}}}

	count, err := c.CountDocuments(ctx, filter)
	if err != nil {
		return nil, errors.Wrap(err, "count documents")
	}

	cur, err := c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, errors.Wrap(err, "find")
	}

	return &mongoCursor{cur: cur, count: count}, nil
}

func (s *MongoSource) Watch(ctx context.Context, coll string, resumeAfter bson.Raw) (Feed, error) {
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetBatchSize(config.ChangeStreamBatchSize).
		SetMaxAwaitTime(config.ChangeStreamAwaitTime)
	if resumeAfter != nil {
		opts.SetResumeAfter(resumeAfter)
	}

	cs, err := s.client.Database(s.db).Collection(coll).Watch(ctx, mongo.Pipeline{}, opts)
	if err != nil {
		return nil, errors.Wrap(err, "watch")
	}

	return &mongoFeed{cs: cs}, nil
}

type mongoCursor struct {
	cur   *mongo.Cursor
	count int64
}

func (c *mongoCursor) Count() int64 {
	return c.count
}

func (c *mongoCursor) Next(ctx context.Context) (bson.D, error) {
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			return nil, errors.Wrap(err, "cursor")
		}

		return nil, ErrEndOfStream
	}

	var doc bson.D
	if err := c.cur.Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "decode document")
	}

	return doc, nil
}

func (c *mongoCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx) //nolint:wrapcheck
}

type mongoFeed struct {
	cs *mongo.ChangeStream
}

func (f *mongoFeed) Next(ctx context.Context) (*ChangeEvent, error) {
	if !f.cs.Next(ctx) {
		if err := f.cs.Err(); err != nil {
			return nil, errors.Wrap(err, "change stream")
		}

		return nil, ErrFeedClosed
	}

	event := &ChangeEvent{}
	if err := bson.Unmarshal(f.cs.Current, event); err != nil {
		return nil, errors.Wrap(err, "decode change event")
	}

	return event, nil
}

func (f *mongoFeed) Close(ctx context.Context) error {
	return f.cs.Close(ctx) //nolint:wrapcheck
}
