package slink //nolint:testpackage

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// fakeCursor serves a fixed document list. Read errors can be injected
// at specific positions.
type fakeCursor struct {
	docs  []bson.D
	errAt map[int]error

	pos    int
	closed atomic.Bool
}

func (c *fakeCursor) Count() int64 {
	return int64(len(c.docs)) //nolint:gosec
}

func (c *fakeCursor) Next(context.Context) (bson.D, error) {
	if err, ok := c.errAt[c.pos]; ok {
		c.pos++

		return nil, err
	}

	if c.pos >= len(c.docs) {
		return nil, ErrEndOfStream
	}

	doc := c.docs[c.pos]
	c.pos++

	return doc, nil
}

func (c *fakeCursor) Close(context.Context) error {
	c.closed.Store(true)

	return nil
}

// fakeFeed delivers scripted events and errors.
type fakeFeed struct {
	events chan *ChangeEvent
	errs   chan error

	lock   sync.Mutex
	closed bool
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		events: make(chan *ChangeEvent, 16),
		errs:   make(chan error, 1),
	}
}

func (f *fakeFeed) Next(ctx context.Context) (*ChangeEvent, error) {
	select {
	case event := <-f.events:
		return event, nil
	case err := <-f.errs:
		return nil, err
	case <-ctx.Done():
		return nil, context.Canceled
	}
}

func (f *fakeFeed) Close(context.Context) error {
	f.lock.Lock()
	f.closed = true
	f.lock.Unlock()

	return nil
}

func (f *fakeFeed) isClosed() bool {
	f.lock.Lock()
	defer f.lock.Unlock()

	return f.closed
}

// fakeSource serves documents sorted by id and records every cursor
// and feed request.
type fakeSource struct {
	lock sync.Mutex

	docs      []bson.D
	cursorErr map[int]error

	finds   []bson.ObjectID
	cursors []*fakeCursor
	watches []bson.Raw
	feeds   []*fakeFeed
}

func (s *fakeSource) Find(_ context.Context, _ string, afterID bson.ObjectID) (Cursor, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.finds = append(s.finds, afterID)

	matched := []bson.D{}
	for _, doc := range s.docs {
		if id, ok := docID(doc); ok && afterID.Hex() >= id.Hex() {
			continue
		}

		matched = append(matched, doc)
	}

	errAt := s.cursorErr
	s.cursorErr = nil

	cur := &fakeCursor{docs: matched, errAt: errAt}
	s.cursors = append(s.cursors, cur)

	return cur, nil
}

func (s *fakeSource) cursor(i int) *fakeCursor {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.cursors[i]
}

func (s *fakeSource) Watch(_ context.Context, _ string, resumeAfter bson.Raw) (Feed, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.watches = append(s.watches, resumeAfter)

	feed := newFakeFeed()
	s.feeds = append(s.feeds, feed)

	return feed, nil
}

func (s *fakeSource) findCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.finds)
}

func (s *fakeSource) watchCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.watches)
}

func (s *fakeSource) feed(i int) *fakeFeed {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.feeds[i]
}

func (s *fakeSource) watchToken(i int) bson.Raw {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.watches[i]
}

func docID(doc bson.D) (bson.ObjectID, bool) {
	for _, el := range doc {
		if el.Key == "_id" {
			id, ok := el.Value.(bson.ObjectID)

			return id, ok
		}
	}

	return bson.NilObjectID, false
}

// fakeSink records every bulk send, replicated event and collection
// purge.
type fakeSink struct {
	lock sync.Mutex

	bulkSize int
	mapping  Mapping

	sends      []*BulkBatch
	sendErr    error
	sendDelay  time.Duration
	inFlight   int
	maxFlight  int
	replicated []*ChangeEvent
	replErr    error
	deleted    []string
	ensured    []string
}

func newFakeSink(bulkSize int) *fakeSink {
	return &fakeSink{
		bulkSize: bulkSize,
		mapping:  Mapping{Index: "test-index", Type: "test"},
	}
}

func (s *fakeSink) BulkSize() int {
	return s.bulkSize
}

func (s *fakeSink) Mapping(string) Mapping {
	return s.mapping
}

func (s *fakeSink) EnsureMapping(_ context.Context, coll string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.ensured = append(s.ensured, coll)

	return nil
}

func (s *fakeSink) SendBulk(_ context.Context, batch *BulkBatch) error {
	s.lock.Lock()
	s.inFlight++
	if s.inFlight > s.maxFlight {
		s.maxFlight = s.inFlight
	}

	err := s.sendErr
	if err == nil {
		s.sends = append(s.sends, batch)
	}
	s.lock.Unlock()

	time.Sleep(s.sendDelay)

	s.lock.Lock()
	s.inFlight--
	s.lock.Unlock()

	return err
}

func (s *fakeSink) Replicate(_ context.Context, _ string, event *ChangeEvent) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.replErr != nil {
		return s.replErr
	}

	s.replicated = append(s.replicated, event)

	return nil
}

func (s *fakeSink) DeleteCollection(_ context.Context, coll string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.deleted = append(s.deleted, coll)

	return nil
}

func (s *fakeSink) sentDocs() []int {
	s.lock.Lock()
	defer s.lock.Unlock()

	docs := make([]int, 0, len(s.sends))
	for _, batch := range s.sends {
		docs = append(docs, batch.Docs())
	}

	return docs
}

func (s *fakeSink) sendCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.sends)
}

func (s *fakeSink) replicatedCount() int {
	s.lock.Lock()
	defer s.lock.Unlock()

	return len(s.replicated)
}

func (s *fakeSink) deletedColls() []string {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]string{}, s.deleted...)
}
