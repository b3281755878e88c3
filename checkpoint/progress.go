// Package checkpoint provides durable bootstrap progress and resume-token
// persistence.
package checkpoint

import (
	"context"
	"encoding/json"
	"os"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/metrics"
)

// Progress is the shared bootstrap progress map. It maps a collection name to
// the last transferred document id and mirrors a single JSON file on disk.
// Entries of different collections are independent; all file writes are
// serialized internally.
type Progress struct {
	path string

	lock sync.Mutex
	m    map[string]string // collection -> hex ObjectID
}

// LoadProgress reads the progress file at path. A missing file yields an
// empty progress map.
func LoadProgress(path string) (*Progress, error) {
	p := &Progress{
		path: path,
		m:    make(map[string]string),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}

		return nil, errors.Wrap(err, "read progress file")
	}

	err = json.Unmarshal(data, &p.m)
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal progress file")
	}

	return p, nil
}

// Get returns the last transferred document id for the collection.
// The zero ObjectID is returned when no progress is recorded.
func (p *Progress) Get(coll string) bson.ObjectID {
	p.lock.Lock()
	defer p.lock.Unlock()

	hex, ok := p.m[coll]
	if !ok {
		return bson.NilObjectID
	}

	id, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return bson.NilObjectID
	}

	return id
}

// Set advances the progress entry for the collection.
func (p *Progress) Set(coll string, id bson.ObjectID) {
	p.lock.Lock()
	p.m[coll] = id.Hex()
	p.lock.Unlock()
}

// Clear removes the progress entry for the collection.
func (p *Progress) Clear(coll string) {
	p.lock.Lock()
	delete(p.m, coll)
	p.lock.Unlock()
}

// Save writes the whole progress map to the file. The write replaces the
// file contents without an atomic rename; intermediate write failures only
// risk redundant re-transfer after a crash.
func (p *Progress) Save() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	data, err := json.Marshal(p.m)
	if err != nil {
		return errors.Wrap(err, "marshal progress")
	}

	err = os.WriteFile(p.path, data, 0o600)

	return errors.Wrap(err, "write progress file")
}

// SaveAsync persists the progress map in the background. Failures are
// logged, not retried; the next successful write self-corrects.
func (p *Progress) SaveAsync(ctx context.Context) {
	go func() {
		err := p.Save()
		if err != nil {
			metrics.IncCheckpointWriteFailure()
			log.Ctx(ctx).Error(err, "Save bootstrap progress")
		}
	}()
}

// Reset drops all entries and deletes the progress file.
func (p *Progress) Reset() error {
	p.lock.Lock()
	defer p.lock.Unlock()

	clear(p.m)

	err := os.Remove(p.path)
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove progress file")
	}

	return nil
}
