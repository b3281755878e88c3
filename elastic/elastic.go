// Package elastic is the Elasticsearch-backed indexing sink.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/slink"
)

// Config is the sink configuration.
type Config struct {
	// URL is the Elasticsearch endpoint.
	URL string

	// BulkSize is the number of documents per bulk request.
	BulkSize int

	// Mappings maps collection names to their index mappings.
	Mappings map[string]slink.Mapping
}

// Sink indexes documents into Elasticsearch. It implements
// [slink.IndexingSink].
type Sink struct {
	es       *elasticsearch.Client
	bulkSize int
	mappings map[string]slink.Mapping
}

func New(cfg *Config) (*Sink, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create client")
	}

	return &Sink{
		es:       es,
		bulkSize: cfg.BulkSize,
		mappings: cfg.Mappings,
	}, nil
}

// LoadMappings reads collection-to-index mappings from a JSON file.
func LoadMappings(path string) (map[string]slink.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read mappings file")
	}

	var mappings map[string]slink.Mapping
	err = json.Unmarshal(data, &mappings)
	if err != nil {
		return nil, errors.Wrap(err, "parse mappings file")
	}

	return mappings, nil
}

func (s *Sink) BulkSize() int {
	return s.bulkSize
}

// Mapping returns the index mapping for the collection. Collections
// without an explicit mapping are indexed into an index of the same
// name.
func (s *Sink) Mapping(coll string) slink.Mapping {
	m, ok := s.mappings[coll]
	if !ok {
		return slink.Mapping{Index: coll, Type: coll}
	}

	return m
}

// EnsureMapping creates the collection's target index. An index that
// already exists is not an error.
func (s *Sink) EnsureMapping(ctx context.Context, coll string) error {
	m := s.Mapping(coll)

	res, err := s.es.Indices.Create(m.Index, s.es.Indices.Create.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "create index")
	}
	defer closeBody(res.Body)

	if res.IsError() && res.StatusCode != http.StatusBadRequest {
		return errors.Errorf("create index %q: %s", m.Index, res.String())
	}

	return nil
}

// SendBulk indexes all documents of the batch with a single bulk
// request.
func (s *Sink) SendBulk(ctx context.Context, batch *slink.BulkBatch) error {
	if batch.Docs() == 0 {
		return nil
	}

	body, err := EncodeBulk(batch)
	if err != nil {
		return errors.Wrap(err, "encode bulk body")
	}

	res, err := s.es.Bulk(bytes.NewReader(body), s.es.Bulk.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "bulk request")
	}
	defer closeBody(res.Body)

	if res.IsError() {
		return errors.Errorf("bulk request: %s", res.String())
	}

	return nil
}

// EncodeBulk renders the batch as an NDJSON bulk request body: an
// action line followed by the document source for every entry pair.
func EncodeBulk(batch *slink.BulkBatch) ([]byte, error) {
	var buf bytes.Buffer

	entries := batch.Entries()
	for i := 0; i+1 < len(entries); i += 2 {
		op, ok := entries[i].(slink.Op)
		if !ok {
			return nil, errors.Errorf("entry %d: expected operation descriptor", i)
		}

		doc, ok := entries[i+1].(bson.D)
		if !ok {
			return nil, errors.Errorf("entry %d: expected document", i+1)
		}

		meta := map[string]string{
			"_index": op.Index,
			"_id":    op.DocID,
		}
		if op.Parent != "" {
			meta["routing"] = op.Parent
		}

		action, err := json.Marshal(map[string]map[string]string{"index": meta})
		if err != nil {
			return nil, errors.Wrap(err, "marshal action")
		}

		source, err := bson.MarshalExtJSON(doc, false, false)
		if err != nil {
			return nil, errors.Wrap(err, "marshal document")
		}

		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Replicate applies one change event: inserts, updates and replaces
// index the full document, deletes remove it.
func (s *Sink) Replicate(ctx context.Context, coll string, event *slink.ChangeEvent) error {
	m := s.Mapping(coll)

	switch event.OperationType {
	case slink.Insert, slink.Update, slink.Replace:
		if event.FullDocument == nil {
			// the document was deleted before the lookup resolved. the
			// delete event that follows removes it from the index.
			log.Ctx(ctx).With(log.Coll(coll)).Debug("Change event without full document. skipping")

			return nil
		}

		return s.index(ctx, m, event)

	case slink.Delete:
		return s.delete(ctx, m, event)

	default:
		return errors.Errorf("unsupported operation type %q", event.OperationType)
	}
}

func (s *Sink) index(ctx context.Context, m slink.Mapping, event *slink.ChangeEvent) error {
	doc := event.FullDocument
	for i, el := range doc {
		if el.Key == "_id" {
			trimmed := make(bson.D, 0, len(doc)-1)
			trimmed = append(trimmed, doc[:i]...)
			trimmed = append(trimmed, doc[i+1:]...)
			doc = trimmed

			break
		}
	}

	body, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return errors.Wrap(err, "marshal document")
	}

	res, err := s.es.Index(m.Index, bytes.NewReader(body),
		s.es.Index.WithDocumentID(event.DocID()),
		s.es.Index.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "index request")
	}
	defer closeBody(res.Body)

	if res.IsError() {
		return errors.Errorf("index document %q: %s", event.DocID(), res.String())
	}

	return nil
}

func (s *Sink) delete(ctx context.Context, m slink.Mapping, event *slink.ChangeEvent) error {
	res, err := s.es.Delete(m.Index, event.DocID(), s.es.Delete.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "delete request")
	}
	defer closeBody(res.Body)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.Errorf("delete document %q: %s", event.DocID(), res.String())
	}

	return nil
}

// DeleteCollection removes all documents previously indexed for the
// collection.
func (s *Sink) DeleteCollection(ctx context.Context, coll string) error {
	m := s.Mapping(coll)

	res, err := s.es.DeleteByQuery(
		[]string{m.Index},
		strings.NewReader(`{"query":{"match_all":{}}}`),
		s.es.DeleteByQuery.WithContext(ctx))
	if err != nil {
		return errors.Wrap(err, "delete by query request")
	}
	defer closeBody(res.Body)

	if res.IsError() && res.StatusCode != http.StatusNotFound {
		return errors.Errorf("delete index data %q: %s", m.Index, res.String())
	}

	return nil
}

func closeBody(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
