package slink

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/metrics"
)

// runBootstrap dumps all documents with an id above the stored
// progress marker into the sink. fromStart discards the marker first.
// The caller must hold transitionLock.
func (o *Orchestrator) runBootstrap(ctx context.Context, fromStart bool) error {
	lg := log.New("dump").With(log.Coll(o.coll))
	ctx = lg.WithContext(ctx)

	o.setState(StateBootstrapping)

	if fromStart {
		o.progress.Clear(o.coll)
	}

	cur, err := o.source.Find(ctx, o.coll, o.progress.Get(o.coll))
	if err != nil {
		return errors.Wrap(err, "open cursor")
	}

	defer func() {
		err := cur.Close(context.Background())
		if err != nil {
			lg.Error(err, "Close dump cursor")
		}
	}()

	total := cur.Count()
	lg.With(log.Count(total)).Infof("Starting dump: %s documents", humanize.Comma(total))

	mapping := o.sink.Mapping(o.coll)
	bulkSize := o.sink.BulkSize()
	batch := NewBulkBatch(bulkSize)

	// inflight is the depth-1 send pipeline: at most one bulk request
	// is on the wire while the next batch is being filled.
	var inflight chan error

	transferred := int64(0)
	startedAt := time.Now()
	batchStartedAt := startedAt

	for n := int64(0); n < total; n++ {
		if o.gate.Paused() {
			err = cur.Close(ctx)
			if err != nil {
				lg.Error(err, "Close dump cursor")
			}

			lg.Info("Dump paused")
			err = o.gate.Wait(ctx)
			if err != nil {
				return errors.Wrap(err, "wait for resume")
			}

			lg.Info("Dump resumed")
			cur, err = o.source.Find(ctx, o.coll, o.progress.Get(o.coll))
			if err != nil {
				return errors.Wrap(err, "reopen cursor")
			}
		}

		doc, err := cur.Next(ctx)
		if err != nil {
			if errors.Is(err, ErrEndOfStream) {
				break
			}
			if ctx.Err() != nil {
				return errors.Wrap(ctx.Err(), "read document")
			}

			lg.Error(err, "Read document. skipping")

			continue
		}

		id, payload, ok := splitDocumentID(doc)
		if !ok {
			lg.Warn("Document without ObjectID primary id. skipping")

			continue
		}

		o.progress.Set(o.coll, id)
		batch.Append(Op{
			Index:  mapping.Index,
			Type:   mapping.Type,
			DocID:  id.Hex(),
			Parent: fieldString(payload, mapping.ParentField),
		}, payload)

		if batch.Docs() < bulkSize {
			continue
		}

		if inflight != nil {
			err = <-inflight
			if err != nil {
				return errors.Wrap(err, "send bulk")
			}
		}

		inflight = o.sendAsync(ctx, batch.Take())
		transferred += int64(bulkSize)

		elapsed := time.Since(batchStartedAt)
		rate := float64(bulkSize) / elapsed.Seconds()
		batchStartedAt = time.Now()

		metrics.AddDumpDocuments(bulkSize)
		metrics.IncDumpBatches()
		metrics.SetDumpRate(rate)

		lg.Infof("Transferred %s of %s documents (%.0f docs/sec)",
			humanize.Comma(transferred), humanize.Comma(total), rate)

		o.progress.SaveAsync(ctx)
	}

	if inflight != nil {
		err = <-inflight
		if err != nil {
			return errors.Wrap(err, "send bulk")
		}
	}

	if batch.Docs() != 0 {
		docs := batch.Docs()

		err = o.sink.SendBulk(ctx, batch.Take())
		if err != nil {
			return errors.Wrap(err, "send bulk")
		}

		transferred += int64(docs)
		metrics.AddDumpDocuments(docs)
		metrics.IncDumpBatches()
	}

	err = o.progress.Save()
	if err != nil {
		metrics.IncCheckpointWriteFailure()
		lg.Error(err, "Save dump progress")
	}

	o.docsTransferred.Add(transferred)

	lg.With(log.Count(transferred), log.Elapsed(time.Since(startedAt))).
		Infof("Dump completed: %s documents in %s",
			humanize.Comma(transferred), time.Since(startedAt).Round(time.Second))

	return nil
}

// sendAsync sends the batch in the background. The returned channel
// receives exactly one value: the send error or nil.
func (o *Orchestrator) sendAsync(ctx context.Context, batch *BulkBatch) chan error {
	res := make(chan error, 1)

	go func() {
		res <- o.sink.SendBulk(ctx, batch)
	}()

	return res
}

// splitDocumentID extracts the ObjectID primary id from the document
// and returns the remaining fields as the index payload.
func splitDocumentID(doc bson.D) (bson.ObjectID, bson.D, bool) {
	for i, el := range doc {
		if el.Key != "_id" {
			continue
		}

		id, ok := el.Value.(bson.ObjectID)
		if !ok {
			return bson.NilObjectID, nil, false
		}

		payload := make(bson.D, 0, len(doc)-1)
		payload = append(payload, doc[:i]...)
		payload = append(payload, doc[i+1:]...)

		return id, payload, true
	}

	return bson.NilObjectID, nil, false
}

// fieldString returns the string form of a top-level document field.
func fieldString(doc bson.D, field string) string {
	if field == "" {
		return ""
	}

	for _, el := range doc {
		if el.Key != field {
			continue
		}

		switch v := el.Value.(type) {
		case bson.ObjectID:
			return v.Hex()
		case string:
			return v
		default:
			return ""
		}
	}

	return ""
}
