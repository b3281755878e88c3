package slink

import (
	"context"

	"github.com/searchlink/searchlink/config"
	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/metrics"
	"github.com/searchlink/searchlink/topo"
	"github.com/searchlink/searchlink/util"
)

// attachFeed opens the change feed and starts consuming it in the
// background. ignoreCheckpoint discards any stored resume token and
// starts the feed at the current position.
func (o *Orchestrator) attachFeed(ctx context.Context, ignoreCheckpoint bool) error {
	lg := log.New("feed").With(log.Coll(o.coll))

	o.lock.Lock()
	if o.feedDone != nil {
		o.lock.Unlock()

		return errors.New("change feed already attached")
	}

	if ignoreCheckpoint {
		o.resumeToken = nil
	}
	token := o.resumeToken
	o.lock.Unlock()

	if token == nil && !ignoreCheckpoint {
		stored, err := o.tokens.Load(ctx, o.coll)
		if err != nil {
			lg.Error(err, "Load resume token")
		}

		token = stored
	}

	feed, err := o.source.Watch(ctx, o.coll, token)
	if err != nil {
		return errors.Wrap(err, "open change feed")
	}

	// the feed outlives the caller's context. it stops only on detach.
	feedCtx, cancel := context.WithCancel(log.New("feed").WithContext(context.Background()))
	done := make(chan struct{})

	o.lock.Lock()
	o.resumeToken = token
	o.feedCancel = cancel
	o.feedDone = done
	o.state = StateWatching
	o.lock.Unlock()

	lg.InfoWith("Change feed attached", log.Field("resumed", token != nil))

	go o.consumeFeed(feedCtx, feed, done)

	return nil
}

// detachFeed stops the feed consumer, waits for it to finish, and
// persists the latest resume token. It is a no-op if no feed is
// attached. The caller must hold transitionLock.
func (o *Orchestrator) detachFeed(ctx context.Context) {
	lg := log.New("feed").With(log.Coll(o.coll))

	o.lock.Lock()
	cancel := o.feedCancel
	done := o.feedDone
	o.feedCancel = nil
	o.feedDone = nil
	o.lock.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	o.lock.Lock()
	token := o.resumeToken
	o.lock.Unlock()

	if token != nil {
		err := o.tokens.Store(ctx, o.coll, token)
		if err != nil {
			metrics.IncCheckpointWriteFailure()
			lg.Error(err, "Persist resume token")
		}
	}

	lg.Info("Change feed detached")
}

// consumeFeed applies change events until the feed fails or is
// canceled. Failures never propagate as errors: they are classified
// and handed to Reset on a new goroutine, because Reset waits for this
// consumer to exit.
func (o *Orchestrator) consumeFeed(ctx context.Context, feed Feed, done chan struct{}) {
	defer close(done)

	lg := log.New("feed").With(log.Coll(o.coll))

	defer func() {
		err := util.WithTimeout(context.Background(), config.CloseFeedTimeout, feed.Close)
		if err != nil {
			lg.Error(err, "Close change feed")
		}
	}()

	for {
		event, err := feed.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, ErrFeedClosed):
				lg.Debug("Change feed consumer stopped")

			case topo.IsResumeTokenInvalid(err):
				lg.Error(err, "Resume token is no longer valid")
				o.setLastErr(err)
				metrics.IncReset(metrics.ResetTokenInvalid)

				go o.Reset(context.Background(), false, true)

			default:
				lg.Error(err, "Change feed failed")
				o.setLastErr(err)
				metrics.IncReset(metrics.ResetFeedError)

				go o.Reset(context.Background(), false, false)
			}

			return
		}

		metrics.IncFeedEvents()

		if event.OperationType == Invalidate {
			lg.Warn("Change feed invalidated")
			metrics.IncReset(metrics.ResetInvalidate)

			go o.Reset(context.Background(), true, true)

			return
		}

		o.lock.Lock()
		o.resumeToken = event.ResumeToken()
		o.lock.Unlock()

		if !event.IsDML() {
			lg.With(log.Op(string(event.OperationType))).Debug("Skipping non-document event")

			continue
		}

		err = o.sink.Replicate(ctx, o.coll, event)
		if err != nil {
			lg.With(log.Op(string(event.OperationType))).Error(err, "Apply change event")

			continue
		}

		o.eventsApplied.Add(1)
		metrics.IncFeedEventsApplied()
	}
}

// Reset tears the feed down and reattaches it. With purgeAndRebootstrap
// the stored checkpoints are cleared, all indexed documents for the
// collection are deleted, and a full bootstrap runs before the feed is
// reattached. With discardCheckpoint only the resume token is cleared,
// so the feed reattaches at the current position.
func (o *Orchestrator) Reset(ctx context.Context, purgeAndRebootstrap, discardCheckpoint bool) {
	o.transitionLock.Lock()
	defer o.transitionLock.Unlock()

	lg := log.New("slink").With(log.Coll(o.coll))
	ctx = lg.WithContext(ctx)

	o.detachFeed(ctx)

	switch {
	case purgeAndRebootstrap:
		o.clearResumeToken(ctx)

		err := o.sink.DeleteCollection(ctx, o.coll)
		if err != nil {
			lg.Error(err, "Delete indexed documents")
		}

		err = o.runBootstrap(ctx, true)
		if err != nil {
			o.setLastErr(err)
			lg.Error(err, "Bootstrap")
		}

	case discardCheckpoint:
		o.clearResumeToken(ctx)
	}

	err := o.attachFeed(ctx, discardCheckpoint)
	if err != nil {
		o.setLastErr(err)
		o.setState(StateDetached)
		lg.Error(err, "Reattach change feed")
	}
}

func (o *Orchestrator) clearResumeToken(ctx context.Context) {
	o.lock.Lock()
	o.resumeToken = nil
	o.lock.Unlock()

	err := o.tokens.Clear(ctx, o.coll)
	if err != nil {
		log.New("slink").With(log.Coll(o.coll)).Error(err, "Clear resume token")
	}
}
