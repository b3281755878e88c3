package slink

import (
	"context"
	"sync"
	"sync/atomic"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/searchlink/searchlink/checkpoint"
	"github.com/searchlink/searchlink/errors"
	"github.com/searchlink/searchlink/log"
)

// State is the replication state of one collection.
type State string

const (
	// StateDetached means no bootstrap is running and no change feed
	// is attached.
	StateDetached State = "detached"

	// StateBootstrapping means a bootstrap dump is in progress.
	StateBootstrapping State = "bootstrapping"

	// StateWatching means the change feed is attached and events are
	// being applied.
	StateWatching State = "watching"
)

// Orchestrator replicates one collection: it runs the bootstrap dump,
// consumes the change feed, and drives the failure/reset transitions
// between the two.
type Orchestrator struct {
	coll     string
	source   DataSource
	sink     IndexingSink
	progress *checkpoint.Progress
	tokens   checkpoint.TokenStore
	gate     *Gate

	// transitionLock serializes bootstrap runs and feed resets.
	transitionLock sync.Mutex

	lock        sync.Mutex
	state       State
	resumeToken bson.Raw
	feedCancel  context.CancelFunc
	feedDone    chan struct{}
	lastErr     error

	docsTransferred atomic.Int64
	eventsApplied   atomic.Int64
}

func NewOrchestrator(
	coll string,
	source DataSource,
	sink IndexingSink,
	progress *checkpoint.Progress,
	tokens checkpoint.TokenStore,
	gate *Gate,
) *Orchestrator {
	return &Orchestrator{
		coll:     coll,
		source:   source,
		sink:     sink,
		progress: progress,
		tokens:   tokens,
		gate:     gate,
		state:    StateDetached,
	}
}

// Collection returns the source collection name.
func (o *Orchestrator) Collection() string {
	return o.coll
}

// Run performs the startup sequence for the collection: ensure the
// target index exists, bootstrap unless a stored resume token makes it
// unnecessary, then attach the change feed. The change feed keeps
// running in the background after Run returns.
func (o *Orchestrator) Run(ctx context.Context) error {
	lg := log.New("slink").With(log.Coll(o.coll))
	ctx = lg.WithContext(ctx)

	err := o.sink.EnsureMapping(ctx, o.coll)
	if err != nil {
		o.setLastErr(err)

		return errors.Wrap(err, "ensure mapping")
	}

	token, err := o.tokens.Load(ctx, o.coll)
	if err != nil {
		lg.Errorf(err, "Load resume token for %q", o.coll)
	}

	if token != nil {
		lg.Info("Resume token found. skipping bootstrap")
		o.lock.Lock()
		o.resumeToken = token
		o.lock.Unlock()
	} else {
		o.transitionLock.Lock()
		err = o.runBootstrap(ctx, false)
		o.transitionLock.Unlock()

		if err != nil {
			o.setLastErr(err)
			o.setState(StateDetached)

			return errors.Wrap(err, "bootstrap")
		}
	}

	o.transitionLock.Lock()
	err = o.attachFeed(ctx, false)
	o.transitionLock.Unlock()

	if err != nil {
		o.setLastErr(err)
		o.setState(StateDetached)

		return errors.Wrap(err, "attach change feed")
	}

	return nil
}

// Shutdown detaches the change feed, persisting the current resume
// token so the next run continues where this one left off.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.transitionLock.Lock()
	defer o.transitionLock.Unlock()

	o.detachFeed(ctx)
	o.setState(StateDetached)
}

// Status is a point-in-time snapshot of the orchestrator.
type Status struct {
	Collection      string `json:"collection"`
	State           State  `json:"state"`
	LastDumpedID    string `json:"lastDumpedId,omitempty"`
	DocsTransferred int64  `json:"docsTransferred"`
	EventsApplied   int64  `json:"eventsApplied"`
	HasResumeToken  bool   `json:"hasResumeToken"`
	LastError       string `json:"lastError,omitempty"`
}

func (o *Orchestrator) Status() Status {
	o.lock.Lock()
	defer o.lock.Unlock()

	s := Status{
		Collection:      o.coll,
		State:           o.state,
		DocsTransferred: o.docsTransferred.Load(),
		EventsApplied:   o.eventsApplied.Load(),
		HasResumeToken:  o.resumeToken != nil,
	}

	if id := o.progress.Get(o.coll); !id.IsZero() {
		s.LastDumpedID = id.Hex()
	}
	if o.lastErr != nil {
		s.LastError = o.lastErr.Error()
	}

	return s
}

func (o *Orchestrator) setState(state State) {
	o.lock.Lock()
	o.state = state
	o.lock.Unlock()
}

func (o *Orchestrator) setLastErr(err error) {
	o.lock.Lock()
	o.lastErr = err
	o.lock.Unlock()
}
