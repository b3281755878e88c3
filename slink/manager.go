package slink

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/searchlink/searchlink/log"
)

// Manager owns the orchestrators of all replicated collections and the
// process-wide pause gate for their bootstrap dumps.
type Manager struct {
	gate  *Gate
	orchs []*Orchestrator
}

func NewManager(gate *Gate) *Manager {
	return &Manager{gate: gate}
}

func (m *Manager) Add(o *Orchestrator) {
	m.orchs = append(m.orchs, o)
}

// Run starts all orchestrators and returns once every collection has
// finished its startup sequence. A failed collection is logged and
// reported in its status without stopping the others. The change feeds
// keep running in the background.
func (m *Manager) Run(ctx context.Context) error {
	lg := log.New("slink")

	grp, grpCtx := errgroup.WithContext(ctx)

	for _, o := range m.orchs {
		o := o
		grp.Go(func() error {
			err := o.Run(grpCtx)
			if err != nil {
				lg.With(log.Coll(o.Collection())).Error(err, "Start replication")
			}

			return nil
		})
	}

	err := grp.Wait()
	if err != nil {
		return err //nolint:wrapcheck
	}

	return ctx.Err() //nolint:wrapcheck
}

// Shutdown detaches all change feeds, persisting their resume tokens.
func (m *Manager) Shutdown(ctx context.Context) {
	for _, o := range m.orchs {
		o.Shutdown(ctx)
	}
}

// PauseAllBootstraps suspends every in-flight bootstrap dump.
func (m *Manager) PauseAllBootstraps() {
	m.gate.Pause()
}

// ResumeAllBootstraps resumes previously paused bootstrap dumps.
func (m *Manager) ResumeAllBootstraps() {
	m.gate.Resume()
}

// Paused reports whether bootstrap dumps are currently paused.
func (m *Manager) Paused() bool {
	return m.gate.Paused()
}

// Statuses returns a snapshot of every collection's replication state.
func (m *Manager) Statuses() []Status {
	statuses := make([]Status, 0, len(m.orchs))
	for _, o := range m.orchs {
		statuses = append(statuses, o.Status())
	}

	return statuses
}
