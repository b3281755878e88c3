package slink

import (
	"context"
	"sync"

	"github.com/searchlink/searchlink/log"
	"github.com/searchlink/searchlink/metrics"
)

// Gate suspends and resumes all bootstrap dumps at once. Pausing takes
// effect at the next document-read boundary of each running dump. The
// gate does not affect change feed consumption.
type Gate struct {
	lock sync.Mutex

	// pauseCh is non-nil while the gate is paused. It is closed on
	// resume, releasing every dump blocked in Wait.
	pauseCh chan struct{}
}

func NewGate() *Gate {
	return &Gate{}
}

// Pause closes the gate. It is a no-op if the gate is already paused.
func (g *Gate) Pause() {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.pauseCh != nil {
		return
	}

	g.pauseCh = make(chan struct{})
	metrics.SetDumpsPaused(true)
	log.New("gate").Info("Dumps paused")
}

// Resume opens the gate, releasing all dumps blocked in Wait. It is a
// no-op if the gate is not paused.
func (g *Gate) Resume() {
	g.lock.Lock()
	defer g.lock.Unlock()

	if g.pauseCh == nil {
		return
	}

	close(g.pauseCh)
	g.pauseCh = nil
	metrics.SetDumpsPaused(false)
	log.New("gate").Info("Dumps resumed")
}

// Paused reports whether the gate is currently closed.
func (g *Gate) Paused() bool {
	g.lock.Lock()
	defer g.lock.Unlock()

	return g.pauseCh != nil
}

// Wait blocks until the gate is open or the context is done. It returns
// immediately if the gate is not paused.
func (g *Gate) Wait(ctx context.Context) error {
	g.lock.Lock()
	pauseCh := g.pauseCh
	g.lock.Unlock()

	if pauseCh == nil {
		return nil
	}

	select {
	case <-pauseCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
