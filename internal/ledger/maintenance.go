package ledger

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/dgraph-io/badger"
)

// Maintainer runs periodic value-log garbage collection for a Badger
// substrate. Badger never rewrites value-log files on its own, so every
// superseded certificate edition would otherwise stay on disk for the
// life of the process.
type Maintainer struct {
	sub      *BadgerSubstrate
	interval time.Duration
}

// NewMaintainer creates a Maintainer that collects every interval.
// A non-positive interval falls back to five minutes.
func NewMaintainer(sub *BadgerSubstrate, interval time.Duration) *Maintainer {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Maintainer{sub: sub, interval: interval}
}

// Run starts the collection loop. It exits when ctx is cancelled.
// Errors are logged but never panic.
//
// Intended to be called as: go m.Run(ctx)
func (m *Maintainer) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[maintenance] context cancelled, stopping")
			return
		case <-ticker.C:
		}
		m.runOnce()
	}
}

// runOnce rewrites value-log files until Badger reports nothing left
// worth collecting. Each successful call reclaims at most one file, so
// loop until ErrNoRewrite.
func (m *Maintainer) runOnce() {
	for {
		err := m.sub.db.RunValueLogGC(0.5)
		switch {
		case err == nil:
			log.Printf("[maintenance] reclaimed a value log file")
		case errors.Is(err, badger.ErrNoRewrite):
			return
		case errors.Is(err, badger.ErrRejected):
			// GC already in flight or the store is closing.
			return
		default:
			log.Printf("[maintenance] value log gc: %v", err)
			return
		}
	}
}
