package scheduler

import (
	"sync"

	"reportharness/internal/results"
)

type progress struct {
	mu       sync.Mutex
	finished int
	total    int
	notify   func(done, total int, ledger *results.Ledger)
}

func newProgress(total int, notify func(done, total int, ledger *results.Ledger)) *progress {
	return &progress{total: total, notify: notify}
}

func (p *progress) done(l *results.Ledger) {
	if p.notify == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished++
	p.notify(p.finished, p.total, l)
}
