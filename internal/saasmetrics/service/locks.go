package service

import (
	"sync"

	"github.com/opencivic/muniva/internal/saasmetrics/domain"
)

// periodLocks serializes snapshot writes per period string, so a manual
// trigger racing a reactive event for the same month cannot interleave
// reads and the upsert. Distinct periods proceed concurrently.
type periodLocks struct {
	mu    sync.Mutex
	locks map[domain.Period]*sync.Mutex
}

func newPeriodLocks() *periodLocks {
	return &periodLocks{locks: make(map[domain.Period]*sync.Mutex)}
}

func (p *periodLocks) lock(period domain.Period) func() {
	p.mu.Lock()
	lock, ok := p.locks[period]
	if !ok {
		lock = &sync.Mutex{}
		p.locks[period] = lock
	}
	p.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}
