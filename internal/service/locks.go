package service

import (
	"sync"

	"github.com/Harshitk-cp/synapse/internal/domain"
)

// projectLocks serializes maintenance operations per project so that
// decay, prune and cleanup report accurate affected counts.
type projectLocks struct {
	mu    sync.Mutex
	locks map[domain.ProjectID]*sync.Mutex
}

func newProjectLocks() *projectLocks {
	return &projectLocks{locks: make(map[domain.ProjectID]*sync.Mutex)}
}

// lock acquires the mutex for projectID and returns its release func.
func (p *projectLocks) lock(projectID domain.ProjectID) func() {
	p.mu.Lock()
	m, ok := p.locks[projectID]
	if !ok {
		m = &sync.Mutex{}
		p.locks[projectID] = m
	}
	p.mu.Unlock()

	m.Lock()
	return m.Unlock
}
