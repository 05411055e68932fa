package usecase

import (
	"context"
	"sync"
)

// LocalRunGuard is the in-process RunGuard.
type LocalRunGuard struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewLocalRunGuard() *LocalRunGuard {
	return &LocalRunGuard{running: map[string]struct{}{}}
}

func (g *LocalRunGuard) Acquire(_ context.Context, id string) (func(), bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.running[id]; busy {
		return nil, false, nil
	}
	g.running[id] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.running, id)
			g.mu.Unlock()
		})
	}, true, nil
}
