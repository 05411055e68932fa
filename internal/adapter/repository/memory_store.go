package repository

import (
	"context"
	"sync"

	"resume-forge/internal/domain"
)

// MemoryStore keeps job history and settings in process. Jobs are held
// newest first.
type MemoryStore struct {
	mu       sync.Mutex
	opts     Options
	jobs     []*domain.Job
	settings domain.Settings
}

func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{opts: opts.withDefaults()}
}

func (s *MemoryStore) Create(ctx context.Context, originText, originContext string) (*domain.Job, error) {
	j := domain.NewJob(s.opts.NewID(), originText, originContext, s.opts.Now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append([]*domain.Job{j}, s.jobs...)
	s.evictLocked(s.opts.MaxHistory)
	return j.Clone(), nil
}

// Transition merges u into the job. It returns (nil, nil) when the job is gone.
func (s *MemoryStore) Transition(ctx context.Context, id string, u domain.JobUpdate) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			u.Apply(j, s.opts.Now())
			return j.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.ID == id {
			return j.Clone(), nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) List(ctx context.Context) ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, *j.Clone())
	}
	return out, nil
}

func (s *MemoryStore) EvictOldest(ctx context.Context, max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evictLocked(max)
	return nil
}

func (s *MemoryStore) evictLocked(max int) {
	if max < 0 {
		max = 0
	}
	if len(s.jobs) > max {
		for i := max; i < len(s.jobs); i++ {
			s.jobs[i] = nil
		}
		s.jobs = s.jobs[:max]
	}
}

func (s *MemoryStore) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = nil
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range s.jobs {
		if j.ID == id {
			s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
			return nil
		}
	}
	return nil
}

// Settings returns the settings half of the store.
func (s *MemoryStore) Settings() *MemorySettings {
	return &MemorySettings{store: s}
}

// MemorySettings adapts MemoryStore to the settings interface.
type MemorySettings struct {
	store *MemoryStore
}

func (m *MemorySettings) Get(ctx context.Context) (domain.Settings, error) {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	return m.store.settings, nil
}

func (m *MemorySettings) Set(ctx context.Context, st domain.Settings) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.settings = st
	return nil
}

func (m *MemorySettings) Remove(ctx context.Context) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	m.store.settings = domain.Settings{}
	return nil
}
