package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"resume-forge/internal/domain"
)

const (
	DefaultKeyPrefix = "resumeforge:"

	jobsKey     = "jobs"
	settingsKey = "settings"

	maxTxRetries = 10
)

// RedisStore keeps the job history as one JSON list document so that every
// mutation is a whole-record read-modify-write under WATCH.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	opts   Options
}

func NewRedisStore(client redis.UniversalClient, prefix string, opts Options) *RedisStore {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, opts: opts.withDefaults()}
}

func (s *RedisStore) jobsKey() string     { return s.prefix + jobsKey }
func (s *RedisStore) settingsKey() string { return s.prefix + settingsKey }

func (s *RedisStore) load(ctx context.Context, getter redis.Cmdable) ([]*domain.Job, error) {
	data, err := getter.Get(ctx, s.jobsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get jobs: %w", err)
	}
	var jobs []*domain.Job
	if err := json.Unmarshal(data, &jobs); err != nil {
		return nil, fmt.Errorf("unmarshal jobs: %w", err)
	}
	return jobs, nil
}

// update runs fn over the stored list inside an optimistic transaction.
// fn returns the new list and whether anything changed.
func (s *RedisStore) update(ctx context.Context, fn func([]*domain.Job) ([]*domain.Job, bool)) error {
	key := s.jobsKey()
	txf := func(tx *redis.Tx) error {
		jobs, err := s.load(ctx, tx)
		if err != nil {
			return err
		}
		next, changed := fn(jobs)
		if !changed {
			return nil
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal jobs: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("redis update jobs: too many concurrent writers")
}

func (s *RedisStore) Create(ctx context.Context, originText, originContext string) (*domain.Job, error) {
	j := domain.NewJob(s.opts.NewID(), originText, originContext, s.opts.Now())
	err := s.update(ctx, func(jobs []*domain.Job) ([]*domain.Job, bool) {
		next := append([]*domain.Job{j}, jobs...)
		if len(next) > s.opts.MaxHistory {
			next = next[:s.opts.MaxHistory]
		}
		return next, true
	})
	if err != nil {
		return nil, err
	}
	return j.Clone(), nil
}

func (s *RedisStore) Transition(ctx context.Context, id string, u domain.JobUpdate) (*domain.Job, error) {
	var out *domain.Job
	err := s.update(ctx, func(jobs []*domain.Job) ([]*domain.Job, bool) {
		out = nil
		for _, j := range jobs {
			if j.ID == id {
				u.Apply(j, s.opts.Now())
				out = j.Clone()
				return jobs, true
			}
		}
		return jobs, false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	jobs, err := s.load(ctx, s.client)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.ID == id {
			return j, nil
		}
	}
	return nil, nil
}

func (s *RedisStore) List(ctx context.Context) ([]domain.Job, error) {
	jobs, err := s.load(ctx, s.client)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, *j)
	}
	return out, nil
}

func (s *RedisStore) EvictOldest(ctx context.Context, max int) error {
	if max < 0 {
		max = 0
	}
	return s.update(ctx, func(jobs []*domain.Job) ([]*domain.Job, bool) {
		if len(jobs) <= max {
			return jobs, false
		}
		return jobs[:max], true
	})
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	return s.client.Del(ctx, s.jobsKey()).Err()
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.update(ctx, func(jobs []*domain.Job) ([]*domain.Job, bool) {
		for i, j := range jobs {
			if j.ID == id {
				return append(jobs[:i], jobs[i+1:]...), true
			}
		}
		return jobs, false
	})
}

// Settings returns the settings half of the store.
func (s *RedisStore) Settings() *RedisSettings {
	return &RedisSettings{store: s}
}

// RedisSettings stores the settings record as one JSON value.
type RedisSettings struct {
	store *RedisStore
}

func (r *RedisSettings) Get(ctx context.Context) (domain.Settings, error) {
	var st domain.Settings
	data, err := r.store.client.Get(ctx, r.store.settingsKey()).Bytes()
	if errors.Is(err, redis.Nil) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("redis get settings: %w", err)
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("unmarshal settings: %w", err)
	}
	return st, nil
}

func (r *RedisSettings) Set(ctx context.Context, st domain.Settings) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	return r.store.client.Set(ctx, r.store.settingsKey(), data, 0).Err()
}

func (r *RedisSettings) Remove(ctx context.Context) error {
	return r.store.client.Del(ctx, r.store.settingsKey()).Err()
}
