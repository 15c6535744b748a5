package integration

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepository keeps configurations in process. It backs the engine when
// no document store is wired and in unit tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	configs map[string]Configuration
}

func NewMemoryRepository(configs ...Configuration) *MemoryRepository {
	r := &MemoryRepository{configs: make(map[string]Configuration, len(configs))}
	for _, c := range configs {
		r.configs[c.ID] = c
	}
	return r
}

func (r *MemoryRepository) Put(cfg Configuration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.ID] = cfg
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		return nil, nil
	}
	cfg.History = append([]ExecutionLog(nil), cfg.History...)
	return &cfg, nil
}

func (r *MemoryRepository) List(_ context.Context) ([]Configuration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Configuration, 0, len(r.configs))
	for _, c := range r.configs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryRepository) AppendExecutionLog(_ context.Context, id string, entry ExecutionLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.configs[id]
	if !ok {
		return errNotFound(id)
	}
	cfg.AppendLog(entry)
	r.configs[id] = cfg
	return nil
}
