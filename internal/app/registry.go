package app

import (
	"fmt"
	"sort"
	"sync"

	"dragonsea/internal/domain"
)

// table is one live session. mu serializes every read and write of game
// and decisions; closed is set once the session leaves the registry.
type table struct {
	mu        sync.Mutex
	key       string
	game      *domain.Game
	decisions *domain.DecisionBook
	closed    bool
}

// Registry maps session keys to live sessions. Its lock only guards the
// map; per-session work happens under each table's own lock.
type Registry struct {
	mu     sync.RWMutex
	tables map[string]*table
}

func NewRegistry() *Registry {
	return &Registry{tables: make(map[string]*table)}
}

func (r *Registry) insert(t *table) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tables[t.key]; ok {
		return fmt.Errorf("%w: %s", domain.ErrSessionAlreadyExists, t.key)
	}
	r.tables[t.key] = t
	return nil
}

func (r *Registry) get(key string) (*table, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tables[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuchSession, key)
	}
	return t, nil
}

// remove deregisters t if it is still the table registered under its key.
func (r *Registry) remove(t *table) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.tables[t.key] == t {
		delete(r.tables, t.key)
	}
}

func (r *Registry) has(key string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tables[key]
	return ok
}

// Keys returns the registered session keys in sorted order.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	keys := make([]string, 0, len(r.tables))
	for k := range r.tables {
		keys = append(keys, k)
	}
	r.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
