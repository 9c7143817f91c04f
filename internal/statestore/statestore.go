// Package statestore is an explicit get/set/subscribe container for
// process-wide mutable state. A subset of keys can be marked persistent;
// only those cross the serialization boundary in Snapshot and Restore.
package statestore

import (
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// Change describes one mutation, delivered to subscribers.
type Change struct {
	Key   string
	Value any
}

// Store holds named values with change notification.
type Store struct {
	mu         sync.RWMutex
	values     map[string]any
	persistent map[string]bool

	subMu  sync.Mutex
	subs   map[int]chan Change
	nextID int
}

// New constructs an empty store.
func New() *Store {
	return &Store{
		values:     make(map[string]any),
		persistent: make(map[string]bool),
		subs:       make(map[int]chan Change),
	}
}

// Set stores a value and notifies subscribers.
func (s *Store) Set(key string, value any) {
	s.set(key, value, false)
}

// SetPersistent stores a value included in snapshots.
func (s *Store) SetPersistent(key string, value any) {
	s.set(key, value, true)
}

func (s *Store) set(key string, value any, persist bool) {
	if key == "" {
		return
	}
	s.mu.Lock()
	s.values[key] = value
	if persist {
		s.persistent[key] = true
	}
	s.mu.Unlock()
	s.notify(Change{Key: key, Value: value})
}

// Get returns a stored value.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Delete removes a key.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	delete(s.values, key)
	delete(s.persistent, key)
	s.mu.Unlock()
	s.notify(Change{Key: key, Value: nil})
}

// Keys returns sorted keys matching a prefix.
func (s *Store) Keys(prefix string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []string
	for k := range s.values {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Subscribe registers a change listener. Deliveries to a full channel
// are dropped rather than blocking writers.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Change, buffer)
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	cancel := func() {
		s.subMu.Lock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
		s.subMu.Unlock()
	}
	return ch, cancel
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- change:
		default:
		}
	}
}

// Snapshot serializes only the persistent subset.
func (s *Store) Snapshot() ([]byte, error) {
	s.mu.RLock()
	subset := make(map[string]any, len(s.persistent))
	for k := range s.persistent {
		if v, ok := s.values[k]; ok {
			subset[k] = v
		}
	}
	s.mu.RUnlock()
	return json.Marshal(subset)
}

// Restore loads a snapshot. Restored keys are persistent; values decode
// as generic JSON.
func (s *Store) Restore(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var subset map[string]json.RawMessage
	if err := json.Unmarshal(data, &subset); err != nil {
		return err
	}
	for k, raw := range subset {
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return err
		}
		s.SetPersistent(k, v)
	}
	return nil
}
