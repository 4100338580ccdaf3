package store

import "sync"

// LabelID identifies an interned label.
type LabelID uint32

// NoLabel is the LabelID of nodes without a label.
const NoLabel LabelID = 0

// LabelStore interns label strings. It is safe for concurrent use.
type LabelStore struct {
	mu     sync.RWMutex
	ids    map[string]LabelID
	labels []string
}

// NewLabelStore creates an empty label store.
func NewLabelStore() *LabelStore {
	return &LabelStore{
		ids:    make(map[string]LabelID),
		labels: []string{""},
	}
}

// GetOrInsert returns the id of s, interning it on first sight.
func (s *LabelStore) GetOrInsert(label string) LabelID {
	s.mu.RLock()
	id, ok := s.ids[label]
	s.mu.RUnlock()
	if ok {
		return id
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.ids[label]; ok {
		return id
	}
	id = LabelID(len(s.labels))
	s.labels = append(s.labels, label)
	s.ids[label] = id
	return id
}

// Get looks up a label without interning it.
func (s *LabelStore) Get(label string) (LabelID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[label]
	return id, ok
}

// Resolve returns the string behind id. NoLabel resolves to "".
func (s *LabelStore) Resolve(id LabelID) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.labels[id]
}

// Len returns the number of distinct labels.
func (s *LabelStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.labels) - 1
}
