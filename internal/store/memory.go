package store

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/opname"
)

// MemoryStore keeps cloned sessions in a map. It follows the same version and
// lock rules as GormStore.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*opname.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[uuid.UUID]*opname.Session)}
}

func (m *MemoryStore) Create(_ context.Context, s *opname.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return ErrConflict
	}
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*opname.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}

func (m *MemoryStore) List(_ context.Context, f ListFilter) ([]opname.Session, int64, error) {
	m.mu.RLock()
	var out []opname.Session
	for _, s := range m.sessions {
		if f.Status != "" && s.SessionStatus != f.Status {
			continue
		}
		if f.Type != "" && s.SessionType != f.Type {
			continue
		}
		c := s.Clone()
		c.SnapshotItems = nil
		c.ScannedItems = nil
		out = append(out, *c)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	total := int64(len(out))
	if f.Offset >= len(out) {
		return []opname.Session{}, total, nil
	}
	out = out[f.Offset:]
	if n := f.limit(); len(out) > n {
		out = out[:n]
	}
	return out, total, nil
}

func (m *MemoryStore) Save(_ context.Context, s *opname.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[s.ID]
	switch {
	case !ok:
		return ErrNotFound
	case cur.SessionStatus == opname.StatusLocked:
		return ErrLocked
	case cur.Version != s.Version:
		return ErrConflict
	}
	s.Version++
	m.sessions[s.ID] = s.Clone()
	return nil
}
