// Package store persists stock-count sessions with optimistic versioning.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/opname"
)

var (
	ErrNotFound = errors.New("store: session not found")
	// ErrConflict means the session changed since it was loaded.
	ErrConflict = errors.New("store: version conflict")
	ErrLocked   = errors.New("store: session is locked")
)

// ListFilter narrows List. Zero values mean no filter.
type ListFilter struct {
	Status opname.SessionStatus
	Type   opname.SessionType
	Limit  int
	Offset int
}

func (f ListFilter) limit() int {
	if f.Limit <= 0 || f.Limit > 200 {
		return 50
	}
	return f.Limit
}

// SessionStore loads and saves whole sessions. Save succeeds only when the
// stored version equals s.Version and then bumps s.Version.
type SessionStore interface {
	Create(ctx context.Context, s *opname.Session) error
	Get(ctx context.Context, id uuid.UUID) (*opname.Session, error)
	List(ctx context.Context, f ListFilter) ([]opname.Session, int64, error)
	Save(ctx context.Context, s *opname.Session) error
}
