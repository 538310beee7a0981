package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/opname"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const batchSize = 500

var (
	snapshotMutable = []string{"scan_result", "action_taken", "action_notes", "sold_reference_id", "scanned_at", "mutation_applied_at"}
	scannedMutable  = []string{"action_taken", "action_notes", "mutation_applied_at"}
)

// GormStore keeps sessions in postgres.
type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Models lists the tables the store needs migrated.
func Models() []interface{} {
	return []interface{}{&opname.Session{}, &opname.SnapshotItem{}, &opname.ScannedItem{}}
}

func (g *GormStore) Create(ctx context.Context, s *opname.Session) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(s).Error; err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		if len(s.SnapshotItems) > 0 {
			if err := tx.CreateInBatches(s.SnapshotItems, batchSize).Error; err != nil {
				return fmt.Errorf("create snapshot items: %w", err)
			}
		}
		if len(s.ScannedItems) > 0 {
			if err := tx.CreateInBatches(s.ScannedItems, batchSize).Error; err != nil {
				return fmt.Errorf("create scanned items: %w", err)
			}
		}
		return nil
	})
}

func (g *GormStore) Get(ctx context.Context, id uuid.UUID) (*opname.Session, error) {
	var s opname.Session
	err := g.db.WithContext(ctx).
		Preload("SnapshotItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("ScannedItems", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", id, err)
	}
	return &s, nil
}

func (g *GormStore) List(ctx context.Context, f ListFilter) ([]opname.Session, int64, error) {
	q := g.db.WithContext(ctx).Model(&opname.Session{})
	if f.Status != "" {
		q = q.Where("session_status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("session_type = ?", f.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}

	var sessions []opname.Session
	if err := q.Order("started_at DESC").Limit(f.limit()).Offset(f.Offset).Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, total, nil
}

func (g *GormStore) Save(ctx context.Context, s *opname.Session) error {
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&opname.Session{}).
			Where("id = ? AND version = ? AND session_status <> ?", s.ID, s.Version, opname.StatusLocked).
			Updates(map[string]interface{}{
				"session_status":     s.SessionStatus,
				"notes":              s.Notes,
				"total_expected":     s.TotalExpected,
				"total_scanned":      s.TotalScanned,
				"total_match":        s.TotalMatch,
				"total_missing":      s.TotalMissing,
				"total_unregistered": s.TotalUnregistered,
				"completed_at":       s.CompletedAt,
				"approved_at":        s.ApprovedAt,
				"locked_at":          s.LockedAt,
				"approved_by":        s.ApprovedBy,
				"version":            gorm.Expr("version + 1"),
				"updated_at":         time.Now().UTC(),
			})
		if res.Error != nil {
			return fmt.Errorf("update session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return g.saveRejected(tx, s.ID)
		}

		if len(s.SnapshotItems) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(snapshotMutable),
			}).CreateInBatches(s.SnapshotItems, batchSize).Error; err != nil {
				return fmt.Errorf("save snapshot items: %w", err)
			}
		}
		if len(s.ScannedItems) > 0 {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				DoUpdates: clause.AssignmentColumns(scannedMutable),
			}).CreateInBatches(s.ScannedItems, batchSize).Error; err != nil {
				return fmt.Errorf("save scanned items: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.Version++
	return nil
}

// saveRejected tells a missing, locked and concurrently modified session
// apart.
func (g *GormStore) saveRejected(tx *gorm.DB, id uuid.UUID) error {
	var current opname.Session
	err := tx.Select("id", "session_status", "version").First(&current, "id = ?", id).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case err != nil:
		return fmt.Errorf("reload session %s: %w", id, err)
	case current.SessionStatus == opname.StatusLocked:
		return ErrLocked
	}
	return ErrConflict
}
