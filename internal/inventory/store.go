package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/opname"
	"gorm.io/gorm"
)

// Store is the local inventory kept in the inventory_units table.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// ListFilter narrows List. Query matches IMEI or product label.
type ListFilter struct {
	Status models.StockStatus
	Query  string
	Limit  int
	Offset int
}

func (s *Store) ExpectedUnits(ctx context.Context) ([]opname.ExpectedUnit, error) {
	var units []models.InventoryUnit
	if err := s.db.WithContext(ctx).
		Where("stock_status IN ?", models.InStockStatuses).
		Order("imei").
		Find(&units).Error; err != nil {
		return nil, fmt.Errorf("load expected units: %w", err)
	}
	out := make([]opname.ExpectedUnit, 0, len(units))
	for _, u := range units {
		out = append(out, ToExpected(u))
	}
	return out, nil
}

func (s *Store) List(ctx context.Context, f ListFilter) ([]models.InventoryUnit, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.InventoryUnit{})
	if f.Status != "" {
		q = q.Where("stock_status = ?", f.Status)
	}
	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("imei ILIKE ? OR product_label ILIKE ?", like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}

	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var units []models.InventoryUnit
	if err := q.Order("created_at DESC").Limit(limit).Offset(f.Offset).Find(&units).Error; err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}
	return units, total, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.InventoryUnit, error) {
	var u models.InventoryUnit
	err := s.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUnitNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetMany returns the units with the given ids, in no particular order.
func (s *Store) GetMany(ctx context.Context, ids []string) ([]models.InventoryUnit, error) {
	var units []models.InventoryUnit
	if len(ids) == 0 {
		return units, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&units).Error; err != nil {
		return nil, err
	}
	return units, nil
}

func (s *Store) Create(ctx context.Context, u *models.InventoryUnit) error {
	return s.db.WithContext(ctx).Create(u).Error
}

func (s *Store) Apply(ctx context.Context, m opname.Mutation) error {
	status, ok := StatusFor(m.Kind)
	if !ok {
		return nil
	}

	switch m.Kind {
	case opname.MutationCreateUnit, opname.MutationFlagReturn:
		return s.upsertByIMEI(ctx, m, status)
	}

	values := map[string]interface{}{"stock_status": status}
	if m.Kind == opname.MutationMarkSold {
		values["sold_channel"] = m.Channel
		values["sold_reference_id"] = m.SoldReferenceID
	}
	if m.Notes != "" {
		values["notes"] = m.Notes
	}

	res := s.db.WithContext(ctx).Model(&models.InventoryUnit{}).Where("id = ?", m.UnitID).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("apply %s to unit %s: %w", m.Kind, m.UnitID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrUnitNotFound, m.UnitID)
	}
	return nil
}

// upsertByIMEI onboards a unit found during a count, or moves an existing
// record when the IMEI is already known.
func (s *Store) upsertByIMEI(ctx context.Context, m opname.Mutation, status models.StockStatus) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u models.InventoryUnit
		err := tx.Where("imei = ?", m.IMEI).First(&u).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			u = models.InventoryUnit{
				IMEI:         m.IMEI,
				ProductLabel: UnregisteredLabel(m.IMEI),
				StockStatus:  status,
				Notes:        m.Notes,
			}
			return tx.Create(&u).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&u).Updates(map[string]interface{}{
			"stock_status": status,
			"updated_at":   time.Now().UTC(),
		}).Error
	})
}
