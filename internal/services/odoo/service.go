package odoo

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MirrorService keeps inventory_units in step with the lots in Odoo so unit
// lookups, labels and reports work without a round trip to the ERP.
type MirrorService struct {
	client   *Client
	db       *gorm.DB
	interval time.Duration
	log      logrus.FieldLogger
	stop     chan struct{}
	once     sync.Once

	mu    sync.Mutex
	since string
}

// NewMirrorService creates the background mirror.
func NewMirrorService(db *gorm.DB, client *Client, interval time.Duration, log logrus.FieldLogger) *MirrorService {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &MirrorService{
		client:   client,
		db:       db,
		interval: interval,
		log:      log.WithField("module", "odoo"),
		stop:     make(chan struct{}),
		since:    "2000-01-01 00:00:00",
	}
}

// Start begins the background synchronization loop
func (s *MirrorService) Start() {
	go func() {
		s.log.Info("Odoo mirror started")
		if _, err := s.client.Authenticate(); err != nil {
			config.LogError(s.log, "odoo", "Start", "authenticate", nil, err)
			return
		}

		s.runOnce()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce()
			case <-s.stop:
				s.log.Info("Odoo mirror stopped")
				return
			}
		}
	}()
}

// Stop halts the service
func (s *MirrorService) Stop() {
	s.once.Do(func() { close(s.stop) })
}

func (s *MirrorService) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()
	n, err := s.SyncOnce(ctx)
	if err != nil {
		config.LogError(s.log, "odoo", "SyncOnce", "mirror lots", nil, err)
		return
	}
	s.log.WithField("lots", n).Debug("Odoo mirror pass done")
}

// SyncOnce copies every lot written since the previous pass.
func (s *MirrorService) SyncOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	since := s.since
	s.mu.Unlock()

	domain := []interface{}{
		[]interface{}{"write_date", ">", since},
	}
	var lots []Lot
	if err := s.client.SearchRead(lotModel, domain, lotFields, 1000, 0, &lots); err != nil {
		return 0, err
	}

	count := 0
	latest := since
	for _, lot := range lots {
		if lot.Name == "" {
			continue
		}
		unit := UnitFromLot(lot)
		if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "imei"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"product_label", "selling_price", "cost_price", "stock_status",
				"sold_channel", "sold_reference_id", "odoo_lot_id", "updated_at",
			}),
		}).Create(&unit).Error; err != nil {
			s.log.WithError(err).WithField("lot", lot.ID).Warn("failed to mirror lot")
			continue
		}
		count++
		if w := lot.WriteDate.String(); w > latest {
			latest = w
		}
	}

	s.mu.Lock()
	s.since = latest
	s.mu.Unlock()
	return count, nil
}

// UnitFromLot maps an Odoo lot onto the local unit table.
func UnitFromLot(l Lot) models.InventoryUnit {
	lotID := l.ID
	status := models.StockStatus(l.StockStatus)
	if status == "" {
		status = models.StockAvailable
	}
	label := l.Product.Name
	if label == "" {
		label = "Odoo lot " + strconv.FormatInt(l.ID, 10)
	}
	return models.InventoryUnit{
		IMEI:            l.Name.String(),
		ProductLabel:    label,
		SellingPrice:    decimal.NewFromFloat(l.SellingPrice).Round(2),
		CostPrice:       decimal.NewFromFloat(l.CostPrice).Round(2),
		StockStatus:     status,
		SoldChannel:     l.SoldChannel.String(),
		SoldReferenceID: l.SoldReference.String(),
		OdooLotID:       &lotID,
	}
}
