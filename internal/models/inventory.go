package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockStatus is where a physical unit stands in the shop.
type StockStatus string

const (
	StockAvailable     StockStatus = "available"
	StockSold          StockStatus = "sold"
	StockService       StockStatus = "service"
	StockLost          StockStatus = "lost"
	StockReturnPending StockStatus = "return_pending"
)

// InStockStatuses are the statuses a stock count expects to find on the
// shelf.
var InStockStatuses = []StockStatus{StockAvailable, StockReturnPending}

// InventoryUnit is one serialised handset or gadget, keyed by IMEI.
type InventoryUnit struct {
	ID              string          `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	IMEI            string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"imei"`
	ProductLabel    string          `gorm:"not null" json:"product_label"`
	SellingPrice    decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"selling_price"`
	CostPrice       decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"cost_price"`
	StockStatus     StockStatus     `gorm:"type:varchar(32);not null;default:'available';index" json:"stock_status"`
	SoldChannel     string          `gorm:"type:varchar(32)" json:"sold_channel,omitempty"`
	SoldReferenceID string          `gorm:"type:varchar(128)" json:"sold_reference_id,omitempty"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	OdooLotID       *int64          `gorm:"index" json:"odoo_lot_id,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (InventoryUnit) TableName() string { return "inventory_units" }
