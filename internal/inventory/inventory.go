// Package inventory is the stock side of a count: it lists the units a count
// expects and applies the stock changes an approved count calls for.
package inventory

import (
	"context"
	"errors"

	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/opname"
)

var ErrUnitNotFound = errors.New("inventory: unit not found")

// Collaborator is what the opname service needs from the stock system.
type Collaborator interface {
	// ExpectedUnits lists every unit currently expected on the shelf.
	ExpectedUnits(ctx context.Context) ([]opname.ExpectedUnit, error)
	// Apply performs one disposition mutation. It must be safe to repeat.
	Apply(ctx context.Context, m opname.Mutation) error
}

// StatusFor maps a mutation to the stock status it leaves the unit in.
func StatusFor(kind opname.MutationKind) (models.StockStatus, bool) {
	switch kind {
	case opname.MutationMarkSold:
		return models.StockSold, true
	case opname.MutationMarkInService:
		return models.StockService, true
	case opname.MutationWriteOff:
		return models.StockLost, true
	case opname.MutationCreateUnit:
		return models.StockAvailable, true
	case opname.MutationFlagReturn:
		return models.StockReturnPending, true
	}
	return "", false
}

// UnregisteredLabel names a unit created from an unregistered scan until
// someone edits it.
func UnregisteredLabel(imei string) string {
	return "Unregistered unit (" + imei + ")"
}

// ToExpected converts a stored unit.
func ToExpected(u models.InventoryUnit) opname.ExpectedUnit {
	return opname.ExpectedUnit{
		UnitID:       u.ID,
		IMEI:         u.IMEI,
		ProductLabel: u.ProductLabel,
		SellingPrice: u.SellingPrice,
		CostPrice:    u.CostPrice,
		StockStatus:  string(u.StockStatus),
	}
}
