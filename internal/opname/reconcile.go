package opname

import (
	"strings"

	"github.com/google/uuid"
)

// BuildSnapshot copies the expected units into snapshot items.  Every item
// starts as missing and flips to match when its identifier is scanned.  A
// repeated identifier is a data-integrity violation and is reported, not
// deduplicated.
func BuildSnapshot(sessionID uuid.UUID, expected []ExpectedUnit) ([]SnapshotItem, error) {
	seen := make(map[string]struct{}, len(expected))
	var dups []string
	items := make([]SnapshotItem, 0, len(expected))

	for i, u := range expected {
		imei := strings.TrimSpace(u.IMEI)
		if imei == "" {
			return nil, invalidInput("expected unit " + u.UnitID + " has no identifier")
		}
		if _, ok := seen[imei]; ok {
			dups = append(dups, imei)
			continue
		}
		seen[imei] = struct{}{}

		items = append(items, SnapshotItem{
			ID:           uuid.New(),
			SessionID:    sessionID,
			Position:     i,
			UnitID:       u.UnitID,
			IMEI:         imei,
			ProductLabel: u.ProductLabel,
			SellingPrice: u.SellingPrice,
			CostPrice:    u.CostPrice,
			StockStatus:  u.StockStatus,
			ScanResult:   SnapshotMissing,
		})
	}

	if len(dups) > 0 {
		return nil, &ValidationError{Kind: KindDuplicateExpectedIdentifier, ItemIDs: dups}
	}
	return items, nil
}

// Classification is the result of comparing expected identifiers against a
// scan sequence without building a session.
type Classification struct {
	Match        []string `json:"match"`
	Missing      []string `json:"missing"`
	Unregistered []string `json:"unregistered"`
}

// Classify runs the reconciliation over bare identifiers.  Expected order is
// kept for match and missing, scan order for unregistered.  Repeated scans
// count once.
func Classify(expected, scans []string) (Classification, error) {
	pending := make(map[string]bool, len(expected))
	for _, id := range expected {
		if _, ok := pending[id]; ok {
			return Classification{}, &ValidationError{Kind: KindDuplicateExpectedIdentifier, ItemIDs: []string{id}}
		}
		pending[id] = true
	}

	var c Classification
	unregistered := make(map[string]struct{})
	for _, id := range scans {
		if still, ok := pending[id]; ok {
			if still {
				pending[id] = false
			}
			continue
		}
		if _, ok := unregistered[id]; ok {
			continue
		}
		unregistered[id] = struct{}{}
		c.Unregistered = append(c.Unregistered, id)
	}

	for _, id := range expected {
		if pending[id] {
			c.Missing = append(c.Missing, id)
		} else {
			c.Match = append(c.Match, id)
		}
	}
	return c, nil
}
