package opname

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MutationKind is the change the inventory system has to make for a
// disposition.
type MutationKind string

const (
	MutationNone          MutationKind = "none"
	MutationMarkSold      MutationKind = "mark_sold"
	MutationMarkInService MutationKind = "mark_in_service"
	MutationWriteOff      MutationKind = "write_off"
	MutationCreateUnit    MutationKind = "create_unit"
	MutationFlagReturn    MutationKind = "flag_return"
)

// ItemSide tells which item set a mutation came from.
type ItemSide string

const (
	SideSnapshot ItemSide = "snapshot"
	SideScanned  ItemSide = "scanned"
)

// Mutation describes what the caller must do against the inventory system.
// The resolver only decides; it never performs the change.
type Mutation struct {
	Kind            MutationKind `json:"kind"`
	Action          string       `json:"action"`
	Side            ItemSide     `json:"side"`
	ItemID          uuid.UUID    `json:"item_id"`
	UnitID          string       `json:"unit_id,omitempty"`
	IMEI            string       `json:"imei"`
	ProductLabel    string       `json:"product_label,omitempty"`
	Channel         string       `json:"channel,omitempty"`
	SoldReferenceID string       `json:"sold_reference_id,omitempty"`
	Notes           string       `json:"notes,omitempty"`
}

// Required reports whether the inventory system has to be called.
func (m Mutation) Required() bool {
	return m.Kind != MutationNone && m.Kind != ""
}

// Classified is implemented by both item kinds.
type Classified interface {
	classified() ItemSide
}

func (SnapshotItem) classified() ItemSide { return SideSnapshot }
func (ScannedItem) classified() ItemSide  { return SideScanned }

// Resolve validates action against the permitted set for the item's scan
// result and returns the required inventory mutation.
func Resolve(item Classified, action, soldReferenceID string) (Mutation, error) {
	switch it := item.(type) {
	case SnapshotItem:
		return ResolveSnapshot(it, SnapshotAction(action), soldReferenceID)
	case *SnapshotItem:
		return ResolveSnapshot(*it, SnapshotAction(action), soldReferenceID)
	case ScannedItem:
		return ResolveScanned(it, ScannedAction(action))
	case *ScannedItem:
		return ResolveScanned(*it, ScannedAction(action))
	}
	return Mutation{}, invalidInput(fmt.Sprintf("unsupported item %T", item))
}

// ResolveSnapshot handles a missing expected unit.
func ResolveSnapshot(item SnapshotItem, action SnapshotAction, soldReferenceID string) (Mutation, error) {
	if item.ScanResult != SnapshotMissing || !action.valid() {
		return Mutation{}, notPermitted(string(action), SideSnapshot, string(item.ScanResult), item.IMEI)
	}

	m := Mutation{
		Kind:         MutationNone,
		Action:       string(action),
		Side:         SideSnapshot,
		ItemID:       item.ID,
		UnitID:       item.UnitID,
		IMEI:         item.IMEI,
		ProductLabel: item.ProductLabel,
	}
	switch action {
	case ActionSoldTokopedia, ActionSoldShopee:
		ref := strings.TrimSpace(soldReferenceID)
		if ref == "" {
			return Mutation{}, invalidInput("sold_reference_id is required for " + string(action))
		}
		m.Kind = MutationMarkSold
		m.Channel = action.Channel()
		m.SoldReferenceID = ref
	case ActionService:
		m.Kind = MutationMarkInService
	case ActionLost:
		m.Kind = MutationWriteOff
	case ActionAvailable:
		// operator error, the unit was on the shelf
	}
	return m, nil
}

// ResolveScanned handles an unregistered scan.
func ResolveScanned(item ScannedItem, action ScannedAction) (Mutation, error) {
	if item.ScanResult != ScannedUnregistered || !action.valid() {
		return Mutation{}, notPermitted(string(action), SideScanned, string(item.ScanResult), item.IMEI)
	}

	m := Mutation{
		Kind:   MutationNone,
		Action: string(action),
		Side:   SideScanned,
		ItemID: item.ID,
		IMEI:   item.IMEI,
	}
	switch action {
	case ActionAddToStock:
		m.Kind = MutationCreateUnit
	case ActionMarkReturn:
		m.Kind = MutationFlagReturn
	case ActionIgnore:
	}
	return m, nil
}

func notPermitted(action string, side ItemSide, result, imei string) error {
	return &ValidationError{
		Kind:    KindActionNotPermitted,
		Message: fmt.Sprintf("%q on %s item with result %q", action, side, result),
		ItemIDs: []string{imei},
	}
}
