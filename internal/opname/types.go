// Package opname models a stock-count session: the expected snapshot, the
// scans against it, the dispositions of every discrepancy and the
// draft -> completed -> approved -> locked lifecycle.
package opname

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SessionType is fixed when the session is opened.
type SessionType string

const (
	SessionTypeOpening SessionType = "opening"
	SessionTypeClosing SessionType = "closing"
	SessionTypeAdhoc   SessionType = "adhoc"
)

// ParseSessionType validates a raw session type.
func ParseSessionType(raw string) (SessionType, error) {
	switch t := SessionType(raw); t {
	case SessionTypeOpening, SessionTypeClosing, SessionTypeAdhoc:
		return t, nil
	}
	return "", invalidInput(fmt.Sprintf("unknown session type %q", raw))
}

// SessionStatus moves strictly forward: draft -> completed -> approved -> locked.
type SessionStatus string

const (
	StatusDraft     SessionStatus = "draft"
	StatusCompleted SessionStatus = "completed"
	StatusApproved  SessionStatus = "approved"
	StatusLocked    SessionStatus = "locked"
)

// ParseSessionStatus validates a raw status.
func ParseSessionStatus(raw string) (SessionStatus, error) {
	switch s := SessionStatus(raw); s {
	case StatusDraft, StatusCompleted, StatusApproved, StatusLocked:
		return s, nil
	}
	return "", invalidInput(fmt.Sprintf("unknown session status %q", raw))
}

// next returns the only status reachable from s.
func (s SessionStatus) next() (SessionStatus, bool) {
	switch s {
	case StatusDraft:
		return StatusCompleted, true
	case StatusCompleted:
		return StatusApproved, true
	case StatusApproved:
		return StatusLocked, true
	}
	return "", false
}

// SnapshotResult classifies an expected unit.
type SnapshotResult string

const (
	SnapshotMatch   SnapshotResult = "match"
	SnapshotMissing SnapshotResult = "missing"
)

// ScannedResult classifies a scan event.
type ScannedResult string

const (
	ScannedMatch        ScannedResult = "match"
	ScannedUnregistered ScannedResult = "unregistered"
)

// SnapshotAction is the disposition of a missing expected unit.
type SnapshotAction string

const (
	ActionSoldTokopedia SnapshotAction = "sold_ecommerce_tokopedia"
	ActionSoldShopee    SnapshotAction = "sold_ecommerce_shopee"
	ActionService       SnapshotAction = "service"
	ActionLost          SnapshotAction = "lost"
	ActionAvailable     SnapshotAction = "available"
)

// SnapshotActions lists every snapshot-side disposition.
var SnapshotActions = []SnapshotAction{
	ActionSoldTokopedia, ActionSoldShopee, ActionService, ActionLost, ActionAvailable,
}

func (a SnapshotAction) valid() bool {
	for _, v := range SnapshotActions {
		if v == a {
			return true
		}
	}
	return false
}

// Sold reports whether the action records a marketplace sale.
func (a SnapshotAction) Sold() bool {
	return a == ActionSoldTokopedia || a == ActionSoldShopee
}

// Channel is the marketplace a sold action refers to.
func (a SnapshotAction) Channel() string {
	switch a {
	case ActionSoldTokopedia:
		return "tokopedia"
	case ActionSoldShopee:
		return "shopee"
	}
	return ""
}

// ScannedAction is the disposition of an unregistered scan.
type ScannedAction string

const (
	ActionAddToStock ScannedAction = "add_to_stock"
	ActionMarkReturn ScannedAction = "mark_return"
	ActionIgnore     ScannedAction = "ignore"
)

// ScannedActions lists every scanned-side disposition.
var ScannedActions = []ScannedAction{ActionAddToStock, ActionMarkReturn, ActionIgnore}

func (a ScannedAction) valid() bool {
	for _, v := range ScannedActions {
		if v == a {
			return true
		}
	}
	return false
}

// ExpectedUnit is one inventory unit as reported by the inventory system when
// a session opens.
type ExpectedUnit struct {
	UnitID       string          `json:"unit_id"`
	IMEI         string          `json:"imei"`
	ProductLabel string          `json:"product_label"`
	SellingPrice decimal.Decimal `json:"selling_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	StockStatus  string          `json:"stock_status"`
}

// ScanEvent is one physical scan.
type ScanEvent struct {
	IMEI      string    `json:"imei"`
	ScannedBy string    `json:"scanned_by"`
	At        time.Time `json:"at"`
}

// ScanKind describes what a scan did to the session.
type ScanKind string

const (
	ScanMatched               ScanKind = "matched"
	ScanReopened              ScanKind = "reopened"
	ScanDuplicateMatch        ScanKind = "duplicate_match"
	ScanUnregistered          ScanKind = "unregistered"
	ScanDuplicateUnregistered ScanKind = "duplicate_unregistered"
)

// ScanOutcome is returned for every processed scan event.
type ScanOutcome struct {
	Kind           ScanKind   `json:"kind"`
	IMEI           string     `json:"imei"`
	SnapshotItemID *uuid.UUID `json:"snapshot_item_id,omitempty"`
	ScannedItemID  *uuid.UUID `json:"scanned_item_id,omitempty"`
}

// Duplicate reports whether the scan left the session unchanged.
func (o ScanOutcome) Duplicate() bool {
	return o.Kind == ScanDuplicateMatch || o.Kind == ScanDuplicateUnregistered
}
