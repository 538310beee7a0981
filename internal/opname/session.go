package opname

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Session is the aggregate root of one stock count.  Snapshot and scanned
// items are only created and changed through its methods.
type Session struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SessionType   SessionType   `gorm:"type:varchar(16);not null;index" json:"session_type"`
	SessionStatus SessionStatus `gorm:"type:varchar(16);not null;index" json:"session_status"`
	Notes         string        `gorm:"type:text" json:"notes"`

	TotalExpected     int `gorm:"not null;default:0" json:"total_expected"`
	TotalScanned      int `gorm:"not null;default:0" json:"total_scanned"`
	TotalMatch        int `gorm:"not null;default:0" json:"total_match"`
	TotalMissing      int `gorm:"not null;default:0" json:"total_missing"`
	TotalUnregistered int `gorm:"not null;default:0" json:"total_unregistered"`

	StartedAt   time.Time  `gorm:"not null" json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	ApprovedAt  *time.Time `json:"approved_at"`
	LockedAt    *time.Time `json:"locked_at"`

	CreatedBy  string  `gorm:"type:varchar(64);not null;index" json:"created_by"`
	ApprovedBy *string `gorm:"type:varchar(64)" json:"approved_by"`

	// Version is bumped by the store on every save.
	Version   int64     `gorm:"not null;default:1" json:"version"`
	UpdatedAt time.Time `json:"updated_at"`

	SnapshotItems []SnapshotItem `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"snapshot_items,omitempty"`
	ScannedItems  []ScannedItem  `gorm:"foreignKey:SessionID;constraint:OnDelete:CASCADE" json:"scanned_items,omitempty"`

	snapIdx map[string]int
	scanIdx map[string]int
}

func (Session) TableName() string { return "opname_sessions" }

// SnapshotItem is the expected side of the count, copied from inventory when
// the session opens.
type SnapshotItem struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID    uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_snapshot_session_imei" json:"session_id"`
	Position     int             `gorm:"not null" json:"position"`
	UnitID       string          `gorm:"type:varchar(64);index" json:"unit_id"`
	IMEI         string          `gorm:"type:varchar(64);not null;uniqueIndex:idx_snapshot_session_imei" json:"imei"`
	ProductLabel string          `json:"product_label"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(15,2)" json:"selling_price"`
	CostPrice    decimal.Decimal `gorm:"type:decimal(15,2)" json:"cost_price"`
	StockStatus  string          `gorm:"type:varchar(32)" json:"stock_status"`

	ScanResult        SnapshotResult  `gorm:"type:varchar(16);not null;index" json:"scan_result"`
	ActionTaken       *SnapshotAction `gorm:"type:varchar(32)" json:"action_taken"`
	ActionNotes       string          `gorm:"type:text" json:"action_notes"`
	SoldReferenceID   *string         `gorm:"type:varchar(128)" json:"sold_reference_id"`
	ScannedAt         *time.Time      `json:"scanned_at"`
	MutationAppliedAt *time.Time      `json:"mutation_applied_at"`
}

func (SnapshotItem) TableName() string { return "opname_snapshot_items" }

// ScannedItem records one physical scan that changed the session.
type ScannedItem struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	SessionID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"session_id"`
	Position       int        `gorm:"not null" json:"position"`
	IMEI           string     `gorm:"type:varchar(64);not null;index" json:"imei"`
	SnapshotItemID *uuid.UUID `gorm:"type:uuid" json:"snapshot_item_id,omitempty"`

	ScanResult        ScannedResult  `gorm:"type:varchar(16);not null;index" json:"scan_result"`
	ActionTaken       *ScannedAction `gorm:"type:varchar(32)" json:"action_taken"`
	ActionNotes       string         `gorm:"type:text" json:"action_notes"`
	ScannedBy         string         `gorm:"type:varchar(64)" json:"scanned_by"`
	ScannedAt         time.Time      `gorm:"not null" json:"scanned_at"`
	MutationAppliedAt *time.Time     `json:"mutation_applied_at"`
}

func (ScannedItem) TableName() string { return "opname_scanned_items" }

// Counters are the aggregate fields of a session.
type Counters struct {
	TotalExpected     int `json:"total_expected"`
	TotalScanned      int `json:"total_scanned"`
	TotalMatch        int `json:"total_match"`
	TotalMissing      int `json:"total_missing"`
	TotalUnregistered int `json:"total_unregistered"`
}

// ComputeCounters derives the counters from the two item sets.  It does not
// touch the items.
func ComputeCounters(snapshot []SnapshotItem, scanned []ScannedItem) Counters {
	c := Counters{
		TotalExpected: len(snapshot),
		TotalScanned:  len(scanned),
	}
	for i := range snapshot {
		switch snapshot[i].ScanResult {
		case SnapshotMatch:
			c.TotalMatch++
		case SnapshotMissing:
			c.TotalMissing++
		}
	}
	for i := range scanned {
		if scanned[i].ScanResult == ScannedUnregistered {
			c.TotalUnregistered++
		}
	}
	return c
}

// NewSession opens a draft session over the expected units.
func NewSession(id uuid.UUID, typ SessionType, createdBy string, expected []ExpectedUnit, now time.Time) (*Session, error) {
	if _, err := ParseSessionType(string(typ)); err != nil {
		return nil, err
	}
	if strings.TrimSpace(createdBy) == "" {
		return nil, invalidInput("created_by is required")
	}
	items, err := BuildSnapshot(id, expected)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:            id,
		SessionType:   typ,
		SessionStatus: StatusDraft,
		StartedAt:     now,
		CreatedBy:     createdBy,
		Version:       1,
		SnapshotItems: items,
		ScannedItems:  []ScannedItem{},
	}
	s.recount()
	return s, nil
}

// Counters returns the stored aggregate fields.
func (s *Session) Counters() Counters {
	return Counters{
		TotalExpected:     s.TotalExpected,
		TotalScanned:      s.TotalScanned,
		TotalMatch:        s.TotalMatch,
		TotalMissing:      s.TotalMissing,
		TotalUnregistered: s.TotalUnregistered,
	}
}

// Recompute refreshes the counters from the item sets.  Counters are frozen
// once the session leaves draft.
func (s *Session) Recompute() error {
	if s.SessionStatus != StatusDraft {
		return notAllowed("recompute", s.SessionStatus)
	}
	s.recount()
	return nil
}

func (s *Session) recount() {
	c := ComputeCounters(s.SnapshotItems, s.ScannedItems)
	s.TotalExpected = c.TotalExpected
	s.TotalScanned = c.TotalScanned
	s.TotalMatch = c.TotalMatch
	s.TotalMissing = c.TotalMissing
	s.TotalUnregistered = c.TotalUnregistered
}

// Unresolved lists the identifiers of discrepant items without a disposition:
// missing snapshot items first, then unregistered scans.
func (s *Session) Unresolved() []string {
	var ids []string
	for i := range s.SnapshotItems {
		it := &s.SnapshotItems[i]
		if it.ScanResult == SnapshotMissing && it.ActionTaken == nil {
			ids = append(ids, it.IMEI)
		}
	}
	for i := range s.ScannedItems {
		it := &s.ScannedItems[i]
		if it.ScanResult == ScannedUnregistered && it.ActionTaken == nil {
			ids = append(ids, it.IMEI)
		}
	}
	return ids
}

// Complete closes scanning.  Every discrepancy must carry a disposition.
func (s *Session) Complete(now time.Time) error {
	if s.SessionStatus != StatusDraft {
		return invalidTransition(s.SessionStatus, StatusCompleted)
	}
	if ids := s.Unresolved(); len(ids) > 0 {
		return &ValidationError{Kind: KindUnresolvedDiscrepancies, ItemIDs: ids}
	}
	s.recount()
	t := now
	s.CompletedAt = &t
	s.SessionStatus = StatusCompleted
	return nil
}

// Approve signs the session off.  Whether actor may approve is decided by the
// identity collaborator and passed in as authorized.
func (s *Session) Approve(actor string, authorized bool, now time.Time) error {
	if s.SessionStatus != StatusCompleted {
		return invalidTransition(s.SessionStatus, StatusApproved)
	}
	if strings.TrimSpace(actor) == "" {
		return invalidInput("approver is required")
	}
	if !authorized {
		return &ValidationError{Kind: KindApproverNotAuthorized, Message: actor}
	}
	t := now
	a := actor
	s.ApprovedAt = &t
	s.ApprovedBy = &a
	s.SessionStatus = StatusApproved
	return nil
}

// Lock makes the session and its items immutable.
func (s *Session) Lock(now time.Time) error {
	if s.SessionStatus != StatusApproved {
		return invalidTransition(s.SessionStatus, StatusLocked)
	}
	t := now
	s.LockedAt = &t
	s.SessionStatus = StatusLocked
	return nil
}

// Transition moves the session to the given status, which must be the next
// one in line.
func (s *Session) Transition(to SessionStatus, actor string, authorized bool, now time.Time) error {
	next, ok := s.SessionStatus.next()
	if !ok || next != to {
		return invalidTransition(s.SessionStatus, to)
	}
	switch to {
	case StatusCompleted:
		return s.Complete(now)
	case StatusApproved:
		return s.Approve(actor, authorized, now)
	case StatusLocked:
		return s.Lock(now)
	}
	return invalidTransition(s.SessionStatus, to)
}

// Scan applies one scan event.  Only draft sessions accept scans.
func (s *Session) Scan(ev ScanEvent) (ScanOutcome, error) {
	if s.SessionStatus != StatusDraft {
		return ScanOutcome{}, notAllowed("scan", s.SessionStatus)
	}
	imei := strings.TrimSpace(ev.IMEI)
	if imei == "" {
		return ScanOutcome{}, invalidInput("scan identifier is empty")
	}
	s.ensureIndex()

	if i, ok := s.snapIdx[imei]; ok {
		item := &s.SnapshotItems[i]
		if item.ScanResult == SnapshotMatch {
			out := ScanOutcome{Kind: ScanDuplicateMatch, IMEI: imei, SnapshotItemID: idPtr(item.ID)}
			if j, ok := s.scanIdx[imei]; ok {
				out.ScannedItemID = idPtr(s.ScannedItems[j].ID)
			}
			return out, nil
		}

		kind := ScanMatched
		if item.ActionTaken != nil {
			kind = ScanReopened
		}
		at := ev.At
		item.ScanResult = SnapshotMatch
		item.ActionTaken = nil
		item.ActionNotes = ""
		item.SoldReferenceID = nil
		item.ScannedAt = &at

		scanned := s.appendScanned(imei, ScannedMatch, idPtr(item.ID), ev)
		s.recount()
		return ScanOutcome{Kind: kind, IMEI: imei, SnapshotItemID: idPtr(item.ID), ScannedItemID: idPtr(scanned.ID)}, nil
	}

	if j, ok := s.scanIdx[imei]; ok {
		return ScanOutcome{Kind: ScanDuplicateUnregistered, IMEI: imei, ScannedItemID: idPtr(s.ScannedItems[j].ID)}, nil
	}

	scanned := s.appendScanned(imei, ScannedUnregistered, nil, ev)
	s.recount()
	return ScanOutcome{Kind: ScanUnregistered, IMEI: imei, ScannedItemID: idPtr(scanned.ID)}, nil
}

func (s *Session) appendScanned(imei string, result ScannedResult, snapID *uuid.UUID, ev ScanEvent) *ScannedItem {
	s.ScannedItems = append(s.ScannedItems, ScannedItem{
		ID:             uuid.New(),
		SessionID:      s.ID,
		Position:       len(s.ScannedItems),
		IMEI:           imei,
		SnapshotItemID: snapID,
		ScanResult:     result,
		ScannedBy:      ev.ScannedBy,
		ScannedAt:      ev.At,
	})
	idx := len(s.ScannedItems) - 1
	s.scanIdx[imei] = idx
	return &s.ScannedItems[idx]
}

// Reconcile applies a batch of scans.  Either every event is applied or the
// session is left as it was.
func (s *Session) Reconcile(events []ScanEvent) ([]ScanOutcome, error) {
	if s.SessionStatus != StatusDraft {
		return nil, notAllowed("scan", s.SessionStatus)
	}
	work := s.Clone()
	outcomes := make([]ScanOutcome, 0, len(events))
	for _, ev := range events {
		out, err := work.Scan(ev)
		if err != nil {
			return nil, err
		}
		outcomes = append(outcomes, out)
	}
	*s = *work
	return outcomes, nil
}

// Editable reports whether dispositions may still change.
func (s *Session) Editable() bool {
	return s.SessionStatus == StatusDraft || s.SessionStatus == StatusCompleted
}

// ResolveItem sets the disposition of a discrepant item, snapshot or scanned,
// and returns the inventory mutation the disposition calls for.
func (s *Session) ResolveItem(itemID uuid.UUID, action, notes, soldReferenceID string) (Mutation, error) {
	if !s.Editable() {
		return Mutation{}, notAllowed("resolve disposition", s.SessionStatus)
	}

	if snap := s.snapshotItem(itemID); snap != nil {
		if snap.MutationAppliedAt != nil {
			return Mutation{}, notAllowed("change applied disposition", s.SessionStatus)
		}
		m, err := Resolve(snap, action, soldReferenceID)
		if err != nil {
			return Mutation{}, err
		}
		a := SnapshotAction(action)
		snap.ActionTaken = &a
		snap.ActionNotes = strings.TrimSpace(notes)
		snap.SoldReferenceID = nil
		if a.Sold() {
			ref := m.SoldReferenceID
			snap.SoldReferenceID = &ref
		}
		m.Notes = snap.ActionNotes
		return m, nil
	}

	if sc := s.scannedItem(itemID); sc != nil {
		if sc.MutationAppliedAt != nil {
			return Mutation{}, notAllowed("change applied disposition", s.SessionStatus)
		}
		m, err := Resolve(sc, action, soldReferenceID)
		if err != nil {
			return Mutation{}, err
		}
		a := ScannedAction(action)
		sc.ActionTaken = &a
		sc.ActionNotes = strings.TrimSpace(notes)
		m.Notes = sc.ActionNotes
		return m, nil
	}

	return Mutation{}, fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// PendingMutations lists the inventory mutations of the current dispositions
// that have not been applied yet. A stored disposition that no longer
// resolves is reported, not skipped.
func (s *Session) PendingMutations() ([]Mutation, error) {
	var out []Mutation
	for i := range s.SnapshotItems {
		it := &s.SnapshotItems[i]
		if it.ActionTaken == nil || it.MutationAppliedAt != nil {
			continue
		}
		ref := ""
		if it.SoldReferenceID != nil {
			ref = *it.SoldReferenceID
		}
		m, err := ResolveSnapshot(*it, *it.ActionTaken, ref)
		if err != nil {
			return nil, fmt.Errorf("snapshot item %s: %w", it.IMEI, err)
		}
		if m.Required() {
			m.Notes = it.ActionNotes
			out = append(out, m)
		}
	}
	for i := range s.ScannedItems {
		it := &s.ScannedItems[i]
		if it.ActionTaken == nil || it.MutationAppliedAt != nil {
			continue
		}
		m, err := ResolveScanned(*it, *it.ActionTaken)
		if err != nil {
			return nil, fmt.Errorf("scanned item %s: %w", it.IMEI, err)
		}
		if m.Required() {
			m.Notes = it.ActionNotes
			out = append(out, m)
		}
	}
	return out, nil
}

// MarkMutationApplied records that the inventory system accepted the
// mutation of an item.  Only allowed while the session awaits approval.
func (s *Session) MarkMutationApplied(itemID uuid.UUID, now time.Time) error {
	if s.SessionStatus != StatusCompleted {
		return notAllowed("mark mutation applied", s.SessionStatus)
	}
	t := now
	if snap := s.snapshotItem(itemID); snap != nil {
		snap.MutationAppliedAt = &t
		return nil
	}
	if sc := s.scannedItem(itemID); sc != nil {
		sc.MutationAppliedAt = &t
		return nil
	}
	return fmt.Errorf("%w: %s", ErrItemNotFound, itemID)
}

// SnapshotItemByIMEI looks up an expected unit by identifier.
func (s *Session) SnapshotItemByIMEI(imei string) (SnapshotItem, bool) {
	s.ensureIndex()
	i, ok := s.snapIdx[imei]
	if !ok {
		return SnapshotItem{}, false
	}
	return s.SnapshotItems[i], true
}

// ScannedItemByIMEI looks up a scan record by identifier.
func (s *Session) ScannedItemByIMEI(imei string) (ScannedItem, bool) {
	s.ensureIndex()
	i, ok := s.scanIdx[imei]
	if !ok {
		return ScannedItem{}, false
	}
	return s.ScannedItems[i], true
}

func (s *Session) snapshotItem(id uuid.UUID) *SnapshotItem {
	for i := range s.SnapshotItems {
		if s.SnapshotItems[i].ID == id {
			return &s.SnapshotItems[i]
		}
	}
	return nil
}

func (s *Session) scannedItem(id uuid.UUID) *ScannedItem {
	for i := range s.ScannedItems {
		if s.ScannedItems[i].ID == id {
			return &s.ScannedItems[i]
		}
	}
	return nil
}

func (s *Session) ensureIndex() {
	if s.snapIdx != nil && s.scanIdx != nil {
		return
	}
	s.snapIdx = make(map[string]int, len(s.SnapshotItems))
	for i := range s.SnapshotItems {
		s.snapIdx[s.SnapshotItems[i].IMEI] = i
	}
	s.scanIdx = make(map[string]int, len(s.ScannedItems))
	for i := range s.ScannedItems {
		s.scanIdx[s.ScannedItems[i].IMEI] = i
	}
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	c.snapIdx = nil
	c.scanIdx = nil
	c.CompletedAt = cloneTime(s.CompletedAt)
	c.ApprovedAt = cloneTime(s.ApprovedAt)
	c.LockedAt = cloneTime(s.LockedAt)
	if s.ApprovedBy != nil {
		v := *s.ApprovedBy
		c.ApprovedBy = &v
	}

	c.SnapshotItems = make([]SnapshotItem, len(s.SnapshotItems))
	for i, it := range s.SnapshotItems {
		if it.ActionTaken != nil {
			a := *it.ActionTaken
			it.ActionTaken = &a
		}
		if it.SoldReferenceID != nil {
			r := *it.SoldReferenceID
			it.SoldReferenceID = &r
		}
		it.ScannedAt = cloneTime(it.ScannedAt)
		it.MutationAppliedAt = cloneTime(it.MutationAppliedAt)
		c.SnapshotItems[i] = it
	}

	c.ScannedItems = make([]ScannedItem, len(s.ScannedItems))
	for i, it := range s.ScannedItems {
		if it.ActionTaken != nil {
			a := *it.ActionTaken
			it.ActionTaken = &a
		}
		if it.SnapshotItemID != nil {
			id := *it.SnapshotItemID
			it.SnapshotItemID = &id
		}
		it.MutationAppliedAt = cloneTime(it.MutationAppliedAt)
		c.ScannedItems[i] = it
	}
	return &c
}

func idPtr(id uuid.UUID) *uuid.UUID { return &id }

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
