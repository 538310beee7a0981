package opname

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/locker"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/ivalora/gadget-rms/internal/services/notification"
	"github.com/ivalora/gadget-rms/internal/store"
	"github.com/ivalora/gadget-rms/internal/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	imeiA = "356938035643809"
	imeiB = "356938035643817"
	imeiC = "356938035643825"
	imeiX = "490154203237518"
)

type fakeInventory struct {
	mu      sync.Mutex
	units   []opname.ExpectedUnit
	applied []opname.Mutation
	failFor string
	listErr error
}

func (f *fakeInventory) ExpectedUnits(context.Context) ([]opname.ExpectedUnit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.units, nil
}

func (f *fakeInventory) Apply(_ context.Context, m opname.Mutation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor != "" && m.IMEI == f.failFor {
		return errors.New("odoo: connection refused")
	}
	f.applied = append(f.applied, m)
	return nil
}

func (f *fakeInventory) kinds() []opname.MutationKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []opname.MutationKind
	for _, m := range f.applied {
		out = append(out, m.Kind)
	}
	return out
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *fakeNotifier) SessionEvent(_ context.Context, eventType string, _ *opname.Session, _ string) {
	n.mu.Lock()
	n.events = append(n.events, eventType)
	n.mu.Unlock()
}

type fixture struct {
	svc   *Service
	inv   *fakeInventory
	notes *fakeNotifier
	locks *locker.LocalLocker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	inv := &fakeInventory{}
	for _, imei := range []string{imeiA, imeiB, imeiC} {
		inv.units = append(inv.units, opname.ExpectedUnit{
			UnitID:       "unit-" + imei,
			IMEI:         imei,
			ProductLabel: "Samsung A55 8/256",
			SellingPrice: decimal.RequireFromString("5499000"),
			CostPrice:    decimal.RequireFromString("4800000"),
			StockStatus:  "available",
		})
	}
	notes := &fakeNotifier{}
	locks := locker.NewLocalLocker(50 * time.Millisecond)
	svc := NewService(store.NewMemoryStore(), locks, inv, notes, log)
	clock := time.Date(2026, 6, 1, 20, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{svc: svc, inv: inv, notes: notes, locks: locks}
}

func allow(string) bool { return true }

// resolvedCount opens a closing count with A matched, B and C missing and X
// unregistered, every discrepancy resolved, and completes it.
func (f *fixture) resolvedCount(t *testing.T) *opname.Session {
	t.Helper()
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiA}, "staff-1")
	require.NoError(t, err)
	out, err := f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiX}, "staff-1")
	require.NoError(t, err)
	require.Equal(t, opname.ScanUnregistered, out.Kind)

	s, err = f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	b, _ := s.SnapshotItemByIMEI(imeiB)
	c, _ := s.SnapshotItemByIMEI(imeiC)
	x, _ := s.ScannedItemByIMEI(imeiX)

	_, err = f.svc.ResolveItem(ctx, s.ID, opname.SideSnapshot, b.ID, ResolveRequest{Action: "lost"}, "staff-1")
	require.NoError(t, err)
	m, err := f.svc.ResolveItem(ctx, s.ID, opname.SideSnapshot, c.ID, ResolveRequest{Action: "sold_ecommerce_shopee", SoldReferenceID: "SHP-2406-0091"}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, opname.MutationMarkSold, m.Kind)
	assert.Equal(t, "shopee", m.Channel)
	_, err = f.svc.ResolveItem(ctx, s.ID, opname.SideScanned, x.ID, ResolveRequest{Action: "add_to_stock"}, "staff-1")
	require.NoError(t, err)

	s, err = f.svc.Complete(ctx, s.ID, "staff-1")
	require.NoError(t, err)
	return s
}

func TestService_FullCount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.resolvedCount(t)

	assert.Equal(t, opname.StatusCompleted, s.SessionStatus)
	assert.Equal(t, opname.Counters{TotalExpected: 3, TotalScanned: 2, TotalMatch: 1, TotalMissing: 2, TotalUnregistered: 1}, s.Counters())
	assert.Empty(t, f.inv.kinds(), "nothing reaches inventory before approval")

	s, err := f.svc.Approve(ctx, s.ID, "owner-1", allow)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusApproved, s.SessionStatus)
	require.NotNil(t, s.ApprovedBy)
	assert.Equal(t, "owner-1", *s.ApprovedBy)
	assert.Equal(t, []opname.MutationKind{opname.MutationWriteOff, opname.MutationMarkSold, opname.MutationCreateUnit}, f.inv.kinds())
	pending, err := s.PendingMutations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	s, err = f.svc.Lock(ctx, s.ID, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, opname.StatusLocked, s.SessionStatus)

	assert.Equal(t, []string{
		notification.OpnameOpened,
		notification.OpnameCompleted,
		notification.OpnameApproved,
		notification.OpnameLocked,
	}, f.notes.events)
}

func TestService_CompleteWithUnresolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "opening"}, "staff-1")
	require.NoError(t, err)
	_, err = f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiA}, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Complete(ctx, s.ID, "staff-1")
	ve, ok := opname.AsValidation(err)
	require.True(t, ok, err)
	assert.Equal(t, opname.KindUnresolvedDiscrepancies, ve.Kind)
	assert.Equal(t, []string{imeiB, imeiC}, ve.ItemIDs)

	stored, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusDraft, stored.SessionStatus)
}

func TestService_ApproveUnauthorized(t *testing.T) {
	f := newFixture(t)
	s := f.resolvedCount(t)

	_, err := f.svc.Approve(context.Background(), s.ID, "staff-1", func(createdBy string) bool {
		return createdBy != "staff-1"
	})
	ve, ok := opname.AsValidation(err)
	require.True(t, ok, err)
	assert.Equal(t, opname.KindApproverNotAuthorized, ve.Kind)
	assert.Empty(t, f.inv.kinds())

	stored, err := f.svc.Get(context.Background(), s.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, stored.SessionStatus)
}

func TestService_ApproveInventoryFailureKeepsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.resolvedCount(t)

	f.inv.failFor = imeiC
	_, err := f.svc.Approve(ctx, s.ID, "owner-1", allow)
	require.ErrorIs(t, err, ErrInventory)

	stored, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, stored.SessionStatus)
	b, _ := stored.SnapshotItemByIMEI(imeiB)
	assert.NotNil(t, b.MutationAppliedAt)
	pending, err := stored.PendingMutations()
	require.NoError(t, err)
	require.Len(t, pending, 2)

	f.inv.failFor = ""
	_, err = f.svc.Approve(ctx, s.ID, "owner-1", allow)
	require.NoError(t, err)
	assert.Equal(t, []opname.MutationKind{opname.MutationWriteOff, opname.MutationMarkSold, opname.MutationCreateUnit}, f.inv.kinds())
}

func TestService_ScanRetryWithMsgID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "adhoc"}, "staff-1")
	require.NoError(t, err)

	first, err := f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiX, MsgID: "m-1"}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, opname.ScanUnregistered, first.Kind)

	retry, err := f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiX, MsgID: "m-1"}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, first, retry)

	stored, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalScanned)
}

func TestService_ApproveReportsBrokenDisposition(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.resolvedCount(t)

	stored, err := f.svc.store.Get(ctx, s.ID)
	require.NoError(t, err)
	for i := range stored.SnapshotItems {
		if stored.SnapshotItems[i].IMEI == imeiC {
			empty := ""
			stored.SnapshotItems[i].SoldReferenceID = &empty
		}
	}
	require.NoError(t, f.svc.store.Save(ctx, stored))

	_, err = f.svc.Approve(ctx, s.ID, "owner-1", allow)
	require.ErrorIs(t, err, opname.ErrValidation)
	assert.Empty(t, f.inv.kinds())

	stored, err = f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, opname.StatusCompleted, stored.SessionStatus)
}

func TestService_ScanMsgIDReusedForOtherBarcode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiA, MsgID: "m-1"}, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiB, MsgID: "m-1"}, "staff-1")
	ve, ok := opname.AsValidation(err)
	require.True(t, ok, err)
	assert.Equal(t, opname.KindInvalidInput, ve.Kind)

	stored, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	b, _ := stored.SnapshotItemByIMEI(imeiB)
	assert.Equal(t, opname.SnapshotMissing, b.ScanResult)
	assert.Equal(t, 1, stored.TotalScanned)

	out, err := f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiB, MsgID: "m-2"}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, opname.ScanMatched, out.Kind)
}

// slowSaveStore holds the first Save until release is closed.
type slowSaveStore struct {
	*store.MemoryStore
	saving  chan struct{}
	release chan struct{}
	once    sync.Once
}

func (s *slowSaveStore) Save(ctx context.Context, sess *opname.Session) error {
	s.once.Do(func() {
		close(s.saving)
		<-s.release
	})
	return s.MemoryStore.Save(ctx, sess)
}

func TestService_ScanRetryWaitsForFirstRead(t *testing.T) {
	f := newFixture(t)
	log := logrus.New()
	log.SetOutput(io.Discard)
	st := &slowSaveStore{MemoryStore: store.NewMemoryStore(), saving: make(chan struct{}), release: make(chan struct{})}
	svc := NewService(st, locker.NewLocalLocker(2*time.Second), f.inv, nil, log)

	ctx := context.Background()
	s, err := svc.Open(ctx, OpenRequest{SessionType: "adhoc"}, "staff-1")
	require.NoError(t, err)

	type result struct {
		out opname.ScanOutcome
		err error
	}
	req := ScanRequest{Barcode: imeiX, MsgID: "m-1"}
	first := make(chan result, 1)
	go func() {
		out, err := svc.Scan(ctx, s.ID, req, "staff-1")
		first <- result{out, err}
	}()
	<-st.saving

	retry := make(chan result, 1)
	go func() {
		out, err := svc.Scan(ctx, s.ID, req, "staff-1")
		retry <- result{out, err}
	}()
	select {
	case r := <-retry:
		t.Fatalf("retry answered while the first read was saving: %+v", r)
	case <-time.After(50 * time.Millisecond):
	}
	close(st.release)

	a, b := <-first, <-retry
	require.NoError(t, a.err)
	require.NoError(t, b.err)
	assert.Equal(t, opname.ScanUnregistered, a.out.Kind)
	assert.Equal(t, a.out, b.out)

	stored, err := svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.TotalScanned)
}

func TestService_ScanUnitCode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)

	out, err := f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: utils.EncodeUnitCode(imeiB, "a55")}, "staff-1")
	require.NoError(t, err)
	assert.Equal(t, opname.ScanMatched, out.Kind)
	assert.Equal(t, imeiB, out.IMEI)
}

func TestService_ScanBatchAllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)

	_, err = f.svc.ScanBatch(ctx, s.ID, []string{imeiA, " ", imeiB}, "staff-1")
	require.ErrorIs(t, err, opname.ErrValidation)

	stored, err := f.svc.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.TotalScanned)
	assert.Equal(t, int64(1), stored.Version)

	outs, err := f.svc.ScanBatch(ctx, s.ID, []string{imeiA, imeiB, imeiA}, "staff-1")
	require.NoError(t, err)
	require.Len(t, outs, 3)
	assert.Equal(t, opname.ScanDuplicateMatch, outs[2].Kind)
}

func TestService_ResolveWrongSide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)
	b, _ := s.SnapshotItemByIMEI(imeiB)

	_, err = f.svc.ResolveItem(ctx, s.ID, opname.SideScanned, b.ID, ResolveRequest{Action: "ignore"}, "staff-1")
	assert.ErrorIs(t, err, opname.ErrItemNotFound)

	_, err = f.svc.ResolveItem(ctx, s.ID, opname.SideSnapshot, uuid.New(), ResolveRequest{Action: "lost"}, "staff-1")
	assert.ErrorIs(t, err, opname.ErrItemNotFound)
}

func TestService_OpenInventoryFailure(t *testing.T) {
	f := newFixture(t)
	f.inv.listErr = errors.New("timeout")

	_, err := f.svc.Open(context.Background(), OpenRequest{SessionType: "closing"}, "staff-1")
	assert.ErrorIs(t, err, ErrInventory)
	assert.Empty(t, f.notes.events)
}

func TestService_OpenRejectsDuplicateExpected(t *testing.T) {
	f := newFixture(t)
	f.inv.units = append(f.inv.units, f.inv.units[0])

	_, err := f.svc.Open(context.Background(), OpenRequest{SessionType: "closing"}, "staff-1")
	ve, ok := opname.AsValidation(err)
	require.True(t, ok, err)
	assert.Equal(t, opname.KindDuplicateExpectedIdentifier, ve.Kind)

	list, total, err := f.svc.List(context.Background(), store.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestService_BusySession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s, err := f.svc.Open(ctx, OpenRequest{SessionType: "closing"}, "staff-1")
	require.NoError(t, err)

	held, err := f.locks.Acquire(ctx, locker.SessionKey(s.ID.String()))
	require.NoError(t, err)
	defer held.Release(ctx)

	_, err = f.svc.Scan(ctx, s.ID, ScanRequest{Barcode: imeiA}, "staff-1")
	assert.ErrorIs(t, err, locker.ErrBusy)
}

func TestService_RecomputeAfterCompleteRejected(t *testing.T) {
	f := newFixture(t)
	s := f.resolvedCount(t)

	_, err := f.svc.Recompute(context.Background(), s.ID)
	assert.ErrorIs(t, err, opname.ErrState)
}
