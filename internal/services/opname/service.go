// Package opname runs stock counts end to end: it loads and saves sessions
// under a per-session lock, feeds scans and dispositions into the session
// aggregate and applies approved stock changes to inventory.
package opname

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/inventory"
	"github.com/ivalora/gadget-rms/internal/locker"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/ivalora/gadget-rms/internal/services/notification"
	"github.com/ivalora/gadget-rms/internal/store"
	"github.com/ivalora/gadget-rms/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrInventory wraps every failure of the inventory collaborator.
var ErrInventory = errors.New("opname: inventory update failed")

// Notifier receives lifecycle events. Implementations must not block.
type Notifier interface {
	SessionEvent(ctx context.Context, eventType string, s *opname.Session, actor string)
}

type Service struct {
	store     store.SessionStore
	locks     locker.Locker
	inventory inventory.Collaborator
	notifier  Notifier
	dedup     *utils.Deduplicator
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewService(st store.SessionStore, locks locker.Locker, inv inventory.Collaborator, notifier Notifier, log logrus.FieldLogger) *Service {
	return &Service{
		store:     st,
		locks:     locks,
		inventory: inv,
		notifier:  notifier,
		dedup:     utils.NewDeduplicator(10 * time.Minute),
		log:       log.WithField("module", "opname"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// OpenRequest starts a count.
type OpenRequest struct {
	SessionType string `json:"session_type" validate:"required,oneof=opening closing adhoc"`
	Notes       string `json:"notes" validate:"max=2000"`
}

// ScanRequest is one scanner read. MsgID lets a scanner retry safely.
type ScanRequest struct {
	Barcode string `json:"barcode" validate:"required,max=128"`
	MsgID   string `json:"msg_id" validate:"max=64"`
}

// ResolveRequest sets the disposition of a discrepant item.
type ResolveRequest struct {
	Action          string `json:"action" validate:"required"`
	Notes           string `json:"notes" validate:"max=2000"`
	SoldReferenceID string `json:"sold_reference_id" validate:"max=128"`
}

// Open snapshots the expected units and creates a draft session.
func (s *Service) Open(ctx context.Context, req OpenRequest, actor string) (*opname.Session, error) {
	typ, err := opname.ParseSessionType(req.SessionType)
	if err != nil {
		return nil, err
	}
	expected, err := s.inventory.ExpectedUnits(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load expected units: %w", ErrInventory, err)
	}

	sess, err := opname.NewSession(uuid.New(), typ, actor, expected, s.now())
	if err != nil {
		return nil, err
	}
	sess.Notes = strings.TrimSpace(req.Notes)

	if err := s.store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"session":  sess.ID,
		"type":     typ,
		"expected": sess.TotalExpected,
		"actor":    actor,
	}).Info("stock count opened")
	s.notify(ctx, notification.OpnameOpened, sess, actor)
	return sess, nil
}

// Get loads a session with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*opname.Session, error) {
	return s.store.Get(ctx, id)
}

// List returns session headers, newest first.
func (s *Service) List(ctx context.Context, f store.ListFilter) ([]opname.Session, int64, error) {
	return s.store.List(ctx, f)
}

// Scan records one scanner read. Barcodes may be raw IMEIs or unit codes.
// A retried MsgID gets the outcome of its first successful read; reusing a
// MsgID for a different barcode is rejected.
func (s *Service) Scan(ctx context.Context, id uuid.UUID, req ScanRequest, actor string) (opname.ScanOutcome, error) {
	imei := utils.ScanIdentifier(req.Barcode)
	key := ""
	if req.MsgID != "" {
		key = id.String() + ":" + req.MsgID
	}

	var out opname.ScanOutcome
	err := s.withLock(ctx, id, func() error {
		if v, ok := s.dedup.Lookup(key); ok {
			prev := v.(replayedScan)
			if prev.imei != imei {
				return &opname.ValidationError{
					Kind:    opname.KindInvalidInput,
					Message: fmt.Sprintf("msg_id %s was already used for another barcode", req.MsgID),
				}
			}
			out = prev.outcome
			return nil
		}

		_, err := s.apply(ctx, id, func(sess *opname.Session) (bool, error) {
			var err error
			out, err = sess.Scan(opname.ScanEvent{IMEI: imei, ScannedBy: actor, At: s.now()})
			if err != nil {
				return false, err
			}
			return !out.Duplicate(), nil
		})
		if err != nil {
			return err
		}
		s.dedup.Remember(key, replayedScan{imei: imei, outcome: out})
		return nil
	})
	if err != nil {
		return opname.ScanOutcome{}, err
	}
	return out, nil
}

type replayedScan struct {
	imei    string
	outcome opname.ScanOutcome
}

// ScanBatch applies a whole batch of reads or none of them.
func (s *Service) ScanBatch(ctx context.Context, id uuid.UUID, barcodes []string, actor string) ([]opname.ScanOutcome, error) {
	at := s.now()
	events := make([]opname.ScanEvent, 0, len(barcodes))
	for _, b := range barcodes {
		events = append(events, opname.ScanEvent{IMEI: utils.ScanIdentifier(b), ScannedBy: actor, At: at})
	}

	var outs []opname.ScanOutcome
	_, err := s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		var err error
		outs, err = sess.Reconcile(events)
		if err != nil {
			return false, err
		}
		for _, o := range outs {
			if !o.Duplicate() {
				return true, nil
			}
		}
		return false, nil
	})
	if err != nil {
		return nil, err
	}
	return outs, nil
}

// ResolveItem sets the disposition of an item on the given side.
func (s *Service) ResolveItem(ctx context.Context, id uuid.UUID, side opname.ItemSide, itemID uuid.UUID, req ResolveRequest, actor string) (opname.Mutation, error) {
	var m opname.Mutation
	_, err := s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		if !onSide(sess, side, itemID) {
			return false, fmt.Errorf("%w: %s item %s", opname.ErrItemNotFound, side, itemID)
		}
		var err error
		m, err = sess.ResolveItem(itemID, req.Action, req.Notes, req.SoldReferenceID)
		return err == nil, err
	})
	if err != nil {
		return opname.Mutation{}, err
	}
	s.log.WithFields(logrus.Fields{
		"session":  id,
		"item":     itemID,
		"action":   req.Action,
		"mutation": m.Kind,
		"actor":    actor,
	}).Debug("disposition set")
	return m, nil
}

func onSide(sess *opname.Session, side opname.ItemSide, itemID uuid.UUID) bool {
	switch side {
	case opname.SideSnapshot:
		for i := range sess.SnapshotItems {
			if sess.SnapshotItems[i].ID == itemID {
				return true
			}
		}
	case opname.SideScanned:
		for i := range sess.ScannedItems {
			if sess.ScannedItems[i].ID == itemID {
				return true
			}
		}
	}
	return false
}

// Recompute re-derives the counters of a draft session.
func (s *Service) Recompute(ctx context.Context, id uuid.UUID) (*opname.Session, error) {
	return s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		before := sess.Counters()
		if err := sess.Recompute(); err != nil {
			return false, err
		}
		return sess.Counters() != before, nil
	})
}

// Complete closes scanning once every discrepancy has a disposition.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor string) (*opname.Session, error) {
	sess, err := s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		err := sess.Complete(s.now())
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"session": id, "actor": actor}).Info("stock count completed")
	s.notify(ctx, notification.OpnameCompleted, sess, actor)
	return sess, nil
}

// Approve applies every pending disposition to inventory and then approves
// the session. authorize decides whether approver may sign off a count
// created by createdBy. When inventory rejects a mutation the session stays
// completed; mutations already applied are recorded so a retry skips them.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approver string, authorize func(createdBy string) bool) (*opname.Session, error) {
	sess, err := s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		authorized := authorize != nil && authorize(sess.CreatedBy)

		// Dry run so nothing reaches inventory for a session that cannot
		// be approved.
		if err := sess.Clone().Approve(approver, authorized, s.now()); err != nil {
			return false, err
		}

		pending, err := sess.PendingMutations()
		if err != nil {
			return false, err
		}
		applied := false
		for _, m := range pending {
			if err := s.inventory.Apply(ctx, m); err != nil {
				config.LogError(s.log, "opname", "Approve", "apply mutation", m, err)
				return applied, fmt.Errorf("%w: %s %s: %w", ErrInventory, m.Kind, m.IMEI, err)
			}
			if err := sess.MarkMutationApplied(m.ItemID, s.now()); err != nil {
				return applied, err
			}
			applied = true
		}
		err = sess.Approve(approver, authorized, s.now())
		return applied || err == nil, err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"session": id, "actor": approver}).Info("stock count approved")
	s.notify(ctx, notification.OpnameApproved, sess, approver)
	return sess, nil
}

// Lock freezes an approved session for good.
func (s *Service) Lock(ctx context.Context, id uuid.UUID, actor string) (*opname.Session, error) {
	sess, err := s.mutate(ctx, id, func(sess *opname.Session) (bool, error) {
		err := sess.Lock(s.now())
		return err == nil, err
	})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"session": id, "actor": actor}).Info("stock count locked")
	s.notify(ctx, notification.OpnameLocked, sess, actor)
	return sess, nil
}

// mutate runs fn on the stored session while holding its lock. fn reports
// whether the session changed; a changed session is saved even when fn fails
// so partial progress survives.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, fn func(*opname.Session) (bool, error)) (*opname.Session, error) {
	var sess *opname.Session
	err := s.withLock(ctx, id, func() error {
		var err error
		sess, err = s.apply(ctx, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// withLock runs fn while holding the lock of session id.
func (s *Service) withLock(ctx context.Context, id uuid.UUID, fn func() error) error {
	lock, err := s.locks.Acquire(ctx, locker.SessionKey(id.String()))
	if err != nil {
		return fmt.Errorf("lock session %s: %w", id, err)
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.WithError(err).WithField("session", id).Warn("release session lock")
		}
	}()
	return fn()
}

// apply loads, changes and saves a session. The caller holds its lock.
func (s *Service) apply(ctx context.Context, id uuid.UUID, fn func(*opname.Session) (bool, error)) (*opname.Session, error) {
	sess, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	changed, fnErr := fn(sess)
	if changed {
		if err := s.store.Save(ctx, sess); err != nil {
			if fnErr != nil {
				config.LogError(s.log, "opname", "mutate", "save partial progress", id, err)
				return nil, fnErr
			}
			return nil, fmt.Errorf("save session: %w", err)
		}
	}
	if fnErr != nil {
		return nil, fnErr
	}
	return sess, nil
}

func (s *Service) notify(ctx context.Context, eventType string, sess *opname.Session, actor string) {
	if s.notifier == nil {
		return
	}
	s.notifier.SessionEvent(context.WithoutCancel(ctx), eventType, sess, actor)
}
