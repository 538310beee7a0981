// Package notification records back-office events and pushes them to
// connected websocket clients.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ivalora/gadget-rms/internal/config"
	"github.com/ivalora/gadget-rms/internal/models"
	"github.com/ivalora/gadget-rms/internal/opname"
	"github.com/ivalora/gadget-rms/internal/websocket"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types.
const (
	OpnameOpened    = "opname.opened"
	OpnameCompleted = "opname.completed"
	OpnameApproved  = "opname.approved"
	OpnameLocked    = "opname.locked"
)

var ErrNotFound = errors.New("notification: not found")

// Broadcaster pushes an event to live clients.
type Broadcaster interface {
	Broadcast(ev websocket.Event) bool
}

type Service struct {
	db  *gorm.DB
	hub Broadcaster
	log logrus.FieldLogger
}

// NewService builds the service. hub may be nil when nothing listens.
func NewService(db *gorm.DB, hub Broadcaster, log logrus.FieldLogger) *Service {
	return &Service{db: db, hub: hub, log: log.WithField("module", "notification")}
}

// Notify stores n and broadcasts it. Failures are logged only; callers never
// fail because a notification could not be delivered.
func (s *Service) Notify(ctx context.Context, n models.Notification) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	if s.db != nil {
		if err := s.db.WithContext(ctx).Create(&n).Error; err != nil {
			config.LogError(s.log, "notification", "Notify", "persist", n.Type, err)
		}
	}
	if s.hub != nil {
		s.hub.Broadcast(websocket.Event{Type: n.Type, Payload: n, At: n.CreatedAt})
	}
}

// sessionPayload is the part of a session worth pushing around.
type sessionPayload struct {
	SessionID     string               `json:"session_id"`
	SessionType   opname.SessionType   `json:"session_type"`
	SessionStatus opname.SessionStatus `json:"session_status"`
	Actor         string               `json:"actor"`
	opname.Counters
}

// SessionEvent notifies about a lifecycle step of a stock count.
func (s *Service) SessionEvent(ctx context.Context, eventType string, sess *opname.Session, actor string) {
	p := sessionPayload{
		SessionID:     sess.ID.String(),
		SessionType:   sess.SessionType,
		SessionStatus: sess.SessionStatus,
		Actor:         actor,
		Counters:      sess.Counters(),
	}
	raw, err := json.Marshal(p)
	if err != nil {
		config.LogError(s.log, "notification", "SessionEvent", "marshal payload", p.SessionID, err)
		return
	}

	n := models.Notification{Type: eventType, Payload: datatypes.JSON(raw)}
	switch eventType {
	case OpnameOpened:
		n.Title = "Stock count opened"
		n.Message = fmt.Sprintf("%s count started with %d expected units", sess.SessionType, p.TotalExpected)
	case OpnameCompleted:
		n.Title = "Stock count awaiting approval"
		n.Message = fmt.Sprintf("%d missing, %d unregistered", p.TotalMissing, p.TotalUnregistered)
		n.Audience = models.RoleOwner
	case OpnameApproved:
		n.Title = "Stock count approved"
		n.Message = "Approved by " + actor
	case OpnameLocked:
		n.Title = "Stock count locked"
	default:
		n.Title = eventType
	}
	s.Notify(ctx, n)
}

// List returns the newest notifications visible to role.
func (s *Service) List(ctx context.Context, role models.Role, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&models.Notification{})
	if role != models.RoleOwner {
		q = q.Where("audience = '' OR audience IS NULL OR audience = ?", role)
	}
	if unreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []models.Notification
	if err := q.Order("created_at DESC").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return out, nil
}

// MarkRead marks one notification read.
func (s *Service) MarkRead(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND read_at IS NULL", id).
		Update("read_at", time.Now().UTC())
	if res.Error != nil {
		return fmt.Errorf("mark notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Notification{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return fmt.Errorf("mark notification read: %w", err)
		}
		if count == 0 {
			return ErrNotFound
		}
	}
	return nil
}
