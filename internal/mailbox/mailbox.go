// Package mailbox is the durable per-user notification inbox. Deliver is
// the only write path: it stores a record and then offers it to the
// recipient's live connections.
package mailbox

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/presence"
	"github.com/erazemk/najdeno/internal/store"
)

// DefaultTimeout bounds every store call.
const DefaultTimeout = 5 * time.Second

// Pusher offers a live event to a user. presence.Registry implements it.
type Pusher interface {
	Push(userID int64, ev presence.Event) bool
}

// Mailbox reads and writes notification records.
type Mailbox struct {
	db      *sqlx.DB
	pusher  Pusher
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Mailbox.
type Option func(*Mailbox)

// WithTimeout sets the store call timeout.
func WithTimeout(d time.Duration) Option {
	return func(m *Mailbox) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mailbox) {
		if l != nil {
			m.logger = l
		}
	}
}

// New creates a Mailbox. pusher may be nil, in which case nothing is
// pushed live.
func New(db *sqlx.DB, pusher Pusher, opts ...Option) *Mailbox {
	m := &Mailbox{
		db:      db,
		pusher:  pusher,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Delivery is the outcome of Deliver.
type Delivery struct {
	Notification *model.Notification
	Err          error
	Pushed       bool
}

// Deliver stores n and pushes it to the recipient if they are connected.
// It never fails the caller: problems are logged and reported in the
// returned Delivery.
func (m *Mailbox) Deliver(ctx context.Context, n model.Notification) Delivery {
	if err := validate(n); err != nil {
		m.logger.Error("rejecting notification", "recipient", n.RecipientID, "type", n.Type, "error", err)
		return Delivery{Err: err}
	}

	sctx, cancel := context.WithTimeout(ctx, m.timeout)
	stored, err := store.CreateNotification(sctx, m.db, n)
	cancel()
	if err != nil {
		err = apperr.Unavailable("storing notification", err)
		m.logger.Error("storing notification", "recipient", n.RecipientID, "type", n.Type, "error", err)
		return Delivery{Err: err}
	}

	d := Delivery{Notification: stored}
	if m.pusher != nil {
		d.Pushed = m.pusher.Push(stored.RecipientID, presence.Event{
			Type: presence.EventNotification,
			Data: stored,
		})
	}

	m.logger.Debug("notification delivered",
		"id", stored.ID, "recipient", stored.RecipientID, "type", stored.Type, "pushed", d.Pushed)
	return d
}

func validate(n model.Notification) error {
	if n.RecipientID <= 0 {
		return apperr.Invalid("notification recipient is required")
	}
	if !model.ValidNotificationType(n.Type) {
		return apperr.Invalid("unknown notification type " + n.Type)
	}
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Message) == "" {
		return apperr.Invalid("notification title and message are required")
	}
	return nil
}

// List returns the recipient's notifications, newest first.
func (m *Mailbox) List(ctx context.Context, recipientID int64) ([]model.Notification, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	ns, err := store.ListNotifications(ctx, m.db, recipientID)
	if err != nil {
		return nil, apperr.Unavailable("listing notifications", err)
	}
	if ns == nil {
		ns = []model.Notification{}
	}
	return ns, nil
}

// UnreadCount returns how many of the recipient's notifications are unread.
func (m *Mailbox) UnreadCount(ctx context.Context, recipientID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	n, err := store.CountUnreadNotifications(ctx, m.db, recipientID)
	if err != nil {
		return 0, apperr.Unavailable("counting unread notifications", err)
	}
	return n, nil
}

// MarkRead marks one of the actor's notifications read.
func (m *Mailbox) MarkRead(ctx context.Context, actor model.Actor, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := store.MarkNotificationRead(ctx, m.db, id); err != nil {
		return storeErr("marking notification read", err)
	}
	return nil
}

// MarkAllRead marks every unread notification of the recipient read and
// returns how many changed.
func (m *Mailbox) MarkAllRead(ctx context.Context, recipientID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	n, err := store.MarkAllNotificationsRead(ctx, m.db, recipientID)
	if err != nil {
		return 0, apperr.Unavailable("marking all notifications read", err)
	}
	return n, nil
}

// Delete removes one of the actor's notifications.
func (m *Mailbox) Delete(ctx context.Context, actor model.Actor, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	if _, err := m.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := store.DeleteNotification(ctx, m.db, id); err != nil {
		return storeErr("deleting notification", err)
	}
	return nil
}

// owned loads a notification and checks that actor is its recipient.
// Admins get no special access to other users' mailboxes.
func (m *Mailbox) owned(ctx context.Context, actor model.Actor, id int64) (*model.Notification, error) {
	n, err := store.GetNotification(ctx, m.db, id)
	if err != nil {
		return nil, apperr.Unavailable("getting notification", err)
	}
	if n == nil {
		return nil, apperr.NotFound("notification")
	}
	if !actor.Is(n.RecipientID) {
		return nil, apperr.Forbidden("notification belongs to another user")
	}
	return n, nil
}

// storeErr maps a vanished row to NotFound and anything else to
// Unavailable.
func storeErr(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("notification")
	}
	return apperr.Unavailable(op, err)
}
