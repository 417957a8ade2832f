package mailbox

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/presence"
	"github.com/erazemk/najdeno/internal/store"
)

func newUser(t *testing.T, database *sqlx.DB, name string) *model.User {
	t.Helper()
	u, err := store.CreateUser(context.Background(), database, name, "hash", model.RoleUser)
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return u
}

func notice(recipient int64) model.Notification {
	return model.Notification{
		RecipientID: recipient,
		Type:        model.NotificationSystem,
		Title:       "Item returned",
		Message:     "Your claim was completed.",
	}
}

func TestDeliverToAbsentRecipientIsDurable(t *testing.T) {
	database := db.NewTestDB(t)
	registry := presence.New()
	m := New(database, registry)
	ctx := context.Background()
	alice := newUser(t, database, "alice")

	d := m.Deliver(ctx, notice(alice.ID))
	if d.Err != nil {
		t.Fatalf("Deliver: %v", d.Err)
	}
	if d.Pushed {
		t.Error("absent recipient should not be pushed to")
	}

	// Alice connects later and finds the record unread.
	registry.Register(alice.ID, "conn-1")
	list, err := m.List(ctx, alice.ID)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 || list[0].IsRead {
		t.Fatalf("expected 1 unread notification, got %+v", list)
	}
	if list[0].ID != d.Notification.ID {
		t.Errorf("expected id %d, got %d", d.Notification.ID, list[0].ID)
	}
}

func TestDeliverPushesToPresentRecipient(t *testing.T) {
	database := db.NewTestDB(t)
	registry := presence.New()
	m := New(database, registry)
	alice := newUser(t, database, "alice")

	stream := registry.Register(alice.ID, "conn-1")
	d := m.Deliver(context.Background(), notice(alice.ID))
	if d.Err != nil {
		t.Fatalf("Deliver: %v", d.Err)
	}
	if !d.Pushed {
		t.Fatal("expected live push")
	}

	ev := <-stream
	if ev.Type != presence.EventNotification {
		t.Fatalf("expected notification event, got %q", ev.Type)
	}
	n, ok := ev.Data.(*model.Notification)
	if !ok || n.ID != d.Notification.ID {
		t.Errorf("expected pushed record %d, got %#v", d.Notification.ID, ev.Data)
	}
}

func TestDeliverFailureIsReported(t *testing.T) {
	database := db.NewTestDB(t)
	m := New(database, presence.New())
	alice := newUser(t, database, "alice")

	d := m.Deliver(context.Background(), model.Notification{RecipientID: alice.ID, Type: "bogus", Title: "x", Message: "y"})
	if !errors.Is(d.Err, apperr.ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", d.Err)
	}

	database.Close()
	d = m.Deliver(context.Background(), notice(alice.ID))
	if !errors.Is(d.Err, apperr.ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", d.Err)
	}
	if d.Notification != nil || d.Pushed {
		t.Errorf("expected nothing delivered, got %+v", d)
	}
}

func TestDeliverWithoutPusher(t *testing.T) {
	database := db.NewTestDB(t)
	m := New(database, nil)
	alice := newUser(t, database, "alice")

	d := m.Deliver(context.Background(), notice(alice.ID))
	if d.Err != nil || d.Pushed {
		t.Errorf("unexpected delivery %+v", d)
	}
}

func TestMarkReadAndDeleteAuthorization(t *testing.T) {
	database := db.NewTestDB(t)
	m := New(database, nil)
	ctx := context.Background()
	alice := newUser(t, database, "alice")
	bob := newUser(t, database, "bob")

	d := m.Deliver(ctx, notice(alice.ID))
	id := d.Notification.ID

	tests := []struct {
		name  string
		actor model.Actor
		id    int64
		want  error
	}{
		{"other user", model.Actor{UserID: bob.ID}, id, apperr.ErrForbidden},
		{"admin", model.Actor{UserID: bob.ID, Admin: true}, id, apperr.ErrForbidden},
		{"missing", model.Actor{UserID: alice.ID}, 999, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.MarkRead(ctx, tt.actor, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("MarkRead: expected %v, got %v", tt.want, err)
			}
			if err := m.Delete(ctx, tt.actor, tt.id); !errors.Is(err, tt.want) {
				t.Errorf("Delete: expected %v, got %v", tt.want, err)
			}
		})
	}

	owner := model.Actor{UserID: alice.ID}
	if err := m.MarkRead(ctx, owner, id); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := m.MarkRead(ctx, owner, id); err != nil {
		t.Fatalf("MarkRead should be idempotent: %v", err)
	}
	count, _ := m.UnreadCount(ctx, alice.ID)
	if count != 0 {
		t.Errorf("expected 0 unread, got %d", count)
	}

	if err := m.Delete(ctx, owner, id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := m.Delete(ctx, owner, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMarkAllRead(t *testing.T) {
	database := db.NewTestDB(t)
	m := New(database, nil)
	ctx := context.Background()
	alice := newUser(t, database, "alice")
	bob := newUser(t, database, "bob")

	for range 3 {
		m.Deliver(ctx, notice(alice.ID))
	}
	m.Deliver(ctx, notice(bob.ID))

	n, err := m.MarkAllRead(ctx, alice.ID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 marked, got %d", n)
	}
	n, _ = m.MarkAllRead(ctx, alice.ID)
	if n != 0 {
		t.Errorf("expected 0 on repeat, got %d", n)
	}

	bobUnread, _ := m.UnreadCount(ctx, bob.ID)
	if bobUnread != 1 {
		t.Errorf("bob's notification should stay unread, got %d", bobUnread)
	}
}

func TestListEmpty(t *testing.T) {
	database := db.NewTestDB(t)
	m := New(database, nil)

	list, err := m.List(context.Background(), 42)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if list == nil || len(list) != 0 {
		t.Errorf("expected empty non-nil list, got %#v", list)
	}
}
