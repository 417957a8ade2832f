package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
)

func TestNotificationLifecycle(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()

	alice, _ := CreateUser(ctx, database, "alice", "hash", model.RoleUser)
	bob, _ := CreateUser(ctx, database, "bob", "hash", model.RoleUser)
	item, _ := CreateItem(ctx, database, bob.ID, "Wallet", "", model.CategoryWallets, model.ItemStatusFound, "")

	first, err := CreateNotification(ctx, database, model.Notification{
		RecipientID: alice.ID,
		Type:        model.NotificationSystem,
		Title:       "Welcome",
		Message:     "hello",
	})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if first.IsRead {
		t.Error("new notification should be unread")
	}
	if first.SenderID != nil || first.RelatedItemID != nil {
		t.Errorf("expected nil sender and item, got %v %v", first.SenderID, first.RelatedItemID)
	}

	second, err := CreateNotification(ctx, database, model.Notification{
		RecipientID:   alice.ID,
		SenderID:      &bob.ID,
		Type:          model.NotificationClaimApproved,
		Title:         "Claim approved",
		Message:       "come pick it up",
		RelatedItemID: &item.ID,
	})
	if err != nil {
		t.Fatalf("CreateNotification: %v", err)
	}
	if second.SenderID == nil || *second.SenderID != bob.ID {
		t.Errorf("expected sender %d, got %v", bob.ID, second.SenderID)
	}

	list, _ := ListNotifications(ctx, database, alice.ID)
	if len(list) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(list))
	}
	if list[0].ID != second.ID {
		t.Errorf("expected newest first, got %d", list[0].ID)
	}

	count, _ := CountUnreadNotifications(ctx, database, alice.ID)
	if count != 2 {
		t.Errorf("expected 2 unread, got %d", count)
	}

	if err := MarkNotificationRead(ctx, database, first.ID); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	// Idempotent.
	if err := MarkNotificationRead(ctx, database, first.ID); err != nil {
		t.Fatalf("MarkNotificationRead twice: %v", err)
	}
	count, _ = CountUnreadNotifications(ctx, database, alice.ID)
	if count != 1 {
		t.Errorf("expected 1 unread, got %d", count)
	}

	changed, err := MarkAllNotificationsRead(ctx, database, alice.ID)
	if err != nil {
		t.Fatalf("MarkAllNotificationsRead: %v", err)
	}
	if changed != 1 {
		t.Errorf("expected 1 changed, got %d", changed)
	}
	changed, _ = MarkAllNotificationsRead(ctx, database, alice.ID)
	if changed != 0 {
		t.Errorf("expected 0 changed on second pass, got %d", changed)
	}

	if err := DeleteNotification(ctx, database, first.ID); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}
	if err := DeleteNotification(ctx, database, first.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
	if err := MarkNotificationRead(ctx, database, first.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}

	list, _ = ListNotifications(ctx, database, alice.ID)
	if len(list) != 1 {
		t.Errorf("expected 1 notification left, got %d", len(list))
	}

	bobList, _ := ListNotifications(ctx, database, bob.ID)
	if len(bobList) != 0 {
		t.Errorf("expected bob's mailbox empty, got %d", len(bobList))
	}
}

func TestCreateNotificationRejectsUnknownType(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	alice, _ := CreateUser(ctx, database, "alice", "hash", model.RoleUser)

	_, err := CreateNotification(ctx, database, model.Notification{
		RecipientID: alice.ID,
		Type:        "bogus",
		Title:       "x",
		Message:     "y",
	})
	if err == nil {
		t.Error("expected check constraint failure for unknown type")
	}
}
