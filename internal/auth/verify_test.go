package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/erazemk/najdeno/internal/db"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

func TestVerifierRejectsRevokedToken(t *testing.T) {
	database := db.NewTestDB(t)
	ctx := context.Background()
	v := &Verifier{Secret: "secret", DB: database}

	token, _ := GenerateToken(v.Secret, 3, "ana", model.RoleUser)
	claims, err := v.Verify(ctx, token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if err := store.RevokeToken(ctx, database, claims.ID, claims.ExpiresAt.Time); err != nil {
		t.Fatalf("RevokeToken: %v", err)
	}
	if _, err := v.Verify(ctx, token); !errors.Is(err, ErrRevoked) {
		t.Errorf("expected ErrRevoked, got %v", err)
	}

	// Other tokens of the same user stay valid.
	other, _ := GenerateToken(v.Secret, 3, "ana", model.RoleUser)
	if _, err := v.Verify(ctx, other); err != nil {
		t.Errorf("Verify other token: %v", err)
	}
}

func TestVerifierWithoutDatabase(t *testing.T) {
	v := &Verifier{Secret: "secret"}
	token, _ := GenerateToken(v.Secret, 3, "ana", model.RoleUser)
	if _, err := v.Verify(context.Background(), token); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if _, err := v.Verify(context.Background(), "garbage"); err == nil {
		t.Error("expected error for garbage token")
	}
}
