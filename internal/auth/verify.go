package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/store"
)

// ErrRevoked is returned for a token that was logged out.
var ErrRevoked = errors.New("token has been revoked")

// Verifier validates tokens and checks them against the revocation list.
type Verifier struct {
	Secret string
	DB     *sqlx.DB
}

// Verify returns the claims of a valid, unrevoked token.
func (v *Verifier) Verify(ctx context.Context, token string) (*TokenClaims, error) {
	claims, err := ValidateToken(v.Secret, token)
	if err != nil {
		return nil, err
	}

	if v.DB != nil && claims.ID != "" {
		revoked, err := store.IsTokenRevoked(ctx, v.DB, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("verifying token: %w", err)
		}
		if revoked {
			return nil, ErrRevoked
		}
	}

	return claims, nil
}
