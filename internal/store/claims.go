package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/model"
)

const claimColumns = `c.id, c.item_id, c.claimant_id, c.owner_id, c.status, c.description,
	c.identifying_info, c.contact_info, c.meetup_location, c.meetup_time, c.notes,
	c.created_at, c.updated_at,
	COALESCE(i.name, '') AS item_name, COALESCE(cu.username, '') AS claimant_name,
	COALESCE(ou.username, '') AS owner_name`

const claimFrom = ` FROM claims c
	LEFT JOIN items i ON i.id = c.item_id
	LEFT JOIN users cu ON cu.id = c.claimant_id
	LEFT JOIN users ou ON ou.id = c.owner_id`

// ClaimFilter narrows claim listings. Zero values match everything.
type ClaimFilter struct {
	ItemID     int64
	ClaimantID int64
	OwnerID    int64
	Status     string
}

// ClaimUpdate describes a change to a claim. Nil fields are left alone.
// When ExpectStatus is set the update only applies if the claim still
// has that status; otherwise ErrStale is returned.
type ClaimUpdate struct {
	Status         string
	ExpectStatus   string
	MeetupLocation *string
	MeetupTime     *time.Time
	Notes          *string
}

// CreateClaim inserts a pending claim. The (item, claimant) unique index
// decides concurrent duplicates; the loser gets ErrDuplicate.
func CreateClaim(ctx context.Context, db *sqlx.DB, c model.Claim) (*model.Claim, error) {
	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(
		`INSERT INTO claims (item_id, claimant_id, owner_id, status, description, identifying_info, contact_info)
		 VALUES (?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		c.ItemID, c.ClaimantID, c.OwnerID, model.ClaimStatusPending,
		c.Description, c.IdentifyingInfo, c.ContactInfo,
	).Scan(&id)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("creating claim: %w", ErrDuplicate)
	}
	if err != nil {
		return nil, fmt.Errorf("creating claim: %w", err)
	}

	return GetClaim(ctx, db, id)
}

// GetClaim returns a claim by ID.
func GetClaim(ctx context.Context, db *sqlx.DB, id int64) (*model.Claim, error) {
	c := &model.Claim{}
	err := db.GetContext(ctx, c, db.Rebind(
		`SELECT `+claimColumns+claimFrom+` WHERE c.id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim: %w", err)
	}
	return c, nil
}

// GetClaimByItemAndClaimant returns the claim a user made on an item, if any.
func GetClaimByItemAndClaimant(ctx context.Context, db *sqlx.DB, itemID, claimantID int64) (*model.Claim, error) {
	c := &model.Claim{}
	err := db.GetContext(ctx, c, db.Rebind(
		`SELECT `+claimColumns+claimFrom+` WHERE c.item_id = ? AND c.claimant_id = ?`),
		itemID, claimantID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting claim by item and claimant: %w", err)
	}
	return c, nil
}

// ListClaims returns claims matching the filter, newest first.
func ListClaims(ctx context.Context, db *sqlx.DB, f ClaimFilter) ([]model.Claim, error) {
	query := `SELECT ` + claimColumns + claimFrom + ` WHERE 1=1`
	var args []any

	if f.ItemID > 0 {
		query += ` AND c.item_id = ?`
		args = append(args, f.ItemID)
	}
	if f.ClaimantID > 0 {
		query += ` AND c.claimant_id = ?`
		args = append(args, f.ClaimantID)
	}
	if f.OwnerID > 0 {
		query += ` AND c.owner_id = ?`
		args = append(args, f.OwnerID)
	}
	if f.Status != "" {
		query += ` AND c.status = ?`
		args = append(args, f.Status)
	}

	query += ` ORDER BY c.created_at DESC, c.id DESC`

	var claims []model.Claim
	if err := db.SelectContext(ctx, &claims, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("listing claims: %w", err)
	}
	return claims, nil
}

// UpdateClaim applies u to a claim and refreshes updated_at.
func UpdateClaim(ctx context.Context, db *sqlx.DB, id int64, u ClaimUpdate) error {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	var args []any

	if u.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, u.Status)
	}
	if u.MeetupLocation != nil {
		sets = append(sets, "meetup_location = ?")
		args = append(args, *u.MeetupLocation)
	}
	if u.MeetupTime != nil {
		sets = append(sets, "meetup_time = ?")
		args = append(args, u.MeetupTime.UTC())
	}
	if u.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, *u.Notes)
	}

	query := `UPDATE claims SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, id)
	if u.ExpectStatus != "" {
		query += ` AND status = ?`
		args = append(args, u.ExpectStatus)
	}

	res, err := db.ExecContext(ctx, db.Rebind(query), args...)
	if err != nil {
		return fmt.Errorf("updating claim: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating claim: %w", err)
	}
	if n == 0 {
		if u.ExpectStatus != "" {
			return fmt.Errorf("updating claim %d: %w", id, ErrStale)
		}
		return fmt.Errorf("updating claim %d: %w", id, sql.ErrNoRows)
	}
	return nil
}

// DeleteClaim removes a claim.
func DeleteClaim(ctx context.Context, db *sqlx.DB, id int64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`DELETE FROM claims WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting claim: %w", err)
	}
	return requireRow(res, "deleting claim")
}
