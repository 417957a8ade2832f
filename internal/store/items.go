package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/model"
)

const itemColumns = `i.id, i.name, i.description, i.category, i.status, i.location, i.reporter_id,
	i.photo_mime, i.created_at, i.updated_at, COALESCE(u.username, '') AS reporter_name`

const itemFrom = ` FROM items i LEFT JOIN users u ON u.id = i.reporter_id`

// ItemFilter narrows item queries. Zero values match everything.
type ItemFilter struct {
	Status     string
	Category   string
	ReporterID int64
}

// CreateItem records a newly reported lost or found item.
func CreateItem(ctx context.Context, db *sqlx.DB, reporterID int64, name, description, category, status, location string) (*model.Item, error) {
	var id int64
	err := db.QueryRowxContext(ctx, db.Rebind(
		`INSERT INTO items (name, description, category, status, location, reporter_id)
		 VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		name, description, category, status, location, reporterID,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("creating item: %w", err)
	}

	return GetItem(ctx, db, id)
}

// GetItem returns an item by ID.
func GetItem(ctx context.Context, db *sqlx.DB, id int64) (*model.Item, error) {
	item := &model.Item{}
	err := db.GetContext(ctx, item, db.Rebind(
		`SELECT `+itemColumns+itemFrom+` WHERE i.id = ?`), id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	return item, nil
}

// FindItems returns items matching the filter, newest first. A limit of
// zero or less returns every match.
func FindItems(ctx context.Context, db *sqlx.DB, f ItemFilter, limit int) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + itemFrom + ` WHERE 1=1`
	var args []any

	if f.Status != "" {
		query += ` AND i.status = ?`
		args = append(args, f.Status)
	}
	if f.Category != "" {
		query += ` AND i.category = ?`
		args = append(args, f.Category)
	}
	if f.ReporterID > 0 {
		query += ` AND i.reporter_id = ?`
		args = append(args, f.ReporterID)
	}

	query += ` ORDER BY i.created_at DESC, i.id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var items []model.Item
	if err := db.SelectContext(ctx, &items, db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("finding items: %w", err)
	}
	return items, nil
}

// ListItems returns every item matching the filter, newest first.
func ListItems(ctx context.Context, db *sqlx.DB, f ItemFilter) ([]model.Item, error) {
	return FindItems(ctx, db, f, 0)
}

// UpdateItemStatus sets an item's status. Setting the status the item
// already has succeeds, so callers can retry it safely.
func UpdateItemStatus(ctx context.Context, db *sqlx.DB, id int64, status string) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`),
		status, id,
	)
	if err != nil {
		return fmt.Errorf("updating item status: %w", err)
	}
	return requireRow(res, "updating item status")
}

// SwitchOpenItemStatus moves an item between lost and found. The write
// only applies while the item is still lost or found; an item the claim
// workflow has meanwhile claimed or returned yields ErrStale.
func SwitchOpenItemStatus(ctx context.Context, db *sqlx.DB, id int64, status string) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET status = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ? AND status IN (?, ?)`),
		status, id, model.ItemStatusLost, model.ItemStatusFound,
	)
	if err != nil {
		return fmt.Errorf("switching item status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("switching item status: %w", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = db.GetContext(ctx, &exists, db.Rebind(`SELECT 1 FROM items WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("switching item %d status: %w", id, err)
	}
	return fmt.Errorf("switching item %d status: %w", id, ErrStale)
}

// SetItemPhoto stores an item's photo together with its thumbnail.
func SetItemPhoto(ctx context.Context, db *sqlx.DB, id int64, photo, thumb []byte, mime string) error {
	res, err := db.ExecContext(ctx, db.Rebind(
		`UPDATE items SET photo = ?, photo_thumb = ?, photo_mime = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`),
		photo, thumb, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting item photo: %w", err)
	}
	return requireRow(res, "setting item photo")
}

// GetItemPhoto returns an item's photo (or its thumbnail) and MIME type.
// A nil slice means the item has no photo.
func GetItemPhoto(ctx context.Context, db *sqlx.DB, id int64, thumb bool) ([]byte, string, error) {
	column := "photo"
	if thumb {
		column = "photo_thumb"
	}

	var data []byte
	var mime string
	err := db.QueryRowxContext(ctx, db.Rebind(
		`SELECT `+column+`, photo_mime FROM items WHERE id = ?`), id,
	).Scan(&data, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting item photo: %w", err)
	}
	return data, mime, nil
}
