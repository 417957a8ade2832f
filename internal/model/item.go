package model

import "time"

// Item is a lost or found item reported by a community member.
type Item struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description string    `db:"description" json:"description,omitempty"`
	Category    string    `db:"category" json:"category"`
	Status      string    `db:"status" json:"status"`
	Location    string    `db:"location" json:"location,omitempty"`
	ReporterID  int64     `db:"reporter_id" json:"reporter_id"`
	PhotoMIME   string    `db:"photo_mime" json:"photo_mime,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	// Joined fields (not always populated).
	ReporterName string `db:"reporter_name" json:"reporter_name,omitempty"`
}

// Item statuses.
const (
	ItemStatusLost     = "lost"
	ItemStatusFound    = "found"
	ItemStatusClaimed  = "claimed"
	ItemStatusReturned = "returned"
)

// Item categories.
const (
	CategoryElectronics = "electronics"
	CategoryDocuments   = "documents"
	CategoryKeys        = "keys"
	CategoryWallets     = "wallets"
	CategoryBags        = "bags"
	CategoryClothing    = "clothing"
	CategoryJewelry     = "jewelry"
	CategoryPets        = "pets"
	CategoryOther       = "other"
)

// Categories lists every accepted item category.
var Categories = []string{
	CategoryElectronics,
	CategoryDocuments,
	CategoryKeys,
	CategoryWallets,
	CategoryBags,
	CategoryClothing,
	CategoryJewelry,
	CategoryPets,
	CategoryOther,
}

// ValidCategory reports whether c is one of the closed set of categories.
func ValidCategory(c string) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// ValidItemStatus reports whether s is a known item status.
func ValidItemStatus(s string) bool {
	switch s {
	case ItemStatusLost, ItemStatusFound, ItemStatusClaimed, ItemStatusReturned:
		return true
	}
	return false
}

// MatchingStatus returns the status an item must have to be a possible
// match for an item with the given status. Only lost and found items match.
func MatchingStatus(status string) (string, bool) {
	switch status {
	case ItemStatusFound:
		return ItemStatusLost, true
	case ItemStatusLost:
		return ItemStatusFound, true
	}
	return "", false
}
