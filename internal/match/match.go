// Package match looks for possible counterparts of a newly reported item
// and tells the people involved over their live connections.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/presence"
	"github.com/erazemk/najdeno/internal/store"
)

// Defaults for a Broadcaster.
const (
	DefaultLimit   = 5
	DefaultTimeout = 5 * time.Second
)

// Presence is the part of presence.Registry the broadcaster needs.
type Presence interface {
	Push(userID int64, ev presence.Event) bool
	Route(userID int64) (presence.Route, bool)
}

// PossibleMatches is the payload sent to the reporter of the new item.
type PossibleMatches struct {
	Item    *model.Item  `json:"item"`
	Matches []model.Item `json:"matches"`
}

// MatchNotice is the payload sent to the owner of a lost item when a
// found item that may be theirs is reported.
type MatchNotice struct {
	Message   string      `json:"message"`
	FoundItem *model.Item `json:"foundItem"`
}

// Result summarizes one evaluation.
type Result struct {
	Matches  []model.Item
	Notified []int64
}

// Broadcaster evaluates new items against open reports.
type Broadcaster struct {
	db       *sqlx.DB
	presence Presence
	limit    int
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Broadcaster.
type Option func(*Broadcaster)

// WithLimit caps how many candidates are considered per evaluation.
func WithLimit(n int) Option {
	return func(b *Broadcaster) {
		if n > 0 {
			b.limit = n
		}
	}
}

// WithTimeout sets the store call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Broadcaster) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broadcaster) {
		if l != nil {
			b.logger = l
		}
	}
}

// New creates a Broadcaster.
func New(db *sqlx.DB, p Presence, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		db:       db,
		presence: p,
		limit:    DefaultLimit,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Evaluate finds items of the opposite status in the same category and
// pushes them to the new item's reporter. For a found item, reporters of
// the matching lost items are also told if they are connected. Nothing is
// written to the mailbox and failures are only logged.
func (b *Broadcaster) Evaluate(ctx context.Context, itemID int64) Result {
	var res Result

	sctx, cancel := context.WithTimeout(ctx, b.timeout)
	item, err := store.GetItem(sctx, b.db, itemID)
	cancel()
	if err != nil {
		b.logger.Error("loading item for matching", "item", itemID, "error", err)
		return res
	}
	if item == nil {
		b.logger.Debug("item to match not found", "item", itemID)
		return res
	}

	want, ok := model.MatchingStatus(item.Status)
	if !ok {
		return res
	}

	sctx, cancel = context.WithTimeout(ctx, b.timeout)
	candidates, err := store.FindItems(sctx, b.db, store.ItemFilter{
		Status:   want,
		Category: item.Category,
	}, b.limit)
	cancel()
	if err != nil {
		b.logger.Error("finding match candidates", "item", itemID, "error", err)
		return res
	}
	if candidates == nil {
		candidates = []model.Item{}
	}
	res.Matches = candidates

	b.presence.Push(item.ReporterID, presence.Event{
		Type: presence.EventPossibleMatches,
		Data: PossibleMatches{Item: item, Matches: candidates},
	})

	if item.Status != model.ItemStatusFound {
		return res
	}

	for _, c := range candidates {
		route, ok := b.presence.Route(c.ReporterID)
		if !ok {
			continue
		}
		route.Push(presence.Event{
			Type: presence.EventItemMatchNotification,
			Data: MatchNotice{
				Message:   fmt.Sprintf("A found item may match your lost %q.", c.Name),
				FoundItem: item,
			},
		})
		res.Notified = append(res.Notified, c.ReporterID)
	}

	b.logger.Debug("match evaluated",
		"item", itemID, "candidates", len(candidates), "notified", len(res.Notified))
	return res
}
