// Package claims runs the claim lifecycle: pending claims are approved or
// rejected by the item's owner and approved claims are completed once
// the item changes hands. Transitions update the claimed item and notify
// the other party.
package claims

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/apperr"
	"github.com/erazemk/najdeno/internal/mailbox"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/store"
)

// DefaultTimeout bounds the store calls of one operation.
const DefaultTimeout = 5 * time.Second

// Deliverer records and pushes notifications. mailbox.Mailbox implements it.
type Deliverer interface {
	Deliver(ctx context.Context, n model.Notification) mailbox.Delivery
}

// Service implements claim operations.
type Service struct {
	db      *sqlx.DB
	notify  Deliverer
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout sets the store timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Service.
func New(db *sqlx.DB, notify Deliverer, opts ...Option) *Service {
	s := &Service{
		db:      db,
		notify:  notify,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest is a claim on an item.
type CreateRequest struct {
	ItemID          int64  `json:"item_id"`
	Description     string `json:"description"`
	IdentifyingInfo string `json:"identifying_info"`
	ContactInfo     string `json:"contact_info"`
}

// UpdateRequest changes a claim's status and meetup details. An empty
// Status leaves the status alone; nil fields are not changed.
type UpdateRequest struct {
	Status         string     `json:"status"`
	MeetupLocation *string    `json:"meetup_location"`
	MeetupTime     *time.Time `json:"meetup_time"`
	Notes          *string    `json:"notes"`
}

// Create files a pending claim by actor and tells the item's owner.
func (s *Service) Create(ctx context.Context, actor model.Actor, req CreateRequest) (*model.Claim, error) {
	req.Description = strings.TrimSpace(req.Description)
	req.IdentifyingInfo = strings.TrimSpace(req.IdentifyingInfo)
	req.ContactInfo = strings.TrimSpace(req.ContactInfo)
	if req.Description == "" || req.IdentifyingInfo == "" {
		return nil, apperr.Invalid("description and identifying info are required")
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	item, err := store.GetItem(sctx, s.db, req.ItemID)
	if err != nil {
		return nil, apperr.Unavailable("getting item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	if actor.Is(item.ReporterID) {
		return nil, apperr.Invalid("cannot claim an item you reported")
	}

	existing, err := store.GetClaimByItemAndClaimant(sctx, s.db, item.ID, actor.UserID)
	if err != nil {
		return nil, apperr.Unavailable("checking existing claim", err)
	}
	if existing != nil {
		return nil, fmt.Errorf("%w: you already claimed this item", apperr.ErrConflict)
	}

	c, err := store.CreateClaim(sctx, s.db, model.Claim{
		ItemID:          item.ID,
		ClaimantID:      actor.UserID,
		OwnerID:         item.ReporterID,
		Description:     req.Description,
		IdentifyingInfo: req.IdentifyingInfo,
		ContactInfo:     req.ContactInfo,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, fmt.Errorf("%w: you already claimed this item", apperr.ErrConflict)
	}
	if err != nil {
		return nil, apperr.Unavailable("creating claim", err)
	}

	s.logger.Info("claim created", "claim", c.ID, "item", item.ID, "claimant", actor.UserID)

	s.notify.Deliver(context.WithoutCancel(ctx), model.Notification{
		RecipientID:   c.OwnerID,
		SenderID:      &c.ClaimantID,
		Type:          model.NotificationClaimRequest,
		Title:         "New claim request",
		Message:       fmt.Sprintf("%s says %q belongs to them.", displayName(c.ClaimantName), item.Name),
		RelatedItemID: &c.ItemID,
	})

	return c, nil
}

// UpdateStatus approves or rejects a claim and applies meetup details.
// Only the item's owner or an admin may do so. Approving marks the item
// claimed and tells the claimant; approving an approved claim repeats
// both.
func (s *Service) UpdateStatus(ctx context.Context, actor model.Actor, claimID int64, req UpdateRequest) (*model.Claim, error) {
	switch req.Status {
	case "", model.ClaimStatusApproved, model.ClaimStatusRejected:
	case model.ClaimStatusCompleted:
		return nil, apperr.Invalid("use complete to finish a claim")
	default:
		return nil, apperr.Invalid(fmt.Sprintf("cannot set claim status to %q", req.Status))
	}

	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.load(sctx, claimID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !actor.Is(c.OwnerID) {
		return nil, apperr.Forbidden("only the item's owner can review a claim")
	}

	to := req.Status
	if to == "" {
		to = c.Status
	}
	if model.ClaimTerminal(c.Status) {
		return nil, &apperr.TransitionError{From: c.Status, To: to, Terminal: true}
	}
	if req.Status != "" && !model.ClaimTransitionAllowed(c.Status, to) {
		return nil, &apperr.TransitionError{From: c.Status, To: to}
	}

	err = store.UpdateClaim(sctx, s.db, c.ID, store.ClaimUpdate{
		Status:         req.Status,
		ExpectStatus:   c.Status,
		MeetupLocation: trimmed(req.MeetupLocation),
		MeetupTime:     req.MeetupTime,
		Notes:          trimmed(req.Notes),
	})
	if err != nil {
		return nil, updateErr("updating claim", err)
	}

	s.logger.Info("claim updated", "claim", c.ID, "from", c.Status, "to", to, "actor", actor.UserID)

	var itemErr error
	if req.Status == model.ClaimStatusApproved {
		// The claim is committed; the item update and the notice are
		// both attempted regardless of each other.
		if err := store.UpdateItemStatus(sctx, s.db, c.ItemID, model.ItemStatusClaimed); err != nil {
			itemErr = apperr.Unavailable("marking item claimed", err)
			s.logger.Error("marking item claimed", "claim", c.ID, "item", c.ItemID, "error", err)
		}
	}

	updated, loadErr := s.load(sctx, c.ID)
	if loadErr != nil {
		s.logger.Error("reloading claim", "claim", c.ID, "error", loadErr)
		updated = applied(c, to, req)
	}

	if req.Status == model.ClaimStatusApproved {
		s.notify.Deliver(context.WithoutCancel(ctx), model.Notification{
			RecipientID:   updated.ClaimantID,
			SenderID:      &updated.OwnerID,
			Type:          model.NotificationClaimApproved,
			Title:         "Claim approved",
			Message:       approvalMessage(updated),
			RelatedItemID: &updated.ItemID,
		})
	}

	if err := errors.Join(itemErr, loadErr); err != nil {
		return nil, err
	}
	return updated, nil
}

// applied returns a copy of c as it looks after req was written.
func applied(c *model.Claim, status string, req UpdateRequest) *model.Claim {
	out := *c
	out.Status = status
	if req.MeetupLocation != nil {
		out.MeetupLocation = strings.TrimSpace(*req.MeetupLocation)
	}
	if req.MeetupTime != nil {
		out.MeetupTime = req.MeetupTime
	}
	if req.Notes != nil {
		out.Notes = strings.TrimSpace(*req.Notes)
	}
	return &out
}

// Complete records that an approved claim's item was handed over. The
// owner, the claimant or an admin may complete it. The item becomes
// returned and whoever did not complete the claim is told.
func (s *Service) Complete(ctx context.Context, actor model.Actor, claimID int64) (*model.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.load(sctx, claimID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !actor.Is(c.OwnerID) && !actor.Is(c.ClaimantID) {
		return nil, apperr.Forbidden("only the owner or the claimant can complete a claim")
	}
	if model.ClaimTerminal(c.Status) {
		return nil, &apperr.TransitionError{From: c.Status, To: model.ClaimStatusCompleted, Terminal: true}
	}
	if !model.ClaimTransitionAllowed(c.Status, model.ClaimStatusCompleted) {
		return nil, &apperr.TransitionError{From: c.Status, To: model.ClaimStatusCompleted}
	}

	err = store.UpdateClaim(sctx, s.db, c.ID, store.ClaimUpdate{
		Status:       model.ClaimStatusCompleted,
		ExpectStatus: c.Status,
	})
	if err != nil {
		return nil, updateErr("completing claim", err)
	}

	s.logger.Info("claim completed", "claim", c.ID, "item", c.ItemID, "actor", actor.UserID)

	var itemErr error
	if err := store.UpdateItemStatus(sctx, s.db, c.ItemID, model.ItemStatusReturned); err != nil {
		itemErr = apperr.Unavailable("marking item returned", err)
		s.logger.Error("marking item returned", "claim", c.ID, "item", c.ItemID, "error", err)
	}

	var recipients []int64
	switch {
	case actor.Is(c.OwnerID):
		recipients = []int64{c.ClaimantID}
	case actor.Is(c.ClaimantID):
		recipients = []int64{c.OwnerID}
	default:
		recipients = []int64{c.OwnerID, c.ClaimantID}
	}
	for _, r := range recipients {
		s.notify.Deliver(context.WithoutCancel(ctx), model.Notification{
			RecipientID:   r,
			Type:          model.NotificationSystem,
			Title:         "Item returned",
			Message:       fmt.Sprintf("The claim on %q was completed.", c.ItemName),
			RelatedItemID: &c.ItemID,
		})
	}

	if itemErr != nil {
		return nil, itemErr
	}
	return s.load(sctx, c.ID)
}

// Delete withdraws a claim. Only the claimant or an admin may do so.
// The item and any notifications are left untouched.
func (s *Service) Delete(ctx context.Context, actor model.Actor, claimID int64) error {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.load(sctx, claimID)
	if err != nil {
		return err
	}
	if !actor.Admin && !actor.Is(c.ClaimantID) {
		return apperr.Forbidden("only the claimant can withdraw a claim")
	}

	if err := store.DeleteClaim(sctx, s.db, c.ID); err != nil {
		return updateErr("deleting claim", err)
	}
	s.logger.Info("claim deleted", "claim", c.ID, "actor", actor.UserID)
	return nil
}

// Get returns a claim visible to its owner, its claimant and admins.
func (s *Service) Get(ctx context.Context, actor model.Actor, claimID int64) (*model.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	c, err := s.load(sctx, claimID)
	if err != nil {
		return nil, err
	}
	if !actor.Admin && !actor.Is(c.OwnerID) && !actor.Is(c.ClaimantID) {
		return nil, apperr.Forbidden("claim belongs to other users")
	}
	return c, nil
}

// ListByItem returns the claims on an item for its reporter or an admin.
func (s *Service) ListByItem(ctx context.Context, actor model.Actor, itemID int64) ([]model.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	item, err := store.GetItem(sctx, s.db, itemID)
	if err != nil {
		return nil, apperr.Unavailable("getting item", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	if !actor.Admin && !actor.Is(item.ReporterID) {
		return nil, apperr.Forbidden("only the reporter can see claims on this item")
	}
	return s.list(sctx, store.ClaimFilter{ItemID: itemID})
}

// ListByClaimant returns the claims a user has made.
func (s *Service) ListByClaimant(ctx context.Context, userID int64) ([]model.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.list(sctx, store.ClaimFilter{ClaimantID: userID})
}

// ListByOwner returns the claims made on a user's items.
func (s *Service) ListByOwner(ctx context.Context, userID int64) ([]model.Claim, error) {
	sctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.list(sctx, store.ClaimFilter{OwnerID: userID})
}

func (s *Service) list(ctx context.Context, f store.ClaimFilter) ([]model.Claim, error) {
	claims, err := store.ListClaims(ctx, s.db, f)
	if err != nil {
		return nil, apperr.Unavailable("listing claims", err)
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return claims, nil
}

func (s *Service) load(ctx context.Context, id int64) (*model.Claim, error) {
	c, err := store.GetClaim(ctx, s.db, id)
	if err != nil {
		return nil, apperr.Unavailable("getting claim", err)
	}
	if c == nil {
		return nil, apperr.NotFound("claim")
	}
	return c, nil
}

// updateErr maps store errors from a claim write.
func updateErr(op string, err error) error {
	switch {
	case errors.Is(err, store.ErrStale):
		return fmt.Errorf("%w: claim was changed by someone else", apperr.ErrConflict)
	case errors.Is(err, sql.ErrNoRows):
		return apperr.NotFound("claim")
	}
	return apperr.Unavailable(op, err)
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

func displayName(username string) string {
	if username == "" {
		return "Someone"
	}
	return username
}

func approvalMessage(c *model.Claim) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your claim on %q was approved.", c.ItemName)
	if c.MeetupLocation != "" {
		fmt.Fprintf(&b, " Meet at %s", c.MeetupLocation)
		if c.MeetupTime != nil {
			fmt.Fprintf(&b, " on %s", c.MeetupTime.Format("2 Jan 2006 15:04"))
		}
		b.WriteString(".")
	}
	if c.Notes != "" {
		fmt.Fprintf(&b, " Notes: %s", c.Notes)
	}
	return b.String()
}
