// Package live serves the WebSocket endpoint that binds browser sessions
// to the presence registry. Clients authenticate with their bearer token,
// then receive pushed events and may ask for a match evaluation of an
// item they just reported.
package live

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/match"
	"github.com/erazemk/najdeno/internal/presence"
)

// Inbound frame types.
const (
	FrameAuthenticate    = "authenticate"
	FrameEvaluateNewItem = "evaluate-new-item"
)

const (
	readLimit    = 64 << 10
	writeTimeout = 10 * time.Second
)

// Verifier checks bearer tokens. auth.Verifier implements it.
type Verifier interface {
	Verify(ctx context.Context, token string) (*auth.TokenClaims, error)
}

// Evaluator runs a match evaluation. match.Broadcaster implements it.
type Evaluator interface {
	Evaluate(ctx context.Context, itemID int64) match.Result
}

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type authenticateData struct {
	UserID int64  `json:"userId"`
	Token  string `json:"token"`
}

type evaluateData struct {
	ItemID int64 `json:"itemId"`
}

// AuthenticatedData is the payload of the authenticated reply.
type AuthenticatedData struct {
	UserID int64 `json:"userId"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Message string `json:"message"`
}

// Handler accepts live connections.
type Handler struct {
	registry *presence.Registry
	verifier Verifier
	matcher  Evaluator
	schema   *jsonschema.Schema
	logger   *slog.Logger

	evaluations sync.WaitGroup
}

// NewHandler creates a Handler.
func NewHandler(registry *presence.Registry, verifier Verifier, matcher Evaluator, logger *slog.Logger) (*Handler, error) {
	sch, err := compileFrameSchema()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry: registry,
		verifier: verifier,
		matcher:  matcher,
		schema:   sch,
		logger:   logger,
	}, nil
}

// Wait blocks until every match evaluation started over a connection
// has finished.
func (h *Handler) Wait() {
	h.evaluations.Wait()
}

// ServeHTTP handles GET /api/live.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("accepting live connection", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(readLimit)

	id := uuid.NewString()
	s := &session{
		h:      h,
		conn:   c,
		id:     id,
		logger: h.logger.With("conn", id),
	}
	s.logger.Debug("live connection opened", "remote", r.RemoteAddr)

	s.run(r.Context())

	c.Close(websocket.StatusNormalClosure, "")
}

// session is one live connection.
type session struct {
	h      *Handler
	conn   *websocket.Conn
	id     string
	logger *slog.Logger

	userID int64
	pump   sync.WaitGroup

	// At most one evaluation runs per connection.
	evaluating atomic.Bool
}

func (s *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		s.h.registry.Unregister(s.id)
		cancel()
		s.pump.Wait()
		s.logger.Debug("live connection closed", "user", s.userID)
	}()

	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && !errors.Is(err, context.Canceled) {
				s.logger.Debug("reading live frame", "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			s.sendError(ctx, "frames must be JSON text")
			continue
		}
		s.dispatch(ctx, data)
	}
}

func (s *session) dispatch(ctx context.Context, raw []byte) {
	if err := validateFrame(s.h.schema, raw); err != nil {
		s.logger.Debug("rejecting live frame", "error", err)
		s.sendError(ctx, "invalid frame")
		return
	}

	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		s.sendError(ctx, "invalid frame")
		return
	}

	switch f.Type {
	case FrameAuthenticate:
		var d authenticateData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			s.sendError(ctx, "invalid frame")
			return
		}
		s.authenticate(ctx, d)

	case FrameEvaluateNewItem:
		var d evaluateData
		if err := json.Unmarshal(f.Data, &d); err != nil {
			s.sendError(ctx, "invalid frame")
			return
		}
		s.evaluate(ctx, d.ItemID)
	}
}

func (s *session) authenticate(ctx context.Context, d authenticateData) {
	claims, err := s.h.verifier.Verify(ctx, d.Token)
	if err != nil {
		s.logger.Warn("live authentication failed", "error", err)
		s.sendError(ctx, "authentication failed")
		return
	}
	if d.UserID != 0 && d.UserID != claims.UserID {
		s.logger.Warn("live authentication for another user", "token_user", claims.UserID, "requested", d.UserID)
		s.sendError(ctx, "user id does not match token")
		return
	}

	stream := s.h.registry.Register(claims.UserID, s.id)
	if s.userID == 0 {
		s.pump.Add(1)
		go s.drain(ctx, stream)
	}
	s.userID = claims.UserID
	s.logger.Debug("live connection authenticated", "user", s.userID)

	s.send(ctx, presence.Event{
		Type: presence.EventAuthenticated,
		Data: AuthenticatedData{UserID: claims.UserID},
	})
}

// evaluate runs in the background so a slow evaluation never stalls the
// reader. A request arriving while the previous one still runs is refused.
func (s *session) evaluate(ctx context.Context, itemID int64) {
	if s.userID == 0 {
		s.sendError(ctx, "not authenticated")
		return
	}
	if !s.evaluating.CompareAndSwap(false, true) {
		s.logger.Debug("evaluation already running", "item", itemID)
		s.sendError(ctx, "an evaluation is already in progress")
		return
	}

	s.h.evaluations.Add(1)
	go func() {
		defer s.h.evaluations.Done()
		defer s.evaluating.Store(false)
		s.h.matcher.Evaluate(context.Background(), itemID)
	}()
}

// drain writes pushed events until the registry closes the stream.
func (s *session) drain(ctx context.Context, stream <-chan presence.Event) {
	defer s.pump.Done()
	for ev := range stream {
		if err := s.write(ctx, ev); err != nil {
			s.logger.Debug("writing live event", "type", ev.Type, "error", err)
			s.conn.CloseNow()
			// Keep draining so the stream can be closed cleanly.
			for range stream {
			}
			return
		}
	}
}

func (s *session) send(ctx context.Context, ev presence.Event) {
	if err := s.write(ctx, ev); err != nil {
		s.logger.Debug("writing live reply", "type", ev.Type, "error", err)
	}
}

func (s *session) sendError(ctx context.Context, msg string) {
	s.send(ctx, presence.Event{Type: presence.EventError, Data: ErrorData{Message: msg}})
}

func (s *session) write(ctx context.Context, ev presence.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, s.conn, ev)
}
