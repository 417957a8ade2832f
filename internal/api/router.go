package api

import (
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/erazemk/najdeno/internal/auth"
	"github.com/erazemk/najdeno/internal/claims"
	"github.com/erazemk/najdeno/internal/mailbox"
	"github.com/erazemk/najdeno/internal/model"
	"github.com/erazemk/najdeno/internal/presence"
)

// Deps are the collaborators the API is built on.
type Deps struct {
	DB           *sqlx.DB
	JWTSecret    string
	StoreTimeout time.Duration
	Registry     *presence.Registry
	Mailbox      *mailbox.Mailbox
	Claims       *claims.Service

	// Live serves GET /api/live when set.
	Live http.Handler
}

// NewRouter creates the API router with all endpoints registered.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{DB: d.DB, JWTSecret: d.JWTSecret}
	usersHandler := &UsersHandler{DB: d.DB}
	itemsHandler := &ItemsHandler{DB: d.DB, Timeout: d.StoreTimeout}
	claimsHandler := &ClaimsHandler{Service: d.Claims}
	notificationsHandler := &NotificationsHandler{Mailbox: d.Mailbox}
	healthHandler := &HealthHandler{DB: d.DB, Registry: d.Registry}

	authMW := AuthMiddleware(&auth.Verifier{Secret: d.JWTSecret, DB: d.DB})
	requireAdmin := RequireRole(model.RoleAdmin)
	authed := func(h http.HandlerFunc) http.Handler { return authMW(h) }

	// Public.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("GET /api/health", healthHandler.Health)
	if d.Live != nil {
		// Live connections authenticate with their first frame.
		mux.Handle("GET /api/live", d.Live)
	}

	mux.Handle("PUT /api/auth/password", authed(authHandler.ChangePassword))
	mux.Handle("POST /api/auth/logout", authed(authHandler.Logout))

	// Users (admin only).
	mux.Handle("GET /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.List))))
	mux.Handle("POST /api/users", authMW(requireAdmin(http.HandlerFunc(usersHandler.Create))))
	mux.Handle("GET /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Get))))
	mux.Handle("PUT /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Update))))
	mux.Handle("PUT /api/users/{id}/password", authMW(requireAdmin(http.HandlerFunc(usersHandler.ResetPassword))))
	mux.Handle("DELETE /api/users/{id}", authMW(requireAdmin(http.HandlerFunc(usersHandler.Delete))))

	// Items: any member may report; reporters and admins may edit.
	mux.Handle("GET /api/items", authed(itemsHandler.List))
	mux.Handle("POST /api/items", authed(itemsHandler.Create))
	mux.Handle("GET /api/items/{id}", authed(itemsHandler.Get))
	mux.Handle("PUT /api/items/{id}/status", authed(itemsHandler.UpdateStatus))
	mux.Handle("PUT /api/items/{id}/photo", authed(itemsHandler.UploadPhoto))
	mux.Handle("GET /api/items/{id}/photo", authed(itemsHandler.GetPhoto))
	mux.Handle("GET /api/items/{id}/claims", authed(claimsHandler.ListByItem))

	// Claims.
	mux.Handle("POST /api/claims", authed(claimsHandler.Create))
	mux.Handle("GET /api/claims/mine", authed(claimsHandler.Mine))
	mux.Handle("GET /api/claims/received", authed(claimsHandler.Received))
	mux.Handle("GET /api/claims/{id}", authed(claimsHandler.Get))
	mux.Handle("PUT /api/claims/{id}/status", authed(claimsHandler.UpdateStatus))
	mux.Handle("POST /api/claims/{id}/complete", authed(claimsHandler.Complete))
	mux.Handle("DELETE /api/claims/{id}", authed(claimsHandler.Delete))

	// Notifications (own mailbox only).
	mux.Handle("GET /api/notifications", authed(notificationsHandler.List))
	mux.Handle("GET /api/notifications/unread-count", authed(notificationsHandler.UnreadCount))
	mux.Handle("PUT /api/notifications/read-all", authed(notificationsHandler.MarkAllRead))
	mux.Handle("PUT /api/notifications/{id}/read", authed(notificationsHandler.MarkRead))
	mux.Handle("DELETE /api/notifications/{id}", authed(notificationsHandler.Delete))

	return mux
}
