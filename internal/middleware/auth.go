package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/leadboard/apps/api/internal/auth"
	"github.com/leadboard/apps/api/internal/store"
)

// SessionResolver looks up live sessions by the hash of their cookie token.
type SessionResolver interface {
	GetSessionPrincipalByTokenHash(ctx context.Context, tokenHash string) (store.SessionPrincipal, error)
	TouchSession(ctx context.Context, sessionID uuid.UUID) error
}

type AuthMiddleware struct {
	Sessions   SessionResolver
	CookieName string
	Logger     *slog.Logger
}

func (m AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(m.CookieName)
		if err != nil || cookie.Value == "" {
			writeUnauthorized(w, r, "Authentication required")
			return
		}

		principal, err := m.Sessions.GetSessionPrincipalByTokenHash(r.Context(), auth.HashToken(cookie.Value))
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeUnauthorized(w, r, "Session is invalid")
				return
			}
			writeError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load session", nil)
			return
		}

		if err := m.Sessions.TouchSession(r.Context(), principal.SessionID); err != nil && m.Logger != nil {
			m.Logger.Warn("session_touch_failed", "session_id", principal.SessionID, "error", err)
		}

		ctx := WithActor(r.Context(), Actor{
			SessionID: principal.SessionID,
			UserID:    principal.UserID,
			OrgID:     principal.OrgID,
			Email:     principal.Email,
			FullName:  principal.FullName,
			OrgSlug:   principal.OrgSlug,
			OrgName:   principal.OrgName,
			CSRFToken: principal.CSRFToken,
			ExpiresAt: principal.ExpiresAt,
		})

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
