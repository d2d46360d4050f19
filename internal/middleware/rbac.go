package middleware

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// TableAccessChecker answers whether a user may read, or with edit set, write
// a lead table.
type TableAccessChecker interface {
	CanAccessTable(ctx context.Context, userID, tableID uuid.UUID, edit bool) (bool, error)
}

// RequireTableAccess guards routes carrying a {tableId} URL parameter.
func RequireTableAccess(checker TableAccessChecker, edit bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				writeUnauthorized(w, r, "Authentication required")
				return
			}

			tableID, err := uuid.Parse(chi.URLParam(r, "tableId"))
			if err != nil {
				writeError(w, r, http.StatusBadRequest, "BAD_REQUEST", "Invalid table id", nil)
				return
			}

			allowed, err := checker.CanAccessTable(r.Context(), actor.UserID, tableID, edit)
			if err != nil {
				writeError(w, r, http.StatusInternalServerError, "internal_error", "Permission check failed", nil)
				return
			}
			if !allowed {
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "Access denied", map[string]any{
					"table_id": tableID,
					"edit":     edit,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
