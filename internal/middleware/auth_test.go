package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leadboard/apps/api/internal/apperr"
	"github.com/leadboard/apps/api/internal/auth"
	"github.com/leadboard/apps/api/internal/store"
)

type fakeSessions struct {
	byHash  map[string]store.SessionPrincipal
	err     error
	touched []uuid.UUID
}

func (f *fakeSessions) GetSessionPrincipalByTokenHash(_ context.Context, tokenHash string) (store.SessionPrincipal, error) {
	if f.err != nil {
		return store.SessionPrincipal{}, f.err
	}
	p, ok := f.byHash[tokenHash]
	if !ok {
		return store.SessionPrincipal{}, store.ErrNotFound
	}
	return p, nil
}

func (f *fakeSessions) TouchSession(_ context.Context, sessionID uuid.UUID) error {
	f.touched = append(f.touched, sessionID)
	return nil
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env apperr.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env.Error.Code
}

func TestRequireAuth(t *testing.T) {
	principal := store.SessionPrincipal{
		SessionID: uuid.New(),
		UserID:    uuid.New(),
		OrgID:     uuid.New(),
		CSRFToken: "csrf",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	sessions := &fakeSessions{byHash: map[string]store.SessionPrincipal{auth.HashToken("good"): principal}}
	mw := AuthMiddleware{Sessions: sessions, CookieName: "lb_sess"}

	var seen Actor
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		cookie string
		status int
	}{
		{"missing cookie", "", http.StatusUnauthorized},
		{"unknown token", "bad", http.StatusUnauthorized},
		{"valid session", "good", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: "lb_sess", Value: tt.cookie})
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	assert.Equal(t, principal.UserID, seen.UserID)
	assert.Equal(t, principal.OrgID, seen.OrgID)
	assert.Equal(t, []uuid.UUID{principal.SessionID}, sessions.touched)
}

func TestRequireAuthLookupFailure(t *testing.T) {
	mw := AuthMiddleware{Sessions: &fakeSessions{err: errors.New("db down")}, CookieName: "lb_sess"}
	h := mw.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "lb_sess", Value: "any"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal_error", decodeErrorCode(t, rec))
}

func TestEnforceCSRF(t *testing.T) {
	h := EnforceCSRF(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req = req.WithContext(WithActor(req.Context(), Actor{CSRFToken: "expected"}))
	req.Header.Set("X-CSRF-Token", "other")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "CSRF_INVALID", decodeErrorCode(t, rec))

	req.Header.Set("X-CSRF-Token", "expected")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	disabled := EnforceCSRF(false)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec = httptest.NewRecorder()
	disabled.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type fakeChecker struct {
	allowRead, allowEdit bool
}

func (f fakeChecker) CanAccessTable(_ context.Context, _, _ uuid.UUID, edit bool) (bool, error) {
	if edit {
		return f.allowEdit, nil
	}
	return f.allowRead, nil
}

func TestRequireTableAccess(t *testing.T) {
	checker := fakeChecker{allowRead: true}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(WithActor(req.Context(), Actor{UserID: uuid.New()})))
		})
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	r.With(RequireTableAccess(checker, false)).Get("/tables/{tableId}", ok)
	r.With(RequireTableAccess(checker, true)).Post("/tables/{tableId}", ok)

	tableID := uuid.NewString()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables/"+tableID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/tables/"+tableID, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeErrorCode(t, rec))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tables/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
