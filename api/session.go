package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sajclarke/tax-calculator-app/history"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "session_id"

	maxSessionIDLen = 128
)

type sessionKey struct{}

// SessionMiddleware resolves the caller's history session from the
// X-Session-ID header or the session cookie, issuing a new one when
// neither is present. The resolved ID is echoed in the response header.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(SessionHeader)
		if id == "" {
			if c, err := r.Cookie(SessionCookie); err == nil {
				id = c.Value
			}
		}
		if id == "" || len(id) > maxSessionIDLen {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}
		w.Header().Set(SessionHeader, id)

		ctx := context.WithValue(r.Context(), sessionKey{}, history.SessionID(id))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SessionFrom returns the session resolved by SessionMiddleware.
func SessionFrom(ctx context.Context) history.SessionID {
	id, _ := ctx.Value(sessionKey{}).(history.SessionID)
	return id
}
