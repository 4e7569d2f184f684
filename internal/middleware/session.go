package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"achieveit/internal/apperr"
	"achieveit/internal/auth"
	"achieveit/internal/logger"

	"go.uber.org/zap"
)

const SessionKey contextKey = "session"

type SessionLookup interface {
	Lookup(id string) (*auth.Session, bool)
}

type TokenParser interface {
	Parse(raw string) (*auth.Claims, error)
}

// Authenticate resolves the session carried by the cookie or a bearer
// token and stores it in the request context. Requests without a valid
// session pass through unchanged.
func Authenticate(cookieName string, tokens TokenParser, sessions SessionLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				if c, err := r.Cookie(cookieName); err == nil {
					raw = c.Value
				}
			}
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.Debug("Auth: rejected session token",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			sess, ok := sessions.Lookup(claims.ID)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func WithSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}

func GetSession(ctx context.Context) (*auth.Session, bool) {
	sess, ok := ctx.Value(SessionKey).(*auth.Session)
	return sess, ok && sess != nil
}

// RequireSession answers 401 unless the request carries a signed-in session.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := GetSession(r.Context())
		if !ok || sess.AuthState() != auth.Authenticated {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]any{
				"error":      apperr.CodeUnauthenticated,
				"message":    "You must be logged in.",
				"request_id": GetRequestID(r.Context()),
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GuardPages redirects page requests according to the routing policy.
func GuardPages(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state := auth.Unauthenticated
		if sess, ok := GetSession(r.Context()); ok {
			state = sess.AuthState()
		}
		if target := auth.Route(state, r.URL.Path); target != "" && target != r.URL.Path {
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
