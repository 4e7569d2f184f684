package handlers

import (
	"net/http"

	"achieveit/internal/auth"
	"achieveit/internal/handlers/dto"
	"achieveit/internal/middleware"
)

// Page answers a browser navigation that passed the routing guard with the
// page name and the session it renders for.
func Page(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state := dto.SessionResponse{
			AuthState: auth.Unauthenticated,
			LinkState: auth.NotLinked,
		}
		if sess, ok := middleware.GetSession(r.Context()); ok {
			state = dto.FromSession(sess, "")
		}
		responseWithJSON(w, http.StatusOK,
			toPayload("page", name),
			toPayload("session", state),
		)
	}
}
