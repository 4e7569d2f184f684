package dashboard

import (
	"sync"

	"achieveit/internal/apperr"
	"achieveit/internal/auth"
	"achieveit/internal/logger"

	"go.uber.org/zap"
)

// Registry keeps one controller per signed-in session.
type Registry struct {
	deps Deps

	mu          sync.Mutex
	controllers map[string]*Controller
}

func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:        deps,
		controllers: make(map[string]*Controller),
	}
}

// For returns the session's controller, opening it on first use. The
// controller is closed together with the session.
func (r *Registry) For(sess *auth.Session) (*Controller, error) {
	u, ok := sess.User()
	if !ok || sess.AuthState() != auth.Authenticated {
		return nil, apperr.New(apperr.CodeUnauthenticated, "You must be logged in.")
	}

	r.mu.Lock()
	if c, ok := r.controllers[sess.ID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	c := newController(r.deps, sess, u)
	r.controllers[sess.ID] = c
	r.mu.Unlock()

	c.open()
	sess.OnClose(func() {
		r.remove(sess.ID)
		c.Close()
	})
	logger.Debug("Dashboard: controller opened", zap.String("uid", u.UID), zap.String("session_id", sess.ID))
	return c, nil
}

func (r *Registry) remove(sessionID string) {
	r.mu.Lock()
	delete(r.controllers, sessionID)
	r.mu.Unlock()
}

func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.controllers)
}
