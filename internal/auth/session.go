package auth

import (
	"sync"
	"time"

	"achieveit/internal/events"
	"achieveit/internal/models/user"

	"golang.org/x/oauth2"
)

type AuthState string

const (
	Unauthenticated AuthState = "unauthenticated"
	Authenticating  AuthState = "authenticating"
	Authenticated   AuthState = "authenticated"
)

type LinkState string

const (
	NotLinked        LinkState = "not_linked"
	Linking          LinkState = "linking"
	Linked           LinkState = "linked"
	Reauthenticating LinkState = "reauthenticating"
)

// Session is one signed-in browser. The fit token lives only here.
type Session struct {
	ID        string
	Events    *events.Hub
	CreatedAt time.Time

	mu        sync.RWMutex
	user      *user.User
	authState AuthState
	linkState LinkState
	fitToken  *oauth2.Token
	lastSeen  time.Time
	closers   []func()
	closed    bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Events:    events.NewHub(),
		CreatedAt: now,
		authState: Authenticating,
		linkState: NotLinked,
		lastSeen:  now,
	}
}

func (s *Session) User() (user.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return user.User{}, false
	}
	return *s.user, true
}

func (s *Session) AuthState() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authState
}

func (s *Session) LinkState() LinkState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linkState
}

// FitToken returns the Google Fit access token when one is held.
func (s *Session) FitToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.fitToken == nil || s.fitToken.AccessToken == "" {
		return "", false
	}
	return s.fitToken.AccessToken, true
}

func (s *Session) LastSeen() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSeen
}

// OnClose registers fn to run when the session ends. fn runs at once if the
// session has already ended.
func (s *Session) OnClose(fn func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		fn()
		return
	}
	s.closers = append(s.closers, fn)
	s.mu.Unlock()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) authenticate(u user.User) {
	s.mu.Lock()
	s.user = &u
	s.authState = Authenticated
	s.mu.Unlock()
	s.Events.Publish(events.Event{Type: events.TypeAuth, Data: map[string]any{"state": Authenticated, "uid": u.UID}})
}

func (s *Session) setLinkState(state LinkState) {
	s.mu.Lock()
	s.linkState = state
	s.mu.Unlock()
}

// beginLink moves to Linking and returns the state to restore on cancel.
func (s *Session) beginLink() (LinkState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.linkState == Linking || s.linkState == Reauthenticating {
		return s.linkState, false
	}
	prev := s.linkState
	s.linkState = Linking
	return prev, true
}

func (s *Session) setFitToken(tok *oauth2.Token) {
	s.mu.Lock()
	s.fitToken = tok
	s.linkState = Linked
	s.mu.Unlock()
}

func (s *Session) clearFitToken() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.fitToken
	s.fitToken = nil
	s.linkState = NotLinked
	return tok
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	closers := s.closers
	s.closers = nil
	s.fitToken = nil
	s.user = nil
	s.authState = Unauthenticated
	s.linkState = NotLinked
	s.mu.Unlock()

	for i := len(closers) - 1; i >= 0; i-- {
		closers[i]()
	}
	s.Events.Close()
}
