// Package auth owns browser sessions: sign-up, sign-in, Google Fit linking
// and the routing policy for page surfaces.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/events"
	"achieveit/internal/identity"
	"achieveit/internal/logger"
	"achieveit/internal/models/user"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProfileProvisioner creates the users/{uid} document on first sign-in.
type ProfileProvisioner interface {
	Provision(ctx context.Context, u user.User) error
}

type Options struct {
	TTL         time.Duration
	IdleTimeout time.Duration
}

type Manager struct {
	provider identity.Provider
	profiles ProfileProvisioner
	broker   *Broker
	revoker  Revoker
	opts     Options
	now      func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager builds a manager. broker may be nil when Google is not
// configured; Google operations then fail with LINK_FAILED.
func NewManager(provider identity.Provider, profiles ProfileProvisioner, broker *Broker, revoker Revoker, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = 2 * time.Hour
	}
	return &Manager{
		provider: provider,
		profiles: profiles,
		broker:   broker,
		revoker:  revoker,
		opts:     opts,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Broker() *Broker {
	return m.broker
}

// StartSession registers a session in the Authenticating state.
func (m *Manager) StartSession() *Session {
	sess := newSession(uuid.NewString(), m.now())
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return sess
}

// Lookup returns a live session and marks it as seen.
func (m *Manager) Lookup(id string) (*Session, bool) {
	m.mu.RLock()
	sess, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	now := m.now()
	if m.expired(sess, now) {
		m.drop(sess)
		return nil, false
	}
	sess.touch(now)
	return sess, true
}

func (m *Manager) expired(sess *Session, now time.Time) bool {
	return now.Sub(sess.CreatedAt) > m.opts.TTL || now.Sub(sess.LastSeen()) > m.opts.IdleTimeout
}

func (m *Manager) drop(sess *Session) {
	m.mu.Lock()
	delete(m.sessions, sess.ID)
	m.mu.Unlock()
	sess.close()
}

// Sweep ends every expired session and reports how many it ended.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	m.mu.RLock()
	var stale []*Session
	for _, sess := range m.sessions {
		if m.expired(sess, now) {
			stale = append(stale, sess)
		}
	}
	m.mu.RUnlock()

	for _, sess := range stale {
		if ctx.Err() != nil {
			break
		}
		m.drop(sess)
	}
	return len(stale)
}

func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) finish(ctx context.Context, sess *Session, acc identity.Account) (*Session, error) {
	u := user.User{
		UID:         acc.UID,
		Email:       acc.Email,
		DisplayName: acc.DisplayName,
		PhotoURL:    acc.PhotoURL,
	}
	if err := m.profiles.Provision(ctx, u); err != nil {
		m.drop(sess)
		return nil, err
	}
	sess.authenticate(u)
	logger.Info("Auth: signed in", zap.String("uid", u.UID), zap.String("session_id", sess.ID))
	return sess, nil
}

func (m *Manager) SignUpWithEmail(ctx context.Context, name, email, password string) (*Session, error) {
	if err := identity.ValidateDisplayName(name); err != nil {
		return nil, err
	}

	sess := m.StartSession()
	acc, err := m.provider.CreateUser(ctx, email, password)
	if err != nil {
		m.drop(sess)
		return nil, err
	}
	// The account exists from here on. A failed display name update is not
	// fatal since the profile carries the name, and a missing profile is
	// provisioned again on the next sign-in.
	if err := m.provider.UpdateProfile(ctx, acc.UID, name); err != nil {
		logger.Warn("Auth: account created without display name",
			zap.String("uid", acc.UID), zap.Error(err))
	}
	acc.DisplayName = name
	out, err := m.finish(ctx, sess, acc)
	if err != nil {
		logger.Error("Auth: account created without profile", err, zap.String("uid", acc.UID))
		return nil, err
	}
	return out, nil
}

func (m *Manager) SignInWithEmail(ctx context.Context, email, password string) (*Session, error) {
	sess := m.StartSession()
	acc, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.drop(sess)
		return nil, err
	}
	return m.finish(ctx, sess, acc)
}

// SignInWithGoogle completes a federated sign-in on sess, which must be in
// the Authenticating state. A credential carrying the fitness scopes links
// Google Fit for the session right away.
func (m *Manager) SignInWithGoogle(ctx context.Context, sess *Session, cred *identity.FederatedCredential) (*Session, error) {
	if sess == nil {
		sess = m.StartSession()
	}
	acc, _, err := m.provider.SignInWithFederated(ctx, cred)
	if err != nil {
		m.drop(sess)
		return nil, err
	}
	if _, err := m.finish(ctx, sess, acc); err != nil {
		return nil, err
	}
	if cred.Token != nil && cred.Token.Valid() && cred.Granted(FitnessScopes...) {
		sess.setFitToken(cred.Token)
	}
	return sess, nil
}

func (m *Manager) requireUser(sess *Session) (user.User, error) {
	if sess == nil {
		return user.User{}, apperr.New(apperr.CodeUnauthenticated, "You must be logged in to connect Google Fit.")
	}
	u, ok := sess.User()
	if !ok || sess.AuthState() != Authenticated {
		return user.User{}, apperr.New(apperr.CodeUnauthenticated, "You must be logged in to connect Google Fit.")
	}
	return u, nil
}

func linkFailed(message string, cause error) error {
	return apperr.Wrap(apperr.CodeLinkFailed, message, cause)
}

// ConnectGoogleFit links Google to the signed-in account and keeps the
// resulting access token for the session. A cancelled consent returns nil
// and leaves the link state as it was.
func (m *Manager) ConnectGoogleFit(ctx context.Context, sess *Session) error {
	u, err := m.requireUser(sess)
	if err != nil {
		return err
	}
	if m.broker == nil {
		return linkFailed("Google sign-in is not configured.", nil)
	}

	prev, ok := sess.beginLink()
	if !ok {
		return linkFailed("A Google Fit connection is already in progress.", nil)
	}

	err = m.connect(ctx, sess, u)
	switch {
	case errors.Is(err, ErrConsentCancelled):
		sess.setLinkState(prev)
		logger.Info("Auth: google fit consent cancelled", zap.String("uid", u.UID))
		return nil
	case err != nil:
		sess.setLinkState(prev)
		logger.Warn("Auth: google fit connection failed", zap.String("uid", u.UID), zap.Error(err))
		return err
	}
	return nil
}

func (m *Manager) connect(ctx context.Context, sess *Session, u user.User) error {
	cred, err := m.broker.Consent(ctx, sess.Events, PurposeConnect, sess.ID)
	if err != nil {
		if errors.Is(err, ErrConsentCancelled) {
			return err
		}
		sess.Events.Notify(events.LevelError, "Connection Failed", "Could not complete Google sign-in.")
		return linkFailed("Could not complete Google sign-in.", err)
	}

	err = m.provider.LinkFederated(ctx, u.UID, cred)
	switch {
	case err == nil:
		if err := m.storeToken(sess, cred); err != nil {
			return err
		}
		sess.Events.Notify(events.LevelInfo, "Success!", "Google Fit connected successfully.")
		return nil

	case apperr.Is(err, apperr.CodeCredentialAlreadyInUse):
		sess.Events.Notify(events.LevelInfo, "Re-authenticating", "Account already linked, re-authenticating to refresh permissions.")
		sess.setLinkState(Reauthenticating)
		if err := m.provider.ReauthenticateFederated(ctx, u.UID, cred); err != nil {
			sess.Events.Notify(events.LevelError, "Connection Failed", "Could not re-authenticate to refresh permissions.")
			return linkFailed("Could not re-authenticate to refresh permissions.", err)
		}
		if err := m.storeToken(sess, cred); err != nil {
			return err
		}
		sess.Events.Notify(events.LevelInfo, "Success!", "Refreshed Google Fit connection.")
		return nil

	case apperr.Is(err, apperr.CodeRequiresRecentLogin):
		sess.Events.Notify(events.LevelInfo, "Security Check", "Please sign in again to connect Google Fit.")
		sess.setLinkState(Reauthenticating)
		return m.reauthAndLink(ctx, sess, u)

	default:
		msg := "Could not connect Google Fit."
		if appErr, ok := apperr.As(err); ok {
			msg = appErr.Message
		}
		sess.Events.Notify(events.LevelError, "Connection Failed", msg)
		return linkFailed(msg, err)
	}
}

func (m *Manager) reauthAndLink(ctx context.Context, sess *Session, u user.User) error {
	cred, err := m.broker.Consent(ctx, sess.Events, PurposeReauth, sess.ID)
	if err != nil {
		if errors.Is(err, ErrConsentCancelled) {
			return err
		}
		sess.Events.Notify(events.LevelError, "Connection Failed", "Could not re-authenticate.")
		return linkFailed("Could not re-authenticate.", err)
	}

	if err := m.provider.ReauthenticateFederated(ctx, u.UID, cred); err != nil {
		sess.Events.Notify(events.LevelError, "Connection Failed", "Could not re-authenticate.")
		return linkFailed("Could not re-authenticate.", err)
	}

	err = m.provider.LinkFederated(ctx, u.UID, cred)
	if err != nil && !sameAccountLink(err) {
		sess.Events.Notify(events.LevelError, "Connection Failed", "Could not re-authenticate.")
		return linkFailed("Could not re-authenticate.", err)
	}

	if err := m.storeToken(sess, cred); err != nil {
		return err
	}
	sess.Events.Notify(events.LevelInfo, "Success!", "Google Fit connected successfully.")
	return nil
}

func sameAccountLink(err error) bool {
	appErr, ok := apperr.As(err)
	if !ok || appErr.Code != apperr.CodeCredentialAlreadyInUse {
		return false
	}
	same, _ := appErr.Details["sameAccount"].(bool)
	return same
}

func (m *Manager) storeToken(sess *Session, cred *identity.FederatedCredential) error {
	if cred.Token == nil || cred.Token.AccessToken == "" {
		sess.Events.Notify(events.LevelError, "Connection Failed", "Could not get access token.")
		return linkFailed("Could not get access token.", nil)
	}
	sess.setFitToken(cred.Token)
	return nil
}

// DisconnectGoogleFit revokes the session's token on a best-effort basis and
// always forgets it locally.
func (m *Manager) DisconnectGoogleFit(ctx context.Context, sess *Session) error {
	if _, err := m.requireUser(sess); err != nil {
		return err
	}
	token, ok := sess.FitToken()
	if !ok {
		return nil
	}

	if m.revoker != nil {
		if err := m.revoker.Revoke(ctx, token); err != nil {
			logger.Error("Auth: error revoking google fit token", err, zap.String("session_id", sess.ID))
		}
	}

	sess.clearFitToken()
	sess.Events.Notify(events.LevelInfo, "Disconnected", "Google Fit has been disconnected.")
	return nil
}

// SignOut ends the session and everything attached to it.
func (m *Manager) SignOut(ctx context.Context, sess *Session) error {
	if sess == nil {
		return nil
	}
	if u, ok := sess.User(); ok {
		if err := m.provider.SignOut(ctx, u.UID); err != nil {
			logger.Warn("Auth: provider sign-out failed", zap.String("uid", u.UID), zap.Error(err))
		}
		logger.Info("Auth: signed out", zap.String("uid", u.UID), zap.String("session_id", sess.ID))
	}
	m.drop(sess)
	return nil
}

// Close ends every session.
func (m *Manager) Close() {
	m.mu.Lock()
	all := make([]*Session, 0, len(m.sessions))
	for id, sess := range m.sessions {
		all = append(all, sess)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	for _, sess := range all {
		sess.close()
	}
}
