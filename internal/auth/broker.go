package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"achieveit/internal/events"
	"achieveit/internal/identity"
	"achieveit/internal/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrConsentCancelled = errors.New("consent cancelled")
	ErrUnknownState     = errors.New("unknown or expired oauth state")
)

type Purpose string

const (
	PurposeSignIn  Purpose = "signin"
	PurposeConnect Purpose = "connect"
	PurposeReauth  Purpose = "reauth"
)

// ConsentPrompt is published to the browser, which opens URL in a popup.
type ConsentPrompt struct {
	State   string  `json:"state"`
	URL     string  `json:"url"`
	Purpose Purpose `json:"purpose"`
}

type consentResult struct {
	cred *identity.FederatedCredential
	err  error
}

type pendingConsent struct {
	purpose   Purpose
	sessionID string
	expires   time.Time
	done      chan consentResult
}

// Broker runs OAuth consent round trips. Each round trip is keyed by its
// state parameter and finished by the callback endpoint.
type Broker struct {
	exchanger Exchanger
	timeout   time.Duration
	now       func() time.Time

	mu      sync.Mutex
	pending map[string]*pendingConsent
}

func NewBroker(exchanger Exchanger, timeout time.Duration) *Broker {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Broker{
		exchanger: exchanger,
		timeout:   timeout,
		now:       time.Now,
		pending:   make(map[string]*pendingConsent),
	}
}

// Begin registers a consent round trip and returns its state and URL.
func (b *Broker) Begin(purpose Purpose, sessionID string) ConsentPrompt {
	state := uuid.NewString()

	b.mu.Lock()
	b.pruneLocked()
	b.pending[state] = &pendingConsent{
		purpose:   purpose,
		sessionID: sessionID,
		expires:   b.now().Add(b.timeout),
		done:      make(chan consentResult, 1),
	}
	b.mu.Unlock()

	return ConsentPrompt{State: state, URL: b.exchanger.AuthCodeURL(state), Purpose: purpose}
}

func (b *Broker) pruneLocked() {
	now := b.now()
	for state, p := range b.pending {
		if now.After(p.expires) {
			delete(b.pending, state)
		}
	}
}

func (b *Broker) take(state string) (*pendingConsent, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pending[state]
	if ok {
		delete(b.pending, state)
	}
	return p, ok
}

// Consent publishes a prompt to hub and blocks until the callback arrives.
// Cancelling ctx, timing out or denying consent yields ErrConsentCancelled.
func (b *Broker) Consent(ctx context.Context, hub *events.Hub, purpose Purpose, sessionID string) (*identity.FederatedCredential, error) {
	prompt := b.Begin(purpose, sessionID)

	b.mu.Lock()
	p := b.pending[prompt.State]
	b.mu.Unlock()

	hub.Publish(events.Event{Type: events.TypeConsent, Data: prompt})

	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	select {
	case res := <-p.done:
		return res.cred, res.err
	case <-ctx.Done():
		b.take(prompt.State)
		logger.Info("Auth: consent abandoned",
			zap.String("purpose", string(purpose)),
			zap.String("session_id", sessionID))
		return nil, ErrConsentCancelled
	}
}

// Callback is what the OAuth redirect carries back.
type Callback struct {
	State string
	Code  string
	Error string
}

// CallbackResult tells the callback endpoint what the round trip was for.
type CallbackResult struct {
	Purpose   Purpose
	SessionID string
	Cred      *identity.FederatedCredential
}

// Complete finishes the round trip named by cb.State. Waiting Consent calls
// receive the credential; sign-in round trips hand it back to the caller.
func (b *Broker) Complete(ctx context.Context, cb Callback) (CallbackResult, error) {
	p, ok := b.take(cb.State)
	if !ok || b.now().After(p.expires) {
		return CallbackResult{}, ErrUnknownState
	}
	res := CallbackResult{Purpose: p.purpose, SessionID: p.sessionID}

	var cred *identity.FederatedCredential
	var err error
	switch {
	case cb.Error != "":
		err = ErrConsentCancelled
	case cb.Code == "":
		err = fmt.Errorf("%w: missing authorization code", ErrConsentCancelled)
	default:
		cred, err = b.exchanger.Exchange(ctx, cb.Code)
	}

	p.done <- consentResult{cred: cred, err: err}
	res.Cred = cred
	return res, err
}
