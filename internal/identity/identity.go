// Package identity defines the account provider the session manager talks to.
package identity

import (
	"context"
	"net/mail"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"achieveit/internal/apperr"

	"golang.org/x/oauth2"
)

const (
	ProviderGoogle = "google.com"

	MinDisplayNameLength = 2
	MinPasswordLength    = 6
)

type Account struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
	CreatedAt   time.Time
	LastAuthAt  time.Time
}

// FederatedCredential is the result of a completed consent round trip.
type FederatedCredential struct {
	Provider    string
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string
	Token       *oauth2.Token
	Scopes      []string
}

// Granted reports whether every scope in want was granted.
func (c *FederatedCredential) Granted(want ...string) bool {
	for _, s := range want {
		if !slices.Contains(c.Scopes, s) {
			return false
		}
	}
	return true
}

// Provider is the remote identity service.
type Provider interface {
	CreateUser(ctx context.Context, email, password string) (Account, error)
	UpdateProfile(ctx context.Context, uid, displayName string) error
	SignInWithPassword(ctx context.Context, email, password string) (Account, error)
	// SignInWithFederated returns isNew when the account was created by this call.
	SignInWithFederated(ctx context.Context, cred *FederatedCredential) (acct Account, isNew bool, err error)
	// LinkFederated attaches cred to uid. It fails with
	// CREDENTIAL_ALREADY_IN_USE or REQUIRES_RECENT_LOGIN.
	LinkFederated(ctx context.Context, uid string, cred *FederatedCredential) error
	ReauthenticateFederated(ctx context.Context, uid string, cred *FederatedCredential) error
	SignOut(ctx context.Context, uid string) error
}

func ValidateDisplayName(name string) error {
	if utf8.RuneCountInString(strings.TrimSpace(name)) < MinDisplayNameLength {
		return apperr.NewValidation("name", "must be at least 2 characters")
	}
	return nil
}

func ValidateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return apperr.NewValidation("email", "must be a valid email address")
	}
	return nil
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.NewValidation("password", "must be at least 6 characters")
	}
	return nil
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
