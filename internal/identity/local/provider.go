package local

import (
	"context"
	"errors"
	"sync"
	"time"

	"achieveit/internal/apperr"
	"achieveit/internal/identity"
	"achieveit/internal/logger"
	repo "achieveit/internal/repository"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Provider keeps accounts in the document store:
//
//	accounts/{uid}                    profile, password hash, last sign-in
//	emails/{email}                    uid owning the address
//	identities/{provider}:{subject}   uid a federated identity is bound to
type Provider struct {
	store        repo.Store
	mtx          sync.Mutex
	now          func() time.Time
	recentWindow time.Duration
	hashCost     int
}

var _ identity.Provider = (*Provider)(nil)

type Option func(*Provider)

func WithClock(now func() time.Time) Option {
	return func(p *Provider) { p.now = now }
}

// WithRecentLoginWindow sets how old a sign-in may be before linking
// requires re-authentication.
func WithRecentLoginWindow(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.recentWindow = d
		}
	}
}

func WithHashCost(cost int) Option {
	return func(p *Provider) { p.hashCost = cost }
}

func New(store repo.Store, opts ...Option) *Provider {
	p := &Provider{
		store:        store,
		now:          time.Now,
		recentWindow: 5 * time.Minute,
		hashCost:     bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type accountDoc struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	PhotoURL     string    `json:"photoURL"`
	PasswordHash string    `json:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAuthAt   time.Time `json:"lastAuthAt"`
}

func (a accountDoc) account() identity.Account {
	return identity.Account{
		UID:         a.ID,
		Email:       a.Email,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
		CreatedAt:   a.CreatedAt,
		LastAuthAt:  a.LastAuthAt,
	}
}

func accountPath(uid string) string   { return repo.Join("accounts", uid) }
func emailPath(email string) string   { return repo.Join("emails", identity.NormalizeEmail(email)) }
func identityPath(provider, subject string) string {
	return repo.Join("identities", provider+":"+subject)
}

func storeErr(err error) error {
	return repo.AppError(err, "account", "")
}

func (p *Provider) lookupUID(ctx context.Context, path string) (string, bool, error) {
	doc, err := p.store.Get(ctx, path)
	if errors.Is(err, repo.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, storeErr(err)
	}
	uid, _ := doc.Data["uid"].(string)
	return uid, uid != "", nil
}

func (p *Provider) loadAccount(ctx context.Context, uid string) (accountDoc, error) {
	doc, err := p.store.Get(ctx, accountPath(uid))
	if err != nil {
		return accountDoc{}, storeErr(err)
	}
	var acc accountDoc
	if err := repo.Decode(doc, &acc); err != nil {
		return accountDoc{}, apperr.Wrap(apperr.CodeRemoteUnavailable, "Account record is unreadable.", err)
	}
	return acc, nil
}

func (p *Provider) touch(ctx context.Context, uid string) (time.Time, error) {
	now := p.now().UTC()
	if err := p.store.Update(ctx, accountPath(uid), map[string]any{"lastAuthAt": now}); err != nil {
		return time.Time{}, storeErr(err)
	}
	return now, nil
}

func (p *Provider) CreateUser(ctx context.Context, email, password string) (identity.Account, error) {
	if err := identity.ValidateEmail(email); err != nil {
		return identity.Account{}, err
	}
	if err := identity.ValidatePassword(password); err != nil {
		return identity.Account{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.hashCost)
	if err != nil {
		return identity.Account{}, apperr.Wrap(apperr.CodeValidation, "Password cannot be used.", err)
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if _, exists, err := p.lookupUID(ctx, emailPath(email)); err != nil {
		return identity.Account{}, err
	} else if exists {
		return identity.Account{}, apperr.New(apperr.CodeAccountExists,
			"An account with this email already exists.",
			apperr.ToDetail("email", email))
	}

	now := p.now().UTC()
	acc := accountDoc{
		ID:           p.store.NewID(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		LastAuthAt:   now,
	}
	if err := p.createAccount(ctx, acc); err != nil {
		return identity.Account{}, err
	}

	logger.Info("Auth: account created", zap.String("uid", acc.ID))
	return acc.account(), nil
}

func (p *Provider) createAccount(ctx context.Context, acc accountDoc) error {
	fields := map[string]any{
		"email":        acc.Email,
		"displayName":  acc.DisplayName,
		"photoURL":     acc.PhotoURL,
		"passwordHash": acc.PasswordHash,
		"createdAt":    acc.CreatedAt,
		"lastAuthAt":   acc.LastAuthAt,
	}
	if err := p.store.Set(ctx, accountPath(acc.ID), fields, false); err != nil {
		return storeErr(err)
	}
	if err := p.store.Set(ctx, emailPath(acc.Email), map[string]any{"uid": acc.ID}, false); err != nil {
		return storeErr(err)
	}
	return nil
}

func (p *Provider) UpdateProfile(ctx context.Context, uid, displayName string) error {
	if err := p.store.Update(ctx, accountPath(uid), map[string]any{"displayName": displayName}); err != nil {
		return storeErr(err)
	}
	return nil
}

func invalidCredentials() error {
	return apperr.New(apperr.CodeInvalidCredentials, "Invalid email or password.")
}

func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (identity.Account, error) {
	uid, ok, err := p.lookupUID(ctx, emailPath(email))
	if err != nil {
		return identity.Account{}, err
	}
	if !ok {
		return identity.Account{}, invalidCredentials()
	}

	acc, err := p.loadAccount(ctx, uid)
	if err != nil {
		return identity.Account{}, err
	}
	if acc.PasswordHash == "" {
		return identity.Account{}, invalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return identity.Account{}, invalidCredentials()
	}

	if acc.LastAuthAt, err = p.touch(ctx, uid); err != nil {
		return identity.Account{}, err
	}
	return acc.account(), nil
}

func (p *Provider) SignInWithFederated(ctx context.Context, cred *identity.FederatedCredential) (identity.Account, bool, error) {
	if cred == nil || cred.Subject == "" {
		return identity.Account{}, false, invalidCredentials()
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	uid, ok, err := p.lookupUID(ctx, identityPath(cred.Provider, cred.Subject))
	if err != nil {
		return identity.Account{}, false, err
	}
	if ok {
		acc, err := p.loadAccount(ctx, uid)
		if err != nil {
			return identity.Account{}, false, err
		}
		if acc.LastAuthAt, err = p.touch(ctx, uid); err != nil {
			return identity.Account{}, false, err
		}
		return acc.account(), false, nil
	}

	if cred.Email != "" {
		if _, taken, err := p.lookupUID(ctx, emailPath(cred.Email)); err != nil {
			return identity.Account{}, false, err
		} else if taken {
			return identity.Account{}, false, apperr.New(apperr.CodeAccountExists,
				"An account with this email already exists. Sign in with your password, then connect Google.",
				apperr.ToDetail("email", cred.Email))
		}
	}

	now := p.now().UTC()
	acc := accountDoc{
		ID:          p.store.NewID(),
		Email:       cred.Email,
		DisplayName: cred.DisplayName,
		PhotoURL:    cred.PhotoURL,
		CreatedAt:   now,
		LastAuthAt:  now,
	}
	if err := p.createAccount(ctx, acc); err != nil {
		return identity.Account{}, false, err
	}
	if err := p.bind(ctx, acc.ID, cred); err != nil {
		return identity.Account{}, false, err
	}

	logger.Info("Auth: account created from federated sign-in",
		zap.String("uid", acc.ID),
		zap.String("provider", cred.Provider))
	return acc.account(), true, nil
}

func (p *Provider) bind(ctx context.Context, uid string, cred *identity.FederatedCredential) error {
	err := p.store.Set(ctx, identityPath(cred.Provider, cred.Subject), map[string]any{
		"uid":      uid,
		"email":    cred.Email,
		"linkedAt": p.now().UTC(),
	}, false)
	return storeErr(err)
}

func (p *Provider) LinkFederated(ctx context.Context, uid string, cred *identity.FederatedCredential) error {
	if cred == nil || cred.Subject == "" {
		return invalidCredentials()
	}

	p.mtx.Lock()
	defer p.mtx.Unlock()

	if owner, ok, err := p.lookupUID(ctx, identityPath(cred.Provider, cred.Subject)); err != nil {
		return err
	} else if ok {
		return apperr.New(apperr.CodeCredentialAlreadyInUse,
			"This Google account is already linked to an account.",
			apperr.ToDetail("sameAccount", owner == uid))
	}

	acc, err := p.loadAccount(ctx, uid)
	if err != nil {
		return err
	}
	if p.now().Sub(acc.LastAuthAt) > p.recentWindow {
		return apperr.New(apperr.CodeRequiresRecentLogin, "Please sign in again to link this account.")
	}

	return p.bind(ctx, uid, cred)
}

// ReauthenticateFederated proves cred belongs to uid: either the identity is
// already bound to uid, or it is unbound and carries the account's email.
func (p *Provider) ReauthenticateFederated(ctx context.Context, uid string, cred *identity.FederatedCredential) error {
	if cred == nil || cred.Subject == "" {
		return invalidCredentials()
	}

	owner, bound, err := p.lookupUID(ctx, identityPath(cred.Provider, cred.Subject))
	if err != nil {
		return err
	}

	switch {
	case bound && owner != uid:
		return apperr.New(apperr.CodeInvalidCredentials, "This Google account belongs to a different user.")
	case !bound:
		acc, err := p.loadAccount(ctx, uid)
		if err != nil {
			return err
		}
		if cred.Email == "" || identity.NormalizeEmail(cred.Email) != identity.NormalizeEmail(acc.Email) {
			return apperr.New(apperr.CodeInvalidCredentials, "This Google account belongs to a different user.")
		}
	}

	_, err = p.touch(ctx, uid)
	return err
}

func (p *Provider) SignOut(ctx context.Context, uid string) error {
	logger.Debug("Auth: provider sign-out", zap.String("uid", uid))
	return nil
}
