package auth

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"achieveit/internal/identity"

	"github.com/mitchellh/go-homedir"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/fitness/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const CallbackPath = "/auth/google/callback"

// FitnessScopes are the read scopes the dashboard needs from Google Fit.
var FitnessScopes = []string{
	fitness.FitnessActivityReadScope,
	fitness.FitnessBodyReadScope,
	fitness.FitnessBloodPressureReadScope,
	fitness.FitnessBloodGlucoseReadScope,
	fitness.FitnessHeartRateReadScope,
	fitness.FitnessNutritionReadScope,
}

// Scopes is everything requested on a Google consent screen.
func Scopes() []string {
	return append([]string{oauth2api.UserinfoProfileScope, oauth2api.UserinfoEmailScope}, FitnessScopes...)
}

// GetConfig builds the OAuth client from a Google client secrets file and
// points its redirect at this service's callback.
func GetConfig(credentialsFile, publicURL string) (*oauth2.Config, error) {
	path, err := homedir.Expand(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("expand %s: %w", credentialsFile, err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file %s: %w", path, err)
	}

	config, err := google.ConfigFromJSON(b, Scopes()...)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}

	redirect, err := url.JoinPath(publicURL, CallbackPath)
	if err != nil {
		return nil, fmt.Errorf("build redirect url from %q: %w", publicURL, err)
	}
	config.RedirectURL = redirect
	return config, nil
}

// Exchanger turns an authorization code into a federated credential.
type Exchanger interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*identity.FederatedCredential, error)
}

type GoogleExchanger struct {
	config *oauth2.Config
	opts   []option.ClientOption
}

var _ Exchanger = (*GoogleExchanger)(nil)

// NewGoogleExchanger uses opts for the userinfo service, e.g. a custom endpoint.
func NewGoogleExchanger(config *oauth2.Config, opts ...option.ClientOption) *GoogleExchanger {
	return &GoogleExchanger{config: config, opts: opts}
}

func (g *GoogleExchanger) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (*identity.FederatedCredential, error) {
	tok, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve token from Google: %w", err)
	}

	opts := append([]option.ClientOption{option.WithTokenSource(oauth2.StaticTokenSource(tok))}, g.opts...)
	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}

	return &identity.FederatedCredential{
		Provider:    identity.ProviderGoogle,
		Subject:     info.Id,
		Email:       info.Email,
		DisplayName: info.Name,
		PhotoURL:    info.Picture,
		Token:       tok,
		Scopes:      grantedScopes(tok),
	}, nil
}

func grantedScopes(tok *oauth2.Token) []string {
	raw, _ := tok.Extra("scope").(string)
	return strings.Fields(raw)
}
