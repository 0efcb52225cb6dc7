package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	app "catalogserv/src/app"
	cfg "catalogserv/src/configuration"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
)

const (
	googleIssuer   = "https://accounts.google.com"
	githubAPI      = "https://api.github.com"
	facebookGraph  = "https://graph.facebook.com"
	redirectFormat = "%s/users/%sRedirect"
)

type (
	// Provider is a third-party login. Identify exchanges the authorization code
	// the provider sent back and reports who logged in.
	Provider interface {
		Name() app.Provider
		AuthCodeURL(state string) string
		Identify(ctx context.Context, code string) (*app.Identity, error)
	}

	googleProvider struct {
		config   *oauth2.Config
		verifier *oidc.IDTokenVerifier
	}

	githubProvider struct {
		config *oauth2.Config
		apiURL string
	}

	facebookProvider struct {
		config   *oauth2.Config
		graphURL string
	}
)

// NewProviders builds a provider for every login with a configured client id.
func NewProviders(ctx context.Context, config cfg.AuthProperties) ([]Provider, error) {
	base := strings.TrimRight(config.CallbackURL, "/")
	var providers []Provider

	if config.GoogleID != "" {
		oidcProvider, err := oidc.NewProvider(ctx, googleIssuer)
		if err != nil {
			return nil, errors.Wrap(err, "NewProviders: oidc.NewProvider failed")
		}
		providers = append(providers, NewGoogleProvider(&oauth2.Config{
			ClientID:     config.GoogleID,
			ClientSecret: config.GoogleSecret,
			RedirectURL:  fmt.Sprintf(redirectFormat, base, app.ProviderGoogle),
			Endpoint:     oidcProvider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		}, oidcProvider.Verifier(&oidc.Config{ClientID: config.GoogleID})))
	}
	if config.GitHubID != "" {
		providers = append(providers, NewGitHubProvider(&oauth2.Config{
			ClientID:     config.GitHubID,
			ClientSecret: config.GitHubSecret,
			RedirectURL:  fmt.Sprintf(redirectFormat, base, app.ProviderGitHub),
			Endpoint:     github.Endpoint,
			Scopes:       []string{"read:user", "user:email"},
		}, githubAPI))
	}
	if config.FacebookID != "" {
		providers = append(providers, NewFacebookProvider(&oauth2.Config{
			ClientID:     config.FacebookID,
			ClientSecret: config.FacebookSecret,
			RedirectURL:  fmt.Sprintf(redirectFormat, base, app.ProviderFacebook),
			Endpoint:     facebook.Endpoint,
			Scopes:       []string{"email", "public_profile"},
		}, facebookGraph))
	}
	for _, p := range providers {
		log.WithField("provider", p.Name()).Info("third-party login enabled")
	}
	return providers, nil
}

func NewGoogleProvider(config *oauth2.Config, verifier *oidc.IDTokenVerifier) Provider {
	return &googleProvider{config: config, verifier: verifier}
}

func (g *googleProvider) Name() app.Provider { return app.ProviderGoogle }

func (g *googleProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *googleProvider) Identify(ctx context.Context, code string) (*app.Identity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, app.Unauthenticated("google code exchange failed: %v", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, app.Unauthenticated("no id token in google response")
	}
	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, app.Unauthenticated("error verifying id token: %v", err)
	}
	var claims struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"email_verified"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, errors.Wrap(err, "googleProvider.Identify: parse claims failed")
	}
	if !claims.Verified {
		claims.Email = ""
	}
	return &app.Identity{
		Provider: app.ProviderGoogle,
		Subject:  idToken.Subject,
		Email:    claims.Email,
		Username: claims.Name,
	}, nil
}

func NewGitHubProvider(config *oauth2.Config, apiURL string) Provider {
	return &githubProvider{config: config, apiURL: strings.TrimRight(apiURL, "/")}
}

func (g *githubProvider) Name() app.Provider { return app.ProviderGitHub }

func (g *githubProvider) AuthCodeURL(state string) string {
	return g.config.AuthCodeURL(state)
}

func (g *githubProvider) Identify(ctx context.Context, code string) (*app.Identity, error) {
	token, err := g.config.Exchange(ctx, code)
	if err != nil {
		return nil, app.Unauthenticated("github code exchange failed: %v", err)
	}
	client := g.config.Client(ctx, token)

	var user struct {
		ID    int64  `json:"id"`
		Login string `json:"login"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := getJSON(ctx, client, g.apiURL+"/user", &user); err != nil {
		return nil, errors.Wrap(err, "githubProvider.Identify: fetch user failed")
	}
	if user.Email == "" {
		var emails []struct {
			Email    string `json:"email"`
			Primary  bool   `json:"primary"`
			Verified bool   `json:"verified"`
		}
		if err := getJSON(ctx, client, g.apiURL+"/user/emails", &emails); err != nil {
			log.WithError(err).Warn("can not fetch github emails")
		}
		for _, e := range emails {
			if e.Primary && e.Verified {
				user.Email = e.Email
			}
		}
	}
	username := user.Name
	if username == "" {
		username = user.Login
	}
	return &app.Identity{
		Provider: app.ProviderGitHub,
		Subject:  strconv.FormatInt(user.ID, 10),
		Email:    user.Email,
		Username: username,
	}, nil
}

func NewFacebookProvider(config *oauth2.Config, graphURL string) Provider {
	return &facebookProvider{config: config, graphURL: strings.TrimRight(graphURL, "/")}
}

func (f *facebookProvider) Name() app.Provider { return app.ProviderFacebook }

func (f *facebookProvider) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state)
}

func (f *facebookProvider) Identify(ctx context.Context, code string) (*app.Identity, error) {
	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return nil, app.Unauthenticated("facebook code exchange failed: %v", err)
	}
	var me struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	client := f.config.Client(ctx, token)
	if err := getJSON(ctx, client, f.graphURL+"/me?fields=id,name,email", &me); err != nil {
		return nil, errors.Wrap(err, "facebookProvider.Identify: fetch profile failed")
	}
	return &app.Identity{
		Provider: app.ProviderFacebook,
		Subject:  me.ID,
		Email:    me.Email,
		Username: me.Name,
	}, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
