package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

var ErrNotConfigured = errors.New("identity provider is not configured")

// ProviderConfig describes a Keycloak-style OpenID Connect realm.
type ProviderConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// Provider runs the authorization code flow against the identity provider.
type Provider struct {
	oauth       oauth2.Config
	userInfoURL string
	logoutURL   string
	client      *http.Client
}

// NewProvider returns nil when the issuer or client id is missing, so that
// only the auth routes fail.
func NewProvider(cfg ProviderConfig, client *http.Client) *Provider {
	if cfg.Issuer == "" || cfg.ClientID == "" {
		return nil
	}
	if client == nil {
		client = http.DefaultClient
	}
	base := strings.TrimRight(cfg.Issuer, "/") + "/protocol/openid-connect"
	return &Provider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint: oauth2.Endpoint{
				AuthURL:  base + "/auth",
				TokenURL: base + "/token",
			},
		},
		userInfoURL: base + "/userinfo",
		logoutURL:   base + "/logout",
		client:      client,
	}
}

// AuthCodeURL is where the browser is sent to log in.
func (p *Provider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

type userInfo struct {
	PreferredUsername string   `json:"preferred_username"`
	Email             string   `json:"email"`
	Roles             []string `json:"roles"`
	RealmAccess       struct {
		Roles []string `json:"roles"`
	} `json:"realm_access"`
}

// Exchange trades the authorization code for tokens and builds a session
// from the userinfo claims.
func (p *Provider) Exchange(ctx context.Context, code string) (*Session, error) {
	if p == nil {
		return nil, ErrNotConfigured
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.client)
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	resp, err := p.oauth.Client(ctx, tok).Get(p.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}
	var info userInfo
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}

	s := &Session{
		Username:    info.PreferredUsername,
		Email:       info.Email,
		Role:        RoleFromClaims(append(info.Roles, info.RealmAccess.Roles...)),
		AccessToken: tok.AccessToken,
	}
	if idToken, ok := tok.Extra("id_token").(string); ok {
		s.IDToken = idToken
	}
	if !tok.Expiry.IsZero() {
		s.ExpiresAt = tok.Expiry
	}
	return s, nil
}

// Logout ends the session at the identity provider.
func (p *Provider) Logout(ctx context.Context, idToken string) error {
	if p == nil {
		return ErrNotConfigured
	}
	q := url.Values{"client_id": {p.oauth.ClientID}}
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.logoutURL+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("logout: status %d", resp.StatusCode)
	}
	return nil
}

// RoleFromClaims picks the strongest known role; unknown or missing roles
// map to viewer.
func RoleFromClaims(roles []string) string {
	for _, want := range []string{RoleAdmin, RoleOperator} {
		if slices.Contains(roles, want) {
			return want
		}
	}
	return RoleViewer
}
