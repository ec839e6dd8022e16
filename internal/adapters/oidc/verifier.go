// Package oidc verifies bearer ID tokens against an OpenID Connect issuer.
package oidc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/target/repo-analyzer/internal/domain/model"
)

// ErrMissingToken is returned by Verify for an empty token.
var ErrMissingToken = errors.New("bearer token is required")

// VerifierConfig holds configuration for the token verifier.
type VerifierConfig struct {
	// Issuer is the issuer URL; a trailing discovery path is tolerated.
	Issuer            string
	ClientID          string
	SkipClientIDCheck bool
	HTTPClient        *http.Client // Optional, defaults to a 30s-timeout client
}

// Verifier validates ID tokens issued for this service.
type Verifier struct {
	verifier *gooidc.IDTokenVerifier
}

// NewVerifier discovers the issuer and builds a verifier. Discovery happens once, here.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("issuer is required")
	}
	if cfg.ClientID == "" && !cfg.SkipClientIDCheck {
		return nil, errors.New("client ID is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	op, err := gooidc.NewProvider(ctx, normalizeIssuer(cfg.Issuer))
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return newVerifier(op.Verifier(&gooidc.Config{
		ClientID:          cfg.ClientID,
		SkipClientIDCheck: cfg.SkipClientIDCheck,
	})), nil
}

func newVerifier(v *gooidc.IDTokenVerifier) *Verifier {
	return &Verifier{verifier: v}
}

// Verify checks the token signature, issuer, audience and expiry and maps its claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (model.Principal, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return model.Principal{}, ErrMissingToken
	}
	tok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return model.Principal{}, fmt.Errorf("verify id_token: %w", err)
	}
	var c idTokenClaims
	if err := tok.Claims(&c); err != nil {
		return model.Principal{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	p := mapClaims(c)
	p.ExpiresAt = tok.Expiry
	return p, nil
}

// idTokenClaims is a superset of standard OIDC and AD/ADFS claim shapes.
type idTokenClaims struct {
	Sub            string   `json:"sub"`
	SamAccountName string   `json:"samaccountname"`
	Email          string   `json:"email"`
	Mail           string   `json:"mail"`
	Groups         []string `json:"groups"`
	MemberOf       []string `json:"memberof"`
}

// mapClaims prefers the AD account name and mail claims when present.
func mapClaims(c idTokenClaims) model.Principal {
	p := model.Principal{
		Subject: firstNonEmpty(c.SamAccountName, c.Sub),
		Email:   firstNonEmpty(c.Mail, c.Email),
		Groups:  c.MemberOf,
	}
	if len(p.Groups) == 0 {
		p.Groups = c.Groups
	}
	return p
}

func normalizeIssuer(issuer string) string {
	issuer = strings.TrimSuffix(issuer, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	return strings.TrimSuffix(issuer, ".well-known/openid-configuration")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
