package config

import "strings"

// AuthConfig protects the key management endpoints with OIDC bearer tokens.
// When Issuer is empty the endpoints are open, matching a single-user local install.
type AuthConfig struct {
	// Issuer is the OIDC issuer URL used for discovery.
	Issuer string `env:"OIDC_ISSUER"`

	// ClientID is the expected token audience.
	ClientID string `env:"OIDC_CLIENT_ID" envDefault:"repoanalyzer"`

	// SkipClientIDCheck accepts tokens minted for any audience.
	SkipClientIDCheck bool `env:"OIDC_SKIP_CLIENT_ID_CHECK" envDefault:"false"`
}

// Sanitize normalises auth values.
func (a *AuthConfig) Sanitize() {
	a.Issuer = strings.TrimSuffix(strings.TrimSpace(a.Issuer), "/")
	a.Issuer = strings.TrimSuffix(a.Issuer, "/.well-known/openid-configuration")
	a.ClientID = strings.TrimSpace(a.ClientID)
}

// Enabled reports whether bearer verification is configured.
func (a *AuthConfig) Enabled() bool {
	return a.Issuer != ""
}
