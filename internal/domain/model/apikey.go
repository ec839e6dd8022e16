package model

import (
	"strings"
	"time"
)

// AppRegistration is a client installation identified by a server-issued UUID.
type AppRegistration struct {
	UUID      string    `json:"uuid"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// APIKeys holds the third-party credentials stored for a registered app.
type APIKeys struct {
	UUID      string    `json:"uuid"`
	LLMKey    string    `json:"llmKey"`
	GitHubKey string    `json:"githubKey"`
	UpdatedAt time.Time `json:"updatedAt,omitzero"`
}

// KeyKind selects which credential slot a key is written to.
type KeyKind string

const (
	// KeyKindLLM is an OpenAI-style API key.
	KeyKindLLM KeyKind = "llm"
	// KeyKindGitHub is a GitHub personal access token.
	KeyKindGitHub KeyKind = "github"
)

const (
	githubTokenPrefix = "ghp_"
	githubClassicLen  = 40
	openAIKeyPrefix   = "sk-"
	openAIMinLen      = 20
)

// ValidGitHubKey accepts fine-grained "ghp_" tokens and 40-character alphanumeric classic tokens.
func ValidGitHubKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	if strings.HasPrefix(key, githubTokenPrefix) {
		return true
	}
	if len(key) != githubClassicLen {
		return false
	}
	for _, r := range key {
		if !isASCIIAlnum(r) {
			return false
		}
	}
	return true
}

// ValidLLMKey accepts keys with the "sk-" prefix and at least 20 characters.
func ValidLLMKey(key string) bool {
	if strings.TrimSpace(key) == "" {
		return false
	}
	return strings.HasPrefix(key, openAIKeyPrefix) && len(key) >= openAIMinLen
}

// Validate reports whether key is well-formed for kind.
func (k KeyKind) Validate(key string) bool {
	switch k {
	case KeyKindLLM:
		return ValidLLMKey(key)
	case KeyKindGitHub:
		return ValidGitHubKey(key)
	}
	return false
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
