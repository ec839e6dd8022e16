package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidGitHubKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "ghp prefix", key: "ghp_abc", want: true},
		{name: "classic 40 alnum", key: strings.Repeat("a1", 20), want: true},
		{name: "39 chars", key: strings.Repeat("a", 39), want: false},
		{name: "40 chars with symbol", key: strings.Repeat("a", 39) + "-", want: false},
		{name: "blank", key: "   ", want: false},
		{name: "empty", key: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidGitHubKey(tt.key))
			assert.Equal(t, tt.want, KeyKindGitHub.Validate(tt.key))
		})
	}
}

func TestValidLLMKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
		want bool
	}{
		{name: "valid", key: "sk-" + strings.Repeat("x", 17), want: true},
		{name: "too short", key: "sk-" + strings.Repeat("x", 16), want: false},
		{name: "wrong prefix", key: strings.Repeat("x", 30), want: false},
		{name: "empty", key: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidLLMKey(tt.key))
			assert.Equal(t, tt.want, KeyKindLLM.Validate(tt.key))
		})
	}
}

func TestKeyKind_UnknownRejects(t *testing.T) {
	assert.False(t, KeyKind("other").Validate("ghp_x"))
}
