package profiles

import (
	"testing"

	"github.com/noahgsolomon/peerscout/internal/engine"
)

func TestGitHubMatch(t *testing.T) {
	g := NewGitHubSource("", nil, nil, engine.DefaultCooldownConfig)

	tests := []struct {
		ref  string
		want bool
	}{
		{"github:torvalds", true},
		{"https://github.com/torvalds", true},
		{"https://github.com/torvalds/", true},
		{"http://GitHub.com/octocat", true},
		{"https://github.com/torvalds/linux", false}, // repo, not a profile
		{"https://gitlab.com/someone", false},
		{"plain-handle", false},
	}
	for _, tt := range tests {
		if got := g.Match(tt.ref); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.ref, got, tt.want)
		}
	}
}

func TestGitHubID(t *testing.T) {
	g := NewGitHubSource("", nil, nil, engine.DefaultCooldownConfig)

	tests := []struct {
		ref  string
		want string
	}{
		{"github:torvalds", "github:torvalds"},
		{"https://github.com/torvalds", "github:torvalds"},
		{"https://github.com/Octo-Cat/", "github:Octo-Cat"},
	}
	for _, tt := range tests {
		if got := g.ID(tt.ref); got != tt.want {
			t.Errorf("ID(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}
