package profiles

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// githubUserRe matches github.com/:username (profile pages, not repos).
var githubUserRe = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9-]+)/?$`)

// GitHubSource fetches developer profiles from the GitHub REST API. It is
// the reference Source implementation; other upstreams plug in behind the
// same interface.
type GitHubSource struct {
	token  string
	client *http.Client
	gate   *engine.CooldownGate
	cc     engine.CooldownConfig
}

// NewGitHubSource builds the source. gate is the process-wide cooldown gate
// for the GitHub API.
func NewGitHubSource(token string, client *http.Client, gate *engine.CooldownGate, cc engine.CooldownConfig) *GitHubSource {
	if client == nil {
		client = http.DefaultClient
	}
	if gate == nil {
		gate = engine.NewCooldownGate()
	}
	return &GitHubSource{token: token, client: client, gate: gate, cc: cc}
}

func (g *GitHubSource) Name() string { return "github" }

// Match accepts github.com profile URLs and "github:<username>" handles.
func (g *GitHubSource) Match(ref string) bool {
	return strings.HasPrefix(ref, "github:") || githubUserRe.MatchString(ref)
}

// ID returns the canonical profile id for ref.
func (g *GitHubSource) ID(ref string) string {
	return "github:" + g.username(ref)
}

func (g *GitHubSource) username(ref string) string {
	if strings.HasPrefix(ref, "github:") {
		return strings.TrimPrefix(ref, "github:")
	}
	if m := githubUserRe.FindStringSubmatch(ref); m != nil {
		return m[1]
	}
	return ref
}

type githubUser struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Bio         string `json:"bio"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"public_repos"`
}

type githubRepo struct {
	Name     string   `json:"name"`
	Fork     bool     `json:"fork"`
	Stars    int      `json:"stargazers_count"`
	Language string   `json:"language"`
	Topics   []string `json:"topics"`
}

// Fetch builds a RawProfile from the user, repo, and event endpoints.
// Repo and event failures degrade the profile (fewer skills, zeroed activity
// sub-metrics) instead of failing the fetch.
func (g *GitHubSource) Fetch(ctx context.Context, ref string) (*RawProfile, error) {
	username := g.username(ref)
	if username == "" {
		return nil, fmt.Errorf("github: no username in %q", ref)
	}

	var user githubUser
	if err := g.getJSON(ctx, "https://api.github.com/users/"+username, &user); err != nil {
		return nil, fmt.Errorf("github user %s: %w", username, err)
	}

	raw := &RawProfile{
		ID:       user.Login,
		Name:     user.Name,
		Bio:      user.Bio,
		Location: user.Location,
		Activeness: rank.ActivenessMetrics{
			Followers: user.Followers,
			Following: user.Following,
		},
	}
	if company := strings.TrimPrefix(strings.TrimSpace(user.Company), "@"); company != "" {
		raw.Companies = []string{company}
	}

	var repos []githubRepo
	if err := g.getJSON(ctx, fmt.Sprintf("https://api.github.com/users/%s/repos?per_page=100&sort=pushed", username), &repos); err == nil {
		seen := make(map[string]bool)
		for _, r := range repos {
			raw.Activeness.Stars += r.Stars
			if r.Fork {
				continue
			}
			for _, s := range append(r.Topics, r.Language) {
				s = strings.ToLower(strings.TrimSpace(s))
				if s != "" && !seen[s] {
					seen[s] = true
					raw.Skills = append(raw.Skills, s)
				}
			}
		}
	}

	// Public event count stands in for contribution volume; the REST API has
	// no contribution-calendar endpoint.
	var events []json.RawMessage
	if err := g.getJSON(ctx, fmt.Sprintf("https://api.github.com/users/%s/events/public?per_page=100", username), &events); err == nil {
		raw.Activeness.Contributions = len(events)
	}

	return raw, nil
}

// getJSON fetches url through the cooldown gate and decodes the response.
func (g *GitHubSource) getJSON(ctx context.Context, url string, out any) error {
	body, err := engine.CallCooled(ctx, g.gate, g.cc, func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/vnd.github.v3+json")
		if g.token != "" {
			req.Header.Set("Authorization", "Bearer "+g.token)
		}

		resp, err := g.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		// GitHub signals primary rate limits with 403 + an exhausted quota
		// header, secondary limits with 429.
		if resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, engine.ErrRateLimited
		}
		if resp.StatusCode != http.StatusOK {
			return nil, &engine.StatusError{Code: resp.StatusCode}
		}

		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}
