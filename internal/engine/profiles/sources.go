package profiles

import (
	"context"

	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// RawProfile is the structured payload a source returns for one reference.
type RawProfile struct {
	ID        string
	Name      string
	Bio       string // free text, feeds skill extraction when no structured skills exist
	Location  string // free text, classifier-normalized before indexing
	Skills    []string
	JobTitles []string
	Companies []string
	Schools   []string
	Fields    []string

	Activeness rank.ActivenessMetrics

	// Connections are references to profiles in this person's network,
	// consumed by the bounded traversal in ResolveNetwork.
	Connections []string
}

// Source fetches raw profile data from one upstream system. A failed or nil
// response means "profile unavailable" and the caller skips the profile.
type Source interface {
	Name() string
	// Match reports whether ref (URL or prefixed handle) belongs to this source.
	Match(ref string) bool
	// ID returns the canonical profile id for ref, e.g. "github:torvalds".
	ID(ref string) string
	Fetch(ctx context.Context, ref string) (*RawProfile, error)
}

// Classifier normalizes free text via the LLM-backed collaborators. Both
// methods degrade: on error the caller keeps the unclassified input.
type Classifier interface {
	NormalizeLocation(ctx context.Context, freeText string) (string, error)
	ExtractSkills(ctx context.Context, text string) ([]string, error)
}

// Store is the profile persistence surface the resolver requires.
type Store interface {
	// GetProfile returns the stored profile or engine.ErrNotFound.
	GetProfile(ctx context.Context, id string) (*Profile, error)
	// SaveProfile upserts the profile row and replaces its average embeddings.
	SaveProfile(ctx context.Context, p *Profile) error
}

// Indexer is the attribute-index surface the resolver requires.
type Indexer interface {
	Upsert(ctx context.Context, sig rank.Signal, rawValue, profileID string) ([]float32, error)
}
