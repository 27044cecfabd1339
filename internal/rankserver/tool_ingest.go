package rankserver

import (
	"context"
	"fmt"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/profiles"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// ProfileIngestInput identifies one profile to fetch and index.
type ProfileIngestInput struct {
	Ref      string `json:"ref" jsonschema:"Profile id or source URL (e.g. github.com/torvalds or github:torvalds)"`
	Network  bool   `json:"network,omitempty" jsonschema:"Also ingest the profile's connection graph"`
	Depth    int    `json:"depth,omitempty" jsonschema:"Traversal depth when network is set (default 1)"`
	MaxCount int    `json:"max_count,omitempty" jsonschema:"Max profiles ingested per traversal (default from config)"`
}

// IngestedProfile summarizes one stored profile.
type IngestedProfile struct {
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	Location string        `json:"location,omitempty"`
	Skills   int           `json:"skills"`
	Signals  []rank.Signal `json:"signals"` // signals that produced an average embedding
}

// ProfileIngestOutput reports what was ingested.
type ProfileIngestOutput struct {
	Total    int               `json:"total"`
	Profiles []IngestedProfile `json:"profiles"`
}

func registerProfileIngest(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "profile_ingest",
		Description: "Fetch a profile from its upstream source, index its attributes into the deduplicating attribute index, recompute its per-signal average embeddings, and persist it. With network=true, also walks the profile's connections breadth-first under explicit depth and size bounds.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ProfileIngestInput) (*mcp.CallToolResult, ProfileIngestOutput, error) {
		if input.Ref == "" {
			return nil, ProfileIngestOutput{}, fmt.Errorf("ref is required")
		}

		ctx, cancel := requestContext(ctx)
		defer cancel()

		var out ProfileIngestOutput
		if input.Network {
			depth := input.Depth
			if depth <= 0 {
				depth = engine.Cfg.NetworkDepth
			}
			maxCount := input.MaxCount
			if maxCount <= 0 {
				maxCount = engine.Cfg.NetworkFrontier
			}
			ps, err := deps.Resolver.ResolveNetwork(ctx, input.Ref, depth, maxCount)
			if err != nil {
				return nil, ProfileIngestOutput{}, err
			}
			for _, p := range ps {
				out.Profiles = append(out.Profiles, summarizeProfile(p))
			}
		} else {
			p, err := deps.Resolver.Resolve(ctx, input.Ref)
			if err != nil {
				return nil, ProfileIngestOutput{}, err
			}
			out.Profiles = append(out.Profiles, summarizeProfile(p))
		}

		out.Total = len(out.Profiles)
		return nil, out, nil
	})
}

func summarizeProfile(p *profiles.Profile) IngestedProfile {
	s := IngestedProfile{
		ID:       p.ID,
		Name:     p.Name,
		Location: p.Location,
		Skills:   len(p.Skills),
	}
	for sig := range p.Embeddings {
		s.Signals = append(s.Signals, sig)
	}
	sort.Slice(s.Signals, func(i, j int) bool { return s.Signals[i] < s.Signals[j] })
	return s
}
