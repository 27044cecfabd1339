package rankserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
	"github.com/noahgsolomon/peerscout/internal/engine/store"
)

// SimilarProfilesInput is the seed-based entry point. Criteria may be
// supplied alongside seeds; the two result lists are merged.
type SimilarProfilesInput struct {
	Seeds    []string                `json:"seeds" jsonschema:"Seed profile ids or source URLs (e.g. github.com/torvalds)"`
	Criteria *rank.FilterCriteria    `json:"criteria,omitempty" jsonschema:"Optional declarative criteria merged with the seed results"`
	TopK     int                     `json:"top_k,omitempty" jsonschema:"Attribute values per vector query (default 25)"`
	Floors   map[rank.Signal]float64 `json:"floors,omitempty" jsonschema:"Per-signal similarity floor overrides"`
	Limit    int                     `json:"limit,omitempty" jsonschema:"Max profiles returned (default 50)"`
}

// FilterProfilesInput is the declarative entry point: weighted criteria, no
// seeds.
type FilterProfilesInput struct {
	Criteria rank.FilterCriteria     `json:"criteria" jsonschema:"Weighted filter criteria"`
	TopK     int                     `json:"top_k,omitempty" jsonschema:"Attribute values per vector query (default 25)"`
	Floors   map[rank.Signal]float64 `json:"floors,omitempty" jsonschema:"Per-signal similarity floor overrides"`
	Limit    int                     `json:"limit,omitempty" jsonschema:"Max profiles returned (default 50)"`
}

// RankOutput is the shared ranked-list response. OK is the explicit
// success flag: an empty list with OK=true is a valid low-confidence
// outcome, OK=false means no usable input survived.
type RankOutput struct {
	RequestID       string               `json:"request_id"`
	OK              bool                 `json:"ok"`
	Error           string               `json:"error,omitempty"`
	AcceptedSignals []rank.Signal        `json:"accepted_signals,omitempty"`
	Total           int                  `json:"total"`
	Profiles        []rank.RankedProfile `json:"profiles"`
}

func registerSimilarProfiles(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "similar_profiles",
		Description: "Rank stored profiles by multi-signal similarity to one or more seed profiles (ids or source URLs). Unknown seeds are fetched and indexed on the fly. Signals the seeds disagree on are excluded by variance gating. Optional declarative criteria run as a second entry point and merge additively.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: false},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input SimilarProfilesInput) (*mcp.CallToolResult, RankOutput, error) {
		if len(input.Seeds) == 0 {
			return nil, RankOutput{}, fmt.Errorf("seeds are required")
		}

		requestID := uuid.NewString()
		started := time.Now()
		ctx, cancel := requestContext(ctx)
		defer cancel()

		opts := rank.Options{TopK: input.TopK, Floors: input.Floors}

		resolved := deps.Resolver.ResolveBatch(ctx, input.Seeds)
		seeds := make([]rank.Seed, 0, len(resolved))
		for _, p := range resolved {
			seeds = append(seeds, rank.Seed{ID: p.ID, Embeddings: p.Embeddings})
		}

		var lists [][]rank.RankedProfile
		var acceptedSignals []rank.Signal

		res, err := deps.Ranker.RankBySeeds(ctx, seeds, opts)
		if err != nil && !isEmptyOutcome(err) {
			return nil, RankOutput{}, err
		}
		rankErr := err
		acceptedSignals = res.AcceptedSignals
		lists = append(lists, tagEntryPoint(res.Profiles, "seeds"))

		if input.Criteria != nil && !input.Criteria.Empty() {
			fres, ferr := deps.Ranker.RankByFilter(ctx, *input.Criteria, opts)
			if ferr != nil && !isEmptyOutcome(ferr) {
				return nil, RankOutput{}, ferr
			}
			lists = append(lists, tagEntryPoint(fres.Profiles, "filter"))
			acceptedSignals = unionSignals(acceptedSignals, fres.AcceptedSignals)
			if rankErr != nil && ferr == nil {
				rankErr = nil // filter evidence rescues an empty seed outcome
			}
		}

		out := buildOutput(requestID, rank.Merge(lists...), acceptedSignals, rankErr, input.Limit)
		recordHistory(ctx, requestID, historyKind(input), summarizeSeeds(input.Seeds), out, started)
		return nil, out, nil
	})
}

func registerFilterProfiles(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "filter_profiles",
		Description: "Rank stored profiles against declarative weighted criteria (skills with individual weights, location, job title, companies, schools, fields of study, is-platform-user and is-active flags). Each criterion is a one-off similarity query; no seeds involved.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input FilterProfilesInput) (*mcp.CallToolResult, RankOutput, error) {
		if input.Criteria.Empty() {
			return nil, RankOutput{}, fmt.Errorf("at least one criterion is required")
		}

		requestID := uuid.NewString()
		started := time.Now()
		ctx, cancel := requestContext(ctx)
		defer cancel()

		res, err := deps.Ranker.RankByFilter(ctx, input.Criteria, rank.Options{TopK: input.TopK, Floors: input.Floors})
		if err != nil && !isEmptyOutcome(err) {
			return nil, RankOutput{}, err
		}

		out := buildOutput(requestID, rank.Merge(tagEntryPoint(res.Profiles, "filter")), res.AcceptedSignals, err, input.Limit)
		recordHistory(ctx, requestID, "filter", summarizeCriteria(input.Criteria), out, started)
		return nil, out, nil
	})
}

// requestContext bounds a ranking request so a stalled upstream cannot hang
// it indefinitely.
func requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := engine.Cfg.RankTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

// isEmptyOutcome reports whether err is a valid empty terminal outcome
// rather than a hard failure.
func isEmptyOutcome(err error) bool {
	return errors.Is(err, rank.ErrNoSeeds) || errors.Is(err, rank.ErrNoSignals)
}

func unionSignals(have, add []rank.Signal) []rank.Signal {
	seen := make(map[rank.Signal]bool, len(have))
	for _, s := range have {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			have = append(have, s)
			seen[s] = true
		}
	}
	sort.Slice(have, func(i, j int) bool { return have[i] < have[j] })
	return have
}

func tagEntryPoint(list []rank.RankedProfile, entry string) []rank.RankedProfile {
	for i := range list {
		list[i].EntryPoints = []string{entry}
	}
	return list
}

func buildOutput(requestID string, profiles []rank.RankedProfile, accepted []rank.Signal, rankErr error, limit int) RankOutput {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if len(profiles) > limit {
		profiles = profiles[:limit]
	}
	out := RankOutput{
		RequestID:       requestID,
		OK:              rankErr == nil,
		AcceptedSignals: accepted,
		Total:           len(profiles),
		Profiles:        profiles,
	}
	if rankErr != nil {
		out.Error = rankErr.Error()
	}
	return out
}

func historyKind(input SimilarProfilesInput) string {
	if input.Criteria != nil && !input.Criteria.Empty() {
		return "seeds+filter"
	}
	return "seeds"
}

func recordHistory(ctx context.Context, requestID, kind, summary string, out RankOutput, started time.Time) {
	err := store.RecordRequest(ctx, store.HistoryEntry{
		RequestID:  requestID,
		Kind:       kind,
		Summary:    summary,
		Candidates: out.Total,
		Duration:   time.Since(started),
		OK:         out.OK,
	})
	if err != nil {
		slog.Warn("history record failed", slog.String("request_id", requestID), slog.Any("error", err))
	}
}

func summarizeSeeds(seeds []string) string {
	if len(seeds) > 5 {
		return fmt.Sprintf("%s… (%d seeds)", strings.Join(seeds[:5], ", "), len(seeds))
	}
	return strings.Join(seeds, ", ")
}

func summarizeCriteria(fc rank.FilterCriteria) string {
	var parts []string
	for skill := range fc.Skills {
		parts = append(parts, "skill:"+skill)
	}
	if fc.Location != nil {
		parts = append(parts, "location:"+fc.Location.Value)
	}
	if fc.JobTitle != nil {
		parts = append(parts, "title:"+fc.JobTitle.Value)
	}
	if fc.Companies != nil {
		parts = append(parts, fmt.Sprintf("companies:%d", len(fc.Companies.Values)))
	}
	if fc.Schools != nil {
		parts = append(parts, fmt.Sprintf("schools:%d", len(fc.Schools.Values)))
	}
	if fc.Fields != nil {
		parts = append(parts, fmt.Sprintf("fields:%d", len(fc.Fields.Values)))
	}
	if fc.IsPlatformUser != nil {
		parts = append(parts, "platform-user")
	}
	if fc.IsActive != nil {
		parts = append(parts, "active")
	}
	return strings.Join(parts, ", ")
}
