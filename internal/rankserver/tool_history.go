package rankserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noahgsolomon/peerscout/internal/engine"
	"github.com/noahgsolomon/peerscout/internal/engine/store"
)

// RankingHistoryInput filters the request log.
type RankingHistoryInput struct {
	Kind  string `json:"kind,omitempty" jsonschema:"Filter by request kind: seeds, filter, seeds+filter"`
	Limit int    `json:"limit,omitempty" jsonschema:"Max entries (default 50)"`
}

// RankingHistoryOutput lists logged ranking requests.
type RankingHistoryOutput struct {
	Total    int                  `json:"total"`
	Requests []store.HistoryEntry `json:"requests"`
}

func registerRankingHistory(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "ranking_history",
		Description: "List recent ranking requests (seed and filter), with candidate counts, durations, and outcomes.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input RankingHistoryInput) (*mcp.CallToolResult, RankingHistoryOutput, error) {
		switch input.Kind {
		case "", "seeds", "filter", "seeds+filter":
		default:
			return nil, RankingHistoryOutput{}, fmt.Errorf("invalid kind %q (valid: seeds, filter, seeds+filter)", input.Kind)
		}

		entries, err := store.ListRequests(ctx, input.Kind, input.Limit)
		if err != nil {
			return nil, RankingHistoryOutput{}, err
		}
		return nil, RankingHistoryOutput{Total: len(entries), Requests: entries}, nil
	})
}

// ServerStatsInput has no parameters.
type ServerStatsInput struct{}

// ServerStatsOutput carries the engine counter snapshot.
type ServerStatsOutput struct {
	Metrics map[string]int64 `json:"metrics"`
	Text    string           `json:"text"`
}

func registerServerStats(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "server_stats",
		Description: "Engine counters: embedding calls, cache hits/misses, vector queries, upserts, rank requests, cooldowns.",
		Annotations: &mcp.ToolAnnotations{ReadOnlyHint: true},
	}, func(ctx context.Context, req *mcp.CallToolRequest, input ServerStatsInput) (*mcp.CallToolResult, ServerStatsOutput, error) {
		return nil, ServerStatsOutput{Metrics: engine.GetMetrics(), Text: engine.FormatMetrics()}, nil
	})
}
