// Package rankserver exposes the ranking engine as MCP tools.
package rankserver

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/noahgsolomon/peerscout/internal/engine/profiles"
	"github.com/noahgsolomon/peerscout/internal/engine/rank"
)

// Deps are the engine components the tools call into, set from main.
type Deps struct {
	Ranker   *rank.Ranker
	Resolver *profiles.Resolver
}

var deps Deps

// Init sets the package-level dependencies. Call before RegisterTools.
func Init(d Deps) { deps = d }

// RegisterTools registers all ranking tools on the given MCP server:
// similar_profiles, filter_profiles, profile_ingest, ranking_history,
// server_stats.
func RegisterTools(server *mcp.Server) {
	registerSimilarProfiles(server)
	registerFilterProfiles(server)
	registerProfileIngest(server)
	registerRankingHistory(server)
	registerServerStats(server)
}
