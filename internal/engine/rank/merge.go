package rank

import "sort"

// RankedProfile is one entry of a ranked result list.
type RankedProfile struct {
	ProfileID    string                   `json:"profile_id"`
	Score        float64                  `json:"score"`
	Attributions map[Signal][]Attribution `json:"attributions,omitempty"`
	IsActive     bool                     `json:"is_active,omitempty"`
	EntryPoints  []string                 `json:"entry_points,omitempty"`
}

// Merge combines ranked lists produced by independent entry points. Scores
// for a profile appearing in several lists are summed (independent evidence,
// not averaged), attributions are unioned per signal deduplicating on the
// attribute value, and entry-point sets are unioned. Output is sorted by
// score descending; equal scores order ascending by profile id so pagination
// is stable.
func Merge(lists ...[]RankedProfile) []RankedProfile {
	merged := make(map[string]*RankedProfile)
	var order []string

	for _, list := range lists {
		for _, rp := range list {
			m, ok := merged[rp.ProfileID]
			if !ok {
				cp := rp
				cp.Attributions = cloneAttributions(rp.Attributions)
				cp.EntryPoints = append([]string(nil), rp.EntryPoints...)
				merged[rp.ProfileID] = &cp
				order = append(order, rp.ProfileID)
				continue
			}

			m.Score += rp.Score
			m.IsActive = m.IsActive || rp.IsActive
			for sig, attrs := range rp.Attributions {
				m.Attributions[sig] = unionAttributions(m.Attributions[sig], attrs)
			}
			m.EntryPoints = unionStrings(m.EntryPoints, rp.EntryPoints)
		}
	}

	out := make([]RankedProfile, 0, len(merged))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ProfileID < out[j].ProfileID
	})
	return out
}

func cloneAttributions(in map[Signal][]Attribution) map[Signal][]Attribution {
	out := make(map[Signal][]Attribution, len(in))
	for sig, attrs := range in {
		out[sig] = append([]Attribution(nil), attrs...)
	}
	return out
}

// unionAttributions appends the attrs whose value is not yet present.
// The attribute value is the natural key; a profile matched on "rust" via two
// entry points keeps one attribution entry.
func unionAttributions(have, add []Attribution) []Attribution {
	seen := make(map[string]bool, len(have))
	for _, a := range have {
		seen[a.Value] = true
	}
	for _, a := range add {
		if !seen[a.Value] {
			have = append(have, a)
			seen[a.Value] = true
		}
	}
	return have
}

func unionStrings(have, add []string) []string {
	seen := make(map[string]bool, len(have))
	for _, s := range have {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			have = append(have, s)
			seen[s] = true
		}
	}
	return have
}
