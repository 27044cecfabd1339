package rank

// RenormalizeWeights restricts weights to the accepted signals and rescales
// them to sum to 1, so rejecting a signal via variance gating does not shrink
// the achievable score range. Returns nil when nothing survives.
func RenormalizeWeights(weights map[Signal]float64, accepted map[Signal]bool) map[Signal]float64 {
	var total float64
	for sig, w := range weights {
		if accepted[sig] && w > 0 {
			total += w
		}
	}
	if total == 0 {
		return nil
	}

	out := make(map[Signal]float64)
	for sig, w := range weights {
		if accepted[sig] && w > 0 {
			out[sig] = w / total
		}
	}
	return out
}

// Aggregate computes the candidate's final score from its normalized
// per-signal scores and the (already renormalized) weights. Missing signals
// contribute their normalized zero, not an error.
func Aggregate(c *Candidate, weights map[Signal]float64) float64 {
	var score float64
	for sig, w := range weights {
		score += w * c.Normalized[sig]
	}
	c.Score = score
	return score
}

// NormalizeSignal computes population statistics over every candidate's raw
// score for sig and writes the normalized scores back. The population is the
// full candidate pool of the current request: candidates without a raw score
// for sig count as raw 0.
func NormalizeSignal(pool map[string]*Candidate, sig Signal) {
	scores := make([]float64, 0, len(pool))
	for _, c := range pool {
		scores = append(scores, c.Raw[sig])
	}
	st := PopulationStats(scores)
	for _, c := range pool {
		c.Normalized[sig] = Normalize(c.Raw[sig], st)
	}
}

// ActivenessMetrics are the raw platform-activity sub-metrics for a profile.
type ActivenessMetrics struct {
	Followers     int `json:"followers"`
	Following     int `json:"following"`
	Contributions int `json:"contributions"`
	Stars         int `json:"stars"`
}

// ratio returns followers per following, 0 when following is 0.
func (m ActivenessMetrics) ratio() float64 {
	if m.Following == 0 {
		return 0
	}
	return float64(m.Followers) / float64(m.Following)
}

// Activeness sub-weights: followers 0.2, contributions 0.3, stars 0.3,
// follower/following ratio 0.2.
const (
	wFollowers     = 0.2
	wContributions = 0.3
	wStars         = 0.3
	wRatio         = 0.2
)

// activeRawThreshold is applied to the raw composite, not the normalized
// score, to derive the boolean is-active flag.
const activeRawThreshold = 0.5

// ApplyActiveness computes the activeness composite for every candidate in
// the pool. Each sub-metric is normalized against its own population
// statistics, the fixed sub-weights combine them into one raw composite, and
// that composite becomes the candidate's raw activeness score (normalized
// later like any other signal). The is-active flag thresholds the raw
// composite at 0.5.
func ApplyActiveness(pool map[string]*Candidate, metrics map[string]ActivenessMetrics) {
	ids := make([]string, 0, len(pool))
	followers := make([]float64, 0, len(pool))
	contributions := make([]float64, 0, len(pool))
	stars := make([]float64, 0, len(pool))
	ratios := make([]float64, 0, len(pool))

	for id := range pool {
		m := metrics[id]
		ids = append(ids, id)
		followers = append(followers, float64(m.Followers))
		contributions = append(contributions, float64(m.Contributions))
		stars = append(stars, float64(m.Stars))
		ratios = append(ratios, m.ratio())
	}

	stFollowers := PopulationStats(followers)
	stContributions := PopulationStats(contributions)
	stStars := PopulationStats(stars)
	stRatios := PopulationStats(ratios)

	for i, id := range ids {
		composite := wFollowers*Normalize(followers[i], stFollowers) +
			wContributions*Normalize(contributions[i], stContributions) +
			wStars*Normalize(stars[i], stStars) +
			wRatio*Normalize(ratios[i], stRatios)

		c := pool[id]
		c.Raw[SignalActiveness] = composite
		c.IsActive = composite >= activeRawThreshold
	}
}
