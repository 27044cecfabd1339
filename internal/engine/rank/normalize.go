package rank

import "math"

// Stats holds population mean and standard deviation for one signal's raw
// scores within a single request. Normalization is request-scoped: the same
// raw score can normalize differently across requests.
type Stats struct {
	Mean   float64
	StdDev float64
}

// PopulationStats computes mean and population standard deviation of scores.
func PopulationStats(scores []float64) Stats {
	if len(scores) == 0 {
		return Stats{}
	}

	var mean float64
	for _, s := range scores {
		mean += s
	}
	mean /= float64(len(scores))

	var variance float64
	for _, s := range scores {
		variance += (s - mean) * (s - mean)
	}
	variance /= float64(len(scores))

	return Stats{Mean: mean, StdDev: math.Sqrt(variance)}
}

// Normalize maps a raw score onto (0,1) via z-score + logistic transform.
// A degenerate population (zero stddev) maps positive scores to 1 and the
// rest to 0 instead of dividing by zero.
func Normalize(raw float64, st Stats) float64 {
	if st.StdDev == 0 {
		if raw > 0 {
			return 1
		}
		return 0
	}
	z := (raw - st.Mean) / st.StdDev
	return 1 / (1 + math.Exp(-z))
}
