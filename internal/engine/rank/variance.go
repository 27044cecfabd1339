package rank

import (
	"github.com/noahgsolomon/peerscout/internal/engine"
)

// DefaultVarianceThreshold is the maximum seed dissimilarity variance a
// signal may show and still be trusted for ranking.
const DefaultVarianceThreshold = 0.1

// DissimilarityVariance computes the population variance of (1 - cosine)
// across all seed pairs for one signal. Zero or one vector yields 0: a single
// seed cannot disagree with itself. With exactly two vectors the population
// collapses to the single value 1 - similarity.
func DissimilarityVariance(vecs [][]float32) float64 {
	if len(vecs) < 2 {
		return 0
	}

	var dists []float64
	for i := 0; i < len(vecs); i++ {
		for j := i + 1; j < len(vecs); j++ {
			dists = append(dists, 1-engine.Cosine(vecs[i], vecs[j]))
		}
	}
	if len(dists) == 1 {
		return dists[0]
	}

	var mean float64
	for _, d := range dists {
		mean += d
	}
	mean /= float64(len(dists))

	var variance float64
	for _, d := range dists {
		variance += (d - mean) * (d - mean)
	}
	return variance / float64(len(dists))
}

// SelectSignals decides which signals are coherent enough across the seed
// set to be trusted. A signal with no seed embeddings is excluded outright;
// rejected signals must be dropped from all downstream scoring, not merely
// down-weighted.
func SelectSignals(seedVecs map[Signal][][]float32, threshold float64) map[Signal]bool {
	if threshold <= 0 {
		threshold = DefaultVarianceThreshold
	}

	accepted := make(map[Signal]bool, len(seedVecs))
	for sig, vecs := range seedVecs {
		if len(vecs) == 0 {
			continue
		}
		if DissimilarityVariance(vecs) <= threshold {
			accepted[sig] = true
		}
	}
	return accepted
}
