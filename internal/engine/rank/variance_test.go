package rank

import (
	"math"
	"testing"
)

func TestDissimilarityVariance(t *testing.T) {
	tests := []struct {
		name string
		vecs [][]float32
		want float64
	}{
		{"no vectors", nil, 0},
		{"single vector", [][]float32{{1, 0}}, 0},
		{"identical pair", [][]float32{{1, 0}, {1, 0}}, 0},
		{"orthogonal pair", [][]float32{{1, 0}, {0, 1}}, 1},
		// pairs: d=0, d=1, d=1 → mean 2/3, population variance 2/9
		{"two agree one diverges", [][]float32{{1, 0}, {1, 0}, {0, 1}}, 2.0 / 9.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DissimilarityVariance(tt.vecs)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("DissimilarityVariance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSelectSignals(t *testing.T) {
	seedVecs := map[Signal][][]float32{
		SignalSkills:   {{1, 0}, {1, 0}},         // variance 0, accepted
		SignalLocation: {{1, 0}, {0, 1}},         // variance 1, rejected
		SignalSchools:  {{1, 0}},                 // single seed, accepted
		SignalFields:   {},                       // no embeddings, excluded
		SignalJobTitles: {
			{1, 0}, {0.998, 0.0632}, // nearly parallel, tiny variance
		},
	}

	accepted := SelectSignals(seedVecs, DefaultVarianceThreshold)

	for _, sig := range []Signal{SignalSkills, SignalSchools, SignalJobTitles} {
		if !accepted[sig] {
			t.Errorf("expected %s accepted", sig)
		}
	}
	for _, sig := range []Signal{SignalLocation, SignalFields} {
		if accepted[sig] {
			t.Errorf("expected %s rejected", sig)
		}
	}
}

func TestSelectSignalsPairBoundary(t *testing.T) {
	// With exactly two seeds the variance collapses to 1 - similarity, so the
	// 0.1 threshold sits at similarity 0.9.
	unit := func(cos float64) []float32 {
		return []float32{float32(cos), float32(math.Sqrt(1 - cos*cos))}
	}

	accepted := SelectSignals(map[Signal][][]float32{
		SignalSkills:   {{1, 0}, unit(0.91)},
		SignalLocation: {{1, 0}, unit(0.89)},
	}, DefaultVarianceThreshold)

	if !accepted[SignalSkills] {
		t.Error("similarity 0.91 should be accepted at threshold 0.1")
	}
	if accepted[SignalLocation] {
		t.Error("similarity 0.89 should be rejected at threshold 0.1")
	}
}

func TestSelectSignalsZeroThresholdUsesDefault(t *testing.T) {
	seedVecs := map[Signal][][]float32{
		SignalSkills: {{1, 0}, {1, 0}},
	}
	if got := SelectSignals(seedVecs, 0); !got[SignalSkills] {
		t.Error("identical seed vectors should pass the default threshold")
	}
}
