package rank

import (
	"math"
	"testing"
)

func TestMergeSumsScores(t *testing.T) {
	seeds := []RankedProfile{
		{ProfileID: "p1", Score: 0.4, EntryPoints: []string{"seeds"}},
		{ProfileID: "p2", Score: 0.9, EntryPoints: []string{"seeds"}},
	}
	filter := []RankedProfile{
		{ProfileID: "p1", Score: 0.3, EntryPoints: []string{"filter"}},
	}

	got := Merge(seeds, filter)

	if len(got) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(got))
	}
	if got[0].ProfileID != "p2" {
		t.Errorf("expected p2 first, got %s", got[0].ProfileID)
	}
	if math.Abs(got[1].Score-0.7) > 1e-9 {
		t.Errorf("p1 merged score = %v, want 0.7", got[1].Score)
	}
	if len(got[1].EntryPoints) != 2 {
		t.Errorf("p1 entry points = %v, want both", got[1].EntryPoints)
	}
}

func TestMergeDeduplicatesAttributions(t *testing.T) {
	a := []RankedProfile{{
		ProfileID: "p1",
		Score:     0.5,
		Attributions: map[Signal][]Attribution{
			SignalSkills: {{Value: "rust", Score: 0.9}},
		},
	}}
	b := []RankedProfile{{
		ProfileID: "p1",
		Score:     0.2,
		Attributions: map[Signal][]Attribution{
			SignalSkills: {{Value: "rust", Score: 0.85}, {Value: "go", Score: 0.8}},
		},
	}}

	got := Merge(a, b)

	attrs := got[0].Attributions[SignalSkills]
	if len(attrs) != 2 {
		t.Fatalf("expected 2 deduplicated attributions, got %v", attrs)
	}
	if attrs[0].Value != "rust" || attrs[0].Score != 0.9 {
		t.Errorf("first-seen attribution should win: %v", attrs[0])
	}
}

func TestMergeTieBreaksByProfileID(t *testing.T) {
	got := Merge([]RankedProfile{
		{ProfileID: "zeta", Score: 0.5},
		{ProfileID: "alpha", Score: 0.5},
		{ProfileID: "mid", Score: 0.5},
	})

	want := []string{"alpha", "mid", "zeta"}
	for i, id := range want {
		if got[i].ProfileID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ProfileID, id)
		}
	}
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	a := []RankedProfile{{
		ProfileID:    "p1",
		Score:        0.5,
		Attributions: map[Signal][]Attribution{SignalSkills: {{Value: "rust", Score: 0.9}}},
	}}
	b := []RankedProfile{{
		ProfileID:    "p1",
		Score:        0.2,
		Attributions: map[Signal][]Attribution{SignalSkills: {{Value: "go", Score: 0.8}}},
	}}

	Merge(a, b)

	if len(a[0].Attributions[SignalSkills]) != 1 {
		t.Errorf("input attribution slice mutated: %v", a[0].Attributions[SignalSkills])
	}
	if a[0].Score != 0.5 {
		t.Errorf("input score mutated: %v", a[0].Score)
	}
}

func TestMergeActiveFlagSticks(t *testing.T) {
	got := Merge(
		[]RankedProfile{{ProfileID: "p1", Score: 0.1, IsActive: true}},
		[]RankedProfile{{ProfileID: "p1", Score: 0.1, IsActive: false}},
	)
	if !got[0].IsActive {
		t.Error("active flag from either list should survive the merge")
	}
}
