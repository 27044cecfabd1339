package rank

// Match is one attribute value returned by a vector similarity query,
// with the profiles currently declaring it. Ephemeral, produced per query.
type Match struct {
	Value     string   `json:"value"`
	Score     float64  `json:"score"` // cosine similarity in [-1, 1]
	MemberIDs []string `json:"member_ids"`
}

// Attribution records which attribute value caused a profile to match a
// signal, retained for explainability.
type Attribution struct {
	Value string  `json:"value"`
	Score float64 `json:"score"`
}

// Candidate accumulates per-signal evidence for one profile during a single
// ranking request. Request-local; discarded once the ranked list is built.
type Candidate struct {
	ProfileID  string
	Raw        map[Signal]float64
	Normalized map[Signal]float64
	Matched    map[Signal][]Attribution
	IsActive   bool
	Score      float64
}

// NewCandidate returns an empty candidate for profileID.
func NewCandidate(profileID string) *Candidate {
	return &Candidate{
		ProfileID:  profileID,
		Raw:        make(map[Signal]float64),
		Normalized: make(map[Signal]float64),
		Matched:    make(map[Signal][]Attribution),
	}
}

// AddMatch folds one query match into the candidate's raw score for sig.
// Skills accumulate: every matched skill adds its weighted score, so the
// population statistics later run over the combined skills score. All other
// signals keep the best-matching value only.
func (c *Candidate) AddMatch(sig Signal, value string, score, weight float64) {
	weighted := score * weight
	switch sig {
	case SignalSkills:
		c.Raw[sig] += weighted
		c.Matched[sig] = append(c.Matched[sig], Attribution{Value: value, Score: score})
	default:
		if cur, ok := c.Raw[sig]; !ok || weighted > cur {
			c.Raw[sig] = weighted
			c.Matched[sig] = []Attribution{{Value: value, Score: score}}
		}
	}
}
