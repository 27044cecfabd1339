// Package rank implements the candidate similarity and ranking engine:
// variance gating of seed signals, per-signal vector queries, population
// normalization, weighted aggregation, and merging of ranked lists.
package rank

// Signal is one category of attribute used for similarity.
type Signal string

const (
	SignalSkills     Signal = "skills"
	SignalJobTitles  Signal = "job_titles"
	SignalCompanies  Signal = "companies"
	SignalSchools    Signal = "schools"
	SignalFields     Signal = "fields_of_study"
	SignalLocation   Signal = "location"
	SignalActiveness Signal = "activeness"
	SignalPlatform   Signal = "platform"
)

// VectorSignals are the signals backed by attribute embeddings. Activeness and
// platform membership are computed from profile fields, not vector queries.
var VectorSignals = []Signal{
	SignalSkills,
	SignalJobTitles,
	SignalCompanies,
	SignalSchools,
	SignalFields,
	SignalLocation,
}

// DefaultFloors are the per-signal similarity floors. Location is strict
// because its vocabulary is dense (nearby city names embed close together);
// skills tolerate looser matches.
var DefaultFloors = map[Signal]float64{
	SignalSkills:    0.60,
	SignalJobTitles: 0.60,
	SignalCompanies: 0.65,
	SignalSchools:   0.65,
	SignalFields:    0.60,
	SignalLocation:  0.75,
}

// Floor returns the similarity floor for sig, falling back to 0.6.
func Floor(floors map[Signal]float64, sig Signal) float64 {
	if f, ok := floors[sig]; ok {
		return f
	}
	if f, ok := DefaultFloors[sig]; ok {
		return f
	}
	return 0.6
}
