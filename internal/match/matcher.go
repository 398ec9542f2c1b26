package match

import (
	"log/slog"
	"sort"

	"github.com/agext/levenshtein"

	"github.com/blue-scarf/paystamp/internal/catalog"
)

// Outcome classifies a resolution attempt against the commitment catalog.
type Outcome string

const (
	// OutcomeMatched means a single candidate cleared the accept threshold
	// with enough margin over the runner-up.
	OutcomeMatched Outcome = "MATCHED"
	// OutcomeAmbiguous means two or more candidates scored within the
	// ambiguity delta of each other, so the reviewer must pick.
	OutcomeAmbiguous Outcome = "AMBIGUOUS"
	// OutcomeNoMatch means no candidate reached the accept threshold and
	// no near tie sits above the floor.
	OutcomeNoMatch Outcome = "NO_MATCH"
)

// Candidate is one scored catalog record.
type Candidate struct {
	Record catalog.Record `json:"record"`
	Score  float64        `json:"score"`
}

// Result is the outcome of resolving an extracted vendor name.
type Result struct {
	Outcome Outcome `json:"outcome"`
	// Best is set for MATCHED and AMBIGUOUS.
	Best *Candidate `json:"best,omitempty"`
	// Alternates holds every candidate at or above the floor threshold,
	// best first, for the reviewer to choose from.
	Alternates []Candidate `json:"alternates,omitempty"`
	Query      string      `json:"query"`
}

// Thresholds tunes acceptance. Zero values are replaced by defaults.
type Thresholds struct {
	Accept         float64
	Floor          float64
	AmbiguityDelta float64
}

// DefaultThresholds reflect the tuning the review flow was built around.
var DefaultThresholds = Thresholds{
	Accept:         0.85,
	Floor:          0.55,
	AmbiguityDelta: 0.05,
}

func (t Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds
	if t.Accept > 0 {
		d.Accept = t.Accept
	}
	if t.Floor > 0 {
		d.Floor = t.Floor
	}
	if t.AmbiguityDelta > 0 {
		d.AmbiguityDelta = t.AmbiguityDelta
	}
	return d
}

// Matcher resolves free-text vendor names to catalog records. It is
// stateless apart from its thresholds; the catalog snapshot is passed per
// call so a reload never races a resolution.
type Matcher struct {
	thresholds Thresholds
	logger     *slog.Logger
}

// New builds a Matcher. A nil logger falls back to slog.Default().
func New(t Thresholds, logger *slog.Logger) *Matcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{thresholds: t.withDefaults(), logger: logger}
}

// partialWeight discounts best-window alignment so a truncated name clears
// the accept threshold without tying an exact match.
const partialWeight = 0.95

// Score blends whole-string edit similarity with token overlap so that
// reordered or partially dropped words still score well while unrelated
// names with a shared word do not. A windowed partial comparison covers the
// remaining case of one name being a truncation of the other ("Archon Air"
// in the catalog for "Archon Air Management Corp" on the application).
func Score(query, candidate string) float64 {
	qn := Normalize(query)
	cn := Normalize(candidate)
	if qn == "" || cn == "" {
		return 0
	}
	if qn == cn {
		return 1
	}
	overlap := tokenOverlap(tokens(qn), tokens(cn))
	edit := levenshtein.Similarity(qn, cn, nil)
	score := 0.6*overlap + 0.4*edit
	if p := partialWeight * partialSimilarity(qn, cn); p > score {
		score = p
	}
	return score
}

// Resolve scores the query against every record in the snapshot and
// classifies the outcome. The result is deterministic for a given snapshot:
// ties are broken by longer shared normalized prefix with the query, then by
// catalog order.
func (m *Matcher) Resolve(query string, snap *catalog.Snapshot) Result {
	res := Result{Outcome: OutcomeNoMatch, Query: query}
	qn := Normalize(query)
	if qn == "" || snap == nil || snap.Len() == 0 {
		m.logger.Debug("match.skip", "query", query)
		return res
	}

	records := snap.Records()
	scored := make([]Candidate, 0, 8)
	for _, rec := range records {
		s := Score(query, rec.Vendor)
		if s >= m.thresholds.Floor {
			scored = append(scored, Candidate{Record: rec, Score: s})
		}
	}
	if len(scored) == 0 {
		m.logger.Info("match.none", "query", query, "catalog_size", snap.Len())
		return res
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		pi := sharedPrefixLen(qn, Normalize(scored[i].Record.Vendor))
		pj := sharedPrefixLen(qn, Normalize(scored[j].Record.Vendor))
		return pi > pj
	})

	res.Alternates = scored
	best := scored[0]
	nearTie := len(scored) > 1 && best.Score-scored[1].Score < m.thresholds.AmbiguityDelta

	if best.Score >= m.thresholds.Accept {
		res.Best = &best
		if nearTie && scored[1].Score >= m.thresholds.Accept {
			res.Outcome = OutcomeAmbiguous
			m.logger.Info("match.ambiguous", "query", query,
				"best_vendor", best.Record.Vendor, "runner_up", scored[1].Record.Vendor)
			return res
		}
		res.Outcome = OutcomeMatched
		m.logger.Info("match.ok", "query", query,
			"commitment_id", best.Record.CommitmentID, "score", best.Score)
		return res
	}

	// Between floor and accept, a near tie needs a human pick; a lone best
	// is no match, with the candidates still surfaced for manual selection.
	if nearTie {
		res.Best = &best
		res.Outcome = OutcomeAmbiguous
		m.logger.Info("match.ambiguous", "query", query,
			"best_vendor", best.Record.Vendor, "runner_up", scored[1].Record.Vendor)
		return res
	}
	m.logger.Info("match.below_accept", "query", query, "best_vendor", best.Record.Vendor, "score", best.Score)
	return res
}
