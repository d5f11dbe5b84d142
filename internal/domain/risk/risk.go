// Package risk classifies deal risk from memo scores and flagged concerns.
package risk

import "github.com/venturelens/dealflow/internal/domain/record"

// Default classification thresholds. These were carried over from product as
// given and are configurable pending further input, not hardcoded invariants.
const (
	defaultNeutralScore = 5.0
	defaultHighScore    = 4.0
	defaultMediumScore  = 7.0
	defaultHighFlags    = 3
	defaultMediumFlags  = 1
)

// Level is the coarse risk classification of a deal.
type Level string

// Risk levels.
const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// Assessment contains the computed risk for a deal.
type Assessment struct {
	// Score is the overall score from the latest memo that carries one,
	// or the neutral default when no stage has scored the deal yet.
	Score float64
	// Flags counts risk flags across every stage found.
	Flags int
	Level Level
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer)

// WithNeutralScore sets the score assumed when no memo carries one.
func WithNeutralScore(score float64) Option {
	return func(s *Scorer) {
		s.neutralScore = score
	}
}

// WithScoreThresholds sets the score cutoffs: below high is High risk,
// below medium is at least Medium.
func WithScoreThresholds(high, medium float64) Option {
	return func(s *Scorer) {
		if medium > high {
			s.highScore = high
			s.mediumScore = medium
		}
	}
}

// WithFlagThresholds sets the flag-count cutoffs: more than high flags is
// High risk, more than medium is at least Medium.
func WithFlagThresholds(high, medium int) Option {
	return func(s *Scorer) {
		if high > medium {
			s.highFlags = high
			s.mediumFlags = medium
		}
	}
}

// Scorer computes risk assessments. It is pure and total: no record shape
// causes an error, and scores outside [0,10] pass through unclamped because
// numeric semantics are upstream's responsibility.
type Scorer struct {
	neutralScore float64
	highScore    float64
	mediumScore  float64
	highFlags    int
	mediumFlags  int
}

// NewScorer creates a Scorer with configuration options.
func NewScorer(opts ...Option) *Scorer {
	s := &Scorer{
		neutralScore: defaultNeutralScore,
		highScore:    defaultHighScore,
		mediumScore:  defaultMediumScore,
		highFlags:    defaultHighFlags,
		mediumFlags:  defaultMediumFlags,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Score assesses the record. The overall score is taken from the latest
// stage that has one (memo_3, then memo_2, then memo_1); flags accumulate
// across all stages, treating absent or non-list values as empty.
func (s *Scorer) Score(rec record.RawRecord) Assessment {
	a := Assessment{Score: s.neutralScore}
	for _, m := range rec.Memos() {
		if v, ok := m.Number("overall_score"); ok {
			a.Score = v
			break
		}
	}

	a.Flags = len(rec.Memo1.List("initial_flags")) +
		len(rec.Memo2.List("key_risks")) +
		len(rec.Memo3.List("key_risks"))

	switch {
	case a.Flags > s.highFlags || a.Score < s.highScore:
		a.Level = High
	case a.Flags > s.mediumFlags || a.Score < s.mediumScore:
		a.Level = Medium
	default:
		a.Level = Low
	}
	return a
}
