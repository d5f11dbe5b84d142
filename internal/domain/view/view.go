// Package view assembles the rendering-ready model for a deal.
//
// The builder composes stage derivation, risk scoring, and defaulted field
// extraction into one immutable value. It never fails: a malformed record
// degrades to a well-defined fallback model, because a subscription stream
// cannot usefully propagate a single bad record as a fatal error to a
// long-lived consumer.
package view

import (
	"context"
	"time"

	"github.com/venturelens/dealflow/internal/domain/record"
	"github.com/venturelens/dealflow/internal/domain/risk"
	"github.com/venturelens/dealflow/internal/domain/stage"
	"github.com/venturelens/dealflow/pkg/logger"
	"github.com/venturelens/dealflow/pkg/metrics"
)

// Model is the fully-derived representation of one deal. A fresh value is
// built on every record change; it is never mutated in place.
type Model struct {
	ID           string      `json:"id"`
	StartupName  string      `json:"startup_name"`
	FounderName  string      `json:"founder_name"`
	FounderEmail string      `json:"founder_email"`
	CompanyStage string      `json:"company_stage"`
	Sectors      []string    `json:"sectors"`
	Status       stage.Stage `json:"status"`

	AIScore   *float64   `json:"ai_score,omitempty"`
	RiskLevel risk.Level `json:"risk_level"`
	RiskScore float64    `json:"risk_score"`
	FlagCount int        `json:"flag_count"`

	CreatedAt   string `json:"created_at"`
	LastUpdated string `json:"last_updated"`

	HasMemo1 bool `json:"has_memo_1"`
	HasMemo2 bool `json:"has_memo_2"`
	HasMemo3 bool `json:"has_memo_3"`

	Memo1 record.Memo `json:"memo_1,omitempty"`
	Memo2 record.Memo `json:"memo_2,omitempty"`
	Memo3 record.Memo `json:"memo_3,omitempty"`

	OriginalFilename      string  `json:"original_filename,omitempty"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds,omitempty"`
}

// Builder builds Models from raw records.
type Builder struct {
	defaults Defaults
	scorer   *risk.Scorer
	now      func() time.Time
	logger   logger.Logger
}

// NewBuilder creates a Builder with configuration options.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		defaults: StandardDefaults(),
		scorer:   risk.NewScorer(),
		now:      time.Now,
		logger:   logger.Get().Named("view"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build assembles the model for a record. It never panics outward: any
// failure inside a sub-computation is recovered, logged, and replaced by
// the fallback model so callers always receive a renderable value.
func (b *Builder) Build(ctx context.Context, id string, rec record.RawRecord) (m Model) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error(ctx, "view build failed, serving fallback",
				logger.String("id", id),
				logger.Any("panic", r),
			)
			metrics.RecordViewFallback()
			m = b.Fallback(id)
		}
	}()

	metrics.RecordViewBuild()

	assessment := b.scorer.Score(rec)

	m = Model{
		ID:           id,
		StartupName:  b.text(rec, b.defaults.StartupName, "title", "company_name"),
		FounderName:  b.text(rec, b.defaults.FounderName, "founder_name"),
		FounderEmail: b.text(rec, b.defaults.FounderEmail, "founder_email"),
		CompanyStage: b.text(rec, b.defaults.CompanyStage, "company_stage"),
		Sectors:      b.sectors(rec),
		Status:       stage.Derive(rec),

		AIScore:   latestScore(rec),
		RiskLevel: assessment.Level,
		RiskScore: assessment.Score,
		FlagCount: assessment.Flags,

		CreatedAt:   b.timestamp(rec.CreatedAt, rec.Timestamp),
		LastUpdated: b.timestamp(rec.Timestamp, rec.CreatedAt),

		HasMemo1: rec.Memo1.Present(),
		HasMemo2: rec.Memo2.Present(),
		HasMemo3: rec.Memo3.Present(),

		Memo1: rec.Memo1,
		Memo2: rec.Memo2,
		Memo3: rec.Memo3,

		OriginalFilename:      rec.OriginalFilename,
		ProcessingTimeSeconds: rec.ProcessingTimeSeconds,
	}

	// Explicit override wins over the derived stage.
	if rec.Sent {
		m.Status = stage.Sent
	}
	return m
}

// Fallback returns the minimal safe model served when a build fails.
func (b *Builder) Fallback(id string) Model {
	now := b.now().UTC().Format(time.RFC3339)
	return Model{
		ID:           id,
		StartupName:  b.defaults.StartupName,
		FounderName:  b.defaults.FounderName,
		CompanyStage: b.defaults.CompanyStage,
		Sectors:      append([]string(nil), b.defaults.Sectors...),
		Status:       stage.Intake,
		RiskLevel:    risk.Medium,
		CreatedAt:    now,
		LastUpdated:  now,
	}
}

// text extracts a display field with latest-stage-wins precedence, falling
// back to the named default.
func (b *Builder) text(rec record.RawRecord, def string, keys ...string) string {
	for _, m := range rec.Memos() {
		if s, ok := m.Text(keys...); ok {
			return s
		}
	}
	return def
}

// sectors extracts the industry category, which upstream writes either as a
// single string or a list. The result is always non-empty.
func (b *Builder) sectors(rec record.RawRecord) []string {
	for _, m := range rec.Memos() {
		if ss := m.Strings("industry_category"); len(ss) > 0 {
			return ss
		}
		if s, ok := m.Text("industry_category"); ok {
			return []string{s}
		}
	}
	return append([]string(nil), b.defaults.Sectors...)
}

// timestamp normalizes the preferred upstream time value to RFC3339, trying
// the alternate before falling back to build time on malformed input.
func (b *Builder) timestamp(preferred, alternate string) string {
	for _, v := range []string{preferred, alternate} {
		if v == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			return t.UTC().Format(time.RFC3339)
		}
	}
	return b.now().UTC().Format(time.RFC3339)
}

// latestScore returns the overall score from the latest memo carrying one.
// Unlike risk scoring there is no neutral default: an unscored deal has no
// AI score at all.
func latestScore(rec record.RawRecord) *float64 {
	for _, m := range rec.Memos() {
		if v, ok := m.Number("overall_score"); ok {
			return &v
		}
	}
	return nil
}
