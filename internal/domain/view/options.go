package view

import (
	"time"

	"github.com/venturelens/dealflow/internal/domain/risk"
	"github.com/venturelens/dealflow/pkg/logger"
)

// Defaults is the explicit defaulting policy applied when no memo stage
// carries a display field. Keeping it in one table, rather than scattering
// fallbacks through the extraction code, lets tests assert on it directly.
type Defaults struct {
	StartupName  string
	FounderName  string
	FounderEmail string
	CompanyStage string
	Sectors      []string
}

// StandardDefaults returns the stock defaulting policy.
func StandardDefaults() Defaults {
	return Defaults{
		StartupName:  "Unknown Company",
		FounderName:  "Unknown Founder",
		FounderEmail: "",
		CompanyStage: "Unknown",
		Sectors:      []string{"Technology"},
	}
}

// Option applies a configuration option to the Builder.
type Option func(*Builder)

// WithDefaults replaces the defaulting policy. Empty fields keep the
// standard values so partial overrides compose.
func WithDefaults(d Defaults) Option {
	return func(b *Builder) {
		std := StandardDefaults()
		if d.StartupName == "" {
			d.StartupName = std.StartupName
		}
		if d.FounderName == "" {
			d.FounderName = std.FounderName
		}
		if d.CompanyStage == "" {
			d.CompanyStage = std.CompanyStage
		}
		if len(d.Sectors) == 0 {
			d.Sectors = std.Sectors
		}
		b.defaults = d
	}
}

// WithScorer sets the risk scorer used during builds.
func WithScorer(s *risk.Scorer) Option {
	return func(b *Builder) {
		if s != nil {
			b.scorer = s
		}
	}
}

// WithClock sets the time source used for fallback timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// WithLogger sets a custom logger for the builder.
func WithLogger(l logger.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}
