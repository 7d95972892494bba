package recurrence

import (
	"io"
	"log/slog"
	"time"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Horizon bounds every expansion
	Horizon HorizonPolicy

	// Location resolves floating times in rule text when the start instant has none
	Location *time.Location
}

// DefaultHorizonPolicy grows by 128 occurrences and 4 months per "show more"
var DefaultHorizonPolicy = HorizonPolicy{
	BaseCount: 1024,  // Initial occurrence limit
	CountStep: 128,   // Occurrences added per page
	MaxCount:  64000, // Absolute cap against runaway rules
	MonthStep: 4,     // Months added to the date limit per page
}

// FixedHorizonPolicy never grows past the first page
var FixedHorizonPolicy = HorizonPolicy{
	BaseCount: 1024,
	CountStep: 128,
	MaxCount:  64000,
	MonthStep: 4,
	Fixed:     true,
}

// DefaultEngineConfig provides sensible defaults for interactive editing
var DefaultEngineConfig = EngineConfig{
	Horizon: DefaultHorizonPolicy,
}

// FixedEngineConfig is for call sites that render a single page of occurrences
var FixedEngineConfig = EngineConfig{
	Horizon: FixedHorizonPolicy,
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger for the engine
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
