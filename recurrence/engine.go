package recurrence

import (
	"log/slog"
	"time"
)

// Engine ties parsing, horizon computation, reconciliation and serialization
// together. It holds no per-request state and is safe for concurrent use.
type Engine struct {
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates a new recurrence engine with DefaultEngineConfig
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

// Config returns the engine configuration
func (e *Engine) Config() EngineConfig {
	return e.config
}

// Parse parses rule text anchored on start
func (e *Engine) Parse(text string, start time.Time) (*ParsedRule, error) {
	loc := e.config.Location
	if !start.IsZero() || loc == nil {
		return Parse(text, start)
	}
	return ParseInLocation(text, start, loc)
}

// Horizon computes the expansion bounds for a multiplier
func (e *Engine) Horizon(multiplier int) (Horizon, error) {
	return e.config.Horizon.Compute(multiplier)
}

// Expand parses text, expands it within the multiplier's horizon and
// reconciles the stored exclusions found in the text.
func (e *Engine) Expand(text string, start time.Time, multiplier int) (*Result, *RuleSet, error) {
	h, err := e.Horizon(multiplier)
	if err != nil {
		return nil, nil, err
	}

	exp, err := e.Open(text, start)
	if err != nil {
		return nil, nil, err
	}

	result, err := exp.sweep.Advance(h)
	if err != nil {
		return nil, nil, err
	}
	return result, exp.Rules, nil
}

// Serialize renders rules and the chosen excluded instants as rule text
func (e *Engine) Serialize(rules *RuleSet, excluded []time.Time) string {
	text := Serialize(rules, excluded)
	e.logger.Debug("serialized rule",
		"rules", rules.Len(),
		"excluded", len(excluded))
	return text
}

// Expansion is an open, incrementally growing expansion of one rule text
type Expansion struct {
	Rules      *RuleSet
	Exclusions []time.Time

	engine *Engine
	sweep  *Sweep
	last   *Result
}

// Open parses text and prepares an expansion that can be grown with Expand
func (e *Engine) Open(text string, start time.Time) (*Expansion, error) {
	parsed, err := e.Parse(text, start)
	if err != nil {
		e.logger.Warn("failed to parse rule",
			"error", err)
		return nil, err
	}

	e.logger.Debug("opened expansion",
		"rules", parsed.Rules.Len(),
		"exclusions", len(parsed.Exclusions),
		"start", parsed.Rules.Start())

	return &Expansion{
		Rules:      parsed.Rules,
		Exclusions: parsed.Exclusions,
		engine:     e,
		sweep:      NewSweep(parsed.Rules.Iterator(), parsed.Exclusions),
	}, nil
}

// Expand grows the expansion to the multiplier's horizon. Occurrences already
// produced by an earlier call are kept, not generated again.
func (x *Expansion) Expand(multiplier int) (*Result, error) {
	h, err := x.engine.Horizon(multiplier)
	if err != nil {
		return nil, err
	}

	result, err := x.sweep.Advance(h)
	if err != nil {
		return nil, err
	}
	x.last = result

	x.engine.logger.Debug("expanded occurrences",
		"multiplier", multiplier,
		"count_limit", h.CountLimit,
		"date_limit", h.DateLimit,
		"occurrences", len(result.Occurrences),
		"matched", len(result.Matched),
		"unmatched", len(result.Unmatched),
		"out_of_range", len(result.OutOfRange))

	return result, nil
}

// Last returns the most recent result, or nil before the first Expand
func (x *Expansion) Last() *Result {
	return x.last
}
