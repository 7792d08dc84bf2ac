// Package resolver settles autocomplete inputs: it types a query into the
// control and picks one entry of the suggestion list that opens in response.
//
// Matching is tiered and the first tier that selects something wins:
//
//	exact     normalized label equals the query (country fields)
//	prefix    normalized label starts with the query (code fields)
//	sentinel  the unknown-code sentinel picks an "other" entry
//	last      ArrowDown + Enter on the input, picking whatever is first
//
// The last tier never fails; it is reported as ModeLastResort so callers can
// flag the row for review.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"manifestfill/internal/form"
	"manifestfill/internal/manifest"
	"manifestfill/internal/retry"
)

// Policy selects the matching tier used before the fallbacks.
type Policy int

const (
	PolicyExact Policy = iota
	PolicyPrefix
)

func (p Policy) String() string {
	switch p {
	case PolicyExact:
		return "exact"
	case PolicyPrefix:
		return "prefix"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Resolution modes.
const (
	ModeSkipped    = "skipped"
	ModeExact      = "exact"
	ModePrefix     = "prefix"
	ModeSentinel   = "sentinel"
	ModeLastResort = manifest.LastResortMode
)

// Config holds the resolver's sentinels and waits.
type Config struct {
	Sentinels manifest.Sentinels

	// ListSettle is the fixed pause after typing.
	ListSettle time.Duration
	// ListWait bounds the extra polling for a list that is still empty
	// after ListSettle.
	ListWait     time.Duration
	PollInterval time.Duration
	// FallbackSettle is the pause after the last-resort key presses.
	FallbackSettle time.Duration
}

// DefaultConfig returns the timings the customs form needs.
func DefaultConfig() Config {
	return Config{
		Sentinels:      manifest.DefaultSentinels(),
		ListSettle:     300 * time.Millisecond,
		ListWait:       700 * time.Millisecond,
		PollInterval:   50 * time.Millisecond,
		FallbackSettle: 150 * time.Millisecond,
	}
}

// Resolver implements the tiered suggestion selection.
type Resolver struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a resolver. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{cfg: cfg, logger: logger}
}

// Resolve types query into target and selects a suggestion. An empty query
// leaves the control untouched. The returned error covers only failures to
// drive the input itself and context cancellation; an unmatched query still
// ends in a last-resort selection.
func (r *Resolver) Resolve(ctx context.Context, field string, target form.Target, query string, policy Policy) (manifest.Resolution, error) {
	query = strings.TrimSpace(query)
	res := manifest.Resolution{Field: field, Query: query, Mode: ModeSkipped}
	if query == "" {
		return res, nil
	}
	if policy == PolicyPrefix {
		query = strings.ToUpper(query)
		res.Query = query
	}
	log := r.logger.With(zap.String("field", field), zap.String("query", query), zap.Stringer("policy", policy))

	if err := r.enter(ctx, target.Input, query); err != nil {
		return res, fmt.Errorf("%s: %w", field, err)
	}
	if err := r.awaitList(ctx, log, target.List); err != nil {
		return res, fmt.Errorf("%s: %w", field, err)
	}

	switch policy {
	case PolicyExact:
		if label, ok := r.tryPick(ctx, log, target.List, func(s []form.Suggestion) (form.Suggestion, bool) {
			return matchExact(s, query)
		}); ok {
			res.Mode, res.Label = ModeExact, label
			return res, nil
		}
	case PolicyPrefix:
		if label, ok := r.tryPick(ctx, log, target.List, func(s []form.Suggestion) (form.Suggestion, bool) {
			return matchPrefix(s, query)
		}); ok {
			res.Mode, res.Label = ModePrefix, label
			return res, nil
		}
		if query == manifest.PortKey(r.cfg.Sentinels.UnknownCode) {
			if label, ok := r.tryPick(ctx, log, target.List, func(s []form.Suggestion) (form.Suggestion, bool) {
				return matchToken(s, r.cfg.Sentinels.OtherTokens)
			}); ok {
				res.Mode, res.Label = ModeSentinel, label
				return res, nil
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	log.Warn("No suggestion matched, selecting first entry")
	if err := r.lastResort(ctx, target.Input); err != nil {
		return res, fmt.Errorf("%s: last resort: %w", field, err)
	}
	res.Mode = ModeLastResort
	return res, nil
}

func (r *Resolver) enter(ctx context.Context, input form.Control, query string) error {
	if err := input.Click(ctx); err != nil {
		return fmt.Errorf("focus %s: %w", input.Name(), err)
	}
	if err := input.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", input.Name(), err)
	}
	if err := input.Type(ctx, query); err != nil {
		return fmt.Errorf("type into %s: %w", input.Name(), err)
	}
	return nil
}

// awaitList pauses for the list to populate, then polls briefly while it is
// still empty. An empty list is not an error.
func (r *Resolver) awaitList(ctx context.Context, log *zap.Logger, list form.SuggestionList) error {
	if err := retry.Settle(ctx, r.cfg.ListSettle); err != nil {
		return err
	}
	res, err := retry.Until(ctx, r.cfg.PollInterval, r.cfg.ListWait, func(ctx context.Context) (bool, error) {
		p := list.Suggestions(ctx)
		return len(p.Suggestions) > 0, p.Err
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if !res.Met {
		log.Debug("Suggestion list stayed empty", zap.Int("polls", res.Attempts), zap.NamedError("probe_error", res.LastErr))
	}
	return nil
}

// tryPick probes the list, applies match and picks the winner. Probe and
// pick errors are logged and count as no match.
func (r *Resolver) tryPick(ctx context.Context, log *zap.Logger, list form.SuggestionList, match func([]form.Suggestion) (form.Suggestion, bool)) (string, bool) {
	if ctx.Err() != nil {
		return "", false
	}
	p := list.Suggestions(ctx)
	if !p.OK() {
		log.Debug("Suggestion probe failed", zap.Error(p.Err))
		return "", false
	}
	s, ok := match(p.Suggestions)
	if !ok {
		return "", false
	}
	if err := s.Pick(ctx); err != nil {
		log.Debug("Suggestion pick failed", zap.String("label", s.Label), zap.Error(err))
		return "", false
	}
	log.Debug("Suggestion selected", zap.String("label", s.Label), zap.Int("index", s.Index))
	return s.Label, true
}

func (r *Resolver) lastResort(ctx context.Context, input form.Control) error {
	if err := input.Press(ctx, form.KeyArrowDown); err != nil {
		return err
	}
	if err := input.Press(ctx, form.KeyEnter); err != nil {
		return err
	}
	return retry.Settle(ctx, r.cfg.FallbackSettle)
}

// normalize collapses inner whitespace, trims and upper-cases s.
func normalize(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

func matchExact(list []form.Suggestion, query string) (form.Suggestion, bool) {
	want := normalize(query)
	for _, s := range list {
		if normalize(s.Label) == want {
			return s, true
		}
	}
	return form.Suggestion{}, false
}

func matchPrefix(list []form.Suggestion, query string) (form.Suggestion, bool) {
	want := normalize(query)
	for _, s := range list {
		if strings.HasPrefix(normalize(s.Label), want) {
			return s, true
		}
	}
	return form.Suggestion{}, false
}

func matchToken(list []form.Suggestion, tokens []string) (form.Suggestion, bool) {
	for _, s := range list {
		label := normalize(s.Label)
		for _, tok := range tokens {
			tok = normalize(tok)
			if tok != "" && strings.Contains(label, tok) {
				return s, true
			}
		}
	}
	return form.Suggestion{}, false
}
