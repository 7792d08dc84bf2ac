// Package confirm submits the entry form and decides whether the submission
// went through. A create form counts as submitted only once its identity
// probe (the trip-id input) is no longer visible.
//
// Three tiers run in order, each only if the previous one left the form open:
//
//  1. click    wait for the submit control to be visible and enabled, click it
//  2. enter    press Enter in the last filled field
//  3. native   submit the enclosing form directly, bypassing click handlers
package confirm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"manifestfill/internal/form"
	"manifestfill/internal/manifest"
	"manifestfill/internal/retry"
)

// Tier names one confirmation strategy.
type Tier string

const (
	TierClick  Tier = "click"
	TierEnter  Tier = "enter"
	TierNative Tier = "native"
)

// Config holds the confirmer's waits.
type Config struct {
	// ButtonTimeout bounds the wait for the submit control to become usable.
	ButtonTimeout time.Duration
	PollInterval  time.Duration
	// ClickSettle bounds the wait for the probe to vanish after the click.
	ClickSettle time.Duration
	// FallbackSettle bounds the same wait after the Enter and native tiers.
	FallbackSettle time.Duration
}

// DefaultConfig returns the timings the customs form needs.
func DefaultConfig() Config {
	return Config{
		ButtonTimeout:  12 * time.Second,
		PollInterval:   150 * time.Millisecond,
		ClickSettle:    1500 * time.Millisecond,
		FallbackSettle: 1200 * time.Millisecond,
	}
}

// Request names the controls a confirmation works on.
type Request struct {
	Submit form.Control
	// Probe stays visible while the entry surface is open.
	Probe form.Control
	// LastField receives the Enter key in the second tier.
	LastField form.Control
}

// Result describes a confirmation run.
type Result struct {
	Submitted bool
	// Tier closed the entry surface; empty when nothing did.
	Tier Tier
	// Attempted lists the tiers that ran, in order.
	Attempted []Tier
}

// Confirmer runs the tiered submission.
type Confirmer struct {
	cfg    Config
	logger *zap.Logger
}

// New creates a confirmer. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Confirmer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{cfg: cfg, logger: logger}
}

// Confirm submits the form and waits for the entry surface to close. It
// returns manifest.ErrSubmissionUnconfirmed when all tiers were exhausted and
// ctx.Err() when cancelled.
func (c *Confirmer) Confirm(ctx context.Context, req Request) (Result, error) {
	var res Result

	tiers := []struct {
		tier   Tier
		act    func(context.Context, Request) error
		settle time.Duration
	}{
		{TierClick, c.clickWhenReady, c.cfg.ClickSettle},
		{TierEnter, pressEnter, c.cfg.FallbackSettle},
		{TierNative, nativeSubmit, c.cfg.FallbackSettle},
	}

	for _, t := range tiers {
		res.Attempted = append(res.Attempted, t.tier)
		log := c.logger.With(zap.String("tier", string(t.tier)))

		settle := t.settle
		if err := t.act(ctx, req); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			log.Debug("Submission tier failed", zap.Error(err))
			// Nothing was clicked: check once and escalate without waiting.
			if errors.Is(err, errSubmitNotReady) {
				settle = 0
			}
		}

		closed, err := c.awaitClosed(ctx, req.Probe, settle)
		if err != nil {
			return res, err
		}
		if closed {
			res.Submitted = true
			res.Tier = t.tier
			log.Debug("Entry surface closed")
			return res, nil
		}
		log.Debug("Entry surface still open")
	}
	return res, manifest.ErrSubmissionUnconfirmed
}

var errSubmitNotReady = errors.New("submit control never became clickable")

// clickWhenReady polls until the submit control is visible and enabled, then
// clicks it. The control is scrolled into view on every poll since an
// off-screen button reports as not visible on some layouts.
func (c *Confirmer) clickWhenReady(ctx context.Context, req Request) error {
	_, err := retry.Until(ctx, c.cfg.PollInterval, c.cfg.ButtonTimeout, func(ctx context.Context) (bool, error) {
		_ = req.Submit.ScrollIntoView(ctx)
		visible, err := req.Submit.Visible(ctx)
		if err != nil || !visible {
			return false, err
		}
		enabled, err := req.Submit.Enabled(ctx)
		return err == nil && enabled, err
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errSubmitNotReady
	}
	if err := req.Submit.ScrollIntoView(ctx); err != nil {
		return fmt.Errorf("scroll submit: %w", err)
	}
	return req.Submit.Click(ctx)
}

func pressEnter(ctx context.Context, req Request) error {
	if req.LastField == nil {
		return errors.New("no last field")
	}
	return req.LastField.Press(ctx, form.KeyEnter)
}

func nativeSubmit(ctx context.Context, req Request) error {
	return req.Submit.SubmitForm(ctx)
}

// awaitClosed polls the probe until it is hidden or settle elapses. A probe
// error counts as still visible.
func (c *Confirmer) awaitClosed(ctx context.Context, probe form.Control, settle time.Duration) (bool, error) {
	res, err := retry.Until(ctx, c.cfg.PollInterval, settle, func(ctx context.Context) (bool, error) {
		visible, err := probe.Visible(ctx)
		if err != nil {
			return false, err
		}
		return !visible, nil
	})
	if err != nil && ctx.Err() != nil {
		return false, ctx.Err()
	}
	return res.Met, nil
}
