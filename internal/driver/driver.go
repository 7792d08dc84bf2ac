// Package driver registers manifest records through the entry form, one
// record at a time, and turns every record into exactly one Outcome.
//
// Per record the driver walks
//
//	idle -> surface_open -> fields_populated -> submission_requested -> confirmed | unconfirmed
//
// and any error or panic along the way fails that record only.
package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"manifestfill/internal/confirm"
	"manifestfill/internal/diagnose"
	"manifestfill/internal/form"
	"manifestfill/internal/manifest"
	"manifestfill/internal/resolver"
	"manifestfill/internal/retry"
)

// State is a step of the per-record state machine.
type State string

const (
	StateIdle                State = "idle"
	StateSurfaceOpen         State = "surface_open"
	StateFieldsPopulated     State = "fields_populated"
	StateSubmissionRequested State = "submission_requested"
	StateConfirmed           State = "confirmed"
	StateUnconfirmed         State = "unconfirmed"
)

// FieldResolver settles one autocomplete field.
type FieldResolver interface {
	Resolve(ctx context.Context, field string, target form.Target, query string, policy resolver.Policy) (manifest.Resolution, error)
}

// SubmitConfirmer submits the form and confirms it closed.
type SubmitConfirmer interface {
	Confirm(ctx context.Context, req confirm.Request) (confirm.Result, error)
}

// Observer receives per-row progress. Calls happen on the driver goroutine.
type Observer interface {
	OnRowStart(idx, total int, rec manifest.Record)
	OnRowDone(idx, total int, out manifest.Outcome)
}

// Config holds the driver's sentinels and waits.
type Config struct {
	Sentinels manifest.Sentinels

	// OpenTimeout bounds the wait for the identity probe after the open trigger.
	OpenTimeout  time.Duration
	OpenSettle   time.Duration
	FieldSettle  time.Duration
	PollInterval time.Duration
	// SnapshotTimeout bounds the failure diagnostics capture.
	SnapshotTimeout time.Duration
	// RowTimeout bounds one record. A record already started is not cut
	// short by cancelling the batch context, only by this bound. Zero means
	// no bound.
	RowTimeout time.Duration
}

// DefaultConfig returns the timings the customs form needs.
func DefaultConfig() Config {
	return Config{
		Sentinels:       manifest.DefaultSentinels(),
		OpenTimeout:     20 * time.Second,
		OpenSettle:      400 * time.Millisecond,
		FieldSettle:     200 * time.Millisecond,
		PollInterval:    150 * time.Millisecond,
		SnapshotTimeout: 3 * time.Second,
		RowTimeout:      2 * time.Minute,
	}
}

// Driver owns the form for the duration of a batch.
type Driver struct {
	cfg       Config
	form      form.Form
	resolver  FieldResolver
	confirmer SubmitConfirmer
	logger    *zap.Logger

	observer    Observer
	snapshotter form.Snapshotter
	runID       string
}

// Option customizes a Driver.
type Option func(*Driver)

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option {
	return func(d *Driver) { d.observer = o }
}

// WithSnapshotter enables validation-message capture on failed rows.
func WithSnapshotter(s form.Snapshotter) Option {
	return func(d *Driver) { d.snapshotter = s }
}

// WithRunID tags the batch logs with id instead of a fresh UUID.
func WithRunID(id string) Option {
	return func(d *Driver) { d.runID = id }
}

// New creates a driver over f. A nil logger disables logging.
func New(cfg Config, f form.Form, r FieldResolver, c SubmitConfirmer, logger *zap.Logger, opts ...Option) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Driver{
		cfg:       cfg,
		form:      f,
		resolver:  r,
		confirmer: c,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run processes records in order and returns their outcomes in the same
// order. A failed record never stops the batch; a cancelled ctx does. The
// record in progress is finished first, then the outcomes gathered so far
// are returned with ctx.Err().
func (d *Driver) Run(ctx context.Context, records []manifest.Record) ([]manifest.Outcome, error) {
	runID := d.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := d.logger.With(zap.String("run_id", runID))
	log.Info("Batch started", zap.Int("records", len(records)))

	outcomes := make([]manifest.Outcome, 0, len(records))
	failed := 0
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			log.Warn("Batch interrupted", zap.Int("processed", i), zap.Error(err))
			return outcomes, err
		}
		if d.observer != nil {
			d.observer.OnRowStart(i, len(records), rec)
		}

		out := d.processDetached(ctx, rec)
		outcomes = append(outcomes, out)
		if !out.OK() {
			failed++
		}

		if d.observer != nil {
			d.observer.OnRowDone(i, len(records), out)
		}
	}
	log.Info("Batch finished", zap.Int("submitted", len(outcomes)-failed), zap.Int("failed", failed))
	return outcomes, nil
}

// processDetached runs one record under a context that ignores the batch
// cancellation, so an interrupt never leaves a half-filled entry surface.
func (d *Driver) processDetached(ctx context.Context, rec manifest.Record) manifest.Outcome {
	rowCtx := context.WithoutCancel(ctx)
	if d.cfg.RowTimeout > 0 {
		var cancel context.CancelFunc
		rowCtx, cancel = context.WithTimeout(rowCtx, d.cfg.RowTimeout)
		defer cancel()
	}
	return d.Process(rowCtx, rec)
}

// Process registers a single record. It always returns an Outcome.
func (d *Driver) Process(ctx context.Context, rec manifest.Record) (out manifest.Outcome) {
	start := time.Now()
	rec = rec.Normalize(d.cfg.Sentinels)
	log := d.logger.With(zap.Int("row", rec.Row), zap.String("trip_id", rec.TripID))

	var resolutions []manifest.Resolution
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %v", manifest.ErrRowPanic, p)
			log.Error("Row panicked", zap.Error(err))
			out = manifest.Failed(rec, err, resolutions, time.Since(start))
		}
	}()

	log.Debug("Row started",
		zap.String("port_code", rec.PortCode),
		zap.String("country", rec.Country),
		zap.String("place", rec.Place))

	tier, err := d.process(ctx, log, rec, &resolutions)
	if err != nil {
		err = d.diagnose(ctx, log, err)
		log.Warn("Row failed", zap.Error(err))
		return manifest.Failed(rec, err, resolutions, time.Since(start))
	}
	out = manifest.Submitted(rec, string(tier), resolutions, time.Since(start))
	if out.LowConfidence() {
		log.Warn("Row submitted with a blind suggestion selection", zap.Any("resolutions", resolutions))
	} else {
		log.Info("Row submitted", zap.String("tier", string(tier)))
	}
	return out
}

func (d *Driver) process(ctx context.Context, log *zap.Logger, rec manifest.Record, resolutions *[]manifest.Resolution) (confirm.Tier, error) {
	state := StateIdle
	step := func(next State) {
		log.Debug("Row state", zap.String("from", string(state)), zap.String("to", string(next)))
		state = next
	}

	if err := d.openSurface(ctx); err != nil {
		return "", err
	}
	step(StateSurfaceOpen)

	if err := d.populate(ctx, rec, resolutions); err != nil {
		return "", fmt.Errorf("populate fields: %w", err)
	}
	step(StateFieldsPopulated)

	// Leaving the last field fires its change/blur validation.
	if err := d.form.Date.Press(ctx, form.KeyTab); err != nil {
		return "", fmt.Errorf("leave %s: %w", d.form.Date.Name(), err)
	}
	if err := retry.Settle(ctx, d.cfg.FieldSettle); err != nil {
		return "", err
	}
	step(StateSubmissionRequested)

	res, err := d.confirmer.Confirm(ctx, confirm.Request{
		Submit:    d.form.Submit,
		Probe:     d.form.TripID,
		LastField: d.form.Date,
	})
	if err != nil {
		step(StateUnconfirmed)
		return "", err
	}
	step(StateConfirmed)
	return res.Tier, nil
}

func (d *Driver) openSurface(ctx context.Context) error {
	if err := d.form.Open.Click(ctx); err != nil {
		return fmt.Errorf("open entry surface: %w", err)
	}
	_, err := retry.Until(ctx, d.cfg.PollInterval, d.cfg.OpenTimeout, func(ctx context.Context) (bool, error) {
		return d.form.TripID.Visible(ctx)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w within %s", manifest.ErrEntrySurfaceTimeout, d.cfg.OpenTimeout)
	}
	return retry.Settle(ctx, d.cfg.OpenSettle)
}

// populate fills the form in the order the page expects. Country is resolved
// before the port code because the chosen country narrows the codes offered.
func (d *Driver) populate(ctx context.Context, rec manifest.Record, resolutions *[]manifest.Resolution) error {
	f := d.form
	if err := clearAndType(ctx, f.TripID, rec.TripID); err != nil {
		return err
	}
	if err := fill(ctx, f.ParentTitle, rec.ParentTitle); err != nil {
		return err
	}
	if err := fill(ctx, f.Vessel, rec.Vessel); err != nil {
		return err
	}

	res, err := d.resolver.Resolve(ctx, "country", f.Country, rec.Country, resolver.PolicyExact)
	*resolutions = append(*resolutions, res)
	if err != nil {
		return err
	}
	if err := retry.Settle(ctx, d.cfg.FieldSettle); err != nil {
		return err
	}

	if err := fill(ctx, f.Place, rec.Place); err != nil {
		return err
	}

	res, err = d.resolver.Resolve(ctx, "port_code", f.PortCode, rec.PortCode, resolver.PolicyPrefix)
	*resolutions = append(*resolutions, res)
	if err != nil {
		return err
	}

	return clearAndType(ctx, f.Date, rec.Date)
}

func clearAndType(ctx context.Context, c form.Control, text string) error {
	if err := c.Clear(ctx); err != nil {
		return fmt.Errorf("clear %s: %w", c.Name(), err)
	}
	if text == "" {
		return nil
	}
	if err := c.Type(ctx, text); err != nil {
		return fmt.Errorf("type into %s: %w", c.Name(), err)
	}
	return nil
}

func fill(ctx context.Context, c form.Control, text string) error {
	if err := c.Fill(ctx, text); err != nil {
		return fmt.Errorf("fill %s: %w", c.Name(), err)
	}
	return nil
}

// diagnose appends the validation messages shown by the form to err.
func (d *Driver) diagnose(ctx context.Context, log *zap.Logger, err error) error {
	if d.snapshotter == nil || ctx.Err() != nil {
		return err
	}
	snapCtx, cancel := context.WithTimeout(ctx, d.cfg.SnapshotTimeout)
	defer cancel()

	html, snapErr := d.snapshotter.Snapshot(snapCtx)
	if snapErr != nil {
		log.Debug("Form snapshot failed", zap.Error(snapErr))
		return err
	}
	msgs, parseErr := diagnose.Messages(html)
	if parseErr != nil {
		log.Debug("Form snapshot unreadable", zap.Error(parseErr))
		return err
	}
	if len(msgs) == 0 {
		return err
	}
	return fmt.Errorf("%w [form: %s]", err, strings.Join(msgs, "; "))
}
