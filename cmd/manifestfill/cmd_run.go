package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"manifestfill/internal/browser"
	"manifestfill/internal/confirm"
	"manifestfill/internal/driver"
	"manifestfill/internal/form"
	"manifestfill/internal/logging"
	"manifestfill/internal/manifest"
	"manifestfill/internal/report"
	"manifestfill/internal/resolver"
)

var (
	batchFile  string
	reportPath string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register every record of a batch file",
	Long: `Loads the batch, connects to Chrome, waits for the entry form and registers
the records in order. A failing record never stops the batch. Ctrl-C stops after
the current record (bounded by timings.row_timeout) and still writes the report;
a second Ctrl-C exits at once.`,
	RunE: runBatch,
}

func runBatch(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	batch, err := manifest.ReadBatch(batchFile)
	if err != nil {
		return err
	}
	if dups := batch.DuplicatePorts(); len(dups) > 0 {
		logger.Warn("Port codes listed more than once, using the first entry", zap.Strings("codes", dups))
	}
	records := batch.Joined()
	logger.Info("Batch loaded", zap.String("file", batchFile), zap.Int("records", len(records)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		// Restore default signal handling so a second interrupt kills the
		// process while the current record finishes.
		<-ctx.Done()
		stop()
	}()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	session := browser.NewSession(cfg.Browser, logs.For(logging.CategoryBrowser))
	if err := session.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Shutdown(); err != nil {
			logger.Warn("Browser shutdown failed", zap.Error(err))
		}
	}()

	rp, err := session.OpenPage(ctx, cfg.TargetURL)
	if err != nil {
		return err
	}
	page := browser.NewPage(rp, cfg.Selectors, cfg.Browser, logs.For(logging.CategoryBrowser))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Waiting for the entry form at %s (log in if needed)...\n", cfg.TargetURL)
	if err := page.WaitReady(ctx, cfg.GetReadyTimeout()); err != nil {
		return err
	}

	rep, runErr := executeBatch(ctx, out, page.Form(), page, records)
	if err := saveReport(out, rep); err != nil {
		return err
	}
	if runErr != nil {
		return fmt.Errorf("batch interrupted: %w", runErr)
	}
	if rep.Summary.Failed > 0 {
		return fmt.Errorf("%d of %d records failed", rep.Summary.Failed, rep.Summary.Total)
	}
	return nil
}

// executeBatch runs the driver over f and builds the report. The returned
// error is non-nil only when the run was interrupted.
func executeBatch(ctx context.Context, out io.Writer, f form.Form, snap form.Snapshotter, records []manifest.Record) (*report.RunReport, error) {
	runID := uuid.NewString()
	started := time.Now()

	opts := []driver.Option{
		driver.WithRunID(runID),
		driver.WithObserver(&progress{out: out}),
	}
	if snap != nil {
		opts = append(opts, driver.WithSnapshotter(snap))
	}
	d := driver.New(cfg.DriverConfig(), f,
		resolver.New(cfg.ResolverConfig(), logs.For(logging.CategoryResolver)),
		confirm.New(cfg.ConfirmConfig(), logs.For(logging.CategoryConfirm)),
		logs.For(logging.CategoryDriver),
		opts...)

	outcomes, err := d.Run(ctx, records)

	rep := report.Build(runID, len(records), outcomes)
	rep.TargetURL = cfg.TargetURL
	rep.BatchFile = batchFile
	rep.StartedAt = started
	rep.FinishedAt = time.Now()
	rep.Finalize()
	return rep, err
}

func saveReport(out io.Writer, rep *report.RunReport) error {
	path := reportPath
	if path == "" {
		path = cfg.ReportPath(rep.StartedAt)
	}
	if err := rep.Save(path); err != nil {
		return err
	}
	logs.For(logging.CategoryReport).Info("Report written", zap.String("path", path), zap.String("run_id", rep.RunID))

	fmt.Fprintln(out)
	fmt.Fprint(out, report.Render(rep))
	fmt.Fprintf(out, "\nReport: %s\n", path)
	return nil
}

// progress prints one line per finished record.
type progress struct {
	out io.Writer
}

func (p *progress) OnRowStart(int, int, manifest.Record) {}

func (p *progress) OnRowDone(idx, total int, o manifest.Outcome) {
	fmt.Fprintln(p.out, report.RowLine(idx, total, o))
}
