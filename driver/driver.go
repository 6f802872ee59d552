// Package driver implements the re-invocation loop for bounded enrichment
// steps: invoke the step, read its more-items signal, pause briefly, invoke
// again, until the step reports that no work remains.
//
// The loop is strictly serial. The step itself performs no locking, so the
// driver's single-flight guarantee is what prevents two invocations from
// racing each other; an overlapping Run call is rejected outright. Even if
// the guarantee were violated, the worst outcome is duplicate field fetches
// (wasted quota), never store corruption, because every store write is a
// per-key, per-field upsert.
package driver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/medarchive/content-pipeline/interfaces"
	"go.uber.org/atomic"
)

// ErrAlreadyRunning is returned when Run is called while a previous drive
// loop is still in flight.
var ErrAlreadyRunning = errors.New("drive loop already in flight")

// Config bounds the drive loop.
type Config struct {
	// Pause is the wait between one invocation's completion and the next's
	// start. Defaults to one second.
	Pause time.Duration

	// MaxInvocations caps the number of step invocations as an operator
	// safety valve. Zero means no cap.
	MaxInvocations int
}

// Driver repeatedly invokes an enrichment step until it reports completion.
type Driver struct {
	cfg  Config
	step interfaces.EnrichmentStep
	log  *slog.Logger

	inFlight atomic.Bool

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a driver for the given step.
func New(cfg Config, step interfaces.EnrichmentStep, log *slog.Logger) *Driver {
	if cfg.Pause <= 0 {
		cfg.Pause = time.Second
	}
	return &Driver{
		cfg:  cfg,
		step: step,
		log:  log,
		sleep: func(ctx context.Context, d time.Duration) error {
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-timer.C:
				return nil
			}
		},
	}
}

// Run drives the step to completion, returning aggregated totals across all
// invocations. It stops when the step reports no more items, when the step
// fails, when the invocation cap is reached, or when the context is
// canceled. A failed or canceled loop is safe to re-run: abandoned work is
// re-selected by the step's own scan.
func (d *Driver) Run(ctx context.Context) (interfaces.StepResult, error) {
	if !d.inFlight.CompareAndSwap(false, true) {
		return interfaces.StepResult{}, ErrAlreadyRunning
	}
	defer d.inFlight.Store(false)

	var total interfaces.StepResult

	for invocation := 1; ; invocation++ {
		res, err := d.step.RunOnce(ctx)
		total.Scanned += res.Scanned
		total.Enriched += res.Enriched
		total.Skipped += res.Skipped
		total.MoreItems = res.MoreItems

		if err != nil {
			return total, err
		}

		d.log.Info("Step invocation finished",
			slog.Int("invocation", invocation),
			slog.Int("enriched", res.Enriched),
			slog.Int("skipped", res.Skipped),
			slog.Bool("more_items", res.MoreItems))

		if !res.MoreItems {
			return total, nil
		}
		if d.cfg.MaxInvocations > 0 && invocation >= d.cfg.MaxInvocations {
			d.log.Warn("Invocation cap reached with work remaining",
				slog.Int("cap", d.cfg.MaxInvocations))
			return total, nil
		}

		if err := d.sleep(ctx, d.cfg.Pause); err != nil {
			return total, err
		}
	}
}
