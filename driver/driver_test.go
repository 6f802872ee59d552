package driver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/medarchive/content-pipeline/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedStep returns its canned results in order, then panics if invoked
// past the end of the script.
type scriptedStep struct {
	mu      sync.Mutex
	script  []interfaces.StepResult
	errs    []error
	calls   int
	started chan struct{}
	release chan struct{}
}

func (s *scriptedStep) RunOnce(context.Context) (interfaces.StepResult, error) {
	s.mu.Lock()
	i := s.calls
	s.calls++
	s.mu.Unlock()

	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	var err error
	if s.errs != nil {
		err = s.errs[i]
	}
	return s.script[i], err
}

func (s *scriptedStep) invocations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestDriver(cfg Config, step interfaces.EnrichmentStep) (*Driver, *int) {
	d := New(cfg, step, testLogger())
	pauses := 0
	d.sleep = func(ctx context.Context, _ time.Duration) error {
		pauses++
		return ctx.Err()
	}
	return d, &pauses
}

func TestRunDrivesUntilNoMoreItems(t *testing.T) {
	step := &scriptedStep{script: []interfaces.StepResult{
		{MoreItems: true, Scanned: 25, Enriched: 24, Skipped: 1},
		{MoreItems: true, Scanned: 25, Enriched: 25},
		{MoreItems: false, Scanned: 10, Enriched: 10},
	}}

	d, pauses := newTestDriver(Config{}, step)

	total, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, step.invocations())
	assert.Equal(t, 2, *pauses, "one pause between each pair of invocations")
	assert.False(t, total.MoreItems)
	assert.Equal(t, 60, total.Scanned)
	assert.Equal(t, 59, total.Enriched)
	assert.Equal(t, 1, total.Skipped)
}

func TestRunStopsOnStepError(t *testing.T) {
	stepErr := errors.New("credentials rejected")
	step := &scriptedStep{
		script: []interfaces.StepResult{
			{MoreItems: true, Enriched: 5},
			{MoreItems: true, Enriched: 2},
		},
		errs: []error{nil, stepErr},
	}

	d, _ := newTestDriver(Config{}, step)

	total, err := d.Run(context.Background())
	require.ErrorIs(t, err, stepErr)
	assert.Equal(t, 2, step.invocations())
	assert.Equal(t, 7, total.Enriched, "work done before the failure is still reported")
}

func TestRunHonorsInvocationCap(t *testing.T) {
	step := &scriptedStep{script: []interfaces.StepResult{
		{MoreItems: true},
		{MoreItems: true},
	}}

	d, _ := newTestDriver(Config{MaxInvocations: 2}, step)

	total, err := d.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, step.invocations())
	assert.True(t, total.MoreItems, "remaining work must stay visible to the caller")
}

func TestRunStopsWhenContextCanceled(t *testing.T) {
	step := &scriptedStep{script: []interfaces.StepResult{
		{MoreItems: true},
		{MoreItems: true},
	}}

	d := New(Config{Pause: time.Minute}, step, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, step.invocations(), "the pause must notice cancellation")
}

func TestRunRejectsOverlappingInvocation(t *testing.T) {
	step := &scriptedStep{
		script:  []interfaces.StepResult{{MoreItems: false}},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}

	d, _ := newTestDriver(Config{}, step)

	done := make(chan error, 1)
	go func() {
		_, err := d.Run(context.Background())
		done <- err
	}()

	<-step.started // first loop is now mid-invocation

	_, err := d.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyRunning)

	close(step.release)
	require.NoError(t, <-done)

	// With the first loop finished the driver accepts work again.
	step.mu.Lock()
	step.calls = 0
	step.started = nil
	step.release = nil
	step.mu.Unlock()

	_, err = d.Run(context.Background())
	require.NoError(t, err)
}

func TestNewDefaultsPause(t *testing.T) {
	d := New(Config{}, &scriptedStep{}, testLogger())
	assert.Equal(t, time.Second, d.cfg.Pause)
}
