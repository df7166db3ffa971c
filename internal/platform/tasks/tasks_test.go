package tasks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"resource-api/internal/platform/logger"
)

func TestRunnerSurvivesPanicsAndErrors(t *testing.T) {
	r := NewRunner(logger.Nop(), time.Second)

	var done atomic.Int32
	r.Go(context.Background(), "panic", func(ctx context.Context) error {
		defer done.Add(1)
		panic("boom")
	})
	r.Go(context.Background(), "error", func(ctx context.Context) error {
		defer done.Add(1)
		return errors.New("fail")
	})
	r.Wait()

	if done.Load() != 2 {
		t.Fatalf("expected 2 finished tasks, got %d", done.Load())
	}
}

func TestRunnerDetachesFromParentCancel(t *testing.T) {
	r := NewRunner(logger.Nop(), time.Second)

	parent, cancel := context.WithCancel(context.Background())
	cancel()

	var ctxErr error
	r.Go(parent, "detached", func(ctx context.Context) error {
		ctxErr = ctx.Err()
		return nil
	})
	r.Wait()

	if ctxErr != nil {
		t.Fatalf("task context should not inherit cancellation, got %v", ctxErr)
	}
}
