package pipeline

import (
	"context"
	"time"
)

type stageResult struct {
	text string
	err  error
}

// raceStage runs fn against a ceiling and returns whichever finishes first.
// On timeout the stage context is cancelled as a best-effort interrupt, but
// the pipeline does not wait: the underlying call may keep running, and its
// eventual result is handed to onLate and dropped. The result channel is
// buffered so the loser's send never leaks a goroutine.
func raceStage(ctx context.Context, timeout time.Duration, fn func(context.Context) (string, error), onLate func(string, error)) (string, error) {
	stageCtx, cancel := context.WithCancel(ctx)

	done := make(chan stageResult, 1)
	go func() {
		text, err := fn(stageCtx)
		done <- stageResult{text: text, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		cancel()
		return res.text, res.err
	case <-timer.C:
		cancel()
		drainLate(done, onLate)
		return "", context.DeadlineExceeded
	case <-ctx.Done():
		cancel()
		drainLate(done, onLate)
		return "", ctx.Err()
	}
}

func drainLate(done <-chan stageResult, onLate func(string, error)) {
	go func() {
		res := <-done
		if onLate != nil {
			onLate(res.text, res.err)
		}
	}()
}
