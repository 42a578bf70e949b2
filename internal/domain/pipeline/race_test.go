package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRaceStageWinner(t *testing.T) {
	text, err := raceStage(context.Background(), time.Second, func(ctx context.Context) (string, error) {
		return "fast", nil
	}, nil)
	if err != nil || text != "fast" {
		t.Fatalf("got %q / %v", text, err)
	}
}

func TestRaceStageTimeoutCancelsWork(t *testing.T) {
	cancelled := make(chan struct{})
	_, err := raceStage(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		<-ctx.Done()
		close(cancelled)
		return "", ctx.Err()
	}, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	select {
	case <-cancelled:
	case <-time.After(2 * time.Second):
		t.Fatalf("stage context was never cancelled")
	}
}

func TestRaceStageLateResultDelivered(t *testing.T) {
	late := make(chan string, 1)
	_, err := raceStage(context.Background(), 20*time.Millisecond, func(ctx context.Context) (string, error) {
		time.Sleep(80 * time.Millisecond)
		return "straggler", nil
	}, func(text string, lateErr error) {
		late <- text
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected timeout, got %v", err)
	}
	select {
	case text := <-late:
		if text != "straggler" {
			t.Fatalf("unexpected late text %q", text)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("late result never surfaced")
	}
}

func TestRaceStageParentCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, err := raceStage(ctx, time.Minute, func(stageCtx context.Context) (string, error) {
		<-stageCtx.Done()
		return "", stageCtx.Err()
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}

func TestCleanTranscription(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello  ", "hello"},
		{"[BLANK_AUDIO]", ""},
		{"(music)", ""},
		{"[anything]", ""},
		{"(whatever)", ""},
		{"", ""},
		{"real (parenthetical) text", "real (parenthetical) text"},
		{"a", "a"},
	}
	for _, tc := range tests {
		if got := cleanTranscription(tc.in); got != tc.want {
			t.Fatalf("cleanTranscription(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
