package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestWrapPreservesExistingKind(t *testing.T) {
	inner := New(KindTranscription, "engine.transcribe", "decode failed")
	outer := Wrap(KindUnknown, "pipeline.run", "stage 1", inner)

	if outer.Kind != KindTranscription {
		t.Fatalf("expected inner kind to survive wrapping, got %q", outer.Kind)
	}
}

func TestWrapNilReturnsNil(t *testing.T) {
	if err := Wrap(KindStorage, "history.save", "insert", nil); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestIsKindWalksChain(t *testing.T) {
	base := New(KindPermission, "capture.open", "mic access denied")
	wrapped := stderrors.Join(stderrors.New("outer"), base)

	if !IsKind(wrapped, KindPermission) {
		t.Fatalf("expected permission kind in chain")
	}
	if IsKind(wrapped, KindRefinement) {
		t.Fatalf("did not expect refinement kind")
	}
	if IsKind(nil, KindPermission) {
		t.Fatalf("nil error should never match a kind")
	}
}

func TestErrorFormatting(t *testing.T) {
	err := Wrap(KindTranscription, "engine.transcribe", "request failed", stderrors.New("boom"))
	msg := err.Error()
	for _, want := range []string{"transcription", "engine.transcribe", "boom"} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message %q missing %q", msg, want)
		}
	}
}
