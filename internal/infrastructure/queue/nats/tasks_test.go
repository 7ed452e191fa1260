package nats

import (
	"errors"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/voronkovm/diagramflow/internal/core/domain"
)

func TestDecodeEnvelope(t *testing.T) {
	envelope, ok := decodeEnvelope([]byte(`{"id":"doc-1","attempt":3}`))
	if !ok {
		t.Fatalf("expected valid envelope")
	}
	if envelope.ID != "doc-1" || envelope.Attempt != 3 {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestDecodeEnvelopeDefaultsAttempt(t *testing.T) {
	envelope, ok := decodeEnvelope([]byte(`{"id":"doc-1"}`))
	if !ok {
		t.Fatalf("expected valid envelope")
	}
	if envelope.Attempt != 1 {
		t.Fatalf("attempt = %d, want default 1", envelope.Attempt)
	}
}

func TestDecodeEnvelopeRejectsMalformedPayloads(t *testing.T) {
	for _, raw := range []string{"", "doc-1", `{"attempt":2}`, `{"id":""}`} {
		if _, ok := decodeEnvelope([]byte(raw)); ok {
			t.Fatalf("expected rejection of %q", raw)
		}
	}
}

func TestShouldRedeliverOnlyTemporaryBelowLimit(t *testing.T) {
	temporary := domain.WrapError(domain.ErrTemporary, "analyze", errors.New("connection reset"))
	terminal := domain.WrapError(domain.ErrInvalidInput, "analyze", errors.New("empty"))

	if !shouldRedeliver(temporary, 1, 5) {
		t.Fatalf("temporary failure below the limit must redeliver")
	}
	if shouldRedeliver(temporary, 5, 5) {
		t.Fatalf("attempt at the limit must settle")
	}
	if shouldRedeliver(terminal, 1, 5) {
		t.Fatalf("terminal failure must not redeliver")
	}
}

func TestWrapTemporaryIfNeededPreservesTerminalErrors(t *testing.T) {
	permanent := errors.New("subject not permitted")
	if got := wrapTemporaryIfNeeded(permanent); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("permanent error should stay permanent, got %v", got)
	}
	if got := wrapTemporaryIfNeeded(nil); got != nil {
		t.Fatalf("nil must stay nil, got %v", got)
	}
}

func TestWrapTemporaryIfNeededTagsConnectionFailures(t *testing.T) {
	err := wrapTemporaryIfNeeded(nats.ErrConnectionClosed)
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("connection failure should carry the temporary kind, got %v", err)
	}
}
