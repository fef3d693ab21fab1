package workflow_test

import (
	"testing"

	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/workflow"
)

func TestFallback_BlankPrimaryTriggersRetryOnce(t *testing.T) {
	ctl := workflow.NewFormatFallback(domain.FormatCAMT)
	if got := ctl.Begin(); got != domain.FormatCAMT {
		t.Fatalf("expected primary format camt, got %s", got)
	}
	if ctl.State() != workflow.FallbackAwaitingPrimary {
		t.Fatalf("expected awaiting_primary, got %s", ctl.State())
	}

	res := ctl.Resolve(true)
	if !res.Retry || res.Format != domain.FormatMT940 {
		t.Fatalf("expected one-shot fallback to mt940, got %+v", res)
	}
	if ctl.State() != workflow.FallbackAwaitingFallback {
		t.Fatalf("expected awaiting_fallback, got %s", ctl.State())
	}

	// A second blank result must NOT trigger another retry.
	res = ctl.Resolve(true)
	if res.Retry {
		t.Fatal("fallback must be one-shot; got a second retry")
	}
	if ctl.State() != workflow.FallbackDone {
		t.Fatalf("expected done, got %s", ctl.State())
	}
}

func TestFallback_NonBlankGoesStraightToDone(t *testing.T) {
	ctl := workflow.NewFormatFallback(domain.FormatCAMT)
	ctl.Begin()

	res := ctl.Resolve(false)
	if res.Retry {
		t.Fatal("a non-blank document must not trigger fallback")
	}
	if ctl.State() != workflow.FallbackDone {
		t.Fatalf("expected done, got %s", ctl.State())
	}
}

func TestFallback_PreferredAlreadyLegacy(t *testing.T) {
	ctl := workflow.NewFormatFallback(domain.FormatMT940)
	if got := ctl.Begin(); got != domain.FormatMT940 {
		t.Fatalf("expected mt940, got %s", got)
	}

	// No further fallback exists when the configuration is already the
	// fallback format, even for a blank result.
	res := ctl.Resolve(true)
	if res.Retry {
		t.Fatal("expected no fallback from the legacy format")
	}
	if ctl.State() != workflow.FallbackDone {
		t.Fatalf("expected done, got %s", ctl.State())
	}
}

func TestFallback_SnapshotRoundTrip(t *testing.T) {
	snap := &workflow.Snapshot{}

	ctl := workflow.NewFormatFallback(domain.FormatCAMT)
	ctl.Begin()
	res := ctl.Resolve(true)
	if !res.Retry {
		t.Fatal("expected retry")
	}
	ctl.Apply(snap)

	if !snap.FallbackAttempted || snap.Format != domain.FormatMT940 {
		t.Fatalf("snapshot not updated: %+v", snap)
	}

	// Next turn: the controller restored from the snapshot is already
	// in the fallback attempt and resolves to done regardless.
	restored := workflow.RestoreFormatFallback(snap, domain.FormatCAMT)
	if restored.Format() != domain.FormatMT940 {
		t.Fatalf("expected restored format mt940, got %s", restored.Format())
	}
	if restored.State() != workflow.FallbackAwaitingFallback {
		t.Fatalf("expected awaiting_fallback, got %s", restored.State())
	}
	if res := restored.Resolve(true); res.Retry {
		t.Fatal("restored controller must not retry again")
	}
}

func TestFallback_DefaultPreferredIsCAMT(t *testing.T) {
	ctl := workflow.NewFormatFallback("")
	if got := ctl.Begin(); got != domain.FormatCAMT {
		t.Fatalf("expected default camt, got %s", got)
	}
}

func TestSnapshot_EncodeDecode(t *testing.T) {
	snap := &workflow.Snapshot{
		DialogBlob:        []byte("blob"),
		AwaitingChallenge: true,
		Format:            domain.FormatMT940,
		FallbackAttempted: true,
		LedgerAccountID:   "42",
		NumProcessed:      3,
		ImportMessages:    []string{"ok"},
	}

	data, err := snap.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := workflow.DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(got.DialogBlob) != "blob" || !got.AwaitingChallenge ||
		got.Format != domain.FormatMT940 || !got.FallbackAttempted ||
		got.LedgerAccountID != "42" || got.NumProcessed != 3 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
