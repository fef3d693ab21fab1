package workflow

import "github.com/bankimport/fints-firefly-go/internal/domain"

// FallbackState is the position of the format fallback state machine.
type FallbackState string

const (
	FallbackInitial          FallbackState = "initial"
	FallbackAwaitingPrimary  FallbackState = "awaiting_primary"
	FallbackAwaitingFallback FallbackState = "awaiting_fallback"
	FallbackDone             FallbackState = "done"
)

// FormatFallbackController decides which statement format to request
// and whether an empty result warrants the one-shot retry in the legacy
// format. The controller itself is reconstructed from the snapshot each
// turn, because the retry happens on a subsequent, independent
// invocation (the TAN round trip forces statelessness between turns).
type FormatFallbackController struct {
	state  FallbackState
	format domain.StatementFormat
}

// NewFormatFallback starts the machine with the configured preferred
// format.
func NewFormatFallback(preferred domain.StatementFormat) *FormatFallbackController {
	if preferred == "" {
		preferred = domain.FormatCAMT
	}
	return &FormatFallbackController{state: FallbackInitial, format: preferred}
}

// RestoreFormatFallback rebuilds the controller from snapshot state.
func RestoreFormatFallback(snap *Snapshot, preferred domain.StatementFormat) *FormatFallbackController {
	c := NewFormatFallback(preferred)
	if snap.Format != "" {
		c.format = snap.Format
	}
	c.Begin()
	if snap.FallbackAttempted {
		c.state = FallbackAwaitingFallback
		c.format = domain.FormatMT940
	}
	return c
}

// Begin transitions Initial → AwaitingPrimaryFormat and returns the
// format to request.
func (c *FormatFallbackController) Begin() domain.StatementFormat {
	if c.state == FallbackInitial {
		c.state = FallbackAwaitingPrimary
	}
	return c.format
}

// Format returns the format of the current attempt.
func (c *FormatFallbackController) Format() domain.StatementFormat {
	return c.format
}

// State returns the current machine state.
func (c *FormatFallbackController) State() FallbackState {
	return c.state
}

// Resolution is the controller's verdict on one attempt's result.
type Resolution struct {
	// Retry asks the workflow to re-enter the statement request on a
	// later turn using Format.
	Retry  bool
	Format domain.StatementFormat
}

// Resolve feeds the attempt's result into the machine. documentBlank is
// true when the protocol request succeeded but the raw document body
// was empty, blank or unparsable. A well-formed document that yields
// zero transactions is NOT grounds for fallback.
func (c *FormatFallbackController) Resolve(documentBlank bool) Resolution {
	switch c.state {
	case FallbackAwaitingPrimary:
		if documentBlank && c.format != domain.FormatMT940 {
			c.state = FallbackAwaitingFallback
			c.format = domain.FormatMT940
			return Resolution{Retry: true, Format: c.format}
		}
		c.state = FallbackDone
	case FallbackAwaitingFallback:
		// No further fallback exists beyond the legacy format.
		c.state = FallbackDone
	}
	return Resolution{}
}

// Apply writes the controller's position back into the snapshot.
func (c *FormatFallbackController) Apply(snap *Snapshot) {
	snap.Format = c.format
	if c.state == FallbackAwaitingFallback {
		snap.FallbackAttempted = true
	}
}
