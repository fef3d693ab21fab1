// Package port defines the interfaces (ports) for external
// collaborators. Following hexagonal architecture, these ports decouple
// the workflow/service layer from the banking protocol library, the
// ledger backend and the session persistence.
package port

import (
	"context"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// Dialer opens banking protocol dialogs. The wire-level protocol
// (message framing, crypto) lives entirely behind this boundary.
type Dialer interface {
	// Dial opens a fresh authenticated dialog.
	Dial(ctx context.Context) (Dialog, error)
	// Restore resumes a dialog from a persisted state blob, as written
	// by Dialog.Persist on an earlier turn.
	Restore(ctx context.Context, blob []byte) (Dialog, error)
}

// Dialog is one authenticated conversation with the bank. A dialog is
// owned by exactly one workflow instance; no locking is required.
type Dialog interface {
	// Accounts lists the accounts available to the authenticated user.
	Accounts(ctx context.Context) ([]domain.BankAccount, error)

	// RequestStatement submits the statement request. The returned
	// action either carries the finished result or reports that it
	// needs a TAN challenge first.
	RequestStatement(ctx context.Context, req domain.StatementRequest) (StatementAction, error)

	// ResumeAction submits the user's challenge response for the
	// pending action. The action may need a further challenge round.
	ResumeAction(ctx context.Context, challengeResponse string) (StatementAction, error)

	// Persist serializes the dialog, including any pending action, into
	// an opaque blob for the next turn.
	Persist() []byte

	// End closes the dialog with the bank. The dialog stays
	// persistable afterwards.
	End(ctx context.Context) error
}

// StatementAction exposes the protocol library's "needs challenge /
// finished action" primitives for one statement request.
type StatementAction interface {
	NeedsChallenge() bool
	Challenge() *domain.ChallengePrompt

	// BookedCAMT returns the raw CAMT XML documents of the finished
	// action, one per statement page. Empty on the MT940 path.
	BookedCAMT() []string

	// BookedMT940 returns the raw MT940 flat-file documents of the
	// finished action. Empty on the CAMT path. Raw on purpose: parsing
	// and malformed-document containment belong to the import service,
	// not the protocol adapter.
	BookedMT940() []string
}

// LedgerSender submits one normalized transaction to the ledger system.
type LedgerSender interface {
	// SendTransaction stores the transaction against the given ledger
	// account and returns a human-readable import message.
	SendTransaction(ctx context.Context, ledgerAccountID string, tx domain.Transaction) (string, error)
}
