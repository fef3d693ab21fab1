package workflow

import (
	"encoding/json"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// Snapshot is all workflow state that must outlive a request turn. The
// workflow is stateless in-process: every turn is a function from
// (snapshot, input) to (snapshot, outcome), and the snapshot travels
// through the session store between turns.
type Snapshot struct {
	// DialogBlob is the opaque persisted protocol dialog, including any
	// action suspended on a TAN challenge.
	DialogBlob []byte `json:"dialog_blob,omitempty"`

	// AwaitingChallenge marks that the statement request suspended on a
	// TAN challenge and the next turn must carry the response.
	AwaitingChallenge bool `json:"awaiting_challenge,omitempty"`

	// Format is the statement format of the current attempt.
	Format domain.StatementFormat `json:"format,omitempty"`

	// FallbackAttempted is set once the one-shot fallback from CAMT to
	// MT940 has been triggered; no further fallback exists.
	FallbackAttempted bool `json:"fallback_attempted,omitempty"`

	// LedgerAccountID is the target account in the ledger system.
	LedgerAccountID string `json:"ledger_account_id,omitempty"`

	// AccountIndex, DateFrom and DateTo echo the statement parameters of
	// the last full request. A later turn may omit them (a resume turn
	// carries only the challenge response) and still re-request, e.g.
	// when the format fallback fires right after a TAN round.
	AccountIndex *int   `json:"account_index,omitempty"`
	DateFrom     string `json:"date_from,omitempty"`
	DateTo       string `json:"date_to,omitempty"`

	// Transactions is the normalized batch awaiting submission.
	Transactions []domain.Transaction `json:"transactions,omitempty"`

	// NumProcessed counts batch entries already submitted.
	NumProcessed int `json:"num_processed,omitempty"`

	// ImportMessages accumulates per-transaction submission results.
	ImportMessages []string `json:"import_messages,omitempty"`
}

// Encode serializes the snapshot for an external session store.
func (s *Snapshot) Encode() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot restores a snapshot serialized by Encode.
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
