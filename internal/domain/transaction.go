// Package domain defines the core business entities for the importer.
// These models are independent of the banking protocol and the ledger
// backend and represent the canonical data structures used throughout
// the import workflow.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreditDebit is the direction of a statement entry as seen from the
// statement owner's account.
type CreditDebit string

const (
	Credit CreditDebit = "CREDIT"
	Debit  CreditDebit = "DEBIT"
)

// StatementFormat identifies the statement encoding requested from the bank.
type StatementFormat string

const (
	FormatCAMT  StatementFormat = "camt"  // ISO 20022 XML (preferred)
	FormatMT940 StatementFormat = "mt940" // legacy flat file (fallback)
)

// Structured description tags recognized by downstream ledger systems.
const (
	TagRemittance       = "SVWZ" // remittance message
	TagEndToEndID       = "EREF" // SEPA end-to-end reference
	TagCounterpartyNote = "ABWA" // deviating counterparty name
	TagCurrency         = "CURR" // currency code, always present
)

// Transaction is one normalized statement line. It is a pure value
// object: built once during normalization and never mutated afterwards.
type Transaction struct {
	CreditDebit           CreditDebit       `json:"credit_debit"`
	ValutaDate            *time.Time        `json:"valuta_date,omitempty"`
	Amount                decimal.Decimal   `json:"amount"`
	CurrencyCode          string            `json:"currency_code"`
	AccountNumber         string            `json:"account_number,omitempty"`
	Name                  string            `json:"name,omitempty"`
	MainDescription       string            `json:"main_description,omitempty"`
	StructuredDescription map[string]string `json:"structured_description"`
	BookingText           string            `json:"booking_text,omitempty"`
	Description1          string            `json:"description1,omitempty"`
	EndToEndID            string            `json:"end_to_end_id,omitempty"`
}

// BankAccount is one account of the authenticated banking user, as
// reported by the protocol dialog.
type BankAccount struct {
	IBAN          string `json:"iban"`
	AccountNumber string `json:"account_number,omitempty"`
	BLZ           string `json:"blz,omitempty"`
	Owner         string `json:"owner,omitempty"`
	Currency      string `json:"currency,omitempty"`
}

// StatementRequest asks the bank for booked entries of one account in
// an inclusive date range, encoded in the given format.
type StatementRequest struct {
	Account BankAccount
	From    time.Time
	To      time.Time
	Format  StatementFormat
}

// ChallengePrompt carries everything the caller needs to render a TAN
// challenge and collect the user's response.
type ChallengePrompt struct {
	Instructions string `json:"instructions"`
	MediumName   string `json:"medium_name,omitempty"`
	// Media is an optional binary challenge (photoTAN image, flicker
	// code) already decoded by the protocol library.
	Media     []byte `json:"media,omitempty"`
	MediaMime string `json:"media_mime,omitempty"`
}

// LoginResponse is returned after a successful importer login.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}
