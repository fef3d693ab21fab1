// Package mt940 parses the legacy SWIFT MT940 flat-file statement
// format used as fallback when the bank returns no CAMT data. The
// parsed statement and transaction objects are already close to the
// canonical transaction shape; normalization copies them across.
package mt940

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// Statement is one MT940 statement block (:20: through the "-" trailer).
type Statement struct {
	ReferenceNumber string // :20:
	Account         string // :25:
	Currency        string // from the :60F: opening balance
	Transactions    []Transaction
}

// Transaction is one :61: statement line together with its :86:
// multipurpose information field.
type Transaction struct {
	ValutaDate            *time.Time
	BookingDate           *time.Time
	CreditDebit           domain.CreditDebit
	Amount                decimal.Decimal // non-negative magnitude
	Currency              string
	BookingText           string // :86: subfield ?00
	PrimanotaNumber       string // :86: subfield ?10
	Description1          string // joined ?20..?29 text
	Description2          string // joined ?60..?63 text
	StructuredDescription map[string]string
	AccountNumber         string // :86: subfield ?31
	Name                  string // :86: subfields ?32 + ?33
}
