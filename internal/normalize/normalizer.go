// Package normalize maps parsed statement messages, CAMT or MT940,
// into the canonical transaction schema.
package normalize

import (
	"strings"

	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/camt"
	"github.com/bankimport/fints-firefly-go/internal/currency"
	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/mt940"
)

// Normalizer converts statement messages into canonical transactions.
type Normalizer struct {
	logger *zap.Logger

	// skipUnknownCurrency switches the failure policy for entries whose
	// currency is not in the ISO 4217 table from fatal-to-batch to
	// skip-entry.
	skipUnknownCurrency bool
}

// Option configures a Normalizer.
type Option func(*Normalizer)

// SkipOnUnknownCurrency drops entries with unknown currency codes
// instead of aborting the whole batch.
func SkipOnUnknownCurrency() Option {
	return func(n *Normalizer) { n.skipUnknownCurrency = true }
}

// New creates a normalizer.
func New(logger *zap.Logger, opts ...Option) *Normalizer {
	n := &Normalizer{logger: logger}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeCAMT maps every booked entry of a CAMT document into a
// transaction, in document order. An unknown currency aborts the batch
// unless the normalizer was built with SkipOnUnknownCurrency.
func (n *Normalizer) NormalizeCAMT(doc *camt.Document) ([]domain.Transaction, error) {
	var transactions []domain.Transaction
	for _, record := range doc.Records() {
		for _, entry := range record.Entries {
			tx, err := n.normalizeEntry(entry)
			if err != nil {
				if n.skipUnknownCurrency {
					n.logger.Warn("skipping entry with unconvertible amount", zap.Error(err))
					continue
				}
				return nil, err
			}
			transactions = append(transactions, tx)
		}
	}
	return transactions, nil
}

func (n *Normalizer) normalizeEntry(entry camt.Entry) (domain.Transaction, error) {
	tx := domain.Transaction{
		CreditDebit:           creditDebitOf(entry.CdtDbtInd, n.logger),
		StructuredDescription: map[string]string{},
	}

	// Valuta date falls back to the booking date; unset if neither exists.
	if d := entry.ValDt.Date(); d != nil {
		tx.ValutaDate = d
	} else if d := entry.BookgDt.Date(); d != nil {
		tx.ValutaDate = d
	}

	code := entry.Amt.Ccy
	minor, err := currency.ToMinorUnits(entry.Amt.Text, code)
	if err != nil {
		return domain.Transaction{}, err
	}
	amount, err := currency.ToDecimalAmount(minor, code)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Amount = amount
	tx.CurrencyCode = strings.ToUpper(strings.TrimSpace(code))

	if len(entry.NtryDtls.TxDtls) > 0 {
		detail := entry.NtryDtls.TxDtls[0]

		if party := SelectCounterparty(partiesOf(detail), tx.CreditDebit); party != nil {
			tx.AccountNumber = party.Account
			tx.Name = party.Name
		}

		if msg := detail.RmtInf.Message(); msg != "" {
			tx.MainDescription = msg
			tx.StructuredDescription[domain.TagRemittance] = msg
			tx.Description1 = msg
		}

		if e2e := detail.Refs.EndToEndID; e2e != "" && e2e != "NOTPROVIDED" {
			tx.EndToEndID = e2e
			tx.StructuredDescription[domain.TagEndToEndID] = e2e
		}

		if tx.Name != "" {
			tx.StructuredDescription[domain.TagCounterpartyNote] = tx.Name
		}
	}

	if info := strings.TrimSpace(entry.AddtlNtryInf); info != "" {
		tx.BookingText = info
		if tx.Description1 == "" {
			tx.Description1 = info
		}
	}

	// CURR is set last so that no earlier step can overwrite it.
	tx.StructuredDescription[domain.TagCurrency] = tx.CurrencyCode

	return tx, nil
}

// partiesOf collects the debtor and creditor sides of a detail block,
// in that order, skipping sides without any identifying data.
func partiesOf(detail camt.TxDtls) []Party {
	var parties []Party
	if name, acct := detail.RltdPties.Dbtr.Name(), detail.RltdPties.DbtrAcct.Identification(); name != "" || acct != "" {
		parties = append(parties, Party{Name: name, Account: acct, Role: RoleDebtor})
	}
	if name, acct := detail.RltdPties.Cdtr.Name(), detail.RltdPties.CdtrAcct.Identification(); name != "" || acct != "" {
		parties = append(parties, Party{Name: name, Account: acct, Role: RoleCreditor})
	}
	return parties
}

// creditDebitOf maps the CAMT indicator. Anything other than CRDT is
// treated as a debit; the conservative default for unknown indicators
// is deliberate.
func creditDebitOf(indicator string, logger *zap.Logger) domain.CreditDebit {
	switch indicator {
	case "CRDT":
		return domain.Credit
	case "DBIT":
		return domain.Debit
	default:
		logger.Debug("unknown credit/debit indicator, defaulting to debit",
			zap.String("indicator", indicator),
		)
		return domain.Debit
	}
}

// NormalizeMT940 copies the already-normalized statement objects of the
// legacy flat-file path into the canonical schema. Lower fidelity than
// the CAMT path: structured descriptions are taken as parsed, not
// re-derived.
func (n *Normalizer) NormalizeMT940(statements []mt940.Statement) []domain.Transaction {
	var transactions []domain.Transaction
	for _, st := range statements {
		for _, src := range st.Transactions {
			tx := domain.Transaction{
				CreditDebit:           src.CreditDebit,
				Amount:                src.Amount,
				CurrencyCode:          src.Currency,
				AccountNumber:         src.AccountNumber,
				Name:                  src.Name,
				BookingText:           src.BookingText,
				Description1:          src.Description1,
				StructuredDescription: map[string]string{},
			}

			if src.ValutaDate != nil {
				tx.ValutaDate = src.ValutaDate
			} else if src.BookingDate != nil {
				tx.ValutaDate = src.BookingDate
			}

			for tag, text := range src.StructuredDescription {
				tx.StructuredDescription[tag] = text
			}
			if e2e, ok := tx.StructuredDescription[domain.TagEndToEndID]; ok {
				tx.EndToEndID = e2e
			}
			if svwz, ok := tx.StructuredDescription[domain.TagRemittance]; ok {
				tx.MainDescription = svwz
			}
			if tx.CurrencyCode != "" {
				tx.StructuredDescription[domain.TagCurrency] = tx.CurrencyCode
			}

			transactions = append(transactions, tx)
		}
	}
	return transactions
}
