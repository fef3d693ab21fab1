package normalize_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bankimport/fints-firefly-go/internal/camt"
	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/mt940"
	"github.com/bankimport/fints-firefly-go/internal/normalize"
)

func parseCAMT(t *testing.T, raw string) *camt.Document {
	t.Helper()
	doc, err := camt.Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func TestNormalizeCAMT_CreditEntry(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt>
		<Acct><Id><IBAN>DE02</IBAN></Id><Ccy>EUR</Ccy></Acct>
		<Ntry>
			<Amt Ccy="EUR">100.00</Amt>
			<CdtDbtInd>CRDT</CdtDbtInd>
			<BookgDt><Dt>2024-02-28</Dt></BookgDt>
			<ValDt><Dt>2024-02-29</Dt></ValDt>
			<NtryDtls><TxDtls>
				<Refs><EndToEndId>E2E-42</EndToEndId></Refs>
				<RltdPties>
					<Dbtr><Nm>Alice</Nm></Dbtr>
					<DbtrAcct><Id><IBAN>DE89</IBAN></Id></DbtrAcct>
					<Cdtr><Nm>Owner</Nm></Cdtr>
				</RltdPties>
				<RmtInf><Ustrd>Invoice 42</Ustrd></RmtInf>
			</TxDtls></NtryDtls>
			<AddtlNtryInf>SEPA GUTSCHRIFT</AddtlNtryInf>
		</Ntry>
	</Stmt></BkToCstmrStmt></Document>`)

	txs, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}

	tx := txs[0]
	if tx.CreditDebit != domain.Credit {
		t.Errorf("expected CREDIT, got %s", tx.CreditDebit)
	}
	if !tx.Amount.Equal(decimal.RequireFromString("100.00")) {
		t.Errorf("expected amount 100.00, got %s", tx.Amount)
	}
	if tx.CurrencyCode != "EUR" {
		t.Errorf("expected currency EUR, got %s", tx.CurrencyCode)
	}
	if tx.Name != "Alice" {
		t.Errorf("expected counterparty Alice (the debtor), got %q", tx.Name)
	}
	if tx.AccountNumber != "DE89" {
		t.Errorf("expected account DE89, got %q", tx.AccountNumber)
	}
	if tx.ValutaDate == nil || tx.ValutaDate.Format("2006-01-02") != "2024-02-29" {
		t.Errorf("expected valuta date 2024-02-29, got %v", tx.ValutaDate)
	}
	if tx.StructuredDescription[domain.TagRemittance] != "Invoice 42" {
		t.Errorf("expected SVWZ 'Invoice 42', got %q", tx.StructuredDescription[domain.TagRemittance])
	}
	if tx.StructuredDescription[domain.TagEndToEndID] != "E2E-42" {
		t.Errorf("expected EREF 'E2E-42', got %q", tx.StructuredDescription[domain.TagEndToEndID])
	}
	if tx.StructuredDescription[domain.TagCounterpartyNote] != "Alice" {
		t.Errorf("expected ABWA 'Alice', got %q", tx.StructuredDescription[domain.TagCounterpartyNote])
	}
	if tx.StructuredDescription[domain.TagCurrency] != "EUR" {
		t.Errorf("expected CURR 'EUR', got %q", tx.StructuredDescription[domain.TagCurrency])
	}
	if tx.EndToEndID != "E2E-42" {
		t.Errorf("expected end-to-end id, got %q", tx.EndToEndID)
	}
	if tx.BookingText != "SEPA GUTSCHRIFT" {
		t.Errorf("expected booking text, got %q", tx.BookingText)
	}
	if tx.Description1 != "Invoice 42" {
		t.Errorf("expected description1 from remittance, got %q", tx.Description1)
	}
}

func TestNormalizeCAMT_DebitPicksCreditor(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt><Ntry>
		<Amt Ccy="EUR">50.00</Amt>
		<CdtDbtInd>DBIT</CdtDbtInd>
		<NtryDtls><TxDtls><RltdPties>
			<Dbtr><Nm>Owner</Nm></Dbtr>
			<Cdtr><Nm>Hosting GmbH</Nm></Cdtr>
			<CdtrAcct><Id><IBAN>DE55</IBAN></Id></CdtrAcct>
		</RltdPties></TxDtls></NtryDtls>
	</Ntry></Stmt></BkToCstmrStmt></Document>`)

	txs, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if txs[0].Name != "Hosting GmbH" {
		t.Errorf("expected the creditor as counterparty, got %q", txs[0].Name)
	}
	if txs[0].AccountNumber != "DE55" {
		t.Errorf("expected creditor account, got %q", txs[0].AccountNumber)
	}
}

func TestNormalizeCAMT_NoDetailBlockStillSetsCurr(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt><Ntry>
		<Amt Ccy="JPY">12345</Amt>
		<CdtDbtInd>DBIT</CdtDbtInd>
		<BookgDt><Dt>2024-01-15</Dt></BookgDt>
	</Ntry></Stmt></BkToCstmrStmt></Document>`)

	txs, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}

	tx := txs[0]
	if tx.StructuredDescription[domain.TagCurrency] != "JPY" {
		t.Errorf("CURR must be set even without a detail block, got %q", tx.StructuredDescription[domain.TagCurrency])
	}
	if tx.Amount.String() != "12345" {
		t.Errorf("expected zero-fraction-digit amount 12345, got %s", tx.Amount)
	}
	// Booking date is the valuta fallback.
	if tx.ValutaDate == nil || tx.ValutaDate.Format("2006-01-02") != "2024-01-15" {
		t.Errorf("expected valuta from booking date, got %v", tx.ValutaDate)
	}
	if tx.Name != "" || tx.AccountNumber != "" {
		t.Errorf("expected no counterparty, got %q/%q", tx.Name, tx.AccountNumber)
	}
}

func TestNormalizeCAMT_UnknownIndicatorDefaultsToDebit(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt><Ntry>
		<Amt Ccy="EUR">1.00</Amt>
		<CdtDbtInd>WEIRD</CdtDbtInd>
	</Ntry></Stmt></BkToCstmrStmt></Document>`)

	txs, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if txs[0].CreditDebit != domain.Debit {
		t.Errorf("unknown indicator must default to DEBIT, got %s", txs[0].CreditDebit)
	}
}

func TestNormalizeCAMT_UnknownCurrencyFatalToBatch(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt>
		<Ntry><Amt Ccy="EUR">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
		<Ntry><Amt Ccy="ZZZ">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
	</Stmt></BkToCstmrStmt></Document>`)

	_, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	var unknown *domain.ErrUnknownCurrency
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownCurrency, got %v", err)
	}
}

func TestNormalizeCAMT_SkipOnUnknownCurrency(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><Stmt>
		<Ntry><Amt Ccy="ZZZ">1.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
		<Ntry><Amt Ccy="EUR">2.00</Amt><CdtDbtInd>CRDT</CdtDbtInd></Ntry>
	</Stmt></BkToCstmrStmt></Document>`)

	txs, err := normalize.New(zap.NewNop(), normalize.SkipOnUnknownCurrency()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("expected the bad entry to be skipped, got %d transactions", len(txs))
	}
}

func TestNormalizeCAMT_EmptyDocumentYieldsNothing(t *testing.T) {
	doc := parseCAMT(t, `<Document><BkToCstmrStmt><GrpHdr><MsgId>X</MsgId></GrpHdr></BkToCstmrStmt></Document>`)
	txs, err := normalize.New(zap.NewNop()).NormalizeCAMT(doc)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if len(txs) != 0 {
		t.Fatalf("expected no transactions, got %d", len(txs))
	}
}

func TestNormalizeMT940_CopiesAcross(t *testing.T) {
	valuta := time.Date(2024, 2, 28, 0, 0, 0, 0, time.UTC)
	statements := []mt940.Statement{{
		Currency: "EUR",
		Transactions: []mt940.Transaction{{
			ValutaDate:  &valuta,
			CreditDebit: domain.Credit,
			Amount:      decimal.RequireFromString("100"),
			Currency:    "EUR",
			BookingText: "GUTSCHRIFT",
			Name:        "Alice",
			StructuredDescription: map[string]string{
				domain.TagRemittance: "Invoice 42",
				domain.TagEndToEndID: "E2E-42",
			},
		}},
	}}

	txs := normalize.New(zap.NewNop()).NormalizeMT940(statements)
	if len(txs) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(txs))
	}

	tx := txs[0]
	if tx.CreditDebit != domain.Credit || tx.Amount.String() != "100" {
		t.Errorf("unexpected copy: %+v", tx)
	}
	if tx.StructuredDescription[domain.TagCurrency] != "EUR" {
		t.Errorf("CURR must be set on the legacy path, got %q", tx.StructuredDescription[domain.TagCurrency])
	}
	if tx.EndToEndID != "E2E-42" {
		t.Errorf("expected end-to-end id copied from EREF, got %q", tx.EndToEndID)
	}
	if tx.MainDescription != "Invoice 42" {
		t.Errorf("expected main description from SVWZ, got %q", tx.MainDescription)
	}
	if tx.ValutaDate == nil || !tx.ValutaDate.Equal(valuta) {
		t.Errorf("expected valuta date copied, got %v", tx.ValutaDate)
	}
}

func TestNormalizeMT940_BookingDateFallback(t *testing.T) {
	booking := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	statements := []mt940.Statement{{
		Currency: "EUR",
		Transactions: []mt940.Transaction{{
			BookingDate: &booking,
			CreditDebit: domain.Debit,
			Amount:      decimal.RequireFromString("5"),
			Currency:    "EUR",
		}},
	}}

	txs := normalize.New(zap.NewNop()).NormalizeMT940(statements)
	if txs[0].ValutaDate == nil || !txs[0].ValutaDate.Equal(booking) {
		t.Errorf("expected booking date fallback, got %v", txs[0].ValutaDate)
	}
}
