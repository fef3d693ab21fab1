package camt_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankimport/fints-firefly-go/internal/camt"
	"github.com/bankimport/fints-firefly-go/internal/domain"
)

const sampleStatement = `<?xml version="1.0" encoding="UTF-8"?>
<Document xmlns="urn:iso:std:iso:20022:tech:xsd:camt.053.001.02">
  <BkToCstmrStmt>
    <GrpHdr>
      <MsgId>STMT-2024-001</MsgId>
      <CreDtTm>2024-03-01T06:00:00</CreDtTm>
    </GrpHdr>
    <Stmt>
      <Id>0351</Id>
      <Acct><Id><IBAN>DE02120300000000202051</IBAN></Id><Ccy>EUR</Ccy></Acct>
      <Ntry>
        <Amt Ccy="EUR">100.00</Amt>
        <CdtDbtInd>CRDT</CdtDbtInd>
        <Sts>BOOK</Sts>
        <BookgDt><Dt>2024-02-28</Dt></BookgDt>
        <ValDt><Dt>2024-02-29</Dt></ValDt>
        <NtryDtls>
          <TxDtls>
            <Refs><EndToEndId>E2E-42</EndToEndId></Refs>
            <RltdPties>
              <Dbtr><Nm>Alice</Nm></Dbtr>
              <DbtrAcct><Id><IBAN>DE89370400440532013000</IBAN></Id></DbtrAcct>
              <Cdtr><Nm>Owner</Nm></Cdtr>
            </RltdPties>
            <RmtInf><Ustrd>Invoice 42</Ustrd></RmtInf>
          </TxDtls>
        </NtryDtls>
        <AddtlNtryInf>SEPA GUTSCHRIFT</AddtlNtryInf>
      </Ntry>
    </Stmt>
  </BkToCstmrStmt>
</Document>`

func TestParse_Statement(t *testing.T) {
	doc, err := camt.Parse(sampleStatement)
	require.NoError(t, err)

	records := doc.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "DE02120300000000202051", records[0].Acct.ID.IBAN)
	assert.Equal(t, "EUR", records[0].Acct.Ccy)

	require.Len(t, records[0].Entries, 1)
	entry := records[0].Entries[0]
	assert.Equal(t, "100.00", entry.Amt.Text)
	assert.Equal(t, "EUR", entry.Amt.Ccy)
	assert.Equal(t, "CRDT", entry.CdtDbtInd)
	assert.Equal(t, "SEPA GUTSCHRIFT", entry.AddtlNtryInf)

	require.NotNil(t, entry.ValDt.Date())
	assert.Equal(t, "2024-02-29", entry.ValDt.Date().Format("2006-01-02"))

	require.Len(t, entry.NtryDtls.TxDtls, 1)
	detail := entry.NtryDtls.TxDtls[0]
	assert.Equal(t, "E2E-42", detail.Refs.EndToEndID)
	assert.Equal(t, "Alice", detail.RltdPties.Dbtr.Name())
	assert.Equal(t, "DE89370400440532013000", detail.RltdPties.DbtrAcct.Identification())
	assert.Equal(t, "Invoice 42", detail.RmtInf.Message())
}

func TestParse_NestedPartyName(t *testing.T) {
	doc, err := camt.Parse(`<Document><BkToCstmrStmt><Stmt><Ntry>
		<Amt Ccy="EUR">1.00</Amt><CdtDbtInd>DBIT</CdtDbtInd>
		<NtryDtls><TxDtls><RltdPties><Cdtr><Pty><Nm>Bob</Nm></Pty></Cdtr></RltdPties></TxDtls></NtryDtls>
	</Ntry></Stmt></BkToCstmrStmt></Document>`)
	require.NoError(t, err)

	entry := doc.Records()[0].Entries[0]
	assert.Equal(t, "Bob", entry.NtryDtls.TxDtls[0].RltdPties.Cdtr.Name())
}

func TestParse_Malformed(t *testing.T) {
	_, err := camt.Parse("<Document><unclosed>")
	require.Error(t, err)

	var malformed *domain.ErrMalformedDocument
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, domain.FormatCAMT, malformed.Format)
}

func TestDateOnly_Fallbacks(t *testing.T) {
	var d camt.DateOnly
	assert.Nil(t, d.Date())

	d.DtTm = "2024-02-29T12:30:00"
	require.NotNil(t, d.Date())
	assert.Equal(t, "2024-02-29", d.Date().Format("2006-01-02"))
}
