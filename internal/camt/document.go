// Package camt models the subset of the ISO 20022 camt.052/camt.053
// "bank to customer" statement documents the importer consumes, and
// parses raw XML into it.
package camt

import "encoding/xml"

// Document is the root of a CAMT statement message.
type Document struct {
	XMLName xml.Name      `xml:"Document"`
	Stmt    BkToCstmrStmt `xml:"BkToCstmrStmt"`
	Rpt     BkToCstmrRpt  `xml:"BkToCstmrAcctRpt"`
}

// BkToCstmrStmt is the camt.053 bank-to-customer statement.
type BkToCstmrStmt struct {
	GrpHdr  GrpHdr   `xml:"GrpHdr"`
	Records []Record `xml:"Stmt"`
}

// BkToCstmrRpt is the camt.052 bank-to-customer account report. Some
// banks answer a statement request with a report; the record shape is
// identical for our purposes.
type BkToCstmrRpt struct {
	GrpHdr  GrpHdr   `xml:"GrpHdr"`
	Records []Record `xml:"Rpt"`
}

// GrpHdr is the group header.
type GrpHdr struct {
	MsgID   string `xml:"MsgId"`
	CreDtTm string `xml:"CreDtTm"`
}

// Record is one statement (Stmt) or report (Rpt) covering one account.
type Record struct {
	ID      string  `xml:"Id"`
	Acct    Acct    `xml:"Acct"`
	Entries []Entry `xml:"Ntry"`
}

// Acct identifies the statement owner's account.
type Acct struct {
	ID struct {
		IBAN string `xml:"IBAN"`
	} `xml:"Id"`
	Ccy string `xml:"Ccy"`
}

// Entry is one booked entry (Ntry).
type Entry struct {
	Amt          Amt       `xml:"Amt"`
	CdtDbtInd    string    `xml:"CdtDbtInd"`
	Sts          string    `xml:"Sts"`
	BookgDt      DateOnly  `xml:"BookgDt"`
	ValDt        DateOnly  `xml:"ValDt"`
	NtryDtls     EntryDtls `xml:"NtryDtls"`
	AddtlNtryInf string    `xml:"AddtlNtryInf"`
}

// Amt is a currency amount: decimal text plus a Ccy attribute.
type Amt struct {
	Text string `xml:",chardata"`
	Ccy  string `xml:"Ccy,attr"`
}

// DateOnly wraps the Dt/DtTm choice used for booking and value dates.
type DateOnly struct {
	Dt   string `xml:"Dt"`
	DtTm string `xml:"DtTm"`
}

// EntryDtls holds the transaction details of an entry.
type EntryDtls struct {
	TxDtls []TxDtls `xml:"TxDtls"`
}

// TxDtls is one transaction detail block.
type TxDtls struct {
	Refs      Refs      `xml:"Refs"`
	RltdPties RltdPties `xml:"RltdPties"`
	RmtInf    RmtInf    `xml:"RmtInf"`
}

// Refs carries the transaction references.
type Refs struct {
	EndToEndID string `xml:"EndToEndId"`
	MndtID     string `xml:"MndtId"`
}

// RltdPties lists both sides of the transfer.
type RltdPties struct {
	Dbtr     Party     `xml:"Dbtr"`
	DbtrAcct PartyAcct `xml:"DbtrAcct"`
	Cdtr     Party     `xml:"Cdtr"`
	CdtrAcct PartyAcct `xml:"CdtrAcct"`
}

// Party is a debtor or creditor. Newer schema revisions nest the name
// under Pty, older ones put it directly on the party element.
type Party struct {
	Nm  string `xml:"Nm"`
	Pty struct {
		Nm string `xml:"Nm"`
	} `xml:"Pty"`
}

// Name returns the party name regardless of schema revision.
func (p Party) Name() string {
	if p.Nm != "" {
		return p.Nm
	}
	return p.Pty.Nm
}

// PartyAcct is a counterparty account identification.
type PartyAcct struct {
	ID struct {
		IBAN string `xml:"IBAN"`
		Othr struct {
			ID string `xml:"Id"`
		} `xml:"Othr"`
	} `xml:"Id"`
}

// Identification returns the IBAN if present, else the proprietary id.
func (a PartyAcct) Identification() string {
	if a.ID.IBAN != "" {
		return a.ID.IBAN
	}
	return a.ID.Othr.ID
}

// RmtInf is the remittance information.
type RmtInf struct {
	Ustrd []string `xml:"Ustrd"`
	Strd  []struct {
		CdtrRefInf struct {
			Ref string `xml:"Ref"`
		} `xml:"CdtrRefInf"`
	} `xml:"Strd"`
}

// Message returns the joined unstructured remittance text, or "" when
// none is present.
func (r RmtInf) Message() string {
	switch len(r.Ustrd) {
	case 0:
		return ""
	case 1:
		return r.Ustrd[0]
	default:
		msg := r.Ustrd[0]
		for _, part := range r.Ustrd[1:] {
			msg += " " + part
		}
		return msg
	}
}
