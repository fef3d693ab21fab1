package camt

import (
	"encoding/xml"
	"strings"
	"time"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// Parse unmarshals a raw CAMT XML document. A document that cannot be
// unmarshalled fails with ErrMalformedDocument; containment of that
// error is the caller's responsibility.
func Parse(raw string) (*Document, error) {
	var doc Document
	if err := xml.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, &domain.ErrMalformedDocument{Format: domain.FormatCAMT, Err: err}
	}
	return &doc, nil
}

// Records returns all statement records, whether the bank answered with
// a camt.053 statement or a camt.052 report.
func (d *Document) Records() []Record {
	if len(d.Stmt.Records) > 0 {
		return d.Stmt.Records
	}
	return d.Rpt.Records
}

// Date parses the Dt/DtTm choice into a time, preferring the plain date.
// Returns nil when neither field is set or parseable.
func (d DateOnly) Date() *time.Time {
	if s := strings.TrimSpace(d.Dt); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			return &t
		}
	}
	if s := strings.TrimSpace(d.DtTm); s != "" {
		for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05"} {
			if t, err := time.Parse(layout, s); err == nil {
				return &t
			}
		}
	}
	return nil
}
