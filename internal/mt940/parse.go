package mt940

import (
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// txLineRe matches a :61: statement line:
// valuta date, optional booking date, (reversal) credit/debit mark,
// optional funds code, comma-decimal amount, transaction type, reference.
var txLineRe = regexp.MustCompile(`^(\d{6})(\d{4})?(R?[CD])([A-Z])?(\d+,\d*)((?:N|S|F)[A-Z0-9]{3})?(.*)$`)

// structuredTags are the SEPA purpose prefixes that may appear in the
// joined ?20..?29 description text of a :86: field.
var structuredTags = []string{
	"EREF", "KREF", "MREF", "CRED", "DEBT", "COAM", "OAMT", "SVWZ", "ABWA", "ABWE", "BREF", "RREF",
}

// Parse reads a raw MT940 document into statement blocks. A document
// with no recognizable tags fails with ErrMalformedDocument.
func Parse(raw string) ([]Statement, error) {
	fields := splitFields(raw)
	if len(fields) == 0 {
		return nil, &domain.ErrMalformedDocument{Format: domain.FormatMT940, Err: errNoFields}
	}

	var statements []Statement
	var current *Statement
	var lastTx *Transaction

	flush := func() {
		if current != nil {
			statements = append(statements, *current)
		}
		current = nil
		lastTx = nil
	}

	for _, f := range fields {
		switch f.tag {
		case "20":
			flush()
			current = &Statement{ReferenceNumber: f.value}
		case "25":
			if current != nil {
				current.Account = f.value
			}
		case "60F", "60M":
			if current != nil && len(f.value) >= 10 {
				// C/D mark, 6-digit date, then the 3-letter currency.
				current.Currency = f.value[7:10]
			}
		case "61":
			if current == nil {
				continue
			}
			tx, err := parseTransactionLine(f.value, current.Currency)
			if err != nil {
				return nil, &domain.ErrMalformedDocument{Format: domain.FormatMT940, Err: err}
			}
			current.Transactions = append(current.Transactions, tx)
			lastTx = &current.Transactions[len(current.Transactions)-1]
		case "86":
			if lastTx != nil {
				applyInformationField(lastTx, f.value)
			}
		}
	}
	flush()

	if len(statements) == 0 {
		return nil, &domain.ErrMalformedDocument{Format: domain.FormatMT940, Err: errNoFields}
	}
	return statements, nil
}

type field struct {
	tag   string
	value string
}

type parseError string

func (e parseError) Error() string { return string(e) }

const errNoFields = parseError("no MT940 fields found")

// splitFields tokenizes the raw document into tag/value pairs. A field
// value continues until the next ":XX:" line or a "-" block trailer.
func splitFields(raw string) []field {
	var fields []field
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "-" || strings.TrimSpace(line) == "" {
			continue
		}
		if strings.HasPrefix(line, ":") {
			if end := strings.Index(line[1:], ":"); end > 0 {
				fields = append(fields, field{tag: line[1 : 1+end], value: line[2+end:]})
				continue
			}
		}
		// Continuation line of the previous field.
		if len(fields) > 0 {
			fields[len(fields)-1].value += "\n" + line
		}
	}
	return fields
}

func parseTransactionLine(value, currency string) (Transaction, error) {
	line := strings.SplitN(value, "\n", 2)[0]
	m := txLineRe.FindStringSubmatch(line)
	if m == nil {
		return Transaction{}, parseError("unparsable :61: line: " + line)
	}

	valuta, err := parseValutaDate(m[1])
	if err != nil {
		return Transaction{}, err
	}

	tx := Transaction{
		ValutaDate:  &valuta,
		CreditDebit: domain.Debit,
		Currency:    currency,
	}

	if strings.HasSuffix(m[3], "C") {
		tx.CreditDebit = domain.Credit
	}

	if m[2] != "" {
		booking := bookingDateFor(valuta, m[2])
		tx.BookingDate = &booking
	}

	amount, err := decimal.NewFromString(strings.Replace(m[5], ",", ".", 1))
	if err != nil {
		return Transaction{}, err
	}
	tx.Amount = amount

	return tx, nil
}

// parseValutaDate reads a YYMMDD date. The stdlib applies the usual
// two-digit-year pivot (69 and above map to the 1900s).
func parseValutaDate(s string) (time.Time, error) {
	return time.Parse("060102", s)
}

// bookingDateFor resolves the 4-digit MMDD booking date against the
// valuta year, shifting a year at the December/January boundary.
func bookingDateFor(valuta time.Time, mmdd string) time.Time {
	t, err := time.Parse("0102", mmdd)
	if err != nil {
		return valuta
	}
	year := valuta.Year()
	switch {
	case t.Month() == time.January && valuta.Month() == time.December:
		year++
	case t.Month() == time.December && valuta.Month() == time.January:
		year--
	}
	return time.Date(year, t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// applyInformationField parses the :86: multipurpose field. German
// banks use "?NN" subfields; banks without subfields put free text in
// the whole field.
func applyInformationField(tx *Transaction, value string) {
	value = strings.ReplaceAll(value, "\n", "")
	if !strings.Contains(value, "?") {
		tx.Description1 = strings.TrimSpace(value)
		return
	}

	var desc1Parts, desc2Parts []string
	var nameParts []string

	parts := strings.Split(value, "?")
	for _, part := range parts[1:] {
		if len(part) < 2 {
			continue
		}
		code, text := part[:2], part[2:]
		switch {
		case code == "00":
			tx.BookingText = text
		case code == "10":
			tx.PrimanotaNumber = text
		case code >= "20" && code <= "29":
			desc1Parts = append(desc1Parts, text)
		case code == "31":
			tx.AccountNumber = text
		case code == "32" || code == "33":
			nameParts = append(nameParts, text)
		case code >= "60" && code <= "63":
			desc2Parts = append(desc2Parts, text)
		}
	}

	tx.Name = strings.TrimSpace(strings.Join(nameParts, " "))
	tx.Description2 = strings.TrimSpace(strings.Join(desc2Parts, ""))

	joined := strings.Join(desc1Parts, "")
	tx.StructuredDescription = parseStructuredText(joined)
	if len(tx.StructuredDescription) > 0 {
		if svwz, ok := tx.StructuredDescription[domain.TagRemittance]; ok {
			tx.Description1 = svwz
		}
	} else {
		tx.Description1 = strings.TrimSpace(joined)
	}
}

// parseStructuredText splits "EREF+...SVWZ+..." style description text
// into its tagged segments. Returns nil when no tag is present.
func parseStructuredText(text string) map[string]string {
	type segment struct {
		tag   string
		start int // index right after "TAG+"
	}
	var segments []segment
	for _, tag := range structuredTags {
		marker := tag + "+"
		if idx := strings.Index(text, marker); idx >= 0 {
			segments = append(segments, segment{tag: tag, start: idx + len(marker)})
		}
	}
	if len(segments) == 0 {
		return nil
	}

	result := make(map[string]string, len(segments))
	for _, seg := range segments {
		end := len(text)
		for _, other := range segments {
			tagStart := other.start - len(other.tag) - 1
			if tagStart > seg.start && tagStart < end {
				end = tagStart
			}
		}
		result[seg.tag] = strings.TrimSpace(text[seg.start:end])
	}
	return result
}
