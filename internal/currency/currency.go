// Package currency converts minor-unit integer amounts into decimal
// amounts using the ISO 4217 fraction-digit table.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bankimport/fints-firefly-go/internal/domain"
)

// FractionDigits returns the number of minor-unit digits for an ISO 4217
// alphabetic currency code. Unknown codes fail with ErrUnknownCurrency.
func FractionDigits(code string) (int, error) {
	digits, ok := fractionDigits[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return 0, &domain.ErrUnknownCurrency{Code: code}
	}
	return digits, nil
}

// ToDecimalAmount converts a minor-unit integer amount into a decimal
// amount: minorUnits / 10^fractionDigits. Exact for all representable
// decimal values; no binary floating point is involved.
func ToDecimalAmount(minorUnits int64, code string) (decimal.Decimal, error) {
	digits, err := FractionDigits(code)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.New(minorUnits, -int32(digits)), nil
}

// ToMinorUnits converts a decimal amount string (as found in CAMT
// documents, e.g. "123.45") into its minor-unit integer representation
// for the given currency.
func ToMinorUnits(amount string, code string) (int64, error) {
	digits, err := FractionDigits(code)
	if err != nil {
		return 0, err
	}
	d, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil {
		return 0, err
	}
	return d.Shift(int32(digits)).IntPart(), nil
}
