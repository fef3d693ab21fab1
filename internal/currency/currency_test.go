package currency_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bankimport/fints-firefly-go/internal/currency"
	"github.com/bankimport/fints-firefly-go/internal/domain"
)

func TestToDecimalAmount(t *testing.T) {
	tests := []struct {
		name       string
		minorUnits int64
		code       string
		want       string
	}{
		{"two fraction digits", 12345, "EUR", "123.45"},
		{"zero fraction digits", 12345, "JPY", "12345"},
		{"three fraction digits", 12345, "BHD", "12.345"},
		{"four fraction digits", 12345, "CLF", "1.2345"},
		{"negative minor units", -9900, "USD", "-99"},
		{"zero amount", 0, "CHF", "0"},
		{"lowercase code accepted", 100, "eur", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := currency.ToDecimalAmount(tt.minorUnits, tt.code)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestToDecimalAmount_UnknownCurrency(t *testing.T) {
	_, err := currency.ToDecimalAmount(100, "XXX")
	require.Error(t, err)

	var unknown *domain.ErrUnknownCurrency
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "XXX", unknown.Code)
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		code   string
		want   int64
	}{
		{"123.45", "EUR", 12345},
		{"100.00", "EUR", 10000},
		{"12345", "JPY", 12345},
		{"12.345", "BHD", 12345},
	}

	for _, tt := range tests {
		got, err := currency.ToMinorUnits(tt.amount, tt.code)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestToMinorUnits_RoundTrip(t *testing.T) {
	minor, err := currency.ToMinorUnits("123.45", "EUR")
	require.NoError(t, err)

	back, err := currency.ToDecimalAmount(minor, "EUR")
	require.NoError(t, err)
	assert.Equal(t, "123.45", back.String())
}

func TestToMinorUnits_BadAmount(t *testing.T) {
	_, err := currency.ToMinorUnits("not-a-number", "EUR")
	assert.Error(t, err)
}
