package normalize_test

import (
	"testing"

	"github.com/bankimport/fints-firefly-go/internal/domain"
	"github.com/bankimport/fints-firefly-go/internal/normalize"
)

func TestSelectCounterparty(t *testing.T) {
	debtor := normalize.Party{Name: "Alice", Account: "DE11", Role: normalize.RoleDebtor}
	creditor := normalize.Party{Name: "Bob", Account: "DE22", Role: normalize.RoleCreditor}

	tests := []struct {
		name      string
		parties   []normalize.Party
		direction domain.CreditDebit
		want      string // expected party name, "" for nil
	}{
		{"no parties", nil, domain.Credit, ""},
		{"single party, credit", []normalize.Party{creditor}, domain.Credit, "Bob"},
		{"single party, debit", []normalize.Party{debtor}, domain.Debit, "Alice"},
		{"both parties, credit picks debtor", []normalize.Party{debtor, creditor}, domain.Credit, "Alice"},
		{"both parties, debit picks creditor", []normalize.Party{debtor, creditor}, domain.Debit, "Bob"},
		{"no role match falls back to first", []normalize.Party{creditor, {Name: "Carol", Role: normalize.RoleCreditor}}, domain.Credit, "Bob"},
		{"two debtors, credit picks first debtor", []normalize.Party{debtor, {Name: "Dave", Role: normalize.RoleDebtor}}, domain.Credit, "Alice"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize.SelectCounterparty(tt.parties, tt.direction)
			if tt.want == "" {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected party %q, got nil", tt.want)
			}
			if got.Name != tt.want {
				t.Errorf("expected party %q, got %q", tt.want, got.Name)
			}
		})
	}
}

func TestSelectCounterparty_TwoCreditorsDebit(t *testing.T) {
	parties := []normalize.Party{
		{Name: "First", Role: normalize.RoleCreditor},
		{Name: "Second", Role: normalize.RoleCreditor},
	}
	got := normalize.SelectCounterparty(parties, domain.Debit)
	if got == nil || got.Name != "First" {
		t.Fatalf("expected exactly one party selected (the first creditor), got %+v", got)
	}
}
