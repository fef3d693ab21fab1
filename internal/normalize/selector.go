package normalize

import "github.com/bankimport/fints-firefly-go/internal/domain"

// PartyRole marks which side of the transfer a party is on.
type PartyRole int

const (
	RoleDebtor PartyRole = iota
	RoleCreditor
)

// Party is one side of a statement entry's transfer.
type Party struct {
	Name    string
	Account string
	Role    PartyRole
}

// SelectCounterparty picks the party that is the meaningful "other
// side" relative to the statement owner's account. A statement entry
// lists both sides of a transfer: for a credit the money came from the
// debtor, for a debit it went to the creditor. When no role-matching
// party exists (or only one party is present) the first available party
// is returned; with no parties at all the result is nil.
func SelectCounterparty(parties []Party, direction domain.CreditDebit) *Party {
	if len(parties) == 0 {
		return nil
	}
	if len(parties) > 1 {
		want := RoleCreditor
		if direction == domain.Credit {
			want = RoleDebtor
		}
		for i := range parties {
			if parties[i].Role == want {
				return &parties[i]
			}
		}
	}
	return &parties[0]
}
