package types

import (
	"github.com/shopspring/decimal"
)

// Account is a wallet account. Token accounts live in their parent's
// SubAccounts and carry the parent's id.
type Account struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Currency    *Currency       `json:"-"`
	Address     string          `json:"address"`
	Balance     decimal.Decimal `json:"balance"` // smallest units
	ParentID    string          `json:"parent_id,omitempty"`
	SubAccounts []*Account      `json:"sub_accounts,omitempty"`
}

// IsTokenAccount returns true for sub-accounts holding a token balance
func (a *Account) IsTokenAccount() bool {
	return a != nil && a.ParentID != ""
}

// HasBalance returns true if the balance is strictly positive
func (a *Account) HasBalance() bool {
	return a != nil && a.Balance.IsPositive()
}

// AccountCurrency returns the currency held by the account
func AccountCurrency(a *Account) *Currency {
	if a == nil {
		return nil
	}
	return a.Currency
}

// MainAccount returns the chain account: the parent when given, the account otherwise
func MainAccount(account, parent *Account) *Account {
	if parent != nil {
		return parent
	}
	return account
}

// TokenAccountID derives the id of the sub-account holding a token
func TokenAccountID(parent *Account, token *Currency) string {
	return parent.ID + "+" + token.ID
}

// AccountWithMandatoryTokens returns the parent account with a zero-balance
// sub-account for every listed token it does not hold yet. The input account
// is never mutated; a shallow copy is returned when sub-accounts are added.
func AccountWithMandatoryTokens(parent *Account, tokens []*Currency) *Account {
	if parent == nil {
		return nil
	}

	var missing []*Account
	for _, token := range tokens {
		if !token.IsToken() || !SameCurrency(token.Parent, parent.Currency) {
			continue
		}
		if FindSubAccount(parent, token) != nil {
			continue
		}
		missing = append(missing, &Account{
			ID:       TokenAccountID(parent, token),
			Name:     parent.Name + " " + token.Ticker,
			Currency: token,
			Address:  parent.Address,
			Balance:  decimal.Zero,
			ParentID: parent.ID,
		})
	}

	if len(missing) == 0 {
		return parent
	}

	augmented := *parent
	augmented.SubAccounts = make([]*Account, 0, len(parent.SubAccounts)+len(missing))
	augmented.SubAccounts = append(augmented.SubAccounts, parent.SubAccounts...)
	augmented.SubAccounts = append(augmented.SubAccounts, missing...)
	return &augmented
}

// FindSubAccount returns the sub-account of parent holding the given token
func FindSubAccount(parent *Account, token *Currency) *Account {
	if parent == nil {
		return nil
	}
	for _, sub := range parent.SubAccounts {
		if SameCurrency(sub.Currency, token) {
			return sub
		}
	}
	return nil
}

// FlattenAccounts lists every account followed by its sub-accounts
func FlattenAccounts(accounts []*Account) []*Account {
	out := make([]*Account, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, a)
		out = append(out, a.SubAccounts...)
	}
	return out
}

// SameAccount compares two accounts by id. Two unset accounts are equal.
func SameAccount(a, b *Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
