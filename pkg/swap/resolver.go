package swap

import (
	"wallet-swap/pkg/types"
)

// Resolution is the account pair selected for one side of the swap. Both
// fields nil means no eligible account, which is a valid outcome.
type Resolution struct {
	Account       *types.Account
	ParentAccount *types.Account
}

// Empty returns true when no account was selected
func (r Resolution) Empty() bool {
	return r.Account == nil
}

func (r Resolution) same(o Resolution) bool {
	return types.SameAccount(r.Account, o.Account) && types.SameAccount(r.ParentAccount, o.ParentAccount)
}

// sameCurrencyFilter matches accounts holding the currency, or the chain
// account owning it when the currency is a token
func sameCurrencyFilter(c *types.Currency) func(*types.Account) bool {
	return func(a *types.Account) bool {
		if c == nil {
			return false
		}
		ac := types.AccountCurrency(a)
		return types.SameCurrency(c, ac) || (c.IsToken() && types.SameCurrency(c.Parent, ac))
	}
}

// ValidFromAccounts lists the accounts that can fund a swap out of c
func ValidFromAccounts(accounts []*types.Account, c *types.Currency) []*types.Account {
	match := sameCurrencyFilter(c)
	var valid []*types.Account
	for _, a := range accounts {
		if match(a) && a.HasBalance() {
			valid = append(valid, a)
		}
	}
	return valid
}

// ValidToAccounts lists the accounts that can receive c. Tokens are received
// by an account of their parent chain.
func ValidToAccounts(accounts []*types.Account, c *types.Currency) []*types.Account {
	target := c
	if c.IsToken() {
		target = c.Parent
	}
	match := sameCurrencyFilter(target)
	var valid []*types.Account
	for _, a := range accounts {
		if match(a) {
			valid = append(valid, a)
		}
	}
	return valid
}

// ResolveFromAccount selects the source account for currency. The current
// selection is kept when it already holds the currency. The boolean reports
// whether the resolution differs from current.
func ResolveFromAccount(accounts []*types.Account, currency *types.Currency, current Resolution) (Resolution, bool) {
	if currency == nil || holds(current.Account, currency) {
		return current, false
	}

	res := pick(ValidFromAccounts(accounts, currency), currency)
	return res, !res.same(current)
}

// ResolveToAccount selects the destination account for currency. Nothing is
// selected when the destination names the source currency.
func ResolveToAccount(accounts []*types.Account, currency, from *types.Currency, current Resolution) (Resolution, bool) {
	if currency == nil {
		return current, false
	}
	if types.SameCurrency(currency, from) {
		res := Resolution{}
		return res, !res.same(current)
	}
	if holds(current.Account, currency) {
		return current, false
	}

	res := pick(ValidToAccounts(accounts, currency), currency)
	return res, !res.same(current)
}

// pick takes the first candidate. For tokens the candidate is the parent
// chain account and the token sub-account is materialized on it.
func pick(candidates []*types.Account, currency *types.Currency) Resolution {
	if len(candidates) == 0 {
		return Resolution{}
	}

	first := candidates[0]
	if !currency.IsToken() {
		return Resolution{Account: first}
	}

	sub := types.FindSubAccount(types.AccountWithMandatoryTokens(first, []*types.Currency{currency}), currency)
	if sub == nil {
		return Resolution{}
	}
	return Resolution{Account: sub, ParentAccount: first}
}

func holds(a *types.Account, c *types.Currency) bool {
	return a != nil && types.SameCurrency(types.AccountCurrency(a), c)
}
