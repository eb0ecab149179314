package swap

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// Apply returns the state that results from applying action to s.
//
// A quote is only valid for the exact accounts and amount it was computed
// against: every transition changing a currency, an account or the amount
// drops the committed rate together with its timestamp.
func Apply(s State, action Action) State {
	switch a := action.(type) {
	case SetFromCurrency:
		if sameSelection(a.Currency, s.FromCurrency) {
			return s
		}
		s.FromCurrency = a.Currency
		s.Swap.Exchange.FromAccount = nil
		s.Swap.Exchange.FromParentAccount = nil
		s.FromAmount = decimal.Zero
		s.UseAllAmount = false
		if a.Currency != nil && types.SameCurrency(a.Currency, s.ToCurrency) {
			s.ToCurrency = firstOtherCurrency(s.OKCurrencies, a.Currency)
			s.Swap.Exchange.ToAccount = nil
			s.Swap.Exchange.ToParentAccount = nil
		}
		return invalidate(s)

	case SetToCurrency:
		if sameSelection(a.Currency, s.ToCurrency) {
			return s
		}
		s.ToCurrency = a.Currency
		s.Swap.Exchange.ToAccount = nil
		s.Swap.Exchange.ToParentAccount = nil
		return invalidate(s)

	case SetFromAccount:
		return applyExchange(s, Exchange{
			FromAccount:       a.Account,
			FromParentAccount: a.ParentAccount,
			ToAccount:         s.Swap.Exchange.ToAccount,
			ToParentAccount:   s.Swap.Exchange.ToParentAccount,
		})

	case SetToAccount:
		return applyExchange(s, Exchange{
			FromAccount:       s.Swap.Exchange.FromAccount,
			FromParentAccount: s.Swap.Exchange.FromParentAccount,
			ToAccount:         a.Account,
			ToParentAccount:   a.ParentAccount,
		})

	case PatchExchange:
		next := s.Swap.Exchange
		if a.Fields&FieldFromAccount != 0 {
			next.FromAccount = a.Patch.FromAccount
		}
		if a.Fields&FieldFromParentAccount != 0 {
			next.FromParentAccount = a.Patch.FromParentAccount
		}
		if a.Fields&FieldToAccount != 0 {
			next.ToAccount = a.Patch.ToAccount
		}
		if a.Fields&FieldToParentAccount != 0 {
			next.ToParentAccount = a.Patch.ToParentAccount
		}
		return applyExchange(s, next)

	case SetFromAmount:
		amount := a.Amount
		if amount.IsNegative() {
			amount = decimal.Zero
		}
		s.FromAmount = amount
		s.UseAllAmount = a.UseAllAmount
		return invalidate(s)

	case SetRate:
		rate := a.Rate
		at := a.At
		if at.IsZero() {
			at = time.Now()
		}
		s.Swap.ExchangeRate = &rate
		s.RatesTimestamp = at
		s.Error = nil
		return s

	case SetError:
		s.Error = a.Err
		return s

	case ExpireRates:
		return clearRate(s)

	default:
		return s
	}
}

// applyExchange commits a new exchange tuple. A different source account
// resets the amount; any identity change drops the quote.
func applyExchange(s State, next Exchange) State {
	if next.sameAs(s.Swap.Exchange) {
		s.Swap.Exchange = next
		return s
	}

	if !types.SameAccount(next.FromAccount, s.Swap.Exchange.FromAccount) {
		s.FromAmount = decimal.Zero
		s.UseAllAmount = false
	}
	s.Swap.Exchange = next
	return invalidate(s)
}

// invalidate drops the quote and the error of the superseded snapshot
func invalidate(s State) State {
	s.Error = nil
	return clearRate(s)
}

func clearRate(s State) State {
	s.Swap.ExchangeRate = nil
	s.RatesTimestamp = time.Time{}
	return s
}

func sameSelection(a, b *types.Currency) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.ID == b.ID
}
