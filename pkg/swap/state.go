package swap

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// Exchange is the account tuple a quote is requested for
type Exchange struct {
	FromAccount       *types.Account
	FromParentAccount *types.Account
	ToAccount         *types.Account
	ToParentAccount   *types.Account
}

// FromCurrency returns the currency held by the source account
func (e Exchange) FromCurrency() *types.Currency {
	return types.AccountCurrency(e.FromAccount)
}

// ToCurrency returns the currency held by the destination account
func (e Exchange) ToCurrency() *types.Currency {
	return types.AccountCurrency(e.ToAccount)
}

// sameAs compares the tuple by account identity
func (e Exchange) sameAs(o Exchange) bool {
	return types.SameAccount(e.FromAccount, o.FromAccount) &&
		types.SameAccount(e.FromParentAccount, o.FromParentAccount) &&
		types.SameAccount(e.ToAccount, o.ToAccount) &&
		types.SameAccount(e.ToParentAccount, o.ToParentAccount)
}

// ExchangeRate is a quote returned by the pricing service
type ExchangeRate struct {
	Rate               decimal.Decimal // destination display units per source display unit
	MagnitudeAwareRate decimal.Decimal // destination smallest units per source smallest unit
	Provider           string
	RateID             string
	ToAmount           decimal.Decimal // expected destination amount, smallest units
}

// Swap pairs the exchange with the quote obtained for it
type Swap struct {
	Exchange     Exchange
	ExchangeRate *ExchangeRate
}

// State is the in-progress swap form. It is a value: transitions return a new State.
type State struct {
	OKCurrencies   []*types.Currency
	FromCurrency   *types.Currency
	ToCurrency     *types.Currency
	FromAmount     decimal.Decimal // smallest units of FromCurrency
	UseAllAmount   bool
	Swap           Swap
	RatesTimestamp time.Time
	Error          error
}

// HasRate returns true if a quote is committed for the current snapshot
func (s State) HasRate() bool {
	return s.Swap.ExchangeRate != nil
}

// ToAmount estimates the destination amount in smallest units from the committed rate
func (s State) ToAmount() (decimal.Decimal, bool) {
	if !s.HasRate() {
		return decimal.Zero, false
	}
	return s.FromAmount.Mul(s.Swap.ExchangeRate.MagnitudeAwareRate).Truncate(0), true
}

// InitParams seeds a new swap session
type InitParams struct {
	OKCurrencies         []*types.Currency
	DefaultCurrency      *types.Currency
	DefaultAccount       *types.Account
	DefaultParentAccount *types.Account
}

// InitState builds the first state of a session. The default currency is
// only honoured when it is eligible, the default account only when it holds
// funds.
func InitState(p InitParams) State {
	s := State{
		OKCurrencies: p.OKCurrencies,
		FromAmount:   decimal.Zero,
	}

	if p.DefaultCurrency != nil && containsCurrency(p.OKCurrencies, p.DefaultCurrency) {
		s.FromCurrency = p.DefaultCurrency
	}

	if p.DefaultAccount.HasBalance() {
		currency := types.AccountCurrency(p.DefaultAccount)
		if s.FromCurrency == nil && containsCurrency(p.OKCurrencies, currency) {
			s.FromCurrency = currency
		}
		if types.SameCurrency(currency, s.FromCurrency) {
			s.Swap.Exchange.FromAccount = p.DefaultAccount
			s.Swap.Exchange.FromParentAccount = p.DefaultParentAccount
		}
	}

	if s.FromCurrency == nil && len(p.OKCurrencies) > 0 {
		s.FromCurrency = p.OKCurrencies[0]
	}
	s.ToCurrency = firstOtherCurrency(p.OKCurrencies, s.FromCurrency)

	return s
}

func containsCurrency(list []*types.Currency, c *types.Currency) bool {
	for _, item := range list {
		if types.SameCurrency(item, c) {
			return true
		}
	}
	return false
}

func firstOtherCurrency(list []*types.Currency, c *types.Currency) *types.Currency {
	for _, item := range list {
		if !types.SameCurrency(item, c) {
			return item
		}
	}
	return nil
}
