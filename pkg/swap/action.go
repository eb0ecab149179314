package swap

import (
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// Action is a named transition of the swap form. The set of actions is closed.
type Action interface {
	Name() string
	isAction()
}

// SetFromCurrency selects the source currency and forces account re-resolution
type SetFromCurrency struct {
	Currency *types.Currency
}

// SetToCurrency selects the destination currency and forces account re-resolution
type SetToCurrency struct {
	Currency *types.Currency
}

// SetFromAccount commits a resolved source account pair
type SetFromAccount struct {
	Account       *types.Account
	ParentAccount *types.Account
}

// SetToAccount commits a resolved destination account pair
type SetToAccount struct {
	Account       *types.Account
	ParentAccount *types.Account
}

// ExchangeField selects the members of the exchange tuple a patch overwrites
type ExchangeField uint8

const (
	FieldFromAccount ExchangeField = 1 << iota
	FieldFromParentAccount
	FieldToAccount
	FieldToParentAccount
)

// PatchExchange shallow-merges the fields listed in Fields into the exchange
type PatchExchange struct {
	Fields ExchangeField
	Patch  Exchange
}

// PatchToAccount builds the patch used when the user picks another destination account
func PatchToAccount(account, parent *types.Account) PatchExchange {
	return PatchExchange{
		Fields: FieldToAccount | FieldToParentAccount,
		Patch:  Exchange{ToAccount: account, ToParentAccount: parent},
	}
}

// SetFromAmount sets the amount in smallest units. UseAllAmount defaults to false.
type SetFromAmount struct {
	Amount       decimal.Decimal
	UseAllAmount bool
}

// SetRate commits a successful quote. A zero At is stamped by the store.
type SetRate struct {
	Rate ExchangeRate
	At   time.Time
}

// SetError commits a failed quote attempt
type SetError struct {
	Err error
}

// ExpireRates drops the committed quote
type ExpireRates struct{}

func (SetFromCurrency) Name() string { return "setFromCurrency" }
func (SetToCurrency) Name() string   { return "setToCurrency" }
func (SetFromAccount) Name() string  { return "setFromAccount" }
func (SetToAccount) Name() string    { return "setToAccount" }
func (PatchExchange) Name() string   { return "patchExchange" }
func (SetFromAmount) Name() string   { return "setFromAmount" }
func (SetRate) Name() string         { return "setRate" }
func (SetError) Name() string        { return "setError" }
func (ExpireRates) Name() string     { return "expireRates" }

func (SetFromCurrency) isAction() {}
func (SetToCurrency) isAction()   {}
func (SetFromAccount) isAction()  {}
func (SetToAccount) isAction()    {}
func (PatchExchange) isAction()   {}
func (SetFromAmount) isAction()   {}
func (SetRate) isAction()         {}
func (SetError) isAction()        {}
func (ExpireRates) isAction()     {}
