package types

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// SwapRequest represents a user's swap command
type SwapRequest struct {
	Amount      string
	SourceToken string
	DestToken   string
	SourceChain string
	DestChain   string
}

// Transaction is the pending transaction the swap will send from the source account
type Transaction struct {
	Family       string          `json:"family"`
	Amount       decimal.Decimal `json:"amount"` // smallest units
	Recipient    string          `json:"recipient"`
	SubAccountID string          `json:"sub_account_id,omitempty"`
	UseAllAmount bool            `json:"use_all_amount"`
}

// TransactionPatch lists the fields UpdateTransaction overwrites
type TransactionPatch struct {
	Amount       decimal.Decimal
	Recipient    string
	SubAccountID string
	UseAllAmount bool
}

// Operation is a pending operation recorded once a swap is handed to the network
type Operation struct {
	ID        string          `json:"id"`
	AccountID string          `json:"account_id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Recipient string          `json:"recipient"`
	Memo      string          `json:"memo,omitempty"`
}

// ToSmallestUnit converts a display amount ("0.5" BTC) into smallest units
func ToSmallestUnit(c *Currency, amount string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount format: %w", err)
	}
	if value.IsNegative() {
		return decimal.Zero, fmt.Errorf("amount must not be negative")
	}
	return value.Shift(c.Decimals).Truncate(0), nil
}

// FromSmallestUnit converts smallest units into a display amount
func FromSmallestUnit(c *Currency, amount decimal.Decimal) decimal.Decimal {
	return amount.Shift(-c.Decimals)
}

// FormatAmount renders smallest units with the currency ticker
func FormatAmount(c *Currency, amount decimal.Decimal) string {
	if c == nil {
		return amount.String()
	}
	return FromSmallestUnit(c, amount).String() + " " + c.Ticker
}
