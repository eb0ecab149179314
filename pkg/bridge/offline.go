package bridge

import (
	"context"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// OfflineBridge works on the stored snapshot only. A fixed reserve per chain
// currency stands in for the network fee.
type OfflineBridge struct {
	transactions
	reserve map[string]decimal.Decimal
}

// NewOfflineBridge creates a bridge for family with fee reserves in smallest units
func NewOfflineBridge(family string, reserve map[string]decimal.Decimal) *OfflineBridge {
	if reserve == nil {
		reserve = map[string]decimal.Decimal{}
	}
	return &OfflineBridge{
		transactions: transactions{family: family},
		reserve:      reserve,
	}
}

// EstimateMaxSpendable returns the balance minus the reserve. Token balances
// are spendable in full; the fee is paid by the parent.
func (b *OfflineBridge) EstimateMaxSpendable(_ context.Context, account, _ *types.Account, _ types.Transaction) (decimal.Decimal, error) {
	if account == nil {
		return decimal.Zero, ErrNoAccount
	}
	if account.IsTokenAccount() {
		return spendable(account.Balance, decimal.Zero), nil
	}
	return spendable(account.Balance, b.reserve[account.Currency.ID]), nil
}

// Sync returns the account unchanged
func (b *OfflineBridge) Sync(_ context.Context, account *types.Account) (*types.Account, error) {
	if account == nil {
		return nil, ErrNoAccount
	}
	return account, nil
}
