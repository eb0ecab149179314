// Package bridge is the account subsystem: per-family logic that builds
// pending transactions, estimates the spendable amount and refreshes
// balances.
package bridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/abandonseed"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

var (
	// ErrUnsupportedFamily is returned when no bridge serves an account
	ErrUnsupportedFamily = errors.New("no bridge for currency family")

	// ErrNoAccount is returned when an operation is given no account
	ErrNoAccount = errors.New("account is required")
)

// Bridge is the per-family account logic
type Bridge interface {
	CreateTransaction(account, parent *types.Account) types.Transaction
	UpdateTransaction(tx types.Transaction, patch types.TransactionPatch) types.Transaction
	EstimateMaxSpendable(ctx context.Context, account, parent *types.Account, tx types.Transaction) (decimal.Decimal, error)
	Sync(ctx context.Context, account *types.Account) (*types.Account, error)
}

// transactions implements the family-independent part of a bridge
type transactions struct {
	family string
}

func (t transactions) CreateTransaction(account, parent *types.Account) types.Transaction {
	tx := types.Transaction{Family: t.family, Amount: decimal.Zero}
	if account.IsTokenAccount() && parent != nil {
		tx.SubAccountID = account.ID
	}
	return tx
}

func (t transactions) UpdateTransaction(tx types.Transaction, patch types.TransactionPatch) types.Transaction {
	tx.Amount = patch.Amount
	tx.Recipient = patch.Recipient
	tx.SubAccountID = patch.SubAccountID
	tx.UseAllAmount = patch.UseAllAmount
	return tx
}

// Registry resolves the bridge serving an account. Bridges are registered by
// chain currency id or by family; the currency id wins.
type Registry struct {
	bridges map[string]Bridge
	seeds   *abandonseed.Provider
}

// NewRegistry creates an empty registry. Seeds supply quote recipients.
func NewRegistry(seeds *abandonseed.Provider) *Registry {
	return &Registry{
		bridges: make(map[string]Bridge),
		seeds:   seeds,
	}
}

// Register binds a bridge to a chain currency id or a family
func (r *Registry) Register(key string, b Bridge) {
	r.bridges[key] = b
}

// Resolve returns the bridge of the chain holding account
func (r *Registry) Resolve(account, parent *types.Account) (Bridge, error) {
	main := types.MainAccount(account, parent)
	if main == nil || main.Currency == nil {
		return nil, ErrNoAccount
	}
	chain := main.Currency.MainCurrency()
	if b, ok := r.bridges[chain.ID]; ok {
		return b, nil
	}
	if b, ok := r.bridges[chain.Family]; ok {
		return b, nil
	}
	return nil, fmt.Errorf("%s: %w", chain.Family, ErrUnsupportedFamily)
}

// BuildTransaction builds the transaction a quote is requested for. The
// recipient is the abandon seed address of the source chain.
func (r *Registry) BuildTransaction(exchange swap.Exchange, amount decimal.Decimal, useAllAmount bool) (types.Transaction, error) {
	account, parent := exchange.FromAccount, exchange.FromParentAccount
	if account == nil {
		return types.Transaction{}, ErrNoAccount
	}

	b, err := r.Resolve(account, parent)
	if err != nil {
		return types.Transaction{}, err
	}

	recipient, err := r.seeds.Address(types.AccountCurrency(types.MainAccount(account, parent)))
	if err != nil {
		return types.Transaction{}, err
	}

	tx := b.CreateTransaction(account, parent)
	return b.UpdateTransaction(tx, types.TransactionPatch{
		Amount:       amount,
		Recipient:    recipient,
		SubAccountID: tx.SubAccountID,
		UseAllAmount: useAllAmount,
	}), nil
}

// EstimateMaxSpendable delegates to the bridge of the account
func (r *Registry) EstimateMaxSpendable(ctx context.Context, account, parent *types.Account, tx types.Transaction) (decimal.Decimal, error) {
	b, err := r.Resolve(account, parent)
	if err != nil {
		return decimal.Zero, err
	}
	return b.EstimateMaxSpendable(ctx, account, parent, tx)
}

// SyncAll refreshes every account. Accounts whose bridge fails are kept as
// they were and reported in the joined error.
func (r *Registry) SyncAll(ctx context.Context, accounts []*types.Account) ([]*types.Account, error) {
	out := make([]*types.Account, 0, len(accounts))
	var errs []error
	for _, account := range accounts {
		b, err := r.Resolve(account, nil)
		if err == nil {
			var synced *types.Account
			synced, err = b.Sync(ctx, account)
			if err == nil {
				out = append(out, synced)
				continue
			}
		}
		errs = append(errs, fmt.Errorf("sync %s: %w", account.ID, err))
		out = append(out, account)
	}
	return out, errors.Join(errs...)
}

// spendable clamps a balance net of fees to zero
func spendable(balance, fees decimal.Decimal) decimal.Decimal {
	left := balance.Sub(fees)
	if left.IsNegative() {
		return decimal.Zero
	}
	return left
}

// withBalances returns a copy of account with refreshed balances
func withBalances(account *types.Account, balance decimal.Decimal, subBalances map[string]decimal.Decimal) *types.Account {
	out := *account
	out.Balance = balance
	if len(account.SubAccounts) > 0 {
		out.SubAccounts = make([]*types.Account, len(account.SubAccounts))
		for i, sub := range account.SubAccounts {
			copied := *sub
			if b, ok := subBalances[sub.ID]; ok {
				copied.Balance = b
			}
			out.SubAccounts[i] = &copied
		}
	}
	return &out
}
