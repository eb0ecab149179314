package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// Solana fees are 5000 lamports per signature
const solanaSignatureFee = 5000

// SolanaClient is the part of rpc.Client the bridge needs
type SolanaClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
	GetTokenAccountBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetTokenAccountBalanceResult, error)
}

// SolanaBridge serves Solana accounts and their SPL tokens
type SolanaBridge struct {
	transactions
	client     SolanaClient
	commitment rpc.CommitmentType
}

// NewSolanaRPC creates a client for rpcURL
func NewSolanaRPC(rpcURL string) *rpc.Client {
	return rpc.New(rpcURL)
}

// NewSolanaBridge creates a bridge over client
func NewSolanaBridge(client SolanaClient, commitment string) *SolanaBridge {
	return &SolanaBridge{
		transactions: transactions{family: types.FamilySolana},
		client:       client,
		commitment:   parseCommitment(commitment),
	}
}

// EstimateMaxSpendable returns the balance net of the signature fee. Token
// balances are spendable in full.
func (b *SolanaBridge) EstimateMaxSpendable(_ context.Context, account, parent *types.Account, _ types.Transaction) (decimal.Decimal, error) {
	if account == nil {
		return decimal.Zero, ErrNoAccount
	}
	fee := decimal.NewFromInt(solanaSignatureFee)
	if account.IsTokenAccount() {
		if parent != nil && parent.Balance.LessThan(fee) {
			return decimal.Zero, fmt.Errorf("insufficient SOL balance for network fee: have %s lamports, need %s", parent.Balance, fee)
		}
		return spendable(account.Balance, decimal.Zero), nil
	}
	return spendable(account.Balance, fee), nil
}

// Sync reads the lamport balance and the associated token account balance
// of every token sub-account. A missing token account holds nothing.
func (b *SolanaBridge) Sync(ctx context.Context, account *types.Account) (*types.Account, error) {
	if account == nil {
		return nil, ErrNoAccount
	}
	owner, err := solana.PublicKeyFromBase58(account.Address)
	if err != nil {
		return nil, fmt.Errorf("invalid solana address: %w", err)
	}

	balance, err := b.client.GetBalance(ctx, owner, b.commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	subBalances := make(map[string]decimal.Decimal, len(account.SubAccounts))
	for _, sub := range account.SubAccounts {
		mint, err := solana.PublicKeyFromBase58(sub.Currency.ContractAddress)
		if err != nil {
			return nil, fmt.Errorf("invalid token mint address: %w", err)
		}
		amount, err := b.getTokenBalance(ctx, owner, mint)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s balance: %w", sub.Currency.Ticker, err)
		}
		subBalances[sub.ID] = amount
	}

	return withBalances(account, decimal.NewFromUint64(balance.Value), subBalances), nil
}

func (b *SolanaBridge) getTokenBalance(ctx context.Context, owner, mint solana.PublicKey) (decimal.Decimal, error) {
	ata, _, err := solana.FindAssociatedTokenAddress(owner, mint)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to derive associated token address: %w", err)
	}

	result, err := b.client.GetTokenAccountBalance(ctx, ata, b.commitment)
	if err != nil {
		if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "could not find account") {
			return decimal.Zero, nil
		}
		return decimal.Zero, err
	}
	if result == nil || result.Value == nil {
		return decimal.Zero, nil
	}

	amount, err := decimal.NewFromString(result.Value.Amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse token balance: %w", err)
	}
	return amount, nil
}

func parseCommitment(name string) rpc.CommitmentType {
	switch strings.ToLower(name) {
	case "finalized":
		return rpc.CommitmentFinalized
	case "confirmed":
		return rpc.CommitmentConfirmed
	case "processed":
		return rpc.CommitmentProcessed
	default:
		return rpc.CommitmentConfirmed
	}
}
