package bridge

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// balanceOf(address) function ABI
const erc20BalanceOfABI = `[{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"}]`

// ERC-20 transfers are budgeted at a fixed gas limit when none is configured
const defaultTokenGasLimit = uint64(100000)

// EVMClient is the part of ethclient.Client the bridge needs
type EVMClient interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMOptions overrides network-suggested fee parameters
type EVMOptions struct {
	GasPrice *int64
	GasLimit *uint64
}

// EVMBridge serves accounts of an EVM chain and their ERC-20 tokens
type EVMBridge struct {
	transactions
	client    EVMClient
	opts      EVMOptions
	balanceOf abi.ABI
}

// DialEVM connects to an EVM JSON-RPC endpoint
func DialEVM(rpcURL string) (*ethclient.Client, error) {
	client, err := ethclient.Dial(rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}
	return client, nil
}

// NewEVMBridge creates a bridge over client
func NewEVMBridge(client EVMClient, opts EVMOptions) (*EVMBridge, error) {
	parsed, err := abi.JSON(strings.NewReader(erc20BalanceOfABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse balanceOf ABI: %w", err)
	}
	return &EVMBridge{
		transactions: transactions{family: types.FamilyEVM},
		client:       client,
		opts:         opts,
		balanceOf:    parsed,
	}, nil
}

// EstimateMaxSpendable returns the balance net of the transfer fee. Token
// balances are spendable in full when the parent can pay the fee.
func (b *EVMBridge) EstimateMaxSpendable(ctx context.Context, account, parent *types.Account, _ types.Transaction) (decimal.Decimal, error) {
	if account == nil {
		return decimal.Zero, ErrNoAccount
	}

	gasPrice, err := b.getGasPrice(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if account.IsTokenAccount() {
		fee := decimal.NewFromBigInt(gasPrice, 0).Mul(decimal.NewFromUint64(b.gasLimit(defaultTokenGasLimit)))
		if parent != nil && parent.Balance.LessThan(fee) {
			return decimal.Zero, fmt.Errorf("insufficient %s balance for network fee: have %s, need %s",
				parent.Currency.Ticker, parent.Balance, fee)
		}
		return spendable(account.Balance, decimal.Zero), nil
	}

	fee := decimal.NewFromBigInt(gasPrice, 0).Mul(decimal.NewFromUint64(b.gasLimit(params.TxGas)))
	return spendable(account.Balance, fee), nil
}

// Sync reads the native balance and the balanceOf of every token sub-account
func (b *EVMBridge) Sync(ctx context.Context, account *types.Account) (*types.Account, error) {
	if account == nil {
		return nil, ErrNoAccount
	}
	if !common.IsHexAddress(account.Address) {
		return nil, fmt.Errorf("invalid EVM address: %s", account.Address)
	}
	owner := common.HexToAddress(account.Address)

	balance, err := b.client.BalanceAt(ctx, owner, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get balance: %w", err)
	}

	subBalances := make(map[string]decimal.Decimal, len(account.SubAccounts))
	for _, sub := range account.SubAccounts {
		contract := sub.Currency.ContractAddress
		if !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("invalid token contract address: %s", contract)
		}
		tokenBalance, err := b.getERC20Balance(ctx, common.HexToAddress(contract), owner)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s balance: %w", sub.Currency.Ticker, err)
		}
		subBalances[sub.ID] = decimal.NewFromBigInt(tokenBalance, 0)
	}

	return withBalances(account, decimal.NewFromBigInt(balance, 0), subBalances), nil
}

// getGasPrice returns the configured gas price, or the network suggestion
func (b *EVMBridge) getGasPrice(ctx context.Context) (*big.Int, error) {
	if b.opts.GasPrice != nil {
		return big.NewInt(*b.opts.GasPrice), nil
	}

	gasPrice, err := b.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	return gasPrice, nil
}

func (b *EVMBridge) gasLimit(fallback uint64) uint64 {
	if b.opts.GasLimit != nil {
		return *b.opts.GasLimit
	}
	return fallback
}

// getERC20Balance gets the balance of an ERC20 token for an address
func (b *EVMBridge) getERC20Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	data, err := b.balanceOf.Pack("balanceOf", owner)
	if err != nil {
		return nil, fmt.Errorf("failed to pack balanceOf data: %w", err)
	}

	result, err := b.client.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call balanceOf: %w", err)
	}

	out, err := b.balanceOf.Unpack("balanceOf", result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack balanceOf: %w", err)
	}
	balance, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result %T", out[0])
	}
	return balance, nil
}
