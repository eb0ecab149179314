package swap

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

type fixture struct {
	btc, eth, sol, usdc *types.Currency

	btcAccount   *types.Account
	ethAccount   *types.Account
	ethEmpty     *types.Account
	solAccount   *types.Account
	accounts     []*types.Account
	selectable   []*types.Currency
	installedAll []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	reg := types.DefaultRegistry()
	get := func(id string) *types.Currency {
		c, err := reg.Get(id)
		require.NoError(t, err)
		return c
	}

	f := &fixture{
		btc:  get("bitcoin"),
		eth:  get("ethereum"),
		sol:  get("solana"),
		usdc: get("ethereum/erc20/usd__coin"),
	}
	f.btcAccount = &types.Account{ID: "btc-1", Name: "Bitcoin 1", Currency: f.btc, Address: "bc1qtest", Balance: decimal.NewFromInt(100_000_000)}
	f.ethEmpty = &types.Account{ID: "eth-0", Name: "Ethereum 0", Currency: f.eth, Address: "0x0000000000000000000000000000000000000001", Balance: decimal.Zero}
	f.ethAccount = &types.Account{ID: "eth-1", Name: "Ethereum 1", Currency: f.eth, Address: "0x0000000000000000000000000000000000000002", Balance: decimal.RequireFromString("2000000000000000000")}
	f.solAccount = &types.Account{ID: "sol-1", Name: "Solana 1", Currency: f.sol, Address: "So11111111111111111111111111111111111111112", Balance: decimal.NewFromInt(5_000_000_000)}
	f.accounts = []*types.Account{f.btcAccount, f.ethEmpty, f.ethAccount, f.solAccount}
	f.selectable = []*types.Currency{f.btc, f.eth, f.usdc, f.sol}
	f.installedAll = []string{"Bitcoin", "Ethereum", "Solana"}
	return f
}

// readyState returns a btc -> eth snapshot that satisfies CanRequestRates
func (f *fixture) readyState() State {
	s := InitState(InitParams{OKCurrencies: []*types.Currency{f.btc, f.eth}})
	s = Apply(s, SetFromAccount{Account: f.btcAccount})
	s = Apply(s, SetToAccount{Account: f.ethAccount})
	return Apply(s, SetFromAmount{Amount: decimal.NewFromInt(50_000_000)})
}

func testRate(value string) ExchangeRate {
	r := decimal.RequireFromString(value)
	return ExchangeRate{Rate: r, MagnitudeAwareRate: r.Shift(10), Provider: "test", RateID: "rate-" + value}
}

type stubBuilder struct{}

func (stubBuilder) BuildTransaction(exchange Exchange, amount decimal.Decimal, useAll bool) (types.Transaction, error) {
	return types.Transaction{
		Family:       exchange.FromCurrency().Family,
		Amount:       amount,
		Recipient:    "abandon-seed",
		UseAllAmount: useAll,
	}, nil
}

type pricingReply struct {
	rates []ExchangeRate
	err   error
}

type pricingCall struct {
	exchange Exchange
	tx       types.Transaction
	reply    chan pricingReply
}

// manualPricing hands every request to the test, which answers it explicitly
type manualPricing struct {
	calls chan pricingCall
}

func newManualPricing() *manualPricing {
	return &manualPricing{calls: make(chan pricingCall, 16)}
}

func (p *manualPricing) GetExchangeRates(ctx context.Context, exchange Exchange, tx types.Transaction) ([]ExchangeRate, error) {
	call := pricingCall{exchange: exchange, tx: tx, reply: make(chan pricingReply, 1)}
	p.calls <- call
	select {
	case r := <-call.reply:
		return r.rates, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// instantPricing answers every request with the same rate
type instantPricing struct {
	mu    sync.Mutex
	rate  ExchangeRate
	calls int
}

func (p *instantPricing) GetExchangeRates(_ context.Context, _ Exchange, _ types.Transaction) ([]ExchangeRate, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return []ExchangeRate{p.rate}, nil
}

func (p *instantPricing) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubEstimator struct {
	max decimal.Decimal
}

func (e stubEstimator) EstimateMaxSpendable(_ context.Context, _, _ *types.Account, _ types.Transaction) (decimal.Decimal, error) {
	return e.max, nil
}
