package swap

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestInitState(t *testing.T) {
	f := newFixture(t)
	ok := []*types.Currency{f.btc, f.eth, f.sol}

	s := InitState(InitParams{OKCurrencies: ok})
	assert.Equal(t, f.btc, s.FromCurrency)
	assert.Equal(t, f.eth, s.ToCurrency)
	assert.True(t, s.FromAmount.IsZero())
	assert.False(t, s.HasRate())

	s = InitState(InitParams{OKCurrencies: ok, DefaultCurrency: f.sol})
	assert.Equal(t, f.sol, s.FromCurrency)
	assert.Equal(t, f.btc, s.ToCurrency)

	s = InitState(InitParams{OKCurrencies: ok, DefaultCurrency: f.usdc})
	assert.Equal(t, f.btc, s.FromCurrency, "ineligible default currency is ignored")

	s = InitState(InitParams{OKCurrencies: ok, DefaultAccount: f.ethAccount})
	assert.Equal(t, f.eth, s.FromCurrency)
	assert.Equal(t, f.ethAccount, s.Swap.Exchange.FromAccount)

	s = InitState(InitParams{OKCurrencies: ok, DefaultAccount: f.ethEmpty})
	assert.Equal(t, f.btc, s.FromCurrency, "empty default account is ignored")
	assert.Nil(t, s.Swap.Exchange.FromAccount)

	s = InitState(InitParams{})
	assert.Nil(t, s.FromCurrency)
	assert.Nil(t, s.ToCurrency)
}

func TestSetFromCurrencyClearsSourceSide(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})
	require.True(t, s.HasRate())

	s = Apply(s, SetFromCurrency{Currency: f.sol})
	assert.Equal(t, f.sol, s.FromCurrency)
	assert.Nil(t, s.Swap.Exchange.FromAccount)
	assert.Nil(t, s.Swap.Exchange.FromParentAccount)
	assert.True(t, s.FromAmount.IsZero())
	assert.False(t, s.UseAllAmount)
	assert.False(t, s.HasRate())
	assert.True(t, s.RatesTimestamp.IsZero())
	assert.Equal(t, f.ethAccount, s.Swap.Exchange.ToAccount, "destination untouched")
}

func TestSetFromCurrencyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})

	next := Apply(s, SetFromCurrency{Currency: f.btc})
	assert.Equal(t, s, next)
}

func TestSetFromCurrencyEqualToDestination(t *testing.T) {
	f := newFixture(t)
	s := f.readyState()

	s = Apply(s, SetFromCurrency{Currency: f.eth})
	assert.Equal(t, f.eth, s.FromCurrency)
	assert.Equal(t, f.btc, s.ToCurrency)
	assert.Nil(t, s.Swap.Exchange.ToAccount)
}

func TestSetToCurrencyClearsDestination(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})

	s = Apply(s, SetToCurrency{Currency: f.sol})
	assert.Equal(t, f.sol, s.ToCurrency)
	assert.Nil(t, s.Swap.Exchange.ToAccount)
	assert.Nil(t, s.Swap.Exchange.ToParentAccount)
	assert.Equal(t, f.btcAccount, s.Swap.Exchange.FromAccount)
	assert.True(t, s.FromAmount.Equal(decimal.NewFromInt(50_000_000)), "amount kept")
	assert.False(t, s.HasRate())
}

func TestAccountChanges(t *testing.T) {
	f := newFixture(t)
	other := &types.Account{ID: "btc-2", Currency: f.btc, Balance: decimal.NewFromInt(10)}

	t.Run("new source account resets amount", func(t *testing.T) {
		s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})
		s = Apply(s, SetFromAccount{Account: other})
		assert.Equal(t, other, s.Swap.Exchange.FromAccount)
		assert.True(t, s.FromAmount.IsZero())
		assert.False(t, s.HasRate())
	})

	t.Run("new destination keeps amount", func(t *testing.T) {
		s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})
		s = Apply(s, PatchToAccount(f.ethEmpty, nil))
		assert.Equal(t, f.ethEmpty, s.Swap.Exchange.ToAccount)
		assert.Equal(t, f.btcAccount, s.Swap.Exchange.FromAccount)
		assert.False(t, s.FromAmount.IsZero())
		assert.False(t, s.HasRate())
	})

	t.Run("same identity keeps the quote", func(t *testing.T) {
		s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})
		refreshed := *f.btcAccount
		refreshed.Balance = decimal.NewFromInt(1)
		s = Apply(s, SetFromAccount{Account: &refreshed})
		assert.Same(t, &refreshed, s.Swap.Exchange.FromAccount)
		assert.True(t, s.HasRate())
		assert.False(t, s.FromAmount.IsZero())
	})

	t.Run("patch only overwrites listed fields", func(t *testing.T) {
		s := f.readyState()
		s = Apply(s, PatchExchange{Fields: FieldToParentAccount, Patch: Exchange{ToParentAccount: f.ethEmpty, ToAccount: f.solAccount}})
		assert.Equal(t, f.ethAccount, s.Swap.Exchange.ToAccount)
		assert.Equal(t, f.ethEmpty, s.Swap.Exchange.ToParentAccount)
	})
}

func TestSetFromAmount(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()})

	s = Apply(s, SetFromAmount{Amount: decimal.NewFromInt(7), UseAllAmount: true})
	assert.True(t, s.FromAmount.Equal(decimal.NewFromInt(7)))
	assert.True(t, s.UseAllAmount)
	assert.False(t, s.HasRate())

	s = Apply(s, SetFromAmount{Amount: decimal.NewFromInt(-3)})
	assert.True(t, s.FromAmount.IsZero(), "negative amounts are clamped")
	assert.False(t, s.UseAllAmount)
}

func TestRateLifecycle(t *testing.T) {
	f := newFixture(t)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := f.readyState()

	s = Apply(s, SetRate{Rate: testRate("20"), At: at})
	require.True(t, s.HasRate())
	assert.Equal(t, at, s.RatesTimestamp)
	assert.Equal(t, "test", s.Swap.ExchangeRate.Provider)

	toAmount, ok := s.ToAmount()
	require.True(t, ok)
	assert.True(t, toAmount.Equal(decimal.RequireFromString("10000000000000000000")))

	boom := errors.New("boom")
	s = Apply(s, SetError{Err: boom})
	assert.ErrorIs(t, s.Error, boom)
	assert.True(t, s.HasRate(), "an error keeps the previous quote")

	s = Apply(s, SetRate{Rate: testRate("21"), At: at.Add(time.Second)})
	assert.NoError(t, s.Error)

	s = Apply(s, ExpireRates{})
	assert.False(t, s.HasRate())
	assert.True(t, s.RatesTimestamp.IsZero())

	next := Apply(s, ExpireRates{})
	assert.Equal(t, s, next, "expiring without a quote is a no-op")
}

func TestSetRateStampsMissingTime(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetRate{Rate: testRate("1")})
	assert.False(t, s.RatesTimestamp.IsZero())
}

func TestInputChangeClearsError(t *testing.T) {
	f := newFixture(t)
	s := Apply(f.readyState(), SetError{Err: errors.New("boom")})
	s = Apply(s, SetFromAmount{Amount: decimal.NewFromInt(1)})
	assert.NoError(t, s.Error)
}

// Every reachable state keeps the rate and its timestamp paired and the
// amount non-negative, whatever the order of actions.
func TestRandomActionSequencesKeepInvariants(t *testing.T) {
	f := newFixture(t)
	currencies := []*types.Currency{f.btc, f.eth, f.sol, f.usdc}
	accounts := []*types.Account{f.btcAccount, f.ethAccount, f.ethEmpty, f.solAccount, nil}

	rng := rand.New(rand.NewSource(42))
	randomAction := func() Action {
		switch rng.Intn(9) {
		case 0:
			return SetFromCurrency{Currency: currencies[rng.Intn(len(currencies))]}
		case 1:
			return SetToCurrency{Currency: currencies[rng.Intn(len(currencies))]}
		case 2:
			return SetFromAccount{Account: accounts[rng.Intn(len(accounts))]}
		case 3:
			return SetToAccount{Account: accounts[rng.Intn(len(accounts))]}
		case 4:
			return PatchToAccount(accounts[rng.Intn(len(accounts))], nil)
		case 5:
			return SetFromAmount{Amount: decimal.NewFromInt(int64(rng.Intn(200) - 50)), UseAllAmount: rng.Intn(2) == 0}
		case 6:
			return SetRate{Rate: testRate("3"), At: time.Unix(int64(1+rng.Intn(1000)), 0)}
		case 7:
			return SetError{Err: errors.New("pricing failed")}
		default:
			return ExpireRates{}
		}
	}

	for run := 0; run < 200; run++ {
		s := InitState(InitParams{OKCurrencies: []*types.Currency{f.btc, f.eth, f.sol}})
		for step := 0; step < 50; step++ {
			action := randomAction()
			prev := s
			s = Apply(s, action)

			require.Equal(t, s.HasRate(), !s.RatesTimestamp.IsZero(), "rate and timestamp paired after %s", action.Name())
			require.False(t, s.FromAmount.IsNegative())

			if !types.SameAccount(prev.Swap.Exchange.FromAccount, s.Swap.Exchange.FromAccount) {
				require.True(t, s.FromAmount.IsZero(), "amount reset after %s", action.Name())
				require.False(t, s.HasRate())
			}
			if _, ok := action.(SetFromCurrency); ok && !sameSelection(prev.FromCurrency, s.FromCurrency) {
				require.Nil(t, s.Swap.Exchange.FromAccount)
			}
		}
	}
}
