package types

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryFind(t *testing.T) {
	r := DefaultRegistry()

	btc, err := r.Find("btc", "")
	require.NoError(t, err)
	assert.Equal(t, "bitcoin", btc.ID)

	usdc, err := r.Find("USDC", "sol")
	require.NoError(t, err)
	assert.Equal(t, "solana/spl/usdc", usdc.ID)
	assert.Equal(t, "solana", usdc.MainCurrency().ID)

	_, err = r.Find("USDC", "")
	assert.Error(t, err, "USDC exists on two chains")

	byID, err := r.Find("ethereum/erc20/usd__coin", "")
	require.NoError(t, err)
	assert.Equal(t, "USDC", byID.Ticker)

	_, err = r.Find("DOGE", "")
	assert.Error(t, err)
}

func TestNewRegistryRejectsOrphanToken(t *testing.T) {
	_, err := NewRegistry(&Currency{ID: "tok", Type: TokenCurrency})
	assert.Error(t, err)

	_, err = NewRegistry(&Currency{ID: "a"}, &Currency{ID: "a"})
	assert.Error(t, err)
}

func TestAccountWithMandatoryTokens(t *testing.T) {
	r := DefaultRegistry()
	eth, _ := r.Get("ethereum")
	usdc, _ := r.Get("ethereum/erc20/usd__coin")
	solUSDC, _ := r.Get("solana/spl/usdc")

	parent := &Account{ID: "eth-1", Name: "Ethereum 1", Currency: eth, Balance: decimal.NewFromInt(5)}

	augmented := AccountWithMandatoryTokens(parent, []*Currency{usdc, solUSDC})
	require.NotSame(t, parent, augmented)
	assert.Empty(t, parent.SubAccounts, "input must not be mutated")
	require.Len(t, augmented.SubAccounts, 1, "tokens of other chains are ignored")

	sub := FindSubAccount(augmented, usdc)
	require.NotNil(t, sub)
	assert.Equal(t, "eth-1+ethereum/erc20/usd__coin", sub.ID)
	assert.Equal(t, parent.ID, sub.ParentID)
	assert.True(t, sub.Balance.IsZero())

	again := AccountWithMandatoryTokens(augmented, []*Currency{usdc})
	assert.Same(t, augmented, again, "nothing to add returns the account itself")

	assert.Nil(t, AccountWithMandatoryTokens(nil, []*Currency{usdc}))
}

func TestUnitConversion(t *testing.T) {
	btc, _ := DefaultRegistry().Get("bitcoin")

	sats, err := ToSmallestUnit(btc, "0.5")
	require.NoError(t, err)
	assert.True(t, sats.Equal(decimal.NewFromInt(50_000_000)))

	sats, err = ToSmallestUnit(btc, "0.000000019")
	require.NoError(t, err)
	assert.True(t, sats.Equal(decimal.NewFromInt(1)), "sub-satoshi digits are truncated")

	_, err = ToSmallestUnit(btc, "-1")
	assert.Error(t, err)
	_, err = ToSmallestUnit(btc, "abc")
	assert.Error(t, err)

	assert.Equal(t, "0.5 BTC", FormatAmount(btc, decimal.NewFromInt(50_000_000)))
}

func TestSameAccount(t *testing.T) {
	a := &Account{ID: "a"}
	assert.True(t, SameAccount(nil, nil))
	assert.False(t, SameAccount(a, nil))
	assert.True(t, SameAccount(a, &Account{ID: "a"}))
}
