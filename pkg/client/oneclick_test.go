package client

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"wallet-swap/pkg/types"
)

func currencies(t *testing.T) (btc, eth, usdc, solUSDC *types.Currency) {
	t.Helper()
	reg := types.DefaultRegistry()
	get := func(id string) *types.Currency {
		c, err := reg.Get(id)
		require.NoError(t, err)
		return c
	}
	return get("bitcoin"), get("ethereum"), get("ethereum/erc20/usd__coin"), get("solana/spl/usdc")
}

var listing = []TokenInfo{
	{AssetID: "nep141:btc.omft.near", Symbol: "BTC", Blockchain: "btc", Decimals: 8},
	{AssetID: "nep141:eth.omft.near", Symbol: "ETH", Blockchain: "eth", Decimals: 18},
	{AssetID: "nep141:eth-0xfake.omft.near", Symbol: "ETH", Blockchain: "eth", ContractAddress: "0xfake", Decimals: 18},
	{AssetID: "nep141:eth-0xa0b8.omft.near", Symbol: "USDC", Blockchain: "eth", ContractAddress: "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", Decimals: 6},
	{AssetID: "nep141:sol-usdc.omft.near", Symbol: "USDC", Blockchain: "sol", ContractAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Decimals: 6},
}

func TestMatchToken(t *testing.T) {
	btc, eth, usdc, solUSDC := currencies(t)

	got, err := MatchToken(listing, btc)
	require.NoError(t, err)
	assert.Equal(t, "nep141:btc.omft.near", got.AssetID)

	got, err = MatchToken(listing, eth)
	require.NoError(t, err)
	assert.Equal(t, "nep141:eth.omft.near", got.AssetID, "native currencies skip contract tokens")

	got, err = MatchToken(listing, usdc)
	require.NoError(t, err)
	assert.Equal(t, "nep141:eth-0xa0b8.omft.near", got.AssetID, "contract match is case-insensitive")

	got, err = MatchToken(listing, solUSDC)
	require.NoError(t, err)
	assert.Equal(t, "sol", got.Blockchain)

	_, err = MatchToken(listing[:1], eth)
	assert.ErrorIs(t, err, ErrTokenNotSupported)

	_, err = MatchToken(listing, nil)
	assert.Error(t, err)
}

func TestRateFromAmounts(t *testing.T) {
	btc, eth, _, _ := currencies(t)

	r, err := RateFromAmounts(btc, eth, "0.5", "10")
	require.NoError(t, err)
	assert.True(t, r.Rate.Equal(decimal.NewFromInt(20)), r.Rate.String())
	assert.True(t, r.MagnitudeAwareRate.Equal(decimal.NewFromInt(20).Shift(10)))
	assert.True(t, r.ToAmount.Equal(decimal.NewFromInt(10).Shift(18)))
	assert.Equal(t, Provider, r.Provider)
	assert.NotEmpty(t, r.RateID)

	other, err := RateFromAmounts(btc, eth, "0.5", "10")
	require.NoError(t, err)
	assert.NotEqual(t, r.RateID, other.RateID)

	// 1 sat in smallest units is worth rate * 10^10 wei
	sat := decimal.NewFromInt(1)
	assert.True(t, sat.Mul(r.MagnitudeAwareRate).Equal(decimal.RequireFromString("200000000000")))

	_, err = RateFromAmounts(btc, eth, "0", "10")
	assert.Error(t, err)
	_, err = RateFromAmounts(btc, eth, "abc", "10")
	assert.Error(t, err)
	_, err = RateFromAmounts(btc, eth, "1", "")
	assert.Error(t, err)
}

func response(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader(body))}
}

func TestAPIError(t *testing.T) {
	cause := errors.New("400 Bad Request")

	err := apiError("failed to get quote", response(400, `{"message":"amount is too low"}`), cause)
	assert.EqualError(t, err, "API error (status 400): amount is too low")

	err = apiError("failed to get quote", response(422, `{"errors":["bad asset"]}`), cause)
	assert.Contains(t, err.Error(), "bad asset")

	err = apiError("failed to get quote", response(502, "upstream down\n"), cause)
	assert.EqualError(t, err, "API error (status 502): upstream down")

	err = apiError("failed to get quote", response(500, ""), cause)
	assert.ErrorIs(t, err, cause)

	err = apiError("failed to get quote", nil, cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to get quote")
}

func TestNewOneClickClientDefaults(t *testing.T) {
	c := NewOneClickClient(Options{BaseURL: "https://example.test/", RequestsPerSecond: 0})
	assert.Equal(t, rate.Inf, c.limiter.Limit(), "no throttling without a rate")

	c = NewOneClickClient(Options{RequestsPerSecond: 2})
	assert.InDelta(t, 2.0, float64(c.limiter.Limit()), 1e-9)
}
