package abandonseed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestDefaultsAreValid(t *testing.T) {
	reg := types.DefaultRegistry()
	p, err := New(reg, nil)
	require.NoError(t, err)

	for _, c := range reg.All() {
		address, err := p.Address(c)
		require.NoError(t, err, c.ID)
		assert.NoError(t, Validate(c, address), c.ID)
	}
}

func TestTokensUseParentAddress(t *testing.T) {
	reg := types.DefaultRegistry()
	p, err := New(reg, nil)
	require.NoError(t, err)

	eth, err := reg.Get("ethereum")
	require.NoError(t, err)
	usdc, err := reg.Get("ethereum/erc20/usd__coin")
	require.NoError(t, err)

	ethAddress, err := p.Address(eth)
	require.NoError(t, err)
	usdcAddress, err := p.Address(usdc)
	require.NoError(t, err)
	assert.Equal(t, ethAddress, usdcAddress)
}

func TestOverrides(t *testing.T) {
	reg := types.DefaultRegistry()
	custom := "0x0000000000000000000000000000000000000abc"

	p, err := New(reg, map[string]string{"ethereum/erc20/usd__coin": custom})
	require.NoError(t, err)

	eth, _ := reg.Get("ethereum")
	address, err := p.Address(eth)
	require.NoError(t, err)
	assert.Equal(t, custom, address, "overrides apply to the whole chain")

	_, err = New(reg, map[string]string{"ethereum": "not-an-address"})
	assert.Error(t, err)

	_, err = New(reg, map[string]string{"bitcoin": "0x9858EfFD232B4033E47d90003D41EC34EcaEda94"})
	assert.Error(t, err)

	_, err = New(reg, map[string]string{"dogecoin": "D123"})
	assert.Error(t, err)
}

func TestUnknownFamily(t *testing.T) {
	p, err := New(types.DefaultRegistry(), nil)
	require.NoError(t, err)

	_, err = p.Address(&types.Currency{ID: "tezos", Family: "tezos"})
	assert.ErrorIs(t, err, ErrUnknownCurrency)

	_, err = p.Address(nil)
	assert.ErrorIs(t, err, ErrUnknownCurrency)
}
