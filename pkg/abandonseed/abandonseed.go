// Package abandonseed provides well-known addresses of the public BIP39 test
// mnemonic ("abandon ... about"). They stand in for the real recipient when a
// transaction is only built to obtain a quote or a fee estimate.
package abandonseed

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gagliardetto/solana-go"

	"wallet-swap/pkg/types"
)

// ErrUnknownCurrency is returned for currencies without a placeholder address
var ErrUnknownCurrency = errors.New("no abandon seed address for currency")

// family -> first receive address of the abandon seed
var defaults = map[string]string{
	types.FamilyBitcoin: "1LqBGSKuX5yYUonjxT5qGfpUsXKYYWeabA",
	types.FamilyEVM:     "0x9858EfFD232B4033E47d90003D41EC34EcaEda94",
	types.FamilySolana:  "GjJyeC1r2RgkuoCWMyPYkCWSGSGLcz266EaAkLA27AhL",
}

// Provider resolves placeholder addresses. Overrides are keyed by the id of
// the chain currency.
type Provider struct {
	overrides map[string]string
}

// New validates overrides against the registry
func New(registry *types.Registry, overrides map[string]string) (*Provider, error) {
	p := &Provider{overrides: make(map[string]string, len(overrides))}
	for id, address := range overrides {
		c, err := registry.Get(id)
		if err != nil {
			return nil, fmt.Errorf("abandon seed override: %w", err)
		}
		main := c.MainCurrency()
		if err := Validate(main, address); err != nil {
			return nil, fmt.Errorf("abandon seed override for %s: %w", id, err)
		}
		p.overrides[main.ID] = address
	}
	return p, nil
}

// Address returns the placeholder address of the chain holding c. Tokens use
// the address of their parent chain.
func (p *Provider) Address(c *types.Currency) (string, error) {
	if c == nil {
		return "", ErrUnknownCurrency
	}
	main := c.MainCurrency()
	if p != nil {
		if address, ok := p.overrides[main.ID]; ok {
			return address, nil
		}
	}
	if address, ok := defaults[main.Family]; ok {
		return address, nil
	}
	return "", fmt.Errorf("%s: %w", main.ID, ErrUnknownCurrency)
}

// Validate checks that address is well formed for the family of c
func Validate(c *types.Currency, address string) error {
	switch c.MainCurrency().Family {
	case types.FamilyBitcoin:
		if _, err := btcutil.DecodeAddress(address, &chaincfg.MainNetParams); err != nil {
			return fmt.Errorf("invalid bitcoin address %q: %w", address, err)
		}
	case types.FamilyEVM:
		if !common.IsHexAddress(address) {
			return fmt.Errorf("invalid EVM address %q", address)
		}
	case types.FamilySolana:
		if _, err := solana.PublicKeyFromBase58(address); err != nil {
			return fmt.Errorf("invalid solana address %q: %w", address, err)
		}
	default:
		return fmt.Errorf("%s: %w", c.ID, ErrUnknownCurrency)
	}
	return nil
}
