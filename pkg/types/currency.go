package types

import (
	"fmt"
	"strings"
)

// CurrencyType distinguishes native chain currencies from tokens living on a chain
type CurrencyType string

const (
	CryptoCurrency CurrencyType = "CryptoCurrency"
	TokenCurrency  CurrencyType = "TokenCurrency"
)

// Currency families share a bridge implementation
const (
	FamilyBitcoin = "bitcoin"
	FamilyEVM     = "evm"
	FamilySolana  = "solana"
)

// Currency describes a swappable asset
type Currency struct {
	ID              string       `json:"id"`
	Ticker          string       `json:"ticker"`
	Name            string       `json:"name"`
	Type            CurrencyType `json:"type"`
	Family          string       `json:"family"`
	Decimals        int32        `json:"decimals"`
	Chain           string       `json:"chain"`            // 1Click blockchain code (btc, eth, sol)
	ManagerAppName  string       `json:"manager_app_name"` // device app required to sign
	ContractAddress string       `json:"contract_address,omitempty"`
	Parent          *Currency    `json:"-"`
}

// IsToken returns true if the currency is a token owned by a parent chain
func (c *Currency) IsToken() bool {
	return c != nil && c.Type == TokenCurrency
}

// MainCurrency returns the chain currency: the parent for tokens, itself otherwise
func (c *Currency) MainCurrency() *Currency {
	if c.IsToken() && c.Parent != nil {
		return c.Parent
	}
	return c
}

// String implements fmt.Stringer
func (c *Currency) String() string {
	if c == nil {
		return "<none>"
	}
	return fmt.Sprintf("%s (%s)", c.Name, c.Ticker)
}

// SameCurrency compares two currencies by identifier. Two unset currencies are not equal.
func SameCurrency(a, b *Currency) bool {
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID
}

// Registry is an ordered, read-only catalogue of known currencies
type Registry struct {
	currencies []*Currency
	byID       map[string]*Currency
}

// NewRegistry builds a registry, rejecting duplicate ids and tokens without a parent
func NewRegistry(currencies ...*Currency) (*Registry, error) {
	r := &Registry{
		currencies: make([]*Currency, 0, len(currencies)),
		byID:       make(map[string]*Currency, len(currencies)),
	}

	for _, c := range currencies {
		if c.ID == "" {
			return nil, fmt.Errorf("currency id is required")
		}
		if _, exists := r.byID[c.ID]; exists {
			return nil, fmt.Errorf("currency '%s' registered twice", c.ID)
		}
		if c.IsToken() && c.Parent == nil {
			return nil, fmt.Errorf("token '%s' has no parent currency", c.ID)
		}
		r.currencies = append(r.currencies, c)
		r.byID[c.ID] = c
	}

	return r, nil
}

// All returns the currencies in registration order
func (r *Registry) All() []*Currency {
	out := make([]*Currency, len(r.currencies))
	copy(out, r.currencies)
	return out
}

// Get retrieves a currency by id
func (r *Registry) Get(id string) (*Currency, error) {
	c, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("currency '%s' not found", id)
	}
	return c, nil
}

// Find looks a currency up by id or ticker. A ticker shared by several
// currencies (USDC on two chains) needs the chain to disambiguate.
func (r *Registry) Find(symbol, chain string) (*Currency, error) {
	if c, ok := r.byID[strings.ToLower(symbol)]; ok {
		return c, nil
	}

	symbol = strings.ToUpper(symbol)
	chain = strings.ToLower(chain)

	var matches []*Currency
	for _, c := range r.currencies {
		if strings.ToUpper(c.Ticker) != symbol {
			continue
		}
		if chain != "" && c.Chain != chain {
			continue
		}
		matches = append(matches, c)
	}

	switch len(matches) {
	case 0:
		if chain != "" {
			return nil, fmt.Errorf("currency '%s' not found on chain '%s'", symbol, chain)
		}
		return nil, fmt.Errorf("currency '%s' not found", symbol)
	case 1:
		return matches[0], nil
	default:
		// Prefer the native currency over tokens sharing its ticker
		for _, c := range matches {
			if !c.IsToken() {
				return c, nil
			}
		}
		return nil, fmt.Errorf("currency '%s' is ambiguous, specify a chain", symbol)
	}
}

// TokensOf returns the registered tokens whose parent is the given currency
func (r *Registry) TokensOf(parent *Currency) []*Currency {
	var tokens []*Currency
	for _, c := range r.currencies {
		if c.IsToken() && SameCurrency(c.Parent, parent) {
			tokens = append(tokens, c)
		}
	}
	return tokens
}

// DefaultRegistry returns the currencies the wallet can swap out of the box
func DefaultRegistry() *Registry {
	bitcoin := &Currency{
		ID:             "bitcoin",
		Ticker:         "BTC",
		Name:           "Bitcoin",
		Type:           CryptoCurrency,
		Family:         FamilyBitcoin,
		Decimals:       8,
		Chain:          "btc",
		ManagerAppName: "Bitcoin",
	}
	ethereum := &Currency{
		ID:             "ethereum",
		Ticker:         "ETH",
		Name:           "Ethereum",
		Type:           CryptoCurrency,
		Family:         FamilyEVM,
		Decimals:       18,
		Chain:          "eth",
		ManagerAppName: "Ethereum",
	}
	solana := &Currency{
		ID:             "solana",
		Ticker:         "SOL",
		Name:           "Solana",
		Type:           CryptoCurrency,
		Family:         FamilySolana,
		Decimals:       9,
		Chain:          "sol",
		ManagerAppName: "Solana",
	}

	registry, err := NewRegistry(
		bitcoin,
		ethereum,
		solana,
		&Currency{
			ID:              "ethereum/erc20/usd__coin",
			Ticker:          "USDC",
			Name:            "USD Coin",
			Type:            TokenCurrency,
			Family:          FamilyEVM,
			Decimals:        6,
			Chain:           "eth",
			ManagerAppName:  "Ethereum",
			ContractAddress: "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			Parent:          ethereum,
		},
		&Currency{
			ID:              "ethereum/erc20/usd_tether__erc20_",
			Ticker:          "USDT",
			Name:            "Tether USD",
			Type:            TokenCurrency,
			Family:          FamilyEVM,
			Decimals:        6,
			Chain:           "eth",
			ManagerAppName:  "Ethereum",
			ContractAddress: "0xdAC17F958D2ee523a2206206994597C13D831ec7",
			Parent:          ethereum,
		},
		&Currency{
			ID:              "solana/spl/usdc",
			Ticker:          "USDC",
			Name:            "USD Coin (Solana)",
			Type:            TokenCurrency,
			Family:          FamilySolana,
			Decimals:        6,
			Chain:           "sol",
			ManagerAppName:  "Solana",
			ContractAddress: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			Parent:          solana,
		},
	)
	if err != nil {
		panic(err)
	}

	return registry
}
