package client

import (
	"fmt"
	"strings"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"

	"wallet-swap/pkg/types"
)

// TokenInfo is the part of a 1Click token listing the wallet uses
type TokenInfo struct {
	AssetID         string
	Symbol          string
	Blockchain      string
	ContractAddress string
	Decimals        int32
}

func toTokenInfo(t *oneclick.TokenResponse) TokenInfo {
	return TokenInfo{
		AssetID:         t.GetAssetId(),
		Symbol:          t.GetSymbol(),
		Blockchain:      t.GetBlockchain(),
		ContractAddress: t.GetContractAddress(),
		Decimals:        int32(t.GetDecimals()),
	}
}

// TokenInfos converts an SDK token listing
func TokenInfos(tokens []oneclick.TokenResponse) []TokenInfo {
	out := make([]TokenInfo, len(tokens))
	for i := range tokens {
		out[i] = toTokenInfo(&tokens[i])
	}
	return out
}

// MatchToken finds the listing of a wallet currency. Tokens match on the
// contract address first, then on the symbol; the chain must always match.
func MatchToken(tokens []TokenInfo, currency *types.Currency) (TokenInfo, error) {
	if currency == nil {
		return TokenInfo{}, fmt.Errorf("currency is required")
	}
	chain := strings.ToLower(currency.Chain)

	if currency.IsToken() && currency.ContractAddress != "" {
		for _, t := range tokens {
			if strings.ToLower(t.Blockchain) == chain && strings.EqualFold(t.ContractAddress, currency.ContractAddress) {
				return t, nil
			}
		}
	}

	for _, t := range tokens {
		if strings.ToLower(t.Blockchain) != chain || !strings.EqualFold(t.Symbol, currency.Ticker) {
			continue
		}
		// a native currency never matches a contract token of the same symbol
		if !currency.IsToken() && t.ContractAddress != "" {
			continue
		}
		return t, nil
	}

	return TokenInfo{}, fmt.Errorf("%s on %s: %w", currency.Ticker, chain, ErrTokenNotSupported)
}
