package parser

import (
	"fmt"
	"regexp"
	"strings"

	"wallet-swap/pkg/types"
)

// AmountMax asks for the whole spendable balance
const AmountMax = "max"

var swapPattern = regexp.MustCompile(
	`^(\d+\.?\d*|\.\d+|MAX|ALL)\s+([A-Z0-9/_\-]+)(?:\s+ON\s+([A-Z0-9]+))?\s+TO\s+([A-Z0-9/_\-]+)(?:\s+ON\s+([A-Z0-9]+))?$`)

// ParseSwapCommand parses a natural language swap command
// Examples:
//   - "swap 1 SOL to USDC"
//   - "1.5 ETH to BTC"
//   - "100 USDC on sol to BTC"
//   - "max ETH to USDC on eth"
func ParseSwapCommand(command string) (*types.SwapRequest, error) {
	// Normalize the command
	command = strings.Join(strings.Fields(strings.ToUpper(command)), " ")

	// Remove the word "SWAP" if present at the beginning
	command = strings.TrimPrefix(command, "SWAP ")

	matches := swapPattern.FindStringSubmatch(command)
	if matches == nil {
		return nil, fmt.Errorf("invalid swap command format. Expected: 'swap <amount> <token> [on <chain>] to <token> [on <chain>]' (e.g., 'swap 1 SOL to USDC')")
	}

	amount := matches[1]
	if amount == "MAX" || amount == "ALL" {
		amount = AmountMax
	}

	return &types.SwapRequest{
		Amount:      amount,
		SourceToken: NormalizeTokenSymbol(matches[2]),
		SourceChain: strings.ToLower(matches[3]),
		DestToken:   NormalizeTokenSymbol(matches[4]),
		DestChain:   strings.ToLower(matches[5]),
	}, nil
}

// ValidateSwapRequest validates that a swap request has all required fields
func ValidateSwapRequest(req *types.SwapRequest) error {
	if req.Amount == "" {
		return fmt.Errorf("amount is required")
	}
	if req.SourceToken == "" {
		return fmt.Errorf("source token is required")
	}
	if req.DestToken == "" {
		return fmt.Errorf("destination token is required")
	}
	if strings.EqualFold(req.SourceToken, req.DestToken) && strings.EqualFold(req.SourceChain, req.DestChain) {
		return fmt.Errorf("source and destination must differ")
	}
	return nil
}

// NormalizeTokenSymbol normalizes token symbols to standard format
func NormalizeTokenSymbol(symbol string) string {
	// Convert to uppercase for consistency
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Handle common aliases
	aliases := map[string]string{
		"XBT":     "BTC",
		"ETHER":   "ETH",
		"TETHER":  "USDT",
		"SOLANA":  "SOL",
		"BITCOIN": "BTC",
	}

	if normalized, exists := aliases[symbol]; exists {
		return normalized
	}

	return symbol
}
