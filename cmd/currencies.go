package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/client"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

var (
	filterChain  string
	filterSymbol string
	remoteTokens bool
)

var currenciesCmd = &cobra.Command{
	Use:     "currencies",
	Aliases: []string{"list-tokens", "tokens", "ls"},
	Short:   "List swappable currencies and their availability",
	Long: `List the currencies the wallet can swap, with their availability for the
accounts on file: ok, noApp (device app not installed) or noAccounts (no
funded account on the chain).

With --remote the tokens supported by the NEAR Intents 1Click API are listed
instead.

Examples:
  wallet-swap currencies
  wallet-swap currencies --remote --chain sol
  wallet-swap currencies --remote --symbol USDC`,
	Run: runCurrencies,
}

func init() {
	rootCmd.AddCommand(currenciesCmd)

	currenciesCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	currenciesCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
	currenciesCmd.Flags().BoolVar(&remoteTokens, "remote", false, "List the tokens supported by 1Click")
}

func runCurrencies(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(appConfig, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if remoteTokens {
		listRemoteTokens(a.pricing, jsonOutput)
		return
	}

	statuses := swap.CurrenciesWithStatus(a.accounts.List(), appConfig.InstalledApps, a.registry.All())

	var filtered []*types.Currency
	for _, c := range a.registry.All() {
		if filterChain != "" && !strings.EqualFold(c.Chain, filterChain) {
			continue
		}
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(c.Ticker), strings.ToUpper(filterSymbol)) {
			continue
		}
		filtered = append(filtered, c)
	}

	if jsonOutput {
		type row struct {
			*types.Currency
			Status swap.CurrencyStatus `json:"status"`
		}
		rows := make([]row, len(filtered))
		for i, c := range filtered {
			rows[i] = row{Currency: c, Status: statuses[c.ID]}
		}
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if len(filtered) == 0 {
		fmt.Println("\nNo currencies found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                              CURRENCIES")
	fmt.Println(strings.Repeat("=", 90))
	fmt.Println()

	for _, c := range filtered {
		fmt.Printf("  %-10s  %-4s  %-34s  %2d decimals  %s\n",
			color.YellowString(c.Ticker),
			c.Chain,
			c.ID,
			c.Decimals,
			coloredCurrencyStatus(statuses[c.ID]))
	}

	fmt.Println("\n" + strings.Repeat("=", 90) + "\n")
}

func coloredCurrencyStatus(status swap.CurrencyStatus) string {
	switch status {
	case swap.StatusOK:
		return color.GreenString(string(status))
	case swap.StatusNoApp:
		return color.MagentaString(string(status))
	default:
		return color.HiBlackString(string(status))
	}
}

func listRemoteTokens(apiClient *client.OneClickClient, jsonOutput bool) {
	if err := appConfig.RequireJWT(); err != nil {
		printError(err)
		os.Exit(1)
	}

	s := newSpinner(" Fetching supported tokens...", jsonOutput)
	tokens, err := apiClient.GetSupportedTokens(context.Background())
	s.Stop()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	// Apply filters
	var filtered []client.TokenInfo
	for _, token := range client.TokenInfos(tokens) {
		if filterChain != "" && !strings.EqualFold(token.Blockchain, filterChain) {
			continue
		}
		if filterSymbol != "" && !strings.Contains(strings.ToUpper(token.Symbol), strings.ToUpper(filterSymbol)) {
			continue
		}
		filtered = append(filtered, token)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(filtered, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayTokens(filtered)
}

func displayTokens(tokens []client.TokenInfo) {
	if len(tokens) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	// Group tokens by blockchain
	tokensByChain := make(map[string][]client.TokenInfo)
	for _, token := range tokens {
		tokensByChain[token.Blockchain] = append(tokensByChain[token.Blockchain], token)
	}

	chains := make([]string, 0, len(tokensByChain))
	for chain := range tokensByChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, token := range tokensByChain[chain] {
			address := token.ContractAddress
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			fmt.Printf("  %-10s  %2d decimals  %s\n",
				color.YellowString(token.Symbol),
				token.Decimals,
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(tokens), len(chains))
}
