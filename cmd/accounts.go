package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/abandonseed"
	"wallet-swap/pkg/types"
)

var (
	accountID       string
	accountName     string
	accountCurrency string
	accountAddress  string
	accountBalance  string
	accountTokens   []string
)

var accountsCmd = &cobra.Command{
	Use:     "accounts",
	Aliases: []string{"account"},
	Short:   "Manage the accounts the swap form picks from",
	Long: `Manage the wallet accounts known to wallet-swap. Accounts are stored in a
JSON file (accounts_file, ~/.wallet-swap-accounts.json by default). Token
balances live in sub-accounts of the chain account.

Examples:
  wallet-swap accounts list
  wallet-swap accounts add --currency ethereum --address 0x... --tokens ethereum/erc20/usd__coin
  wallet-swap accounts add --currency bitcoin --id btc-1 --address bc1q... --balance 0.2
  wallet-swap accounts sync
  wallet-swap accounts remove btc-1`,
}

var accountsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List accounts",
	Run:     runAccountsList,
}

var accountsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an account",
	Run:   runAccountsAdd,
}

var accountsRemoveCmd = &cobra.Command{
	Use:     "remove <account-id>",
	Aliases: []string{"rm", "delete"},
	Short:   "Remove an account",
	Args:    cobra.ExactArgs(1),
	Run:     runAccountsRemove,
}

var accountsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Refresh balances from the configured RPC endpoints",
	Run:   runAccountsSync,
}

func init() {
	rootCmd.AddCommand(accountsCmd)
	accountsCmd.AddCommand(accountsListCmd, accountsAddCmd, accountsRemoveCmd, accountsSyncCmd)

	accountsAddCmd.Flags().StringVar(&accountID, "id", "", "Account id (generated when empty)")
	accountsAddCmd.Flags().StringVar(&accountName, "name", "", "Display name")
	accountsAddCmd.Flags().StringVar(&accountCurrency, "currency", "", "Chain currency id or ticker (bitcoin, ETH, sol)")
	accountsAddCmd.Flags().StringVar(&accountAddress, "address", "", "Receive address")
	accountsAddCmd.Flags().StringVar(&accountBalance, "balance", "0", "Balance in display units, used until the first sync")
	accountsAddCmd.Flags().StringSliceVar(&accountTokens, "tokens", nil, "Token currency ids held by the account")
	_ = accountsAddCmd.MarkFlagRequired("currency")
	_ = accountsAddCmd.MarkFlagRequired("address")
}

func runAccountsList(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	a, err := newApp(appConfig, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	accountList := a.accounts.List()
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(accountList, "", "  ")
		fmt.Println(string(jsonData))
		return
	}
	displayAccounts(accountList, a.accounts.GetFilePath())
}

func runAccountsAdd(cmd *cobra.Command, args []string) {
	a, err := newApp(appConfig, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	account, err := buildAccount(a.registry)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := a.accounts.Add(account); err != nil {
		printError(err)
		os.Exit(1)
	}

	logger.Info("account added", "account", account.ID, "currency", account.Currency.ID)
	printSuccess(fmt.Sprintf("✓ Account %s added", account.ID))
}

// buildAccount assembles an account from the add flags
func buildAccount(registry *types.Registry) (*types.Account, error) {
	currency, err := registry.Find(accountCurrency, "")
	if err != nil {
		return nil, err
	}
	if currency.IsToken() {
		return nil, fmt.Errorf("%s is a token, add its chain account with --tokens %s", currency.ID, currency.ID)
	}
	if err := abandonseed.Validate(currency, accountAddress); err != nil {
		return nil, err
	}

	balance, err := types.ToSmallestUnit(currency, accountBalance)
	if err != nil {
		return nil, err
	}

	id := accountID
	if id == "" {
		id = currency.ID + "-" + uuid.NewString()[:8]
	}
	name := accountName
	if name == "" {
		name = currency.Name
	}

	account := &types.Account{
		ID:       id,
		Name:     name,
		Currency: currency,
		Address:  accountAddress,
		Balance:  balance,
	}

	var tokens []*types.Currency
	for _, tokenID := range accountTokens {
		token, err := registry.Get(strings.TrimSpace(tokenID))
		if err != nil {
			return nil, err
		}
		if !token.IsToken() || !types.SameCurrency(token.Parent, currency) {
			return nil, fmt.Errorf("%s is not a token of %s", token.ID, currency.ID)
		}
		tokens = append(tokens, token)
	}

	return types.AccountWithMandatoryTokens(account, tokens), nil
}

func runAccountsRemove(cmd *cobra.Command, args []string) {
	a, err := newApp(appConfig, true)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.accounts.Remove(args[0]); err != nil {
		printError(err)
		os.Exit(1)
	}

	logger.Info("account removed", "account", args[0])
	printSuccess(fmt.Sprintf("✓ Account %s removed", args[0]))
}

func runAccountsSync(cmd *cobra.Command, args []string) {
	a, err := newApp(appConfig, false)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s := newSpinner(" Syncing accounts...", false)
	accountList, err := a.syncAccounts(ctx)
	s.Stop()
	if err != nil {
		color.Yellow("\nSome accounts could not be synced: %v", err)
	}
	if accountList != nil {
		displayAccounts(accountList, a.accounts.GetFilePath())
	}
}

func displayAccounts(accountList []*types.Account, path string) {
	if len(accountList) == 0 {
		fmt.Printf("\nNo accounts in %s. Add one with 'wallet-swap accounts add'.\n\n", path)
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                               ACCOUNTS")
	fmt.Println(strings.Repeat("=", 90))

	for _, account := range accountList {
		fmt.Printf("\n  %-24s %-20s %s\n",
			color.CyanString(account.ID),
			account.Name,
			color.YellowString(types.FormatAmount(account.Currency, account.Balance)))
		fmt.Printf("  %s\n", color.HiBlackString(account.Address))
		for _, sub := range account.SubAccounts {
			fmt.Printf("    %-36s %s\n", sub.ID, types.FormatAmount(sub.Currency, sub.Balance))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d accounts (%s)\n\n", len(accountList), path)
}
