package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/client"
)

var (
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <deposit-address>",
	Short: "Check the status of a swap",
	Long: `Check the execution status of a swap by its deposit address, the swap id
printed when a swap is confirmed.

Examples:
  wallet-swap status 0x1234...abcd
  wallet-swap status 0x1234...abcd --watch
  wallet-swap status 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates until the swap settles")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")
}

func runStatus(cmd *cobra.Command, args []string) {
	depositAddress := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if err := appConfig.RequireJWT(); err != nil {
		printError(err)
		os.Exit(1)
	}
	if watchInterval <= 0 {
		printError(fmt.Errorf("interval must be positive"))
		os.Exit(1)
	}

	apiClient := client.NewOneClickClient(client.Options{
		JWTToken:          appConfig.JWTToken,
		BaseURL:           appConfig.BaseURL,
		RequestsPerSecond: appConfig.RequestsPerSecond,
		Logger:            logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if watchStatus {
		watchSwapStatus(ctx, apiClient, depositAddress, jsonOutput)
	} else {
		checkSwapStatus(ctx, apiClient, depositAddress, jsonOutput)
	}
}

func checkSwapStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string, jsonOutput bool) {
	s := newSpinner(" Checking swap status...", jsonOutput)
	status, err := apiClient.GetSwapStatus(ctx, depositAddress)
	s.Stop()

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(status, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayStatus(status, depositAddress)
	}
}

func watchSwapStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching swap status (Deposit Address: %s)\n", color.CyanString(depositAddress))
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	for {
		if checkAndDisplayStatus(ctx, apiClient, depositAddress) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// checkAndDisplayStatus reports whether the swap reached a final status
func checkAndDisplayStatus(ctx context.Context, apiClient *client.OneClickClient, depositAddress string) bool {
	status, err := apiClient.GetSwapStatus(ctx, depositAddress)
	if err != nil {
		logger.Warn("status check failed", "deposit_address", depositAddress, "error", err)
		color.Red("Error: %v", err)
		return false
	}

	displayStatus(status, depositAddress)
	return isFinalStatus(status.GetStatus())
}

func displayStatus(status *oneclick.GetExecutionStatusResponse, depositAddress string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                        SWAP STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Deposit Address: %s\n", color.CyanString(depositAddress))
	fmt.Printf("  Status:          %s\n", getColoredStatus(status.GetStatus()))
	fmt.Printf("  Last Updated:    %s\n", status.GetUpdatedAt().Format("2006-01-02 15:04:05"))

	swapDetails := status.GetSwapDetails()

	// deposits
	for _, tx := range swapDetails.GetOriginChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Deposit Tx:      %s\n", color.HiBlackString(hash))
		}
	}

	// withdrawals
	for _, tx := range swapDetails.GetDestinationChainTxHashes() {
		if hash := tx.GetHash(); hash != "" {
			fmt.Printf("  Withdrawal Tx:   %s\n", color.HiBlackString(hash))
		}
	}

	if swapDetails.HasAmountInFormatted() {
		fmt.Printf("  Amount In:       %s\n", swapDetails.GetAmountInFormatted())
	}
	if swapDetails.HasAmountOutFormatted() {
		fmt.Printf("  Amount Out:      %s\n", swapDetails.GetAmountOutFormatted())
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func isFinalStatus(status string) bool {
	switch strings.ToUpper(status) {
	case "SUCCESS", "COMPLETED", "FAILED", "REFUNDED":
		return true
	}
	return false
}

func getColoredStatus(status string) string {
	status = strings.ToUpper(status)

	switch status {
	case "SUCCESS", "COMPLETED":
		return color.GreenString(status)
	case "PENDING_DEPOSIT", "PENDING", "PROCESSING":
		return color.YellowString(status)
	case "FAILED", "REFUNDED":
		return color.RedString(status)
	case "INCOMPLETE_DEPOSIT":
		return color.MagentaString(status)
	default:
		return status
	}
}
