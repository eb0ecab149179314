package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"wallet-swap/pkg/confirm"
	"wallet-swap/pkg/parser"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

var (
	noConfirm    bool
	offline      bool
	fromAccount  string
	toAccount    string
	quoteTimeout time.Duration
)

var swapCmd = &cobra.Command{
	Use:   "swap [<amount> <token> [on <chain>] to <token> [on <chain>]]",
	Short: "Swap funds between your accounts",
	Long: `Open the swap form. Without arguments the form is interactive: pick the
currencies, accounts and amount, watch the live quote and confirm it.
With a swap command the form is filled in and the quote confirmed at once.

The quote is requested for the selected accounts and refreshed whenever the
form changes. A quote is valid for rates_expiration (60s by default); an
expired quote is requested again.

Examples:
  wallet-swap swap
  wallet-swap swap 0.05 BTC to ETH
  wallet-swap swap 100 USDC on sol to USDC on eth --from-account sol-1
  wallet-swap swap max ETH to BTC --yes`,
	Run: runSwap,
}

func init() {
	rootCmd.AddCommand(swapCmd)

	swapCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
	swapCmd.Flags().BoolVar(&offline, "offline", false, "Use stored balances instead of querying the chains")
	swapCmd.Flags().StringVar(&fromAccount, "from-account", "", "Source account id")
	swapCmd.Flags().StringVar(&toAccount, "to-account", "", "Destination account id")
	swapCmd.Flags().DurationVar(&quoteTimeout, "quote-timeout", 30*time.Second, "How long to wait for a quote")
}

func runSwap(cmd *cobra.Command, args []string) {
	if err := swapRun(cmd, args); err != nil {
		printError(err)
		os.Exit(1)
	}
}

// swapRun reports failures as errors; deferred cleanup runs before runSwap exits
func swapRun(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	if err := appConfig.RequireJWT(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var req *types.SwapRequest
	if len(args) > 0 {
		var err error
		req, err = parser.ParseSwapCommand(strings.Join(args, " "))
		if err == nil {
			err = parser.ValidateSwapRequest(req)
		}
		if err != nil {
			return err
		}
	}

	a, err := newApp(appConfig, offline)
	if err != nil {
		return err
	}
	defer a.Close()

	accountList := a.accounts.List()
	if len(accountList) == 0 {
		return fmt.Errorf("no accounts found in %s, add one with 'wallet-swap accounts add'", a.accounts.GetFilePath())
	}
	if !offline {
		s := newSpinner(" Syncing accounts...", jsonOutput)
		accountList, err = a.syncAccounts(ctx)
		s.Stop()
		if err != nil {
			logger.Warn("account sync incomplete, using stored balances", "error", err)
			if accountList == nil {
				accountList = a.accounts.List()
			}
		}
	}

	var defaultCurrency *types.Currency
	if req != nil {
		defaultCurrency, err = a.registry.Find(req.SourceToken, req.SourceChain)
		if err != nil {
			return err
		}
	}

	sessionLog := logger.With("session", time.Now().Format("20060102T150405"))
	session, err := a.newSession(accountList, defaultCurrency, sessionLog)
	if err != nil {
		return err
	}
	defer func() {
		session.Close()
		a.logMetrics(sessionLog)
	}()

	session.Subscribe(func(_, next swap.State, action swap.Action) {
		sessionLog.Debug("form transition", "action", action.Name(), "has_rate", next.HasRate(), "error", next.Error)
	})

	// the form and the confirmation prompt share one buffered reader
	stdin := bufio.NewReader(os.Stdin)
	flow := confirm.NewFlow(a.pricing, stdin, os.Stdout,
		confirm.WithAssumeYes(noConfirm),
		confirm.WithSpinner(!jsonOutput),
		confirm.WithLogger(sessionLog))

	form := &swapForm{
		session:  session,
		registry: a.registry,
		flow:     flow,
		out:      os.Stdout,
		timeout:  quoteTimeout,
		quiet:    jsonOutput,
	}

	if req == nil {
		// Ctrl+C leaves the interactive form
		stop()
		ctx = context.Background()

		if err := form.applyAccountFlags(); err != nil {
			return err
		}
		return form.interactive(ctx, stdin)
	}

	result, err := form.oneShot(ctx, req)
	if err != nil {
		if errors.Is(err, confirm.ErrAbandoned) {
			fmt.Println("\nSwap cancelled.")
			return nil
		}
		return err
	}

	if jsonOutput {
		output := map[string]interface{}{
			"deposit_address": result.SwapID,
			"operation":       result.Operation,
			"status":          "deposit_requested",
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return nil
	}

	fmt.Println("\nYou can monitor the swap status using:")
	color.Cyan("  wallet-swap status %s\n", result.SwapID)
	return nil
}

// swapForm drives a session from terminal commands
type swapForm struct {
	session  *swap.Session
	registry *types.Registry
	flow     swap.ConfirmationFlow
	out      io.Writer
	timeout  time.Duration
	quiet    bool
}

func (f *swapForm) applyAccountFlags() error {
	if fromAccount != "" {
		if err := f.selectAccount(parser.SideFrom, fromAccount); err != nil {
			return err
		}
	}
	if toAccount != "" {
		if err := f.selectAccount(parser.SideTo, toAccount); err != nil {
			return err
		}
	}
	return nil
}

// oneShot fills the form from a swap command and confirms the first quote
func (f *swapForm) oneShot(ctx context.Context, req *types.SwapRequest) (swap.Result, error) {
	from, err := f.registry.Find(req.SourceToken, req.SourceChain)
	if err != nil {
		return swap.Result{}, err
	}
	to, err := f.registry.Find(req.DestToken, req.DestChain)
	if err != nil {
		return swap.Result{}, err
	}
	if err := f.session.SelectFromCurrency(from); err != nil {
		return swap.Result{}, err
	}
	if err := f.session.SelectToCurrency(to); err != nil {
		return swap.Result{}, err
	}
	if err := f.applyAccountFlags(); err != nil {
		return swap.Result{}, err
	}

	if req.Amount == parser.AmountMax {
		err = f.session.ToggleUseAllAmount(ctx)
	} else {
		err = f.session.SetDisplayAmount(req.Amount)
	}
	if err != nil {
		return swap.Result{}, err
	}

	if _, err := f.awaitQuote(ctx); err != nil {
		return swap.Result{}, err
	}
	return f.session.Confirm(ctx, f.flow)
}

// interactive runs the form until quit or end of input
func (f *swapForm) interactive(ctx context.Context, in *bufio.Reader) error {
	fmt.Fprintln(f.out, parser.FormHelp)
	f.render()

	for {
		fmt.Fprint(f.out, "\nswap> ")
		line, err := in.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			fmt.Fprintln(f.out)
			if err == io.EOF {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		cmd, err := parser.ParseFormCommand(line)
		if err != nil {
			color.Red("%v", err)
			continue
		}

		done, err := f.apply(ctx, cmd)
		if err != nil {
			color.Red("%v", err)
		}
		if done {
			return nil
		}
	}
}

// apply runs one form command. It reports true when the form should close.
func (f *swapForm) apply(ctx context.Context, cmd parser.FormCommand) (bool, error) {
	switch cmd.Action {
	case parser.ActionQuit:
		return true, nil
	case parser.ActionHelp:
		fmt.Fprintln(f.out, parser.FormHelp)
		return false, nil
	case parser.ActionShow:
		f.render()
		return false, nil
	case parser.ActionAccounts:
		f.renderAccounts()
		return false, nil
	case parser.ActionConfirm:
		result, err := f.session.Confirm(ctx, f.flow)
		if err != nil {
			if errors.Is(err, confirm.ErrAbandoned) {
				fmt.Fprintln(f.out, "\nSwap cancelled.")
				return false, nil
			}
			return false, err
		}
		fmt.Fprintln(f.out, "\nYou can monitor the swap status using:")
		fmt.Fprintf(f.out, "  %s\n", color.CyanString("wallet-swap status %s", result.SwapID))
		return true, nil
	}

	var err error
	switch cmd.Action {
	case parser.ActionFrom, parser.ActionTo:
		var c *types.Currency
		c, err = f.registry.Find(cmd.Symbol, cmd.Chain)
		if err == nil && cmd.Action == parser.ActionFrom {
			err = f.session.SelectFromCurrency(c)
		} else if err == nil {
			err = f.session.SelectToCurrency(c)
		}
	case parser.ActionAmount:
		err = f.session.SetDisplayAmount(cmd.Amount)
	case parser.ActionMax:
		err = f.session.ToggleUseAllAmount(ctx)
	case parser.ActionAccount:
		err = f.selectAccount(cmd.Side, cmd.ID)
	case parser.ActionRetry:
		f.session.Retry()
	}
	if err != nil {
		return false, err
	}

	if _, err := f.awaitQuote(ctx); err != nil && !errors.Is(err, errFormIncomplete) {
		f.render()
		return false, err
	}
	f.render()
	return false, nil
}

func (f *swapForm) selectAccount(side, id string) error {
	account := findAccount(f.session.Accounts(), id)
	if account == nil {
		return fmt.Errorf("account '%s' not found", id)
	}
	if side == parser.SideFrom {
		return f.session.SelectFromAccount(account)
	}
	return f.session.SelectToAccount(account)
}

var errFormIncomplete = errors.New("form incomplete")

// awaitQuote waits until the form holds a quote or the request failed
func (f *swapForm) awaitQuote(ctx context.Context) (swap.State, error) {
	s := newSpinner(" Fetching quote...", f.quiet)
	defer s.Stop()

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		st := f.session.State()
		switch {
		case st.HasRate():
			return st, nil
		case f.session.InFlight():
		case st.Error != nil:
			return st, st.Error
		case !swap.CanRequestRates(st):
			return st, fmt.Errorf("%w: %s", errFormIncomplete, formProblem(st))
		}

		select {
		case <-ctx.Done():
			return st, fmt.Errorf("no quote received: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// formProblem names what keeps the form from being quoted
func formProblem(st swap.State) string {
	ex := st.Swap.Exchange
	switch {
	case st.FromCurrency == nil:
		return "no source currency is available"
	case st.ToCurrency == nil:
		return "no destination currency is available"
	case ex.FromAccount == nil:
		return fmt.Sprintf("no funded account holds %s", st.FromCurrency.Ticker)
	case ex.ToAccount == nil:
		return fmt.Sprintf("no account can receive %s", st.ToCurrency.Ticker)
	case !st.FromAmount.IsPositive():
		return "enter an amount"
	}
	return "waiting for a quote"
}

func (f *swapForm) render() {
	st := f.session.State()
	ex := st.Swap.Exchange

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(f.out, color.GreenString("                       SWAP FORM"))
	fmt.Fprintln(f.out, strings.Repeat("=", 60))

	fmt.Fprintf(f.out, "\n  From:        %s  %s\n", currencyLabel(st.FromCurrency), accountLabel(ex.FromAccount, ex.FromParentAccount))
	fmt.Fprintf(f.out, "  To:          %s  %s\n", currencyLabel(st.ToCurrency), accountLabel(ex.ToAccount, ex.ToParentAccount))

	amount := types.FormatAmount(st.FromCurrency, st.FromAmount)
	if st.UseAllAmount {
		amount += color.HiBlackString(" (max)")
	}
	fmt.Fprintf(f.out, "  Amount:      %s\n", amount)

	switch {
	case st.HasRate():
		r := st.Swap.ExchangeRate
		toAmount, _ := st.ToAmount()
		fmt.Fprintf(f.out, "  Receive:     ~%s\n", color.YellowString(types.FormatAmount(st.ToCurrency, toAmount)))
		fmt.Fprintf(f.out, "  Rate:        1 %s = %s %s (%s)\n", st.FromCurrency.Ticker, r.Rate.String(), st.ToCurrency.Ticker, r.Provider)
		if expiry, ok := f.session.RatesExpiration(); ok && f.session.TimerVisible() {
			left := time.Until(expiry).Round(time.Second)
			if left < 0 {
				left = 0
			}
			fmt.Fprintf(f.out, "  Expires in:  %s\n", left)
		}
	case st.Error != nil:
		fmt.Fprintf(f.out, "  Quote:       %s\n", color.RedString("%v (type 'retry')", st.Error))
	case f.session.InFlight():
		fmt.Fprintf(f.out, "  Quote:       %s\n", color.HiBlackString("loading..."))
	default:
		fmt.Fprintf(f.out, "  Quote:       %s\n", color.HiBlackString(formProblem(st)))
	}

	var unavailable []string
	for _, c := range f.session.Selectable() {
		if status := f.session.Statuses()[c.ID]; status != swap.StatusOK {
			unavailable = append(unavailable, fmt.Sprintf("%s (%s)", c.Ticker, status))
		}
	}
	if len(unavailable) > 0 {
		fmt.Fprintf(f.out, "\n  Unavailable: %s\n", color.HiBlackString(strings.Join(unavailable, ", ")))
	}

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
}

func (f *swapForm) renderAccounts() {
	st := f.session.State()
	list := func(title string, accountList []*types.Account) {
		fmt.Fprintf(f.out, "\n%s\n", color.CyanString(title))
		if len(accountList) == 0 {
			fmt.Fprintln(f.out, "  (none)")
		}
		for _, a := range accountList {
			fmt.Fprintf(f.out, "  %-24s %-16s %s\n", a.ID, a.Name, types.FormatAmount(a.Currency, a.Balance))
		}
	}
	list("Send from "+currencyLabel(st.FromCurrency), swap.ValidFromAccounts(f.session.Accounts(), st.FromCurrency))
	list("Receive on "+currencyLabel(st.ToCurrency), swap.ValidToAccounts(f.session.Accounts(), st.ToCurrency))
}

// findAccount looks id up among the top-level accounts. A token account id
// selects its parent.
func findAccount(accountList []*types.Account, id string) *types.Account {
	for _, a := range accountList {
		if a.ID == id {
			return a
		}
	}
	for _, a := range types.FlattenAccounts(accountList) {
		if a.ID == id && a.ParentID != "" {
			return findAccount(accountList, a.ParentID)
		}
	}
	return nil
}

func currencyLabel(c *types.Currency) string {
	if c == nil {
		return "-"
	}
	return color.YellowString(c.Ticker) + color.HiBlackString(" ("+c.Chain+")")
}

func accountLabel(account, parent *types.Account) string {
	if account == nil {
		return color.HiBlackString("no account")
	}
	label := account.ID
	if parent != nil {
		label = parent.ID + " > " + account.ID
	}
	return color.HiBlackString("[%s, %s]", label, types.FormatAmount(account.Currency, account.Balance))
}

func newSpinner(suffix string, quiet bool) *spinner.Spinner {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = suffix
	if !quiet {
		s.Start()
	}
	return s
}
