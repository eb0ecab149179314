// Package confirm runs the terminal confirmation of a swap: summary, user
// acceptance, deposit address, instructions.
package confirm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/google/uuid"

	"wallet-swap/pkg/client"
	"wallet-swap/pkg/swap"
	"wallet-swap/pkg/types"
)

var (
	// ErrAbandoned is returned when the user leaves the flow before the deposit address is issued
	ErrAbandoned = errors.New("swap abandoned")

	// ErrRatesExpired is returned when the locked quote is no longer valid
	ErrRatesExpired = errors.New("rates expired")
)

// OperationType marks the pending operation of a swap deposit
const OperationType = "SWAP_DEPOSIT"

// Depositor issues deposit addresses
type Depositor interface {
	RequestDeposit(ctx context.Context, req client.DepositRequest) (*client.Deposit, error)
}

// Flow implements swap.ConfirmationFlow on a terminal
type Flow struct {
	depositor Depositor
	in        *bufio.Reader
	out       io.Writer
	assumeYes bool
	spinner   bool
	clock     func() time.Time
	logger    *slog.Logger
}

// Option configures a Flow
type Option func(*Flow)

// WithAssumeYes skips the acceptance prompt
func WithAssumeYes(yes bool) Option {
	return func(f *Flow) { f.assumeYes = yes }
}

// WithSpinner shows a spinner while the deposit address is requested
func WithSpinner(enabled bool) Option {
	return func(f *Flow) { f.spinner = enabled }
}

// WithClock replaces time.Now
func WithClock(clock func() time.Time) Option {
	return func(f *Flow) { f.clock = clock }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(f *Flow) { f.logger = logger }
}

// NewFlow creates a flow reading answers from in and printing to out
func NewFlow(depositor Depositor, in io.Reader, out io.Writer, opts ...Option) *Flow {
	f := &Flow{
		depositor: depositor,
		in:        bufio.NewReader(in),
		out:       out,
		clock:     time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Run confirms the handed-off quote and requests the deposit address
func (f *Flow) Run(ctx context.Context, h swap.Handoff) (swap.Result, error) {
	from, to := h.Exchange.FromCurrency(), h.Exchange.ToCurrency()
	if from == nil || to == nil {
		return swap.Result{}, fmt.Errorf("exchange is incomplete")
	}
	if f.expired(h) {
		return swap.Result{}, ErrRatesExpired
	}

	refundTo := mainAddress(h.Exchange.FromAccount, h.Exchange.FromParentAccount)
	recipient := mainAddress(h.Exchange.ToAccount, h.Exchange.ToParentAccount)
	if refundTo == "" {
		return swap.Result{}, fmt.Errorf("source account %s has no address", h.Exchange.FromAccount.ID)
	}
	if recipient == "" {
		return swap.Result{}, fmt.Errorf("destination account has no address")
	}

	f.printSummary(h, recipient)

	if !f.assumeYes {
		ok, err := f.confirm("Proceed with swap? (y/N): ")
		if err != nil {
			return swap.Result{}, err
		}
		if !ok {
			return swap.Result{}, ErrAbandoned
		}
	}

	// the prompt may have outlived the quote
	if f.expired(h) {
		return swap.Result{}, ErrRatesExpired
	}

	var s *spinner.Spinner
	if f.spinner {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(f.out))
		s.Suffix = " Requesting deposit address..."
		s.Start()
	}
	deposit, err := f.depositor.RequestDeposit(ctx, client.DepositRequest{
		From:      from,
		To:        to,
		Amount:    h.FromAmount,
		Recipient: recipient,
		RefundTo:  refundTo,
	})
	if s != nil {
		s.Stop()
	}
	if err != nil {
		return swap.Result{}, fmt.Errorf("failed to request deposit address: %w", err)
	}

	f.printInstructions(h, deposit)

	op := types.Operation{
		ID:        uuid.NewString(),
		AccountID: h.Exchange.FromAccount.ID,
		Type:      OperationType,
		Amount:    h.FromAmount,
		Recipient: deposit.Address,
		Memo:      deposit.Memo,
	}
	f.logger.Info("deposit instructions issued", "operation", op.ID, "deposit_address", deposit.Address)

	return swap.Result{Operation: op, SwapID: deposit.Address}, nil
}

func (f *Flow) expired(h swap.Handoff) bool {
	return !h.RatesExpiration.IsZero() && !f.clock().Before(h.RatesExpiration)
}

func (f *Flow) confirm(prompt string) (bool, error) {
	fmt.Fprint(f.out, "\n"+prompt)

	response, err := f.in.ReadString('\n')
	if err != nil && (err != io.EOF || response == "") {
		if err == io.EOF {
			return false, ErrAbandoned
		}
		return false, err
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes", nil
}

func (f *Flow) printSummary(h swap.Handoff, recipient string) {
	from, to := h.Exchange.FromCurrency(), h.Exchange.ToCurrency()
	toAmount := h.FromAmount.Mul(h.Rate.MagnitudeAwareRate).Truncate(0)

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(f.out, color.GreenString("                     SWAP SUMMARY"))
	fmt.Fprintln(f.out, strings.Repeat("=", 60))

	fmt.Fprintf(f.out, "\n  From:              %s\n", color.YellowString(types.FormatAmount(from, h.FromAmount)))
	fmt.Fprintf(f.out, "  To:                ~%s\n", color.YellowString(types.FormatAmount(to, toAmount)))
	fmt.Fprintf(f.out, "  Rate:              1 %s = %s %s\n", from.Ticker, h.Rate.Rate.String(), to.Ticker)
	fmt.Fprintf(f.out, "  Provider:          %s\n", h.Rate.Provider)
	fmt.Fprintf(f.out, "  Recipient:         %s\n", color.CyanString(recipient))
	if app := to.MainCurrency().ManagerAppName; app != "" {
		fmt.Fprintf(f.out, "  Device app:        %s\n", app)
	}
	if !h.RatesExpiration.IsZero() {
		left := h.RatesExpiration.Sub(f.clock()).Round(time.Second)
		fmt.Fprintf(f.out, "  Quote valid for:   %s\n", left)
	}

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
}

func (f *Flow) printInstructions(h swap.Handoff, deposit *client.Deposit) {
	from := h.Exchange.FromCurrency()

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
	fmt.Fprintln(f.out, color.YellowString("                 DEPOSIT INSTRUCTIONS"))
	fmt.Fprintln(f.out, strings.Repeat("=", 60))
	fmt.Fprintf(f.out, "\nTo complete the swap, send %s to:\n\n", types.FormatAmount(from, h.FromAmount))
	fmt.Fprintf(f.out, "  %s\n", color.CyanString(deposit.Address))

	if deposit.Memo != "" {
		fmt.Fprintf(f.out, "\nMemo (REQUIRED): %s\n", color.MagentaString(deposit.Memo))
	}
	if deposit.TimeEstimate > 0 {
		fmt.Fprintf(f.out, "\nEstimated time:    %s\n", deposit.TimeEstimate)
	}
	if !deposit.Deadline.IsZero() {
		fmt.Fprintf(f.out, "Deposit before:    %s\n", deposit.Deadline.Format(time.RFC3339))
	}

	fmt.Fprintln(f.out, "\n"+strings.Repeat("=", 60))
}

func mainAddress(account, parent *types.Account) string {
	main := types.MainAccount(account, parent)
	if main == nil {
		return ""
	}
	return main.Address
}
