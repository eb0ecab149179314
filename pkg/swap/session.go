package swap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

var (
	// ErrCurrencyNotEligible is returned when a currency outside the OK list is selected
	ErrCurrencyNotEligible = errors.New("currency is not available for swapping")

	// ErrSameCurrency is returned when the destination names the source currency
	ErrSameCurrency = errors.New("destination currency must differ from source currency")

	// ErrAccountNotEligible is returned when an account cannot serve the selected side
	ErrAccountNotEligible = errors.New("account is not eligible for the selected currency")

	// ErrNoSourceAccount is returned when an operation needs a resolved source account
	ErrNoSourceAccount = errors.New("no source account selected")
)

// MaxSpendableEstimator computes the largest amount an account can send
type MaxSpendableEstimator interface {
	EstimateMaxSpendable(ctx context.Context, account, parent *types.Account, tx types.Transaction) (decimal.Decimal, error)
}

// Result is what a completed confirmation flow reports back
type Result struct {
	Operation types.Operation
	SwapID    string
}

// ConfirmationFlow takes a frozen quote to completion
type ConfirmationFlow interface {
	Run(ctx context.Context, handoff Handoff) (Result, error)
}

// SessionConfig holds the collaborators of a swap session
type SessionConfig struct {
	Accounts      []*types.Account
	Selectable    []*types.Currency
	InstalledApps []string

	DefaultCurrency      *types.Currency
	DefaultAccount       *types.Account
	DefaultParentAccount *types.Account

	RatesExpiration time.Duration

	Pricing   PricingService
	Builder   TransactionBuilder
	Estimator MaxSpendableEstimator

	Logger  *slog.Logger
	Metrics *Metrics
	Clock   func() time.Time
}

// Session is one swap form. It keeps the account selection consistent with
// the selected currencies, quotes every complete snapshot and expires quotes.
type Session struct {
	cfg        SessionConfig
	store      *Store
	flow       *FlowSignal
	fetcher    *RateFetcher
	expiration *ExpirationManager
	log        *slog.Logger

	mu       sync.RWMutex
	accounts []*types.Account
	statuses map[string]CurrencyStatus
}

// NewSession builds the form state and starts its effects
func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Pricing == nil {
		return nil, fmt.Errorf("pricing service is required")
	}
	if cfg.Builder == nil {
		return nil, fmt.Errorf("transaction builder is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	statuses := CurrenciesWithStatus(cfg.Accounts, cfg.InstalledApps, cfg.Selectable)
	store := NewStore(InitState(InitParams{
		OKCurrencies:         OKCurrencies(cfg.Selectable, statuses),
		DefaultCurrency:      cfg.DefaultCurrency,
		DefaultAccount:       cfg.DefaultAccount,
		DefaultParentAccount: cfg.DefaultParentAccount,
	}))
	if cfg.Clock != nil {
		store.SetClock(cfg.Clock)
	}

	s := &Session{
		cfg:      cfg,
		store:    store,
		flow:     NewFlowSignal(),
		log:      cfg.Logger.With("component", "session"),
		accounts: cfg.Accounts,
		statuses: statuses,
	}

	store.Subscribe(func(_, next State, _ Action) { s.resolve(next) })
	s.fetcher = NewRateFetcher(store, cfg.Pricing, cfg.Builder, cfg.Logger, cfg.Metrics)
	s.expiration = NewExpirationManager(store, s.flow, cfg.RatesExpiration, cfg.Logger, cfg.Metrics)

	s.resolve(store.State())
	s.fetcher.Start()

	return s, nil
}

// State returns the current form snapshot
func (s *Session) State() State {
	return s.store.State()
}

// Subscribe registers fn for every form transition
func (s *Session) Subscribe(fn Subscriber) {
	s.store.Subscribe(fn)
}

// History returns the command log of the session
func (s *Session) History() []LogEntry {
	return s.store.History()
}

// Accounts returns the current account snapshot
func (s *Session) Accounts() []*types.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts
}

// Statuses returns the eligibility of every selectable currency
func (s *Session) Statuses() map[string]CurrencyStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]CurrencyStatus, len(s.statuses))
	for id, status := range s.statuses {
		out[id] = status
	}
	return out
}

// Selectable returns the currencies offered by the form
func (s *Session) Selectable() []*types.Currency {
	return s.cfg.Selectable
}

// RatesExpiration returns the expiry of the committed quote
func (s *Session) RatesExpiration() (time.Time, bool) {
	return s.expiration.RatesExpiration(s.store.State())
}

// TimerVisible reports whether the quote countdown should be shown
func (s *Session) TimerVisible() bool {
	return s.expiration.TimerVisible()
}

// InFlight reports whether a quote request is pending
func (s *Session) InFlight() bool {
	return s.fetcher.InFlight()
}

// FlowOpen reports whether the confirmation flow is running
func (s *Session) FlowOpen() bool {
	return s.flow.IsOpen()
}

// SelectFromCurrency picks the source currency
func (s *Session) SelectFromCurrency(c *types.Currency) error {
	if !containsCurrency(s.store.State().OKCurrencies, c) {
		return fmt.Errorf("%s: %w", c, ErrCurrencyNotEligible)
	}
	s.store.Dispatch(SetFromCurrency{Currency: c})
	return nil
}

// SelectToCurrency picks the destination currency
func (s *Session) SelectToCurrency(c *types.Currency) error {
	st := s.store.State()
	if !containsCurrency(st.OKCurrencies, c) {
		return fmt.Errorf("%s: %w", c, ErrCurrencyNotEligible)
	}
	if types.SameCurrency(c, st.FromCurrency) {
		return fmt.Errorf("%s: %w", c, ErrSameCurrency)
	}
	s.store.Dispatch(SetToCurrency{Currency: c})
	return nil
}

// SelectFromAccount picks one of the valid source accounts
func (s *Session) SelectFromAccount(account *types.Account) error {
	st := s.store.State()
	if !containsAccount(ValidFromAccounts(s.Accounts(), st.FromCurrency), account) {
		return fmt.Errorf("%s: %w", accountID(account), ErrAccountNotEligible)
	}
	res := pick([]*types.Account{account}, st.FromCurrency)
	s.store.Dispatch(SetFromAccount{Account: res.Account, ParentAccount: res.ParentAccount})
	return nil
}

// SelectToAccount picks one of the valid destination accounts
func (s *Session) SelectToAccount(account *types.Account) error {
	st := s.store.State()
	if types.SameCurrency(st.ToCurrency, st.FromCurrency) ||
		!containsAccount(ValidToAccounts(s.Accounts(), st.ToCurrency), account) {
		return fmt.Errorf("%s: %w", accountID(account), ErrAccountNotEligible)
	}
	res := pick([]*types.Account{account}, st.ToCurrency)
	s.store.Dispatch(PatchToAccount(res.Account, res.ParentAccount))
	return nil
}

// SetAmount sets the source amount in smallest units
func (s *Session) SetAmount(amount decimal.Decimal) {
	s.store.Dispatch(SetFromAmount{Amount: amount})
}

// SetDisplayAmount parses a display amount of the source currency
func (s *Session) SetDisplayAmount(amount string) error {
	st := s.store.State()
	if st.FromCurrency == nil {
		return ErrCurrencyNotEligible
	}
	value, err := types.ToSmallestUnit(st.FromCurrency, amount)
	if err != nil {
		return err
	}
	s.SetAmount(value)
	return nil
}

// ToggleUseAllAmount switches between the maximum spendable amount and zero
func (s *Session) ToggleUseAllAmount(ctx context.Context) error {
	st := s.store.State()
	if st.UseAllAmount {
		s.store.Dispatch(SetFromAmount{Amount: decimal.Zero})
		return nil
	}

	ex := st.Swap.Exchange
	if ex.FromAccount == nil {
		return ErrNoSourceAccount
	}
	if s.cfg.Estimator == nil {
		return fmt.Errorf("max spendable estimation is not available")
	}

	tx, err := s.cfg.Builder.BuildTransaction(ex, st.FromAmount, true)
	if err != nil {
		return fmt.Errorf("failed to build transaction: %w", err)
	}
	maxAmount, err := s.cfg.Estimator.EstimateMaxSpendable(ctx, ex.FromAccount, ex.FromParentAccount, tx)
	if err != nil {
		return fmt.Errorf("failed to estimate max spendable: %w", err)
	}

	s.store.Dispatch(SetFromAmount{Amount: maxAmount, UseAllAmount: true})
	return nil
}

// Retry re-requests a quote for the current snapshot
func (s *Session) Retry() {
	s.fetcher.Retry()
}

// Expire drops the committed quote as the countdown would
func (s *Session) Expire() {
	s.expiration.Expire()
}

// SetAccounts replaces the account snapshot. Selected accounts are rebound
// to their counterparts in the new snapshot, then both sides re-resolve.
func (s *Session) SetAccounts(accounts []*types.Account) {
	s.mu.Lock()
	s.accounts = accounts
	s.statuses = CurrenciesWithStatus(accounts, s.cfg.InstalledApps, s.cfg.Selectable)
	s.mu.Unlock()

	st := s.store.State()
	ex := st.Swap.Exchange
	from := rebind(accounts, Resolution{ex.FromAccount, ex.FromParentAccount}, st.FromCurrency)
	to := rebind(accounts, Resolution{ex.ToAccount, ex.ToParentAccount}, st.ToCurrency)

	s.store.Dispatch(PatchExchange{
		Fields: FieldFromAccount | FieldFromParentAccount | FieldToAccount | FieldToParentAccount,
		Patch: Exchange{
			FromAccount:       from.Account,
			FromParentAccount: from.ParentAccount,
			ToAccount:         to.Account,
			ToParentAccount:   to.ParentAccount,
		},
	})
}

// Transaction builds the transaction for the current snapshot
func (s *Session) Transaction() (types.Transaction, error) {
	st := s.store.State()
	if st.Swap.Exchange.FromAccount == nil {
		return types.Transaction{}, ErrNoSourceAccount
	}
	return s.cfg.Builder.BuildTransaction(st.Swap.Exchange, st.FromAmount, st.UseAllAmount)
}

// StartSwap freezes the committed quote and opens the confirmation flow.
// EndSwap must follow.
func (s *Session) StartSwap() (Handoff, error) {
	if !s.store.State().HasRate() {
		return Handoff{}, ErrNoRate
	}
	tx, err := s.Transaction()
	if err != nil {
		return Handoff{}, fmt.Errorf("failed to build transaction: %w", err)
	}
	return s.expiration.StartSwap(tx)
}

// EndSwap closes the confirmation flow, which expires the quote
func (s *Session) EndSwap() {
	s.flow.Close()
}

// Confirm runs flow on the committed quote. The quote is expired once the
// flow returns, whatever its outcome.
func (s *Session) Confirm(ctx context.Context, flow ConfirmationFlow) (Result, error) {
	handoff, err := s.StartSwap()
	if err != nil {
		return Result{}, err
	}
	defer s.EndSwap()

	s.log.Info("starting swap",
		"from", currencyID(handoff.Exchange.FromCurrency()),
		"to", currencyID(handoff.Exchange.ToCurrency()),
		"amount", handoff.FromAmount.String(),
		"rate", handoff.Rate.Rate.String())

	result, err := flow.Run(ctx, handoff)
	if err != nil {
		return Result{}, err
	}
	s.log.Info("swap completed", "swap_id", result.SwapID, "operation", result.Operation.ID)
	return result, nil
}

// Close stops the effects and waits for pending requests
func (s *Session) Close() {
	s.expiration.Close()
	s.fetcher.Close()
}

// resolve keeps both account sides consistent with the selected currencies
func (s *Session) resolve(st State) {
	accounts := s.Accounts()
	ex := st.Swap.Exchange

	// resolutions are queued; drop them if the currencies moved on meanwhile
	if res, changed := ResolveFromAccount(accounts, st.FromCurrency, Resolution{ex.FromAccount, ex.FromParentAccount}); changed {
		s.store.DispatchGuarded(s.currenciesUnchanged(st), SetFromAccount{Account: res.Account, ParentAccount: res.ParentAccount})
	}
	if res, changed := ResolveToAccount(accounts, st.ToCurrency, st.FromCurrency, Resolution{ex.ToAccount, ex.ToParentAccount}); changed {
		s.store.DispatchGuarded(s.currenciesUnchanged(st), SetToAccount{Account: res.Account, ParentAccount: res.ParentAccount})
	}
}

func (s *Session) currenciesUnchanged(st State) func() bool {
	return func() bool {
		cur := s.store.State()
		return sameSelection(cur.FromCurrency, st.FromCurrency) && sameSelection(cur.ToCurrency, st.ToCurrency)
	}
}

// rebind finds the counterpart of a selection in a new account snapshot
func rebind(accounts []*types.Account, current Resolution, currency *types.Currency) Resolution {
	if current.Account == nil {
		return Resolution{}
	}

	if current.ParentAccount != nil {
		parent := findAccount(accounts, current.ParentAccount.ID)
		if parent == nil {
			return Resolution{}
		}
		return pick([]*types.Account{parent}, currency)
	}

	account := findAccount(accounts, current.Account.ID)
	if account == nil {
		return Resolution{}
	}
	return Resolution{Account: account}
}

func findAccount(accounts []*types.Account, id string) *types.Account {
	for _, a := range accounts {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func accountID(a *types.Account) string {
	if a == nil {
		return "<none>"
	}
	return a.ID
}

func containsAccount(list []*types.Account, a *types.Account) bool {
	if a == nil {
		return false
	}
	for _, item := range list {
		if types.SameAccount(item, a) {
			return true
		}
	}
	return false
}
