package swap

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// PricingService quotes an exchange for a candidate transaction
type PricingService interface {
	GetExchangeRates(ctx context.Context, exchange Exchange, tx types.Transaction) ([]ExchangeRate, error)
}

// TransactionBuilder builds the transaction a quote is requested for
type TransactionBuilder interface {
	BuildTransaction(exchange Exchange, amount decimal.Decimal, useAllAmount bool) (types.Transaction, error)
}

// requestToken identifies one quote request. Once cancelled, whatever the
// request returns is dropped.
type requestToken struct {
	id        string
	cancelled atomic.Bool
	done      atomic.Bool
}

func newRequestToken() *requestToken {
	return &requestToken{id: uuid.NewString()}
}

func (t *requestToken) cancel() {
	t.cancelled.Store(true)
}

func (t *requestToken) isCancelled() bool {
	return t.cancelled.Load()
}

// fetchKey is the part of the state a quote request depends on
type fetchKey struct {
	canRequest bool
	hasRate    bool
	exchange   Exchange
	amount     decimal.Decimal
	useAll     bool
}

func keyOf(s State) fetchKey {
	return fetchKey{
		canRequest: CanRequestRates(s),
		hasRate:    s.HasRate(),
		exchange:   s.Swap.Exchange,
		amount:     s.FromAmount,
		useAll:     s.UseAllAmount,
	}
}

func (k fetchKey) equal(o fetchKey) bool {
	return k.canRequest == o.canRequest &&
		k.hasRate == o.hasRate &&
		k.exchange.sameAs(o.exchange) &&
		k.amount.Equal(o.amount) &&
		k.useAll == o.useAll
}

// RateFetcher keeps at most one live quote request for the latest snapshot.
// Every change of the request inputs cancels the live request; its response
// is then discarded instead of being committed.
type RateFetcher struct {
	store   *Store
	pricing PricingService
	builder TransactionBuilder
	log     *slog.Logger
	metrics *Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	current *requestToken
	last    fetchKey
	seen    bool
	closed  bool
}

// NewRateFetcher subscribes a fetcher to store. Logger and metrics may be nil.
func NewRateFetcher(store *Store, pricing PricingService, builder TransactionBuilder, logger *slog.Logger, metrics *Metrics) *RateFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())

	f := &RateFetcher{
		store:   store,
		pricing: pricing,
		builder: builder,
		log:     logger.With("component", "rate-fetcher"),
		metrics: metrics,
		ctx:     ctx,
		cancel:  cancel,
	}
	store.Subscribe(f.onChange)
	return f
}

// Start evaluates the current snapshot once; later snapshots are picked up
// from the store subscription.
func (f *RateFetcher) Start() {
	f.onChange(State{}, f.store.State(), nil)
}

// Retry re-issues a request for the current snapshot, e.g. after an error
func (f *RateFetcher) Retry() {
	s := f.store.State()
	f.mu.Lock()
	f.last = keyOf(s)
	f.seen = true
	f.mu.Unlock()
	f.refresh(s)
}

// InFlight reports whether a live request is waiting for its response
func (f *RateFetcher) InFlight() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current != nil && !f.current.isCancelled() && !f.current.done.Load()
}

// Close cancels outstanding requests and waits for their goroutines
func (f *RateFetcher) Close() {
	f.mu.Lock()
	f.closed = true
	if f.current != nil {
		f.current.cancel()
		f.current = nil
	}
	f.mu.Unlock()

	f.cancel()
	f.wg.Wait()
}

func (f *RateFetcher) onChange(_, next State, _ Action) {
	key := keyOf(next)

	f.mu.Lock()
	if f.seen && key.equal(f.last) {
		f.mu.Unlock()
		return
	}
	f.last = key
	f.seen = true
	f.mu.Unlock()

	f.refresh(next)
}

func (f *RateFetcher) refresh(s State) {
	f.mu.Lock()
	if f.current != nil {
		f.current.cancel()
		f.current = nil
	}
	if f.closed || !CanRequestRates(s) {
		f.mu.Unlock()
		return
	}
	token := newRequestToken()
	f.current = token
	f.wg.Add(1)
	f.mu.Unlock()

	exchange := s.Swap.Exchange
	tx, err := f.builder.BuildTransaction(exchange, s.FromAmount, s.UseAllAmount)
	if err != nil {
		defer f.wg.Done()
		token.done.Store(true)
		f.log.Warn("cannot build transaction for quote", "request", token.id, "error", err)
		f.store.DispatchGuarded(f.guard(token, outcomeError), SetError{Err: f.wrap(exchange, err)})
		return
	}

	f.log.Debug("requesting exchange rates",
		"request", token.id,
		"from", currencyID(exchange.FromCurrency()),
		"to", currencyID(exchange.ToCurrency()),
		"amount", tx.Amount.String())
	f.metrics.requestSent()

	go f.fetch(token, exchange, tx)
}

func (f *RateFetcher) fetch(token *requestToken, exchange Exchange, tx types.Transaction) {
	defer f.wg.Done()

	rates, err := f.pricing.GetExchangeRates(f.ctx, exchange, tx)
	token.done.Store(true)
	if err == nil && len(rates) == 0 {
		err = ErrNoOffers
	}

	if err != nil {
		f.store.DispatchGuarded(f.guard(token, outcomeError), SetError{Err: f.wrap(exchange, err)})
		return
	}
	f.store.DispatchGuarded(f.guard(token, outcomeSuccess), SetRate{Rate: rates[0]})
}

// guard is the commit point of a request: it runs right before the result
// is applied and rejects results of cancelled requests.
func (f *RateFetcher) guard(token *requestToken, outcome string) func() bool {
	return func() bool {
		if token.isCancelled() {
			f.metrics.response(outcomeStale)
			f.log.Debug(errStaleResponse.Error(), "request", token.id, "outcome", outcome)
			return false
		}
		f.metrics.response(outcome)
		return true
	}
}

func (f *RateFetcher) wrap(exchange Exchange, err error) error {
	return &RateFetchError{
		From: currencyID(exchange.FromCurrency()),
		To:   currencyID(exchange.ToCurrency()),
		Err:  err,
	}
}

func currencyID(c *types.Currency) string {
	if c == nil {
		return ""
	}
	return c.ID
}
