package swap

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

const waitFor = 2 * time.Second

func nextCall(t *testing.T, p *manualPricing) pricingCall {
	t.Helper()
	select {
	case call := <-p.calls:
		return call
	case <-time.After(waitFor):
		t.Fatal("expected a pricing request")
		return pricingCall{}
	}
}

func noCall(t *testing.T, p *manualPricing) {
	t.Helper()
	select {
	case call := <-p.calls:
		t.Fatalf("unexpected pricing request for %s", call.tx.Amount)
	case <-time.After(50 * time.Millisecond):
	}
}

func newTestMetrics(t *testing.T) *Metrics {
	t.Helper()
	m, err := NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestFetcherCommitsFirstOffer(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()
	metrics := newTestMetrics(t)

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, metrics)
	defer fetcher.Close()
	fetcher.Start()

	call := nextCall(t, pricing)
	assert.True(t, call.tx.Amount.Equal(decimal.NewFromInt(50_000_000)))
	assert.Equal(t, "abandon-seed", call.tx.Recipient)
	assert.True(t, fetcher.InFlight())

	call.reply <- pricingReply{rates: []ExchangeRate{testRate("20"), testRate("19")}}

	require.Eventually(t, func() bool { return store.State().HasRate() }, waitFor, 5*time.Millisecond)
	assert.Equal(t, "rate-20", store.State().Swap.ExchangeRate.RateID)
	assert.False(t, fetcher.InFlight())

	noCall(t, pricing)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.requests))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.responses.WithLabelValues(outcomeSuccess)))
}

// Responses of superseded requests never reach the state, whatever the
// order in which they arrive.
func TestFetcherDiscardsStaleResponses(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()
	metrics := newTestMetrics(t)

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, metrics)
	defer fetcher.Close()
	fetcher.Start()

	first := nextCall(t, pricing)

	store.Dispatch(SetFromAmount{Amount: decimal.NewFromInt(70_000_000)})
	second := nextCall(t, pricing)
	assert.True(t, second.tx.Amount.Equal(decimal.NewFromInt(70_000_000)))

	second.reply <- pricingReply{rates: []ExchangeRate{testRate("21")}}
	require.Eventually(t, func() bool { return store.State().HasRate() }, waitFor, 5*time.Millisecond)

	first.reply <- pricingReply{rates: []ExchangeRate{testRate("5")}}
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.responses.WithLabelValues(outcomeStale)) == 1
	}, waitFor, 5*time.Millisecond)

	s := store.State()
	assert.Equal(t, "rate-21", s.Swap.ExchangeRate.RateID)
	assert.True(t, s.FromAmount.Equal(decimal.NewFromInt(70_000_000)))
	for _, entry := range store.History() {
		if rate, ok := entry.Action.(SetRate); ok {
			assert.NotEqual(t, "rate-5", rate.Rate.RateID)
		}
	}
}

func TestFetcherDiscardsStaleErrors(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, nil)
	defer fetcher.Close()
	fetcher.Start()

	first := nextCall(t, pricing)
	store.Dispatch(SetToCurrency{Currency: f.sol})
	noCall(t, pricing)

	first.reply <- pricingReply{err: errors.New("late failure")}
	time.Sleep(50 * time.Millisecond)
	assert.NoError(t, store.State().Error)
}

func TestFetcherErrorWaitsForInputChange(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()
	metrics := newTestMetrics(t)

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, metrics)
	defer fetcher.Close()
	fetcher.Start()

	unavailable := errors.New("service unavailable")
	nextCall(t, pricing).reply <- pricingReply{err: unavailable}

	require.Eventually(t, func() bool { return store.State().Error != nil }, waitFor, 5*time.Millisecond)
	var fetchErr *RateFetchError
	require.ErrorAs(t, store.State().Error, &fetchErr)
	assert.Equal(t, f.btc.ID, fetchErr.From)
	assert.Equal(t, f.eth.ID, fetchErr.To)
	assert.ErrorIs(t, store.State().Error, unavailable)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.responses.WithLabelValues(outcomeError)))

	noCall(t, pricing)

	fetcher.Retry()
	nextCall(t, pricing).reply <- pricingReply{rates: []ExchangeRate{testRate("20")}}
	require.Eventually(t, func() bool { return store.State().HasRate() }, waitFor, 5*time.Millisecond)
	assert.NoError(t, store.State().Error)
}

func TestFetcherEmptyOffers(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, nil)
	defer fetcher.Close()
	fetcher.Start()

	nextCall(t, pricing).reply <- pricingReply{}
	require.Eventually(t, func() bool { return store.State().Error != nil }, waitFor, 5*time.Millisecond)
	assert.ErrorIs(t, store.State().Error, ErrNoOffers)
	assert.False(t, store.State().HasRate())
}

type failingBuilder struct{ err error }

func (b failingBuilder) BuildTransaction(Exchange, decimal.Decimal, bool) (types.Transaction, error) {
	return types.Transaction{}, b.err
}

func TestFetcherBuildFailure(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()
	broken := errors.New("unsupported family")

	fetcher := NewRateFetcher(store, pricing, failingBuilder{err: broken}, nil, nil)
	defer fetcher.Close()
	fetcher.Start()

	assert.ErrorIs(t, store.State().Error, broken)
	assert.False(t, fetcher.InFlight())
	noCall(t, pricing)
}

func TestFetcherIgnoresIncompleteSnapshots(t *testing.T) {
	f := newFixture(t)
	store := NewStore(Apply(f.readyState(), SetFromAmount{Amount: decimal.Zero}))
	pricing := newManualPricing()

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, nil)
	defer fetcher.Close()
	fetcher.Start()

	noCall(t, pricing)
	assert.False(t, fetcher.InFlight())
}

func TestFetcherCloseCancelsPending(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	pricing := newManualPricing()

	fetcher := NewRateFetcher(store, pricing, stubBuilder{}, nil, nil)
	fetcher.Start()
	nextCall(t, pricing)

	fetcher.Close()
	assert.False(t, store.State().HasRate())
	assert.NoError(t, store.State().Error, "cancelled request results are dropped")
}
