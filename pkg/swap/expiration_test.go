package swap

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-swap/pkg/types"
)

func TestExpirationOnConstruction(t *testing.T) {
	f := newFixture(t)
	store := NewStore(Apply(f.readyState(), SetRate{Rate: testRate("20"), At: time.Now()}))
	metrics := newTestMetrics(t)

	m := NewExpirationManager(store, NewFlowSignal(), time.Minute, nil, metrics)
	defer m.Close()

	assert.False(t, store.State().HasRate())
	assert.True(t, m.TimerVisible())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.expired))
}

func TestExpirationDefaultThreshold(t *testing.T) {
	f := newFixture(t)
	m := NewExpirationManager(NewStore(f.readyState()), NewFlowSignal(), 0, nil, nil)
	defer m.Close()
	assert.Equal(t, DefaultRatesExpiration, m.Threshold())
}

func TestCountdownExpiresQuote(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	m := NewExpirationManager(store, NewFlowSignal(), 30*time.Millisecond, nil, nil)
	defer m.Close()

	store.Dispatch(SetRate{Rate: testRate("20")})
	s := store.State()
	require.True(t, s.HasRate())

	expiry, ok := m.RatesExpiration(s)
	require.True(t, ok)
	assert.Equal(t, s.RatesTimestamp.Add(30*time.Millisecond), expiry)

	require.Eventually(t, func() bool { return !store.State().HasRate() }, waitFor, 5*time.Millisecond)
	_, ok = m.RatesExpiration(store.State())
	assert.False(t, ok)
}

func TestOpenFlowFreezesQuote(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	flow := NewFlowSignal()
	m := NewExpirationManager(store, flow, 30*time.Millisecond, nil, nil)
	defer m.Close()

	store.Dispatch(SetRate{Rate: testRate("20")})
	stamp := store.State().RatesTimestamp

	tx := types.Transaction{Family: "bitcoin", Recipient: "abandon-seed"}
	handoff, err := m.StartSwap(tx)
	require.NoError(t, err)
	assert.True(t, flow.IsOpen())
	assert.False(t, m.TimerVisible())
	assert.Equal(t, "rate-20", handoff.Rate.RateID)
	assert.Equal(t, tx, handoff.Transaction)
	assert.Equal(t, f.btcAccount, handoff.Exchange.FromAccount)
	assert.Equal(t, stamp.Add(30*time.Millisecond), handoff.RatesExpiration)

	time.Sleep(100 * time.Millisecond)
	assert.True(t, store.State().HasRate(), "quote frozen while the flow is open")

	m.Expire()
	assert.True(t, store.State().HasRate())

	flow.Close()
	assert.False(t, store.State().HasRate(), "closing the flow always expires")
	assert.True(t, m.TimerVisible())
}

func TestQueuedExpiryDroppedOnceFlowOpens(t *testing.T) {
	f := newFixture(t)
	store := NewStore(f.readyState())
	flow := NewFlowSignal()
	metrics := newTestMetrics(t)
	m := NewExpirationManager(store, flow, time.Minute, nil, metrics)
	defer m.Close()

	// expiry is queued behind the running update, then the flow opens
	started := false
	store.Subscribe(func(_, next State, action Action) {
		if _, ok := action.(SetRate); !ok || started {
			return
		}
		started = true
		m.Expire()
		_, err := m.StartSwap(types.Transaction{Family: "bitcoin"})
		require.NoError(t, err)
	})

	store.Dispatch(SetRate{Rate: testRate("20")})

	require.True(t, flow.IsOpen())
	assert.True(t, store.State().HasRate(), "quote kept while the flow is open")
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.expired))

	flow.Close()
	assert.False(t, store.State().HasRate())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.expired))
}

func TestStartSwapRequiresRate(t *testing.T) {
	f := newFixture(t)
	flow := NewFlowSignal()
	m := NewExpirationManager(NewStore(f.readyState()), flow, time.Minute, nil, nil)
	defer m.Close()

	_, err := m.StartSwap(types.Transaction{})
	assert.ErrorIs(t, err, ErrNoRate)
	assert.False(t, flow.IsOpen())
	assert.True(t, m.TimerVisible())
}

func TestFlowSignalNotifiesOnChange(t *testing.T) {
	flow := NewFlowSignal()
	var seen []bool
	flow.Subscribe(func(open bool) { seen = append(seen, open) })

	flow.Close()
	flow.Open()
	flow.Open()
	flow.Close()

	assert.Equal(t, []bool{true, false}, seen)
}
