package swap

import (
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"wallet-swap/pkg/types"
)

// DefaultRatesExpiration is how long a committed quote stays valid
const DefaultRatesExpiration = 60 * time.Second

// Handoff is what the confirmation flow receives when the user proceeds
type Handoff struct {
	Exchange        Exchange
	Rate            ExchangeRate
	FromAmount      decimal.Decimal
	Transaction     types.Transaction
	RatesExpiration time.Time
}

// FlowSignal tracks whether the confirmation flow is open
type FlowSignal struct {
	mu   sync.Mutex
	open bool
	subs []func(open bool)
}

// NewFlowSignal returns a closed signal
func NewFlowSignal() *FlowSignal {
	return &FlowSignal{}
}

// Subscribe registers fn for every change of the signal
func (f *FlowSignal) Subscribe(fn func(open bool)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, fn)
}

// IsOpen reports whether the confirmation flow is open
func (f *FlowSignal) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Open marks the confirmation flow as open
func (f *FlowSignal) Open() {
	f.set(true)
}

// Close marks the confirmation flow as closed
func (f *FlowSignal) Close() {
	f.set(false)
}

func (f *FlowSignal) set(open bool) {
	f.mu.Lock()
	if f.open == open {
		f.mu.Unlock()
		return
	}
	f.open = open
	subs := make([]func(bool), len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	for _, fn := range subs {
		fn(open)
	}
}

// ExpirationManager bounds the lifetime of committed quotes. Quotes expire
// when their countdown runs out and every time the confirmation flow closes,
// so that returning to the form always re-quotes. Nothing expires while the
// flow is open: the quote is frozen for the hand-off.
type ExpirationManager struct {
	store     *Store
	flow      *FlowSignal
	threshold time.Duration
	log       *slog.Logger
	metrics   *Metrics

	mu           sync.Mutex
	timerVisible bool
	timer        *time.Timer
	closed       bool
}

// NewExpirationManager subscribes to the store and the flow signal. A
// non-positive threshold selects DefaultRatesExpiration.
func NewExpirationManager(store *Store, flow *FlowSignal, threshold time.Duration, logger *slog.Logger, metrics *Metrics) *ExpirationManager {
	if threshold <= 0 {
		threshold = DefaultRatesExpiration
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &ExpirationManager{
		store:        store,
		flow:         flow,
		threshold:    threshold,
		log:          logger.With("component", "expiration"),
		metrics:      metrics,
		timerVisible: true,
	}
	store.Subscribe(m.onState)
	flow.Subscribe(m.onFlow)

	m.Expire()
	return m
}

// Threshold returns the validity window of a quote
func (m *ExpirationManager) Threshold() time.Duration {
	return m.threshold
}

// RatesExpiration returns the instant the committed quote of s expires
func (m *ExpirationManager) RatesExpiration(s State) (time.Time, bool) {
	if s.RatesTimestamp.IsZero() {
		return time.Time{}, false
	}
	return s.RatesTimestamp.Add(m.threshold), true
}

// TimerVisible reports whether the countdown should be shown
func (m *ExpirationManager) TimerVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.timerVisible
}

// Expire drops the committed quote unless the confirmation flow is open
func (m *ExpirationManager) Expire() {
	if m.flow.IsOpen() {
		return
	}

	m.mu.Lock()
	m.timerVisible = true
	m.mu.Unlock()

	// the flow may open while the action waits in the queue
	m.store.DispatchGuarded(func() bool {
		if m.flow.IsOpen() {
			return false
		}
		if m.store.State().HasRate() {
			m.metrics.rateExpired()
			m.log.Debug("exchange rate expired")
		}
		return true
	}, ExpireRates{})
}

// StartSwap freezes the committed quote and opens the confirmation flow
func (m *ExpirationManager) StartSwap(tx types.Transaction) (Handoff, error) {
	s := m.store.State()
	if !s.HasRate() {
		return Handoff{}, ErrNoRate
	}
	expiration, _ := m.RatesExpiration(s)

	m.mu.Lock()
	m.timerVisible = false
	m.mu.Unlock()

	handoff := Handoff{
		Exchange:        s.Swap.Exchange,
		Rate:            *s.Swap.ExchangeRate,
		FromAmount:      s.FromAmount,
		Transaction:     tx,
		RatesExpiration: expiration,
	}
	m.flow.Open()
	return handoff, nil
}

// Close stops the countdown
func (m *ExpirationManager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *ExpirationManager) onFlow(open bool) {
	if !open {
		m.Expire()
	}
}

// onState arms the countdown for every newly committed quote
func (m *ExpirationManager) onState(prev, next State, _ Action) {
	if next.RatesTimestamp.Equal(prev.RatesTimestamp) {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.closed || next.RatesTimestamp.IsZero() {
		return
	}

	stamp := next.RatesTimestamp
	wait := stamp.Add(m.threshold).Sub(m.store.Now())
	if wait < 0 {
		wait = 0
	}
	m.timer = time.AfterFunc(wait, func() {
		if m.store.State().RatesTimestamp.Equal(stamp) {
			m.Expire()
		}
	})
}
