package swap

import (
	"sync"
	"time"
)

// Subscriber is notified after every committed transition
type Subscriber func(prev, next State, action Action)

// LogEntry records one committed transition
type LogEntry struct {
	Seq    uint64
	Action Action
	At     time.Time
}

type queued struct {
	action Action
	guard  func() bool
}

// Store owns the authoritative swap state. Transitions are applied one at a
// time, in the order they were dispatched, and subscribers observe them in
// that same order. A dispatch issued while another goroutine is draining the
// queue is applied by that goroutine.
type Store struct {
	mu       sync.Mutex
	state    State
	queue    []queued
	draining bool
	seq      uint64
	history  []LogEntry
	subs     []Subscriber
	clock    func() time.Time
}

// NewStore creates a store holding the initial state
func NewStore(initial State) *Store {
	return &Store{
		state: initial,
		clock: time.Now,
	}
}

// SetClock replaces the time source used to stamp rates and log entries
func (s *Store) SetClock(clock func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = clock
}

// Now returns the store's current time
func (s *Store) Now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clock()
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Subscribe registers fn for every subsequent transition
func (s *Store) Subscribe(fn Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// History returns the command log
func (s *Store) History() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.history))
	copy(out, s.history)
	return out
}

// Dispatch applies action after every previously dispatched action
func (s *Store) Dispatch(action Action) {
	s.enqueue(queued{action: action})
}

// DispatchGuarded is Dispatch for results of asynchronous work: guard is
// evaluated right before the action would be applied and the action is
// dropped if it returns false. Guard must not dispatch.
func (s *Store) DispatchGuarded(guard func() bool, action Action) {
	s.enqueue(queued{action: action, guard: guard})
}

func (s *Store) enqueue(item queued) {
	s.mu.Lock()
	s.queue = append(s.queue, item)
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true

	for len(s.queue) > 0 {
		next := s.queue[0]
		s.queue = s.queue[1:]

		// Guards read state owned by subscribers; run them unlocked so they
		// may take their own locks.
		if next.guard != nil {
			s.mu.Unlock()
			ok := next.guard()
			s.mu.Lock()
			if !ok {
				continue
			}
		}

		now := s.clock()
		action := next.action
		if rate, ok := action.(SetRate); ok && rate.At.IsZero() {
			rate.At = now
			action = rate
		}

		prev := s.state
		s.state = Apply(prev, action)
		s.seq++
		s.history = append(s.history, LogEntry{Seq: s.seq, Action: action, At: now})

		state := s.state
		subs := make([]Subscriber, len(s.subs))
		copy(subs, s.subs)

		s.mu.Unlock()
		for _, fn := range subs {
			fn(prev, state, action)
		}
		s.mu.Lock()
	}

	s.draining = false
	s.mu.Unlock()
}
