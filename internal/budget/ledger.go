// Package budget tracks daily LLM spend in USD.
//
// The day boundary is soft: it is the UTC calendar date of the ledger's
// clock, held in memory only. A restart starts a new ledger at zero.
package budget

import (
	"math"
	"sync"
	"time"
)

const dayLayout = "2006-01-02"

// Ledger is the daily spend ledger. A cap of zero or less means
// unlimited. All reads and writes run under one lock, so a check and
// the spend it admits cannot interleave with another request.
type Ledger struct {
	mu    sync.Mutex
	day   string
	spent float64
	now   func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the wall clock used for day rollover.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.now = now
	}
}

// NewLedger creates an empty ledger for the current day.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.day = l.today()
	return l
}

func (l *Ledger) today() string {
	return l.now().UTC().Format(dayLayout)
}

// rollover resets spend when the date has advanced. Caller holds mu.
func (l *Ledger) rollover() {
	if today := l.today(); today != l.day {
		l.day = today
		l.spent = 0
	}
}

// CanSpend reports whether amount fits under dailyCap today.
func (l *Ledger) CanSpend(amount, dailyCap float64) bool {
	if dailyCap <= 0 {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.spent+amount <= dailyCap
}

// Record adds amount to today's spend and returns the new total.
// With an unlimited cap it records nothing and returns 0.
func (l *Ledger) Record(amount, dailyCap float64) float64 {
	if dailyCap <= 0 {
		return 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if amount > 0 {
		l.spent += amount
	}
	return l.spent
}

// Spent returns today's spend.
func (l *Ledger) Spent() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	return l.spent
}

// Reserve checks amount against dailyCap and, if it fits, adds it to
// today's spend in the same critical section. The caller must settle the
// reservation with Commit or Release.
func (l *Ledger) Reserve(amount, dailyCap float64) (*Reservation, error) {
	if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return nil, ErrInvalidAmount
	}
	if dailyCap <= 0 {
		return &Reservation{ledger: l, unlimited: true}, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if l.spent+amount > dailyCap {
		return nil, ErrBudgetExhausted
	}
	l.spent += amount
	return &Reservation{ledger: l, amount: amount, day: l.day}, nil
}

// Reservation is spend held against the ledger while an LLM call runs.
type Reservation struct {
	ledger    *Ledger
	amount    float64
	day       string
	unlimited bool
	settled   bool
}

// Amount returns the reserved amount.
func (r *Reservation) Amount() float64 {
	return r.amount
}

// Commit replaces the reserved amount with the actual cost and returns
// today's total. Actual cost is recorded even when it exceeds the
// reservation. Settling twice is a no-op.
func (r *Reservation) Commit(actual float64) float64 {
	if r.unlimited {
		return 0
	}
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if r.settled {
		return l.spent
	}
	r.settled = true
	if actual < 0 || math.IsNaN(actual) {
		actual = 0
	}
	if r.day == l.day {
		l.spent += actual - r.amount
	} else {
		l.spent += actual
	}
	if l.spent < 0 {
		l.spent = 0
	}
	return l.spent
}

// Release returns the reserved amount to the ledger.
func (r *Reservation) Release() {
	if r.unlimited {
		return
	}
	l := r.ledger
	l.mu.Lock()
	defer l.mu.Unlock()

	l.rollover()
	if r.settled {
		return
	}
	r.settled = true
	if r.day == l.day {
		l.spent -= r.amount
		if l.spent < 0 {
			l.spent = 0
		}
	}
}
