package assistant

import "time"

// DefaultBudget is the soft wall-clock allowance for one pipeline run.
const DefaultBudget = 9 * time.Second

// Budget is the soft deadline for one run. It is advisory: decision rules
// consult Remaining before starting optional work, and nothing in flight is
// cancelled when it runs out.
type Budget struct {
	deadline time.Time
	now      func() time.Time
}

// NewBudget starts a budget of limit from the wall clock.
func NewBudget(limit time.Duration) Budget {
	return NewBudgetWithClock(time.Now, limit)
}

// NewBudgetWithClock fixes the time source. Tests step the clock by hand.
func NewBudgetWithClock(now func() time.Time, limit time.Duration) Budget {
	return Budget{deadline: now().Add(limit), now: now}
}

// Remaining reports the time left before the soft deadline, negative once
// past it. The zero Budget has nothing left.
func (b Budget) Remaining() time.Duration {
	if b.now == nil {
		return 0
	}
	return b.deadline.Sub(b.now())
}

// Exhausted reports whether the soft deadline has passed.
func (b Budget) Exhausted() bool {
	return b.Remaining() <= 0
}
