package core

import (
	"errors"
	"fmt"
)

// ErrRoundLimitExceeded is returned once a RoundLimiter passes its bound.
var ErrRoundLimitExceeded = errors.New("round limit exceeded")

// RoundLimiter counts the rounds of a bounded loop such as the auto-deny
// cascade. It is not safe for concurrent use.
type RoundLimiter struct {
	max   int
	count int
}

// NewRoundLimiter creates a limiter allowing max rounds. Zero means unlimited.
func NewRoundLimiter(max int) *RoundLimiter {
	return &RoundLimiter{max: max}
}

// Increment starts a new round. It fails when the round would pass the bound.
func (rl *RoundLimiter) Increment() error {
	rl.count++
	if rl.max > 0 && rl.count > rl.max {
		return fmt.Errorf("%w: %d", ErrRoundLimitExceeded, rl.max)
	}

	return nil
}

// Count returns the number of rounds started, including a rejected one.
func (rl *RoundLimiter) Count() int { return rl.count }
