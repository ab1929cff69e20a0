// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "time"

// Budget reports how much execution time the host environment grants the
// session.
type Budget interface {
	RemainingTime() time.Duration
}

// BudgetFunc adapts a function to Budget.
type BudgetFunc func() time.Duration

func (f BudgetFunc) RemainingTime() time.Duration { return f() }

// Deadline is a Budget that runs out at a fixed instant.
type Deadline time.Time

// DeadlineAfter returns a Deadline d from now.
func DeadlineAfter(d time.Duration) Deadline {
	return Deadline(time.Now().Add(d))
}

func (d Deadline) RemainingTime() time.Duration {
	return time.Until(time.Time(d))
}

// Unlimited never runs out.
type Unlimited struct{}

func (Unlimited) RemainingTime() time.Duration { return time.Duration(1<<63 - 1) }
