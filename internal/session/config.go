// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package session

import "time"

const (
	DefaultInactivityTimeout = 30 * time.Second
	DefaultBudgetMargin      = 5 * time.Second
	DefaultBudgetInterval    = 1 * time.Second
	DefaultPublishTimeout    = 10 * time.Second
	// MinTick is the dispatch granularity; no session interval is shorter.
	MinTick = 100 * time.Millisecond
)

// Config holds the session timings.
type Config struct {
	// InactivityTimeout ends an idle session.
	InactivityTimeout time.Duration
	// BudgetMargin ends the session once less budget than this remains.
	BudgetMargin time.Duration
	// BudgetInterval is how often the budget is checked.
	BudgetInterval time.Duration
	// PublishTimeout bounds every acknowledged publish.
	PublishTimeout time.Duration
}

// DefaultConfig returns the production timings.
func DefaultConfig() Config {
	return Config{
		InactivityTimeout: DefaultInactivityTimeout,
		BudgetMargin:      DefaultBudgetMargin,
		BudgetInterval:    DefaultBudgetInterval,
		PublishTimeout:    DefaultPublishTimeout,
	}
}

// normalized fills zero values with defaults and clamps intervals to MinTick.
func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.InactivityTimeout == 0 {
		c.InactivityTimeout = d.InactivityTimeout
	}
	if c.BudgetMargin < 0 {
		c.BudgetMargin = 0
	} else if c.BudgetMargin == 0 {
		c.BudgetMargin = d.BudgetMargin
	}
	if c.BudgetInterval == 0 {
		c.BudgetInterval = d.BudgetInterval
	}
	if c.PublishTimeout == 0 {
		c.PublishTimeout = d.PublishTimeout
	}
	c.InactivityTimeout = max(c.InactivityTimeout, MinTick)
	c.BudgetInterval = max(c.BudgetInterval, MinTick)
	c.PublishTimeout = max(c.PublishTimeout, MinTick)
	return c
}
