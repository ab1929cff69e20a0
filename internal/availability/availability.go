// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package availability answers whether a domain name is free to register.
package availability

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ManuGH/namewhisk/internal/metrics"
)

var (
	// ErrInvalidDomain is returned for labels that cannot be converted to ASCII.
	ErrInvalidDomain = errors.New("availability: invalid domain")
	// ErrUnexpectedStatus is returned when the registry answers with anything
	// but "found" or "not found".
	ErrUnexpectedStatus = errors.New("availability: unexpected registry status")
)

// Result is the answer for one candidate.
type Result struct {
	Name      string `json:"name"`
	TLD       string `json:"tld"`
	Available bool   `json:"available"`
}

// Checker looks up a single name.
type Checker interface {
	Check(ctx context.Context, name, tld string) (Result, error)
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context, name, tld string) (Result, error)

func (f CheckerFunc) Check(ctx context.Context, name, tld string) (Result, error) {
	return f(ctx, name, tld)
}

// CheckAll checks every name concurrently, at most limit at a time (no bound
// when limit <= 0). Results keep the order of names. The first error cancels
// the remaining lookups and is returned.
func CheckAll(ctx context.Context, c Checker, names []string, tld string, limit int) ([]Result, error) {
	out := make([]Result, len(names))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, name := range names {
		g.Go(func() error {
			r, err := c.Check(gctx, name, tld)
			if err != nil {
				return fmt.Errorf("check %s.%s: %w", name, tld, err)
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		metrics.IncAvailabilityCheck("error")
		return nil, err
	}
	return out, nil
}

// FilterAvailable keeps the available results, preserving order.
func FilterAvailable(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Available {
			out = append(out, r)
		}
	}
	return out
}
