// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package availability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/namewhisk/internal/log"
	"github.com/ManuGH/namewhisk/internal/metrics"
	"github.com/ManuGH/namewhisk/internal/resilience"
)

// DefaultRDAPBaseURL is the IANA bootstrap-aware public RDAP redirector.
const DefaultRDAPBaseURL = "https://rdap.org"

// ErrCircuitOpen is returned while the registry breaker is open.
var ErrCircuitOpen = resilience.ErrCircuitOpen

// RDAPConfig configures an RDAPChecker.
type RDAPConfig struct {
	BaseURL string
	Timeout time.Duration
	// Rate is the number of lookups per second; zero disables limiting.
	Rate  float64
	Burst int
	// BreakerThreshold consecutive registry failures open the breaker for
	// BreakerReset.
	BreakerThreshold int
	BreakerReset     time.Duration
}

// RDAPChecker decides availability from the RDAP domain lookup status:
// 404 means nobody holds the name, 200 means it is registered.
type RDAPChecker struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// NewRDAPChecker creates a checker. client may be nil.
func NewRDAPChecker(cfg RDAPConfig, client *http.Client) *RDAPChecker {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultRDAPBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	return &RDAPChecker{
		base:    strings.TrimRight(cfg.BaseURL, "/"),
		http:    client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		breaker: resilience.NewCircuitBreaker("rdap", cfg.BreakerThreshold, cfg.BreakerReset,
			resilience.WithFailureClassifier(isRegistryFailure)),
		logger: log.WithComponent("rdap"),
	}
}

// isRegistryFailure excludes caller cancellation and bad input from the
// breaker's failure count.
func isRegistryFailure(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, ErrInvalidDomain):
		return false
	default:
		return true
	}
}

func (c *RDAPChecker) Check(ctx context.Context, name, tld string) (Result, error) {
	fqdn, err := FQDN(name, tld)
	if err != nil {
		metrics.IncAvailabilityCheck("invalid")
		return Result{}, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return Result{}, err
	}

	var available bool
	err = c.breaker.Execute(func() error {
		var lookupErr error
		available, lookupErr = c.lookup(ctx, fqdn)
		return lookupErr
	})
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrCircuitOpen) {
			outcome = "circuit_open"
		}
		metrics.IncAvailabilityCheck(outcome)
		c.logger.Debug().Err(err).Str(log.FieldName, name).Str(log.FieldTLD, tld).Msg("rdap lookup failed")
		return Result{}, err
	}

	if available {
		metrics.IncAvailabilityCheck("available")
	} else {
		metrics.IncAvailabilityCheck("taken")
	}
	return Result{Name: name, TLD: tld, Available: available}, nil
}

func (c *RDAPChecker) lookup(ctx context.Context, fqdn string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/domain/"+fqdn, nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/rdap+json")
	res, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("rdap %s: %w", fqdn, err)
	}
	defer func() { _ = res.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))

	switch res.StatusCode {
	case http.StatusNotFound:
		return true, nil
	case http.StatusOK:
		return false, nil
	default:
		return false, fmt.Errorf("%w: %s answered %d", ErrUnexpectedStatus, fqdn, res.StatusCode)
	}
}

var _ Checker = (*RDAPChecker)(nil)
