// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultSuggestURL is an autosuggest endpoint answering in the
// firefox client format.
const DefaultSuggestURL = "https://suggestqueries.google.com/complete/search?client=firefox"

// Suggester looks up related phrases for a seed.
type Suggester interface {
	Suggest(ctx context.Context, name string) ([]string, error)
}

// HTTPSuggester queries an autosuggest service. The response body is a JSON
// array whose second element is the list of suggestions: ["q", ["a", "b"]].
type HTTPSuggester struct {
	base string
	http *http.Client
}

// NewHTTPSuggester creates a client. base may carry query parameters; the
// seed is added as q.
func NewHTTPSuggester(base string, timeout time.Duration) *HTTPSuggester {
	if base == "" {
		base = DefaultSuggestURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSuggester{
		base: base,
		http: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSuggester) Suggest(ctx context.Context, name string) ([]string, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrNameRequired
	}
	u, err := url.Parse(s.base)
	if err != nil {
		return nil, fmt.Errorf("suggest url: %w", err)
	}
	q := u.Query()
	q.Set("q", name)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	res, err := s.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("suggest %q: %w", name, err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 4<<10))
		return nil, fmt.Errorf("%w: status %d", ErrSuggestUnavailable, res.StatusCode)
	}
	return decodeSuggestions(io.LimitReader(res.Body, 1<<20))
}

func decodeSuggestions(r io.Reader) ([]string, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	if len(raw) < 2 {
		return nil, fmt.Errorf("decode suggestions: expected at least 2 elements, got %d", len(raw))
	}
	var out []string
	if err := json.Unmarshal(raw[1], &out); err != nil {
		return nil, fmt.Errorf("decode suggestions: %w", err)
	}
	return out, nil
}

var _ Suggester = (*HTTPSuggester)(nil)
