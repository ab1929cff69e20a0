// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package candidates produces domain-name candidates from a seed word, either
// locally (whimsical mode) or from a remote suggestion service.
package candidates

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Query selects a page of candidates for a seed.
type Query struct {
	Name   string
	Limit  int
	Offset int
}

// Generator yields whimsical candidates for a seed.
type Generator interface {
	Generate(ctx context.Context, q Query) ([]string, error)
}

var (
	prefixes = []string{"get", "go", "my", "the", "try", "hey", "use", "join", "meet", "hello"}
	suffixes = []string{"ly", "ify", "io", "hub", "lab", "kit", "app", "hq", "base", "zen", "able", "ster"}
)

// Whimsical is a deterministic Generator: the same query always yields the
// same page.
type Whimsical struct {
	defaultLimit int
	maxLimit     int
	lower        cases.Caser
}

// NewWhimsical creates a generator. Non-positive limits fall back to
// DefaultLimit and MaxLimit.
func NewWhimsical(defaultLimit, maxLimit int) *Whimsical {
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	return &Whimsical{
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		lower:        cases.Lower(language.Und),
	}
}

// Generate returns up to q.Limit candidates starting at q.Offset.
func (w *Whimsical) Generate(ctx context.Context, q Query) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := w.normalize(q.Name)
	if seed == "" {
		return nil, ErrNameRequired
	}

	limit := q.Limit
	if limit <= 0 {
		limit = w.defaultLimit
	}
	if limit > w.maxLimit {
		limit = w.maxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	all := w.expand(seed)
	if offset >= len(all) {
		return []string{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]string(nil), all[offset:end]...), nil
}

// normalize folds the seed to NFKC lower case and keeps only letters, digits
// and hyphens.
func (w *Whimsical) normalize(name string) string {
	s := w.lower.String(norm.NFKC.String(name))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || unicode.IsSpace(r):
			b.WriteByte('-')
		}
	}
	return strings.Trim(collapseHyphens(b.String()), "-")
}

func collapseHyphens(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return s
}

func (w *Whimsical) expand(seed string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		if s == "" || len(s) > 63 {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	add(seed)
	stem := dropTrailingVowel(seed)
	for _, suf := range suffixes {
		add(seed + suf)
		if stem != seed {
			add(stem + suf)
		}
	}
	for _, pre := range prefixes {
		add(pre + seed)
	}
	for _, m := range vowelMutations(seed) {
		add(m)
	}
	for _, pre := range prefixes {
		for _, suf := range suffixes {
			add(pre + seed + suf)
		}
	}
	return out
}

func isVowel(r byte) bool {
	return strings.IndexByte("aeiou", r) >= 0
}

func dropTrailingVowel(s string) string {
	if len(s) > 2 && isVowel(s[len(s)-1]) {
		return s[:len(s)-1]
	}
	return s
}

// vowelMutations drops the last inner vowel ("flicker" -> "flickr") and
// doubles the final letter ("zap" -> "zapp").
func vowelMutations(s string) []string {
	var out []string
	for i := len(s) - 2; i > 1; i-- {
		if isVowel(s[i]) && !isVowel(s[i-1]) {
			out = append(out, s[:i]+s[i+1:])
			break
		}
	}
	if last := s[len(s)-1]; last != '-' {
		out = append(out, s+string(last))
	}
	return out
}

var _ Generator = (*Whimsical)(nil)
