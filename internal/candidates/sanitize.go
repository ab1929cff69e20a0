// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package candidates

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// DefaultAllowedPattern matches suggestion labels that are kept. The digit
// range stops at 8; labels containing a 9 are rejected.
const DefaultAllowedPattern = `^[A-Za-z0-8-]+$`

// Sanitizer normalizes remote suggestions into domain labels.
type Sanitizer struct {
	allowed *regexp.Regexp
}

// NewSanitizer compiles pattern. An empty pattern selects DefaultAllowedPattern.
func NewSanitizer(pattern string) (*Sanitizer, error) {
	if pattern == "" {
		pattern = DefaultAllowedPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("allowed pattern %q: %w", pattern, err)
	}
	return &Sanitizer{allowed: re}, nil
}

// Sanitize strips all whitespace from every suggestion and keeps the ones
// matching the allowed pattern, in input order.
func (s *Sanitizer) Sanitize(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = stripSpace(v)
		if s.allowed.MatchString(v) {
			out = append(out, v)
		}
	}
	return out
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
