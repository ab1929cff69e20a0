// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package candidates

import "errors"

var (
	// ErrNameRequired is returned when the seed name is empty after normalization.
	ErrNameRequired = errors.New("candidates: name is required")
	// ErrSuggestUnavailable wraps non-2xx answers from the suggestion service.
	ErrSuggestUnavailable = errors.New("candidates: suggestion service unavailable")
)
