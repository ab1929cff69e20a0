// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package availability

import (
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

var lookupProfile = idna.New(
	idna.MapForLookup(),
	idna.Transitional(false),
	idna.StrictDomainName(true),
	idna.ValidateLabels(true),
)

// FQDN converts name and tld to the ASCII (punycode) domain name that is
// sent to the registry. A leading dot on tld is ignored.
func FQDN(name, tld string) (string, error) {
	name = strings.TrimSpace(name)
	tld = strings.TrimPrefix(strings.TrimSpace(tld), ".")
	if name == "" || tld == "" {
		return "", fmt.Errorf("%w: empty name or tld", ErrInvalidDomain)
	}
	if strings.Contains(name, ".") {
		return "", fmt.Errorf("%w: %q is not a single label", ErrInvalidDomain, name)
	}
	ascii, err := lookupProfile.ToASCII(name + "." + tld)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}
	return ascii, nil
}
