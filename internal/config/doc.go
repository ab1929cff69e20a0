// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config resolves the namewhisk runtime configuration.
//
// Values are layered with precedence ENV > YAML file > defaults. The YAML
// file is parsed strictly: unknown keys and multiple documents are errors.
// Environment keys carry the NAMEWHISK_ prefix.
package config
