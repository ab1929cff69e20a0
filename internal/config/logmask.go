// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

const maskedSecret = "***"

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return maskedSecret
}

// Redacted returns a copy of cfg that is safe to print or log.
func (cfg AppConfig) Redacted() AppConfig {
	out := cfg
	out.Transport.Redis.Password = maskSecret(cfg.Transport.Redis.Password)
	out.Transport.MQTT.Password = maskSecret(cfg.Transport.MQTT.Password)
	out.Availability.Cache.Password = maskSecret(cfg.Availability.Cache.Password)
	return out
}
