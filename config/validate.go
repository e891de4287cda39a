package config

import (
	"fmt"
	"strings"
)

var (
	MinDurationSeconds = int64(60)
)

// Validate checks the loaded configuration before the node is built from it.
func (c *Config) Validate() error {
	if c.Presale.DurationSeconds < MinDurationSeconds {
		return fmt.Errorf("presale: duration_seconds below %d", MinDurationSeconds)
	}
	if _, err := c.PresaleParams(); err != nil {
		return fmt.Errorf("presale: %w", err)
	}
	if _, err := c.Genesis(); err != nil {
		return fmt.Errorf("token: %w", err)
	}
	vault, err := c.VaultAddress()
	if err != nil {
		return fmt.Errorf("presale: %w", err)
	}
	if strings.EqualFold(vault.Hex(), strings.TrimSpace(c.Token.Treasury)) {
		return fmt.Errorf("token: treasury must differ from presale vault")
	}
	if c.Token.PoolShareBps == 0 || c.Token.PoolShareBps > 10_000 {
		return fmt.Errorf("token: pool_share_bps out of range")
	}
	if c.Auth.Enabled && strings.TrimSpace(c.Auth.HMACSecret) == "" {
		return fmt.Errorf("auth: hmac secret required when enabled")
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("ratelimit: values must not be negative")
	}
	if c.Journal.Enabled {
		switch c.Journal.Driver {
		case JournalDriverSQLite, JournalDriverPostgres:
		default:
			return fmt.Errorf("journal: unsupported driver %q", c.Journal.Driver)
		}
		if strings.TrimSpace(c.Journal.DSN) == "" {
			return fmt.Errorf("journal: dsn required")
		}
	}
	return nil
}
