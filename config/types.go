package config

// Presale captures the raise policy applied at bootstrap.
type Presale struct {
	DurationSeconds        int64  `toml:"DurationSeconds"`
	MinimumContributionWei string `toml:"MinimumContributionWei"`
	PointsUnitWei          string `toml:"PointsUnitWei"`
	ReferralBonusBps       uint32 `toml:"ReferralBonusBps"`
	// ReferrerMinimumWei, when non-zero, is the cumulative contribution a
	// referrer must have made before being named.
	ReferrerMinimumWei string `toml:"ReferrerMinimumWei"`
	Owner              string `toml:"Owner"`
	Vault              string `toml:"Vault"`
}

// Token describes the reward token minted at bootstrap.
type Token struct {
	Symbol       string `toml:"Symbol"`
	Name         string `toml:"Name"`
	Decimals     uint8  `toml:"Decimals"`
	TotalSupply  string `toml:"TotalSupply"`
	Treasury     string `toml:"Treasury"`
	PoolShareBps uint32 `toml:"PoolShareBps"`
}

// Auth configures bearer token verification for write endpoints.
type Auth struct {
	Enabled    bool   `toml:"Enabled"`
	HMACSecret string `toml:"HMACSecret"`
	// HMACSecretEnv names an environment variable that overrides HMACSecret.
	HMACSecretEnv string `toml:"HMACSecretEnv"`
	Issuer        string `toml:"Issuer"`
	Audience      string `toml:"Audience"`
}

// RateLimit throttles requests per client address.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Journal selects the relational event journal backend.
type Journal struct {
	Enabled bool   `toml:"Enabled"`
	Driver  string `toml:"Driver"`
	DSN     string `toml:"DSN"`
}

// Logging controls log level and the optional rotating file sink.
type Logging struct {
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}
