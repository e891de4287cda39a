package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/BurntSushi/toml"
)

type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`
	// OwnerKeyFile holds the generated owner key when the default config was
	// created. Operators sign owner tokens with it.
	OwnerKeyFile string `toml:"OwnerKeyFile,omitempty"`

	Presale   Presale   `toml:"Presale"`
	Token     Token     `toml:"Token"`
	Auth      Auth      `toml:"Auth"`
	RateLimit RateLimit `toml:"RateLimit"`
	Journal   Journal   `toml:"Journal"`
	Logging   Logging   `toml:"Logging"`
	Telemetry Telemetry `toml:"Telemetry"`
}

// Load loads the configuration from the given path, writing a default file
// first when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}

	cfg.applyDefaults()
	if env := strings.TrimSpace(cfg.Auth.HMACSecretEnv); env != "" {
		if secret := strings.TrimSpace(os.Getenv(env)); secret != "" {
			cfg.Auth.HMACSecret = secret
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the built-in configuration without owner or secret
// material.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./presale-data"
	}
	p := &c.Presale
	if p.DurationSeconds == 0 {
		p.DurationSeconds = DefaultDurationSeconds
	}
	if strings.TrimSpace(p.MinimumContributionWei) == "" {
		p.MinimumContributionWei = DefaultMinimumContributionWei
	}
	if strings.TrimSpace(p.PointsUnitWei) == "" {
		p.PointsUnitWei = DefaultPointsUnitWei
	}
	if p.ReferralBonusBps == 0 {
		p.ReferralBonusBps = DefaultReferralBonusBps
	}
	if strings.TrimSpace(p.ReferrerMinimumWei) == "" {
		p.ReferrerMinimumWei = "0"
	}
	if strings.TrimSpace(p.Vault) == "" {
		p.Vault = DerivedVaultAddress().Hex()
	}
	tk := &c.Token
	if strings.TrimSpace(tk.Symbol) == "" {
		tk.Symbol = "PTS"
	}
	if strings.TrimSpace(tk.Name) == "" {
		tk.Name = "Presale Points"
	}
	if tk.Decimals == 0 {
		tk.Decimals = 18
	}
	if strings.TrimSpace(tk.TotalSupply) == "" {
		tk.TotalSupply = DefaultTotalSupply
	}
	if tk.PoolShareBps == 0 {
		tk.PoolShareBps = DefaultPoolShareBps
	}
	if strings.TrimSpace(tk.Treasury) == "" {
		tk.Treasury = p.Owner
	}
	if strings.TrimSpace(c.Auth.Issuer) == "" {
		c.Auth.Issuer = "presaled"
	}
	if c.RateLimit.RequestsPerMinute == 0 {
		c.RateLimit.RequestsPerMinute = 120
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = 20
	}
	if strings.TrimSpace(c.Journal.Driver) == "" {
		c.Journal.Driver = JournalDriverSQLite
	}
	if strings.TrimSpace(c.Journal.DSN) == "" && c.Journal.Driver == JournalDriverSQLite {
		c.Journal.DSN = filepath.Join(c.DataDir, "journal.db")
	}
	if strings.TrimSpace(c.Logging.Level) == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = 100
	}
}

// createDefault creates and saves a default configuration file together with
// a freshly generated owner key.
func createDefault(path string) (*Config, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	keyPath := defaultOwnerKeyPath(path)
	if dir := filepath.Dir(keyPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := ethcrypto.SaveECDSA(keyPath, key); err != nil {
		return nil, err
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment:  "local",
		OwnerKeyFile: keyPath,
		Auth: Auth{
			Enabled:    true,
			HMACSecret: hex.EncodeToString(secret),
		},
		Journal: Journal{Enabled: true},
	}
	cfg.Presale.Owner = ethcrypto.PubkeyToAddress(key.PublicKey).Hex()
	cfg.applyDefaults()

	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultOwnerKeyPath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "owner.key")
}
