package config

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"timepresale/core"
	"timepresale/native/presale"
)

const (
	DefaultDurationSeconds        = presale.DefaultDurationSeconds
	DefaultMinimumContributionWei = "10000000000000000"
	DefaultPointsUnitWei          = "100000000000"
	DefaultReferralBonusBps       = presale.DefaultReferralBonusBps
	// DefaultTotalSupply mints ten billion whole tokens at 18 decimals.
	DefaultTotalSupply  = "10000000000000000000000000000"
	DefaultPoolShareBps = core.DefaultPoolShareBps

	JournalDriverSQLite   = "sqlite"
	JournalDriverPostgres = "postgres"
)

// DerivedVaultAddress is the keyless account that holds the presale pool when
// no vault is configured.
func DerivedVaultAddress() common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256([]byte("presale-vault"))[12:])
}

// PresaleParams parses the configured admission policy into runtime values.
func (c *Config) PresaleParams() (presale.Params, error) {
	params := presale.Params{ReferralBonusBps: c.Presale.ReferralBonusBps}
	var err error
	if params.MinimumContribution, err = parseUintAmount(c.Presale.MinimumContributionWei); err != nil {
		return params, fmt.Errorf("invalid Presale.MinimumContributionWei: %w", err)
	}
	if params.PointsUnit, err = parseUintAmount(c.Presale.PointsUnitWei); err != nil {
		return params, fmt.Errorf("invalid Presale.PointsUnitWei: %w", err)
	}
	if params.ReferrerMinimumContribution, err = parseUintAmount(c.Presale.ReferrerMinimumWei); err != nil {
		return params, fmt.Errorf("invalid Presale.ReferrerMinimumWei: %w", err)
	}
	if err := params.Validate(); err != nil {
		return params, err
	}
	return params, nil
}

// Genesis builds the bootstrap description from the token and presale sections.
func (c *Config) Genesis() (core.Genesis, error) {
	g := core.Genesis{
		TokenName:       c.Token.Name,
		TokenDecimals:   c.Token.Decimals,
		PoolShareBps:    c.Token.PoolShareBps,
		DurationSeconds: c.Presale.DurationSeconds,
	}
	supply, err := parseUintAmount(c.Token.TotalSupply)
	if err != nil {
		return g, fmt.Errorf("invalid Token.TotalSupply: %w", err)
	}
	g.TotalSupply = supply
	if g.Treasury, err = parseAddress("Token.Treasury", c.Token.Treasury); err != nil {
		return g, err
	}
	if g.Owner, err = parseAddress("Presale.Owner", c.Presale.Owner); err != nil {
		return g, err
	}
	return g, nil
}

// VaultAddress returns the configured vault or the derived default.
func (c *Config) VaultAddress() (common.Address, error) {
	if strings.TrimSpace(c.Presale.Vault) == "" {
		return DerivedVaultAddress(), nil
	}
	return parseAddress("Presale.Vault", c.Presale.Vault)
}

func parseAddress(field, raw string) (common.Address, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(trimmed) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, raw)
	}
	return common.HexToAddress(trimmed), nil
}

func parseUintAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("amount must not be negative")
	}
	return value, nil
}
