package core

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	ledgerstate "timepresale/core/state"
	"timepresale/native/presale"
)

const (
	DefaultTokenSymbol = "PTS"
	// DefaultPoolShareBps moves 70% of the minted supply into the presale vault.
	DefaultPoolShareBps = 7_000
)

// Genesis describes the one-time bootstrap of the reward token and the raise.
type Genesis struct {
	TokenName     string
	TokenDecimals uint8
	TotalSupply   *big.Int
	// Treasury receives the minted supply and funds the vault with the pool
	// share. It is also the token's mint authority.
	Treasury        common.Address
	PoolShareBps    uint32
	Owner           common.Address
	DurationSeconds int64
}

func (g Genesis) validate(vault common.Address) error {
	if vault == (common.Address{}) {
		return fmt.Errorf("genesis: vault address required")
	}
	if g.Treasury == (common.Address{}) {
		return fmt.Errorf("genesis: treasury address required")
	}
	if g.Treasury == vault {
		return fmt.Errorf("genesis: treasury and vault must differ")
	}
	if g.Owner == (common.Address{}) {
		return fmt.Errorf("genesis: owner address required")
	}
	if g.TotalSupply == nil || g.TotalSupply.Sign() <= 0 {
		return fmt.Errorf("genesis: total supply must be positive")
	}
	if g.PoolShareBps == 0 || g.PoolShareBps > presale.BpsDenominator {
		return fmt.Errorf("genesis: pool share %d bps out of range", g.PoolShareBps)
	}
	if g.DurationSeconds < 0 {
		return fmt.Errorf("genesis: %w", presale.ErrInvalidDuration)
	}
	return nil
}

// PoolAmount returns the share of supply moved into the vault.
func (g Genesis) PoolAmount() *big.Int {
	if g.TotalSupply == nil {
		return big.NewInt(0)
	}
	pool := new(big.Int).Mul(g.TotalSupply, big.NewInt(int64(g.PoolShareBps)))
	return pool.Quo(pool, big.NewInt(presale.BpsDenominator))
}

// Bootstrap registers and mints the reward token, funds the vault, grants the
// owner role and opens the raise, all in one write. It reports false without
// touching state when the raise already exists.
func (n *Node) Bootstrap(ctx context.Context, g Genesis) (bool, error) {
	if err := g.validate(n.engine.Vault()); err != nil {
		return false, err
	}
	applied := false
	err := n.write(ctx, "bootstrap", func() error {
		if _, ok, err := n.state.PresaleRaise(); err != nil {
			return err
		} else if ok {
			return nil
		}
		if err := n.token.Register(g.TokenName, g.TokenDecimals, g.Treasury); err != nil {
			return err
		}
		if err := n.token.Mint(g.Treasury, g.Treasury, g.TotalSupply); err != nil {
			return err
		}
		if err := n.token.Transfer(g.Treasury, n.engine.Vault(), g.PoolAmount()); err != nil {
			return err
		}
		if err := n.state.SetRole(ledgerstate.RolePresaleOwner, g.Owner); err != nil {
			return err
		}
		if _, err := n.engine.Initialize(g.DurationSeconds); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if applied {
		n.logger.Info("presale bootstrapped",
			slog.String("symbol", n.token.Symbol()),
			slog.String("vault", n.engine.Vault().Hex()),
			slog.String("owner", g.Owner.Hex()),
			slog.String("pool", g.PoolAmount().String()),
			slog.Int64("duration", g.DurationSeconds))
	}
	return applied, nil
}
