package presale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/events"
)

// Claim settles caller's points against the reward pool. The payout is
// frozen at the ledger length observed here; later contributions no longer
// change what caller received. A caller without points is marked claimed and
// receives nothing.
func (e *Engine) Claim(caller common.Address) (*ClaimReceipt, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	raise, err := e.raise()
	if err != nil {
		return nil, err
	}
	now := e.now()
	if now < raise.Deadline {
		return nil, ErrClaimBeforeDeadline
	}
	claimed, err := e.state.PresaleClaimed(caller)
	if err != nil {
		return nil, err
	}
	if claimed {
		return nil, ErrAlreadyClaimed
	}
	decimals, err := e.decimals()
	if err != nil {
		return nil, err
	}
	length, err := e.state.PresaleLedgerLength()
	if err != nil {
		return nil, err
	}
	points, err := e.pointsOf(caller, length)
	if err != nil {
		return nil, err
	}
	payout := new(big.Int).Mul(points, TokenScale(decimals))
	if payout.Sign() > 0 {
		available, err := e.token.BalanceOf(e.vault)
		if err != nil {
			return nil, fmt.Errorf("presale: read reward pool: %w", err)
		}
		if available == nil || available.Cmp(payout) < 0 {
			return nil, fmt.Errorf("%w: payout %s exceeds pool %s", ErrPoolUnderfunded, payout, formatBig(available))
		}
	}
	// Mark before paying out so a re-entrant claim from the transfer path
	// observes the address as settled.
	if err := e.state.PresaleMarkClaimed(caller); err != nil {
		return nil, err
	}
	if payout.Sign() > 0 {
		if err := e.token.Transfer(e.vault, caller, payout); err != nil {
			return nil, fmt.Errorf("presale: pay out claim: %w", err)
		}
	}
	receipt := &ClaimReceipt{
		Claimant:  caller,
		Points:    points,
		Payout:    payout,
		ClaimedAt: now,
	}
	e.emit(events.PresaleClaimed{
		Claimant: caller,
		Points:   new(big.Int).Set(points),
		Payout:   new(big.Int).Set(payout),
		At:       now,
	})
	return receipt, nil
}

func formatBig(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
