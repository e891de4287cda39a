package events

import (
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/types"
)

const (
	TypePresaleInitialized      = "presale.initialized"
	TypePresaleContributed      = "presale.contributed"
	TypePresaleReferralCredited = "presale.referral.credited"
	TypePresaleClaimed          = "presale.claimed"
	TypePresaleDeadlineExtended = "presale.deadline.extended"
)

type PresaleInitialized struct {
	Vault      common.Address
	RewardPool *big.Int
	Deadline   int64
	At         int64
}

func (PresaleInitialized) EventType() string { return TypePresaleInitialized }

func (e PresaleInitialized) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleInitialized,
		Attributes: map[string]string{
			"vault":      e.Vault.Hex(),
			"rewardPool": formatAmount(e.RewardPool),
			"deadline":   intToString(e.Deadline),
			"at":         intToString(e.At),
		},
	}
}

type PresaleContributed struct {
	Index       uint64
	Contributor common.Address
	Amount      *big.Int
	Referrer    common.Address
	Bonus       *big.Int
	Timestamp   int64
}

func (PresaleContributed) EventType() string { return TypePresaleContributed }

func (e PresaleContributed) Event() *types.Event {
	attrs := map[string]string{
		"index":       strconv.FormatUint(e.Index, 10),
		"contributor": e.Contributor.Hex(),
		"amount":      formatAmount(e.Amount),
		"bonus":       formatAmount(e.Bonus),
		"timestamp":   intToString(e.Timestamp),
	}
	if e.Referrer != (common.Address{}) {
		attrs["referrer"] = e.Referrer.Hex()
	}
	return &types.Event{Type: TypePresaleContributed, Attributes: attrs}
}

type PresaleReferralCredited struct {
	Index       uint64
	Referrer    common.Address
	Contributor common.Address
	Bonus       *big.Int
	Cumulative  *big.Int
}

func (PresaleReferralCredited) EventType() string { return TypePresaleReferralCredited }

func (e PresaleReferralCredited) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleReferralCredited,
		Attributes: map[string]string{
			"index":       strconv.FormatUint(e.Index, 10),
			"referrer":    e.Referrer.Hex(),
			"contributor": e.Contributor.Hex(),
			"bonus":       formatAmount(e.Bonus),
			"cumulative":  formatAmount(e.Cumulative),
		},
	}
}

type PresaleClaimed struct {
	Claimant common.Address
	Points   *big.Int
	Payout   *big.Int
	At       int64
}

func (PresaleClaimed) EventType() string { return TypePresaleClaimed }

func (e PresaleClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleClaimed,
		Attributes: map[string]string{
			"claimant": e.Claimant.Hex(),
			"points":   formatAmount(e.Points),
			"payout":   formatAmount(e.Payout),
			"at":       intToString(e.At),
		},
	}
}

type PresaleDeadlineExtended struct {
	Caller    common.Address
	Previous  int64
	Deadline  int64
	Extension int64
}

func (PresaleDeadlineExtended) EventType() string { return TypePresaleDeadlineExtended }

func (e PresaleDeadlineExtended) Event() *types.Event {
	return &types.Event{
		Type: TypePresaleDeadlineExtended,
		Attributes: map[string]string{
			"caller":    e.Caller.Hex(),
			"previous":  intToString(e.Previous),
			"deadline":  intToString(e.Deadline),
			"extension": intToString(e.Extension),
		},
	}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func intToString(v int64) string {
	return strconv.FormatInt(v, 10)
}
