package presale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ContributionRecord is one admitted contribution. Records are immutable once
// appended to the ledger and are identified by their position.
type ContributionRecord struct {
	Index       uint64         `json:"index"`
	Contributor common.Address `json:"contributor"`
	Amount      *big.Int       `json:"amount"`
	// Referrer is the zero address when the contribution named no referrer.
	Referrer  common.Address `json:"referrer"`
	Bonus     *big.Int       `json:"bonus"`
	Timestamp int64          `json:"timestamp"`
}

// HasReferrer reports whether the record named a referrer.
func (r *ContributionRecord) HasReferrer() bool {
	return r != nil && r.Referrer != (common.Address{})
}

// Clone returns a deep copy of the record.
func (r *ContributionRecord) Clone() *ContributionRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Amount = newBigInt(r.Amount)
	clone.Bonus = newBigInt(r.Bonus)
	return &clone
}

// RaiseState is the mutable raise bookkeeping owned by the engine.
type RaiseState struct {
	Initialized   bool
	InitializedAt int64
	Deadline      int64
	// RewardPoolSize is the vault balance, in token base units, observed at
	// initialization. It never changes afterwards.
	RewardPoolSize *big.Int
	TotalRaised    *big.Int
	// MaxLiability is the worst-case point liability of every admitted record:
	// base points at the full early-bird multiplier plus both referral credits.
	MaxLiability *big.Int
}

// Clone returns a deep copy of the raise state.
func (s *RaiseState) Clone() *RaiseState {
	if s == nil {
		return nil
	}
	clone := *s
	clone.RewardPoolSize = newBigInt(s.RewardPoolSize)
	clone.TotalRaised = newBigInt(s.TotalRaised)
	clone.MaxLiability = newBigInt(s.MaxLiability)
	return &clone
}

// ClaimReceipt describes a settled claim.
type ClaimReceipt struct {
	Claimant  common.Address `json:"claimant"`
	Points    *big.Int       `json:"points"`
	Payout    *big.Int       `json:"payout"`
	ClaimedAt int64          `json:"claimedAt"`
}

// AccountView aggregates the per-address query surface.
type AccountView struct {
	Address           common.Address `json:"address"`
	Points            *big.Int       `json:"points"`
	ContributedAmount *big.Int       `json:"contributedAmount"`
	IsContributed     bool           `json:"isContributed"`
	IsReferrer        bool           `json:"isReferrer"`
	IsClaimed         bool           `json:"isClaimed"`
	ReferrerBonus     *big.Int       `json:"referrerBonus"`
	Referrals         []uint64       `json:"referrals"`
}

// Summary reports ledger-wide aggregates.
type Summary struct {
	Contributions  uint64      `json:"contributions"`
	TotalRaised    *big.Int    `json:"totalRaised"`
	RewardPoolSize *big.Int    `json:"rewardPoolSize"`
	PoolPoints     *big.Int    `json:"poolPoints"`
	MaxLiability   *big.Int    `json:"maxLiability"`
	Deadline       int64       `json:"deadline"`
	DeadlinePassed bool        `json:"deadlinePassed"`
	LedgerHead     common.Hash `json:"ledgerHead"`
}

func newBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
