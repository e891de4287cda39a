package presale

import (
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/events"
)

// Initialize opens the raise for duration seconds and snapshots the reward
// pool currently held by the vault.
func (e *Engine) Initialize(duration int64) (*RaiseState, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.token == nil {
		return nil, ErrRewardTokenNotSet
	}
	if duration < 0 {
		return nil, ErrInvalidDuration
	}
	existing, ok, err := e.state.PresaleRaise()
	if err != nil {
		return nil, err
	}
	if ok && existing != nil && existing.Initialized {
		return nil, ErrAlreadyInitialized
	}
	now := e.now()
	if duration > math.MaxInt64-now {
		return nil, ErrInvalidDuration
	}
	pool, err := e.token.BalanceOf(e.vault)
	if err != nil {
		return nil, fmt.Errorf("presale: read reward pool: %w", err)
	}
	raise := &RaiseState{
		Initialized:    true,
		InitializedAt:  now,
		Deadline:       now + duration,
		RewardPoolSize: newBigInt(pool),
		TotalRaised:    big.NewInt(0),
		MaxLiability:   big.NewInt(0),
	}
	if err := e.state.PresalePutRaise(raise); err != nil {
		return nil, err
	}
	e.emit(events.PresaleInitialized{
		Vault:      e.vault,
		RewardPool: newBigInt(raise.RewardPoolSize),
		Deadline:   raise.Deadline,
		At:         now,
	})
	return raise.Clone(), nil
}

// Contribute admits amount from contributor, optionally naming referrer. The
// zero address means no referrer. Every admission check runs before the first
// write, so a rejected contribution leaves state untouched.
func (e *Engine) Contribute(contributor common.Address, amount *big.Int, referrer common.Address) (*ContributionRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	raise, err := e.raise()
	if err != nil {
		return nil, err
	}
	if contributor == (common.Address{}) {
		return nil, ErrInvalidContributor
	}
	if amount == nil || amount.Cmp(e.params.MinimumContribution) < 0 {
		return nil, ErrAmountIsTooLow
	}
	now := e.now()
	if now >= raise.Deadline {
		return nil, ErrDeadlineHasPassed
	}
	bonus, err := e.validateReferral(contributor, referrer, amount)
	if err != nil {
		return nil, err
	}
	decimals, err := e.decimals()
	if err != nil {
		return nil, err
	}
	base := e.params.CalcPoints(amount)
	liability := new(big.Int).Add(newBigInt(raise.MaxLiability), worstCaseLiability(base, bonus))
	if liability.Cmp(PoolPoints(raise.RewardPoolSize, decimals)) > 0 {
		return nil, ErrPresaleLimitHasBeenExceeded
	}

	index, err := e.state.PresaleLedgerLength()
	if err != nil {
		return nil, err
	}
	record := &ContributionRecord{
		Index:       index,
		Contributor: contributor,
		Amount:      new(big.Int).Set(amount),
		Referrer:    referrer,
		Bonus:       bonus,
		Timestamp:   now,
	}
	if err := e.state.PresaleAppendRecord(record); err != nil {
		return nil, err
	}
	var cumulative *big.Int
	if record.HasReferrer() {
		cumulative, err = e.creditReferrer(referrer, index, bonus)
		if err != nil {
			return nil, err
		}
	}
	raise.TotalRaised = new(big.Int).Add(newBigInt(raise.TotalRaised), amount)
	raise.MaxLiability = liability
	if err := e.state.PresalePutRaise(raise); err != nil {
		return nil, err
	}

	e.emit(events.PresaleContributed{
		Index:       index,
		Contributor: contributor,
		Amount:      new(big.Int).Set(amount),
		Referrer:    referrer,
		Bonus:       newBigInt(bonus),
		Timestamp:   now,
	})
	if cumulative != nil {
		e.emit(events.PresaleReferralCredited{
			Index:       index,
			Referrer:    referrer,
			Contributor: contributor,
			Bonus:       newBigInt(bonus),
			Cumulative:  cumulative,
		})
	}
	return record.Clone(), nil
}

// ExtendDeadline pushes the deadline back by extra seconds. Only the owner may
// extend, and the extension is added to the current deadline rather than to
// the current time.
func (e *Engine) ExtendDeadline(caller common.Address, extra int64) (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.authority == nil || !e.authority.IsOwner(caller) {
		return 0, ErrUnauthorized
	}
	if extra < 0 {
		return 0, ErrInvalidDuration
	}
	raise, err := e.raise()
	if err != nil {
		return 0, err
	}
	previous := raise.Deadline
	if extra > math.MaxInt64-previous {
		return 0, ErrInvalidDuration
	}
	raise.Deadline = previous + extra
	if err := e.state.PresalePutRaise(raise); err != nil {
		return 0, err
	}
	e.emit(events.PresaleDeadlineExtended{
		Caller:    caller,
		Previous:  previous,
		Deadline:  raise.Deadline,
		Extension: extra,
	})
	return raise.Deadline, nil
}

// Deadline returns the unix second at which the raise closes.
func (e *Engine) Deadline() (int64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	raise, err := e.raise()
	if err != nil {
		return 0, err
	}
	return raise.Deadline, nil
}

// IsDeadlinePassed reports whether the raise is closed.
func (e *Engine) IsDeadlinePassed() (bool, error) {
	deadline, err := e.Deadline()
	if err != nil {
		return false, err
	}
	return e.now() >= deadline, nil
}
