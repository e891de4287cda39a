package presale

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// IsReferrer reports whether addr may be named as a referrer by a new
// contribution.
func (e *Engine) IsReferrer(addr common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.isReferrer(addr)
}

func (e *Engine) isReferrer(addr common.Address) (bool, error) {
	if addr == (common.Address{}) {
		return false, nil
	}
	indices, err := e.state.PresaleRecordIndices(addr)
	if err != nil {
		return false, err
	}
	if len(indices) == 0 {
		return false, nil
	}
	threshold := e.params.ReferrerMinimumContribution
	if threshold == nil || threshold.Sign() == 0 {
		return true, nil
	}
	contributed, err := e.state.PresaleContributedAmount(addr)
	if err != nil {
		return false, err
	}
	return contributed != nil && contributed.Cmp(threshold) >= 0, nil
}

// Referrals returns the ledger indices of contributions that named addr as
// referrer.
func (e *Engine) Referrals(addr common.Address) ([]uint64, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	indices, err := e.state.PresaleReferrals(addr)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, len(indices))
	copy(out, indices)
	return out, nil
}

// ReferrerBonus returns the cumulative bonus credited to addr as a referrer.
func (e *Engine) ReferrerBonus(addr common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	bonus, err := e.state.PresaleReferrerBonus(addr)
	if err != nil {
		return nil, err
	}
	return newBigInt(bonus), nil
}

// validateReferral resolves the bonus a contribution earns through its
// referrer. It performs no writes.
func (e *Engine) validateReferral(contributor, referrer common.Address, amount *big.Int) (*big.Int, error) {
	if referrer == (common.Address{}) {
		return big.NewInt(0), nil
	}
	if referrer == contributor {
		return nil, ErrReferrerCannotBeOneself
	}
	ok, err := e.isReferrer(referrer)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidReferrer
	}
	return e.params.CalcBonus(amount), nil
}

// creditReferrer records the referral against the referrer and returns the
// referrer's new cumulative bonus.
func (e *Engine) creditReferrer(referrer common.Address, index uint64, bonus *big.Int) (*big.Int, error) {
	if err := e.state.PresaleAppendReferral(referrer, index); err != nil {
		return nil, err
	}
	current, err := e.state.PresaleReferrerBonus(referrer)
	if err != nil {
		return nil, err
	}
	updated := newBigInt(current)
	if bonus != nil {
		updated.Add(updated, bonus)
	}
	if err := e.state.PresalePutReferrerBonus(referrer, updated); err != nil {
		return nil, err
	}
	return updated, nil
}
