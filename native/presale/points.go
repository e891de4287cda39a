package presale

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

const (
	// earlyBirdGrowthDivisor grants 1% of base points per later contribution.
	earlyBirdGrowthDivisor = 100
	// earlyBirdMaxMultiple caps the early-bird growth at 300% of base.
	earlyBirdMaxMultiple = 3
	// maxPointsMultiple is the highest value a record can ever reach relative
	// to its base points.
	maxPointsMultiple = 1 + earlyBirdMaxMultiple
)

var (
	bigGrowthDivisor = big.NewInt(earlyBirdGrowthDivisor)
	bigMaxMultiple   = big.NewInt(earlyBirdMaxMultiple)
	bigPointsCeiling = big.NewInt(maxPointsMultiple)
	bigBps           = big.NewInt(BpsDenominator)
	bigTen           = big.NewInt(10)
)

// BasePoints converts a contributed amount into raw points by floor division.
func BasePoints(amount, unit *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 || unit == nil || unit.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(amount, unit)
}

// EarlyBirdPoints values a record holding base points at ledger position
// index once the ledger has grown to length records. The result never
// decreases as length grows and never exceeds four times base.
func EarlyBirdPoints(base *big.Int, index, length uint64) (*big.Int, error) {
	if length <= index {
		return nil, fmt.Errorf("%w: record %d beyond ledger length %d", ErrLedgerInvariant, index, length)
	}
	if base == nil || base.Sign() <= 0 {
		return big.NewInt(0), nil
	}
	subsequent := new(big.Int).SetUint64(length - index - 1)
	bonus := new(big.Int).Mul(base, subsequent)
	bonus.Quo(bonus, bigGrowthDivisor)
	ceiling := new(big.Int).Mul(base, bigMaxMultiple)
	if bonus.Cmp(ceiling) > 0 {
		bonus = ceiling
	}
	return bonus.Add(bonus, base), nil
}

// CalcPoints previews the base points a contribution of amount would earn.
func (p Params) CalcPoints(amount *big.Int) *big.Int {
	return BasePoints(amount, p.PointsUnit)
}

// CalcBonus previews the referral bonus credited to each side when a
// contribution of amount names a valid referrer.
func (p Params) CalcBonus(amount *big.Int) *big.Int {
	bonus := new(big.Int).Mul(p.CalcPoints(amount), big.NewInt(int64(p.ReferralBonusBps)))
	return bonus.Quo(bonus, bigBps)
}

// worstCaseLiability is the most points a record can ever be redeemed for:
// base points at the full multiplier plus the bonus paid to both sides.
func worstCaseLiability(base, bonus *big.Int) *big.Int {
	liability := new(big.Int).Mul(newBigInt(base), bigPointsCeiling)
	if bonus != nil && bonus.Sign() > 0 {
		liability.Add(liability, new(big.Int).Lsh(bonus, 1))
	}
	return liability
}

// TokenScale returns 10^decimals, the number of token base units per point.
func TokenScale(decimals uint8) *big.Int {
	return new(big.Int).Exp(bigTen, big.NewInt(int64(decimals)), nil)
}

// PoolPoints expresses a reward pool of token base units in whole points.
func PoolPoints(pool *big.Int, decimals uint8) *big.Int {
	if pool == nil || pool.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Quo(pool, TokenScale(decimals))
}

// pointsOf sums an address's own early-bird valued records, the bonuses those
// records carry and the bonus the address earned as a referrer.
func (e *Engine) pointsOf(addr common.Address, length uint64) (*big.Int, error) {
	indices, err := e.state.PresaleRecordIndices(addr)
	if err != nil {
		return nil, err
	}
	total := big.NewInt(0)
	for _, index := range indices {
		record, ok, err := e.state.PresaleRecord(index)
		if err != nil {
			return nil, err
		}
		if !ok || record == nil {
			return nil, fmt.Errorf("%w: record %d indexed for %s", ErrRecordOutOfRange, index, addr.Hex())
		}
		if record.Contributor != addr {
			return nil, fmt.Errorf("%w: record %d indexed for %s belongs to %s", ErrLedgerInvariant, index, addr.Hex(), record.Contributor.Hex())
		}
		value, err := EarlyBirdPoints(BasePoints(record.Amount, e.params.PointsUnit), record.Index, length)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
		if record.Bonus != nil {
			total.Add(total, record.Bonus)
		}
	}
	referrerBonus, err := e.state.PresaleReferrerBonus(addr)
	if err != nil {
		return nil, err
	}
	if referrerBonus != nil {
		total.Add(total, referrerBonus)
	}
	if total.Sign() < 0 {
		return nil, fmt.Errorf("%w: negative points for %s", ErrLedgerInvariant, addr.Hex())
	}
	return total, nil
}
