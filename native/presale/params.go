package presale

import (
	"fmt"
	"math/big"
)

const (
	// BpsDenominator defines the scaling factor used for basis point math.
	BpsDenominator = 10_000
	// DefaultReferralBonusBps credits each side of a referral with 5% of the
	// incoming contribution's base points.
	DefaultReferralBonusBps = 500
	// DefaultDurationSeconds is the raise window applied at initialization.
	DefaultDurationSeconds = 90 * 24 * 3600
)

var (
	// DefaultPointsUnit is 0.0000001 of an 18-decimal base coin.
	DefaultPointsUnit = big.NewInt(100_000_000_000)
	// DefaultMinimumContribution is 0.01 of an 18-decimal base coin.
	DefaultMinimumContribution = big.NewInt(10_000_000_000_000_000)
)

// Params holds the immutable admission and valuation policy.
type Params struct {
	MinimumContribution *big.Int
	// PointsUnit is the amount of base currency worth one raw point.
	PointsUnit       *big.Int
	ReferralBonusBps uint32
	// ReferrerMinimumContribution, when positive, is the cumulative amount an
	// address must have contributed before it may be named as a referrer.
	// Zero keeps "has contributed at least once" as the only requirement.
	ReferrerMinimumContribution *big.Int
}

// DefaultParams returns the production policy.
func DefaultParams() Params {
	return Params{
		MinimumContribution:         new(big.Int).Set(DefaultMinimumContribution),
		PointsUnit:                  new(big.Int).Set(DefaultPointsUnit),
		ReferralBonusBps:            DefaultReferralBonusBps,
		ReferrerMinimumContribution: big.NewInt(0),
	}
}

// Clone returns a deep copy of the params.
func (p Params) Clone() Params {
	return Params{
		MinimumContribution:         newBigInt(p.MinimumContribution),
		PointsUnit:                  newBigInt(p.PointsUnit),
		ReferralBonusBps:            p.ReferralBonusBps,
		ReferrerMinimumContribution: newBigInt(p.ReferrerMinimumContribution),
	}
}

// Validate checks the params for internal consistency.
func (p Params) Validate() error {
	if p.PointsUnit == nil || p.PointsUnit.Sign() <= 0 {
		return fmt.Errorf("%w: points unit must be positive", ErrInvalidParams)
	}
	if p.MinimumContribution == nil || p.MinimumContribution.Sign() <= 0 {
		return fmt.Errorf("%w: minimum contribution must be positive", ErrInvalidParams)
	}
	if p.ReferralBonusBps > BpsDenominator {
		return fmt.Errorf("%w: referral bonus %d bps exceeds %d", ErrInvalidParams, p.ReferralBonusBps, BpsDenominator)
	}
	if p.ReferrerMinimumContribution != nil && p.ReferrerMinimumContribution.Sign() < 0 {
		return fmt.Errorf("%w: referrer minimum must not be negative", ErrInvalidParams)
	}
	return nil
}
