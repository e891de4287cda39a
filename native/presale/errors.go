package presale

import "errors"

var (
	ErrNilState                    = errors.New("presale: state not configured")
	ErrRewardTokenNotSet           = errors.New("presale: reward token not configured")
	ErrNotInitialized              = errors.New("presale: not initialized")
	ErrAlreadyInitialized          = errors.New("presale: already initialized")
	ErrAmountIsTooLow              = errors.New("presale: amount is too low")
	ErrDeadlineHasPassed           = errors.New("presale: deadline has passed")
	ErrInvalidReferrer             = errors.New("presale: invalid referrer")
	ErrReferrerCannotBeOneself     = errors.New("presale: referrer cannot be oneself")
	ErrPresaleLimitHasBeenExceeded = errors.New("presale: presale limit has been exceeded")
	ErrClaimBeforeDeadline         = errors.New("presale: claim before deadline")
	ErrAlreadyClaimed              = errors.New("presale: already claimed")
	ErrUnauthorized                = errors.New("presale: unauthorized")
	ErrInvalidDuration             = errors.New("presale: invalid duration")
	ErrInvalidContributor          = errors.New("presale: contributor must not be the zero address")
	ErrInvalidParams               = errors.New("presale: invalid parameters")

	// Invariant violations. A correct caller never observes these.
	ErrPoolUnderfunded  = errors.New("presale: reward pool cannot cover payout")
	ErrLedgerInvariant  = errors.New("presale: ledger invariant violated")
	ErrRecordOutOfRange = errors.New("presale: record index out of range")
)

var errorCodes = []struct {
	err  error
	code string
}{
	{ErrAmountIsTooLow, "AmountIsTooLow"},
	{ErrDeadlineHasPassed, "DeadlineHasPassed"},
	{ErrInvalidReferrer, "InvalidReferrer"},
	{ErrReferrerCannotBeOneself, "ReferrerCannotBeOneself"},
	{ErrPresaleLimitHasBeenExceeded, "PresaleLimitHasBeenExceeded"},
	{ErrClaimBeforeDeadline, "ClaimBeforeDeadline"},
	{ErrAlreadyClaimed, "AlreadyClaimed"},
	{ErrUnauthorized, "OwnableUnauthorizedAccount"},
	{ErrInvalidDuration, "InvalidDuration"},
	{ErrInvalidContributor, "InvalidContributor"},
	{ErrNotInitialized, "NotInitialized"},
	{ErrAlreadyInitialized, "AlreadyInitialized"},
}

// ErrorCode returns the stable wire code for caller-facing errors and an
// empty string for anything else.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

// IsPolicyViolation reports whether err is a user-correctable rejection.
func IsPolicyViolation(err error) bool {
	switch {
	case errors.Is(err, ErrAmountIsTooLow),
		errors.Is(err, ErrDeadlineHasPassed),
		errors.Is(err, ErrInvalidReferrer),
		errors.Is(err, ErrReferrerCannotBeOneself),
		errors.Is(err, ErrPresaleLimitHasBeenExceeded),
		errors.Is(err, ErrClaimBeforeDeadline),
		errors.Is(err, ErrAlreadyClaimed),
		errors.Is(err, ErrInvalidDuration),
		errors.Is(err, ErrInvalidContributor):
		return true
	default:
		return false
	}
}

// IsInvariantViolation reports whether err signals an implementation bug or
// corrupted state rather than a caller mistake.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrPoolUnderfunded) ||
		errors.Is(err, ErrLedgerInvariant) ||
		errors.Is(err, ErrRecordOutOfRange)
}
