package presale

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/events"
)

type engineState interface {
	PresaleRaise() (*RaiseState, bool, error)
	PresalePutRaise(raise *RaiseState) error
	PresaleLedgerLength() (uint64, error)
	PresaleLedgerHead() (common.Hash, error)
	PresaleRecord(index uint64) (*ContributionRecord, bool, error)
	// PresaleAppendRecord stores the record at the next ledger position and
	// maintains the contributor's record index and contributed amount.
	PresaleAppendRecord(record *ContributionRecord) error
	PresaleRecordIndices(addr common.Address) ([]uint64, error)
	PresaleContributedAmount(addr common.Address) (*big.Int, error)
	PresaleReferrals(addr common.Address) ([]uint64, error)
	PresaleAppendReferral(referrer common.Address, index uint64) error
	PresaleReferrerBonus(addr common.Address) (*big.Int, error)
	PresalePutReferrerBonus(addr common.Address, amount *big.Int) error
	PresaleClaimed(addr common.Address) (bool, error)
	PresaleMarkClaimed(addr common.Address) error
}

// RewardToken is the reward pool gateway: the token ledger that holds the
// pre-funded pool in the engine's vault account.
type RewardToken interface {
	BalanceOf(addr common.Address) (*big.Int, error)
	TotalSupply() (*big.Int, error)
	Decimals() (uint8, error)
	Transfer(from, to common.Address, amount *big.Int) error
}

// Authority answers whether an address may perform owner-only operations.
type Authority interface {
	IsOwner(addr common.Address) bool
}

// Engine wires presale accounting with persistence, the reward token and
// event emission. Callers must serialise mutating calls.
type Engine struct {
	state     engineState
	token     RewardToken
	authority Authority
	emitter   events.Emitter
	nowFn     func() int64
	params    Params
	vault     common.Address
}

// NewEngine constructs a presale engine with default dependencies.
func NewEngine(params Params) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn: func() int64 {
			return time.Now().Unix()
		},
		params: params.Clone(),
	}, nil
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetRewardToken configures the reward pool gateway.
func (e *Engine) SetRewardToken(token RewardToken) { e.token = token }

// SetAuthority configures the owner check used by deadline extension.
func (e *Engine) SetAuthority(authority Authority) { e.authority = authority }

// SetVault configures the account holding the reward pool.
func (e *Engine) SetVault(addr common.Address) { e.vault = addr }

// Vault returns the account holding the reward pool.
func (e *Engine) Vault() common.Address { return e.vault }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// Params returns a copy of the engine policy.
func (e *Engine) Params() Params { return e.params.Clone() }

func (e *Engine) emit(evt events.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	return nil
}

// raise loads the raise state, failing when the presale was never initialized.
func (e *Engine) raise() (*RaiseState, error) {
	raise, ok, err := e.state.PresaleRaise()
	if err != nil {
		return nil, err
	}
	if !ok || raise == nil || !raise.Initialized {
		return nil, ErrNotInitialized
	}
	return raise, nil
}

func (e *Engine) decimals() (uint8, error) {
	if e.token == nil {
		return 0, ErrRewardTokenNotSet
	}
	return e.token.Decimals()
}

// CalcPoints previews the base points for amount.
func (e *Engine) CalcPoints(amount *big.Int) *big.Int { return e.params.CalcPoints(amount) }

// CalcBonus previews the referral bonus for amount.
func (e *Engine) CalcBonus(amount *big.Int) *big.Int { return e.params.CalcBonus(amount) }

// Points returns the current redeemable point total for addr.
func (e *Engine) Points(addr common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	length, err := e.state.PresaleLedgerLength()
	if err != nil {
		return nil, err
	}
	return e.pointsOf(addr, length)
}

// ContributedAmount returns the total base currency contributed by addr.
func (e *Engine) ContributedAmount(addr common.Address) (*big.Int, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	amount, err := e.state.PresaleContributedAmount(addr)
	if err != nil {
		return nil, err
	}
	return newBigInt(amount), nil
}

// IsContributed reports whether addr has at least one record.
func (e *Engine) IsContributed(addr common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	indices, err := e.state.PresaleRecordIndices(addr)
	if err != nil {
		return false, err
	}
	return len(indices) > 0, nil
}

// Contributions returns every record in ledger order.
func (e *Engine) Contributions() ([]*ContributionRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	length, err := e.state.PresaleLedgerLength()
	if err != nil {
		return nil, err
	}
	records := make([]*ContributionRecord, 0, length)
	for i := uint64(0); i < length; i++ {
		record, ok, err := e.state.PresaleRecord(i)
		if err != nil {
			return nil, err
		}
		if !ok || record == nil {
			return nil, fmt.Errorf("%w: record %d missing", ErrRecordOutOfRange, i)
		}
		records = append(records, record.Clone())
	}
	return records, nil
}

// Record returns the record at index.
func (e *Engine) Record(index uint64) (*ContributionRecord, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	record, ok, err := e.state.PresaleRecord(index)
	if err != nil {
		return nil, err
	}
	if !ok || record == nil {
		return nil, ErrRecordOutOfRange
	}
	return record.Clone(), nil
}

// IsClaimed reports whether addr has settled its claim.
func (e *Engine) IsClaimed(addr common.Address) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.state.PresaleClaimed(addr)
}

// RewardTokenDecimals exposes the reward token's decimal precision.
func (e *Engine) RewardTokenDecimals() (uint8, error) {
	return e.decimals()
}

// Account aggregates the per-address query surface in one read.
func (e *Engine) Account(addr common.Address) (*AccountView, error) {
	points, err := e.Points(addr)
	if err != nil {
		return nil, err
	}
	contributed, err := e.ContributedAmount(addr)
	if err != nil {
		return nil, err
	}
	isContributed, err := e.IsContributed(addr)
	if err != nil {
		return nil, err
	}
	isReferrer, err := e.IsReferrer(addr)
	if err != nil {
		return nil, err
	}
	claimed, err := e.IsClaimed(addr)
	if err != nil {
		return nil, err
	}
	bonus, err := e.ReferrerBonus(addr)
	if err != nil {
		return nil, err
	}
	referrals, err := e.Referrals(addr)
	if err != nil {
		return nil, err
	}
	return &AccountView{
		Address:           addr,
		Points:            points,
		ContributedAmount: contributed,
		IsContributed:     isContributed,
		IsReferrer:        isReferrer,
		IsClaimed:         claimed,
		ReferrerBonus:     bonus,
		Referrals:         referrals,
	}, nil
}

// Summary reports ledger-wide aggregates.
func (e *Engine) Summary() (*Summary, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	raise, err := e.raise()
	if err != nil {
		return nil, err
	}
	length, err := e.state.PresaleLedgerLength()
	if err != nil {
		return nil, err
	}
	head, err := e.state.PresaleLedgerHead()
	if err != nil {
		return nil, err
	}
	decimals, err := e.decimals()
	if err != nil {
		return nil, err
	}
	return &Summary{
		Contributions:  length,
		TotalRaised:    newBigInt(raise.TotalRaised),
		RewardPoolSize: newBigInt(raise.RewardPoolSize),
		PoolPoints:     PoolPoints(raise.RewardPoolSize, decimals),
		MaxLiability:   newBigInt(raise.MaxLiability),
		Deadline:       raise.Deadline,
		DeadlinePassed: e.now() >= raise.Deadline,
		LedgerHead:     head,
	}, nil
}
