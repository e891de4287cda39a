package presale

import (
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"timepresale/core/events"
)

type mockState struct {
	raise     *RaiseState
	records   []*ContributionRecord
	indices   map[common.Address][]uint64
	amounts   map[common.Address]*big.Int
	referrals map[common.Address][]uint64
	bonuses   map[common.Address]*big.Int
	claimed   map[common.Address]bool
}

func newMockState() *mockState {
	return &mockState{
		indices:   make(map[common.Address][]uint64),
		amounts:   make(map[common.Address]*big.Int),
		referrals: make(map[common.Address][]uint64),
		bonuses:   make(map[common.Address]*big.Int),
		claimed:   make(map[common.Address]bool),
	}
}

func (m *mockState) PresaleRaise() (*RaiseState, bool, error) {
	if m.raise == nil {
		return nil, false, nil
	}
	return m.raise.Clone(), true, nil
}

func (m *mockState) PresalePutRaise(raise *RaiseState) error {
	m.raise = raise.Clone()
	return nil
}

func (m *mockState) PresaleLedgerLength() (uint64, error) {
	return uint64(len(m.records)), nil
}

func (m *mockState) PresaleLedgerHead() (common.Hash, error) {
	return common.Hash{}, nil
}

func (m *mockState) PresaleRecord(index uint64) (*ContributionRecord, bool, error) {
	if index >= uint64(len(m.records)) {
		return nil, false, nil
	}
	return m.records[index].Clone(), true, nil
}

func (m *mockState) PresaleAppendRecord(record *ContributionRecord) error {
	if record.Index != uint64(len(m.records)) {
		return errors.New("mock: out of order append")
	}
	m.records = append(m.records, record.Clone())
	m.indices[record.Contributor] = append(m.indices[record.Contributor], record.Index)
	total := newBigInt(m.amounts[record.Contributor])
	m.amounts[record.Contributor] = total.Add(total, record.Amount)
	return nil
}

func (m *mockState) PresaleRecordIndices(addr common.Address) ([]uint64, error) {
	return append([]uint64(nil), m.indices[addr]...), nil
}

func (m *mockState) PresaleContributedAmount(addr common.Address) (*big.Int, error) {
	return newBigInt(m.amounts[addr]), nil
}

func (m *mockState) PresaleReferrals(addr common.Address) ([]uint64, error) {
	return append([]uint64(nil), m.referrals[addr]...), nil
}

func (m *mockState) PresaleAppendReferral(referrer common.Address, index uint64) error {
	m.referrals[referrer] = append(m.referrals[referrer], index)
	return nil
}

func (m *mockState) PresaleReferrerBonus(addr common.Address) (*big.Int, error) {
	return newBigInt(m.bonuses[addr]), nil
}

func (m *mockState) PresalePutReferrerBonus(addr common.Address, amount *big.Int) error {
	m.bonuses[addr] = newBigInt(amount)
	return nil
}

func (m *mockState) PresaleClaimed(addr common.Address) (bool, error) {
	return m.claimed[addr], nil
}

func (m *mockState) PresaleMarkClaimed(addr common.Address) error {
	m.claimed[addr] = true
	return nil
}

type mockToken struct {
	decimals    uint8
	balances    map[common.Address]*big.Int
	transferErr error
	transfers   int
}

func newMockToken(decimals uint8) *mockToken {
	return &mockToken{decimals: decimals, balances: make(map[common.Address]*big.Int)}
}

func (t *mockToken) BalanceOf(addr common.Address) (*big.Int, error) {
	return newBigInt(t.balances[addr]), nil
}

func (t *mockToken) TotalSupply() (*big.Int, error) {
	total := big.NewInt(0)
	for _, bal := range t.balances {
		total.Add(total, bal)
	}
	return total, nil
}

func (t *mockToken) Decimals() (uint8, error) { return t.decimals, nil }

func (t *mockToken) Transfer(from, to common.Address, amount *big.Int) error {
	if t.transferErr != nil {
		return t.transferErr
	}
	bal := newBigInt(t.balances[from])
	if bal.Cmp(amount) < 0 {
		return errors.New("mock: insufficient balance")
	}
	t.balances[from] = bal.Sub(bal, amount)
	dest := newBigInt(t.balances[to])
	t.balances[to] = dest.Add(dest, amount)
	t.transfers++
	return nil
}

type ownerAuthority common.Address

func (o ownerAuthority) IsOwner(addr common.Address) bool { return common.Address(o) == addr }

type recordingEmitter struct {
	events []events.Event
}

func (r *recordingEmitter) Emit(evt events.Event) { r.events = append(r.events, evt) }

func (r *recordingEmitter) types() []string {
	out := make([]string, len(r.events))
	for i, evt := range r.events {
		out[i] = evt.EventType()
	}
	return out
}

var (
	testOwner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testVault = common.HexToAddress("0x00000000000000000000000000000000000000bb")
	alice     = common.HexToAddress("0x0000000000000000000000000000000000000001")
	bob       = common.HexToAddress("0x0000000000000000000000000000000000000002")
	carol     = common.HexToAddress("0x0000000000000000000000000000000000000003")
	dave      = common.HexToAddress("0x0000000000000000000000000000000000000004")
)

const (
	testStart    = int64(1_700_000_000)
	testDuration = int64(DefaultDurationSeconds)
	testDecimals = uint8(18)
)

// coins scales whole base coins to wei.
func coins(whole int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(whole), TokenScale(18))
}

// poolOf returns a reward pool worth points whole reward tokens.
func poolOf(points int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(points), TokenScale(testDecimals))
}

type harness struct {
	engine  *Engine
	state   *mockState
	token   *mockToken
	emitter *recordingEmitter
	now     int64
}

func newHarness(t *testing.T, params Params, pool *big.Int) *harness {
	t.Helper()
	engine, err := NewEngine(params)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	h := &harness{
		engine:  engine,
		state:   newMockState(),
		token:   newMockToken(testDecimals),
		emitter: &recordingEmitter{},
		now:     testStart,
	}
	h.token.balances[testVault] = new(big.Int).Set(pool)
	engine.SetState(h.state)
	engine.SetRewardToken(h.token)
	engine.SetAuthority(ownerAuthority(testOwner))
	engine.SetVault(testVault)
	engine.SetEmitter(h.emitter)
	engine.SetNowFunc(func() int64 { return h.now })
	if _, err := engine.Initialize(testDuration); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return h
}

func (h *harness) closeRaise() {
	h.now = testStart + testDuration
}

func (h *harness) mustContribute(t *testing.T, from common.Address, amount *big.Int, referrer common.Address) *ContributionRecord {
	t.Helper()
	record, err := h.engine.Contribute(from, amount, referrer)
	if err != nil {
		t.Fatalf("contribute from %s: %v", from.Hex(), err)
	}
	return record
}

func (h *harness) mustPoints(t *testing.T, addr common.Address) *big.Int {
	t.Helper()
	points, err := h.engine.Points(addr)
	if err != nil {
		t.Fatalf("points for %s: %v", addr.Hex(), err)
	}
	return points
}

func TestNewEngineRejectsInvalidParams(t *testing.T) {
	params := DefaultParams()
	params.PointsUnit = big.NewInt(0)
	if _, err := NewEngine(params); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected invalid params, got %v", err)
	}
	params = DefaultParams()
	params.ReferralBonusBps = BpsDenominator + 1
	if _, err := NewEngine(params); !errors.Is(err, ErrInvalidParams) {
		t.Fatalf("expected invalid params for bps, got %v", err)
	}
}

func TestInitializeSnapshotsPool(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	if h.state.raise.Deadline != testStart+testDuration {
		t.Fatalf("unexpected deadline %d", h.state.raise.Deadline)
	}
	if h.state.raise.RewardPoolSize.Cmp(poolOf(1_000_000_000)) != 0 {
		t.Fatalf("unexpected pool snapshot %s", h.state.raise.RewardPoolSize)
	}
	if _, err := h.engine.Initialize(testDuration); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected already initialized, got %v", err)
	}
	// Later vault top-ups do not move the snapshot.
	h.token.balances[testVault] = poolOf(5)
	summary, err := h.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.PoolPoints.Cmp(big.NewInt(1_000_000_000)) != 0 {
		t.Fatalf("unexpected pool points %s", summary.PoolPoints)
	}
	if got := h.emitter.types(); len(got) != 1 || got[0] != events.TypePresaleInitialized {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestOperationsBeforeInitialize(t *testing.T) {
	engine, err := NewEngine(DefaultParams())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	engine.SetState(newMockState())
	engine.SetRewardToken(newMockToken(testDecimals))
	if _, err := engine.Contribute(alice, coins(1), common.Address{}); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized, got %v", err)
	}
	if _, err := engine.Claim(alice); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized on claim, got %v", err)
	}
	if _, err := engine.Deadline(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not initialized on deadline, got %v", err)
	}

	var nilState Engine
	if _, err := nilState.Points(alice); !errors.Is(err, ErrNilState) {
		t.Fatalf("expected nil state, got %v", err)
	}
}

func TestInitializeRejectsOverflowingDuration(t *testing.T) {
	engine, err := NewEngine(DefaultParams())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	state := newMockState()
	engine.SetState(state)
	engine.SetRewardToken(newMockToken(testDecimals))
	engine.SetNowFunc(func() int64 { return testStart })
	if _, err := engine.Initialize(math.MaxInt64 - testStart + 1); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	if state.raise != nil {
		t.Fatalf("rejected initialize must not store a raise")
	}
	if _, err := engine.Initialize(math.MaxInt64 - testStart); err != nil {
		t.Fatalf("initialize at the limit: %v", err)
	}
}

func TestContributeRejectsZeroAddress(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	if _, err := h.engine.Contribute(common.Address{}, coins(1), common.Address{}); !errors.Is(err, ErrInvalidContributor) {
		t.Fatalf("expected invalid contributor, got %v", err)
	}
	if len(h.state.records) != 0 {
		t.Fatalf("rejected contribution must not append")
	}
	contributed, err := h.engine.IsContributed(common.Address{})
	if err != nil || contributed {
		t.Fatalf("zero address must never count as contributed: %v %v", contributed, err)
	}
}

func TestMinimumContribution(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	tooLow := big.NewInt(9_000_000_000_000_000) // 0.009
	if _, err := h.engine.Contribute(alice, tooLow, common.Address{}); !errors.Is(err, ErrAmountIsTooLow) {
		t.Fatalf("expected amount too low, got %v", err)
	}
	if len(h.state.records) != 0 {
		t.Fatalf("rejected contribution must not append")
	}
	record := h.mustContribute(t, alice, new(big.Int).Set(DefaultMinimumContribution), common.Address{})
	if record.Index != 0 {
		t.Fatalf("unexpected index %d", record.Index)
	}
	if got := h.mustPoints(t, alice); got.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("unexpected points %s", got)
	}
}

func TestEarlyBirdGrowthScenario(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	base := h.engine.CalcPoints(coins(1))
	if base.Cmp(big.NewInt(10_000_000)) != 0 {
		t.Fatalf("unexpected base points %s", base)
	}
	if got := h.mustPoints(t, alice); got.Cmp(base) != 0 {
		t.Fatalf("expected base points with no later records, got %s", got)
	}

	h.mustContribute(t, bob, coins(1), common.Address{})
	if got := h.mustPoints(t, alice); got.Cmp(big.NewInt(10_100_000)) != 0 {
		t.Fatalf("expected 1%% growth, got %s", got)
	}
	h.mustContribute(t, carol, coins(1), common.Address{})
	if got := h.mustPoints(t, alice); got.Cmp(big.NewInt(10_200_000)) != 0 {
		t.Fatalf("expected 2%% growth, got %s", got)
	}
	if got := h.mustPoints(t, carol); got.Cmp(base) != 0 {
		t.Fatalf("latest contributor should hold base points, got %s", got)
	}
}

func TestEarlyBirdPointsMonotoneAndCapped(t *testing.T) {
	base := big.NewInt(1_234_567)
	ceiling := new(big.Int).Mul(base, big.NewInt(4))
	prev := big.NewInt(0)
	for length := uint64(4); length < 1_000; length++ {
		value, err := EarlyBirdPoints(base, 3, length)
		if err != nil {
			t.Fatalf("length %d: %v", length, err)
		}
		if value.Cmp(prev) < 0 {
			t.Fatalf("value decreased at length %d: %s < %s", length, value, prev)
		}
		if value.Cmp(ceiling) > 0 {
			t.Fatalf("value %s exceeds ceiling %s at length %d", value, ceiling, length)
		}
		prev = value
	}
	if prev.Cmp(ceiling) != 0 {
		t.Fatalf("expected value to saturate at %s, got %s", ceiling, prev)
	}
	if _, err := EarlyBirdPoints(base, 3, 3); !errors.Is(err, ErrLedgerInvariant) {
		t.Fatalf("expected invariant error for index beyond length, got %v", err)
	}
}

func TestPointsMonotoneAcrossContributions(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(2), common.Address{})
	prev := h.mustPoints(t, alice)
	contributors := []common.Address{bob, carol, dave}
	for i := 0; i < 60; i++ {
		h.mustContribute(t, contributors[i%len(contributors)], DefaultMinimumContribution, alice)
		next := h.mustPoints(t, alice)
		if next.Cmp(prev) < 0 {
			t.Fatalf("alice points decreased after %d contributions: %s < %s", i+1, next, prev)
		}
		prev = next
	}
}

func TestReferralSymmetry(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	record := h.mustContribute(t, bob, coins(1), alice)

	expected := h.engine.CalcBonus(coins(1))
	if expected.Cmp(big.NewInt(500_000)) != 0 {
		t.Fatalf("unexpected bonus preview %s", expected)
	}
	if record.Bonus.Cmp(expected) != 0 {
		t.Fatalf("contributor bonus %s != %s", record.Bonus, expected)
	}
	referrerBonus, err := h.engine.ReferrerBonus(alice)
	if err != nil {
		t.Fatalf("referrer bonus: %v", err)
	}
	if referrerBonus.Cmp(expected) != 0 {
		t.Fatalf("referrer bonus %s != %s", referrerBonus, expected)
	}
	referrals, err := h.engine.Referrals(alice)
	if err != nil {
		t.Fatalf("referrals: %v", err)
	}
	if len(referrals) != 1 || referrals[0] != 1 {
		t.Fatalf("unexpected referrals %v", referrals)
	}
	if got := h.mustPoints(t, bob); got.Cmp(big.NewInt(10_500_000)) != 0 {
		t.Fatalf("unexpected bob points %s", got)
	}
	if got := h.mustPoints(t, alice); got.Cmp(big.NewInt(10_600_000)) != 0 {
		t.Fatalf("unexpected alice points %s", got)
	}
	want := []string{
		events.TypePresaleInitialized,
		events.TypePresaleContributed,
		events.TypePresaleContributed,
		events.TypePresaleReferralCredited,
	}
	got := h.emitter.types()
	if len(got) != len(want) {
		t.Fatalf("unexpected events %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: expected %s got %s", i, want[i], got[i])
		}
	}
}

func TestReferralValidation(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	if _, err := h.engine.Contribute(alice, coins(1), bob); !errors.Is(err, ErrInvalidReferrer) {
		t.Fatalf("expected invalid referrer, got %v", err)
	}
	if _, err := h.engine.Contribute(alice, coins(1), alice); !errors.Is(err, ErrReferrerCannotBeOneself) {
		t.Fatalf("expected self referral rejection, got %v", err)
	}
	h.mustContribute(t, alice, coins(1), common.Address{})
	if _, err := h.engine.Contribute(alice, coins(1), alice); !errors.Is(err, ErrReferrerCannotBeOneself) {
		t.Fatalf("expected self referral rejection after contributing, got %v", err)
	}
	isReferrer, err := h.engine.IsReferrer(alice)
	if err != nil || !isReferrer {
		t.Fatalf("expected alice to be a referrer: %v %v", isReferrer, err)
	}
	isReferrer, err = h.engine.IsReferrer(bob)
	if err != nil || isReferrer {
		t.Fatalf("expected bob not to be a referrer: %v %v", isReferrer, err)
	}
	if len(h.state.records) != 1 {
		t.Fatalf("rejections must not append, have %d records", len(h.state.records))
	}
}

func TestReferrerMinimumContribution(t *testing.T) {
	params := DefaultParams()
	params.ReferrerMinimumContribution = coins(1)
	h := newHarness(t, params, poolOf(1_000_000_000))
	half := new(big.Int).Quo(coins(1), big.NewInt(2))
	h.mustContribute(t, alice, half, common.Address{})
	contributed, err := h.engine.IsContributed(alice)
	if err != nil || !contributed {
		t.Fatalf("expected alice contributed: %v %v", contributed, err)
	}
	if _, err := h.engine.Contribute(bob, coins(1), alice); !errors.Is(err, ErrInvalidReferrer) {
		t.Fatalf("expected invalid referrer below threshold, got %v", err)
	}
	h.mustContribute(t, alice, half, common.Address{})
	h.mustContribute(t, bob, coins(1), alice)
}

func TestPresaleLimit(t *testing.T) {
	// Each referral-free coin carries 4e7 points of worst-case liability.
	h := newHarness(t, DefaultParams(), poolOf(100_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	h.mustContribute(t, bob, coins(1), common.Address{})
	if _, err := h.engine.Contribute(carol, coins(1), common.Address{}); !errors.Is(err, ErrPresaleLimitHasBeenExceeded) {
		t.Fatalf("expected presale limit, got %v", err)
	}
	// A smaller contribution still fits under the remaining headroom.
	h.mustContribute(t, carol, new(big.Int).Quo(coins(1), big.NewInt(2)), common.Address{})
	if h.state.raise.MaxLiability.Cmp(big.NewInt(100_000_000)) != 0 {
		t.Fatalf("unexpected liability %s", h.state.raise.MaxLiability)
	}
	if h.state.raise.TotalRaised.Cmp(new(big.Int).Add(coins(2), new(big.Int).Quo(coins(1), big.NewInt(2)))) != 0 {
		t.Fatalf("unexpected total raised %s", h.state.raise.TotalRaised)
	}
}

func TestCapInvariantHoldsForEveryAdmission(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(250_000_000))
	poolPoints := big.NewInt(250_000_000)
	contributors := []common.Address{alice, bob, carol, dave}
	amounts := []*big.Int{coins(1), DefaultMinimumContribution, coins(3), big.NewInt(123_456_789_000_000_000)}
	admitted := 0
	for i := 0; i < 40; i++ {
		from := contributors[i%len(contributors)]
		referrer := common.Address{}
		if i > 0 {
			referrer = contributors[(i+1)%len(contributors)]
		}
		_, err := h.engine.Contribute(from, amounts[i%len(amounts)], referrer)
		if err != nil && !errors.Is(err, ErrPresaleLimitHasBeenExceeded) && !errors.Is(err, ErrInvalidReferrer) {
			t.Fatalf("unexpected error at step %d: %v", i, err)
		}
		if err == nil {
			admitted++
		}
		worst := big.NewInt(0)
		for _, record := range h.state.records {
			worst.Add(worst, new(big.Int).Mul(BasePoints(record.Amount, DefaultPointsUnit), big.NewInt(4)))
		}
		if worst.Cmp(poolPoints) > 0 {
			t.Fatalf("worst-case liability %s exceeds pool %s at step %d", worst, poolPoints, i)
		}
	}
	if admitted == 0 {
		t.Fatalf("expected some admissions")
	}

	// Even at the full multiplier every holder can be paid out.
	h.closeRaise()
	for _, addr := range contributors {
		if _, err := h.engine.Claim(addr); err != nil {
			t.Fatalf("claim for %s: %v", addr.Hex(), err)
		}
	}
}

func TestDeadlineGates(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	if _, err := h.engine.Claim(alice); !errors.Is(err, ErrClaimBeforeDeadline) {
		t.Fatalf("expected claim before deadline, got %v", err)
	}
	passed, err := h.engine.IsDeadlinePassed()
	if err != nil || passed {
		t.Fatalf("deadline should be open: %v %v", passed, err)
	}
	h.closeRaise()
	passed, err = h.engine.IsDeadlinePassed()
	if err != nil || !passed {
		t.Fatalf("deadline should be passed: %v %v", passed, err)
	}
	if _, err := h.engine.Contribute(bob, coins(1), common.Address{}); !errors.Is(err, ErrDeadlineHasPassed) {
		t.Fatalf("expected deadline passed, got %v", err)
	}
}

func TestRejectionOrder(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1))
	h.closeRaise()
	tooLow := big.NewInt(1)
	if _, err := h.engine.Contribute(alice, tooLow, alice); !errors.Is(err, ErrAmountIsTooLow) {
		t.Fatalf("minimum must be checked first, got %v", err)
	}
	if _, err := h.engine.Contribute(alice, coins(1), alice); !errors.Is(err, ErrDeadlineHasPassed) {
		t.Fatalf("deadline must be checked before referral, got %v", err)
	}
	h.now = testStart
	if _, err := h.engine.Contribute(alice, coins(1), alice); !errors.Is(err, ErrReferrerCannotBeOneself) {
		t.Fatalf("referral must be checked before cap, got %v", err)
	}
	if _, err := h.engine.Contribute(alice, coins(1), common.Address{}); !errors.Is(err, ErrPresaleLimitHasBeenExceeded) {
		t.Fatalf("expected cap rejection, got %v", err)
	}
}

func TestExtendDeadline(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	if _, err := h.engine.ExtendDeadline(alice, 60); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if _, err := h.engine.ExtendDeadline(testOwner, -1); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration, got %v", err)
	}
	h.now = testStart + 1_000
	deadline, err := h.engine.ExtendDeadline(testOwner, 3_600)
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if want := testStart + testDuration + 3_600; deadline != want {
		t.Fatalf("expected additive deadline %d, got %d", want, deadline)
	}
	deadline, err = h.engine.ExtendDeadline(testOwner, 0)
	if err != nil {
		t.Fatalf("zero extension: %v", err)
	}
	if want := testStart + testDuration + 3_600; deadline != want {
		t.Fatalf("zero extension moved deadline to %d", deadline)
	}
	if _, err := h.engine.ExtendDeadline(testOwner, math.MaxInt64); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("expected invalid duration for overflowing extension, got %v", err)
	}
	if got, _ := h.engine.Deadline(); got != testStart+testDuration+3_600 {
		t.Fatalf("overflowing extension moved deadline to %d", got)
	}

	// Extending after close reopens the raise.
	h.now = testStart + testDuration + 3_600
	if _, err := h.engine.Contribute(alice, coins(1), common.Address{}); !errors.Is(err, ErrDeadlineHasPassed) {
		t.Fatalf("expected closed raise, got %v", err)
	}
	if _, err := h.engine.ExtendDeadline(testOwner, 10); err != nil {
		t.Fatalf("extend after close: %v", err)
	}
	h.mustContribute(t, alice, coins(1), common.Address{})
}

func TestClaimPaysOutAndIsIdempotent(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	h.mustContribute(t, bob, coins(1), alice)
	h.closeRaise()

	receipt, err := h.engine.Claim(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if receipt.Points.Cmp(big.NewInt(10_600_000)) != 0 {
		t.Fatalf("unexpected claimed points %s", receipt.Points)
	}
	wantPayout := new(big.Int).Mul(big.NewInt(10_600_000), TokenScale(testDecimals))
	if receipt.Payout.Cmp(wantPayout) != 0 {
		t.Fatalf("unexpected payout %s", receipt.Payout)
	}
	if h.token.balances[alice].Cmp(wantPayout) != 0 {
		t.Fatalf("unexpected alice balance %s", h.token.balances[alice])
	}
	vaultAfter := new(big.Int).Set(h.token.balances[testVault])

	if _, err := h.engine.Claim(alice); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
	if h.token.balances[alice].Cmp(wantPayout) != 0 || h.token.balances[testVault].Cmp(vaultAfter) != 0 {
		t.Fatalf("second claim changed balances")
	}
	claimed, err := h.engine.IsClaimed(alice)
	if err != nil || !claimed {
		t.Fatalf("expected alice claimed: %v %v", claimed, err)
	}
	claimed, err = h.engine.IsClaimed(bob)
	if err != nil || claimed {
		t.Fatalf("expected bob unclaimed: %v %v", claimed, err)
	}
}

func TestZeroPointClaim(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	h.closeRaise()
	receipt, err := h.engine.Claim(dave)
	if err != nil {
		t.Fatalf("zero point claim: %v", err)
	}
	if receipt.Points.Sign() != 0 || receipt.Payout.Sign() != 0 {
		t.Fatalf("expected zero receipt, got %+v", receipt)
	}
	if h.token.transfers != 0 {
		t.Fatalf("zero point claim must not transfer")
	}
	if !h.state.claimed[dave] {
		t.Fatalf("zero point claim must mark the address")
	}
	if _, err := h.engine.Claim(dave); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected already claimed, got %v", err)
	}
}

func TestClaimUnderfundedPool(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	h.closeRaise()
	h.token.balances[testVault] = big.NewInt(1)
	if _, err := h.engine.Claim(alice); !errors.Is(err, ErrPoolUnderfunded) {
		t.Fatalf("expected underfunded pool, got %v", err)
	}
	if h.state.claimed[alice] {
		t.Fatalf("failed claim must not mark the address")
	}
	if !IsInvariantViolation(ErrPoolUnderfunded) {
		t.Fatalf("underfunded pool should be an invariant violation")
	}
}

func TestAccountAndSummary(t *testing.T) {
	h := newHarness(t, DefaultParams(), poolOf(1_000_000_000))
	h.mustContribute(t, alice, coins(1), common.Address{})
	h.mustContribute(t, bob, coins(2), alice)

	view, err := h.engine.Account(alice)
	if err != nil {
		t.Fatalf("account: %v", err)
	}
	if !view.IsContributed || !view.IsReferrer || view.IsClaimed {
		t.Fatalf("unexpected flags %+v", view)
	}
	if view.ContributedAmount.Cmp(coins(1)) != 0 {
		t.Fatalf("unexpected contributed amount %s", view.ContributedAmount)
	}
	if view.ReferrerBonus.Cmp(big.NewInt(1_000_000)) != 0 {
		t.Fatalf("unexpected referrer bonus %s", view.ReferrerBonus)
	}

	records, err := h.engine.Contributions()
	if err != nil {
		t.Fatalf("contributions: %v", err)
	}
	if len(records) != 2 || records[1].Referrer != alice || records[1].Contributor != bob {
		t.Fatalf("unexpected records %+v", records)
	}
	if _, err := h.engine.Record(2); !errors.Is(err, ErrRecordOutOfRange) {
		t.Fatalf("expected out of range, got %v", err)
	}

	summary, err := h.engine.Summary()
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Contributions != 2 || summary.TotalRaised.Cmp(coins(3)) != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	// 4×1e7 + 4×2e7 + 2×1e6
	if summary.MaxLiability.Cmp(big.NewInt(122_000_000)) != 0 {
		t.Fatalf("unexpected liability %s", summary.MaxLiability)
	}
	if summary.DeadlinePassed {
		t.Fatalf("raise should be open")
	}
}

func TestErrorCodes(t *testing.T) {
	cases := map[error]string{
		ErrAmountIsTooLow:              "AmountIsTooLow",
		ErrDeadlineHasPassed:           "DeadlineHasPassed",
		ErrInvalidReferrer:             "InvalidReferrer",
		ErrReferrerCannotBeOneself:     "ReferrerCannotBeOneself",
		ErrPresaleLimitHasBeenExceeded: "PresaleLimitHasBeenExceeded",
		ErrClaimBeforeDeadline:         "ClaimBeforeDeadline",
		ErrAlreadyClaimed:              "AlreadyClaimed",
		ErrUnauthorized:                "OwnableUnauthorizedAccount",
		ErrInvalidDuration:             "InvalidDuration",
		ErrInvalidContributor:          "InvalidContributor",
	}
	for err, code := range cases {
		if got := ErrorCode(err); got != code {
			t.Fatalf("%v: expected %s got %s", err, code, got)
		}
	}
	if ErrorCode(ErrLedgerInvariant) != "" {
		t.Fatalf("invariant violations have no wire code")
	}
	if !IsPolicyViolation(ErrAlreadyClaimed) || IsPolicyViolation(ErrUnauthorized) {
		t.Fatalf("unexpected policy classification")
	}
}
