package state

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"lukechampine.com/blake3"

	"timepresale/native/presale"
)

var (
	presaleRaiseKey        = []byte("presale/raise")
	presaleLedgerLengthKey = []byte("presale/ledger/length")
	presaleLedgerHeadKey   = []byte("presale/ledger/head")
	presaleRecordPrefix    = []byte("presale/ledger/record/")
	presaleContributorRoot = []byte("presale/contributor/")
	presaleReferrerRoot    = []byte("presale/referrer/")
	presaleClaimedPrefix   = []byte("presale/claimed/")
	presaleRecordsSuffix   = []byte("/records")
	presaleAmountSuffix    = []byte("/amount")
	presaleReferralsSuffix = []byte("/referrals")
	presaleBonusSuffix     = []byte("/bonus")
)

// PresaleRecordKey returns the storage key of the record at index.
func PresaleRecordKey(index uint64) []byte {
	buf := make([]byte, len(presaleRecordPrefix)+8)
	copy(buf, presaleRecordPrefix)
	binary.BigEndian.PutUint64(buf[len(presaleRecordPrefix):], index)
	return buf
}

func presaleAddressKey(root []byte, addr common.Address, suffix []byte) []byte {
	buf := make([]byte, 0, len(root)+common.AddressLength+len(suffix))
	buf = append(buf, root...)
	buf = append(buf, addr[:]...)
	return append(buf, suffix...)
}

func presaleClaimedKey(addr common.Address) []byte {
	return presaleAddressKey(presaleClaimedPrefix, addr, nil)
}

type storedContribution struct {
	Index       uint64
	Contributor common.Address
	Amount      *big.Int
	Referrer    common.Address
	Bonus       *big.Int
	Timestamp   uint64
}

func newStoredContribution(r *presale.ContributionRecord) *storedContribution {
	amount := big.NewInt(0)
	if r.Amount != nil {
		amount = new(big.Int).Set(r.Amount)
	}
	bonus := big.NewInt(0)
	if r.Bonus != nil {
		bonus = new(big.Int).Set(r.Bonus)
	}
	return &storedContribution{
		Index:       r.Index,
		Contributor: r.Contributor,
		Amount:      amount,
		Referrer:    r.Referrer,
		Bonus:       bonus,
		Timestamp:   uint64(r.Timestamp),
	}
}

func (s *storedContribution) toRecord() *presale.ContributionRecord {
	return &presale.ContributionRecord{
		Index:       s.Index,
		Contributor: s.Contributor,
		Amount:      new(big.Int).Set(s.Amount),
		Referrer:    s.Referrer,
		Bonus:       new(big.Int).Set(s.Bonus),
		Timestamp:   int64(s.Timestamp),
	}
}

type storedRaise struct {
	Initialized    bool
	InitializedAt  uint64
	Deadline       uint64
	RewardPoolSize *big.Int
	TotalRaised    *big.Int
	MaxLiability   *big.Int
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// PresaleRaise loads the raise bookkeeping.
func (m *Manager) PresaleRaise() (*presale.RaiseState, bool, error) {
	var stored storedRaise
	ok, err := m.KVGet(presaleRaiseKey, &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &presale.RaiseState{
		Initialized:    stored.Initialized,
		InitializedAt:  int64(stored.InitializedAt),
		Deadline:       int64(stored.Deadline),
		RewardPoolSize: bigOrZero(stored.RewardPoolSize),
		TotalRaised:    bigOrZero(stored.TotalRaised),
		MaxLiability:   bigOrZero(stored.MaxLiability),
	}, true, nil
}

// PresalePutRaise persists the raise bookkeeping.
func (m *Manager) PresalePutRaise(raise *presale.RaiseState) error {
	if raise == nil {
		return fmt.Errorf("presale: nil raise state")
	}
	if raise.Deadline < 0 || raise.InitializedAt < 0 {
		return fmt.Errorf("presale: negative timestamp in raise state")
	}
	return m.KVPut(presaleRaiseKey, &storedRaise{
		Initialized:    raise.Initialized,
		InitializedAt:  uint64(raise.InitializedAt),
		Deadline:       uint64(raise.Deadline),
		RewardPoolSize: bigOrZero(raise.RewardPoolSize),
		TotalRaised:    bigOrZero(raise.TotalRaised),
		MaxLiability:   bigOrZero(raise.MaxLiability),
	})
}

// PresaleLedgerLength returns the number of appended records.
func (m *Manager) PresaleLedgerLength() (uint64, error) {
	var length uint64
	if _, err := m.KVGet(presaleLedgerLengthKey, &length); err != nil {
		return 0, err
	}
	return length, nil
}

// PresaleLedgerHead returns the hash chain head over every appended record.
// The empty ledger has the zero hash.
func (m *Manager) PresaleLedgerHead() (common.Hash, error) {
	var head common.Hash
	if _, err := m.KVGet(presaleLedgerHeadKey, &head); err != nil {
		return common.Hash{}, err
	}
	return head, nil
}

// PresaleRecord loads the record at index.
func (m *Manager) PresaleRecord(index uint64) (*presale.ContributionRecord, bool, error) {
	var stored storedContribution
	ok, err := m.KVGet(PresaleRecordKey(index), &stored)
	if err != nil || !ok {
		return nil, ok, err
	}
	if stored.Amount == nil || stored.Bonus == nil {
		return nil, false, fmt.Errorf("%w: record %d incomplete", presale.ErrLedgerInvariant, index)
	}
	return stored.toRecord(), true, nil
}

// PresaleAppendRecord writes record at the next ledger position, extends the
// hash chain and updates the contributor's index list and running total.
func (m *Manager) PresaleAppendRecord(record *presale.ContributionRecord) error {
	if record == nil {
		return fmt.Errorf("presale: nil record")
	}
	if record.Timestamp < 0 {
		return fmt.Errorf("presale: negative record timestamp")
	}
	length, err := m.PresaleLedgerLength()
	if err != nil {
		return err
	}
	if record.Index != length {
		return fmt.Errorf("%w: append at %d with ledger length %d", presale.ErrLedgerInvariant, record.Index, length)
	}
	key := PresaleRecordKey(record.Index)
	if exists, err := m.KVGet(key, nil); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("%w: record %d already written", presale.ErrLedgerInvariant, record.Index)
	}
	stored := newStoredContribution(record)
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return err
	}
	if err := m.KVPut(key, stored); err != nil {
		return err
	}
	if err := m.KVPut(presaleLedgerLengthKey, length+1); err != nil {
		return err
	}

	head, err := m.PresaleLedgerHead()
	if err != nil {
		return err
	}
	if err := m.KVPut(presaleLedgerHeadKey, NextLedgerHead(head, encoded)); err != nil {
		return err
	}

	indicesKey := presaleAddressKey(presaleContributorRoot, record.Contributor, presaleRecordsSuffix)
	var indices []uint64
	if err := m.KVGetList(indicesKey, &indices); err != nil {
		return err
	}
	indices = append(indices, record.Index)
	if err := m.KVPut(indicesKey, indices); err != nil {
		return err
	}

	total, err := m.PresaleContributedAmount(record.Contributor)
	if err != nil {
		return err
	}
	total.Add(total, stored.Amount)
	return m.KVPut(presaleAddressKey(presaleContributorRoot, record.Contributor, presaleAmountSuffix), total)
}

// NextLedgerHead chains an encoded record onto the previous head.
func NextLedgerHead(prev common.Hash, encodedRecord []byte) common.Hash {
	buf := make([]byte, 0, common.HashLength+len(encodedRecord))
	buf = append(buf, prev[:]...)
	buf = append(buf, encodedRecord...)
	return common.Hash(blake3.Sum256(buf))
}

// PresaleRecordIndices returns the ledger positions of addr's own records.
func (m *Manager) PresaleRecordIndices(addr common.Address) ([]uint64, error) {
	var indices []uint64
	if err := m.KVGetList(presaleAddressKey(presaleContributorRoot, addr, presaleRecordsSuffix), &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// PresaleContributedAmount returns the summed amount of addr's records.
func (m *Manager) PresaleContributedAmount(addr common.Address) (*big.Int, error) {
	total := new(big.Int)
	ok, err := m.KVGet(presaleAddressKey(presaleContributorRoot, addr, presaleAmountSuffix), total)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return total, nil
}

// PresaleReferrals returns the ledger positions that named addr as referrer.
func (m *Manager) PresaleReferrals(addr common.Address) ([]uint64, error) {
	var indices []uint64
	if err := m.KVGetList(presaleAddressKey(presaleReferrerRoot, addr, presaleReferralsSuffix), &indices); err != nil {
		return nil, err
	}
	return indices, nil
}

// PresaleAppendReferral records that the record at index named referrer.
func (m *Manager) PresaleAppendReferral(referrer common.Address, index uint64) error {
	indices, err := m.PresaleReferrals(referrer)
	if err != nil {
		return err
	}
	for _, existing := range indices {
		if existing == index {
			return nil
		}
	}
	indices = append(indices, index)
	return m.KVPut(presaleAddressKey(presaleReferrerRoot, referrer, presaleReferralsSuffix), indices)
}

// PresaleReferrerBonus returns the cumulative bonus credited to addr as
// referrer.
func (m *Manager) PresaleReferrerBonus(addr common.Address) (*big.Int, error) {
	bonus := new(big.Int)
	ok, err := m.KVGet(presaleAddressKey(presaleReferrerRoot, addr, presaleBonusSuffix), bonus)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return bonus, nil
}

// PresalePutReferrerBonus overwrites the cumulative referrer bonus.
func (m *Manager) PresalePutReferrerBonus(addr common.Address, amount *big.Int) error {
	if amount != nil && amount.Sign() < 0 {
		return fmt.Errorf("%w: negative referrer bonus", presale.ErrLedgerInvariant)
	}
	return m.KVPut(presaleAddressKey(presaleReferrerRoot, addr, presaleBonusSuffix), bigOrZero(amount))
}

// PresaleClaimed reports whether addr has claimed.
func (m *Manager) PresaleClaimed(addr common.Address) (bool, error) {
	var claimed bool
	if _, err := m.KVGet(presaleClaimedKey(addr), &claimed); err != nil {
		return false, err
	}
	return claimed, nil
}

// PresaleMarkClaimed flips addr's claim flag. The flag never returns to false.
func (m *Manager) PresaleMarkClaimed(addr common.Address) error {
	return m.KVPut(presaleClaimedKey(addr), true)
}
