package token

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"timepresale/core/events"
	ledgerstate "timepresale/core/state"
)

var (
	ErrNilState            = errors.New("token: state not configured")
	ErrNotRegistered       = errors.New("token: not registered")
	ErrInvalidAmount       = errors.New("token: amount must be positive")
	ErrInsufficientBalance = errors.New("token: insufficient balance")
	ErrBalanceOverflow     = errors.New("token: balance exceeds 256 bits")
	ErrMintPaused          = errors.New("token: minting paused")
	ErrUnauthorizedMint    = errors.New("token: caller is not the mint authority")
)

type ledgerState interface {
	RegisterToken(symbol, name string, decimals uint8, mintAuthority common.Address) error
	Token(symbol string) (*ledgerstate.TokenMetadata, error)
	SetTokenMintPaused(symbol string, paused bool) error
	Balance(addr common.Address, symbol string) (*big.Int, error)
	SetBalance(addr common.Address, symbol string, amount *big.Int) error
	TokenSupply(symbol string) (*big.Int, error)
	SetTokenSupply(symbol string, amount *big.Int) error
}

// Ledger is the reward token balance sheet for a single symbol. It backs the
// presale reward pool: the vault account holds the pool and claims are paid
// out through Transfer.
type Ledger struct {
	state   ledgerState
	symbol  string
	emitter events.Emitter
}

// NewLedger returns a ledger for symbol.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:  strings.ToUpper(strings.TrimSpace(symbol)),
		emitter: events.NoopEmitter{},
	}
}

// SetState configures the state backend.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

// SetEmitter configures the event emitter.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

// Symbol returns the normalized token symbol.
func (l *Ledger) Symbol() string { return l.symbol }

func (l *Ledger) metadata() (*ledgerstate.TokenMetadata, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	meta, err := l.state.Token(l.symbol)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, l.symbol)
	}
	return meta, nil
}

// Register records the token metadata. The mint authority is the only
// address allowed to mint.
func (l *Ledger) Register(name string, decimals uint8, mintAuthority common.Address) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	return l.state.RegisterToken(l.symbol, name, decimals, mintAuthority)
}

// Decimals returns the token's decimal precision.
func (l *Ledger) Decimals() (uint8, error) {
	meta, err := l.metadata()
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// TotalSupply returns the minted supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if _, err := l.metadata(); err != nil {
		return nil, err
	}
	return l.state.TokenSupply(l.symbol)
}

// BalanceOf returns addr's balance.
func (l *Ledger) BalanceOf(addr common.Address) (*big.Int, error) {
	if _, err := l.metadata(); err != nil {
		return nil, err
	}
	return l.state.Balance(addr, l.symbol)
}

// PauseMint stops or resumes minting.
func (l *Ledger) PauseMint(paused bool) error {
	if _, err := l.metadata(); err != nil {
		return err
	}
	return l.state.SetTokenMintPaused(l.symbol, paused)
}

// Mint creates amount new units for to.
func (l *Ledger) Mint(caller, to common.Address, amount *big.Int) error {
	meta, err := l.metadata()
	if err != nil {
		return err
	}
	if meta.MintAuthority != caller {
		return ErrUnauthorizedMint
	}
	if meta.MintPaused {
		return ErrMintPaused
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	supply, err := l.state.TokenSupply(l.symbol)
	if err != nil {
		return err
	}
	newSupply, err := addChecked(supply, delta)
	if err != nil {
		return err
	}
	balance, err := l.state.Balance(to, l.symbol)
	if err != nil {
		return err
	}
	newBalance, err := addChecked(balance, delta)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenSupply(l.symbol, newSupply); err != nil {
		return err
	}
	if err := l.state.SetBalance(to, l.symbol, newBalance); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenMinted{Asset: l.symbol, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if _, err := l.metadata(); err != nil {
		return err
	}
	delta, err := toUint256(amount)
	if err != nil {
		return err
	}
	fromBalance, err := l.state.Balance(from, l.symbol)
	if err != nil {
		return err
	}
	src, overflow := uint256.FromBig(fromBalance)
	if overflow {
		return ErrBalanceOverflow
	}
	remaining, underflow := new(uint256.Int).SubOverflow(src, delta)
	if underflow {
		return fmt.Errorf("%w: %s has %s, needs %s", ErrInsufficientBalance, from.Hex(), fromBalance, amount)
	}
	if err := l.state.SetBalance(from, l.symbol, remaining.ToBig()); err != nil {
		return err
	}
	// Read the destination after the debit so a self-transfer nets to zero.
	toBalance, err := l.state.Balance(to, l.symbol)
	if err != nil {
		return err
	}
	credited, err := addChecked(toBalance, delta)
	if err != nil {
		return err
	}
	if err := l.state.SetBalance(to, l.symbol, credited); err != nil {
		return err
	}
	l.emitter.Emit(events.TokenTransfer{Asset: l.symbol, From: from, To: to, Amount: new(big.Int).Set(amount)})
	return nil
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

func addChecked(current *big.Int, delta *uint256.Int) (*big.Int, error) {
	base, overflow := uint256.FromBig(current)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	sum, overflow := new(uint256.Int).AddOverflow(base, delta)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return sum.ToBig(), nil
}
