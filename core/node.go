package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"timepresale/core/events"
	ledgerstate "timepresale/core/state"
	"timepresale/native/presale"
	"timepresale/native/token"
	"timepresale/observability/metrics"
	"timepresale/storage"
)

var ErrNodeClosed = errors.New("node: closed")

// NodeConfig wires the presale policy and collaborators into a Node.
type NodeConfig struct {
	Params      presale.Params
	TokenSymbol string
	Vault       common.Address
	// Emitter receives events after the write that produced them commits.
	Emitter events.Emitter
	Logger  *slog.Logger
	Metrics *metrics.PresaleMetrics
	// MeterProvider defaults to the global OpenTelemetry provider.
	MeterProvider metric.MeterProvider
	// Now overrides the wall clock, mainly for tests.
	Now func() int64
}

// Node is the single writer for presale state. Every mutation runs under the
// write lock against a staged write-set that is committed as one batch or
// discarded. Reads take the read lock and only observe committed state.
type Node struct {
	mu      sync.RWMutex
	db      storage.Database
	state   *ledgerstate.Manager
	engine  *presale.Engine
	token   *token.Ledger
	buffer  *events.Buffer
	emitter events.Emitter
	logger  *slog.Logger
	metrics *metrics.PresaleMetrics
	otel    *ledgerInstruments
	tracer  trace.Tracer
	closed  bool
}

// NewNode opens the presale node over db.
func NewNode(db storage.Database, cfg NodeConfig) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	engine, err := presale.NewEngine(cfg.Params)
	if err != nil {
		return nil, err
	}
	symbol := cfg.TokenSymbol
	if symbol == "" {
		symbol = DefaultTokenSymbol
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	emitter := cfg.Emitter
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}

	manager := ledgerstate.NewManager(db)
	buffer := &events.Buffer{}

	ledger := token.NewLedger(symbol)
	ledger.SetState(manager)
	ledger.SetEmitter(buffer)

	engine.SetState(manager)
	engine.SetRewardToken(ledger)
	engine.SetAuthority(ledgerstate.NewRoleAuthority(manager, ledgerstate.RolePresaleOwner))
	engine.SetVault(cfg.Vault)
	engine.SetEmitter(buffer)
	if cfg.Now != nil {
		engine.SetNowFunc(cfg.Now)
	}

	return &Node{
		db:      db,
		state:   manager,
		engine:  engine,
		token:   ledger,
		buffer:  buffer,
		emitter: emitter,
		logger:  logger.With(slog.String("component", "presale")),
		metrics: cfg.Metrics,
		otel:    newLedgerInstruments(cfg.MeterProvider),
		tracer:  otel.Tracer("timepresale/core"),
	}, nil
}

// Close releases the underlying database.
func (n *Node) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	n.db.Close()
}

// write applies fn as one all-or-nothing transaction.
func (n *Node) write(ctx context.Context, operation string, fn func() error, attrs ...attribute.KeyValue) error {
	ctx, span := n.tracer.Start(ctx, "presale."+operation, trace.WithAttributes(attrs...))
	defer span.End()
	started := time.Now()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrNodeClosed
	}

	err := fn()
	if err == nil {
		err = n.state.Commit()
	}
	if err != nil {
		n.state.Discard()
		n.buffer.Reset()
		code := presale.ErrorCode(err)
		n.metrics.ObserveRejected(operation, code, time.Since(started))
		n.otel.recordOperation(ctx, operation, "rejected")
		span.SetStatus(codes.Error, err.Error())
		switch {
		case presale.IsInvariantViolation(err):
			n.logger.Error("ledger invariant violated", slog.String("operation", operation), slog.Any("error", err))
		case code != "":
			n.logger.Debug("write rejected", slog.String("operation", operation), slog.String("reason", code))
		default:
			n.logger.Warn("write failed", slog.String("operation", operation), slog.Any("error", err))
		}
		return err
	}

	n.buffer.Flush(n.emitter)
	n.metrics.ObserveCommitted(operation, time.Since(started))
	n.otel.recordOperation(ctx, operation, "committed")
	n.logger.Info("write committed", slog.String("operation", operation), slog.Duration("elapsed", time.Since(started)))
	n.publishLedgerMetrics(ctx)
	return nil
}

func (n *Node) publishLedgerMetrics(ctx context.Context) {
	summary, err := n.engine.Summary()
	if err != nil {
		return
	}
	n.otel.recordLedger(ctx, summary.Contributions, summary.TotalRaised)
	n.metrics.SetLedger(summary.Contributions, summary.TotalRaised, summary.MaxLiability, summary.PoolPoints, summary.Deadline)
}

func (n *Node) read(fn func() error) error {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return ErrNodeClosed
	}
	return fn()
}

// Contribute admits a contribution. The zero referrer means none.
func (n *Node) Contribute(ctx context.Context, contributor common.Address, amount *big.Int, referrer common.Address) (*presale.ContributionRecord, error) {
	var record *presale.ContributionRecord
	err := n.write(ctx, "contribute", func() error {
		var err error
		record, err = n.engine.Contribute(contributor, amount, referrer)
		return err
	}, attrAddress("contributor", contributor))
	if err != nil {
		return nil, err
	}
	n.logger.Info("contribution admitted",
		slog.Uint64("index", record.Index),
		slog.String("contributor", record.Contributor.Hex()),
		slog.String("amount", record.Amount.String()),
		slog.Bool("referred", record.HasReferrer()))
	return record, nil
}

// Claim settles caller's points.
func (n *Node) Claim(ctx context.Context, caller common.Address) (*presale.ClaimReceipt, error) {
	var receipt *presale.ClaimReceipt
	err := n.write(ctx, "claim", func() error {
		var err error
		receipt, err = n.engine.Claim(caller)
		return err
	}, attrAddress("caller", caller))
	if err != nil {
		return nil, err
	}
	n.metrics.AddClaimedPoints(receipt.Points)
	n.otel.recordClaim(ctx, receipt.Points)
	n.logger.Info("claim settled",
		slog.String("claimant", caller.Hex()),
		slog.String("points", receipt.Points.String()),
		slog.String("payout", receipt.Payout.String()))
	return receipt, nil
}

// ExtendDeadline adds extra seconds to the deadline on behalf of caller.
func (n *Node) ExtendDeadline(ctx context.Context, caller common.Address, extra int64) (int64, error) {
	var deadline int64
	err := n.write(ctx, "extend_deadline", func() error {
		var err error
		deadline, err = n.engine.ExtendDeadline(caller, extra)
		return err
	}, attrAddress("caller", caller), attribute.Int64("extension", extra))
	if err != nil {
		return 0, err
	}
	n.logger.Info("deadline extended", slog.String("caller", caller.Hex()), slog.Int64("deadline", deadline))
	return deadline, nil
}

// Points returns addr's current point total.
func (n *Node) Points(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.read(func() error {
		var err error
		out, err = n.engine.Points(addr)
		return err
	})
	return out, err
}

// ContributedAmount returns addr's summed contributions.
func (n *Node) ContributedAmount(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.read(func() error {
		var err error
		out, err = n.engine.ContributedAmount(addr)
		return err
	})
	return out, err
}

// IsContributed reports whether addr has contributed.
func (n *Node) IsContributed(addr common.Address) (bool, error) {
	var out bool
	err := n.read(func() error {
		var err error
		out, err = n.engine.IsContributed(addr)
		return err
	})
	return out, err
}

// IsReferrer reports whether addr may be named as referrer.
func (n *Node) IsReferrer(addr common.Address) (bool, error) {
	var out bool
	err := n.read(func() error {
		var err error
		out, err = n.engine.IsReferrer(addr)
		return err
	})
	return out, err
}

// Contributions returns the full ordered ledger.
func (n *Node) Contributions() ([]*presale.ContributionRecord, error) {
	var out []*presale.ContributionRecord
	err := n.read(func() error {
		var err error
		out, err = n.engine.Contributions()
		return err
	})
	return out, err
}

// Referrals returns the record indices that named addr as referrer.
func (n *Node) Referrals(addr common.Address) ([]uint64, error) {
	var out []uint64
	err := n.read(func() error {
		var err error
		out, err = n.engine.Referrals(addr)
		return err
	})
	return out, err
}

// ReferrerBonus returns addr's cumulative referrer bonus.
func (n *Node) ReferrerBonus(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.read(func() error {
		var err error
		out, err = n.engine.ReferrerBonus(addr)
		return err
	})
	return out, err
}

// IsClaimed reports whether addr has claimed.
func (n *Node) IsClaimed(addr common.Address) (bool, error) {
	var out bool
	err := n.read(func() error {
		var err error
		out, err = n.engine.IsClaimed(addr)
		return err
	})
	return out, err
}

// Account returns the aggregated per-address view.
func (n *Node) Account(addr common.Address) (*presale.AccountView, error) {
	var out *presale.AccountView
	err := n.read(func() error {
		var err error
		out, err = n.engine.Account(addr)
		return err
	})
	return out, err
}

// Deadline returns the raise deadline.
func (n *Node) Deadline() (int64, error) {
	var out int64
	err := n.read(func() error {
		var err error
		out, err = n.engine.Deadline()
		return err
	})
	return out, err
}

// IsDeadlinePassed reports whether the raise has closed.
func (n *Node) IsDeadlinePassed() (bool, error) {
	var out bool
	err := n.read(func() error {
		var err error
		out, err = n.engine.IsDeadlinePassed()
		return err
	})
	return out, err
}

// Summary returns ledger-wide aggregates.
func (n *Node) Summary() (*presale.Summary, error) {
	var out *presale.Summary
	err := n.read(func() error {
		var err error
		out, err = n.engine.Summary()
		return err
	})
	return out, err
}

// CalcPoints previews the base points for amount.
func (n *Node) CalcPoints(amount *big.Int) *big.Int { return n.engine.CalcPoints(amount) }

// CalcBonus previews the referral bonus for amount.
func (n *Node) CalcBonus(amount *big.Int) *big.Int { return n.engine.CalcBonus(amount) }

// TokenBalance returns addr's reward token balance.
func (n *Node) TokenBalance(addr common.Address) (*big.Int, error) {
	var out *big.Int
	err := n.read(func() error {
		var err error
		out, err = n.token.BalanceOf(addr)
		return err
	})
	return out, err
}

// RewardTokenDecimals returns the reward token precision.
func (n *Node) RewardTokenDecimals() (uint8, error) {
	var out uint8
	err := n.read(func() error {
		var err error
		out, err = n.engine.RewardTokenDecimals()
		return err
	})
	return out, err
}

// HasRole reports whether addr holds role.
func (n *Node) HasRole(role string, addr common.Address) bool {
	var out bool
	_ = n.read(func() error {
		out = n.state.HasRole(role, addr)
		return nil
	})
	return out
}

// Vault returns the reward pool account.
func (n *Node) Vault() common.Address { return n.engine.Vault() }

func attrAddress(key string, addr common.Address) attribute.KeyValue {
	return attribute.String(key, addr.Hex())
}
