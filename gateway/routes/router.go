package routes

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"timepresale/gateway/middleware"
	"timepresale/integrations/journal"
	"timepresale/native/presale"
)

// Ledger is the node surface served over HTTP.
type Ledger interface {
	Contribute(ctx context.Context, contributor common.Address, amount *big.Int, referrer common.Address) (*presale.ContributionRecord, error)
	Claim(ctx context.Context, caller common.Address) (*presale.ClaimReceipt, error)
	ExtendDeadline(ctx context.Context, caller common.Address, extra int64) (int64, error)

	Points(addr common.Address) (*big.Int, error)
	ContributedAmount(addr common.Address) (*big.Int, error)
	Referrals(addr common.Address) ([]uint64, error)
	Account(addr common.Address) (*presale.AccountView, error)
	Contributions() ([]*presale.ContributionRecord, error)
	CalcPoints(amount *big.Int) *big.Int
	CalcBonus(amount *big.Int) *big.Int
	Deadline() (int64, error)
	IsDeadlinePassed() (bool, error)
	Summary() (*presale.Summary, error)
	RewardTokenDecimals() (uint8, error)
}

// EventSource lists journaled events.
type EventSource interface {
	List(ctx context.Context, q journal.Query) ([]journal.Record, error)
}

type Config struct {
	Ledger        Ledger
	Events        EventSource
	Authenticator *middleware.Authenticator
	RateLimiter   *middleware.RateLimiter
	Observability *middleware.Observability
	Logger        *slog.Logger
}

func New(cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{ledger: cfg.Ledger, events: cfg.Events, logger: logger}

	r := chi.NewRouter()
	obs := cfg.Observability
	if obs != nil {
		r.Use(obs.Middleware)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if obs != nil {
		r.Handle("/metrics", obs.MetricsHandler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		write := func(key string, handler http.HandlerFunc) http.Handler {
			var out http.Handler = handler
			if cfg.Authenticator != nil {
				out = cfg.Authenticator.Middleware(out)
			}
			if cfg.RateLimiter != nil {
				out = cfg.RateLimiter.Middleware(key)(out)
			}
			return out
		}
		v1.Method(http.MethodPost, "/contribute", write("contribute", h.contribute))
		v1.Method(http.MethodPost, "/claim", write("claim", h.claim))
		v1.Method(http.MethodPost, "/deadline/extend", write("extend", h.extendDeadline))

		v1.Group(func(read chi.Router) {
			if cfg.RateLimiter != nil {
				read.Use(cfg.RateLimiter.Middleware("read"))
			}
			read.Get("/points/{address}", h.points)
			read.Get("/contributed/{address}", h.contributed)
			read.Get("/referrals/{address}", h.referrals)
			read.Get("/accounts/{address}", h.account)
			read.Get("/contributions", h.contributions)
			read.Get("/calc", h.calc)
			read.Get("/deadline", h.deadline)
			read.Get("/summary", h.summary)
			read.Get("/events", h.listEvents)
			read.Get("/exports/contributions.csv", h.exportCSV)
			read.Get("/exports/contributions.jsonl", h.exportJSONL)
			read.Get("/exports/contributions.parquet", h.exportParquet)
		})
	})

	if obs != nil {
		return obs.Trace(r)
	}
	return r
}
