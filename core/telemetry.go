package core

import (
	"context"
	"math/big"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "timepresale/core"

// ledgerInstruments records ledger writes through the OpenTelemetry meter,
// alongside the Prometheus collectors in observability/metrics.
type ledgerInstruments struct {
	operations    metric.Int64Counter
	claimedPoints metric.Float64Counter
	raised        metric.Float64Gauge
	contributions metric.Int64Gauge
}

func newLedgerInstruments(provider metric.MeterProvider) *ledgerInstruments {
	if provider == nil {
		provider = otel.GetMeterProvider()
	}
	meter := provider.Meter(meterName)
	inst, err := buildInstruments(meter)
	if err != nil {
		otel.Handle(err)
		inst, _ = buildInstruments(noop.NewMeterProvider().Meter(meterName))
	}
	return inst
}

func buildInstruments(meter metric.Meter) (*ledgerInstruments, error) {
	operations, err := meter.Int64Counter("presale.operations",
		metric.WithDescription("Ledger writes by operation and outcome."))
	if err != nil {
		return nil, err
	}
	claimed, err := meter.Float64Counter("presale.claimed_points",
		metric.WithDescription("Points settled through claims."))
	if err != nil {
		return nil, err
	}
	raised, err := meter.Float64Gauge("presale.total_raised",
		metric.WithDescription("Sum of admitted contribution amounts in base units."),
		metric.WithUnit("wei"))
	if err != nil {
		return nil, err
	}
	contributions, err := meter.Int64Gauge("presale.contributions",
		metric.WithDescription("Number of records in the contribution ledger."))
	if err != nil {
		return nil, err
	}
	return &ledgerInstruments{
		operations:    operations,
		claimedPoints: claimed,
		raised:        raised,
		contributions: contributions,
	}, nil
}

func (i *ledgerInstruments) recordOperation(ctx context.Context, operation, outcome string) {
	if i == nil {
		return
	}
	i.operations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func (i *ledgerInstruments) recordLedger(ctx context.Context, contributions uint64, raised *big.Int) {
	if i == nil {
		return
	}
	i.contributions.Record(ctx, int64(contributions))
	i.raised.Record(ctx, bigToFloat(raised))
}

func (i *ledgerInstruments) recordClaim(ctx context.Context, points *big.Int) {
	if i == nil || points == nil || points.Sign() <= 0 {
		return
	}
	i.claimedPoints.Add(ctx, bigToFloat(points))
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
