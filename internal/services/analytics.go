package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"restaurant-insights/internal/models"
	"restaurant-insights/internal/store"
)

const maxWorkers = 10

// Analytics binds the pure metric functions to the record store. Every call
// recomputes from the store; nothing is cached between calls.
type Analytics struct {
	store     *store.Store
	clock     Clock
	logger    *slog.Logger
	tracer    trace.Tracer
	startedAt time.Time
}

func NewAnalytics(s *store.Store, clock Clock, logger *slog.Logger) *Analytics {
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analytics{
		store:     s,
		clock:     clock,
		logger:    logger,
		tracer:    otel.Tracer("restaurant-insights/services"),
		startedAt: clock.Now(),
	}
}

func (a *Analytics) Locations() []models.Location {
	return a.store.Locations()
}

// Performance computes the metrics for scope, which is a location id or
// store.AllLocations, over the orders inside rng. The customer counts are
// not narrowed by rng.
func (a *Analytics) Performance(ctx context.Context, scope string, rng DateRange) models.PerformanceMetrics {
	_, span := a.tracer.Start(ctx, "analytics.performance",
		trace.WithAttributes(attribute.String("scope", scope), attribute.String("range", string(rng))))
	defer span.End()

	customers, orders := a.store.Scope(scope)
	perf := Performance(customers, rng.Filter(orders), a.store)

	span.SetAttributes(attribute.Int("orders", perf.TotalOrders))
	return perf
}

// Customers lists the scoped customers whose name, email or phone contain
// query.
func (a *Analytics) Customers(scope, query string) []models.Customer {
	customers, _ := a.store.Scope(scope)
	return store.Search(customers, query)
}

// CustomerProfile ignores the active scope: a customer's history spans all
// locations.
func (a *Analytics) CustomerProfile(ctx context.Context, customerID string) (models.CustomerMetrics, error) {
	_, span := a.tracer.Start(ctx, "analytics.customer_profile",
		trace.WithAttributes(attribute.String("customer_id", customerID)))
	defer span.End()

	c, ok := a.store.Customer(customerID)
	if !ok {
		return models.CustomerMetrics{}, fmt.Errorf("%w: %q", store.ErrCustomerNotFound, customerID)
	}

	m := CustomerProfile(customerID, a.store.Orders(), a.clock)
	m.Customer = &c
	return m, nil
}

func (a *Analytics) Drilldown(ctx context.Context, scope string, rng DateRange, card MetricCard) (DrilldownView, error) {
	return Drilldown(card, a.Performance(ctx, scope, rng))
}

// Context builds the assistant snapshot for scope: all relations plus the
// metrics of the selected scope and range.
func (a *Analytics) Context(ctx context.Context, scope string, rng DateRange) (string, error) {
	perf := a.Performance(ctx, scope, rng)
	return SerializeContext(a.store.Locations(), a.store.Customers(), a.store.Orders(), perf)
}

// LocationSummaries computes each location's own metrics concurrently.
// Results keep location order.
func (a *Analytics) LocationSummaries(ctx context.Context) ([]models.LocationSummary, error) {
	ctx, span := a.tracer.Start(ctx, "analytics.location_summaries")
	defer span.End()

	locations := a.store.Locations()
	summaries := make([]models.LocationSummary, len(locations))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i, loc := range locations {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			summaries[i] = models.LocationSummary{
				Location:    loc,
				Performance: a.Performance(ctx, loc.ID, RangeAll),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("location summaries: %w", err)
	}
	return summaries, nil
}

// Utility method for monitoring
func (a *Analytics) Stats() map[string]any {
	return map[string]any{
		"locations":  len(a.store.Locations()),
		"customers":  len(a.store.Customers()),
		"orders":     len(a.store.Orders()),
		"started_at": a.startedAt,
		"uptime":     a.clock.Now().Sub(a.startedAt).String(),
	}
}
