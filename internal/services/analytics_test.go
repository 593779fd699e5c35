package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"restaurant-insights/internal/store"
)

func newTestAnalytics(t testing.TB) *Analytics {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := FixedClock(time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC))
	return NewAnalytics(newTestStore(t), clock, logger)
}

func TestNewAnalytics(t *testing.T) {
	a := NewAnalytics(newTestStore(t), nil, nil)
	if a == nil {
		t.Fatal("NewAnalytics() returned nil")
	}
	if a.clock == nil {
		t.Error("clock should default to RealClock")
	}
	if a.logger == nil {
		t.Error("logger should be initialized")
	}
}

func TestAnalytics_Performance(t *testing.T) {
	a := newTestAnalytics(t)

	perf := a.Performance(context.Background(), "loc_001", RangeAll)
	if perf.TotalOrders != 6 || !approxEqual(perf.TotalRevenue, 372.40) {
		t.Errorf("loc_001 = %d orders / %v, want 6 / 372.40", perf.TotalOrders, perf.TotalRevenue)
	}

	perf = a.Performance(context.Background(), "loc_999", RangeAll)
	if perf.TotalOrders != 0 || perf.TotalCustomers != 0 || len(perf.TopItems) != 0 {
		t.Errorf("unknown scope should be empty, got %+v", perf)
	}
}

func TestAnalytics_Customers(t *testing.T) {
	a := newTestAnalytics(t)

	if got := a.Customers(store.AllLocations, ""); len(got) != 5 {
		t.Errorf("all customers = %d, want 5", len(got))
	}
	if got := a.Customers("loc_002", ""); len(got) != 2 {
		t.Errorf("loc_002 customers = %d, want 2", len(got))
	}
	got := a.Customers("loc_002", "kim")
	if len(got) != 1 || got[0].ID != "cust_004" {
		t.Errorf("search kim in loc_002 = %+v", got)
	}
	if got := a.Customers("loc_001", "kim"); len(got) != 0 {
		t.Errorf("search kim in loc_001 = %d results, want 0", len(got))
	}
}

func TestAnalytics_CustomerProfile(t *testing.T) {
	a := newTestAnalytics(t)

	m, err := a.CustomerProfile(context.Background(), "cust_001")
	if err != nil {
		t.Fatalf("CustomerProfile() error = %v", err)
	}
	if m.Customer == nil || m.Customer.FullName() != "Sarah Chen" {
		t.Errorf("Customer = %+v", m.Customer)
	}
	if len(m.Orders) != 4 || !approxEqual(m.AvgSpend, 53.70) {
		t.Errorf("orders/avg = %d/%v, want 4/53.70", len(m.Orders), m.AvgSpend)
	}
	if m.DaysSinceLastOrder == nil || *m.DaysSinceLastOrder != 5 {
		t.Errorf("DaysSinceLastOrder = %v, want 5", m.DaysSinceLastOrder)
	}

	if _, err := a.CustomerProfile(context.Background(), "cust_404"); !errors.Is(err, store.ErrCustomerNotFound) {
		t.Errorf("unknown customer error = %v, want ErrCustomerNotFound", err)
	}
}

func TestAnalytics_Drilldown(t *testing.T) {
	a := newTestAnalytics(t)

	view, err := a.Drilldown(context.Background(), "loc_001", RangeAll, CardItems)
	if err != nil {
		t.Fatalf("Drilldown() error = %v", err)
	}
	if view.Kind != KindItems || len(view.Items) == 0 {
		t.Errorf("view = %+v", view)
	}
	if view.Items[0].Item != "Pork Xiao Long Bao" {
		t.Errorf("top item = %s", view.Items[0].Item)
	}
}

func TestAnalytics_Context(t *testing.T) {
	a := newTestAnalytics(t)

	all, err := a.Context(context.Background(), store.AllLocations, RangeAll)
	if err != nil {
		t.Fatal(err)
	}
	scoped, err := a.Context(context.Background(), "loc_002", RangeAll)
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(all, "Total orders: 7") {
		t.Error("all-locations context should report 7 orders")
	}
	if !strings.Contains(scoped, "Total orders: 1") {
		t.Error("loc_002 context should report 1 order")
	}
	if !strings.Contains(scoped, `"id": "#17"`) {
		t.Error("context should embed every order regardless of scope")
	}
}

func TestAnalytics_LocationSummaries(t *testing.T) {
	a := newTestAnalytics(t)

	summaries, err := a.LocationSummaries(context.Background())
	if err != nil {
		t.Fatalf("LocationSummaries() error = %v", err)
	}

	want := []struct {
		id     string
		orders int
	}{
		{"loc_001", 6},
		{"loc_002", 1},
		{"loc_003", 0},
	}
	if len(summaries) != len(want) {
		t.Fatalf("summaries = %d, want %d", len(summaries), len(want))
	}
	for i, w := range want {
		if summaries[i].Location.ID != w.id || summaries[i].Performance.TotalOrders != w.orders {
			t.Errorf("summary %d = %s/%d, want %s/%d", i,
				summaries[i].Location.ID, summaries[i].Performance.TotalOrders, w.id, w.orders)
		}
	}
}

func TestAnalytics_LocationSummaries_Cancelled(t *testing.T) {
	a := newTestAnalytics(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := a.LocationSummaries(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("LocationSummaries() error = %v, want context.Canceled", err)
	}
}

func TestAnalytics_Stats(t *testing.T) {
	a := newTestAnalytics(t)
	stats := a.Stats()

	if stats["orders"] != 7 || stats["customers"] != 5 || stats["locations"] != 3 {
		t.Errorf("Stats() = %v", stats)
	}
}

func TestAnalytics_ConcurrentAccess(t *testing.T) {
	a := newTestAnalytics(t)

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- true }()

			_ = a.Performance(context.Background(), store.AllLocations, RangeAll)
			_, _ = a.CustomerProfile(context.Background(), "cust_001")
			_, _ = a.Context(context.Background(), "loc_001", RangeAll)
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}
