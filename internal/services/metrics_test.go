package services

import (
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"restaurant-insights/internal/models"
	"restaurant-insights/internal/store"
)

const epsilon = 1e-9

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

func newTestStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Default()
	if err != nil {
		t.Fatalf("store.Default() error = %v", err)
	}
	return s
}

func scopedPerformance(t testing.TB, s *store.Store, scope string) models.PerformanceMetrics {
	t.Helper()
	customers, orders := s.Scope(scope)
	return Performance(customers, orders, s)
}

func TestPerformance_ScopeLocation(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, "loc_001")

	if !approxEqual(perf.TotalRevenue, 372.40) {
		t.Errorf("TotalRevenue = %v, want 372.40", perf.TotalRevenue)
	}
	if perf.TotalOrders != 6 {
		t.Errorf("TotalOrders = %d, want 6", perf.TotalOrders)
	}
	if !approxEqual(perf.AvgOrderValue, 372.40/6) {
		t.Errorf("AvgOrderValue = %v, want %v", perf.AvgOrderValue, 372.40/6)
	}
	if perf.AvgOrderValue < 62.066 || perf.AvgOrderValue > 62.067 {
		t.Errorf("AvgOrderValue = %v, want ~62.0666", perf.AvgOrderValue)
	}
	if !approxEqual(perf.AvgTipPercent, 106.0/6) {
		t.Errorf("AvgTipPercent = %v, want %v", perf.AvgTipPercent, 106.0/6)
	}
	if perf.TotalCustomers != 2 {
		t.Errorf("TotalCustomers = %d, want 2", perf.TotalCustomers)
	}
	if perf.LoyaltyMembers != 2 {
		t.Errorf("LoyaltyMembers = %d, want 2", perf.LoyaltyMembers)
	}
}

func TestPerformance_AllLocations(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, store.AllLocations)

	if !approxEqual(perf.TotalRevenue, 427.50) {
		t.Errorf("TotalRevenue = %v, want 427.50", perf.TotalRevenue)
	}
	if perf.TotalOrders != 7 {
		t.Errorf("TotalOrders = %d, want 7", perf.TotalOrders)
	}
	if !approxEqual(perf.AvgTipPercent, 18) {
		t.Errorf("AvgTipPercent = %v, want 18", perf.AvgTipPercent)
	}
	if perf.TotalCustomers != 5 || perf.LoyaltyMembers != 3 {
		t.Errorf("customers = %d/%d, want 5/3", perf.TotalCustomers, perf.LoyaltyMembers)
	}

	wantChannels := map[string]int{"Dine-in": 4, "Pickup": 2, "Delivery": 1}
	if diff := cmp.Diff(wantChannels, perf.ChannelBreakdown); diff != "" {
		t.Errorf("ChannelBreakdown mismatch (-want +got):\n%s", diff)
	}
	wantOrder := []models.ChannelCount{
		{Channel: "Dine-in", Count: 4},
		{Channel: "Pickup", Count: 2},
		{Channel: "Delivery", Count: 1},
	}
	if diff := cmp.Diff(wantOrder, perf.Channels); diff != "" {
		t.Errorf("Channels mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_TopItems(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, store.AllLocations)

	want := []models.ItemCount{
		{Item: "Pork Xiao Long Bao", Count: 3},
		{Item: "Dan Dan Noodles", Count: 2},
		{Item: "Spicy Wontons", Count: 2},
		{Item: "Chicken Pot Stickers", Count: 2},
		{Item: "Beef Noodle Soup", Count: 2},
	}
	if diff := cmp.Diff(want, perf.TopItems); diff != "" {
		t.Errorf("TopItems mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_TopCustomers(t *testing.T) {
	s := newTestStore(t)

	t.Run("all locations", func(t *testing.T) {
		perf := scopedPerformance(t, s, store.AllLocations)
		wantIDs := []string{"cust_001", "cust_004", "cust_002", "cust_003"}
		wantSpend := []float64{214.80, 95.20, 62.40, 55.10}
		wantCounts := []int{4, 1, 1, 1}

		if len(perf.TopCustomers) != len(wantIDs) {
			t.Fatalf("TopCustomers = %d rows, want %d", len(perf.TopCustomers), len(wantIDs))
		}
		for i, row := range perf.TopCustomers {
			if row.CustomerID != wantIDs[i] {
				t.Errorf("row %d id = %s, want %s", i, row.CustomerID, wantIDs[i])
			}
			if !approxEqual(row.Spend, wantSpend[i]) {
				t.Errorf("row %d spend = %v, want %v", i, row.Spend, wantSpend[i])
			}
			if row.OrderCount != wantCounts[i] {
				t.Errorf("row %d orders = %d, want %d", i, row.OrderCount, wantCounts[i])
			}
			if row.Customer == nil || row.Customer.ID != row.CustomerID {
				t.Errorf("row %d customer not resolved: %+v", i, row.Customer)
			}
		}
	})

	t.Run("customer outside scope is unresolved", func(t *testing.T) {
		perf := scopedPerformance(t, s, "loc_001")
		var found bool
		for _, row := range perf.TopCustomers {
			if row.CustomerID == "cust_004" {
				found = true
				if row.Customer != nil {
					t.Errorf("cust_004 lives at loc_002 and should not resolve in loc_001 scope")
				}
			}
		}
		if !found {
			t.Error("cust_004 ordered at loc_001 and should be ranked")
		}
	})
}

func TestPerformance_RecentOrders(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, store.AllLocations)

	want := []string{"#17", "#29", "#64", "#52", "#23", "#31", "#45"}
	if len(perf.RecentOrders) != len(want) {
		t.Fatalf("RecentOrders = %d, want %d", len(perf.RecentOrders), len(want))
	}
	for i, id := range want {
		if perf.RecentOrders[i].ID != id {
			t.Errorf("RecentOrders[%d] = %s, want %s", i, perf.RecentOrders[i].ID, id)
		}
	}
}

func TestPerformance_RecentOrdersLimit(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	orders := make([]models.Order, 15)
	for i := range orders {
		orders[i] = models.Order{ID: string(rune('a' + i)), Amount: 1, Date: base.AddDate(0, 0, i)}
	}

	perf := Performance(nil, orders, newTestStore(t))
	if len(perf.RecentOrders) != recentOrdersLimit {
		t.Fatalf("RecentOrders = %d, want %d", len(perf.RecentOrders), recentOrdersLimit)
	}
	for i := 1; i < len(perf.RecentOrders); i++ {
		if perf.RecentOrders[i].Date.After(perf.RecentOrders[i-1].Date) {
			t.Errorf("RecentOrders not sorted newest first at %d", i)
		}
	}
	if perf.RecentOrders[0].ID != "o" {
		t.Errorf("newest order = %s, want o", perf.RecentOrders[0].ID)
	}
}

func TestPerformance_RevenueByDate(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, store.AllLocations)

	want := []struct {
		label   string
		revenue float64
	}{
		{"10/15/2024", 73.55},
		{"10/28/2024", 44.02},
		{"11/8/2024", 48.36},
		{"11/10/2024", 95.20},
		{"11/12/2024", 62.40},
		{"11/14/2024", 55.10},
		{"11/15/2024", 48.87},
	}
	if len(perf.RevenueByDate) != len(want) {
		t.Fatalf("RevenueByDate = %d buckets, want %d", len(perf.RevenueByDate), len(want))
	}
	for i, w := range want {
		got := perf.RevenueByDate[i]
		if got.Label != w.label || !approxEqual(got.Revenue, w.revenue) {
			t.Errorf("bucket %d = (%s, %v), want (%s, %v)", i, got.Label, got.Revenue, w.label, w.revenue)
		}
	}
}

func TestPerformance_RevenueByDateCollapsesSameDay(t *testing.T) {
	day := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "#1", Amount: 10, Date: day.Add(18 * time.Hour)},
		{ID: "#2", Amount: 5, Date: day.AddDate(0, 0, -1)},
		{ID: "#3", Amount: 7, Date: day},
	}

	perf := Performance(nil, orders, newTestStore(t))
	if len(perf.RevenueByDate) != 2 {
		t.Fatalf("RevenueByDate = %d buckets, want 2", len(perf.RevenueByDate))
	}
	if perf.RevenueByDate[0].Label != "3/4/2024" {
		t.Errorf("first bucket = %s, want 3/4/2024", perf.RevenueByDate[0].Label)
	}
	if perf.RevenueByDate[1].Label != "3/5/2024" || !approxEqual(perf.RevenueByDate[1].Revenue, 17) {
		t.Errorf("second bucket = %+v, want 3/5/2024 with 17", perf.RevenueByDate[1])
	}
}

func TestPerformance_LocationPerformance(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, store.AllLocations)

	want := []models.LocationRevenue{
		{LocationID: "loc_001", Name: "Dough Zone Bellevue", Revenue: 372.40, Orders: 6},
		{LocationID: "loc_002", Name: "Dough Zone Capitol Hill", Revenue: 55.10, Orders: 1},
	}
	opt := cmp.Comparer(approxEqual)
	if diff := cmp.Diff(want, perf.LocationPerformance, opt); diff != "" {
		t.Errorf("LocationPerformance mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_ServerPerformance(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, "loc_001")

	want := []models.ServerRevenue{
		{Server: "Daniel W.", Revenue: 168.75, Orders: 2},
		{Server: "Kevin L.", Revenue: 110.76, Orders: 2},
		{Server: "Jessica M.", Revenue: 92.89, Orders: 2},
	}
	opt := cmp.Comparer(approxEqual)
	if diff := cmp.Diff(want, perf.ServerPerformance, opt); diff != "" {
		t.Errorf("ServerPerformance mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_ServerPerformanceTies(t *testing.T) {
	orders := []models.Order{
		{ID: "#1", Amount: 10, Server: "B"},
		{ID: "#2", Amount: 10, Server: "A"},
		{ID: "#3", Amount: 4, Server: "C"},
	}

	perf := Performance(nil, orders, newTestStore(t))
	got := make([]string, len(perf.ServerPerformance))
	for i, r := range perf.ServerPerformance {
		got[i] = r.Server
	}
	if diff := cmp.Diff([]string{"B", "A", "C"}, got); diff != "" {
		t.Errorf("server order mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_MonthlyRevenue(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, "loc_001")

	want := []models.MonthRevenue{
		{Label: "Oct 2024", Month: time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC), Revenue: 117.57, Orders: 2},
		{Label: "Nov 2024", Month: time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC), Revenue: 254.83, Orders: 4},
	}
	opt := cmp.Comparer(approxEqual)
	if diff := cmp.Diff(want, perf.MonthlyRevenue, opt); diff != "" {
		t.Errorf("MonthlyRevenue mismatch (-want +got):\n%s", diff)
	}
}

func TestPerformance_MonthlyRevenueSpansYears(t *testing.T) {
	orders := []models.Order{
		{ID: "#1", Amount: 3, Date: time.Date(2025, 1, 9, 0, 0, 0, 0, time.UTC)},
		{ID: "#2", Amount: 5, Date: time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)},
		{ID: "#3", Amount: 2, Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)},
	}

	perf := Performance(nil, orders, newTestStore(t))
	if len(perf.MonthlyRevenue) != 2 {
		t.Fatalf("MonthlyRevenue = %d buckets, want 2", len(perf.MonthlyRevenue))
	}
	if perf.MonthlyRevenue[0].Label != "Jan 2024" || !approxEqual(perf.MonthlyRevenue[1].Revenue, 5) {
		t.Errorf("MonthlyRevenue = %+v", perf.MonthlyRevenue)
	}
}

func TestPerformance_DropsUnresolvedLocations(t *testing.T) {
	orders := []models.Order{
		{ID: "#1", Amount: 10, Location: "loc_001"},
		{ID: "#2", Amount: 20, Location: "loc_gone"},
	}

	perf := Performance(nil, orders, newTestStore(t))
	if len(perf.LocationPerformance) != 1 || perf.LocationPerformance[0].LocationID != "loc_001" {
		t.Errorf("LocationPerformance = %+v, want only loc_001", perf.LocationPerformance)
	}
	if !approxEqual(perf.TotalRevenue, 30) {
		t.Errorf("TotalRevenue = %v, dropped locations still count toward revenue", perf.TotalRevenue)
	}
}

func TestPerformance_UnknownScope(t *testing.T) {
	s := newTestStore(t)
	perf := scopedPerformance(t, s, "loc_999")

	if perf.TotalOrders != 0 || perf.TotalCustomers != 0 {
		t.Errorf("orders/customers = %d/%d, want 0/0", perf.TotalOrders, perf.TotalCustomers)
	}
	if perf.AvgOrderValue != 0 || perf.AvgTipPercent != 0 {
		t.Errorf("averages = %v/%v, want 0/0", perf.AvgOrderValue, perf.AvgTipPercent)
	}
	if math.IsNaN(perf.AvgOrderValue) || math.IsNaN(perf.AvgTipPercent) {
		t.Error("averages must not be NaN")
	}
	if len(perf.TopItems) != 0 || len(perf.TopCustomers) != 0 || len(perf.RecentOrders) != 0 {
		t.Error("ranked lists should be empty")
	}
	if len(perf.ChannelBreakdown) != 0 || len(perf.RevenueByDate) != 0 || len(perf.LocationPerformance) != 0 {
		t.Error("grouped outputs should be empty")
	}
	if len(perf.ServerPerformance) != 0 || len(perf.MonthlyRevenue) != 0 {
		t.Error("server and monthly outputs should be empty")
	}
}

func TestPerformance_Properties(t *testing.T) {
	s := newTestStore(t)
	scopes := []string{store.AllLocations, "loc_001", "loc_002", "loc_003", "loc_999"}

	for _, scope := range scopes {
		t.Run(scope, func(t *testing.T) {
			customers, orders := s.Scope(scope)
			perf := Performance(customers, orders, s)

			sum := 0
			for _, n := range perf.ChannelBreakdown {
				sum += n
			}
			if sum != perf.TotalOrders {
				t.Errorf("channel counts sum to %d, want %d", sum, perf.TotalOrders)
			}

			distinct := make(map[string]struct{})
			for _, o := range orders {
				for _, item := range o.Items {
					distinct[item] = struct{}{}
				}
			}
			if len(perf.TopItems) > 5 || len(perf.TopItems) > len(distinct) {
				t.Errorf("TopItems length %d exceeds bounds (distinct %d)", len(perf.TopItems), len(distinct))
			}
			for i := 1; i < len(perf.TopItems); i++ {
				if perf.TopItems[i].Count > perf.TopItems[i-1].Count {
					t.Errorf("TopItems not sorted at %d", i)
				}
			}

			for _, row := range perf.TopCustomers {
				spend := 0.0
				for _, o := range CustomerProfile(row.CustomerID, s.Orders(), FixedClock(time.Now())).Orders {
					if scope == store.AllLocations || o.Location == scope {
						spend += o.Amount
					}
				}
				if !approxEqual(spend, row.Spend) {
					t.Errorf("customer %s spend = %v, lifetime in scope = %v", row.CustomerID, row.Spend, spend)
				}
			}
		})
	}
}

func TestPerformance_Idempotent(t *testing.T) {
	s := newTestStore(t)
	for _, scope := range []string{store.AllLocations, "loc_001", "loc_999"} {
		first := scopedPerformance(t, s, scope)
		second := scopedPerformance(t, s, scope)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Errorf("scope %s: repeated Performance() differs (-first +second):\n%s", scope, diff)
		}
	}
}

func TestCustomerProfile(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 11, 20, 12, 0, 0, 0, time.UTC)

	m := CustomerProfile("cust_001", s.Orders(), FixedClock(now))

	if len(m.Orders) != 4 {
		t.Fatalf("Orders = %d, want 4", len(m.Orders))
	}
	if !approxEqual(m.LifetimeSpend, 214.80) {
		t.Errorf("LifetimeSpend = %v, want 214.80", m.LifetimeSpend)
	}
	if !approxEqual(m.AvgSpend, 53.70) {
		t.Errorf("AvgSpend = %v, want 53.70", m.AvgSpend)
	}
	if !approxEqual(m.AvgTipPercent, 17.75) {
		t.Errorf("AvgTipPercent = %v, want 17.75", m.AvgTipPercent)
	}
	if m.FirstOrder == nil || m.FirstOrder.ID != "#45" {
		t.Errorf("FirstOrder = %+v, want #45", m.FirstOrder)
	}
	if m.LastOrder == nil || m.LastOrder.ID != "#17" {
		t.Errorf("LastOrder = %+v, want #17", m.LastOrder)
	}
	if m.DaysSinceLastOrder == nil || *m.DaysSinceLastOrder != 5 {
		t.Errorf("DaysSinceLastOrder = %v, want 5", m.DaysSinceLastOrder)
	}

	wantItems := []models.ItemCount{
		{Item: "Dan Dan Noodles", Count: 2},
		{Item: "Spicy Wontons", Count: 2},
		{Item: "Pork Xiao Long Bao", Count: 1},
	}
	if diff := cmp.Diff(wantItems, m.MostOrderedItems); diff != "" {
		t.Errorf("MostOrderedItems mismatch (-want +got):\n%s", diff)
	}

	wantChannels := []models.ChannelShare{
		{Channel: "Dine-in", Count: 2, Percent: "50"},
		{Channel: "Pickup", Count: 1, Percent: "25"},
		{Channel: "Delivery", Count: 1, Percent: "25"},
	}
	if diff := cmp.Diff(wantChannels, m.ChannelBreakdown); diff != "" {
		t.Errorf("ChannelBreakdown mismatch (-want +got):\n%s", diff)
	}
}

func TestCustomerProfile_IgnoresScope(t *testing.T) {
	s := newTestStore(t)
	now := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)

	// cust_004 lives at loc_002 but ordered at loc_001.
	m := CustomerProfile("cust_004", s.Orders(), FixedClock(now))
	if len(m.Orders) != 1 || m.Orders[0].Location != "loc_001" {
		t.Errorf("Orders = %+v, want the loc_001 order", m.Orders)
	}
}

func TestCustomerProfile_NoOrders(t *testing.T) {
	s := newTestStore(t)
	m := CustomerProfile("cust_005", s.Orders(), FixedClock(time.Now()))

	if len(m.Orders) != 0 {
		t.Errorf("Orders = %d, want 0", len(m.Orders))
	}
	if m.AvgSpend != 0 || m.AvgTipPercent != 0 || m.LifetimeSpend != 0 {
		t.Errorf("spend metrics = %v/%v/%v, want zeros", m.LifetimeSpend, m.AvgSpend, m.AvgTipPercent)
	}
	if m.FirstOrder != nil || m.LastOrder != nil || m.DaysSinceLastOrder != nil {
		t.Error("first/last/days should be nil without orders")
	}
}

func TestCustomerProfile_PercentagesNeedNotSumTo100(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "#1", CustomerID: "c", Amount: 1, Type: "Dine-in", Date: day},
		{ID: "#2", CustomerID: "c", Amount: 1, Type: "Pickup", Date: day},
		{ID: "#3", CustomerID: "c", Amount: 1, Type: "Delivery", Date: day},
	}

	m := CustomerProfile("c", orders, FixedClock(day))
	for _, c := range m.ChannelBreakdown {
		if c.Percent != "33" {
			t.Errorf("%s percent = %s, want 33", c.Channel, c.Percent)
		}
	}
	if *m.DaysSinceLastOrder != 0 {
		t.Errorf("DaysSinceLastOrder = %d, want 0", *m.DaysSinceLastOrder)
	}
}

func TestCustomerProfile_DaysSinceLastOrderFollowsClock(t *testing.T) {
	s := newTestStore(t)
	tests := []struct {
		now  time.Time
		want int
	}{
		{time.Date(2024, 11, 15, 0, 0, 0, 0, time.UTC), 0},
		{time.Date(2024, 11, 15, 23, 59, 0, 0, time.UTC), 0},
		{time.Date(2024, 11, 16, 0, 0, 0, 0, time.UTC), 1},
		{time.Date(2025, 11, 15, 0, 0, 0, 0, time.UTC), 365},
	}

	for _, tt := range tests {
		m := CustomerProfile("cust_001", s.Orders(), FixedClock(tt.now))
		if got := *m.DaysSinceLastOrder; got != tt.want {
			t.Errorf("now=%v: DaysSinceLastOrder = %d, want %d", tt.now, got, tt.want)
		}
	}
}

func BenchmarkPerformance(b *testing.B) {
	s := newTestStore(b)
	customers, orders := s.Scope(store.AllLocations)

	b.ResetTimer()
	for b.Loop() {
		_ = Performance(customers, orders, s)
	}
}
