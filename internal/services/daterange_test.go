package services

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"restaurant-insights/internal/models"
	"restaurant-insights/internal/store"
)

func orderIDs(orders []models.Order) []string {
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	return ids
}

func TestParseDateRange(t *testing.T) {
	for _, r := range DateRanges() {
		got, err := ParseDateRange(string(r))
		if err != nil || got != r {
			t.Errorf("ParseDateRange(%q) = %q, %v", r, got, err)
		}
	}

	if got, err := ParseDateRange(""); err != nil || got != RangeAll {
		t.Errorf("ParseDateRange(\"\") = %q, %v, want all", got, err)
	}
	for _, s := range []string{"month", "Week", "7d"} {
		if _, err := ParseDateRange(s); !errors.Is(err, ErrUnknownRange) {
			t.Errorf("ParseDateRange(%q) error = %v, want ErrUnknownRange", s, err)
		}
	}
}

func TestDateRange_Filter(t *testing.T) {
	_, orders := newTestStore(t).Scope("loc_001")

	tests := []struct {
		rng  DateRange
		want []string
	}{
		{RangeAll, []string{"#17", "#23", "#31", "#45", "#64", "#52"}},
		{RangeRecentDay, []string{"#17"}},
		{RangePastDay, []string{"#17"}},
		{RangePastWeek, []string{"#17", "#23", "#64", "#52"}},
		{RangePastQuarter, []string{"#17", "#23", "#31", "#45", "#64", "#52"}},
		{RangePastYear, []string{"#17", "#23", "#31", "#45", "#64", "#52"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.rng), func(t *testing.T) {
			if diff := cmp.Diff(tt.want, orderIDs(tt.rng.Filter(orders))); diff != "" {
				t.Errorf("Filter() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDateRange_FilterAnchorsOnNewestOrder(t *testing.T) {
	newest := time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC)
	orders := []models.Order{
		{ID: "#1", Date: newest.AddDate(0, 0, -1)},
		{ID: "#2", Date: newest},
		{ID: "#3", Date: newest.AddDate(0, 0, -2)},
		{ID: "#4", Date: newest.AddDate(0, 0, -91)},
	}

	if diff := cmp.Diff([]string{"#1", "#2"}, orderIDs(RangePastDay.Filter(orders))); diff != "" {
		t.Errorf("past day mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"#1", "#2", "#3"}, orderIDs(RangePastQuarter.Filter(orders))); diff != "" {
		t.Errorf("past quarter mismatch (-want +got):\n%s", diff)
	}
	if got := RangePastWeek.Filter(nil); len(got) != 0 {
		t.Errorf("Filter(nil) = %v", got)
	}
}

func TestAnalytics_PerformanceInRange(t *testing.T) {
	a := newTestAnalytics(t)

	perf := a.Performance(t.Context(), "loc_001", RangePastWeek)
	if perf.TotalOrders != 4 || !approxEqual(perf.TotalRevenue, 254.83) {
		t.Errorf("loc_001 past week = %d orders / %v, want 4 / 254.83", perf.TotalOrders, perf.TotalRevenue)
	}
	if perf.TotalCustomers != 2 {
		t.Errorf("TotalCustomers = %d, the range should not narrow customers", perf.TotalCustomers)
	}

	perf = a.Performance(t.Context(), store.AllLocations, RangeRecentDay)
	if perf.TotalOrders != 1 || perf.RecentOrders[0].ID != "#17" {
		t.Errorf("most recent day = %+v", perf.RecentOrders)
	}
}
