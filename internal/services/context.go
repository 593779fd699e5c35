package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"restaurant-insights/internal/models"
)

// SerializeContext renders the relations and the current metrics as the
// text snapshot handed to the assistant. Output depends only on its
// arguments.
func SerializeContext(locations []models.Location, customers []models.Customer, orders []models.Order, perf models.PerformanceMetrics) (string, error) {
	p := message.NewPrinter(language.AmericanEnglish)

	var b strings.Builder
	b.WriteString("DATA SNAPSHOT\n\n")

	sections := []struct {
		title string
		value any
	}{
		{"Locations", nonNil(locations)},
		{"Customers", nonNil(customers)},
		{"Orders", nonNil(orders)},
	}
	for _, s := range sections {
		data, err := json.MarshalIndent(s.value, "", "  ")
		if err != nil {
			return "", fmt.Errorf("marshal %s: %w", strings.ToLower(s.title), err)
		}
		fmt.Fprintf(&b, "%s:\n%s\n\n", s.title, data)
	}

	b.WriteString("CURRENT METRICS\n")
	b.WriteString(p.Sprintf("- Total revenue: $%.2f\n", perf.TotalRevenue))
	b.WriteString(p.Sprintf("- Total orders: %d\n", perf.TotalOrders))
	b.WriteString(p.Sprintf("- Total customers: %d\n", perf.TotalCustomers))
	b.WriteString(p.Sprintf("- Loyalty members: %d\n", perf.LoyaltyMembers))
	b.WriteString(p.Sprintf("- Average tip: %.1f%%\n", perf.AvgTipPercent))
	b.WriteString("- Top items:\n")
	if len(perf.TopItems) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, item := range perf.TopItems {
		b.WriteString(p.Sprintf("  %d. %s (%d orders)\n", i+1, item.Item, item.Count))
	}
	b.WriteString("- Server performance:\n")
	if len(perf.ServerPerformance) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, s := range perf.ServerPerformance {
		b.WriteString(p.Sprintf("  %s: $%.2f over %d orders\n", s.Server, s.Revenue, s.Orders))
	}

	return b.String(), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
