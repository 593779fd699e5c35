//go:generate templ generate

package templates

import (
	"encoding/json"
	"math"
	"strconv"

	"restaurant-insights/internal/assistant"
	"restaurant-insights/internal/models"
	"restaurant-insights/internal/services"
	"restaurant-insights/internal/session"
)

// Page is everything the dashboard shell needs for its first render.
type Page struct {
	Session   session.Snapshot
	Locations []models.Location
	Overview  Overview
	Customers []models.Customer
	Messages  []assistant.Message
	Pending   bool
}

// Overview is the performance section for one scope and date range.
type Overview struct {
	Scope         string
	Range         services.DateRange
	Metrics       models.PerformanceMetrics
	CustomerNames map[string]string
	LocationNames map[string]string
}

// InitialSignals are the client-side signals seeded on page load.
func InitialSignals(s session.Snapshot) map[string]any {
	rng := s.Range
	if rng == "" {
		rng = services.RangeAll
	}
	return map[string]any{
		"location":         s.Scope,
		"range":            string(rng),
		"selectedCustomer": s.SelectedCustomer,
		"activeTab":        string(s.ActiveTab),
		"search":           "",
		"question":         "",
		"querying":         false,
	}
}

func signalsJSON(s session.Snapshot) (string, error) {
	b, err := json.Marshal(InitialSignals(s))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

type tab struct {
	Tab   session.Tab
	Label string
}

var tabs = []tab{
	{session.TabOverview, "Overview"},
	{session.TabCustomers, "Customers"},
	{session.TabAssistant, "Ask the data"},
}

var drilldownTitles = map[services.MetricCard]string{
	services.CardRevenue:      "Revenue: recent orders",
	services.CardOrders:       "Recent orders",
	services.CardCustomers:    "Customers by spend",
	services.CardTopCustomers: "Top customers",
	services.CardItems:        "Top items",
}

// bar is one row of a revenue chart. Width is relative to the peak row.
type bar struct {
	Label   string
	Revenue float64
	Width   int
}

func scaleBars(bars []bar) []bar {
	var peak float64
	for _, b := range bars {
		peak = max(peak, b.Revenue)
	}
	if peak <= 0 {
		return bars
	}
	for i := range bars {
		bars[i].Width = int(math.Round(bars[i].Revenue / peak * 100))
	}
	return bars
}

func dateBars(days []models.DateRevenue) []bar {
	bars := make([]bar, 0, len(days))
	for _, d := range days {
		bars = append(bars, bar{Label: d.Label, Revenue: d.Revenue})
	}
	return scaleBars(bars)
}

func monthBars(months []models.MonthRevenue) []bar {
	bars := make([]bar, 0, len(months))
	for _, m := range months {
		bars = append(bars, bar{Label: m.Label, Revenue: m.Revenue})
	}
	return scaleBars(bars)
}

func topItemLabel(items []models.ItemCount) string {
	if len(items) == 0 {
		return "N/A"
	}
	return items[0].Item
}

func topCustomerLabel(customers []models.CustomerSpend, names map[string]string) string {
	if len(customers) == 0 {
		return "N/A"
	}
	return customerName(customers[0], names)
}

// customerName prefers the resolved record, then the global name index.
func customerName(c models.CustomerSpend, names map[string]string) string {
	if c.Customer != nil {
		return c.Customer.FullName()
	}
	if n, ok := names[c.CustomerID]; ok {
		return n
	}
	return "N/A"
}

func lookup(m map[string]string, key string) string {
	if v, ok := m[key]; ok {
		return v
	}
	return "N/A"
}

func profileNames(c *models.Customer) map[string]string {
	if c == nil {
		return nil
	}
	return map[string]string{c.ID: c.FullName()}
}

func daysLabel(days *int) string {
	if days == nil {
		return "N/A"
	}
	return strconv.Itoa(*days)
}
