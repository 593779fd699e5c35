package services

import (
	"errors"
	"fmt"

	"restaurant-insights/internal/models"
)

// MetricCard names a summary card whose detail rows can be drilled into.
type MetricCard string

const (
	CardRevenue      MetricCard = "revenue"
	CardOrders       MetricCard = "orders"
	CardCustomers    MetricCard = "customers"
	CardItems        MetricCard = "items"
	CardTopCustomers MetricCard = "topCustomers"
)

// DrilldownKind tells the presentation which row shape a view carries.
type DrilldownKind string

const (
	KindOrders    DrilldownKind = "orders"
	KindCustomers DrilldownKind = "customers"
	KindItems     DrilldownKind = "items"
)

var ErrUnknownMetric = errors.New("unknown metric card")

type DrilldownView struct {
	Card      MetricCard             `json:"card"`
	Kind      DrilldownKind          `json:"kind"`
	Orders    []models.Order         `json:"orders"`
	Customers []models.CustomerSpend `json:"customers"`
	Items     []models.ItemCount     `json:"items"`
}

func ParseMetricCard(s string) (MetricCard, error) {
	switch card := MetricCard(s); card {
	case CardRevenue, CardOrders, CardCustomers, CardItems, CardTopCustomers:
		return card, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
	}
}

// Drilldown re-exposes the slice of perf that backs card. It performs no
// computation of its own.
func Drilldown(card MetricCard, perf models.PerformanceMetrics) (DrilldownView, error) {
	view := DrilldownView{Card: card}
	switch card {
	case CardRevenue, CardOrders:
		view.Kind = KindOrders
		view.Orders = nonNil(perf.RecentOrders)
	case CardCustomers, CardTopCustomers:
		view.Kind = KindCustomers
		view.Customers = nonNil(perf.TopCustomers)
	case CardItems:
		view.Kind = KindItems
		view.Items = nonNil(perf.TopItems)
	default:
		return DrilldownView{}, fmt.Errorf("%w: %q", ErrUnknownMetric, card)
	}
	return view, nil
}
