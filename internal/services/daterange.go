package services

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"restaurant-insights/internal/models"
)

// DateRange is a preset window over order dates. Windows are anchored on
// the newest order they are applied to, not on the wall clock.
type DateRange string

const (
	RangeAll         DateRange = "all"
	RangeRecentDay   DateRange = "recent"
	RangePastDay     DateRange = "day"
	RangePastWeek    DateRange = "week"
	RangePastQuarter DateRange = "quarter"
	RangePastYear    DateRange = "year"
)

var ErrUnknownRange = errors.New("unknown date range")

var rangeLookback = map[DateRange]time.Duration{
	RangePastDay:     24 * time.Hour,
	RangePastWeek:    7 * 24 * time.Hour,
	RangePastQuarter: 90 * 24 * time.Hour,
	RangePastYear:    365 * 24 * time.Hour,
}

var rangeLabels = map[DateRange]string{
	RangeAll:         "All available",
	RangeRecentDay:   "Most recent day",
	RangePastDay:     "Past day",
	RangePastWeek:    "Past week",
	RangePastQuarter: "Past quarter",
	RangePastYear:    "Past year",
}

// DateRanges lists the presets in display order.
func DateRanges() []DateRange {
	return []DateRange{RangeAll, RangeRecentDay, RangePastDay, RangePastWeek, RangePastQuarter, RangePastYear}
}

// ParseDateRange accepts a preset name. The empty string means RangeAll.
func ParseDateRange(s string) (DateRange, error) {
	if s == "" {
		return RangeAll, nil
	}
	r := DateRange(s)
	if _, ok := rangeLabels[r]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRange, s)
	}
	return r, nil
}

func (r DateRange) Label() string {
	if l, ok := rangeLabels[r]; ok {
		return l
	}
	return string(r)
}

// Filter keeps the orders dated on or after the window's cutoff, in their
// original order. The cutoff is the newest order date minus the lookback;
// RangeRecentDay keeps only the newest date.
func (r DateRange) Filter(orders []models.Order) []models.Order {
	if r == RangeAll || r == "" || len(orders) == 0 {
		return orders
	}

	newest := slices.MaxFunc(orders, func(a, b models.Order) int {
		return a.Date.Compare(b.Date)
	}).Date
	cutoff := newest.Add(-rangeLookback[r])

	kept := make([]models.Order, 0, len(orders))
	for _, o := range orders {
		if !o.Date.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	return kept
}
