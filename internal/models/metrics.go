package models

import "time"

type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

type ChannelCount struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

// CustomerSpend is one row of the top customers ranking. Customer is nil
// when the id does not resolve to a known customer.
type CustomerSpend struct {
	CustomerID string    `json:"customer_id"`
	Customer   *Customer `json:"customer"`
	Spend      float64   `json:"spend"`
	OrderCount int       `json:"order_count"`
}

type DateRevenue struct {
	Label   string    `json:"label"`
	Date    time.Time `json:"date"`
	Revenue float64   `json:"revenue"`
}

type LocationRevenue struct {
	LocationID string  `json:"location_id"`
	Name       string  `json:"name"`
	Revenue    float64 `json:"revenue"`
	Orders     int     `json:"orders"`
}

type ServerRevenue struct {
	Server  string  `json:"server"`
	Revenue float64 `json:"revenue"`
	Orders  int     `json:"orders"`
}

// MonthRevenue is one calendar month's takings. Month is the first day of
// the month in the order dates' location.
type MonthRevenue struct {
	Label   string    `json:"label"`
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
	Orders  int       `json:"orders"`
}

type PerformanceMetrics struct {
	TotalRevenue        float64           `json:"total_revenue"`
	TotalOrders         int               `json:"total_orders"`
	AvgOrderValue       float64           `json:"avg_order_value"`
	TotalTips           float64           `json:"total_tips"`
	AvgTipPercent       float64           `json:"avg_tip_percent"`
	ChannelBreakdown    map[string]int    `json:"channel_breakdown"`
	Channels            []ChannelCount    `json:"channels"`
	TopItems            []ItemCount       `json:"top_items"`
	TopCustomers        []CustomerSpend   `json:"top_customers"`
	RecentOrders        []Order           `json:"recent_orders"`
	RevenueByDate       []DateRevenue     `json:"revenue_by_date"`
	LocationPerformance []LocationRevenue `json:"location_performance"`
	ServerPerformance   []ServerRevenue   `json:"server_performance"`
	MonthlyRevenue      []MonthRevenue    `json:"monthly_revenue"`
	TotalCustomers      int               `json:"total_customers"`
	LoyaltyMembers      int               `json:"loyalty_members"`
}

type ChannelShare struct {
	Channel string `json:"channel"`
	Count   int    `json:"count"`
	Percent string `json:"percent"`
}

type CustomerMetrics struct {
	Customer           *Customer      `json:"customer"`
	Orders             []Order        `json:"orders"`
	LifetimeSpend      float64        `json:"lifetime_spend"`
	AvgSpend           float64        `json:"avg_spend"`
	AvgTipPercent      float64        `json:"avg_tip_percent"`
	FirstOrder         *Order         `json:"first_order"`
	LastOrder          *Order         `json:"last_order"`
	DaysSinceLastOrder *int           `json:"days_since_last_order"`
	MostOrderedItems   []ItemCount    `json:"most_ordered_items"`
	ChannelBreakdown   []ChannelShare `json:"channel_breakdown"`
}

// LocationSummary pairs a location with the metrics of its own scope.
type LocationSummary struct {
	Location    Location           `json:"location"`
	Performance PerformanceMetrics `json:"performance"`
}
