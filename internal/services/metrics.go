package services

import (
	"math"
	"slices"
	"strconv"
	"time"

	"restaurant-insights/internal/models"
)

const (
	topItemsLimit         = 5
	topCustomersLimit     = 5
	recentOrdersLimit     = 10
	customerTopItemsLimit = 3

	// DateLabelLayout is the short US rendering used to bucket revenue by
	// day. Dates that render to the same label share a bucket.
	DateLabelLayout = "1/2/2006"

	MonthLabelLayout = "Jan 2006"
)

// LocationResolver maps a location id to its display name.
type LocationResolver interface {
	LocationName(id string) (string, bool)
}

func orderItems(o models.Order) []string  { return o.Items }
func orderAmount(o models.Order) float64  { return o.Amount }
func orderCustomer(o models.Order) string { return o.CustomerID }
func orderServer(o models.Order) string   { return o.Server }
func one[T any](T) float64                { return 1 }

// Performance computes the global metrics of one scope. customers and
// orders are the scoped relations; locations resolves order locations to
// names. Customers in the top spender ranking are resolved within the
// scoped customers only, so a spender whose home location lies outside the
// scope is reported with a nil Customer.
func Performance(customers []models.Customer, orders []models.Order, locations LocationResolver) models.PerformanceMetrics {
	m := models.PerformanceMetrics{
		TotalOrders:      len(orders),
		TotalCustomers:   len(customers),
		ChannelBreakdown: make(map[string]int),
	}

	tipPercentSum := 0
	for _, o := range orders {
		m.TotalRevenue += o.Amount
		m.TotalTips += o.Tip
		tipPercentSum += o.TipPercent
	}

	m.Channels = countChannels(orders)
	for _, c := range m.Channels {
		m.ChannelBreakdown[c.Channel] = c.Count
	}

	if m.TotalOrders > 0 {
		m.AvgOrderValue = m.TotalRevenue / float64(m.TotalOrders)
		m.AvgTipPercent = float64(tipPercentSum) / float64(m.TotalOrders)
	}

	for _, c := range customers {
		if c.LoyaltyStatus == models.LoyaltyActive {
			m.LoyaltyMembers++
		}
	}

	m.TopItems = topItems(orders, topItemsLimit)
	m.TopCustomers = topCustomers(customers, orders)
	m.RecentOrders = recentOrders(orders)
	m.RevenueByDate = revenueByDate(orders)
	m.LocationPerformance = locationPerformance(orders, locations)
	m.ServerPerformance = serverPerformance(orders)
	m.MonthlyRevenue = monthlyRevenue(orders)

	return m
}

func topItems(orders []models.Order, n int) []models.ItemCount {
	ranked := RankEach(orders, orderItems, one[models.Order], n)
	items := make([]models.ItemCount, len(ranked))
	for i, r := range ranked {
		items[i] = models.ItemCount{Item: r.Key, Count: r.Count}
	}
	return items
}

func topCustomers(customers []models.Customer, orders []models.Order) []models.CustomerSpend {
	byID := make(map[string]int, len(customers))
	for i, c := range customers {
		byID[c.ID] = i
	}

	ranked := Rank(orders, orderCustomer, orderAmount, topCustomersLimit)
	rows := make([]models.CustomerSpend, len(ranked))
	for i, r := range ranked {
		row := models.CustomerSpend{
			CustomerID: r.Key,
			Spend:      r.Value,
			OrderCount: r.Count,
		}
		if idx, ok := byID[r.Key]; ok {
			c := customers[idx]
			row.Customer = &c
		}
		rows[i] = row
	}
	return rows
}

// recentOrders sorts newest first. Orders on the same date come back in an
// unspecified order; the sort is not stable.
func recentOrders(orders []models.Order) []models.Order {
	sorted := slices.Clone(orders)
	if sorted == nil {
		sorted = make([]models.Order, 0)
	}
	slices.SortFunc(sorted, func(a, b models.Order) int {
		return b.Date.Compare(a.Date)
	})
	if len(sorted) > recentOrdersLimit {
		sorted = sorted[:recentOrdersLimit]
	}
	return sorted
}

func revenueByDate(orders []models.Order) []models.DateRevenue {
	index := make(map[string]int)
	buckets := make([]models.DateRevenue, 0)
	for _, o := range orders {
		label := o.Date.Format(DateLabelLayout)
		i, ok := index[label]
		if !ok {
			i = len(buckets)
			index[label] = i
			buckets = append(buckets, models.DateRevenue{Label: label, Date: o.Date})
		}
		buckets[i].Revenue += o.Amount
	}
	slices.SortStableFunc(buckets, func(a, b models.DateRevenue) int {
		return a.Date.Compare(b.Date)
	})
	return buckets
}

func locationPerformance(orders []models.Order, locations LocationResolver) []models.LocationRevenue {
	resolved := make([]models.Order, 0, len(orders))
	names := make(map[string]string)
	ids := make(map[string]string)
	for _, o := range orders {
		name, ok := locations.LocationName(o.Location)
		if !ok {
			continue
		}
		names[o.Location] = name
		if _, seen := ids[name]; !seen {
			ids[name] = o.Location
		}
		resolved = append(resolved, o)
	}

	ranked := Rank(resolved, func(o models.Order) string { return names[o.Location] }, orderAmount, 0)
	rows := make([]models.LocationRevenue, len(ranked))
	for i, r := range ranked {
		rows[i] = models.LocationRevenue{
			LocationID: ids[r.Key],
			Name:       r.Key,
			Revenue:    r.Value,
			Orders:     r.Count,
		}
	}
	return rows
}

// serverPerformance ranks every server by revenue, ties in first-seen order.
func serverPerformance(orders []models.Order) []models.ServerRevenue {
	ranked := Rank(orders, orderServer, orderAmount, 0)
	rows := make([]models.ServerRevenue, len(ranked))
	for i, r := range ranked {
		rows[i] = models.ServerRevenue{Server: r.Key, Revenue: r.Value, Orders: r.Count}
	}
	return rows
}

// monthlyRevenue buckets orders by calendar month, oldest month first.
func monthlyRevenue(orders []models.Order) []models.MonthRevenue {
	type monthKey struct {
		year  int
		month time.Month
	}
	index := make(map[monthKey]int)
	buckets := make([]models.MonthRevenue, 0)
	for _, o := range orders {
		key := monthKey{o.Date.Year(), o.Date.Month()}
		i, ok := index[key]
		if !ok {
			month := time.Date(key.year, key.month, 1, 0, 0, 0, 0, o.Date.Location())
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, models.MonthRevenue{Label: month.Format(MonthLabelLayout), Month: month})
		}
		buckets[i].Revenue += o.Amount
		buckets[i].Orders++
	}
	slices.SortFunc(buckets, func(a, b models.MonthRevenue) int {
		return a.Month.Compare(b.Month)
	})
	return buckets
}

// CustomerProfile computes the metrics of one customer over the full,
// unscoped order relation. DaysSinceLastOrder is measured against clock.
func CustomerProfile(customerID string, allOrders []models.Order, clock Clock) models.CustomerMetrics {
	m := models.CustomerMetrics{
		Orders:           make([]models.Order, 0),
		MostOrderedItems: make([]models.ItemCount, 0),
		ChannelBreakdown: make([]models.ChannelShare, 0),
	}

	tipPercentSum := 0
	for _, o := range allOrders {
		if o.CustomerID != customerID {
			continue
		}
		m.Orders = append(m.Orders, o)
		m.LifetimeSpend += o.Amount
		tipPercentSum += o.TipPercent
	}

	total := len(m.Orders)
	if total == 0 {
		return m
	}

	m.AvgSpend = m.LifetimeSpend / float64(total)
	m.AvgTipPercent = float64(tipPercentSum) / float64(total)

	byDate := slices.Clone(m.Orders)
	slices.SortStableFunc(byDate, func(a, b models.Order) int {
		return a.Date.Compare(b.Date)
	})
	first, last := byDate[0], byDate[total-1]
	m.FirstOrder = &first
	m.LastOrder = &last

	days := int(math.Floor(clock.Now().Sub(last.Date).Hours() / 24))
	m.DaysSinceLastOrder = &days

	m.MostOrderedItems = topItems(m.Orders, customerTopItemsLimit)

	for _, c := range countChannels(m.Orders) {
		pct := int(math.Round(float64(c.Count) / float64(total) * 100))
		m.ChannelBreakdown = append(m.ChannelBreakdown, models.ChannelShare{
			Channel: c.Channel,
			Count:   c.Count,
			Percent: strconv.Itoa(pct),
		})
	}

	return m
}

// countChannels counts orders per channel, channels in first-seen order.
func countChannels(orders []models.Order) []models.ChannelCount {
	index := make(map[string]int)
	counts := make([]models.ChannelCount, 0)
	for _, o := range orders {
		i, ok := index[o.Type]
		if !ok {
			i = len(counts)
			index[o.Type] = i
			counts = append(counts, models.ChannelCount{Channel: o.Type})
		}
		counts[i].Count++
	}
	return counts
}
