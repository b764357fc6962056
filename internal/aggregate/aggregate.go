// Package aggregate folds a batch of orders into reporting rollups.
//
// Aggregate is pure: it performs no I/O and returns the same Rollup for the
// same input. Callers fetch the batch themselves.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

type Options struct {
	// TopN truncates the rankings; zero keeps every entry.
	TopN int
	// TotalCustomers is the denominator of ConversionRate.
	TotalCustomers int
	// Location sets the calendar day boundaries. Defaults to time.Local.
	Location *time.Location
}

type Rollup struct {
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`

	TotalOrders     int                       `json:"total_orders"`
	StatusCounts    map[model.OrderStatus]int `json:"status_counts"`
	ActiveOrders    int                       `json:"active_orders"`
	PendingOrders   int                       `json:"pending_orders"`
	DeliveredOrders int                       `json:"delivered_orders"`
	CancelledOrders int                       `json:"cancelled_orders"`

	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalTips    decimal.Decimal `json:"total_tips"`
	ItemsSold    int             `json:"items_sold"`

	UniqueCustomers   int             `json:"unique_customers"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	OrdersPerCustomer float64         `json:"orders_per_customer"`
	ConversionRate    float64         `json:"conversion_rate"`
	CancellationRate  float64         `json:"cancellation_rate"`

	Daily         []DailyBucket      `json:"daily"`
	TopCategories []SalesRank        `json:"top_categories"`
	TopProducts   []SalesRank        `json:"top_products"`
	TopCustomers  []CustomerActivity `json:"top_customers"`
}

type DailyBucket struct {
	Date      time.Time       `json:"date"`
	Orders    int             `json:"orders"`
	Delivered int             `json:"delivered"`
	Cancelled int             `json:"cancelled"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type SalesRank struct {
	Key      string          `json:"key"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Revenue  decimal.Decimal `json:"revenue"`
}

type CustomerActivity struct {
	CustomerID string          `json:"customer_id"`
	Orders     int             `json:"orders"`
	Delivered  int             `json:"delivered"`
	Spent      decimal.Decimal `json:"spent"`
}

// Aggregate rolls up orders created in [windowStart, windowEnd). Counts
// cover every in-window order; revenue, rankings and spend only delivered
// ones.
func Aggregate(orders []model.Order, windowStart, windowEnd time.Time, opts Options) Rollup {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	r := Rollup{
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		StatusCounts:      make(map[model.OrderStatus]int),
		TotalRevenue:      decimal.Zero,
		TotalTips:         decimal.Zero,
		AverageOrderValue: decimal.Zero,
	}

	r.Daily = seedDays(windowStart, windowEnd, loc)
	dayIndex := make(map[string]int, len(r.Daily))
	for i, b := range r.Daily {
		dayIndex[dayKey(b.Date)] = i
	}

	categories := newRanking()
	products := newRanking()
	customers := make(map[string]*CustomerActivity)
	var customerOrder []string
	converted := 0

	for _, o := range orders {
		if o.CreatedAt.Before(windowStart) || !o.CreatedAt.Before(windowEnd) {
			continue
		}

		r.TotalOrders++
		r.StatusCounts[o.Status]++
		switch {
		case o.Status == model.OrderStatusPending:
			r.PendingOrders++
		case o.Status == model.OrderStatusCancelled:
			r.CancelledOrders++
		}
		if o.Status.IsActive() {
			r.ActiveOrders++
		}

		c, ok := customers[o.CustomerID]
		if !ok {
			c = &CustomerActivity{CustomerID: o.CustomerID, Spent: decimal.Zero}
			customers[o.CustomerID] = c
			customerOrder = append(customerOrder, o.CustomerID)
		}
		c.Orders++

		bucket := -1
		if i, ok := dayIndex[dayKey(o.CreatedAt.In(loc))]; ok {
			bucket = i
			r.Daily[i].Orders++
			if o.Status == model.OrderStatusCancelled {
				r.Daily[i].Cancelled++
			}
		}

		if o.Status != model.OrderStatusDelivered {
			continue
		}

		r.DeliveredOrders++
		r.TotalRevenue = r.TotalRevenue.Add(o.Total)
		r.TotalTips = r.TotalTips.Add(o.Tip)
		if c.Delivered == 0 {
			converted++
		}
		c.Delivered++
		c.Spent = c.Spent.Add(o.Total)
		if bucket >= 0 {
			r.Daily[bucket].Delivered++
			r.Daily[bucket].Revenue = r.Daily[bucket].Revenue.Add(o.Total)
		}

		for _, item := range o.Items {
			r.ItemsSold += item.Quantity
			categories.add(item.Category, item.Category, item.Quantity, item.LineTotal)
			products.add(item.ProductID, item.Name, item.Quantity, item.LineTotal)
		}
	}

	r.UniqueCustomers = len(customers)
	r.AverageOrderValue = divDecimal(r.TotalRevenue, r.DeliveredOrders)
	r.OrdersPerCustomer = ratio(r.TotalOrders, r.UniqueCustomers)
	r.ConversionRate = ratio(converted, opts.TotalCustomers)
	r.CancellationRate = ratio(r.CancelledOrders, r.TotalOrders)

	r.TopCategories = categories.top(opts.TopN)
	r.TopProducts = products.top(opts.TopN)
	r.TopCustomers = topCustomers(customers, customerOrder, opts.TopN)
	return r
}

// seedDays returns one zeroed bucket per local calendar day, starting at the
// local midnight of start, for every day that begins before end.
func seedDays(start, end time.Time, loc *time.Location) []DailyBucket {
	if !start.Before(end) {
		return []DailyBucket{}
	}
	s := start.In(loc)
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, loc)

	var buckets []DailyBucket
	for day.Before(end) {
		buckets = append(buckets, DailyBucket{Date: day, Revenue: decimal.Zero})
		day = day.AddDate(0, 0, 1)
	}
	return buckets
}

func dayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func divDecimal(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n))).Round(2)
}

// ranking accumulates per-key totals and remembers first-seen order so
// equal revenues keep their input order after the stable sort.
type ranking struct {
	index   map[string]int
	entries []SalesRank
}

func newRanking() *ranking {
	return &ranking{index: make(map[string]int)}
}

func (r *ranking) add(key, name string, qty int, revenue decimal.Decimal) {
	i, ok := r.index[key]
	if !ok {
		i = len(r.entries)
		r.index[key] = i
		r.entries = append(r.entries, SalesRank{Key: key, Name: name, Revenue: decimal.Zero})
	}
	r.entries[i].Quantity += qty
	r.entries[i].Revenue = r.entries[i].Revenue.Add(revenue)
}

func (r *ranking) top(n int) []SalesRank {
	out := append([]SalesRank{}, r.entries...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Revenue.GreaterThan(out[j].Revenue)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func topCustomers(customers map[string]*CustomerActivity, order []string, n int) []CustomerActivity {
	out := make([]CustomerActivity, 0, len(order))
	for _, id := range order {
		out = append(out, *customers[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Spent.Equal(out[j].Spent) {
			return out[i].Spent.GreaterThan(out[j].Spent)
		}
		return out[i].Orders > out[j].Orders
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}
