// Package export renders orders as CSV for spreadsheets.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

// OrderColumns is the column order of OrderRows.
var OrderColumns = []string{
	"order_number",
	"created_at",
	"customer_id",
	"status",
	"items",
	"item_count",
	"subtotal",
	"delivery_fee",
	"discount",
	"tip",
	"total",
	"payment_method",
	"ward",
	"area",
}

// WriteCSV writes a header of columns followed by one line per row. Missing
// keys become empty cells. Fields containing commas, quotes or newlines are
// quoted.
func WriteCSV(w io.Writer, columns []string, rows []map[string]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(columns))
	for i, row := range rows {
		for j, col := range columns {
			record[j] = row[col]
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// OrderRows flattens orders into rows keyed by OrderColumns. Times are
// rendered in loc.
func OrderRows(orders []model.Order, loc *time.Location) []map[string]string {
	if loc == nil {
		loc = time.Local
	}
	rows := make([]map[string]string, 0, len(orders))
	for _, o := range orders {
		names := make([]string, 0, len(o.Items))
		for _, item := range o.Items {
			names = append(names, fmt.Sprintf("%s x%d", item.Name, item.Quantity))
		}
		rows = append(rows, map[string]string{
			"order_number":   o.OrderNumber,
			"created_at":     o.CreatedAt.In(loc).Format("2006-01-02 15:04"),
			"customer_id":    o.CustomerID,
			"status":         string(o.Status),
			"items":          strings.Join(names, "; "),
			"item_count":     strconv.Itoa(o.ItemCount()),
			"subtotal":       o.Subtotal.StringFixed(2),
			"delivery_fee":   o.DeliveryFee.StringFixed(2),
			"discount":       o.Discount.StringFixed(2),
			"tip":            o.Tip.StringFixed(2),
			"total":          o.Total.StringFixed(2),
			"payment_method": string(o.PaymentMethod),
			"ward":           strconv.Itoa(o.Address.Ward),
			"area":           o.Address.Area,
		})
	}
	return rows
}
