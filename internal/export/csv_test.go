package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

func TestWriteCSV_Quoting(t *testing.T) {
	rows := []map[string]string{
		{"name": "Rice, Basmati", "note": `12" bag`},
		{"name": "Milk", "note": "keep\ncold"},
		{"name": "Eggs"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"name", "note"}, rows))

	want := "name,note\n" +
		"\"Rice, Basmati\",\"12\"\" bag\"\n" +
		"Milk,\"keep\ncold\"\n" +
		"Eggs,\n"
	assert.Equal(t, want, buf.String())

	// Round-trips through a standard reader.
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	if diff := cmp.Diff([][]string{
		{"name", "note"},
		{"Rice, Basmati", `12" bag`},
		{"Milk", "keep\ncold"},
		{"Eggs", ""},
	}, records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteCSV_HeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, []string{"a", "b"}, nil))
	assert.Equal(t, "a,b\n", buf.String())
}

func TestOrderRows(t *testing.T) {
	npt := time.FixedZone("NPT", 20700)
	order := model.Order{
		OrderNumber:   "ZLD-20261019-0042",
		CustomerID:    "user1",
		Status:        model.OrderStatusDelivered,
		PaymentMethod: model.PaymentCOD,
		Items: []model.OrderItem{
			{Name: "Rice", Quantity: 2},
			{Name: "Milk", Quantity: 1},
		},
		Subtotal:    decimal.NewFromInt(400),
		DeliveryFee: decimal.NewFromInt(50),
		Discount:    decimal.Zero,
		Tip:         decimal.NewFromFloat(10.5),
		Total:       decimal.NewFromFloat(460.5),
		Address:     model.Address{Ward: 4, Area: "Thamel, Kathmandu"},
		CreatedAt:   time.Date(2026, 10, 19, 6, 15, 0, 0, time.UTC),
	}

	rows := OrderRows([]model.Order{order}, npt)
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, "2026-10-19 12:00", row["created_at"])
	assert.Equal(t, "Rice x2; Milk x1", row["items"])
	assert.Equal(t, "3", row["item_count"])
	assert.Equal(t, "460.50", row["total"])
	assert.Equal(t, "10.50", row["tip"])
	assert.Len(t, row, len(OrderColumns))

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, OrderColumns, rows))
	assert.Contains(t, buf.String(), `"Thamel, Kathmandu"`)
}
