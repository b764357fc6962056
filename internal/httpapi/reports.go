package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/export"
	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/service"
)

// window reads from/to from the query string. Without them it covers the
// last seven days up to now.
func (s *Server) window(r *http.Request) (time.Time, time.Time, error) {
	to := time.Now()
	from := to.AddDate(0, 0, -7)
	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = parseTime(v, s.loc); err != nil {
			return from, to, err
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = parseTime(v, s.loc); err != nil {
			return from, to, err
		}
	}
	return from, to, nil
}

func (s *Server) reportSummary(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	from, to, err := s.window(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	top, err := queryInt(r, "top")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	totalCustomers, err := queryInt(r, "total_customers")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	req := service.ReportRequest{
		From:           from,
		To:             to,
		TopN:           top,
		TotalCustomers: totalCustomers,
		SupplierID:     r.URL.Query().Get("supplier_id"),
		CustomerID:     r.URL.Query().Get("customer_id"),
	}
	switch actor.Role {
	case model.RoleAdmin:
	case model.RoleSupplier:
		req.SupplierID = actor.ID
	case model.RoleCustomer:
		req.CustomerID = actor.ID
	default:
		s.writeError(w, r, fmt.Errorf("%s cannot read reports: %w", actor, model.ErrForbidden))
		return
	}

	rollup, err := s.reports.Summary(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rollup)
}

func (s *Server) exportOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	f, err := s.orderFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	orders, err := s.orders.List(r.Context(), scopeToActor(f, actor))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
	if err := export.WriteCSV(w, export.OrderColumns, export.OrderRows(orders, s.loc)); err != nil {
		s.logger.Warn("order export interrupted", zap.Error(err))
	}
}
