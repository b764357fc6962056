// Package httpapi exposes the order, catalog and reporting services over
// HTTP. Callers are identified by the X-Actor-ID and X-Actor-Role headers,
// which an upstream gateway sets after authentication.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/saga"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"
)

type Deps struct {
	Orders    *service.OrderService
	Products  *service.ProductService
	Reports   *service.ReportService
	Placement *saga.Orchestrator
	Wallet    *service.WalletService
	Location  *time.Location
	Logger    *zap.Logger
	// KeepAlive is the comment interval on event streams. Zero means 25s.
	KeepAlive time.Duration
}

type Server struct {
	orders    *service.OrderService
	products  *service.ProductService
	reports   *service.ReportService
	placement *saga.Orchestrator
	wallet    *service.WalletService
	loc       *time.Location
	logger    *zap.Logger
	keepAlive time.Duration
}

func New(d Deps) *Server {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Location == nil {
		d.Location = time.Local
	}
	if d.KeepAlive == 0 {
		d.KeepAlive = 25 * time.Second
	}
	return &Server{
		orders:    d.Orders,
		products:  d.Products,
		reports:   d.Reports,
		placement: d.Placement,
		wallet:    d.Wallet,
		loc:       d.Location,
		logger:    d.Logger,
		keepAlive: d.KeepAlive,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.listOrders)
		r.Post("/", s.placeOrder)
		r.Get("/stream", s.streamOrders)
		r.Get("/{id}", s.getOrder)
		r.Post("/{id}/transition", s.transitionOrder)
		r.Put("/{id}/items/{index}/{flag}", s.setItemFlag)
		r.Get("/{id}/map-links", s.orderMapLinks)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.listProducts)
		r.Post("/", s.submitProduct)
		r.Get("/pending", s.pendingProducts)
		r.Get("/{id}", s.getProduct)
		r.Put("/{id}", s.updateProduct)
		r.Delete("/{id}", s.deleteProduct)
		r.Post("/{id}/approve", s.approveProduct)
		r.Post("/{id}/reject", s.rejectProduct)
		r.Post("/{id}/resubmit", s.resubmitProduct)
		r.Put("/{id}/active", s.setProductActive)
		r.Post("/{id}/stock", s.adjustStock)
	})

	r.Route("/wallets/{customerID}", func(r chi.Router) {
		r.Get("/", s.getWallet)
		r.Post("/credit", s.creditWallet)
	})

	r.Get("/reports/summary", s.reportSummary)
	r.Get("/exports/orders.csv", s.exportOrders)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Error  string                  `json:"error"`
	Fields []validation.FieldError `json:"fields,omitempty"`
}

// writeError maps service errors to status codes. Unexpected errors are
// logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validation.Errors
	switch {
	case errors.As(err, &verrs):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "validation failed", Fields: verrs})
	case errors.Is(err, model.ErrValidation):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrInvalidTransition),
		errors.Is(err, model.ErrFulfilmentIncomplete),
		errors.Is(err, model.ErrConflict),
		errors.Is(err, model.ErrInsufficientStock),
		errors.Is(err, model.ErrInsufficientFunds):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func actorFrom(r *http.Request) (model.Actor, bool) {
	actor := model.Actor{
		ID:   strings.TrimSpace(r.Header.Get(HeaderActorID)),
		Role: model.Role(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderActorRole)))),
	}
	switch actor.Role {
	case model.RoleAdmin, model.RoleSupplier, model.RoleCustomer, model.RoleRider:
		return actor, actor.ID != ""
	}
	return actor, false
}

// requireActor writes 401 and returns false when the request carries no
// usable actor.
func requireActor(w http.ResponseWriter, r *http.Request) (model.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid actor headers"})
	}
	return actor, ok
}

// parseTime accepts RFC 3339 timestamps or plain dates, which are read as
// local midnight in loc.
func parseTime(v string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: want RFC 3339 or YYYY-MM-DD", v)
	}
	return t, nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}
