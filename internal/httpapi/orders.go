package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/vs-yayo-m/zalldi/internal/maplink"
	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/service"
	"github.com/vs-yayo-m/zalldi/internal/store"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

// orderFilter reads customer_id, supplier_id, status (comma separated),
// from, to and limit from the query string.
func (s *Server) orderFilter(r *http.Request) (store.OrderFilter, error) {
	q := r.URL.Query()
	f := store.OrderFilter{
		CustomerID: q.Get("customer_id"),
		SupplierID: q.Get("supplier_id"),
	}
	if v := q.Get("status"); v != "" {
		for _, part := range strings.Split(v, ",") {
			status := model.OrderStatus(strings.TrimSpace(part))
			if !status.Valid() {
				return f, fmt.Errorf("unknown status %q", part)
			}
			f.Statuses = append(f.Statuses, status)
		}
	}
	var err error
	if v := q.Get("from"); v != "" {
		if f.From, err = parseTime(v, s.loc); err != nil {
			return f, err
		}
	}
	if v := q.Get("to"); v != "" {
		if f.To, err = parseTime(v, s.loc); err != nil {
			return f, err
		}
	}
	if f.Limit, err = queryInt(r, "limit"); err != nil {
		return f, err
	}
	return f, nil
}

// scopeToActor narrows a filter to what the caller may see: customers their
// own orders, suppliers orders containing their products.
func scopeToActor(f store.OrderFilter, actor model.Actor) store.OrderFilter {
	switch actor.Role {
	case model.RoleCustomer:
		f.CustomerID = actor.ID
	case model.RoleSupplier:
		f.SupplierID = actor.ID
	}
	return f
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
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
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *Server) placeOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in validation.PlacementInput
	if err := decode(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	if actor.Role == model.RoleCustomer {
		in.CustomerID = actor.ID
	}

	result := s.placement.PlaceOrder(r.Context(), in)
	if !result.Success {
		s.writeError(w, r, result.Error)
		return
	}
	writeJSON(w, http.StatusCreated, result.Order)
}

// canSeeOrder applies the same scoping as scopeToActor to a single order.
func canSeeOrder(order *model.Order, actor model.Actor) bool {
	switch actor.Role {
	case model.RoleAdmin, model.RoleRider:
		return true
	case model.RoleCustomer:
		return order.CustomerID == actor.ID
	case model.RoleSupplier:
		return slices.Contains(order.SupplierIDs(), actor.ID)
	}
	return false
}

// visibleOrder loads the order named in the URL and writes an error
// response unless actor may see it.
func (s *Server) visibleOrder(w http.ResponseWriter, r *http.Request, actor model.Actor) (*model.Order, bool) {
	id := chi.URLParam(r, "id")
	order, err := s.orders.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return nil, false
	}
	if !canSeeOrder(order, actor) {
		s.writeError(w, r, fmt.Errorf("%s cannot access order %s: %w", actor, id, model.ErrForbidden))
		return nil, false
	}
	return order, true
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, ok := s.visibleOrder(w, r, actor)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, order)
}

type transitionRequest struct {
	Status model.OrderStatus `json:"status"`
	Note   string            `json:"note"`
}

func (s *Server) transitionOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req transitionRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	if !req.Status.Valid() {
		badRequest(w, fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	opts := service.TransitionOptions{Actor: actor, Note: req.Note}

	switch actor.Role {
	case model.RoleAdmin, model.RoleRider:
	case model.RoleCustomer:
		opts.Precondition = customerMayCancel(actor, req.Status)
	default:
		s.writeError(w, r, fmt.Errorf("%s cannot change order status: %w", actor, model.ErrForbidden))
		return
	}

	order, err := s.orders.Transition(r.Context(), chi.URLParam(r, "id"), req.Status, opts)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

// customerMayCancel lets customers cancel their own order while it is
// still pending, and nothing else.
func customerMayCancel(actor model.Actor, target model.OrderStatus) func(*model.Order) error {
	return func(order *model.Order) error {
		if target != model.OrderStatusCancelled || order.CustomerID != actor.ID || order.Status != model.OrderStatusPending {
			return fmt.Errorf("%s cannot move order %s from %s to %s: %w", actor, order.ID, order.Status, target, model.ErrForbidden)
		}
		return nil
	}
}

type flagRequest struct {
	Value bool `json:"value"`
}

func (s *Server) setItemFlag(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleRider {
		s.writeError(w, r, fmt.Errorf("%s cannot update fulfilment: %w", actor, model.ErrForbidden))
		return
	}
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		badRequest(w, "item index must be a number")
		return
	}
	flag := service.ItemFlag(chi.URLParam(r, "flag"))
	switch flag {
	case service.FlagPicked, service.FlagPacked, service.FlagFragile:
	default:
		badRequest(w, fmt.Sprintf("unknown item flag %q", flag))
		return
	}
	var req flagRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}

	order, err := s.orders.SetItemFlag(r.Context(), chi.URLParam(r, "id"), index, flag, req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) orderMapLinks(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	order, ok := s.visibleOrder(w, r, actor)
	if !ok {
		return
	}
	loc := order.Address.Location
	if loc == nil {
		s.writeError(w, r, fmt.Errorf("order %s has no delivery coordinates: %w", order.ID, model.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"links": maplink.Links(loc.Lat, loc.Lon)})
}

// streamOrders sends the matching orders as server-sent events, then every
// change to them, until the client goes away.
func (s *Server) streamOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}
	f, err := s.orderFilter(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	sub, err := s.orders.Watch(r.Context(), scopeToActor(f, actor))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	for _, doc := range sub.Initial {
		if err := writeEvent(w, store.Change{Kind: store.ChangeAdded, Document: doc}); err != nil {
			return
		}
	}
	flusher.Flush()

	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-sub.Changes():
			if !ok {
				return
			}
			if err := writeEvent(w, change); err != nil {
				s.logger.Debug("order stream closed", zap.Error(err))
				return
			}
			flusher.Flush()
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type orderEvent struct {
	ID    string          `json:"id"`
	Order json.RawMessage `json:"order,omitempty"`
}

func writeEvent(w http.ResponseWriter, c store.Change) error {
	ev := orderEvent{ID: c.Document.ID}
	if c.Kind != store.ChangeRemoved {
		ev.Order = c.Document.Data
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", c.Kind, data)
	return err
}
