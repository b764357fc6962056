package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/vs-yayo-m/zalldi/internal/model"
	"github.com/vs-yayo-m/zalldi/internal/validation"
)

// listProducts serves the customer catalog, or one supplier's full list
// when supplier_id is given.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	var (
		products []model.Product
		err      error
	)
	if supplierID := r.URL.Query().Get("supplier_id"); supplierID != "" {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if !actor.IsAdmin() && actor.ID != supplierID {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "suppliers can only list their own products"})
			return
		}
		products, err = s.products.BySupplier(r.Context(), supplierID)
	} else {
		products, err = s.products.Catalog(r.Context(), r.URL.Query().Get("category"))
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

func (s *Server) submitProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in validation.ProductInput
	if err := decode(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := s.products.Submit(r.Context(), actor, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) pendingProducts(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin only"})
		return
	}
	products, err := s.products.PendingApproval(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// getProduct returns any product to admins and its supplier; everyone else
// only sees products visible in the catalog.
func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := s.products.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	actor, _ := actorFrom(r)
	if !p.IsVisible() && !actor.IsAdmin() && actor.ID != p.SupplierID {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "product not found"})
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var in validation.ProductInput
	if err := decode(r, &in); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := s.products.Update(r.Context(), actor, chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if err := s.products.Delete(r.Context(), actor, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) approveProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := s.products.Approve(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) rejectProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req rejectRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := s.products.Reject(r.Context(), actor, chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) resubmitProduct(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	p, err := s.products.Resubmit(r.Context(), actor, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type activeRequest struct {
	Active bool `json:"active"`
}

func (s *Server) setProductActive(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req activeRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := s.products.SetActive(r.Context(), actor, chi.URLParam(r, "id"), req.Active)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

func (s *Server) adjustStock(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var req stockRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	p, err := s.products.AdjustStock(r.Context(), actor, chi.URLParam(r, "id"), req.Delta)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
