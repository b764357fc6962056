package httpapi

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/vs-yayo-m/zalldi/internal/model"
)

// getWallet shows a balance to admins and to the wallet's owner.
func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	customerID := chi.URLParam(r, "customerID")
	if !actor.IsAdmin() && !(actor.Role == model.RoleCustomer && actor.ID == customerID) {
		s.writeError(w, r, fmt.Errorf("%s cannot view wallet %s: %w", actor, customerID, model.ErrForbidden))
		return
	}
	balance, err := s.wallet.Balance(r.Context(), customerID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, model.Wallet{CustomerID: customerID, Balance: balance})
}

type creditRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) creditWallet(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !actor.IsAdmin() {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin only"})
		return
	}
	var req creditRequest
	if err := decode(r, &req); err != nil {
		badRequest(w, err.Error())
		return
	}
	wallet, err := s.wallet.Credit(r.Context(), chi.URLParam(r, "customerID"), req.Amount)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}
