package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"stablevault/internal/deposit"
	"stablevault/internal/domain"
	"stablevault/internal/storage"
)

type depositPayload struct {
	ProfileID     string `json:"profile_id"`
	VaultAddress  string `json:"vault_address"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Amount        string `json:"amount"`
	APR           string `json:"apr"`
	SignerAddress string `json:"signer_address"`
	ChainID       int64  `json:"chain_id"`
}

type depositResponse struct {
	InvestmentID string `json:"investment_id"`
	MovementID   string `json:"movement_id"`
	TxRef        string `json:"tx_ref"`
	Path         string `json:"path"`
	Status       string `json:"status"`
	Merged       bool   `json:"merged"`
}

type movementResponse struct {
	ID           string                  `json:"id"`
	InvestmentID string                  `json:"investment_id"`
	ProfileID    string                  `json:"profile_id"`
	Type         string                  `json:"type"`
	Amount       decimal.Decimal         `json:"amount"`
	Token        string                  `json:"token"`
	TxHash       string                  `json:"tx_hash"`
	Chain        string                  `json:"chain"`
	Status       string                  `json:"status"`
	Metadata     domain.MovementMetadata `json:"metadata"`
	CreatedAt    int64                   `json:"created_at"`
	UpdatedAt    int64                   `json:"updated_at"`
}

type investmentResponse struct {
	ID             string          `json:"id"`
	ProfileID      string          `json:"profile_id"`
	VaultAddress   string          `json:"vault_address"`
	Name           string          `json:"name"`
	Type           string          `json:"type"`
	AmountInvested decimal.Decimal `json:"amount_invested"`
	APR            decimal.Decimal `json:"apr"`
	Status         string          `json:"status"`
	CreatedAt      int64           `json:"created_at"`
	UpdatedAt      int64           `json:"updated_at"`
}

func toMovementResponse(m *domain.Movement) movementResponse {
	return movementResponse{
		ID:           m.ID,
		InvestmentID: m.InvestmentID,
		ProfileID:    m.ProfileID,
		Type:         string(m.Type),
		Amount:       m.Amount,
		Token:        m.Token,
		TxHash:       m.TxHash,
		Chain:        m.Chain,
		Status:       string(m.Status),
		Metadata:     m.Metadata,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func toInvestmentResponse(inv *domain.Investment) investmentResponse {
	return investmentResponse{
		ID:             inv.ID,
		ProfileID:      inv.ProfileID,
		VaultAddress:   inv.VaultAddress,
		Name:           inv.Name,
		Type:           string(inv.Type),
		AmountInvested: inv.AmountInvested,
		APR:            inv.APR,
		Status:         string(inv.Status),
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleDeposit accepts a deposit intent and returns the optimistic
// submission result. 202: the deposit is submitted, not yet confirmed.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var payload depositPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	amount, err := domain.ParseAmount(payload.Amount)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	apr := decimal.Zero
	if payload.APR != "" {
		if apr, err = decimal.NewFromString(payload.APR); err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid apr")
			return
		}
	}

	signer := domain.SignerContext{Address: payload.SignerAddress, ChainID: payload.ChainID}
	req := deposit.DepositRequest{
		ProfileID:    payload.ProfileID,
		VaultAddress: payload.VaultAddress,
		Name:         payload.Name,
		Type:         domain.InvestmentType(payload.Type),
		Amount:       amount,
		APR:          apr,
	}
	if req.Type == "" {
		req.Type = domain.InvestmentTypeVault
	}
	if err := signer.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Submission failure past validation means both on-chain paths failed.
	res, err := s.orchestrator.Deposit(r.Context(), signer, req)
	if err != nil {
		s.respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	s.respondJSON(w, http.StatusAccepted, depositResponse{
		InvestmentID: res.InvestmentID,
		MovementID:   res.MovementID,
		TxRef:        res.TxRef,
		Path:         string(res.Path),
		Status:       string(res.InitialStatus),
		Merged:       res.Merged,
	})
}

func (s *Server) handleGetMovement(w http.ResponseWriter, r *http.Request) {
	m, err := s.orchestrator.MovementStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.respondError(w, http.StatusNotFound, "movement not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, toMovementResponse(m))
}

func (s *Server) handleGetInvestments(w http.ResponseWriter, r *http.Request) {
	investments, err := s.investments.GetByProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	out := make([]investmentResponse, 0, len(investments))
	for _, inv := range investments {
		out = append(out, toInvestmentResponse(inv))
	}
	s.respondJSON(w, http.StatusOK, out)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, map[string]string{"error": msg})
}
