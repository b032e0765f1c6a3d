package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// LedgerService defines the behavior needed by LedgerHandler.
type LedgerService interface {
	Record(ctx context.Context, kind domain.MovementType, amount domain.Money) (domain.Movement, error)
	GetBalance(ctx context.Context) (domain.Money, error)
	ListMovements(ctx context.Context) ([]domain.Movement, error)
	CheckConsistency(ctx context.Context) (usecase.ConsistencyReport, error)
}

// LedgerHandler handles movement and balance requests.
type LedgerHandler struct {
	ledgerUC LedgerService
	logger   zerolog.Logger
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerUC LedgerService, logger zerolog.Logger) *LedgerHandler {
	return &LedgerHandler{ledgerUC: ledgerUC, logger: logger}
}

// RecordMovement records a deposit or withdrawal.
func (h *LedgerHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req dto.CreateMovementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", dto.CodeBadRequest)
		return
	}

	kind, amount, err := req.Parse()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	movement, err := h.ledgerUC.Record(r.Context(), kind, amount)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, dto.MovementFromDomain(movement))
}

// GetBalance returns the current balance.
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.ledgerUC.GetBalance(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.BalanceResponse{Balance: balance})
}

// ListMovements returns every movement, newest first.
func (h *LedgerHandler) ListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := h.ledgerUC.ListMovements(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.MovementsFromDomain(movements))
}

// CheckConsistency checks if the ledger is consistent.
func (h *LedgerHandler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.ledgerUC.CheckConsistency(r.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrInconsistentLedger) {
			writeJSON(w, http.StatusConflict, dto.ConsistencyFromReport(report))
			return
		}
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, dto.ConsistencyFromReport(report))
}

func (h *LedgerHandler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := mapDomainError(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Msg("ledger request failed")
		writeError(w, status, "An unexpected error occurred", code)
		return
	}

	writeError(w, status, err.Error(), code)
}
