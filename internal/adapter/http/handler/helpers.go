package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/iho/cashbook/internal/adapter/http/dto"
	"github.com/iho/cashbook/internal/domain"
)

// maxBodyBytes bounds request bodies; a movement request is a few dozen bytes.
const maxBodyBytes = 1 << 16

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an error response.
func writeError(w http.ResponseWriter, status int, message, code string) {
	writeJSON(w, status, dto.NewErrorResponse(message, code))
}

// mapDomainError maps domain errors to an HTTP status and error code.
func mapDomainError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, dto.CodeInsufficientFunds
	case errors.Is(err, domain.ErrNegativeAmount):
		return http.StatusBadRequest, dto.CodeNegativeAmount
	case errors.Is(err, domain.ErrInvalidPrecision):
		return http.StatusBadRequest, dto.CodeInvalidPrecision
	case errors.Is(err, domain.ErrInvalidMovementType):
		return http.StatusBadRequest, dto.CodeInvalidTransactionType
	case errors.Is(err, domain.ErrMissingField):
		return http.StatusBadRequest, dto.CodeMissingField
	case errors.Is(err, domain.ErrNonPositiveAmount),
		errors.Is(err, domain.ErrEmptyAmount),
		errors.Is(err, domain.ErrAmountTooLarge):
		return http.StatusBadRequest, dto.CodeValidation
	case errors.Is(err, domain.ErrMalformedAmount):
		return http.StatusBadRequest, dto.CodeBadRequest
	default:
		return http.StatusInternalServerError, dto.CodeInternal
	}
}
