package dto

import "time"

// Stable error codes returned in ErrorResponse.Code.
const (
	CodeNegativeAmount         = "NEGATIVE_AMOUNT"
	CodeInvalidPrecision       = "INVALID_PRECISION"
	CodeInsufficientFunds      = "INSUFFICIENT_FUNDS"
	CodeInvalidTransactionType = "INVALID_TRANSACTION_TYPE"
	CodeMissingField           = "MISSING_FIELD"
	CodeValidation             = "VALIDATION_ERROR"
	CodeBadRequest             = "BAD_REQUEST"
	CodeNotFound               = "NOT_FOUND"
	CodeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeRateLimited            = "RATE_LIMITED"
	CodeRequestInProgress      = "REQUEST_IN_PROGRESS"
	CodeInternal               = "INTERNAL_ERROR"
)

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorResponse builds an ErrorResponse stamped with the current UTC time.
func NewErrorResponse(message, code string) ErrorResponse {
	return ErrorResponse{
		Message:   message,
		Code:      code,
		Timestamp: time.Now().UTC(),
	}
}
