package dto

import (
	"time"

	"github.com/iho/cashbook/internal/domain"
	"github.com/iho/cashbook/internal/usecase"
)

// MovementResponse represents a movement in API responses.
type MovementResponse struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"`
	Amount    domain.Money `json:"amount"`
	CreatedAt time.Time    `json:"createdAt"`
}

// MovementFromDomain converts a domain movement to a response.
func MovementFromDomain(m domain.Movement) MovementResponse {
	return MovementResponse{
		ID:        m.ID(),
		Type:      string(m.Type()),
		Amount:    m.Amount(),
		CreatedAt: m.OccurredAt().UTC(),
	}
}

// MovementsFromDomain converts domain movements to responses, keeping order.
func MovementsFromDomain(movements []domain.Movement) []MovementResponse {
	result := make([]MovementResponse, len(movements))
	for i, m := range movements {
		result[i] = MovementFromDomain(m)
	}
	return result
}

// BalanceResponse represents the current balance.
type BalanceResponse struct {
	Balance domain.Money `json:"balance"`
}

// ConsistencyResponse represents the result of a history replay.
type ConsistencyResponse struct {
	Status        string `json:"status"`
	Consistent    bool   `json:"consistent"`
	Movements     int    `json:"movements"`
	Deposits      string `json:"deposits"`
	Withdrawals   string `json:"withdrawals"`
	Balance       string `json:"balance"`
	LowestBalance string `json:"lowestBalance"`
}

// ConsistencyFromReport converts a consistency report to a response.
func ConsistencyFromReport(report usecase.ConsistencyReport) ConsistencyResponse {
	status := "consistent"
	if !report.Consistent {
		status = "inconsistent"
	}

	return ConsistencyResponse{
		Status:        status,
		Consistent:    report.Consistent,
		Movements:     report.Movements,
		Deposits:      report.Deposits.StringFixed(domain.Scale),
		Withdrawals:   report.Withdrawals.StringFixed(domain.Scale),
		Balance:       report.Balance.StringFixed(domain.Scale),
		LowestBalance: report.LowestBalance.StringFixed(domain.Scale),
	}
}
