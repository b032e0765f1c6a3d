package dto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/iho/cashbook/internal/domain"
)

// MaxAmountIntegerDigits bounds the integer part of amounts accepted from clients.
const MaxAmountIntegerDigits = 18

// CreateMovementRequest represents a request to record a deposit or withdrawal.
// Amount is kept raw so that an absent amount, a null amount and a malformed
// amount can be told apart.
type CreateMovementRequest struct {
	Type   *string         `json:"type"`
	Amount json.RawMessage `json:"amount"`
}

// Parse validates the request and converts it to domain values.
func (r *CreateMovementRequest) Parse() (domain.MovementType, domain.Money, error) {
	if r.Type == nil {
		return "", domain.Money{}, fmt.Errorf("%w: type", domain.ErrMissingField)
	}

	kind, err := domain.ParseMovementType(*r.Type)
	if err != nil {
		return "", domain.Money{}, err
	}

	raw := bytes.TrimSpace(r.Amount)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", domain.Money{}, fmt.Errorf("%w: amount", domain.ErrMissingField)
	}

	amount, err := ParseAmount(raw)
	if err != nil {
		return "", domain.Money{}, err
	}

	if !amount.IsPositive() {
		return "", domain.Money{}, fmt.Errorf("%w: %s", domain.ErrNonPositiveAmount, amount)
	}

	return kind, amount, nil
}

// ParseAmount parses a JSON number or quoted decimal string.
func ParseAmount(raw []byte) (domain.Money, error) {
	text := string(bytes.TrimSpace(raw))
	if strings.HasPrefix(text, `"`) {
		unquoted, err := strconv.Unquote(text)
		if err != nil {
			return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrMalformedAmount, text)
		}
		text = unquoted
	}

	return ParseAmountText(text)
}

// ParseAmountText parses a decimal such as "100.5" or "1e3". Values whose
// integer part exceeds MaxAmountIntegerDigits are rejected before they are
// normalised, so an exponent like 1e50000000 never expands into its digits.
func ParseAmountText(s string) (domain.Money, error) {
	s = strings.TrimSpace(s)
	d, err := decimal.NewFromString(s)
	if err != nil {
		return domain.ParseMoney(s)
	}

	switch {
	case d.IsZero():
		return domain.Zero(), nil
	case d.IsNegative():
		return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrNegativeAmount, s)
	case d.Exponent() < -domain.Scale:
		return domain.Money{}, fmt.Errorf("%w: %s", domain.ErrInvalidPrecision, s)
	case integerDigits(d) > MaxAmountIntegerDigits:
		return domain.Money{}, fmt.Errorf("%w: at most %d integer digits are allowed", domain.ErrAmountTooLarge, MaxAmountIntegerDigits)
	}

	return domain.NewMoney(d)
}

// integerDigits is the number of digits left of the decimal point, computed
// from the coefficient length and the exponent without rescaling d.
func integerDigits(d decimal.Decimal) int {
	return d.NumDigits() + int(d.Exponent())
}
