package validation

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payment struct {
	SourceAccountID      string          `validate:"required,uuid"`
	DestinationAccountID string          `validate:"required,uuid,nefield=SourceAccountID"`
	Amount               decimal.Decimal `validate:"positive_decimal,money"`
	Currency             string          `validate:"required,currency"`
}

func validPayment() payment {
	return payment{
		SourceAccountID:      "6f1c1b2e-8f5a-4c57-9a51-1d0b9a3b7c11",
		DestinationAccountID: "0e4b7f39-2f7d-4a0c-8d3a-51c9f3f1e2a4",
		Amount:               decimal.RequireFromString("10.50"),
		Currency:             "USD",
	}
}

func TestValidate_AcceptsValidInput(t *testing.T) {
	require.NoError(t, New().Struct(validPayment()))
}

func TestValidate_Rules(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*payment)
		field   string
		tag     string
		message string
	}{
		{
			name:    "lower case currency",
			mutate:  func(p *payment) { p.Currency = "usd" },
			field:   "Currency",
			tag:     "currency",
			message: "currency must be a three-letter upper case code",
		},
		{
			name:    "zero amount",
			mutate:  func(p *payment) { p.Amount = decimal.Zero },
			field:   "Amount",
			tag:     "positive_decimal",
			message: "amount must be positive",
		},
		{
			name:    "negative amount",
			mutate:  func(p *payment) { p.Amount = decimal.NewFromInt(-1) },
			field:   "Amount",
			tag:     "positive_decimal",
			message: "amount must be positive",
		},
		{
			name:    "too many decimal places",
			mutate:  func(p *payment) { p.Amount = decimal.RequireFromString("1.123456789") },
			field:   "Amount",
			tag:     "money",
			message: "amount must have at most 8 decimal places",
		},
		{
			name:    "below smallest unit",
			mutate:  func(p *payment) { p.Amount = decimal.RequireFromString("0.000000001") },
			field:   "Amount",
			tag:     "money",
			message: "amount must have at most 8 decimal places",
		},
		{
			name:    "too many integer digits",
			mutate:  func(p *payment) { p.Amount = decimal.RequireFromString("12345678901234567890") },
			field:   "Amount",
			tag:     "money",
			message: "16 integer digits",
		},
		{
			name:    "same account",
			mutate:  func(p *payment) { p.DestinationAccountID = p.SourceAccountID },
			field:   "DestinationAccountID",
			tag:     "nefield",
			message: "source and destination accounts must differ",
		},
		{
			name:    "malformed id",
			mutate:  func(p *payment) { p.SourceAccountID = "42" },
			field:   "SourceAccountID",
			tag:     "uuid",
			message: "source account id must be a UUID",
		},
	}

	validate := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayment()
			tt.mutate(&p)

			err := validate.Struct(p)
			require.Error(t, err)
			assert.Equal(t, tt.tag, FailedTag(err, tt.field))
			assert.Contains(t, FormatValidationError(err), tt.message)
		})
	}
}

func TestValidate_MoneyBoundaries(t *testing.T) {
	validate := New()
	for _, amount := range []string{"0.00000001", "1.10000000000", "9999999999999999.99999999"} {
		p := validPayment()
		p.Amount = decimal.RequireFromString(amount)
		assert.NoError(t, validate.Struct(p), amount)
	}
}

func TestFormatValidationError_NonValidationError(t *testing.T) {
	assert.Equal(t, "invalid input", FormatValidationError(assert.AnError))
	assert.Empty(t, FailedTag(assert.AnError, "Amount"))
}
