// Package validation configures struct-tag validation for service inputs.
package validation

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// Amounts are stored as NUMERIC(24,8).
const (
	MoneyScale         = 8
	MoneyIntegerDigits = 16
)

var moneyLimit = decimal.New(1, MoneyIntegerDigits)

// ValidCurrency accepts ISO 4217 style three-letter upper case codes.
var ValidCurrency validator.Func = func(fieldLevel validator.FieldLevel) bool {
	return currencyPattern.MatchString(fieldLevel.Field().String())
}

// PositiveDecimal accepts decimal amounts greater than zero.
var PositiveDecimal validator.Func = func(fieldLevel validator.FieldLevel) bool {
	amount, err := decimal.NewFromString(fieldLevel.Field().String())
	return err == nil && amount.IsPositive()
}

// NonNegativeDecimal accepts decimal amounts of zero or more.
var NonNegativeDecimal validator.Func = func(fieldLevel validator.FieldLevel) bool {
	amount, err := decimal.NewFromString(fieldLevel.Field().String())
	return err == nil && !amount.IsNegative()
}

// Money accepts amounts with at most MoneyScale decimal places and fewer
// than MoneyIntegerDigits+1 integer digits.
var Money validator.Func = func(fieldLevel validator.FieldLevel) bool {
	amount, err := decimal.NewFromString(fieldLevel.Field().String())
	if err != nil {
		return false
	}
	return amount.Equal(amount.Truncate(MoneyScale)) && amount.Abs().LessThan(moneyLimit)
}

// decimalValue presents decimal.Decimal fields to validators as their string
// form instead of as a nested struct.
func decimalValue(field reflect.Value) interface{} {
	if amount, ok := field.Interface().(decimal.Decimal); ok {
		return amount.String()
	}
	return nil
}

// CustomErrorMessage maps field names and validation tags to user facing messages.
var CustomErrorMessage = map[string]map[string]string{
	"Currency": {
		"required": "currency is required",
		"currency": "currency must be a three-letter upper case code",
	},
	"Amount": {
		"positive_decimal": "amount must be positive",
		"money":            "amount must have at most 8 decimal places and 16 integer digits",
	},
	"InitialBalance": {
		"non_negative_decimal": "initial balance must not be negative",
		"money":                "initial balance must have at most 8 decimal places and 16 integer digits",
	},
	"OwnerID": {
		"required": "owner id is required",
	},
	"SourceAccountID": {
		"required": "source account id is required",
		"uuid":     "source account id must be a UUID",
	},
	"DestinationAccountID": {
		"required": "destination account id is required",
		"uuid":     "destination account id must be a UUID",
		"nefield":  "source and destination accounts must differ",
	},
}

// New returns a validator with the custom tags registered.
func New() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	mustRegister(validate, "currency", ValidCurrency)
	mustRegister(validate, "positive_decimal", PositiveDecimal)
	mustRegister(validate, "non_negative_decimal", NonNegativeDecimal)
	mustRegister(validate, "money", Money)
	return validate
}

func mustRegister(validate *validator.Validate, tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

// FormatValidationError formats validator errors into a readable message.
func FormatValidationError(err error) string {
	var ve validator.ValidationErrors
	if stderrors.As(err, &ve) {
		messages := make([]string, 0, len(ve))
		for _, fieldErr := range ve {
			messages = append(messages, fieldMessage(fieldErr))
		}
		return strings.Join(messages, "; ")
	}
	return "invalid input"
}

// FailedTag returns the tag of the first failed rule on field, or "".
func FailedTag(err error, field string) string {
	var ve validator.ValidationErrors
	if !stderrors.As(err, &ve) {
		return ""
	}
	for _, fieldErr := range ve {
		if fieldErr.Field() == field {
			return fieldErr.Tag()
		}
	}
	return ""
}

func fieldMessage(fieldErr validator.FieldError) string {
	if msg, ok := CustomErrorMessage[fieldErr.Field()][fieldErr.Tag()]; ok {
		return msg
	}
	return fmt.Sprintf("field '%s' failed validation on the '%s' rule", fieldErr.Field(), fieldErr.Tag())
}
