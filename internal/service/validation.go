package service

import (
	"github.com/go-playground/validator/v10"

	"async-transfers/internal/errors"
	"async-transfers/internal/validation"
)

// CurrencyCatalog reports which currencies the service can convert.
type CurrencyCatalog interface {
	Supports(currency string) bool
}

// validationError maps validator failures onto the service's error codes.
func validationError(err error) *errors.AppError {
	switch {
	case validation.FailedTag(err, "DestinationAccountID") == "nefield":
		return errors.ErrSameAccountTransfer
	case validation.FailedTag(err, "Amount") == "positive_decimal":
		return errors.ErrInvalidAmount
	case validation.FailedTag(err, "Amount") == "money",
		validation.FailedTag(err, "InitialBalance") == "money":
		return errors.NewAppError(errors.InvalidAmount, "amount exceeds supported precision").
			WithDetails(validation.FormatValidationError(err))
	case validation.FailedTag(err, "InitialBalance") == "non_negative_decimal":
		return errors.NewAppError(errors.InvalidAmount, "initial balance must not be negative")
	case validation.FailedTag(err, "SourceAccountID") == "uuid",
		validation.FailedTag(err, "DestinationAccountID") == "uuid",
		validation.FailedTag(err, "AccountID") == "uuid":
		return errors.ErrInvalidAccountID.WithDetails(validation.FormatValidationError(err))
	}
	return errors.NewAppError(errors.InvalidInput, "invalid input").WithDetails(validation.FormatValidationError(err))
}

func validateStruct(validate *validator.Validate, input interface{}) error {
	if err := validate.Struct(input); err != nil {
		return validationError(err)
	}
	return nil
}

func checkCurrency(currencies CurrencyCatalog, currency string) error {
	if currencies != nil && !currencies.Supports(currency) {
		return errors.ErrUnsupportedCurrency.WithDetails(currency)
	}
	return nil
}
