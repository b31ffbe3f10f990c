package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	apperrors "github.com/frahmantamala/custody-ledger/internal"
	"github.com/frahmantamala/custody-ledger/internal/core/money"
)

// maxZoneOffset lets a member at UTC+14 enter today's date.
const maxZoneOffset = 14 * time.Hour

var (
	once     sync.Once
	instance *validator.Validate
)

// Validator returns the shared validator. Decimals reach tags as their exact string form: the
// amount tag takes strictly positive ledger amounts and the money tag also allows zero.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(decimal.Decimal); ok {
				return d.String()
			}
			return nil
		}, decimal.Decimal{})
		v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
			if d, ok := field.Interface().(Date); ok {
				return d.Time
			}
			return nil
		}, Date{})
		_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
			d, ok := decimalOf(fl)
			return ok && money.Validate(fl.FieldName(), d) == nil
		})
		_ = v.RegisterValidation("money", func(fl validator.FieldLevel) bool {
			d, ok := decimalOf(fl)
			return ok && !d.IsNegative() && money.Fits(d)
		})
		_ = v.RegisterValidation("notfuture", func(fl validator.FieldLevel) bool {
			t, ok := fl.Field().Interface().(time.Time)
			return ok && !t.After(time.Now().Add(maxZoneOffset))
		})
		instance = v
	})
	return instance
}

func decimalOf(fl validator.FieldLevel) (decimal.Decimal, bool) {
	if fl.Field().Kind() != reflect.String {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(fl.Field().String())
	return d, err == nil
}

// Struct validates s and maps failures to a validation AppError with one entry per field.
func Struct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.NewValidationError(err.Error(), apperrors.ErrCodeValidationFailed)
	}

	out := make([]apperrors.ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperrors.ValidationError{
			Field:   fe.Field(),
			Message: message(fe),
			Code:    string(codeFor(fe)),
		})
	}
	return apperrors.NewValidationError("Validation failed", apperrors.ErrCodeValidationFailed).
		WithDetails(apperrors.ValidationErrors{Errors: out})
}

func codeFor(fe validator.FieldError) apperrors.ErrorCode {
	switch fe.Tag() {
	case "amount", "money":
		return apperrors.ErrCodeInvalidAmount
	case "notfuture":
		return apperrors.ErrCodeInvalidDate
	}
	return apperrors.ErrCodeValidationFailed
}

func message(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "email":
		return fmt.Sprintf("%s must be a valid email", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "amount":
		if d, err := decimal.NewFromString(fmt.Sprint(fe.Value())); err == nil {
			if err := money.Validate(field, d); err != nil {
				return err.Error()
			}
		}
		return fmt.Sprintf("%s must be a positive amount", field)
	case "money":
		return fmt.Sprintf("%s must be zero or more with at most two decimal places, up to %s", field, money.Format(money.Max))
	case "notfuture":
		return fmt.Sprintf("%s cannot be in the future", field)
	}
	return fmt.Sprintf("%s is invalid", field)
}
