package services

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// newValidator создает валидатор, который понимает decimal.Decimal:
// теги gt/gte/required применяются к числовому значению суммы.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		switch d := field.Interface().(type) {
		case decimal.Decimal:
			f, _ := d.Float64()
			return f
		case decimal.NullDecimal:
			if !d.Valid {
				return nil
			}
			f, _ := d.Decimal.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{}, decimal.NullDecimal{})
	return v
}

// fieldErrors сопоставляет поле запроса с ошибкой домена
var fieldErrors = map[string]error{
	"Amount":       ErrInvalidAmount,
	"TargetAmount": ErrInvalidAmount,
	"Direction":    ErrInvalidDirection,
	"Mode":         ErrInvalidMode,
}

// validateRequest валидирует DTO и возвращает ошибку домена с текстом
// всех нарушений. Тип ошибки определяется первым неверным полем.
func validateRequest(v *validator.Validate, dto interface{}) error {
	err := v.Struct(dto)
	if err == nil {
		return nil
	}

	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	kind := ErrInvalidInput
	var errorMessages []string
	for i, e := range validationErrors {
		if i == 0 {
			if mapped, ok := fieldErrors[e.Field()]; ok {
				kind = mapped
			}
		}
		switch e.Tag() {
		case "required":
			errorMessages = append(errorMessages, "поле "+e.Field()+" обязательно")
		case "gt":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше "+e.Param())
		case "gte":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть больше или равно "+e.Param())
		case "min":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать минимум "+e.Param()+" символов")
		case "max":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно содержать максимум "+e.Param()+" символов")
		case "oneof":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть одним из: "+e.Param())
		case "datetime":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть датой в формате "+e.Param())
		case "email":
			errorMessages = append(errorMessages, "поле "+e.Field()+" должно быть email адресом")
		default:
			errorMessages = append(errorMessages, "поле "+e.Field()+" заполнено неверно")
		}
	}
	return fmt.Errorf("%w: %s", kind, strings.Join(errorMessages, "; "))
}
