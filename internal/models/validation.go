package models

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// ValidationError, ağ çağrısı yapılmadan önce yakalanan hatalı veya eksik girdiyi temsil eder.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// decimal alanlar gte/lte kurallarıyla karşılaştırılabilsin
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ValidateProductInput, yeni ürün formunu doğrular.
func ValidateProductInput(in ProductInput) error {
	if err := validate.Struct(in); err != nil {
		return toValidationError(err)
	}
	return nil
}

// ValidateProductPatch, ürün güncelleme formunu doğrular.
func ValidateProductPatch(p ProductPatch) error {
	if p.Empty() {
		return &ValidationError{Message: "Nothing to update"}
	}
	if err := validate.Struct(p); err != nil {
		return toValidationError(err)
	}
	return nil
}

// ValidateCredentials, giriş veya kayıt formunu doğrular. Kayıtta rol de kontrol edilir.
func ValidateCredentials(c Credentials, signup bool) error {
	if err := validate.Struct(c); err != nil {
		return toValidationError(err)
	}
	if signup && c.Role != "" {
		if _, ok := ParseRole(string(c.Role)); !ok {
			return &ValidationError{Field: "role", Message: "Role must be shopper or admin"}
		}
	}
	return nil
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return &ValidationError{Message: err.Error()}
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: messageFor(fe.Field())}
}

func messageFor(field string) string {
	switch field {
	case "name", "sku":
		return "Name and SKU are required fields"
	case "quantity", "price":
		return "Quantity and price must be positive numbers"
	case "username", "password":
		return "Username and password are required"
	default:
		return "Invalid " + field
	}
}
