package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Validator returns the shared validator.
// - Uses JSON tag names in errors.
// - Registers alias tags for common validations.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New()
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return fld.Name
			}
			return name
		})
		v.RegisterAlias("nonzero", "required") // convenience
		v.RegisterAlias("port", "min=1,max=65535")
		validate = v
	})
	return validate
}

// Struct validates s and returns nil or the raw validator error.
func Struct(s any) error {
	return Validator().Struct(s)
}

// IsEmail reports whether s is a single syntactically valid address.
func IsEmail(s string) bool {
	return Validator().Var(s, "required,email") == nil
}

// ToDetails converts validation errors into a map[field]message.
func ToDetails(err error) map[string]string {
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		out := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			out[fe.Field()] = formatFieldError(fe)
		}
		return out
	}

	// Fallback
	return map[string]string{"config": err.Error()}
}

// Describe flattens ToDetails into a stable single-line message.
func Describe(err error) string {
	details := ToDetails(err)
	keys := make([]string, 0, len(details))
	for k := range details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+details[k])
	}
	return strings.Join(parts, "; ")
}

func formatFieldError(fe validator.FieldError) string {
	tag := fe.Tag()
	param := fe.Param()
	kind := fe.Kind()

	switch tag {
	// ===== PRESENCE/REQUIRED VALIDATIONS =====
	case "required", "nonzero":
		return "is required"
	case "required_if":
		return "is required if " + param
	case "required_unless":
		return "is required unless " + param

	// ===== STRING FORMAT VALIDATIONS =====
	case "email":
		return "must be a valid email"
	case "hostname", "hostname_rfc1123":
		return "must be a valid hostname"

	// ===== SIZE/LENGTH VALIDATIONS =====
	case "min":
		if isNumberKind(kind) {
			return "must be at least " + param
		}
		return "must be at least " + param + " characters long"
	case "max":
		if isNumberKind(kind) {
			return "must be at most " + param
		}
		return "must be at most " + param + " characters long"
	case "port":
		return "must be a valid port"

	// ===== NUMERIC COMPARISON VALIDATIONS =====
	case "gt":
		return "must be greater than " + param
	case "gte":
		return "must be greater than or equal to " + param

	// ===== INCLUSION/EXCLUSION VALIDATIONS =====
	case "oneof":
		return "must be one of: " + strings.Join(strings.Fields(param), ", ")

	// ===== DEFAULT FALLBACK =====
	default:
		if param != "" {
			return fmt.Sprintf("validation failed for '%s' with parameter '%s'", tag, param)
		}
		return fmt.Sprintf("validation failed for '%s'", tag)
	}
}

func isNumberKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}
