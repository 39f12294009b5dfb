// Package validation wraps a shared go-playground validator and turns its
// errors into field keyed messages for 422 responses.
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
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is a single failed rule on a request field.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

// RequestValidationError collects every field that failed validation.
type RequestValidationError struct {
	fields []FieldError
}

// NewFieldError builds a one-field validation error for checks done outside struct tags.
func NewFieldError(field, message string) *RequestValidationError {
	return &RequestValidationError{fields: []FieldError{{Field: field, Tag: "custom", Message: message}}}
}

// Add appends a field failure and returns the receiver.
func (ve *RequestValidationError) Add(field, message string) *RequestValidationError {
	ve.fields = append(ve.fields, FieldError{Field: field, Tag: "custom", Message: message})
	return ve
}

func (ve *RequestValidationError) Fields() []FieldError {
	return ve.fields
}

func (ve *RequestValidationError) Error() string {
	if len(ve.fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve.fields))
	for _, f := range ve.fields {
		msgs = append(msgs, f.Message)
	}
	return strings.Join(msgs, "; ")
}

// FieldMessages groups messages by json field name.
func (ve *RequestValidationError) FieldMessages() map[string][]string {
	out := make(map[string][]string, len(ve.fields))
	for _, f := range ve.fields {
		out[f.Field] = append(out[f.Field], f.Message)
	}
	return out
}

// FieldNames returns the failed fields in sorted order.
func (ve *RequestValidationError) FieldNames() []string {
	seen := make(map[string]struct{}, len(ve.fields))
	var names []string
	for _, f := range ve.fields {
		if _, ok := seen[f.Field]; ok {
			continue
		}
		seen[f.Field] = struct{}{}
		names = append(names, f.Field)
	}
	sort.Strings(names)
	return names
}

// GetValidator returns the shared validator, reporting json tag names as field names.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct returns nil or a *RequestValidationError.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return NewFieldError("_", err.Error())
	}

	out := &RequestValidationError{}
	for _, fe := range verrs {
		field := jsonFieldPath(fe)
		out.fields = append(out.fields, FieldError{
			Field:   field,
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: messageFor(field, fe),
		})
	}
	return out
}

// jsonFieldPath drops the top-level struct name from the namespace, so
// "CameraInput.coordinates[0]" becomes "coordinates[0]".
func jsonFieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func messageFor(field string, fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if", "required_with":
		return fmt.Sprintf("The %s field is required.", field)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must be at least %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s.", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s field must not be greater than %s characters.", field, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s.", field, fe.Param())
	case "gt":
		return fmt.Sprintf("The %s field must be greater than %s.", field, fe.Param())
	case "gte":
		return fmt.Sprintf("The %s field must be at least %s.", field, fe.Param())
	case "lt":
		return fmt.Sprintf("The %s field must be less than %s.", field, fe.Param())
	case "lte":
		return fmt.Sprintf("The %s field must not be greater than %s.", field, fe.Param())
	case "len":
		return fmt.Sprintf("The %s field must contain %s items.", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("The selected %s is invalid.", field)
	case "email":
		return fmt.Sprintf("The %s field must be a valid email address.", field)
	case "eqfield":
		return fmt.Sprintf("The %s field confirmation does not match.", field)
	case "latitude", "longitude":
		return fmt.Sprintf("The %s field must be a valid %s.", field, fe.Tag())
	default:
		return fmt.Sprintf("The %s field is invalid (%s).", field, fe.Tag())
	}
}
