package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator validates request structs via `validate` tags
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate validates a struct
func (v *Validator) Validate(s interface{}) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return err
	}

	msgs := make([]string, 0, len(errs))
	for _, fe := range errs {
		msgs = append(msgs, fmt.Sprintf("%s: failed on %q", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// FieldError is one field validation failure. It marshals to the
// single-entry object form the API returns: {"field": "message"}.
type FieldError struct {
	Field   string
	Message string
}

// MarshalJSON implements json.Marshaler
func (e FieldError) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{e.Field: e.Message})
}

// FieldErrors collects per-field failures. Validation never
// short-circuits: every failing field is reported in one response.
type FieldErrors []FieldError

// Add appends a failure
func (e *FieldErrors) Add(field, message string) {
	*e = append(*e, FieldError{Field: field, Message: message})
}

// Any reports whether any failure was collected
func (e FieldErrors) Any() bool {
	return len(e) > 0
}
