package common

import (
	"fmt"
	"reflect"
	"strings"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s' with value '%v': %s", e.Field, e.Value, e.Message)
}

// Validator collects rule violations in the order rules are applied.
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors. Rules run in order; a rule
// returning Stop ends evaluation of the remaining rules for this field.
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		err := rule(fieldName, value)
		if err == nil {
			continue
		}
		if err != Stop {
			v.errors = append(v.errors, *err)
		}
		break
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Messages returns the bare messages in collection order; never nil.
func (v *Validator) Messages() []string {
	out := make([]string, 0, len(v.errors))
	for _, err := range v.errors {
		out = append(out, err.Message)
	}
	return out
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Stop is returned by a rule to end a field's chain without recording an error.
var Stop = &ValidationError{Message: "stop"}

// Required fails when value is nil, a nil pointer, or a blank string.
func Required(fieldName string, value interface{}) *ValidationError {
	missing := &ValidationError{Field: fieldName, Value: value, Message: "Missing required field: " + fieldName}
	if isNil(value) {
		return missing
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return missing
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return missing
		}
	}
	return nil
}

// Optional stops the chain for absent or blank values so later rules only see real input.
func Optional(_ string, value interface{}) *ValidationError {
	if isNil(value) {
		return Stop
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return Stop
		}
	case *string:
		if v == nil || strings.TrimSpace(*v) == "" {
			return Stop
		}
	}
	return nil
}

// isNil also catches typed nil pointers stored in an interface.
func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Ptr && rv.IsNil()
}

// ValidateAndReturnError wraps the collected violations in ErrValidation.
func ValidateAndReturnError(validator *Validator) error {
	if validator.HasErrors() {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(validator.Messages(), "; "))
	}
	return nil
}
