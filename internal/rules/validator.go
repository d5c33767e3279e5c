// Package rules holds the pure invoice business rules: field validation and
// the write/no-write decision that routes on its verdict.
package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
	"github.com/joseph-ayodele/invoice-pipeline/internal/utils"
)

// Validate applies the invoice rules to f. Every violated rule is reported,
// in a fixed order: biller_name, total_amount, due_date.
func Validate(f entity.Fields) entity.Verdict {
	v := common.NewValidator().
		Field("biller_name", f.BillerName, common.Required).
		Field("total_amount", f.TotalAmount, common.Required, Number, Positive).
		Field("due_date", f.DueDate, common.Optional, Date)

	if !v.HasErrors() {
		return entity.Verdict{Status: entity.VerdictValid, Errors: []string{}}
	}
	return entity.Verdict{Status: entity.VerdictIncomplete, Errors: v.Messages()}
}

// Number requires an amount that coerces to a finite number.
func Number(fieldName string, value interface{}) *common.ValidationError {
	if _, err := amountValue(value); err != nil {
		return &common.ValidationError{Field: fieldName, Value: value, Message: fieldName + " must be a valid number"}
	}
	return nil
}

// Positive requires a strictly positive amount.
func Positive(fieldName string, value interface{}) *common.ValidationError {
	f, err := amountValue(value)
	if err != nil {
		return nil
	}
	if f <= 0 {
		return &common.ValidationError{Field: fieldName, Value: value, Message: fieldName + " must be a positive number"}
	}
	return nil
}

// Date requires a value the permissive date parser understands.
func Date(fieldName string, value interface{}) *common.ValidationError {
	var s string
	switch t := value.(type) {
	case string:
		s = t
	case *string:
		s = utils.StrOrEmpty(t)
	default:
		s = fmt.Sprint(value)
	}
	if _, err := ParseDate(s); err != nil {
		return &common.ValidationError{Field: fieldName, Value: value, Message: fieldName + " must be a valid date format"}
	}
	return nil
}

// ParseDate parses s with dateparse after folding Arabic-Indic digits.
// It never panics; parser panics are reported as errors.
func ParseDate(s string) (t time.Time, err error) {
	s = strings.TrimSpace(utils.FoldDigits(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unparseable date %q: %v", s, r)
		}
	}()
	return dateparse.ParseAny(s)
}

func amountValue(value interface{}) (float64, error) {
	switch a := value.(type) {
	case *entity.Amount:
		if a == nil {
			return 0, fmt.Errorf("missing amount")
		}
		return a.Float64()
	case entity.Amount:
		return a.Float64()
	case float64:
		return a, nil
	}
	return 0, fmt.Errorf("unsupported amount type %T", value)
}
