package rules

import (
	"reflect"
	"testing"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

func fields(name *string, amount *entity.Amount, due *string) entity.Fields {
	return entity.Fields{BillerName: name, TotalAmount: amount, DueDate: due}
}

func TestValidate(t *testing.T) {
	s := entity.StringPtr
	tests := []struct {
		name   string
		in     entity.Fields
		status entity.VerdictStatus
		errs   []string
	}{
		{
			name:   "all good",
			in:     fields(s("Acme Co."), entity.NewAmount(150), s("2025-03-01")),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "due date optional",
			in:     fields(s("Acme Co."), entity.NewAmount(10.5), nil),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "blank due date treated as absent",
			in:     fields(s("Acme Co."), entity.NewAmount(10.5), s("  ")),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "long-form date",
			in:     fields(s("Acme Co."), entity.NewAmount(1), s("March 1, 2025")),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "arabic-indic digits",
			in:     fields(s("شركة"), entity.ParseAmount("٢٥٠٫٥٠"), s("٢٠٢٥-٠٣-٠١")),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "numeric string amount",
			in:     fields(s("Acme"), entity.ParseAmount("99.90"), nil),
			status: entity.VerdictValid,
			errs:   []string{},
		},
		{
			name:   "missing everything",
			in:     entity.Fields{},
			status: entity.VerdictIncomplete,
			errs:   []string{"Missing required field: biller_name", "Missing required field: total_amount"},
		},
		{
			name:   "blank biller name",
			in:     fields(s("   "), entity.NewAmount(5), nil),
			status: entity.VerdictIncomplete,
			errs:   []string{"Missing required field: biller_name"},
		},
		{
			name:   "zero amount",
			in:     fields(s("Acme"), entity.NewAmount(0), nil),
			status: entity.VerdictIncomplete,
			errs:   []string{"total_amount must be a positive number"},
		},
		{
			name:   "thousands separator is not a number",
			in:     fields(s("Acme"), entity.ParseAmount("1,250.00"), nil),
			status: entity.VerdictIncomplete,
			errs:   []string{"total_amount must be a valid number"},
		},
		{
			name:   "non numeric amount",
			in:     fields(s("Acme"), entity.ParseAmount("abc"), nil),
			status: entity.VerdictIncomplete,
			errs:   []string{"total_amount must be a valid number"},
		},
		{
			name:   "nan amount",
			in:     fields(s("Acme"), entity.ParseAmount("NaN"), nil),
			status: entity.VerdictIncomplete,
			errs:   []string{"total_amount must be a valid number"},
		},
		{
			name:   "three violations in order",
			in:     fields(nil, entity.NewAmount(-5), s("not-a-date")),
			status: entity.VerdictIncomplete,
			errs: []string{
				"Missing required field: biller_name",
				"total_amount must be a positive number",
				"due_date must be a valid date format",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Validate(tt.in)
			if got.Status != tt.status {
				t.Errorf("status = %q, want %q (errors %v)", got.Status, tt.status, got.Errors)
			}
			if !reflect.DeepEqual(got.Errors, tt.errs) {
				t.Errorf("errors = %#v, want %#v", got.Errors, tt.errs)
			}
			if got.Valid() != (len(got.Errors) == 0) {
				t.Errorf("valid/errors mismatch: %+v", got)
			}
		})
	}
}

func TestValidateIsIdempotent(t *testing.T) {
	in := fields(nil, entity.ParseAmount("x"), entity.StringPtr("soon"))
	first := Validate(in)
	second := Validate(in)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("verdicts differ: %+v vs %+v", first, second)
	}
}

func TestDecide(t *testing.T) {
	in := fields(entity.StringPtr("Acme Co."), entity.NewAmount(150), entity.StringPtr("2025-03-01"))

	d := Decide(Validate(in), in)
	if !d.ShouldWrite || d.Reason != ReasonValid {
		t.Fatalf("decision = %+v, want write", d)
	}
	if d.DataToWrite == nil || !reflect.DeepEqual(*d.DataToWrite, in) {
		t.Fatalf("data_to_write = %+v, want input unchanged", d.DataToWrite)
	}

	bad := fields(nil, entity.NewAmount(-5), nil)
	d = Decide(Validate(bad), bad)
	if d.ShouldWrite || d.DataToWrite != nil {
		t.Fatalf("decision = %+v, want no write", d)
	}
	want := "Validation failed: Missing required field: biller_name, total_amount must be a positive number"
	if d.Reason != want {
		t.Errorf("reason = %q, want %q", d.Reason, want)
	}
}

func TestParseDateNeverPanics(t *testing.T) {
	for _, in := range []string{"", "0", "////", "2025-13-45", "1/2/3/4/5/6", "٢٠٢٥/٠٣/٠١"} {
		_, _ = ParseDate(in)
	}
}
