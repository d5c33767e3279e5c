package entity

import (
	"strings"
	"time"
)

// Fields is the fixed-shape invoice field mapping produced by extraction and
// optionally edited by a reviewer. Nil means "not found".
type Fields struct {
	BillerName    *string `json:"biller_name"`
	BillerAddress *string `json:"biller_address"`
	TotalAmount   *Amount `json:"total_amount"`
	DueDate       *string `json:"due_date"`
	Error         string  `json:"error,omitempty"`
}

// FailedFields is the all-null mapping returned when extraction could not produce anything.
func FailedFields(reason string) Fields {
	if strings.TrimSpace(reason) == "" {
		reason = "extraction failed"
	}
	return Fields{Error: reason}
}

// Failed reports whether the mapping carries an extraction error marker.
func (f Fields) Failed() bool { return f.Error != "" }

// Edit is a reviewer's partial change set; nil members leave the field as extracted.
type Edit struct {
	BillerName    *string `json:"biller_name,omitempty"`
	BillerAddress *string `json:"biller_address,omitempty"`
	TotalAmount   *string `json:"total_amount,omitempty"`
	DueDate       *string `json:"due_date,omitempty"`
}

// Empty reports whether the edit changes nothing.
func (e Edit) Empty() bool {
	return e.BillerName == nil && e.BillerAddress == nil && e.TotalAmount == nil && e.DueDate == nil
}

// Apply overlays the edit on f. Any edit clears the extraction error marker,
// since the reviewer has taken ownership of the values. A blank edited amount
// becomes 0 so it is rejected by the positive-amount rule rather than read as missing.
func (e Edit) Apply(f Fields) Fields {
	if e.Empty() {
		return f
	}
	out := f
	out.Error = ""
	if e.BillerName != nil {
		out.BillerName = e.BillerName
	}
	if e.BillerAddress != nil {
		out.BillerAddress = e.BillerAddress
	}
	if e.TotalAmount != nil {
		s := strings.TrimSpace(*e.TotalAmount)
		if s == "" || strings.EqualFold(s, "none") {
			s = "0"
		}
		out.TotalAmount = ParseAmount(s)
	}
	if e.DueDate != nil {
		out.DueDate = e.DueDate
	}
	return out
}

// VerdictStatus is the validator outcome.
type VerdictStatus string

const (
	VerdictValid      VerdictStatus = "valid"
	VerdictIncomplete VerdictStatus = "incomplete"
)

// Verdict is the validation result; Status is valid iff Errors is empty.
type Verdict struct {
	Status VerdictStatus `json:"status"`
	Errors []string      `json:"errors"`
}

// Valid is shorthand for Status == VerdictValid.
func (v Verdict) Valid() bool { return v.Status == VerdictValid }

// Decision is the write/no-write routing for a verdict.
type Decision struct {
	ShouldWrite bool    `json:"should_write"`
	Reason      string  `json:"reason"`
	DataToWrite *Fields `json:"data_to_write"`
}

// StoredInvoice is a persisted record.
type StoredInvoice struct {
	ID int64 `json:"id"`
	Fields
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// WriteResult is the persistence boundary output.
type WriteResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	InvoiceID *int64 `json:"invoice_id"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string { return &s }

// Deref returns the pointed-to string or "".
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
