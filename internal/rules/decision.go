package rules

import (
	"strings"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// ReasonValid is the decision reason for a passing verdict.
const ReasonValid = "Invoice validation passed"

// Decide routes a verdict: only a valid verdict writes, and it writes the
// fields exactly as given.
func Decide(v entity.Verdict, f entity.Fields) entity.Decision {
	if v.Valid() {
		data := f
		return entity.Decision{ShouldWrite: true, Reason: ReasonValid, DataToWrite: &data}
	}
	return entity.Decision{
		ShouldWrite: false,
		Reason:      "Validation failed: " + strings.Join(v.Errors, ", "),
		DataToWrite: nil,
	}
}
