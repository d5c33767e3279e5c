package llm

import (
	"context"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// Backend is one model endpoint in the extraction chain. Complete returns
// the raw message content; parsing happens in the chain.
type Backend interface {
	Name() string
	Complete(ctx context.Context, system, user string) (string, error)
}

// FieldExtractor is stage 2: text -> invoice fields.
// It never fails; problems surface as entity.Fields.Error.
type FieldExtractor interface {
	Extract(ctx context.Context, rawText string) entity.Fields
}
