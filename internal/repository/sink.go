package repository

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-pipeline/internal/common"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

const (
	MsgWriteOK     = "Invoice successfully written to database"
	msgWriteFailed = "Error writing to database: "
)

// InvoiceSink durably appends validated invoices. Store never returns an
// error; failures are reported in the WriteResult and leave earlier records
// untouched. Ids are count+1 and assignment is serialized per sink.
type InvoiceSink interface {
	Store(ctx context.Context, fields entity.Fields) entity.WriteResult
	List(ctx context.Context) ([]entity.StoredInvoice, error)
	Get(ctx context.Context, id int64) (entity.StoredInvoice, error)
	Close() error
}

func writeOK(id int64) entity.WriteResult {
	return entity.WriteResult{Success: true, Message: MsgWriteOK, InvoiceID: &id}
}

func writeFailed(err error) entity.WriteResult {
	return entity.WriteResult{Success: false, Message: msgWriteFailed + err.Error()}
}

func notFound(id int64) error {
	return fmt.Errorf("%w: invoice %d", errNotFound, id)
}

// dbError marks a storage failure so callers can tell it from a missing record.
func dbError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrDatabase, op, err)
}
