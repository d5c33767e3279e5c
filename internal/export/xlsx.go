package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

// SheetName is the worksheet holding the invoice rows.
const SheetName = "Invoices"

var headers = []string{
	"ID",
	"Biller Name",
	"Biller Address",
	"Total Amount",
	"Due Date",
	"Created At",
	"Status",
}

// InvoiceLister is the read side of a persistence sink.
type InvoiceLister interface {
	List(ctx context.Context) ([]entity.StoredInvoice, error)
}

// Service renders stored invoices as an XLSX workbook.
type Service struct {
	invoices InvoiceLister
	logger   *slog.Logger
}

func NewService(invoices InvoiceLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, logger: logger}
}

// InvoicesXLSX returns the workbook bytes, one row per stored invoice in id order.
func (s *Service) InvoicesXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	recs, err := s.invoices.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// rename the default sheet instead of leaving an empty Sheet1 behind
	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(SheetName, cell, h)
	}

	for i, r := range recs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(SheetName, cell, v)
		}

		write(1, r.ID)
		write(2, entity.Deref(r.BillerName))
		write(3, entity.Deref(r.BillerAddress))
		write(4, amountCell(r.TotalAmount))
		write(5, entity.Deref(r.DueDate))
		write(6, r.CreatedAt.UTC().Format(time.RFC3339))
		write(7, r.Status)
	}

	_ = f.SetColWidth(SheetName, "A", "A", 8)
	_ = f.SetColWidth(SheetName, "B", "B", 32)
	_ = f.SetColWidth(SheetName, "C", "C", 48)
	_ = f.SetColWidth(SheetName, "D", "E", 14)
	_ = f.SetColWidth(SheetName, "F", "F", 22)
	_ = f.SetColWidth(SheetName, "G", "G", 10)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// amountCell keeps numbers numeric in the sheet.
func amountCell(a *entity.Amount) any {
	if a == nil {
		return ""
	}
	if v, err := a.Float64(); err == nil {
		return v
	}
	return a.String()
}
