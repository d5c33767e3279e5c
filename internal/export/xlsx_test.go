package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

type staticLister struct {
	recs []entity.StoredInvoice
	err  error
}

func (s staticLister) List(context.Context) ([]entity.StoredInvoice, error) { return s.recs, s.err }

func TestInvoicesXLSX(t *testing.T) {
	recs := []entity.StoredInvoice{
		{
			ID: 1,
			Fields: entity.Fields{
				BillerName:  entity.StringPtr("Acme Co."),
				TotalAmount: entity.NewAmount(150.5),
				DueDate:     entity.StringPtr("2025-01-15"),
			},
			CreatedAt: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
			Status:    "stored",
		},
		{ID: 2, Fields: entity.Fields{BillerName: entity.StringPtr("شركة")}, Status: "stored"},
	}
	svc := NewService(staticLister{recs: recs}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	b, err := svc.InvoicesXLSX(context.Background())
	if err != nil {
		t.Fatalf("export: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[0][1] != "Biller Name" {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != "Acme Co." || rows[1][3] != "150.5" || rows[1][5] != "2025-01-02T03:04:05Z" {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][1] != "شركة" {
		t.Errorf("row 2 = %v", rows[2])
	}
	if got := f.GetSheetList(); len(got) != 1 {
		t.Errorf("sheets = %v", got)
	}
}

func TestInvoicesXLSXListError(t *testing.T) {
	svc := NewService(staticLister{err: errors.New("boom")}, nil)
	if _, err := svc.InvoicesXLSX(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
