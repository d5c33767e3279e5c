package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/invoice-pipeline/constants"
	"github.com/joseph-ayodele/invoice-pipeline/internal/entity"
)

//go:embed schema.sql
var schemaSQL string

const invoicesTable = "invoices"

var invoiceColumns = []string{"id", "biller_name", "biller_address", "total_amount", "due_date", "created_at", "status"}

// SQLStore keeps invoices in a sqlite or postgres table. Each write counts
// and inserts inside one transaction.
type SQLStore struct {
	mu     sync.Mutex
	db     *DB
	now    func() time.Time
	logger *slog.Logger
}

// NewSQLStore applies the schema and returns the store.
func NewSQLStore(ctx context.Context, db *DB, logger *slog.Logger) (*SQLStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, stmt := range strings.Split(schemaSQL, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := db.Driver.Exec(ctx, stmt, []any{}, nil); err != nil {
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}
	return &SQLStore{db: db, now: time.Now, logger: logger}, nil
}

func (s *SQLStore) Store(ctx context.Context, fields entity.Fields) entity.WriteResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.insert(ctx, fields)
	if err != nil {
		s.logger.Error("store.sql.write_failed", "dialect", s.db.Dialect, "error", err)
		return writeFailed(err)
	}
	s.logger.Info("store.sql.write_ok", "dialect", s.db.Dialect, "invoice_id", id)
	return writeOK(id)
}

func (s *SQLStore) insert(ctx context.Context, f entity.Fields) (id int64, err error) {
	var amount any
	if f.TotalAmount != nil {
		v, err := f.TotalAmount.Float64()
		if err != nil {
			return 0, fmt.Errorf("total_amount %q is not numeric", f.TotalAmount.String())
		}
		amount = v
	}

	tx, err := s.db.Driver.Tx(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				s.logger.Warn("store.sql.rollback_failed", "error", rerr)
			}
		}
	}()

	q, args := entsql.Dialect(s.db.Dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(invoicesTable)).
		Query()
	var rows entsql.Rows
	if err = tx.Query(ctx, q, args, &rows); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	var n int64
	if rows.Next() {
		err = rows.Scan(&n)
	}
	if cerr := rows.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}

	id = n + 1
	q, args = entsql.Dialect(s.db.Dialect).
		Insert(invoicesTable).
		Columns(invoiceColumns...).
		Values(
			id,
			nullable(f.BillerName),
			nullable(f.BillerAddress),
			amount,
			nullable(f.DueDate),
			s.now().UTC().Truncate(time.Second).Format(time.RFC3339),
			constants.InvoiceStatusStored,
		).
		Query()
	if err = tx.Exec(ctx, q, args, nil); err != nil {
		return 0, fmt.Errorf("insert: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

func (s *SQLStore) List(ctx context.Context) ([]entity.StoredInvoice, error) {
	q, args := entsql.Dialect(s.db.Dialect).
		Select(invoiceColumns...).
		From(entsql.Table(invoicesTable)).
		OrderBy("id").
		Query()
	return s.query(ctx, q, args)
}

func (s *SQLStore) Get(ctx context.Context, id int64) (entity.StoredInvoice, error) {
	q, args := entsql.Dialect(s.db.Dialect).
		Select(invoiceColumns...).
		From(entsql.Table(invoicesTable)).
		Where(entsql.EQ("id", id)).
		Query()
	recs, err := s.query(ctx, q, args)
	if err != nil {
		return entity.StoredInvoice{}, err
	}
	if len(recs) == 0 {
		return entity.StoredInvoice{}, notFound(id)
	}
	return recs[0], nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) query(ctx context.Context, q string, args []any) ([]entity.StoredInvoice, error) {
	var rows entsql.Rows
	if err := s.db.Driver.Query(ctx, q, args, &rows); err != nil {
		return nil, dbError("query invoices", err)
	}
	defer rows.Close()

	out := []entity.StoredInvoice{}
	for rows.Next() {
		var (
			rec                   entity.StoredInvoice
			name, addr, due       sql.NullString
			amount                sql.NullFloat64
			createdAt, recordStat string
		)
		if err := rows.Scan(&rec.ID, &name, &addr, &amount, &due, &createdAt, &recordStat); err != nil {
			return nil, dbError("scan invoice", err)
		}
		rec.BillerName = fromNull(name)
		rec.BillerAddress = fromNull(addr)
		rec.DueDate = fromNull(due)
		if amount.Valid {
			rec.TotalAmount = entity.NewAmount(amount.Float64)
		}
		if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
			rec.CreatedAt = t
		}
		rec.Status = recordStat
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, dbError("read invoices", err)
	}
	return out, nil
}

func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func fromNull(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return entity.StringPtr(ns.String)
}
