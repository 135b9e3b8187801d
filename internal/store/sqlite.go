package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/shopspring/decimal"

	_ "modernc.org/sqlite"
)

const sqliteOrderColumns = "id, COALESCE(order_number, CAST(id AS TEXT)), total, currency, status, COALESCE(payment_request_id, ''), paid_at, created_at"

// SQLite is a single-file OrderStore. Writes go through one connection, so
// the conditional UPDATE in MarkPaid acts as a compare-and-swap on status.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and migrates) the database at path. ":memory:" is
// accepted for tests.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	for _, p := range []string{"PRAGMA foreign_keys = ON;", "PRAGMA busy_timeout = 5000;"} {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, err
		}
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func scanSQLiteOrder(row rowScanner) (*domain.Order, error) {
	var (
		o       domain.Order
		total   string
		status  string
		paid    sql.NullString
		created string
	)
	if err := row.Scan(&o.ID, &o.Number, &total, &o.Total.Currency, &status, &o.PaymentRequestID, &paid, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	var err error
	if o.Total.Value, err = decimal.NewFromString(total); err != nil {
		return nil, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(status)
	if o.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return nil, fmt.Errorf("order %d created_at: %w", o.ID, err)
	}
	if paid.Valid {
		t, err := time.Parse(time.RFC3339Nano, paid.String)
		if err != nil {
			return nil, fmt.Errorf("order %d paid_at: %w", o.ID, err)
		}
		o.PaidAt = &t
	}
	return &o, nil
}

func (s *SQLite) CreateOrder(ctx context.Context, number string, total domain.Amount) (*domain.Order, error) {
	var num any
	if number != "" {
		num = number
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (order_number, total, currency, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		num, total.Value.String(), total.Currency, string(domain.StatusAwaitingPayment), formatTime(s.now()),
	)
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return s.GetOrder(ctx, id)
}

func (s *SQLite) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return scanSQLiteOrder(s.db.QueryRowContext(ctx, "SELECT "+sqliteOrderColumns+" FROM orders WHERE id = ?", id))
}

func (s *SQLite) FindOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	return scanSQLiteOrder(s.db.QueryRowContext(ctx, "SELECT "+sqliteOrderColumns+" FROM orders WHERE payment_request_id = ?", requestID))
}

func (s *SQLite) StartPayment(ctx context.Context, orderID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, payment_request_id = NULL, payment_data = NULL
		 WHERE id = ? AND status <> ?`,
		string(domain.StatusAwaitingPayment), orderID, string(domain.StatusPaid),
	)
	if err != nil {
		return fmt.Errorf("start payment: %w", err)
	}
	return s.checkAffected(ctx, res, orderID)
}

func (s *SQLite) GetPaymentRecord(ctx context.Context, orderID int64) (*domain.PaymentRecord, error) {
	var data sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT payment_data FROM orders WHERE id = ?", orderID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if !data.Valid || data.String == "" {
		return nil, ErrNoPaymentRecord
	}
	var rec domain.PaymentRecord
	if err := json.Unmarshal([]byte(data.String), &rec); err != nil {
		return nil, fmt.Errorf("decode payment data for order %d: %w", orderID, err)
	}
	return &rec, nil
}

func (s *SQLite) SavePaymentRecord(ctx context.Context, orderID int64, rec *domain.PaymentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET payment_request_id = ?, payment_data = ?
		 WHERE id = ? AND status <> ?`,
		rec.RequestID, string(data), orderID, string(domain.StatusPaid),
	)
	if err != nil {
		return fmt.Errorf("save payment data: %w", err)
	}
	return s.checkAffected(ctx, res, orderID)
}

func (s *SQLite) AddNote(ctx context.Context, orderID int64, text string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO order_notes (order_id, note, created_at) VALUES (?, ?, ?)",
		orderID, text, formatTime(s.now()),
	)
	if err != nil {
		if _, getErr := s.GetOrder(ctx, orderID); errors.Is(getErr, ErrOrderNotFound) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("add note: %w", err)
	}
	return nil
}

func (s *SQLite) AddNoteIfAwaiting(ctx context.Context, orderID int64, requestID, text string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO order_notes (order_id, note, created_at)
		 SELECT id, ?, ? FROM orders
		 WHERE id = ? AND status = ? AND payment_request_id = ?`,
		text, formatTime(s.now()), orderID, string(domain.StatusAwaitingPayment), requestID,
	)
	if err != nil {
		return false, fmt.Errorf("add note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n > 0 {
		return true, nil
	}
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLite) ListNotes(ctx context.Context, orderID int64) ([]domain.Note, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT order_id, note, created_at FROM order_notes WHERE order_id = ? ORDER BY id", orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var (
			n       domain.Note
			created string
		)
		if err := rows.Scan(&n.OrderID, &n.Text, &created); err != nil {
			return nil, err
		}
		if n.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *SQLite) MarkPaid(ctx context.Context, orderID int64, requestID, note string, at time.Time) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, paid_at = ?
		 WHERE id = ? AND status = ? AND (? = '' OR payment_request_id = ?)`,
		string(domain.StatusPaid), formatTime(at), orderID, string(domain.StatusAwaitingPayment), requestID, requestID,
	)
	if err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	if n == 0 {
		var status, current string
		err := tx.QueryRowContext(ctx,
			"SELECT status, COALESCE(payment_request_id, '') FROM orders WHERE id = ?", orderID,
		).Scan(&status, &current)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return false, ErrOrderNotFound
		case err != nil:
			return false, err
		case status == string(domain.StatusPaid):
			return false, nil
		case status != string(domain.StatusAwaitingPayment):
			return false, ErrNotAwaiting
		default:
			return false, ErrSuperseded
		}
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO order_notes (order_id, note, created_at) VALUES (?, ?, ?)",
		orderID, note, formatTime(at),
	); err != nil {
		return false, fmt.Errorf("note insert failed: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("tx commit failed: %w", err)
	}
	return true, nil
}

func (s *SQLite) checkAffected(ctx context.Context, res sql.Result, orderID int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if o.IsPaid() {
		return ErrOrderPaid
	}
	return fmt.Errorf("order %d: no rows updated", orderID)
}
