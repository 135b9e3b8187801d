package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/punchamoorthee/lightningpay/internal/domain"
	"github.com/shopspring/decimal"
)

const orderColumns = "id, COALESCE(order_number, id::text), total::text, currency, status, COALESCE(payment_request_id, ''), paid_at, created_at"

// Postgres is the pgx-backed OrderStore. The paid transition runs in a
// transaction holding the order row lock.
type Postgres struct {
	Db *pgxpool.Pool
}

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

// Migrate creates the schema if it does not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	for _, stmt := range postgresSchema {
		if _, err := s.Db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Postgres) Close() {
	s.Db.Close()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o      domain.Order
		total  string
		status string
		paid   *time.Time
	)
	err := row.Scan(&o.ID, &o.Number, &total, &o.Total.Currency, &status, &o.PaymentRequestID, &paid, &o.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	o.Total.Value, err = decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("order %d total: %w", o.ID, err)
	}
	o.Status = domain.OrderStatus(status)
	o.PaidAt = paid
	return &o, nil
}

func (s *Postgres) CreateOrder(ctx context.Context, number string, total domain.Amount) (*domain.Order, error) {
	var num *string
	if number != "" {
		num = &number
	}
	row := s.Db.QueryRow(ctx,
		"INSERT INTO orders (order_number, total, currency) VALUES ($1, $2::numeric, $3) RETURNING "+orderColumns,
		num, total.Value.String(), total.Currency,
	)
	return scanOrder(row)
}

func (s *Postgres) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	return scanOrder(s.Db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE id = $1", id))
}

func (s *Postgres) FindOrderByRequestID(ctx context.Context, requestID string) (*domain.Order, error) {
	return scanOrder(s.Db.QueryRow(ctx, "SELECT "+orderColumns+" FROM orders WHERE payment_request_id = $1", requestID))
}

func (s *Postgres) StartPayment(ctx context.Context, orderID int64) error {
	tag, err := s.Db.Exec(ctx,
		`UPDATE orders SET status = 'awaiting_payment', payment_request_id = NULL, payment_data = NULL
		 WHERE id = $1 AND status <> 'paid'`,
		orderID,
	)
	if err != nil {
		return fmt.Errorf("start payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrPaid(ctx, orderID)
	}
	return nil
}

func (s *Postgres) GetPaymentRecord(ctx context.Context, orderID int64) (*domain.PaymentRecord, error) {
	var data []byte
	err := s.Db.QueryRow(ctx, "SELECT payment_data FROM orders WHERE id = $1", orderID).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNoPaymentRecord
	}
	var rec domain.PaymentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode payment data for order %d: %w", orderID, err)
	}
	return &rec, nil
}

func (s *Postgres) SavePaymentRecord(ctx context.Context, orderID int64, rec *domain.PaymentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	tag, err := s.Db.Exec(ctx,
		`UPDATE orders SET payment_request_id = $1, payment_data = $2::jsonb
		 WHERE id = $3 AND status <> 'paid'`,
		rec.RequestID, string(data), orderID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("request %s already bound to another order: %w", rec.RequestID, err)
		}
		return fmt.Errorf("save payment data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrPaid(ctx, orderID)
	}
	return nil
}

func (s *Postgres) AddNote(ctx context.Context, orderID int64, text string) error {
	_, err := s.Db.Exec(ctx, "INSERT INTO order_notes (order_id, note) VALUES ($1, $2)", orderID, text)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrOrderNotFound
		}
		return fmt.Errorf("add note: %w", err)
	}
	return nil
}

// AddNoteIfAwaiting takes a share lock on the order row, so it waits out a
// concurrent MarkPaid and then sees the paid status.
func (s *Postgres) AddNoteIfAwaiting(ctx context.Context, orderID int64, requestID, text string) (bool, error) {
	tag, err := s.Db.Exec(ctx,
		`INSERT INTO order_notes (order_id, note)
		 SELECT id, $2 FROM orders
		 WHERE id = $1 AND status = 'awaiting_payment' AND payment_request_id = $3
		 FOR SHARE`,
		orderID, text, requestID)
	if err != nil {
		return false, fmt.Errorf("add note: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.GetOrder(ctx, orderID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *Postgres) ListNotes(ctx context.Context, orderID int64) ([]domain.Note, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT order_id, note, created_at FROM order_notes WHERE order_id = $1 ORDER BY id",
		orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := []domain.Note{}
	for rows.Next() {
		var n domain.Note
		if err := rows.Scan(&n.OrderID, &n.Text, &n.CreatedAt); err != nil {
			return nil, err
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

// MarkPaid locks the order row, re-checks status and active request under
// the lock, then flips status and writes the note in the same transaction.
func (s *Postgres) MarkPaid(ctx context.Context, orderID int64, requestID, note string, at time.Time) (bool, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return false, fmt.Errorf("tx begin failed: %w", err)
	}
	defer tx.Rollback(ctx)

	var status, current string
	err = tx.QueryRow(ctx,
		"SELECT status, COALESCE(payment_request_id, '') FROM orders WHERE id = $1 FOR UPDATE",
		orderID,
	).Scan(&status, &current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("lock acquisition failed: %w", err)
	}

	switch {
	case status == string(domain.StatusPaid):
		return false, nil
	case status != string(domain.StatusAwaitingPayment):
		return false, ErrNotAwaiting
	case requestID != "" && current != requestID:
		return false, ErrSuperseded
	}

	if _, err = tx.Exec(ctx, "UPDATE orders SET status = 'paid', paid_at = $1 WHERE id = $2", at, orderID); err != nil {
		return false, fmt.Errorf("status update failed: %w", err)
	}
	if _, err = tx.Exec(ctx, "INSERT INTO order_notes (order_id, note, created_at) VALUES ($1, $2, $3)", orderID, note, at); err != nil {
		return false, fmt.Errorf("note insert failed: %w", err)
	}

	if err = tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("tx commit failed: %w", err)
	}
	return true, nil
}

func (s *Postgres) missingOrPaid(ctx context.Context, orderID int64) error {
	var status string
	err := s.Db.QueryRow(ctx, "SELECT status FROM orders WHERE id = $1", orderID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrOrderNotFound
	}
	if err != nil {
		return err
	}
	if status == string(domain.StatusPaid) {
		return ErrOrderPaid
	}
	return fmt.Errorf("order %d: unexpected state %s", orderID, status)
}
