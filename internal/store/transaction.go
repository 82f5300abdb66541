package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/fintrack/internal/model"
)

type TransactionStore struct {
	db *sql.DB
}

func NewTransactionStore(db *sql.DB) *TransactionStore {
	return &TransactionStore{db: db}
}

func scanTransaction(scanner interface{ Scan(...any) error }) (*model.Transaction, error) {
	var t model.Transaction
	var desc sql.NullString
	err := scanner.Scan(&t.ID, &t.UserID, &t.Category, &desc, &t.Amount, &t.TransactionType, &t.Date)
	if err != nil {
		return nil, err
	}
	if desc.Valid {
		t.Description = &desc.String
	}
	return &t, nil
}

const transactionCols = `id, user_id, category, description, amount, transaction_type, date`

func (s *TransactionStore) Create(ctx context.Context, t *model.Transaction) (*model.Transaction, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (user_id, category, description, amount, transaction_type, date)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.UserID, t.Category, t.Description, t.Amount, t.TransactionType, t.Date,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, AnyOwner, id)
}

// Get returns ErrNotFound when the transaction does not exist within scope.
func (s *TransactionStore) Get(ctx context.Context, scope Scope, id int64) (*model.Transaction, error) {
	where, args := scope.clause()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	t, err := scanTransaction(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// List returns transactions in scope, newest date first.
func (s *TransactionStore) List(ctx context.Context, scope Scope) ([]model.Transaction, error) {
	where, args := scope.clause()
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionCols+` FROM transactions WHERE `+where+` ORDER BY date DESC, id DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update replaces the editable fields of the transaction identified by t.ID.
// The owner is never changed.
func (s *TransactionStore) Update(ctx context.Context, scope Scope, t *model.Transaction) (*model.Transaction, error) {
	where, args := scope.clause()
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET category = ?, description = ?, amount = ?, transaction_type = ?, date = ?
		 WHERE id = ? AND `+where,
		append([]any{t.Category, t.Description, t.Amount, t.TransactionType, t.Date, t.ID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update transaction: %w", err)
	}
	if err := expectOne(result); err != nil {
		return nil, err
	}
	return s.Get(ctx, AnyOwner, t.ID)
}

func (s *TransactionStore) Delete(ctx context.Context, scope Scope, id int64) error {
	where, args := scope.clause()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM transactions WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOne(result)
}

func expectOne(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
