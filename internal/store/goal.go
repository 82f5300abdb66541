package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/fintrack/internal/model"
)

type GoalStore struct {
	db *sql.DB
}

func NewGoalStore(db *sql.DB) *GoalStore {
	return &GoalStore{db: db}
}

func scanGoal(scanner interface{ Scan(...any) error }) (*model.Goal, error) {
	var g model.Goal
	var deadline sql.NullString
	err := scanner.Scan(&g.ID, &g.UserID, &g.Title, &g.TargetAmount, &g.CurrentAmount, &deadline, &g.CreatedAt, &g.IsCompleted)
	if err != nil {
		return nil, err
	}
	if deadline.Valid {
		g.Deadline = &deadline.String
	}
	return &g, nil
}

const goalCols = `id, user_id, title, target_amount, current_amount, deadline, created_at, is_completed`

func (s *GoalStore) Create(ctx context.Context, g *model.Goal) (*model.Goal, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO goals (user_id, title, target_amount, current_amount, deadline, is_completed)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		g.UserID, g.Title, g.TargetAmount, g.CurrentAmount, g.Deadline, g.IsCompleted,
	)
	if err != nil {
		return nil, fmt.Errorf("insert goal: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, AnyOwner, id)
}

func (s *GoalStore) Get(ctx context.Context, scope Scope, id int64) (*model.Goal, error) {
	where, args := scope.clause()
	row := s.db.QueryRowContext(ctx,
		`SELECT `+goalCols+` FROM goals WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	g, err := scanGoal(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *GoalStore) List(ctx context.Context, scope Scope) ([]model.Goal, error) {
	where, args := scope.clause()
	return s.query(ctx, `SELECT `+goalCols+` FROM goals WHERE `+where+` ORDER BY id`, args...)
}

// ListDueBy returns uncompleted goals with a deadline on or before the given
// date (YYYY-MM-DD), across all owners.
func (s *GoalStore) ListDueBy(ctx context.Context, date string) ([]model.Goal, error) {
	return s.query(ctx,
		`SELECT `+goalCols+` FROM goals
		 WHERE is_completed = 0 AND deadline IS NOT NULL AND deadline <= ?
		 ORDER BY deadline, id`,
		date,
	)
}

func (s *GoalStore) query(ctx context.Context, q string, args ...any) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list goals: %w", err)
	}
	defer rows.Close()

	var out []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, *g)
	}
	return out, rows.Err()
}

func (s *GoalStore) Update(ctx context.Context, scope Scope, g *model.Goal) (*model.Goal, error) {
	where, args := scope.clause()
	result, err := s.db.ExecContext(ctx,
		`UPDATE goals SET title = ?, target_amount = ?, current_amount = ?, deadline = ?, is_completed = ?
		 WHERE id = ? AND `+where,
		append([]any{g.Title, g.TargetAmount, g.CurrentAmount, g.Deadline, g.IsCompleted, g.ID}, args...)...,
	)
	if err != nil {
		return nil, fmt.Errorf("update goal: %w", err)
	}
	if err := expectOne(result); err != nil {
		return nil, err
	}
	return s.Get(ctx, AnyOwner, g.ID)
}

func (s *GoalStore) Delete(ctx context.Context, scope Scope, id int64) error {
	where, args := scope.clause()
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM goals WHERE id = ? AND `+where,
		append([]any{id}, args...)...,
	)
	if err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return expectOne(result)
}
