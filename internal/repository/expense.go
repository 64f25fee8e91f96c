package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"example.com/expense-agent/backend/internal/models"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = time.RFC3339Nano
)

type ExpenseRepository struct {
	db *sql.DB
}

// NewExpenseRepository создает репозиторий расходов.
func NewExpenseRepository(db *sql.DB) *ExpenseRepository {
	return &ExpenseRepository{db: db}
}

// Append добавляет зафиксированный расход; записи не перезаписываются.
func (r *ExpenseRepository) Append(ctx context.Context, expense models.Expense) error {
	if expense.AmountCents < 0 {
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalid)
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses
		 (id, date, merchant, amount_cents, category, confidence, description, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID.String(),
		expense.Date.Format(dateLayout),
		expense.Merchant,
		expense.AmountCents,
		string(expense.Category),
		expense.Confidence,
		expense.Description,
		string(expense.Source),
		expense.CreatedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("append expense: %w", err)
	}

	return nil
}

// ListAll возвращает все расходы в хронологическом порядке.
func (r *ExpenseRepository) ListAll(ctx context.Context) ([]models.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, date, merchant, amount_cents, category, confidence, description, source, created_at
		 FROM expenses
		 ORDER BY date ASC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	expenses := make([]models.Expense, 0)
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	return expenses, nil
}

// Get возвращает расход по идентификатору.
func (r *ExpenseRepository) Get(ctx context.Context, id uuid.UUID) (models.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, merchant, amount_cents, category, confidence, description, source, created_at
		 FROM expenses
		 WHERE id = ?`, id.String())

	expense, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Expense{}, ErrNotFound
		}
		return models.Expense{}, err
	}

	return expense, nil
}

// UpdateCategory применяет пользовательское исправление категории.
func (r *ExpenseRepository) UpdateCategory(ctx context.Context, id uuid.UUID, category models.Category, confidence float64) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET category = ?, confidence = ? WHERE id = ?`,
		string(category), confidence, id.String())
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense category: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (models.Expense, error) {
	var (
		expense   models.Expense
		id        string
		date      string
		category  string
		source    string
		createdAt string
	)

	err := row.Scan(&id, &date, &expense.Merchant, &expense.AmountCents,
		&category, &expense.Confidence, &expense.Description, &source, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Expense{}, err
		}
		return models.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	expense.ID, err = uuid.Parse(id)
	if err != nil {
		return models.Expense{}, fmt.Errorf("parse expense id: %w", err)
	}

	expense.Date, err = time.Parse(dateLayout, date)
	if err != nil {
		return models.Expense{}, fmt.Errorf("parse expense date: %w", err)
	}

	expense.CreatedAt, err = time.Parse(timestampLayout, createdAt)
	if err != nil {
		return models.Expense{}, fmt.Errorf("parse expense created_at: %w", err)
	}

	expense.Category, _ = models.ParseCategory(category)
	expense.Source = models.ExpenseSource(source)

	return expense, nil
}
