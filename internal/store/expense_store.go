package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/expenseworks/expense-management/internal/models"
	"go.uber.org/zap"
)

// ExpenseStore is a resilient wrapper around the relational backing store.
// Every operation catches store faults at its own boundary: reads degrade to
// a fixed synthetic dataset, writes return a sentinel (0/false). The outcome
// of each call carries its own degraded flag and diagnostic; the store holds
// no mutable fault state.
type ExpenseStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewExpenseStore creates a new expense store
func NewExpenseStore(db *sql.DB, logger *zap.Logger) *ExpenseStore {
	return &ExpenseStore{
		db:     db,
		logger: logger,
	}
}

// ListResult is the outcome of a read returning expenses.
type ListResult struct {
	Expenses  []models.Expense
	Synthetic bool
	Diag      *Diagnostic
}

// CategoryResult is the outcome of a category read.
type CategoryResult struct {
	Categories []models.ExpenseCategory
	Synthetic  bool
	Diag       *Diagnostic
}

const expenseColumns = `
	e.id, e.user_id, e.category_id, e.status_id, e.amount_minor,
	e.currency, e.expense_date, e.description, e.receipt_file,
	e.submitted_at, e.reviewed_by, e.reviewed_at, e.created_at,
	c.name, s.name, u.user_name
`

const expenseJoins = `
	FROM expenses e
	INNER JOIN expense_categories c ON e.category_id = c.id
	INNER JOIN expense_status s ON e.status_id = s.id
	INNER JOIN users u ON e.user_id = u.id
`

// ListExpenses returns expenses newest-expense-date first. filter matches
// category or user name as a case-insensitive substring; status matches an
// exact status name. Both are optional and combinable. No matches is an
// empty result, not a fault.
func (s *ExpenseStore) ListExpenses(ctx context.Context, filter, status string) ListResult {
	query := `
		SELECT ` + expenseColumns + expenseJoins + `
		WHERE (? = '' OR LOWER(c.name) LIKE '%' || LOWER(?) || '%' OR LOWER(u.user_name) LIKE '%' || LOWER(?) || '%')
		  AND (? = '' OR s.name = ?)
		ORDER BY e.expense_date DESC
	`

	rows, err := s.db.QueryContext(ctx, query, filter, filter, filter, status, status)
	if err != nil {
		return s.degradedList("ListExpenses", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return s.degradedList("ListExpenses", err)
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return s.degradedList("ListExpenses", err)
	}

	return ListResult{Expenses: expenses}
}

// ListPendingExpenses returns all expenses awaiting review.
func (s *ExpenseStore) ListPendingExpenses(ctx context.Context) ListResult {
	return s.ListExpenses(ctx, "", models.StatusSubmitted)
}

// GetExpense returns the expense with the given id, or nil when absent.
// The diagnostic is non-nil when the store itself could not be reached.
func (s *ExpenseStore) GetExpense(ctx context.Context, id int64) (*models.Expense, *Diagnostic) {
	query := `SELECT ` + expenseColumns + expenseJoins + ` WHERE e.id = ?`

	row := s.db.QueryRowContext(ctx, query, id)
	expense, err := scanExpense(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		s.logger.Error("Failed to get expense",
			zap.String("operation", "GetExpense"),
			zap.Int64("id", id),
			zap.Error(err))
		return nil, newDiagnostic("GetExpense", err)
	}

	return &expense, nil
}

// ListCategories returns the active expense categories in a stable order.
func (s *ExpenseStore) ListCategories(ctx context.Context) CategoryResult {
	query := `SELECT id, name, is_active FROM expense_categories WHERE is_active = 1 ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return s.degradedCategories("ListCategories", err)
	}
	defer rows.Close()

	var categories []models.ExpenseCategory
	for rows.Next() {
		var cat models.ExpenseCategory
		if err := rows.Scan(&cat.ID, &cat.Name, &cat.IsActive); err != nil {
			return s.degradedCategories("ListCategories", err)
		}
		categories = append(categories, cat)
	}
	if err := rows.Err(); err != nil {
		return s.degradedCategories("ListCategories", err)
	}

	return CategoryResult{Categories: categories}
}

// CreateExpense inserts a new Draft expense and returns its id, or 0 with a
// diagnostic when the store could not be reached. Callers validate that the
// amount is strictly positive before invoking this.
func (s *ExpenseStore) CreateExpense(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *Diagnostic) {
	query := `
		INSERT INTO expenses (user_id, category_id, status_id, amount_minor, currency, expense_date, description, created_at)
		VALUES (?, ?, (SELECT id FROM expense_status WHERE name = ?), ?, ?, ?, ?, CURRENT_TIMESTAMP)
	`

	var desc interface{}
	if description != "" {
		desc = description
	}

	result, err := s.db.ExecContext(ctx, query, userID, categoryID, models.StatusDraft, amountMinor, currency, date, desc)
	if err != nil {
		s.logger.Error("Failed to create expense",
			zap.String("operation", "CreateExpense"),
			zap.Int64("user_id", userID),
			zap.Error(err))
		return 0, newDiagnostic("CreateExpense", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.Error("Failed to get created expense id", zap.Error(err))
		return 0, newDiagnostic("CreateExpense", err)
	}

	return id, nil
}

// UpdateStatus moves an expense to the named status. Reviewer identity and
// review timestamp are recorded only for the terminal states; the submission
// timestamp is set on the transition into Submitted and never cleared.
// Returns false when the expense does not exist or the store is unreachable.
func (s *ExpenseStore) UpdateStatus(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *Diagnostic) {
	if !models.KnownStatus(statusName) {
		s.logger.Warn("Rejecting unknown status name",
			zap.Int64("id", id),
			zap.String("status", statusName))
		return false, nil
	}

	terminal := models.IsTerminalStatus(statusName)

	query := `
		UPDATE expenses
		SET status_id = (SELECT id FROM expense_status WHERE name = ?),
		    reviewed_by = CASE WHEN ? THEN ? ELSE reviewed_by END,
		    reviewed_at = CASE WHEN ? THEN CURRENT_TIMESTAMP ELSE reviewed_at END,
		    submitted_at = CASE WHEN ? THEN COALESCE(submitted_at, CURRENT_TIMESTAMP) ELSE submitted_at END
		WHERE id = ?
	`

	var reviewer interface{}
	if reviewerID != nil {
		reviewer = *reviewerID
	}

	result, err := s.db.ExecContext(ctx, query,
		statusName,
		terminal, reviewer,
		terminal,
		statusName == models.StatusSubmitted,
		id,
	)
	if err != nil {
		s.logger.Error("Failed to update expense status",
			zap.String("operation", "UpdateStatus"),
			zap.Int64("id", id),
			zap.String("status", statusName),
			zap.Error(err))
		return false, newDiagnostic("UpdateStatus", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, newDiagnostic("UpdateStatus", err)
	}

	return affected > 0, nil
}

func (s *ExpenseStore) degradedList(op string, err error) ListResult {
	s.logger.Error("Database fault, serving synthetic expenses",
		zap.String("operation", op),
		zap.Error(err))
	return ListResult{
		Expenses:  syntheticExpenses(),
		Synthetic: true,
		Diag:      newDiagnostic(op, err),
	}
}

func (s *ExpenseStore) degradedCategories(op string, err error) CategoryResult {
	s.logger.Error("Database fault, serving synthetic categories",
		zap.String("operation", op),
		zap.Error(err))
	return CategoryResult{
		Categories: syntheticCategories(),
		Synthetic:  true,
		Diag:       newDiagnostic(op, err),
	}
}

// scanner covers both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanExpense(row scanner) (models.Expense, error) {
	var e models.Expense
	var description, receiptFile sql.NullString
	var submittedAt, reviewedAt sql.NullTime
	var reviewedBy sql.NullInt64

	err := row.Scan(
		&e.ID,
		&e.UserID,
		&e.CategoryID,
		&e.StatusID,
		&e.AmountMinor,
		&e.Currency,
		&e.ExpenseDate,
		&description,
		&receiptFile,
		&submittedAt,
		&reviewedBy,
		&reviewedAt,
		&e.CreatedAt,
		&e.CategoryName,
		&e.StatusName,
		&e.UserName,
	)
	if err != nil {
		return e, err
	}

	if description.Valid {
		e.Description = description.String
	}
	if receiptFile.Valid {
		e.ReceiptFile = receiptFile.String
	}
	if submittedAt.Valid {
		e.SubmittedAt = &submittedAt.Time
	}
	if reviewedBy.Valid {
		e.ReviewedBy = &reviewedBy.Int64
	}
	if reviewedAt.Valid {
		e.ReviewedAt = &reviewedAt.Time
	}

	return e, nil
}
