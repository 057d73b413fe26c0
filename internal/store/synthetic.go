package store

import (
	"time"

	"github.com/expenseworks/expense-management/internal/models"
)

// Synthetic records served when the backing store is unreachable, so read
// paths stay available in degraded mode. The set is fixed and deterministic.

func syntheticExpenses() []models.Expense {
	return []models.Expense{
		{
			ID:           1,
			UserID:       1,
			CategoryID:   1,
			StatusID:     2,
			AmountMinor:  12000,
			Currency:     "GBP",
			ExpenseDate:  time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			Description:  "Synthetic record - database unavailable",
			CategoryName: "Travel",
			StatusName:   models.StatusSubmitted,
			UserName:     "Demo User",
		},
		{
			ID:           2,
			UserID:       1,
			CategoryID:   3,
			StatusID:     2,
			AmountMinor:  9950,
			Currency:     "GBP",
			ExpenseDate:  time.Date(2023, 12, 14, 0, 0, 0, 0, time.UTC),
			Description:  "Synthetic record - database unavailable",
			CategoryName: "Office Supplies",
			StatusName:   models.StatusSubmitted,
			UserName:     "Demo User",
		},
	}
}

func syntheticCategories() []models.ExpenseCategory {
	return []models.ExpenseCategory{
		{ID: 1, Name: "Travel", IsActive: true},
		{ID: 2, Name: "Meals", IsActive: true},
		{ID: 3, Name: "Supplies", IsActive: true},
		{ID: 4, Name: "Accommodation", IsActive: true},
		{ID: 5, Name: "Other", IsActive: true},
	}
}
