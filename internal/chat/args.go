package chat

import (
	"encoding/json"
	"fmt"
	"time"
)

// Typed argument structs per tool, decoded and validated once at the
// orchestrator boundary before dispatch. A validation failure surfaces as a
// structured tool result, never as a turn failure.

type getExpensesArgs struct {
	Filter string `json:"filter"`
	Status string `json:"status"`
}

type createExpenseArgs struct {
	Amount      *float64 `json:"amount"`
	Category    string   `json:"category"`
	Date        string   `json:"date"`
	Description string   `json:"description"`
}

type approveExpenseArgs struct {
	ExpenseID *int64 `json:"expenseId"`
}

// toolArgumentError reports malformed or missing tool arguments.
type toolArgumentError struct {
	reason string
}

func (e *toolArgumentError) Error() string {
	return e.reason
}

func parseGetExpensesArgs(raw string) (getExpensesArgs, error) {
	var args getExpensesArgs
	if raw == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return args, &toolArgumentError{reason: "Malformed arguments"}
	}
	return args, nil
}

func parseCreateExpenseArgs(raw string) (createExpenseArgs, time.Time, error) {
	var args createExpenseArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return args, time.Time{}, &toolArgumentError{reason: "Malformed arguments"}
	}

	var missing []string
	if args.Amount == nil {
		missing = append(missing, "amount")
	}
	if args.Category == "" {
		missing = append(missing, "category")
	}
	if args.Date == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return args, time.Time{}, &toolArgumentError{reason: fmt.Sprintf("Missing required arguments: %v", missing)}
	}

	if *args.Amount <= 0 {
		return args, time.Time{}, &toolArgumentError{reason: "Amount must be positive"}
	}

	date, err := time.Parse("2006-01-02", args.Date)
	if err != nil {
		return args, time.Time{}, &toolArgumentError{reason: "Invalid date, expected YYYY-MM-DD"}
	}

	return args, date, nil
}

func parseApproveExpenseArgs(raw string) (approveExpenseArgs, error) {
	var args approveExpenseArgs
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return args, &toolArgumentError{reason: "Malformed arguments"}
	}
	if args.ExpenseID == nil {
		return args, &toolArgumentError{reason: "Missing required arguments: [expenseId]"}
	}
	return args, nil
}
