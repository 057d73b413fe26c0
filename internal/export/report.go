package export

import (
	"bytes"
	"fmt"

	"github.com/expenseworks/expense-management/internal/models"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

const sheetName = "Expenses"

var headers = []string{"ID", "Date", "Category", "Amount", "Currency", "Status", "User", "Description"}

// ReportWriter renders expense listings as spreadsheet reports.
type ReportWriter struct {
	logger *zap.Logger
}

// NewReportWriter creates a new report writer
func NewReportWriter(logger *zap.Logger) *ReportWriter {
	return &ReportWriter{logger: logger}
}

// Write renders the expenses into an xlsx workbook and returns its bytes.
func (w *ReportWriter) Write(expenses []models.Expense) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		w.logger.Warn("Failed to remove default sheet", zap.Error(err))
	}

	for col, header := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to compute header cell: %w", err)
		}
		w.setCell(f, cell, header)
	}

	for i := range expenses {
		e := &expenses[i]
		row := i + 2
		values := []interface{}{
			e.ID,
			e.ExpenseDate.Format("2006-01-02"),
			e.CategoryName,
			e.AmountMajor(),
			e.Currency,
			e.StatusName,
			e.UserName,
			e.Description,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return nil, fmt.Errorf("failed to compute cell: %w", err)
			}
			w.setCell(f, cell, value)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}

	w.logger.Info("Expense report generated", zap.Int("rows", len(expenses)))
	return buf, nil
}

func (w *ReportWriter) setCell(f *excelize.File, cell string, value interface{}) {
	if err := f.SetCellValue(sheetName, cell, value); err != nil {
		w.logger.Warn("Failed to set cell value",
			zap.String("cell", cell),
			zap.Error(err))
	}
}
