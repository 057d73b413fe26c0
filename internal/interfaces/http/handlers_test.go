package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseworks/expense-management/internal/models"
	"github.com/expenseworks/expense-management/internal/store"
)

// Mock expense store
type mockStore struct {
	listExpensesFunc func(ctx context.Context, filter, status string) store.ListResult
	listPendingFunc  func(ctx context.Context) store.ListResult
	getExpenseFunc   func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic)
	listCategories   func(ctx context.Context) store.CategoryResult
	createFunc       func(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic)
	updateStatusFunc func(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic)
}

func (m *mockStore) ListExpenses(ctx context.Context, filter, status string) store.ListResult {
	if m.listExpensesFunc != nil {
		return m.listExpensesFunc(ctx, filter, status)
	}
	return store.ListResult{}
}

func (m *mockStore) ListPendingExpenses(ctx context.Context) store.ListResult {
	if m.listPendingFunc != nil {
		return m.listPendingFunc(ctx)
	}
	return store.ListResult{}
}

func (m *mockStore) GetExpense(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
	if m.getExpenseFunc != nil {
		return m.getExpenseFunc(ctx, id)
	}
	return nil, nil
}

func (m *mockStore) ListCategories(ctx context.Context) store.CategoryResult {
	if m.listCategories != nil {
		return m.listCategories(ctx)
	}
	return store.CategoryResult{}
}

func (m *mockStore) CreateExpense(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic) {
	if m.createFunc != nil {
		return m.createFunc(ctx, userID, categoryID, amountMinor, currency, date, description)
	}
	return 1, nil
}

func (m *mockStore) UpdateStatus(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic) {
	if m.updateStatusFunc != nil {
		return m.updateStatusFunc(ctx, id, statusName, reviewerID)
	}
	return true, nil
}

// Mock chat service
type mockChat struct {
	runFunc    func(ctx context.Context, sessionID, userText string) string
	clearFunc  func(ctx context.Context, sessionID string) error
	configured bool
	diagnostic string
}

func (m *mockChat) RunChatTurn(ctx context.Context, sessionID, userText string) string {
	if m.runFunc != nil {
		return m.runFunc(ctx, sessionID, userText)
	}
	return ""
}

func (m *mockChat) ClearSession(ctx context.Context, sessionID string) error {
	if m.clearFunc != nil {
		return m.clearFunc(ctx, sessionID)
	}
	return nil
}

func (m *mockChat) Configured() bool   { return m.configured }
func (m *mockChat) Diagnostic() string { return m.diagnostic }

// Mock report generator
type mockReports struct {
	writeFunc func(expenses []models.Expense) (*bytes.Buffer, error)
}

func (m *mockReports) Write(expenses []models.Expense) (*bytes.Buffer, error) {
	if m.writeFunc != nil {
		return m.writeFunc(expenses)
	}
	return bytes.NewBufferString("xlsx"), nil
}

func newTestRouter(st ExpenseStore, chat ChatService, reports ReportGenerator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandlers(st, chat, reports, 1, 1, zap.NewNop())

	router := gin.New()
	router.GET("/health", h.HealthCheck)
	api := router.Group("/api")
	{
		api.GET("/expenses", h.ListExpenses)
		api.GET("/expenses/pending", h.ListPendingExpenses)
		api.GET("/expenses/export", h.ExportExpenses)
		api.GET("/expenses/:id", h.GetExpense)
		api.POST("/expenses", h.CreateExpense)
		api.PUT("/expenses/:id/status", h.UpdateExpenseStatus)
		api.POST("/expenses/:id/approve", h.ApproveExpense)
		api.POST("/expenses/:id/reject", h.RejectExpense)
		api.POST("/expenses/:id/submit", h.SubmitExpense)
		api.GET("/categories", h.ListCategories)
		api.POST("/chat", h.Chat)
		api.DELETE("/chat/:sessionId", h.ClearChatSession)
	}
	return router
}

func doRequest(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestListExpensesPassesQueryFilters(t *testing.T) {
	var gotFilter, gotStatus string
	st := &mockStore{
		listExpensesFunc: func(ctx context.Context, filter, status string) store.ListResult {
			gotFilter, gotStatus = filter, status
			return store.ListResult{Expenses: []models.Expense{{ID: 1}}}
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses?filter=travel&status=Submitted", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "travel", gotFilter)
	assert.Equal(t, "Submitted", gotStatus)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.False(t, resp.Degraded)
}

func TestListExpensesDegradedFlags(t *testing.T) {
	st := &mockStore{
		listExpensesFunc: func(ctx context.Context, filter, status string) store.ListResult {
			return store.ListResult{
				Expenses:  []models.Expense{{ID: 1}},
				Synthetic: true,
				Diag:      &store.Diagnostic{Kind: store.FaultConnectivity, Message: "database operation ListExpenses failed"},
			}
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses", "")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.Diagnostic, "ListExpenses")
}

func TestListExpensesEmptyIsArray(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data":[]`)
}

func TestGetExpenseNotFound(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses/42", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetExpenseInvalidID(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetExpenseStoreUnavailable(t *testing.T) {
	st := &mockStore{
		getExpenseFunc: func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
			return nil, &store.Diagnostic{Kind: store.FaultConnectivity, Message: "database operation GetExpense failed"}
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses/1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Degraded)
}

func TestCreateExpenseValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing body", `{}`},
		{"non-positive amount", `{"category_id":1,"amount_minor":0,"expense_date":"2024-03-01"}`},
		{"negative amount", `{"category_id":1,"amount_minor":-100,"expense_date":"2024-03-01"}`},
		{"bad date", `{"category_id":1,"amount_minor":100,"expense_date":"March 1st"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})
			w := doRequest(t, router, http.MethodPost, "/api/expenses", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateExpenseDefaultsAndCreated(t *testing.T) {
	var gotUser int64
	var gotCurrency string
	st := &mockStore{
		createFunc: func(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic) {
			gotUser = userID
			gotCurrency = currency
			return 7, nil
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses",
		`{"category_id":1,"amount_minor":5000,"expense_date":"2024-03-01","description":"taxi"}`)

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int64(1), gotUser, "defaults to configured user")
	assert.Equal(t, "GBP", gotCurrency)
	assert.Contains(t, w.Body.String(), `"id":7`)
}

func TestCreateExpenseStoreFailure(t *testing.T) {
	st := &mockStore{
		createFunc: func(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic) {
			return 0, &store.Diagnostic{Kind: store.FaultConnectivity, Message: "database operation CreateExpense failed"}
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses",
		`{"category_id":1,"amount_minor":5000,"expense_date":"2024-03-01"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Degraded)
}

func TestApproveExpenseUsesDefaultReviewer(t *testing.T) {
	var gotStatus string
	var gotReviewer *int64
	st := &mockStore{
		getExpenseFunc: func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
			return &models.Expense{ID: id, StatusName: models.StatusSubmitted}, nil
		},
		updateStatusFunc: func(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic) {
			gotStatus = statusName
			gotReviewer = reviewerID
			return true, nil
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses/7/approve", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, models.StatusApproved, gotStatus)
	require.NotNil(t, gotReviewer)
	assert.Equal(t, int64(1), *gotReviewer)
}

func TestRejectExpenseExplicitReviewer(t *testing.T) {
	var gotReviewer *int64
	st := &mockStore{
		getExpenseFunc: func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
			return &models.Expense{ID: id, StatusName: models.StatusSubmitted}, nil
		},
		updateStatusFunc: func(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic) {
			gotReviewer = reviewerID
			return true, nil
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses/7/reject", `{"reviewed_by":5}`)
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.NotNil(t, gotReviewer)
	assert.Equal(t, int64(5), *gotReviewer)
}

func TestSubmitExpenseFromDraft(t *testing.T) {
	st := &mockStore{
		getExpenseFunc: func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
			return &models.Expense{ID: id, StatusName: models.StatusDraft}, nil
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses/3/submit", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestTransitionConflictFromTerminalState(t *testing.T) {
	st := &mockStore{
		getExpenseFunc: func(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic) {
			return &models.Expense{ID: id, StatusName: models.StatusApproved}, nil
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses/7/reject", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestTransitionUnknownStatus(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPut, "/api/expenses/7/status", `{"status":"Archived"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransitionMissingExpense(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/expenses/99/submit", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListCategoriesDegraded(t *testing.T) {
	st := &mockStore{
		listCategories: func(ctx context.Context) store.CategoryResult {
			return store.CategoryResult{
				Categories: []models.ExpenseCategory{{ID: 1, Name: "Travel", IsActive: true}},
				Synthetic:  true,
				Diag:       &store.Diagnostic{Kind: store.FaultConnectivity, Message: "database operation ListCategories failed"},
			}
		},
	}
	router := newTestRouter(st, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/categories", "")
	assert.Equal(t, http.StatusOK, w.Code)

	resp := decodeResponse(t, w)
	assert.True(t, resp.Degraded)
	assert.Contains(t, resp.Diagnostic, "ListCategories")
}

func TestExportExpensesHeaders(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	w := doRequest(t, router, http.MethodGet, "/api/expenses/export", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "expenses.xlsx")
}

func TestExportExpensesFailure(t *testing.T) {
	reports := &mockReports{
		writeFunc: func(expenses []models.Expense) (*bytes.Buffer, error) {
			return nil, errors.New("encode failed")
		},
	}
	router := newTestRouter(&mockStore{}, &mockChat{}, reports)

	w := doRequest(t, router, http.MethodGet, "/api/expenses/export", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestChatValidation(t *testing.T) {
	router := newTestRouter(&mockStore{}, &mockChat{}, &mockReports{})

	// Missing session_id.
	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"message":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Empty message.
	w = doRequest(t, router, http.MethodPost, "/api/chat", `{"session_id":"s1","message":""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatReturnsReply(t *testing.T) {
	chat := &mockChat{
		runFunc: func(ctx context.Context, sessionID, userText string) string {
			assert.Equal(t, "s1", sessionID)
			assert.Equal(t, "show my expenses", userText)
			return "You have 2 expenses."
		},
		configured: true,
	}
	router := newTestRouter(&mockStore{}, chat, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"show my expenses"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "You have 2 expenses.", resp.Reply)
	assert.True(t, resp.Configured)
	assert.Empty(t, resp.Diagnostic)
}

func TestChatUnconfiguredDiagnosticSurfaces(t *testing.T) {
	chat := &mockChat{
		runFunc: func(ctx context.Context, sessionID, userText string) string {
			return "The AI assistant is not configured."
		},
		configured: false,
		diagnostic: "OpenAI configuration not found.",
	}
	router := newTestRouter(&mockStore{}, chat, &mockReports{})

	w := doRequest(t, router, http.MethodPost, "/api/chat", `{"session_id":"s1","message":"hi"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	var resp ChatResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Configured)
	assert.NotEmpty(t, resp.Diagnostic)
}

func TestClearChatSession(t *testing.T) {
	var cleared string
	chat := &mockChat{
		clearFunc: func(ctx context.Context, sessionID string) error {
			cleared = sessionID
			return nil
		},
	}
	router := newTestRouter(&mockStore{}, chat, &mockReports{})

	w := doRequest(t, router, http.MethodDelete, "/api/chat/s1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "s1", cleared)
}

func TestClearChatSessionFailure(t *testing.T) {
	chat := &mockChat{
		clearFunc: func(ctx context.Context, sessionID string) error {
			return errors.New("session store down")
		},
	}
	router := newTestRouter(&mockStore{}, chat, &mockReports{})

	w := doRequest(t, router, http.MethodDelete, "/api/chat/s1", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
