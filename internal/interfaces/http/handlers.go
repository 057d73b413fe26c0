package http

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/expenseworks/expense-management/internal/models"
	"github.com/expenseworks/expense-management/internal/store"
)

// ExpenseStore is the data-access dependency of the handlers.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, filter, status string) store.ListResult
	ListPendingExpenses(ctx context.Context) store.ListResult
	GetExpense(ctx context.Context, id int64) (*models.Expense, *store.Diagnostic)
	ListCategories(ctx context.Context) store.CategoryResult
	CreateExpense(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic)
	UpdateStatus(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic)
}

// ChatService is the conversational dependency of the handlers.
type ChatService interface {
	RunChatTurn(ctx context.Context, sessionID, userText string) string
	ClearSession(ctx context.Context, sessionID string) error
	Configured() bool
	Diagnostic() string
}

// ReportGenerator renders expense listings for download.
type ReportGenerator interface {
	Write(expenses []models.Expense) (*bytes.Buffer, error)
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	store             ExpenseStore
	chat              ChatService
	reports           ReportGenerator
	defaultUserID     int64
	defaultReviewerID int64
	logger            *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(st ExpenseStore, chat ChatService, reports ReportGenerator, defaultUserID, defaultReviewerID int64, logger *zap.Logger) *Handlers {
	return &Handlers{
		store:             st,
		chat:              chat,
		reports:           reports,
		defaultUserID:     defaultUserID,
		defaultReviewerID: defaultReviewerID,
		logger:            logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Degraded   bool        `json:"degraded,omitempty"`
	Diagnostic string      `json:"diagnostic,omitempty"`
}

// CreateExpenseRequest is the payload for POST /api/expenses
type CreateExpenseRequest struct {
	UserID      int64  `json:"user_id"`
	CategoryID  int64  `json:"category_id" binding:"required"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	ExpenseDate string `json:"expense_date" binding:"required"`
	Description string `json:"description"`
}

// UpdateStatusRequest is the payload for PUT /api/expenses/:id/status
type UpdateStatusRequest struct {
	Status     string `json:"status" binding:"required"`
	ReviewedBy *int64 `json:"reviewed_by"`
}

// ReviewRequest is the payload for approve/reject endpoints
type ReviewRequest struct {
	ReviewedBy *int64 `json:"reviewed_by"`
}

// ChatRequest is the payload for POST /api/chat
type ChatRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Message   string `json:"message"`
}

// ChatResponse is the reply for POST /api/chat
type ChatResponse struct {
	Reply      string `json:"reply"`
	Configured bool   `json:"configured"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "expense-management",
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

// ListExpenses handles GET /api/expenses
func (h *Handlers) ListExpenses(c *gin.Context) {
	filter := c.Query("filter")
	status := c.Query("status")

	res := h.store.ListExpenses(c.Request.Context(), filter, status)
	c.JSON(http.StatusOK, listResponse(res))
}

// ListPendingExpenses handles GET /api/expenses/pending
func (h *Handlers) ListPendingExpenses(c *gin.Context) {
	res := h.store.ListPendingExpenses(c.Request.Context())
	c.JSON(http.StatusOK, listResponse(res))
}

// GetExpense handles GET /api/expenses/:id
func (h *Handlers) GetExpense(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	expense, diag := h.store.GetExpense(c.Request.Context(), id)
	if diag != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success:    false,
			Error:      "expense store unavailable",
			Degraded:   true,
			Diagnostic: diag.Message,
		})
		return
	}
	if expense == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "expense not found"})
		return
	}

	c.JSON(http.StatusOK, Response{Success: true, Data: expense})
}

// CreateExpense handles POST /api/expenses
func (h *Handlers) CreateExpense(c *gin.Context) {
	var req CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	if req.AmountMinor <= 0 {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "amount_minor must be positive"})
		return
	}

	date, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "expense_date must be in YYYY-MM-DD format"})
		return
	}

	userID := req.UserID
	if userID == 0 {
		userID = h.defaultUserID
	}
	currency := req.Currency
	if currency == "" {
		currency = "GBP"
	}

	id, diag := h.store.CreateExpense(c.Request.Context(), userID, req.CategoryID, req.AmountMinor, currency, date, req.Description)
	if id == 0 {
		resp := Response{Success: false, Error: "failed to create expense"}
		if diag != nil {
			resp.Degraded = true
			resp.Diagnostic = diag.Message
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: gin.H{"id": id}})
}

// UpdateExpenseStatus handles PUT /api/expenses/:id/status
func (h *Handlers) UpdateExpenseStatus(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}

	h.transition(c, id, req.Status, req.ReviewedBy)
}

// ApproveExpense handles POST /api/expenses/:id/approve
func (h *Handlers) ApproveExpense(c *gin.Context) {
	h.review(c, models.StatusApproved)
}

// RejectExpense handles POST /api/expenses/:id/reject
func (h *Handlers) RejectExpense(c *gin.Context) {
	h.review(c, models.StatusRejected)
}

// SubmitExpense handles POST /api/expenses/:id/submit
func (h *Handlers) SubmitExpense(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	h.transition(c, id, models.StatusSubmitted, nil)
}

func (h *Handlers) review(c *gin.Context, target string) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req ReviewRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	reviewer := h.defaultReviewerID
	if req.ReviewedBy != nil {
		reviewer = *req.ReviewedBy
	}

	h.transition(c, id, target, &reviewer)
}

// transition applies a status change, enforcing the one-way lifecycle at the
// caller boundary before touching the store.
func (h *Handlers) transition(c *gin.Context, id int64, target string, reviewer *int64) {
	if !models.KnownStatus(target) {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "unknown status: " + target})
		return
	}

	expense, diag := h.store.GetExpense(c.Request.Context(), id)
	if diag != nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success:    false,
			Error:      "expense store unavailable",
			Degraded:   true,
			Diagnostic: diag.Message,
		})
		return
	}
	if expense == nil {
		c.JSON(http.StatusNotFound, Response{Success: false, Error: "expense not found"})
		return
	}

	if !models.CanTransition(expense.StatusName, target) {
		c.JSON(http.StatusConflict, Response{
			Success: false,
			Error:   "cannot transition from " + expense.StatusName + " to " + target,
		})
		return
	}

	updated, diag := h.store.UpdateStatus(c.Request.Context(), id, target, reviewer)
	if !updated {
		resp := Response{Success: false, Error: "failed to update expense status"}
		if diag != nil {
			resp.Degraded = true
			resp.Diagnostic = diag.Message
		}
		c.JSON(http.StatusInternalServerError, resp)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListCategories handles GET /api/categories
func (h *Handlers) ListCategories(c *gin.Context) {
	res := h.store.ListCategories(c.Request.Context())
	resp := Response{Success: true, Data: res.Categories, Degraded: res.Synthetic}
	if res.Diag != nil {
		resp.Diagnostic = res.Diag.Message
	}
	c.JSON(http.StatusOK, resp)
}

// ExportExpenses handles GET /api/expenses/export
func (h *Handlers) ExportExpenses(c *gin.Context) {
	filter := c.Query("filter")
	status := c.Query("status")

	res := h.store.ListExpenses(c.Request.Context(), filter, status)
	buf, err := h.reports.Write(res.Expenses)
	if err != nil {
		h.logger.Error("Failed to generate expense report", zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to generate report"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="expenses.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// Chat handles POST /api/chat
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "message must not be empty"})
		return
	}

	reply := h.chat.RunChatTurn(c.Request.Context(), req.SessionID, req.Message)

	c.JSON(http.StatusOK, ChatResponse{
		Reply:      reply,
		Configured: h.chat.Configured(),
		Diagnostic: h.chat.Diagnostic(),
	})
}

// ClearChatSession handles DELETE /api/chat/:sessionId
func (h *Handlers) ClearChatSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if err := h.chat.ClearSession(c.Request.Context(), sessionID); err != nil {
		h.logger.Error("Failed to clear chat session",
			zap.String("session_id", sessionID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, Response{Success: false, Error: "failed to clear session"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Success: false, Error: "invalid expense ID"})
		return 0, false
	}
	return id, true
}

func listResponse(res store.ListResult) Response {
	expenses := res.Expenses
	if expenses == nil {
		expenses = []models.Expense{}
	}
	resp := Response{Success: true, Data: expenses, Degraded: res.Synthetic}
	if res.Diag != nil {
		resp.Diagnostic = res.Diag.Message
	}
	return resp
}
