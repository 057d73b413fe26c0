package chat

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"time"

	"github.com/expenseworks/expense-management/internal/models"
	"github.com/expenseworks/expense-management/internal/store"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const systemPrompt = `You are an AI assistant for an expense management system. You can help users:
- View expenses
- Add new expenses
- Approve expenses
- Get expense statistics

Use the available functions to interact with the expense database. Always be helpful and provide clear information.
When showing amounts, always include the £ symbol for GBP currency.`

const notConfiguredReply = "The AI assistant is not configured. Set OPENAI_API_KEY and restart the service to enable chat. I cannot process requests right now."

const turnErrorReply = "I encountered an error while processing your request. Please try again."

// CompletionClient is the chat-completion service dependency.
// *openai.Client satisfies it.
type CompletionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ExpenseStore is the data-access dependency of the orchestrator.
type ExpenseStore interface {
	ListExpenses(ctx context.Context, filter, status string) store.ListResult
	ListPendingExpenses(ctx context.Context) store.ListResult
	ListCategories(ctx context.Context) store.CategoryResult
	CreateExpense(ctx context.Context, userID, categoryID, amountMinor int64, currency string, date time.Time, description string) (int64, *store.Diagnostic)
	UpdateStatus(ctx context.Context, id int64, statusName string, reviewerID *int64) (bool, *store.Diagnostic)
}

// TranscriptStore persists per-session transcripts between requests.
type TranscriptStore interface {
	Load(ctx context.Context, sessionID string) ([]models.ChatMessageItem, error)
	Save(ctx context.Context, sessionID string, messages []models.ChatMessageItem) error
	Clear(ctx context.Context, sessionID string) error
}

// Config holds orchestrator settings.
type Config struct {
	Model             string
	Temperature       float32
	MaxToolRounds     int
	DefaultUserID     int64
	DefaultReviewerID int64 // stand-in for an authenticated reviewer identity
}

// Service drives the conversational turn loop: it sends the session history
// and tool catalog to the completion service, executes requested tool calls
// against the expense store, and feeds results back until the model produces
// a natural-language reply.
type Service struct {
	client     CompletionClient
	store      ExpenseStore
	sessions   TranscriptStore
	catalog    *Catalog
	cfg        Config
	logger     *zap.Logger
	diagnostic string
}

// NewService creates the conversation orchestrator. A nil client leaves the
// service in the unconfigured state: turns are still accepted but answered
// with a fixed explanatory message.
func NewService(client CompletionClient, st ExpenseStore, sessions TranscriptStore, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 3
	}

	s := &Service{
		client:   client,
		store:    st,
		sessions: sessions,
		catalog:  NewCatalog(),
		cfg:      cfg,
		logger:   logger,
	}
	if client == nil {
		s.diagnostic = "OpenAI configuration not found. Set OPENAI_API_KEY to enable the chat assistant."
		logger.Warn("Chat service starting unconfigured", zap.String("reason", s.diagnostic))
	}
	return s
}

// Configured reports whether the completion service is available.
func (s *Service) Configured() bool {
	return s.client != nil
}

// Diagnostic returns the configuration diagnostic, or empty when configured.
func (s *Service) Diagnostic() string {
	return s.diagnostic
}

// RunChatTurn executes a full chat turn for a session: load the transcript,
// obtain the assistant reply, append both turns and persist the transcript.
// Persistence faults are logged and do not fail the turn.
func (s *Service) RunChatTurn(ctx context.Context, sessionID, userText string) string {
	history, err := s.sessions.Load(ctx, sessionID)
	if err != nil {
		s.logger.Error("Failed to load session transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
		history = nil
	}

	reply := s.Chat(ctx, userText, history)

	history = append(history,
		models.ChatMessageItem{Role: models.RoleUser, Content: userText},
		models.ChatMessageItem{Role: models.RoleAssistant, Content: reply},
	)
	if err := s.sessions.Save(ctx, sessionID, history); err != nil {
		s.logger.Error("Failed to save session transcript",
			zap.String("session_id", sessionID),
			zap.Error(err))
	}

	return reply
}

// ClearSession discards a session transcript.
func (s *Service) ClearSession(ctx context.Context, sessionID string) error {
	return s.sessions.Clear(ctx, sessionID)
}

// Chat answers a single user message given the prior transcript. All faults
// are contained to the turn: the session stays usable and the caller always
// receives an assistant reply.
func (s *Service) Chat(ctx context.Context, userText string, history []models.ChatMessageItem) string {
	if s.client == nil {
		return notConfiguredReply
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: systemPrompt,
	})
	for _, m := range history {
		role := openai.ChatMessageRoleAssistant
		if m.Role == models.RoleUser {
			role = openai.ChatMessageRoleUser
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: m.Content})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: userText,
	})

	req := openai.ChatCompletionRequest{
		Model:       s.cfg.Model,
		Temperature: s.cfg.Temperature,
		Messages:    messages,
		Tools:       s.catalog.OpenAITools(),
	}

	// The protocol may request tools again after seeing tool results, so the
	// round count is a loop bound rather than a single re-invocation.
	for round := 0; round <= s.cfg.MaxToolRounds; round++ {
		resp, err := s.client.CreateChatCompletion(ctx, req)
		if err != nil {
			s.logger.Error("Chat completion failed", zap.Error(err))
			return turnErrorReply
		}
		if len(resp.Choices) == 0 {
			s.logger.Error("Chat completion returned no choices")
			return turnErrorReply
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content
		}

		req.Messages = append(req.Messages, msg)
		// Tool calls execute sequentially in the requested order; later calls
		// may depend on earlier results being visible in the history.
		for _, tc := range msg.ToolCalls {
			result := s.executeTool(ctx, tc.Function.Name, tc.Function.Arguments)
			req.Messages = append(req.Messages, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    result,
				ToolCallID: tc.ID,
			})
		}
	}

	s.logger.Warn("Tool round limit exceeded", zap.Int("max_rounds", s.cfg.MaxToolRounds))
	return turnErrorReply
}

// expenseView is the projection of an expense fed back to the model.
type expenseView struct {
	ExpenseID   int64   `json:"expenseId"`
	ExpenseDate string  `json:"expenseDate"`
	Category    string  `json:"category"`
	Amount      float64 `json:"amount"`
	Status      string  `json:"status"`
	User        string  `json:"user"`
	Description string  `json:"description,omitempty"`
}

func toExpenseViews(expenses []models.Expense) []expenseView {
	views := make([]expenseView, 0, len(expenses))
	for i := range expenses {
		e := &expenses[i]
		views = append(views, expenseView{
			ExpenseID:   e.ID,
			ExpenseDate: e.ExpenseDate.Format("2006-01-02"),
			Category:    e.CategoryName,
			Amount:      e.AmountMajor(),
			Status:      e.StatusName,
			User:        e.UserName,
			Description: e.Description,
		})
	}
	return views
}

// executeTool resolves and runs one requested tool call. Failures of a single
// call become structured payloads for the model; they never abort the turn.
func (s *Service) executeTool(ctx context.Context, name, rawArgs string) string {
	s.logger.Debug("Executing tool call",
		zap.String("tool", name),
		zap.String("arguments", rawArgs))

	switch name {
	case toolGetExpenses:
		args, err := parseGetExpensesArgs(rawArgs)
		if err != nil {
			return failurePayload(err.Error())
		}
		res := s.store.ListExpenses(ctx, args.Filter, args.Status)
		return marshalPayload(toExpenseViews(res.Expenses))

	case toolCreateExpense:
		return s.createExpenseTool(ctx, rawArgs)

	case toolGetPendingExpenses:
		res := s.store.ListPendingExpenses(ctx)
		return marshalPayload(toExpenseViews(res.Expenses))

	case toolApproveExpense:
		args, err := parseApproveExpenseArgs(rawArgs)
		if err != nil {
			return failurePayload(err.Error())
		}
		reviewer := s.cfg.DefaultReviewerID
		ok, _ := s.store.UpdateStatus(ctx, *args.ExpenseID, models.StatusApproved, &reviewer)
		return marshalPayload(map[string]interface{}{"success": ok})

	default:
		s.logger.Warn("Unknown tool requested", zap.String("tool", name))
		return `{"error":"Unknown function"}`
	}
}

func (s *Service) createExpenseTool(ctx context.Context, rawArgs string) string {
	args, date, err := parseCreateExpenseArgs(rawArgs)
	if err != nil {
		return failurePayload(err.Error())
	}

	category, ok := s.resolveCategory(ctx, args.Category)
	if !ok {
		return failurePayload("Invalid category")
	}

	amountMinor := int64(math.Round(*args.Amount * 100))
	id, _ := s.store.CreateExpense(ctx, s.cfg.DefaultUserID, category.ID, amountMinor, "GBP", date, args.Description)
	if id == 0 {
		return failurePayload("Failed to create expense")
	}

	return marshalPayload(map[string]interface{}{"success": true, "expenseId": id})
}

// resolveCategory matches a category name exactly (case-insensitive) against
// the active categories.
func (s *Service) resolveCategory(ctx context.Context, name string) (models.ExpenseCategory, bool) {
	res := s.store.ListCategories(ctx)
	for _, cat := range res.Categories {
		if strings.EqualFold(cat.Name, name) {
			return cat, true
		}
	}
	return models.ExpenseCategory{}, false
}

func failurePayload(reason string) string {
	return marshalPayload(map[string]interface{}{"success": false, "error": reason})
}

func marshalPayload(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return `{"error":"failed to encode tool result"}`
	}
	return string(data)
}
