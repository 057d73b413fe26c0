package chat

import (
	openai "github.com/sashabaranov/go-openai"
)

// Tool names exposed to the completion service.
const (
	toolGetExpenses        = "get_expenses"
	toolCreateExpense      = "create_expense"
	toolGetPendingExpenses = "get_pending_expenses"
	toolApproveExpense     = "approve_expense"
)

// ParamSpec describes a single tool parameter.
type ParamSpec struct {
	Type        string
	Description string
}

// ToolDescriptor declares one callable capability: its name, purpose and
// parameter contract. Descriptors are immutable and defined once at startup.
type ToolDescriptor struct {
	Name        string
	Description string
	Params      map[string]ParamSpec
	Required    []string
}

// Catalog is the read-only registry of tools offered to the completion
// service. It holds no state and performs no I/O; each entry maps to exactly
// one expense store operation.
type Catalog struct {
	tools  []ToolDescriptor
	byName map[string]ToolDescriptor
}

// NewCatalog builds the static tool catalog.
func NewCatalog() *Catalog {
	tools := []ToolDescriptor{
		{
			Name:        toolGetExpenses,
			Description: "Get all expenses with optional filtering",
			Params: map[string]ParamSpec{
				"filter": {Type: "string", Description: "Optional filter by category or user name"},
				"status": {Type: "string", Description: "Optional filter by status (Draft, Submitted, Approved, Rejected)"},
			},
		},
		{
			Name:        toolCreateExpense,
			Description: "Create a new expense",
			Params: map[string]ParamSpec{
				"amount":      {Type: "number", Description: "Amount in GBP"},
				"category":    {Type: "string", Description: "Category name (Travel, Meals, Supplies, Accommodation, Other)"},
				"date":        {Type: "string", Description: "Expense date in YYYY-MM-DD format"},
				"description": {Type: "string", Description: "Optional description"},
			},
			Required: []string{"amount", "category", "date"},
		},
		{
			Name:        toolGetPendingExpenses,
			Description: "Get all expenses pending approval",
			Params:      map[string]ParamSpec{},
		},
		{
			Name:        toolApproveExpense,
			Description: "Approve an expense",
			Params: map[string]ParamSpec{
				"expenseId": {Type: "integer", Description: "The ID of the expense to approve"},
			},
			Required: []string{"expenseId"},
		},
	}

	byName := make(map[string]ToolDescriptor, len(tools))
	for _, t := range tools {
		byName[t.Name] = t
	}

	return &Catalog{tools: tools, byName: byName}
}

// Has reports whether a tool with the given name is registered.
func (c *Catalog) Has(name string) bool {
	_, ok := c.byName[name]
	return ok
}

// Descriptors returns the registered tool descriptors in declaration order.
func (c *Catalog) Descriptors() []ToolDescriptor {
	return c.tools
}

// OpenAITools converts the catalog into the completion request format.
func (c *Catalog) OpenAITools() []openai.Tool {
	tools := make([]openai.Tool, 0, len(c.tools))
	for _, t := range c.tools {
		properties := make(map[string]interface{}, len(t.Params))
		for name, p := range t.Params {
			properties[name] = map[string]interface{}{
				"type":        p.Type,
				"description": p.Description,
			}
		}

		params := map[string]interface{}{
			"type":       "object",
			"properties": properties,
		}
		if len(t.Required) > 0 {
			params["required"] = t.Required
		}

		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
