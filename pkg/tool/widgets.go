package tool

import (
	"context"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
)

// Widget tools render interactive UI in the chat. The validated input is the
// widget payload; the UI reads it from the recorded tool call, so the
// handlers only validate and acknowledge.

// ShowOptions presents a set of clickable choices.
func ShowOptions() *Definition {
	return &Definition{
		Name:        "showOptions",
		Description: "Present the user with a set of clickable options to choose from. Use this instead of listing choices as text.",
		Properties: map[string]*model.Param{
			"message": {Type: "string", Description: "Optional message shown above the options"},
			"options": {
				Type:        "array",
				Description: "The choices to present",
				Items: &model.Param{
					Type: "object",
					Properties: map[string]*model.Param{
						"id":          {Type: "string", Description: "Stable option identifier"},
						"label":       {Type: "string", Description: "Short label shown on the option"},
						"description": {Type: "string", Description: "Optional longer explanation"},
					},
					Required: []string{"id", "label"},
				},
			},
		},
		Required: []string{"options"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if errRes := validateEntries(tc, "options", "id", "label"); errRes != nil {
				return errRes, nil
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Options displayed"}, nil
		},
	}
}

// ShowCard renders a highlighted card in the chat.
func ShowCard() *Definition {
	return &Definition{
		Name:        "showCard",
		Description: "Show a highlighted card with a title and body. Use it for summaries, confirmations, or warnings.",
		Properties: map[string]*model.Param{
			"message": {Type: "string", Description: "Optional message shown above the card"},
			"title":   {Type: "string", Description: "Card title"},
			"body":    {Type: "string", Description: "Card body text"},
			"variant": {Type: "string", Description: "Visual style of the card", Enum: []string{"info", "success", "warning"}},
		},
		Required: []string{"title", "body"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if _, errRes := stringInput(tc, "title"); errRes != nil {
				return errRes, nil
			}
			if _, errRes := stringInput(tc, "body"); errRes != nil {
				return errRes, nil
			}
			switch optionalString(tc, "variant") {
			case "", "info", "success", "warning":
			default:
				return errorResult(tc, "'variant' must be one of info, success, warning"), nil
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Card displayed"}, nil
		},
	}
}

// ShowSuggestions offers follow-up prompts the user can send with one click.
func ShowSuggestions() *Definition {
	return &Definition{
		Name:        "showSuggestions",
		Description: "Offer short follow-up prompts the user can send with one click.",
		Properties: map[string]*model.Param{
			"message": {Type: "string", Description: "Optional message shown above the suggestions"},
			"suggestions": {
				Type:        "array",
				Description: "The suggested prompts",
				Items: &model.Param{
					Type: "object",
					Properties: map[string]*model.Param{
						"label": {Type: "string", Description: "The prompt text"},
					},
					Required: []string{"label"},
				},
			},
		},
		Required: []string{"suggestions"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if errRes := validateEntries(tc, "suggestions", "label"); errRes != nil {
				return errRes, nil
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Suggestions displayed"}, nil
		},
	}
}

// validateEntries checks that the named parameter is a non-empty array of
// objects carrying the required string fields.
func validateEntries(tc *domain.ToolCall, key string, required ...string) *domain.ToolResult {
	raw, ok := tc.Input[key]
	if !ok {
		return errorResult(tc, "'%s' parameter is required", key)
	}
	items, ok := raw.([]any)
	if !ok {
		return errorResult(tc, "'%s' must be an array", key)
	}
	if len(items) == 0 {
		return errorResult(tc, "'%s' must not be empty", key)
	}
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return errorResult(tc, "%s entry %d must be an object", key, i)
		}
		for _, field := range required {
			if s, _ := obj[field].(string); s == "" {
				return errorResult(tc, "%s entry %d is missing '%s'", key, i, field)
			}
		}
	}
	return nil
}
