// Package tool defines the tools exposed to models: each tool carries a
// parameter schema handed to the provider and a handler invoked when the
// model calls it.
package tool

import (
	"context"
	"errors"
	"fmt"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
)

var (
	// ErrNoThread is returned when a tool requiring a thread is called
	// without one in the call context.
	ErrNoThread = errors.New("no thread in call context")

	// ErrNoUser is returned when a tool requiring a user is called
	// without one in the call context.
	ErrNoUser = errors.New("no user in call context")
)

// CallContext identifies the thread and user a tool call runs on behalf of.
type CallContext struct {
	ThreadID string
	UserID   string
}

// Handler executes a single tool call.
type Handler func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error)

// Definition is a tool the model can invoke.
type Definition struct {
	Name        string
	Description string
	Properties  map[string]*model.Param
	Required    []string
	Handler     Handler
}

// Decl returns the provider-facing declaration for the tool.
func (d *Definition) Decl() model.ToolDecl {
	return model.ToolDecl{
		Name:        d.Name,
		Description: d.Description,
		Properties:  d.Properties,
		Required:    d.Required,
	}
}

// Decls converts a tool set to provider declarations.
func Decls(defs []*Definition) []model.ToolDecl {
	decls := make([]model.ToolDecl, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, d.Decl())
	}
	return decls
}

// Find returns the tool with the given name, or nil.
func Find(defs []*Definition, name string) *Definition {
	for _, d := range defs {
		if d.Name == name {
			return d
		}
	}
	return nil
}

// errorResult records a tool failure as an observation for the model rather
// than aborting the run.
func errorResult(tc *domain.ToolCall, format string, args ...any) *domain.ToolResult {
	return &domain.ToolResult{
		ToolCallID: tc.ID,
		Content:    fmt.Sprintf("Error: "+format, args...),
		IsError:    true,
	}
}

// stringInput reads a required string parameter from the call input.
func stringInput(tc *domain.ToolCall, key string) (string, *domain.ToolResult) {
	v, ok := tc.Input[key]
	if !ok {
		return "", errorResult(tc, "'%s' parameter is required", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errorResult(tc, "'%s' must be a string", key)
	}
	return s, nil
}

// optionalString reads an optional string parameter, returning "" when absent.
func optionalString(tc *domain.ToolCall, key string) string {
	s, _ := tc.Input[key].(string)
	return s
}
