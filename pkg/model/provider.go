package model

import (
	"context"

	"coscribe/pkg/domain"
)

// Message represents a message in the model's conversation context.
type Message struct {
	// Role indicates the sender (user, assistant, tool, system).
	Role domain.Role
	// Content holds the message parts.
	Content []Content
}

// Content represents a single component of a message.
type Content struct {
	Type string // "text", "tool_call", "tool_result", "file"

	// Text content (when Type == "text").
	Text string `json:"text,omitempty"`

	// Tool call (when Type == "tool_call").
	ToolCall *domain.ToolCall `json:"tool_call,omitempty"`

	// Tool result (when Type == "tool_result").
	ToolResult *domain.ToolResult `json:"tool_result,omitempty"`

	// File part (when Type == "file"): a fetchable URL for an uploaded
	// attachment, included alongside the prompt text of the first message.
	FileURL  string `json:"file_url,omitempty"`
	MIMEType string `json:"mime_type,omitempty"`
}

// Text builds a plain text message.
func Text(role domain.Role, text string) Message {
	return Message{Role: role, Content: []Content{{Type: domain.ContentTypeText, Text: text}}}
}

// Param describes one parameter in a tool's input schema.
type Param struct {
	Type        string            `json:"type"` // "string", "number", "integer", "boolean", "array", "object"
	Description string            `json:"description,omitempty"`
	Enum        []string          `json:"enum,omitempty"`
	Items       *Param            `json:"items,omitempty"`
	Properties  map[string]*Param `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

// ToolDecl is a tool declaration presented to the model: a name, a
// description, and an object schema for the input.
type ToolDecl struct {
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Properties  map[string]*Param `json:"properties,omitempty"`
	Required    []string          `json:"required,omitempty"`
}

// Provider represents a service that provides LLMs (e.g. Gemini).
type Provider interface {
	// Name returns the provider's identifier (e.g. "gemini").
	Name() string

	// List returns the available models from this provider.
	List(ctx context.Context) ([]domain.Model, error)

	// Stream sends a conversation context to the LLM and returns a stream
	// of responses. instructions is the system prompt; tools is the agent's
	// tool catalog, declared fresh per call because catalogs are assembled
	// dynamically.
	Stream(ctx context.Context, modelName, instructions string, messages []Message, tools []ToolDecl) (ModelStream, error)
}

// ModelStream abstracts the stream of responses from the model.
type ModelStream interface {
	// FullMessage blocks until the complete response is available and
	// returns it.
	FullMessage() (Message, error)

	// Close releases resources associated with this stream.
	Close() error
}
