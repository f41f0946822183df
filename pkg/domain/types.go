package domain

import "time"

// Document is a unit of user-facing content under edit. Each document owns
// exactly one conversation thread; the agent that handles that thread is
// selected by the document's Type.
type Document struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`

	// RunStatus reflects the most recent generation run. It is set to
	// working synchronously when a prompt is accepted and patched to a
	// terminal value when the run settles.
	RunStatus RunStatus `json:"run_status"`

	// PendingContent is a staged full-document replacement produced by a
	// document-editing tool. The presentation layer applies it to the live
	// editor and clears it; it is never the document's durable state.
	PendingContent string `json:"pending_content,omitempty"`

	// DocumentContent is a best-effort plain mirror of the live editable
	// content, kept in sync by the external document-sync layer and read
	// back by the readDocument tool.
	DocumentContent string `json:"document_content,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Memory is a proposed or confirmed fact about a user. Memories are created
// pending by the proposeMemory tool and require explicit user confirmation
// before they are surfaced back into agent context.
type Memory struct {
	ID        string         `json:"id"`
	UserID    string         `json:"user_id"`
	Content   string         `json:"content"`
	Category  MemoryCategory `json:"category"`
	Status    MemoryStatus   `json:"status"`
	ThreadID  string         `json:"thread_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// AgentConfig is an admin-authored sub-agent definition. The delegation tool
// resolves it by slug and assembles its tool catalog from the config's
// active skills at call time, so edits take effect on the next delegation.
type AgentConfig struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Instructions  string       `json:"instructions"`
	Model         string       `json:"model,omitempty"`
	MaxSteps      int          `json:"max_steps,omitempty"`
	AssignedTypes []string     `json:"assigned_types"`
	Status        ConfigStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Skill belongs to one AgentConfig and becomes a callable tool for that
// config's sub-agent. The description is surfaced to the model as the tool
// description; the procedure text is the tool's output.
type Skill struct {
	ID            string       `json:"id"`
	AgentConfigID string       `json:"agent_config_id"`
	Name          string       `json:"name"`
	Slug          string       `json:"slug"`
	Description   string       `json:"description"`
	Procedure     string       `json:"procedure"`
	Status        ConfigStatus `json:"status"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// SkillTemplate is a reference file attached to a skill, discoverable when
// the skill's tool is invoked and loadable in full by slug.
type SkillTemplate struct {
	ID          string           `json:"id"`
	SkillID     string           `json:"skill_id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"`
	Content     string           `json:"content"`
	FileType    TemplateFileType `json:"file_type"`
	CreatedAt   time.Time        `json:"created_at"`
}

// ConfigRef is a lightweight reference to an agent config, surfaced to the
// model by the listAgentConfigs tool and by context augmentation.
type ConfigRef struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// refDescriptionLen bounds how much of a config's instructions is surfaced
// as its description when listing configs for the model.
const refDescriptionLen = 200

// Ref returns the config's lightweight reference. The description is the
// leading slice of the instructions.
func (c AgentConfig) Ref() ConfigRef {
	desc := c.Instructions
	if runes := []rune(desc); len(runes) > refDescriptionLen {
		desc = string(runes[:refDescriptionLen])
	}
	return ConfigRef{Slug: c.Slug, Name: c.Name, Description: desc}
}

// Avatar is a catalog entry the storyboard and freeform agents can assign
// to document content.
type Avatar struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Style     string    `json:"style"`
	Seed      string    `json:"seed"`
	CreatedAt time.Time `json:"created_at"`
}

// SceneLayout is a catalog entry describing a storyboard scene layout type.
type SceneLayout struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Scene is one row of a storyboard table.
type Scene struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Script        string `json:"script"`
	AvatarID      string `json:"avatarId"`
	SceneLayoutID string `json:"sceneLayoutId"`
}

// Selection is a user-highlighted span of a document, captured by the editor
// so the UI can feed it into a prompt. The agent loop never touches these.
type Selection struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	DocumentID string          `json:"document_id"`
	Text       string          `json:"text"`
	HTML       string          `json:"html"`
	From       int             `json:"from"`
	To         int             `json:"to"`
	Status     SelectionStatus `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ThreadMessage is a single entry in a document's conversation thread.
// Threads are append-only; tool calls and results are stored JSON-encoded
// in Content.
type ThreadMessage struct {
	ID          string    `json:"id"`
	ThreadID    string    `json:"thread_id"`
	Role        Role      `json:"role"`
	ContentType string    `json:"content_type"`
	Content     string    `json:"content"`
	Model       string    `json:"model,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Attachment references an uploaded file included with a prompt.
type Attachment struct {
	StorageID string `json:"storage_id"`
	FileName  string `json:"file_name"`
	MIMEType  string `json:"mime_type"`
}

// ToolCall represents a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

// ToolResult represents the outcome of a tool call execution.
type ToolResult struct {
	ToolCallID string `json:"tool_call_id"`
	Content    string `json:"content"`
	IsError    bool   `json:"is_error"`
}

// Model represents an available LLM model.
type Model struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Provider  string `json:"provider"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}
