package domain

// Role defines the sender of a thread message.
type Role string

const (
	// RoleUser indicates a message from the user.
	RoleUser Role = "user"
	// RoleAssistant indicates a message from the model/assistant.
	RoleAssistant Role = "assistant"
	// RoleTool indicates a tool result.
	RoleTool Role = "tool"
	// RoleSystem indicates a derived system message (memory fact sheet,
	// sub-agent directory).
	RoleSystem Role = "system"
)

// Thread message content types.
const (
	ContentTypeText       = "text"
	ContentTypeToolCall   = "tool_call"
	ContentTypeToolResult = "tool_result"
	ContentTypeFile       = "file"
	// ContentTypeCompaction marks a model-generated summary that stands in
	// for all earlier messages in the thread.
	ContentTypeCompaction = "compaction"
)
