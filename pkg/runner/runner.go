// Package runner drives the turn-based generation protocol: a prompt enters
// a thread, the document flips to working, and a bounded model/tool loop
// runs until the model produces final text or the step budget runs out.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"coscribe/pkg/agent"
	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store"
	"coscribe/pkg/tool"
)

const maxTitleLen = 50

// Stores bundles the persistence interfaces the runner needs.
type Stores struct {
	Documents store.DocumentStore
	Memories  store.MemoryStore
	Threads   store.ThreadStore
	Configs   store.AgentConfigStore
	Skills    store.SkillStore
	Templates store.TemplateStore
	Avatars   store.AvatarStore
	Layouts   store.SceneLayoutStore
}

// Runner orchestrates generation runs against documents.
type Runner struct {
	stores    Stores
	files     store.FileStore
	provider  model.Provider
	registry  *agent.Registry
	augmenter *agent.Augmenter
}

// New wires the runner: the tool catalog is built over the stores and the
// delegation tools call back into the runner for nested runs.
func New(stores Stores, files store.FileStore, provider model.Provider) *Runner {
	r := &Runner{
		stores:   stores,
		files:    files,
		provider: provider,
	}
	catalog := tool.NewCatalog(stores.Documents, stores.Memories, stores.Avatars, stores.Layouts)
	r.registry = agent.NewRegistry(catalog, r.listAgentConfigsTool(), r.delegateToAgentTool(catalog))
	r.augmenter = agent.NewAugmenter(stores.Memories, stores.Documents, stores.Configs)
	return r
}

// Registry exposes the static agent registry, mainly for the server layer.
func (r *Runner) Registry() *agent.Registry {
	return r.registry
}

// Send accepts a prompt for a document and schedules a generation run. The
// document's run status is set to working before Send returns; generation
// happens on a background goroutine. Returns the appended message ID.
func (r *Runner) Send(ctx context.Context, userID, documentID, prompt string, attachments []domain.Attachment) (string, error) {
	doc, err := r.stores.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("loading document: %w", err)
	}
	if doc.UserID != userID {
		return "", store.ErrNotFound
	}

	existing, err := r.stores.Threads.ListMessages(ctx, doc.ThreadID, 1)
	if err != nil {
		return "", fmt.Errorf("checking thread: %w", err)
	}

	msgID := uuid.New().String()
	if err := r.stores.Threads.AppendMessage(ctx, &domain.ThreadMessage{
		ID:          msgID,
		ThreadID:    doc.ThreadID,
		Role:        domain.RoleUser,
		ContentType: domain.ContentTypeText,
		Content:     prompt,
		Timestamp:   time.Now().UTC(),
	}); err != nil {
		return "", fmt.Errorf("appending prompt: %w", err)
	}

	for _, att := range attachments {
		b, _ := json.Marshal(att)
		if err := r.stores.Threads.AppendMessage(ctx, &domain.ThreadMessage{
			ID:          uuid.New().String(),
			ThreadID:    doc.ThreadID,
			Role:        domain.RoleUser,
			ContentType: domain.ContentTypeFile,
			Content:     string(b),
			Timestamp:   time.Now().UTC(),
		}); err != nil {
			return "", fmt.Errorf("appending attachment: %w", err)
		}
	}

	patch := store.DocumentPatch{RunStatus: ptr(domain.RunStatusWorking)}
	if len(existing) == 0 {
		title := deriveTitle(prompt)
		patch.Title = &title
	}
	if err := r.stores.Documents.PatchDocument(ctx, doc.ID, patch); err != nil {
		return "", fmt.Errorf("marking document working: %w", err)
	}

	go r.runAndSettle(doc, userID)

	return msgID, nil
}

// Run executes a generation run synchronously and settles the document's
// run status. It is the same path the Send goroutine takes; callers that
// need the error (schedulers, tests) use this directly.
func (r *Runner) Run(ctx context.Context, documentID, userID string) error {
	doc, err := r.stores.Documents.GetDocument(ctx, documentID)
	if err != nil {
		return fmt.Errorf("loading document: %w", err)
	}
	return r.settle(ctx, doc, userID)
}

func (r *Runner) runAndSettle(doc *domain.Document, userID string) {
	ctx := context.Background()
	if err := r.settle(ctx, doc, userID); err != nil {
		slog.Error("Run failed", "documentID", doc.ID, "error", err)
	}
}

func (r *Runner) settle(ctx context.Context, doc *domain.Document, userID string) error {
	def := r.registry.ForType(doc.Type)

	_, runErr := r.generate(ctx, def, userID, doc.ThreadID)

	status := domain.RunStatusCompleted
	if runErr != nil {
		status = domain.RunStatusError
	}
	if err := r.stores.Documents.PatchDocument(ctx, doc.ID, store.DocumentPatch{RunStatus: ptr(status)}); err != nil {
		slog.Error("Failed to settle run status", "documentID", doc.ID, "error", err)
	}
	return runErr
}

// generate drives the model/tool loop on a thread until the model returns
// final text or the step budget is exhausted. Returns the last text the
// model produced.
func (r *Runner) generate(ctx context.Context, def *agent.Definition, userID, threadID string) (string, error) {
	modelName := def.Model
	if modelName == "" {
		modelName = agent.DefaultModel
	}
	decls := tool.Decls(def.Tools)
	callCtx := &tool.CallContext{ThreadID: threadID, UserID: userID}

	var lastText string
	for step := 0; step < def.MaxSteps; step++ {
		entries, err := r.stores.Threads.ListMessages(ctx, threadID, 0)
		if err != nil {
			return "", fmt.Errorf("loading thread: %w", err)
		}

		// Compaction failures never fail the run; the thread just stays
		// uncompacted until the next attempt.
		compacted, err := r.checkAndCompact(ctx, modelName, threadID, entries)
		if err != nil {
			slog.Warn("Thread compaction failed", "threadID", threadID, "error", err)
		} else if compacted {
			entries, err = r.stores.Threads.ListMessages(ctx, threadID, 0)
			if err != nil {
				return "", fmt.Errorf("reloading thread: %w", err)
			}
		}

		messages, err := r.buildMessages(ctx, entries)
		if err != nil {
			return "", err
		}
		messages, err = r.augmenter.Augment(ctx, messages, userID, threadID)
		if err != nil {
			return "", fmt.Errorf("augmenting context: %w", err)
		}

		stream, err := r.provider.Stream(ctx, modelName, def.Instructions, messages, decls)
		if err != nil {
			return "", fmt.Errorf("streaming model: %w", err)
		}
		msg, err := stream.FullMessage()
		stream.Close()
		if err != nil {
			return "", fmt.Errorf("getting model response: %w", err)
		}

		var toolCalls []*domain.ToolCall
		for _, content := range msg.Content {
			entry := &domain.ThreadMessage{
				ID:        uuid.New().String(),
				ThreadID:  threadID,
				Role:      domain.RoleAssistant,
				Model:     modelName,
				Timestamp: time.Now().UTC(),
			}
			switch content.Type {
			case domain.ContentTypeText:
				entry.ContentType = domain.ContentTypeText
				entry.Content = content.Text
				lastText = content.Text
			case domain.ContentTypeToolCall:
				entry.ContentType = domain.ContentTypeToolCall
				b, _ := json.Marshal(content.ToolCall)
				entry.Content = string(b)
				toolCalls = append(toolCalls, content.ToolCall)
			default:
				continue
			}
			if err := r.stores.Threads.AppendMessage(ctx, entry); err != nil {
				return "", fmt.Errorf("appending response: %w", err)
			}
		}

		if len(toolCalls) == 0 {
			return lastText, nil
		}

		for _, tc := range toolCalls {
			result := r.dispatchTool(ctx, def, callCtx, tc)
			b, _ := json.Marshal(result)
			if err := r.stores.Threads.AppendMessage(ctx, &domain.ThreadMessage{
				ID:          uuid.New().String(),
				ThreadID:    threadID,
				Role:        domain.RoleTool,
				ContentType: domain.ContentTypeToolResult,
				Content:     string(b),
				Timestamp:   time.Now().UTC(),
			}); err != nil {
				return "", fmt.Errorf("appending tool result: %w", err)
			}
		}
	}

	// Budget exhausted without a final text turn. The run still completes;
	// the caller gets whatever text the last model turn produced.
	return lastText, nil
}

// dispatchTool routes a tool call to its handler. Handler failures become
// tool-error observations so the model can adapt; only context errors from
// missing wiring surface the raw error text.
func (r *Runner) dispatchTool(ctx context.Context, def *agent.Definition, callCtx *tool.CallContext, tc *domain.ToolCall) *domain.ToolResult {
	td := tool.Find(def.Tools, tc.Name)
	if td == nil {
		return &domain.ToolResult{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("Error: unknown tool: %s", tc.Name),
			IsError:    true,
		}
	}
	result, err := td.Handler(ctx, callCtx, tc)
	if err != nil {
		return &domain.ToolResult{
			ToolCallID: tc.ID,
			Content:    fmt.Sprintf("Error: %v", err),
			IsError:    true,
		}
	}
	return result
}

// buildMessages converts a thread's log into model messages, resolving file
// attachments to fetchable URLs.
func (r *Runner) buildMessages(ctx context.Context, entries []domain.ThreadMessage) ([]model.Message, error) {
	var messages []model.Message
	for _, e := range entries {
		msg := model.Message{Role: e.Role}
		switch e.ContentType {
		case domain.ContentTypeText:
			msg.Content = []model.Content{{Type: domain.ContentTypeText, Text: e.Content}}
		case domain.ContentTypeCompaction:
			// Feed the summary back as user text so the model treats it
			// as established conversation state.
			msg.Role = domain.RoleUser
			msg.Content = []model.Content{{Type: domain.ContentTypeText,
				Text: "Summary of the earlier conversation:\n\n" + e.Content}}
		case domain.ContentTypeToolCall:
			var tc domain.ToolCall
			json.Unmarshal([]byte(e.Content), &tc)
			msg.Content = []model.Content{{Type: domain.ContentTypeToolCall, ToolCall: &tc}}
		case domain.ContentTypeToolResult:
			var tr domain.ToolResult
			json.Unmarshal([]byte(e.Content), &tr)
			msg.Content = []model.Content{{Type: domain.ContentTypeToolResult, ToolResult: &tr}}
		case domain.ContentTypeFile:
			var att domain.Attachment
			json.Unmarshal([]byte(e.Content), &att)
			url, err := r.files.ResolveDownloadURL(ctx, att.StorageID)
			if err != nil {
				slog.Warn("Skipping unresolvable attachment", "storageID", att.StorageID, "error", err)
				continue
			}
			part := model.Content{Type: domain.ContentTypeFile, FileURL: url, MIMEType: att.MIMEType}
			// Attachments ride on the prompt they were sent with.
			if n := len(messages); n > 0 && messages[n-1].Role == domain.RoleUser {
				messages[n-1].Content = append(messages[n-1].Content, part)
				continue
			}
			msg.Content = []model.Content{part}
		default:
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func userMessage(threadID, text string) *domain.ThreadMessage {
	return &domain.ThreadMessage{
		ID:          uuid.New().String(),
		ThreadID:    threadID,
		Role:        domain.RoleUser,
		ContentType: domain.ContentTypeText,
		Content:     text,
		Timestamp:   time.Now().UTC(),
	}
}

func deriveTitle(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > maxTitleLen {
		return string(runes[:maxTitleLen]) + "..."
	}
	return prompt
}

func ptr[T any](v T) *T { return &v }
