package runner

import (
	"context"
	"fmt"
	"log/slog"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
)

const (
	// defaultCompactionThreshold is the fraction of the model's context
	// window at which the thread should be compacted. 0.6 means compact
	// when estimated usage reaches 60%.
	defaultCompactionThreshold = 0.6
)

// checkAndCompact checks whether the thread needs compaction and triggers it
// if so. Compaction replaces older messages with a model-generated summary.
func (r *Runner) checkAndCompact(ctx context.Context, modelName, threadID string, entries []domain.ThreadMessage) (bool, error) {
	if len(entries) < 10 {
		// Don't bother compacting very short threads.
		return false, nil
	}

	// Estimate token usage (rough heuristic: ~4 chars per token).
	totalChars := 0
	for _, e := range entries {
		totalChars += len(e.Content)
	}
	estimatedTokens := totalChars / 4

	// Look up the model to get max context window.
	models, err := r.provider.List(ctx)
	if err != nil {
		return false, fmt.Errorf("listing models for compaction check: %w", err)
	}

	maxTokens := 0
	for _, m := range models {
		if m.ID == modelName {
			maxTokens = m.MaxTokens
			break
		}
	}
	if maxTokens == 0 {
		// Can't determine context window, skip compaction.
		return false, nil
	}

	if float64(estimatedTokens) < float64(maxTokens)*defaultCompactionThreshold {
		return false, nil
	}

	slog.Info("Thread compaction triggered",
		"threadID", threadID,
		"estimatedTokens", estimatedTokens,
		"maxTokens", maxTokens,
	)

	return r.compact(ctx, modelName, threadID, entries)
}

// compact asks the model to summarize the older half of the thread and
// records the summary so that ListMessages drops what it covers.
func (r *Runner) compact(ctx context.Context, modelName, threadID string, entries []domain.ThreadMessage) (bool, error) {
	// Find a safe compaction point: around 50% of entries from the
	// beginning, but never split a tool_call/tool_result pair.
	splitIdx := len(entries) / 2
	for splitIdx > 0 {
		entry := entries[splitIdx]
		// Don't split right after a tool call (before the result).
		if entry.ContentType == domain.ContentTypeToolCall {
			splitIdx--
			continue
		}
		// Don't split on a tool result (keep it with its call).
		if entry.Role == domain.RoleTool {
			splitIdx--
			continue
		}
		break
	}

	if splitIdx <= 1 {
		// Not enough entries to compact.
		return false, nil
	}

	prompt := "You are summarizing a conversation history for context compaction. " +
		"Create a dense, comprehensive summary of the following conversation that preserves:\n" +
		"- Key decisions and outcomes\n" +
		"- Document content that was drafted or revised\n" +
		"- Current state of any ongoing tasks\n" +
		"- Any instructions or preferences the user expressed\n\n" +
		"Be thorough but concise. This summary will replace the original messages.\n\n" +
		"CONVERSATION TO SUMMARIZE:\n"

	for _, e := range entries[:splitIdx] {
		prompt += fmt.Sprintf("[%s] %s\n", e.Role, e.Content)
	}

	messages := []model.Message{model.Text(domain.RoleUser, prompt)}

	stream, err := r.provider.Stream(ctx, modelName, "You are a conversation summarizer.", messages, nil)
	if err != nil {
		return false, fmt.Errorf("calling model for compaction: %w", err)
	}
	defer stream.Close()

	msg, err := stream.FullMessage()
	if err != nil {
		return false, fmt.Errorf("getting compaction summary: %w", err)
	}

	summary := ""
	for _, content := range msg.Content {
		if content.Type == domain.ContentTypeText {
			summary = content.Text
			break
		}
	}
	if summary == "" {
		return false, fmt.Errorf("model returned empty compaction summary")
	}

	if err := r.stores.Threads.Compact(ctx, threadID, summary, entries[splitIdx].ID); err != nil {
		return false, fmt.Errorf("recording compaction: %w", err)
	}
	return true, nil
}
