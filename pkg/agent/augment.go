package agent

import (
	"context"
	"fmt"
	"strings"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store"
)

// Augmenter prepends derived system messages to a run's message history:
// the user's confirmed memories, then a directory of sub-agents eligible
// for the thread's document type.
type Augmenter struct {
	memories  store.MemoryStore
	documents store.DocumentStore
	configs   store.AgentConfigStore
}

func NewAugmenter(memories store.MemoryStore, documents store.DocumentStore, configs store.AgentConfigStore) *Augmenter {
	return &Augmenter{memories: memories, documents: documents, configs: configs}
}

// Augment returns the message history with any applicable system messages
// prepended, memory block first. When neither block applies the input is
// returned with identical content.
func (a *Augmenter) Augment(ctx context.Context, messages []model.Message, userID, threadID string) ([]model.Message, error) {
	var prefix []model.Message

	if userID != "" {
		memories, err := a.memories.ListConfirmed(ctx, userID)
		if err != nil {
			return nil, fmt.Errorf("listing confirmed memories: %w", err)
		}
		if len(memories) > 0 {
			prefix = append(prefix, model.Text(domain.RoleSystem, memoryFactSheet(memories)))
		}
	}

	if threadID != "" {
		// The directory is advisory. Lookup failures mean no directory,
		// never a run failure.
		if refs := a.eligibleConfigs(ctx, threadID); len(refs) > 0 {
			prefix = append(prefix, model.Text(domain.RoleSystem, subAgentDirectory(refs)))
		}
	}

	if len(prefix) == 0 {
		return messages, nil
	}
	return append(prefix, messages...), nil
}

func (a *Augmenter) eligibleConfigs(ctx context.Context, threadID string) []domain.ConfigRef {
	doc, err := a.documents.GetDocumentByThread(ctx, threadID)
	if err != nil {
		return nil
	}
	configs, err := a.configs.ListActiveConfigsForType(ctx, doc.Type)
	if err != nil {
		return nil
	}
	refs := make([]domain.ConfigRef, 0, len(configs))
	for _, cfg := range configs {
		refs = append(refs, cfg.Ref())
	}
	return refs
}

func memoryFactSheet(memories []domain.Memory) string {
	var b strings.Builder
	b.WriteString("# Things I remember about this user")
	for _, m := range memories {
		b.WriteString("\n- ")
		b.WriteString(m.Content)
	}
	return b.String()
}

func subAgentDirectory(refs []domain.ConfigRef) string {
	var b strings.Builder
	b.WriteString("# Available sub-agents\nThese specialized sub-agents can be invoked with the delegateToAgent tool:")
	for _, r := range refs {
		fmt.Fprintf(&b, "\n- %s: %s", r.Slug, r.Name)
	}
	return b.String()
}
