package runner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"coscribe/pkg/agent"
	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store"
	"coscribe/pkg/tool"
)

const defaultSubAgentMaxSteps = 10

var (
	// ErrConfigNotFound fails a delegation to an unknown slug.
	ErrConfigNotFound = errors.New("agent config not found")

	// ErrConfigArchived fails a delegation to an archived config.
	ErrConfigArchived = errors.New("agent config is archived")
)

// listAgentConfigsTool reports the sub-agents eligible for the thread's
// document type.
func (r *Runner) listAgentConfigsTool() *tool.Definition {
	return &tool.Definition{
		Name:        "listAgentConfigs",
		Description: "List the specialized sub-agents available for this document type. Returns their slugs, names, and descriptions for use with delegateToAgent.",
		Handler: func(ctx context.Context, call *tool.CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, tool.ErrNoThread
			}
			doc, err := r.stores.Documents.GetDocumentByThread(ctx, call.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("getting document: %w", err)
			}
			configs, err := r.stores.Configs.ListActiveConfigsForType(ctx, doc.Type)
			if err != nil {
				return nil, fmt.Errorf("listing configs: %w", err)
			}
			if len(configs) == 0 {
				return &domain.ToolResult{ToolCallID: tc.ID, Content: "No sub-agents are available."}, nil
			}
			refs := make([]domain.ConfigRef, 0, len(configs))
			for _, cfg := range configs {
				refs = append(refs, cfg.Ref())
			}
			b, _ := json.Marshal(refs)
			return &domain.ToolResult{ToolCallID: tc.ID, Content: string(b)}, nil
		},
	}
}

// delegateToAgentTool hands a task off to a configured sub-agent: a nested
// bounded run on the same thread whose final text becomes the parent's
// observation.
func (r *Runner) delegateToAgentTool(catalog *tool.Catalog) *tool.Definition {
	return &tool.Definition{
		Name:        "delegateToAgent",
		Description: "Delegate a task to a specialized sub-agent by slug. The sub-agent runs autonomously with its own skills and returns its result.",
		Properties: map[string]*model.Param{
			"agentSlug": {Type: "string", Description: "The sub-agent's slug, from listAgentConfigs"},
			"task":      {Type: "string", Description: "The task for the sub-agent to perform"},
		},
		Required: []string{"agentSlug", "task"},
		Handler: func(ctx context.Context, call *tool.CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, tool.ErrNoThread
			}
			slug, _ := tc.Input["agentSlug"].(string)
			task, _ := tc.Input["task"].(string)
			if slug == "" || task == "" {
				return &domain.ToolResult{
					ToolCallID: tc.ID,
					Content:    "Error: 'agentSlug' and 'task' parameters are required",
					IsError:    true,
				}, nil
			}

			def, err := r.subAgentDefinition(ctx, slug, catalog)
			if err != nil {
				return nil, err
			}

			if err := r.stores.Threads.AppendMessage(ctx, userMessage(call.ThreadID, task)); err != nil {
				return nil, fmt.Errorf("appending task: %w", err)
			}
			text, err := r.generate(ctx, def, call.UserID, call.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("sub-agent %q: %w", slug, err)
			}
			if text == "" {
				text = "Sub-agent completed its task."
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: text}, nil
		},
	}
}

// subAgentDefinition assembles a transient agent definition from a stored
// config and its active skills. Assembled fresh on every call so config
// edits take effect on the next delegation.
func (r *Runner) subAgentDefinition(ctx context.Context, slug string, catalog *tool.Catalog) (*agent.Definition, error) {
	cfg, err := r.stores.Configs.GetConfigBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%q: %w", slug, ErrConfigNotFound)
		}
		return nil, fmt.Errorf("resolving config: %w", err)
	}
	if cfg.Status != domain.ConfigStatusActive {
		return nil, fmt.Errorf("%q: %w", slug, ErrConfigArchived)
	}

	skills, err := r.stores.Skills.ListActiveSkillsByConfig(ctx, cfg.ID)
	if err != nil {
		return nil, fmt.Errorf("loading skills: %w", err)
	}

	tools := make([]*tool.Definition, 0, len(skills)+3)
	for _, skill := range skills {
		tools = append(tools, r.skillTool(skill))
	}
	tools = append(tools,
		r.loadTemplateTool(),
		catalog.ReadDocument(),
		catalog.ReplaceDocument(),
	)

	maxSteps := cfg.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultSubAgentMaxSteps
	}
	return &agent.Definition{
		Name:         cfg.Name,
		Model:        cfg.Model,
		Instructions: cfg.Instructions,
		Tools:        tools,
		MaxSteps:     maxSteps,
	}, nil
}

// skillTool exposes one skill as a procedure the sub-agent can pull into
// context, along with pointers to its templates.
func (r *Runner) skillTool(skill domain.Skill) *tool.Definition {
	return &tool.Definition{
		Name:        "skill_" + skill.Slug,
		Description: skill.Description,
		Properties: map[string]*model.Param{
			"context": {Type: "string", Description: "Additional context for executing this skill"},
		},
		Handler: func(ctx context.Context, call *tool.CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			templates, err := r.stores.Templates.ListTemplatesBySkill(ctx, skill.ID)
			if err != nil {
				return nil, fmt.Errorf("loading templates: %w", err)
			}

			var b strings.Builder
			fmt.Fprintf(&b, "# Procedure: %s\n\n%s", skill.Name, skill.Procedure)
			if taskCtx, _ := tc.Input["context"].(string); taskCtx != "" {
				fmt.Fprintf(&b, "\n\n# Task Context\n%s", taskCtx)
			}
			if len(templates) > 0 {
				b.WriteString("\n\n# Available Templates (use loadTemplate tool to get full content)\n")
				lines := make([]string, 0, len(templates))
				for _, t := range templates {
					lines = append(lines, fmt.Sprintf("- %s: %s (%s)", t.Slug, t.Description, t.FileType))
				}
				b.WriteString(strings.Join(lines, "\n"))
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: b.String()}, nil
		},
	}
}

// loadTemplateTool returns the full content of a skill template by slug.
func (r *Runner) loadTemplateTool() *tool.Definition {
	return &tool.Definition{
		Name:        "loadTemplate",
		Description: "Load a template file by slug. Returns the full template content.",
		Properties: map[string]*model.Param{
			"slug": {Type: "string", Description: "Template slug"},
		},
		Required: []string{"slug"},
		Handler: func(ctx context.Context, call *tool.CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			slug, _ := tc.Input["slug"].(string)
			tpl, err := r.stores.Templates.GetTemplateBySlug(ctx, slug)
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return &domain.ToolResult{ToolCallID: tc.ID, Content: "Template not found."}, nil
				}
				return nil, fmt.Errorf("loading template: %w", err)
			}
			content := fmt.Sprintf("# Template: %s (%s)\n\n%s", tpl.Name, tpl.FileType, tpl.Content)
			return &domain.ToolResult{ToolCallID: tc.ID, Content: content}, nil
		},
	}
}
