package runner

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store/sqlite"
	"coscribe/pkg/tool"
)

func seedSubAgent(t *testing.T, s *sqlite.Store, slug string, status domain.ConfigStatus) *domain.AgentConfig {
	t.Helper()
	ctx := context.Background()
	cfg := &domain.AgentConfig{
		ID:            uuid.New().String(),
		Name:          "Quiz Writer",
		Slug:          slug,
		Instructions:  "You write quizzes.",
		AssignedTypes: []string{domain.DocTypeCourseOutline},
		Status:        status,
	}
	if err := s.CreateConfig(ctx, cfg); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}
	return cfg
}

func seedSkill(t *testing.T, s *sqlite.Store, configID, slug string) *domain.Skill {
	t.Helper()
	skill := &domain.Skill{
		ID:            uuid.New().String(),
		AgentConfigID: configID,
		Name:          "Write Quiz",
		Slug:          slug,
		Description:   "Write a multiple-choice quiz for a lesson.",
		Procedure:     "1. Read the lesson.\n2. Write five questions.",
		Status:        domain.ConfigStatusActive,
	}
	if err := s.CreateSkill(context.Background(), skill); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}
	return skill
}

func seedTemplate(t *testing.T, s *sqlite.Store, skillID, slug, content string) *domain.SkillTemplate {
	t.Helper()
	tpl := &domain.SkillTemplate{
		ID:          uuid.New().String(),
		SkillID:     skillID,
		Name:        "Quiz Format",
		Slug:        slug,
		Description: "Standard quiz layout",
		Content:     content,
		FileType:    domain.TemplateFileTypeTemplate,
	}
	if err := s.CreateTemplate(context.Background(), tpl); err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	return tpl
}

func testCatalog(s *sqlite.Store) *tool.Catalog {
	return tool.NewCatalog(s, s, s, s)
}

func TestSubAgentDefinitionAssembly(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	skill := seedSkill(t, s, cfg.ID, "write-quiz")
	seedTemplate(t, s, skill.ID, "quiz-format", "## Quiz\n1. ...")

	def, err := r.subAgentDefinition(ctx, "quiz-writer", testCatalog(s))
	if err != nil {
		t.Fatalf("subAgentDefinition: %v", err)
	}
	if def.Name != "Quiz Writer" || def.Instructions != "You write quizzes." {
		t.Errorf("unexpected definition: %+v", def)
	}
	if def.MaxSteps != 10 {
		t.Errorf("MaxSteps = %d, want default 10", def.MaxSteps)
	}
	for _, name := range []string{"skill_write-quiz", "loadTemplate", "readDocument", "replaceDocument"} {
		if tool.Find(def.Tools, name) == nil {
			t.Errorf("missing tool %q in sub-agent catalog", name)
		}
	}
}

func TestSubAgentDefinitionMaxStepsOverride(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	cfg.MaxSteps = 3
	if err := s.UpdateConfig(ctx, cfg); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	def, err := r.subAgentDefinition(ctx, "quiz-writer", testCatalog(s))
	if err != nil {
		t.Fatalf("subAgentDefinition: %v", err)
	}
	if def.MaxSteps != 3 {
		t.Errorf("MaxSteps = %d, want override 3", def.MaxSteps)
	}
}

func TestSubAgentDefinitionNotFoundVsArchived(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()
	catalog := testCatalog(s)

	_, err := r.subAgentDefinition(ctx, "missing", catalog)
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("unknown slug: err = %v, want ErrConfigNotFound", err)
	}

	seedSubAgent(t, s, "retired", domain.ConfigStatusArchived)
	_, err = r.subAgentDefinition(ctx, "retired", catalog)
	if !errors.Is(err, ErrConfigArchived) {
		t.Errorf("archived slug: err = %v, want ErrConfigArchived", err)
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("archived error must be distinguishable from not-found")
	}
}

func TestSkillToolOutput(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	skill := seedSkill(t, s, cfg.ID, "write-quiz")
	seedTemplate(t, s, skill.ID, "quiz-format", "## Quiz\n1. ...")

	td := r.skillTool(*skill)
	res, err := td.Handler(ctx, &tool.CallContext{}, &domain.ToolCall{
		ID:    "tc-1",
		Name:  td.Name,
		Input: map[string]any{"context": "Lesson 3 covers photosynthesis."},
	})
	if err != nil {
		t.Fatalf("skill tool: %v", err)
	}

	if !strings.HasPrefix(res.Content, "# Procedure: Write Quiz\n\n1. Read the lesson.") {
		t.Errorf("unexpected procedure header:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "# Task Context\nLesson 3 covers photosynthesis.") {
		t.Errorf("missing task context block:\n%s", res.Content)
	}
	if !strings.Contains(res.Content, "# Available Templates (use loadTemplate tool to get full content)\n- quiz-format: Standard quiz layout (template)") {
		t.Errorf("missing template summary:\n%s", res.Content)
	}
}

func TestSkillToolWithoutContextOrTemplates(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	skill := seedSkill(t, s, cfg.ID, "write-quiz")

	td := r.skillTool(*skill)
	res, err := td.Handler(context.Background(), &tool.CallContext{}, &domain.ToolCall{ID: "tc-1", Name: td.Name, Input: map[string]any{}})
	if err != nil {
		t.Fatalf("skill tool: %v", err)
	}
	want := "# Procedure: Write Quiz\n\n1. Read the lesson.\n2. Write five questions."
	if res.Content != want {
		t.Errorf("Content = %q, want bare procedure", res.Content)
	}
}

func TestLoadTemplateRoundTrip(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	skill := seedSkill(t, s, cfg.ID, "write-quiz")
	content := "## Quiz\n\nQ1: what?\n\tA) this\n\tB) that\n"
	seedTemplate(t, s, skill.ID, "quiz-format", content)

	td := r.loadTemplateTool()
	res, err := td.Handler(ctx, &tool.CallContext{}, &domain.ToolCall{ID: "tc-1", Input: map[string]any{"slug": "quiz-format"}})
	if err != nil {
		t.Fatalf("loadTemplate: %v", err)
	}
	want := "# Template: Quiz Format (template)\n\n" + content
	if res.Content != want {
		t.Errorf("Content = %q, want byte-identical template body", res.Content)
	}

	res, err = td.Handler(ctx, &tool.CallContext{}, &domain.ToolCall{ID: "tc-2", Input: map[string]any{"slug": "nope"}})
	if err != nil {
		t.Fatalf("loadTemplate: %v", err)
	}
	if res.Content != "Template not found." {
		t.Errorf("Content = %q, want not-found sentinel", res.Content)
	}
}

func TestListAgentConfigsTool(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeCourseOutline)
	call := &tool.CallContext{ThreadID: doc.ThreadID, UserID: "user-1"}

	td := r.listAgentConfigsTool()
	res, err := td.Handler(ctx, call, &domain.ToolCall{ID: "tc-1", Input: map[string]any{}})
	if err != nil {
		t.Fatalf("listAgentConfigs: %v", err)
	}
	if res.Content != "No sub-agents are available." {
		t.Errorf("Content = %q, want empty sentinel", res.Content)
	}

	seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	res, err = td.Handler(ctx, call, &domain.ToolCall{ID: "tc-2", Input: map[string]any{}})
	if err != nil {
		t.Fatalf("listAgentConfigs: %v", err)
	}
	var refs []domain.ConfigRef
	if err := json.Unmarshal([]byte(res.Content), &refs); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(refs) != 1 || refs[0].Slug != "quiz-writer" {
		t.Fatalf("unexpected refs: %+v", refs)
	}
	if refs[0].Name != "Quiz Writer" {
		t.Errorf("Name = %q, want Quiz Writer", refs[0].Name)
	}
	if refs[0].Description != "You write quizzes." {
		t.Errorf("Description = %q, want the config's instructions", refs[0].Description)
	}
}

func TestListAgentConfigsTruncatesDescription(t *testing.T) {
	r, s := newTestRunner(t, &scriptedProvider{})
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeCourseOutline)
	call := &tool.CallContext{ThreadID: doc.ThreadID, UserID: "user-1"}

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	cfg.Instructions = strings.Repeat("quiz ", 60)
	if err := s.UpdateConfig(ctx, cfg); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}

	res, err := r.listAgentConfigsTool().Handler(ctx, call, &domain.ToolCall{ID: "tc-1", Input: map[string]any{}})
	if err != nil {
		t.Fatalf("listAgentConfigs: %v", err)
	}
	var refs []domain.ConfigRef
	if err := json.Unmarshal([]byte(res.Content), &refs); err != nil {
		t.Fatalf("result is not JSON: %v", err)
	}
	if len(refs) != 1 {
		t.Fatalf("refs len = %d, want 1", len(refs))
	}
	if got := len([]rune(refs[0].Description)); got != 200 {
		t.Errorf("Description length = %d runes, want 200", got)
	}
	if refs[0].Description != cfg.Instructions[:200] {
		t.Errorf("Description is not the leading slice of the instructions")
	}
}

func TestDelegationNestedRun(t *testing.T) {
	provider := &scriptedProvider{}
	provider.next = func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		switch call {
		case 0:
			// Parent turn: hand off to the sub-agent.
			return toolCallTurn("delegateToAgent", map[string]any{
				"agentSlug": "quiz-writer",
				"task":      "Write a quiz for module 1",
			}), nil
		case 1:
			// Nested sub-agent turn: verify it runs with its own catalog.
			names := make([]string, 0, len(tools))
			for _, d := range tools {
				names = append(names, d.Name)
			}
			for _, want := range []string{"skill_write-quiz", "loadTemplate"} {
				found := false
				for _, n := range names {
					if n == want {
						found = true
					}
				}
				if !found {
					return model.Message{}, errors.New("sub-agent missing tool " + want)
				}
			}
			return textTurn("Quiz written."), nil
		default:
			// Parent resumes with the sub-agent's result as observation.
			last := messages[len(messages)-1]
			if last.Content[0].Type != domain.ContentTypeToolResult {
				return model.Message{}, errors.New("expected delegation observation")
			}
			if last.Content[0].ToolResult.Content != "Quiz written." {
				return model.Message{}, errors.New("wrong observation: " + last.Content[0].ToolResult.Content)
			}
			return textTurn("Delegated and done."), nil
		}
	}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()

	cfg := seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	seedSkill(t, s, cfg.ID, "write-quiz")
	doc := createTestDocument(t, s, "user-1", domain.DocTypeCourseOutline)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "delegate the quiz")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := s.GetDocument(ctx, doc.ID)
	if got.RunStatus != domain.RunStatusCompleted {
		t.Errorf("RunStatus = %q, want completed", got.RunStatus)
	}
}

func TestDelegationEmptyResultFallback(t *testing.T) {
	provider := &scriptedProvider{}
	provider.next = func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		switch call {
		case 0:
			return toolCallTurn("delegateToAgent", map[string]any{
				"agentSlug": "quiz-writer",
				"task":      "Write a quiz",
			}), nil
		case 1:
			// Sub-agent produces no text at all.
			return model.Message{Role: domain.RoleAssistant}, nil
		default:
			last := messages[len(messages)-1]
			if last.Content[0].ToolResult.Content != "Sub-agent completed its task." {
				return model.Message{}, errors.New("wrong fallback: " + last.Content[0].ToolResult.Content)
			}
			return textTurn("ok"), nil
		}
	}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()

	seedSubAgent(t, s, "quiz-writer", domain.ConfigStatusActive)
	doc := createTestDocument(t, s, "user-1", domain.DocTypeCourseOutline)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "delegate")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestDelegationArchivedConfigFailsRun(t *testing.T) {
	provider := &scriptedProvider{}
	provider.next = func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		if call == 0 {
			return toolCallTurn("delegateToAgent", map[string]any{
				"agentSlug": "retired",
				"task":      "anything",
			}), nil
		}
		// The delegation failure comes back as an error observation.
		last := messages[len(messages)-1]
		if !last.Content[0].ToolResult.IsError {
			return model.Message{}, errors.New("expected error observation")
		}
		if !strings.Contains(last.Content[0].ToolResult.Content, "archived") {
			return model.Message{}, errors.New("observation does not name the archived state")
		}
		return textTurn("Cannot delegate."), nil
	}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()

	seedSubAgent(t, s, "retired", domain.ConfigStatusArchived)
	doc := createTestDocument(t, s, "user-1", domain.DocTypeCourseOutline)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "delegate")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}
}
