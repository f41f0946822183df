package agent

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store/sqlite"
	"coscribe/pkg/tool"
)

func newTestRegistry(t *testing.T) (*Registry, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	catalog := tool.NewCatalog(s, s, s, s)
	return NewRegistry(catalog), s
}

func toolNames(def *Definition) []string {
	names := make([]string, 0, len(def.Tools))
	for _, d := range def.Tools {
		names = append(names, d.Name)
	}
	return names
}

func TestRegistryStaticEntries(t *testing.T) {
	r, _ := newTestRegistry(t)

	cases := []struct {
		docType  string
		name     string
		maxSteps int
		tools    []string
	}{
		{
			docType:  "freeform",
			name:     "Document Editor",
			maxSteps: 6,
			tools:    []string{"readDocument", "replaceDocument", "listAvatars", "proposeMemory"},
		},
		{
			docType:  "storyboard",
			name:     "Storyboard Writer",
			maxSteps: 10,
			tools:    []string{"readDocument", "replaceDocument", "updateStoryboard", "listAvatars", "listSceneLayouts", "proposeMemory"},
		},
		{
			docType:  "course_outline",
			name:     "Course Outline Designer",
			maxSteps: 11,
			tools:    []string{"readDocument", "replaceDocument", "proposeMemory", "showOptions", "showSuggestions", "showCard"},
		},
	}

	for _, tc := range cases {
		def := r.ForType(tc.docType)
		if def.Name != tc.name {
			t.Errorf("%s: Name = %q, want %q", tc.docType, def.Name, tc.name)
		}
		if def.MaxSteps != tc.maxSteps {
			t.Errorf("%s: MaxSteps = %d, want %d", tc.docType, def.MaxSteps, tc.maxSteps)
		}
		if diff := cmp.Diff(tc.tools, toolNames(def)); diff != "" {
			t.Errorf("%s: tool set mismatch (-want +got):\n%s", tc.docType, diff)
		}
		if def.Instructions == "" {
			t.Errorf("%s: empty instructions", tc.docType)
		}
	}
}

func TestRegistryUnknownTypeFallsBack(t *testing.T) {
	r, _ := newTestRegistry(t)

	for _, docType := range []string{"unknown_type", ""} {
		def := r.ForType(docType)
		if def == nil {
			t.Fatalf("ForType(%q) returned nil", docType)
		}
		if def.Name != "Document Editor" {
			t.Errorf("ForType(%q) = %q, want freeform fallback", docType, def.Name)
		}
	}
}

func TestRegistryDelegationTools(t *testing.T) {
	s, err := sqlite.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	catalog := tool.NewCatalog(s, s, s, s)

	delegation := []*tool.Definition{
		{Name: "listAgentConfigs"},
		{Name: "delegateToAgent"},
	}
	r := NewRegistry(catalog, delegation...)

	def := r.ForType("course_outline")
	if tool.Find(def.Tools, "listAgentConfigs") == nil || tool.Find(def.Tools, "delegateToAgent") == nil {
		t.Errorf("course_outline missing delegation tools: %v", toolNames(def))
	}
	if tool.Find(r.ForType("freeform").Tools, "delegateToAgent") != nil {
		t.Error("freeform agent should not carry delegation tools")
	}
}

func setupAugmentFixture(t *testing.T, s *sqlite.Store) (threadID string) {
	t.Helper()
	ctx := context.Background()

	threadID, err := s.CreateThread(ctx, "user-1")
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	doc := &domain.Document{
		ID:       uuid.New().String(),
		UserID:   "user-1",
		Title:    "Untitled",
		Type:     domain.DocTypeCourseOutline,
		ThreadID: threadID,
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return threadID
}

func confirmMemory(t *testing.T, s *sqlite.Store, threadID, content string) {
	t.Helper()
	ctx := context.Background()
	m, err := s.ProposePending(ctx, "user-1", threadID, content, domain.MemoryCategoryUserFact)
	if err != nil {
		t.Fatalf("ProposePending: %v", err)
	}
	if err := s.SetMemoryStatus(ctx, "user-1", m.ID, domain.MemoryStatusConfirmed); err != nil {
		t.Fatalf("SetMemoryStatus: %v", err)
	}
}

func TestAugmentOrdering(t *testing.T) {
	_, s := newTestRegistry(t)
	ctx := context.Background()
	threadID := setupAugmentFixture(t, s)

	confirmMemory(t, s, threadID, "User works at Acme")
	confirmMemory(t, s, threadID, "User prefers concise outlines")

	if err := s.CreateConfig(ctx, &domain.AgentConfig{
		ID:            uuid.New().String(),
		Name:          "Quiz Writer",
		Slug:          "quiz-writer",
		Instructions:  "Write quizzes.",
		AssignedTypes: []string{domain.DocTypeCourseOutline},
		Status:        domain.ConfigStatusActive,
	}); err != nil {
		t.Fatalf("CreateConfig: %v", err)
	}

	a := NewAugmenter(s, s, s)
	out, err := a.Augment(ctx, nil, "user-1", threadID)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2", len(out))
	}
	for i, m := range out {
		if m.Role != domain.RoleSystem {
			t.Errorf("message %d role = %q, want system", i, m.Role)
		}
	}

	want := "# Things I remember about this user\n- User works at Acme\n- User prefers concise outlines"
	if diff := cmp.Diff(want, out[0].Content[0].Text); diff != "" {
		t.Errorf("memory block mismatch (-want +got):\n%s", diff)
	}

	wantDir := "# Available sub-agents\nThese specialized sub-agents can be invoked with the delegateToAgent tool:\n- quiz-writer: Quiz Writer"
	if diff := cmp.Diff(wantDir, out[1].Content[0].Text); diff != "" {
		t.Errorf("directory block mismatch (-want +got):\n%s", diff)
	}
}

func TestAugmentPreservesOriginalMessages(t *testing.T) {
	_, s := newTestRegistry(t)
	ctx := context.Background()
	threadID := setupAugmentFixture(t, s)
	confirmMemory(t, s, threadID, "User works at Acme")

	base := []model.Message{model.Text(domain.RoleUser, "hello")}

	a := NewAugmenter(s, s, s)
	out, err := a.Augment(ctx, base, "user-1", threadID)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("got %d messages, want 2", len(out))
	}
	if out[1].Content[0].Text != "hello" {
		t.Errorf("original message not preserved after prefix: %+v", out[1])
	}
}

func TestAugmentNoOp(t *testing.T) {
	_, s := newTestRegistry(t)
	ctx := context.Background()
	threadID := setupAugmentFixture(t, s)

	base := []model.Message{model.Text(domain.RoleUser, "hello")}

	a := NewAugmenter(s, s, s)
	out, err := a.Augment(ctx, base, "user-1", threadID)
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if diff := cmp.Diff(base, out); diff != "" {
		t.Errorf("expected unchanged messages (-want +got):\n%s", diff)
	}
}

func TestAugmentSwallowsDirectoryFailure(t *testing.T) {
	_, s := newTestRegistry(t)
	ctx := context.Background()
	threadID := setupAugmentFixture(t, s)
	confirmMemory(t, s, threadID, "User works at Acme")

	// An unknown thread makes the document lookup fail; the memory block
	// must still come through.
	a := NewAugmenter(s, s, s)
	out, err := a.Augment(ctx, nil, "user-1", "no-such-thread")
	if err != nil {
		t.Fatalf("Augment: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("got %d messages, want 1 (memory block only)", len(out))
	}
}
