package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store/sqlite"
)

// scriptedProvider returns canned model turns, one per Stream call.
type scriptedProvider struct {
	mu     sync.Mutex
	calls  int
	next   func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error)
	models []domain.Model
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) List(ctx context.Context) ([]domain.Model, error) {
	if p.models != nil {
		return p.models, nil
	}
	return []domain.Model{{ID: "scripted-1", Provider: "scripted"}}, nil
}

func (p *scriptedProvider) Stream(ctx context.Context, modelName, instructions string, messages []model.Message, tools []model.ToolDecl) (model.ModelStream, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()
	msg, err := p.next(call, messages, tools)
	return &scriptedStream{msg: msg, err: err}, nil
}

func (p *scriptedProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type scriptedStream struct {
	msg model.Message
	err error
}

func (s *scriptedStream) FullMessage() (model.Message, error) { return s.msg, s.err }
func (s *scriptedStream) Close() error                        { return nil }

func textTurn(text string) model.Message {
	return model.Text(domain.RoleAssistant, text)
}

func toolCallTurn(name string, input map[string]any) model.Message {
	if input == nil {
		input = map[string]any{}
	}
	return model.Message{
		Role: domain.RoleAssistant,
		Content: []model.Content{{
			Type:     domain.ContentTypeToolCall,
			ToolCall: &domain.ToolCall{ID: uuid.New().String(), Name: name, Input: input},
		}},
	}
}

// memFiles is an in-memory FileStore for tests.
type memFiles struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMemFiles() *memFiles { return &memFiles{blobs: map[string][]byte{}} }

func (f *memFiles) SaveFile(ctx context.Context, fileName string, r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	id := uuid.New().String()
	f.mu.Lock()
	f.blobs[id] = b
	f.mu.Unlock()
	return id, nil
}

func (f *memFiles) OpenFile(ctx context.Context, storageID string) (io.ReadCloser, error) {
	f.mu.Lock()
	b, ok := f.blobs[storageID]
	f.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no blob %s", storageID)
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (f *memFiles) ResolveDownloadURL(ctx context.Context, storageID string) (string, error) {
	return "mem://" + storageID, nil
}

func newTestRunner(t *testing.T, provider model.Provider) (*Runner, *sqlite.Store) {
	t.Helper()
	s, err := sqlite.New(t.TempDir() + "/test.db")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	stores := Stores{
		Documents: s, Memories: s, Threads: s, Configs: s,
		Skills: s, Templates: s, Avatars: s, Layouts: s,
	}
	return New(stores, newMemFiles(), provider), s
}

func createTestDocument(t *testing.T, s *sqlite.Store, userID, docType string) *domain.Document {
	t.Helper()
	ctx := context.Background()
	threadID, err := s.CreateThread(ctx, userID)
	if err != nil {
		t.Fatalf("CreateThread: %v", err)
	}
	doc := &domain.Document{
		ID:       uuid.New().String(),
		UserID:   userID,
		Title:    "Untitled",
		Type:     docType,
		ThreadID: threadID,
	}
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	return doc
}

func TestSendMarksWorkingAndDerivesTitle(t *testing.T) {
	release := make(chan struct{})
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		<-release
		return textTurn("All done."), nil
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	longPrompt := strings.Repeat("write a story about a fox ", 5)
	msgID, err := r.Send(ctx, "user-1", doc.ID, longPrompt, nil)
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if msgID == "" {
		t.Error("Send returned empty message ID")
	}

	// Status flips synchronously, before the background run settles.
	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.RunStatus != domain.RunStatusWorking {
		t.Errorf("RunStatus = %q, want working", got.RunStatus)
	}
	wantTitle := string([]rune(longPrompt)[:50]) + "..."
	if got.Title != wantTitle {
		t.Errorf("Title = %q, want first 50 chars of prompt plus ellipsis", got.Title)
	}

	close(release)
	waitForStatus(t, s, doc.ID, domain.RunStatusCompleted)
}

func TestSendKeepsTitleAfterFirstPrompt(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		return textTurn("ok"), nil
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if _, err := r.Send(ctx, "user-1", doc.ID, "first prompt", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitForStatus(t, s, doc.ID, domain.RunStatusCompleted)

	if _, err := r.Send(ctx, "user-1", doc.ID, "second prompt", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitForStatus(t, s, doc.ID, domain.RunStatusCompleted)

	got, _ := s.GetDocument(ctx, doc.ID)
	if got.Title != "first prompt" {
		t.Errorf("Title = %q, want title from first prompt only", got.Title)
	}
}

func TestSendRejectsForeignDocument(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		return textTurn("ok"), nil
	}}
	r, s := newTestRunner(t, provider)
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if _, err := r.Send(context.Background(), "user-2", doc.ID, "hi", nil); err == nil {
		t.Error("expected error sending to another user's document")
	}
}

func TestRunToolLoop(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		switch call {
		case 0:
			return toolCallTurn("replaceDocument", map[string]any{"content": "<p>draft</p>"}), nil
		default:
			return textTurn("I have updated the document."), nil
		}
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "write a draft")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := s.GetDocument(ctx, doc.ID)
	if got.RunStatus != domain.RunStatusCompleted {
		t.Errorf("RunStatus = %q, want completed", got.RunStatus)
	}
	if got.PendingContent != "<p>draft</p>" {
		t.Errorf("PendingContent = %q, want staged draft", got.PendingContent)
	}

	msgs, err := s.ListMessages(ctx, doc.ThreadID, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	var types []string
	for _, m := range msgs {
		types = append(types, m.ContentType)
	}
	want := []string{
		domain.ContentTypeText,       // user prompt
		domain.ContentTypeToolCall,   // replaceDocument
		domain.ContentTypeToolResult, // "Document updated successfully."
		domain.ContentTypeText,       // final text
	}
	if len(types) != len(want) {
		t.Fatalf("message types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("message %d type = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestRunBudgetExhaustion(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		return toolCallTurn("readDocument", nil), nil
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "loop forever")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	// Freeform budget is 6 model turns; the run still completes.
	if provider.callCount() != 6 {
		t.Errorf("model turns = %d, want 6", provider.callCount())
	}
	got, _ := s.GetDocument(ctx, doc.ID)
	if got.RunStatus != domain.RunStatusCompleted {
		t.Errorf("RunStatus = %q, want completed after budget exhaustion", got.RunStatus)
	}
}

func TestRunErrorFlipsStatus(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		return model.Message{}, errors.New("model unavailable")
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "hi")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	err := r.Run(ctx, doc.ID, "user-1")
	if err == nil {
		t.Fatal("expected run error to propagate")
	}
	if !strings.Contains(err.Error(), "model unavailable") {
		t.Errorf("err = %v, want wrapped provider error", err)
	}

	got, _ := s.GetDocument(ctx, doc.ID)
	if got.RunStatus != domain.RunStatusError {
		t.Errorf("RunStatus = %q, want error", got.RunStatus)
	}
}

func TestRunToolErrorIsObservation(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		switch call {
		case 0:
			return toolCallTurn("replaceDocument", nil), nil // missing content
		default:
			// The model sees the error observation and recovers.
			last := messages[len(messages)-1]
			if last.Content[0].Type != domain.ContentTypeToolResult || !last.Content[0].ToolResult.IsError {
				return model.Message{}, errors.New("expected an error observation")
			}
			return textTurn("Recovered."), nil
		}
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "edit")); err != nil {
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

func TestRunUnknownToolIsObservation(t *testing.T) {
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		if call == 0 {
			return toolCallTurn("launchRocket", nil), nil
		}
		return textTurn("Never mind."), nil
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	if err := s.AppendMessage(ctx, userMessage(doc.ThreadID, "go")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	if err := r.Run(ctx, doc.ID, "user-1"); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs, _ := s.ListMessages(ctx, doc.ThreadID, 0)
	var found bool
	for _, m := range msgs {
		if m.ContentType != domain.ContentTypeToolResult {
			continue
		}
		var tr domain.ToolResult
		json.Unmarshal([]byte(m.Content), &tr)
		if tr.IsError && strings.Contains(tr.Content, "unknown tool") {
			found = true
		}
	}
	if !found {
		t.Error("expected an unknown-tool error observation in the thread")
	}
}

func TestRunAttachmentBecomesFilePart(t *testing.T) {
	var sawFile, sawInline atomic.Bool
	provider := &scriptedProvider{next: func(call int, messages []model.Message, tools []model.ToolDecl) (model.Message, error) {
		for _, m := range messages {
			var text, file bool
			for _, c := range m.Content {
				if c.Type == domain.ContentTypeText && c.Text == "summarize this" {
					text = true
				}
				if c.Type == domain.ContentTypeFile && strings.HasPrefix(c.FileURL, "mem://") {
					sawFile.Store(true)
					file = true
				}
			}
			// The file part rides on the same user message as the prompt.
			if text && file {
				sawInline.Store(true)
			}
		}
		return textTurn("Got the file."), nil
	}}
	r, s := newTestRunner(t, provider)
	ctx := context.Background()
	doc := createTestDocument(t, s, "user-1", domain.DocTypeFreeform)

	att := domain.Attachment{StorageID: "blob-1", FileName: "notes.pdf", MIMEType: "application/pdf"}
	if _, err := r.Send(ctx, "user-1", doc.ID, "summarize this", []domain.Attachment{att}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	waitForStatus(t, s, doc.ID, domain.RunStatusCompleted)

	if !sawFile.Load() {
		t.Error("file part never reached the provider")
	}
	if !sawInline.Load() {
		t.Error("file part was not on the same message as the prompt text")
	}
}

func waitForStatus(t *testing.T, s *sqlite.Store, documentID string, want domain.RunStatus) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		doc, err := s.GetDocument(context.Background(), documentID)
		if err != nil {
			t.Fatalf("GetDocument: %v", err)
		}
		if doc.RunStatus == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("document %s never reached status %q", documentID, want)
}
