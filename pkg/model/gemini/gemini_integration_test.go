package gemini_test

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/model/gemini"
)

func setupProvider(t *testing.T) *gemini.Provider {
	t.Helper()
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("Skipping: GEMINI_API_KEY not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	provider, err := gemini.New(ctx, apiKey)
	if err != nil {
		t.Fatalf("gemini.New: %v", err)
	}
	return provider
}

// TestIntegrationGeminiListModels verifies that List returns available models.
func TestIntegrationGeminiListModels(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	models, err := p.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("No models found")
	}
	for _, m := range models {
		if m.ID == "" {
			t.Error("Model has empty ID")
		}
		if m.Provider != "gemini" {
			t.Errorf("Model %s has provider %q, want %q", m.ID, m.Provider, "gemini")
		}
	}
}

// TestIntegrationGeminiStreamBasic verifies a simple text response.
func TestIntegrationGeminiStreamBasic(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msgs := []model.Message{
		model.Text(domain.RoleUser, "Reply with exactly: HELLO"),
	}

	stream, err := p.Stream(ctx, "gemini-2.0-flash", "", msgs, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	resp, err := stream.FullMessage()
	if err != nil {
		t.Fatalf("FullMessage: %v", err)
	}

	if resp.Role != domain.RoleAssistant {
		t.Errorf("Role = %q, want %q", resp.Role, domain.RoleAssistant)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == "" {
		t.Fatal("Response has no text content")
	}
}

// TestIntegrationGeminiSystemMessagesFold verifies derived system messages are
// honored alongside the instruction string.
func TestIntegrationGeminiSystemMessagesFold(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	msgs := []model.Message{
		model.Text(domain.RoleSystem, "# Things I remember about this user\n- User's favorite fruit is BANANA"),
		model.Text(domain.RoleUser, "What is my favorite fruit?"),
	}

	stream, err := p.Stream(ctx, "gemini-2.0-flash", "You are a helpful assistant.", msgs, nil)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	resp, err := stream.FullMessage()
	if err != nil {
		t.Fatalf("FullMessage: %v", err)
	}

	text := resp.Content[0].Text
	if !strings.Contains(strings.ToUpper(text), "BANANA") {
		t.Errorf("Expected 'BANANA' in response, got: %s", text)
	}
}

// TestIntegrationGeminiToolCall verifies the model can call a dynamically
// declared tool.
func TestIntegrationGeminiToolCall(t *testing.T) {
	p := setupProvider(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	tools := []model.ToolDecl{
		{
			Name:        "readDocument",
			Description: "Read the current document content.",
		},
		{
			Name:        "replaceDocument",
			Description: "Replace the entire document content with new HTML.",
			Properties: map[string]*model.Param{
				"content": {Type: "string", Description: "The full HTML content for the document body"},
			},
			Required: []string{"content"},
		},
	}

	msgs := []model.Message{
		model.Text(domain.RoleUser, "Read the document using the readDocument tool."),
	}

	stream, err := p.Stream(ctx, "gemini-2.0-flash", "Use tools when asked.", msgs, tools)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	resp, err := stream.FullMessage()
	if err != nil {
		t.Fatalf("FullMessage: %v", err)
	}

	foundToolCall := false
	for _, c := range resp.Content {
		if c.Type == domain.ContentTypeToolCall && c.ToolCall != nil {
			foundToolCall = true
			if c.ToolCall.Name != "readDocument" {
				t.Errorf("Expected tool name %q, got %q", "readDocument", c.ToolCall.Name)
			}
		}
	}
	if !foundToolCall {
		t.Error("Expected a tool call but none were returned")
	}
}
