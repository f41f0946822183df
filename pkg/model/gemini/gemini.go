package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
)

// Provider implements model.Provider using the Google Gen AI SDK.
type Provider struct {
	client *genai.Client
}

// Verify interface compliance.
var _ model.Provider = (*Provider)(nil)

// New creates a new Gemini provider.
func New(ctx context.Context, apiKey string) (*Provider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &Provider{client: client}, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "gemini" }

// List returns available Gemini models.
func (p *Provider) List(ctx context.Context) ([]domain.Model, error) {
	var models []domain.Model
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}

		// Filter for models that support generateContent.
		supportsGenerate := false
		if !strings.Contains(strings.ToLower(m.Name), "gemma") {
			for _, action := range m.SupportedActions {
				if action == "generateContent" {
					supportsGenerate = true
					break
				}
			}
		}

		if supportsGenerate {
			maxTokens := 0
			if m.InputTokenLimit > 0 {
				maxTokens = int(m.InputTokenLimit)
			}
			models = append(models, domain.Model{
				ID:        m.Name,
				Name:      m.DisplayName,
				Provider:  "gemini",
				MaxTokens: maxTokens,
			})
		}
	}
	return models, nil
}

// Stream sends a conversation context to the LLM and returns a stream.
func (p *Provider) Stream(ctx context.Context, modelName, instructions string, messages []model.Message, tools []model.ToolDecl) (model.ModelStream, error) {
	slog.Debug("Gemini.Stream", "model", modelName, "messageCount", len(messages), "toolCount", len(tools))

	var contents []*genai.Content
	toolNameMap := make(map[string]string) // tool call ID -> name

	// Gemini takes a single system instruction; derived system messages
	// (memory fact sheet, sub-agent directory) are folded into it.
	systemParts := []string{}
	if instructions != "" {
		systemParts = append(systemParts, instructions)
	}

	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			for _, c := range msg.Content {
				if c.Type == domain.ContentTypeText && c.Text != "" {
					systemParts = append(systemParts, c.Text)
				}
			}
			continue
		}

		var parts []*genai.Part
		for _, c := range msg.Content {
			switch c.Type {
			case domain.ContentTypeText:
				parts = append(parts, &genai.Part{Text: c.Text})
			case domain.ContentTypeFile:
				parts = append(parts, &genai.Part{
					FileData: &genai.FileData{
						FileURI:  c.FileURL,
						MIMEType: c.MIMEType,
					},
				})
			case domain.ContentTypeToolCall:
				if c.ToolCall != nil {
					toolNameMap[c.ToolCall.ID] = c.ToolCall.Name
					parts = append(parts, &genai.Part{
						FunctionCall: &genai.FunctionCall{
							Name: c.ToolCall.Name,
							Args: c.ToolCall.Input,
							ID:   c.ToolCall.ID,
						},
					})
				}
			case domain.ContentTypeToolResult:
				if c.ToolResult != nil {
					parts = append(parts, &genai.Part{
						FunctionResponse: &genai.FunctionResponse{
							Name: toolNameMap[c.ToolResult.ToolCallID],
							ID:   c.ToolResult.ToolCallID,
							Response: map[string]any{
								"result": c.ToolResult.Content,
							},
						},
					})
				}
			}
		}

		role := "user"
		if msg.Role == domain.RoleAssistant {
			role = "model"
		}

		if len(parts) > 0 {
			contents = append(contents, &genai.Content{
				Role:  role,
				Parts: parts,
			})
		}
	}

	var systemInstruction *genai.Content
	if len(systemParts) > 0 {
		systemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}

	config := &genai.GenerateContentConfig{
		Tools:             buildToolDeclarations(tools),
		SystemInstruction: systemInstruction,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	iter := p.client.Models.GenerateContentStream(streamCtx, modelName, contents, config)

	return &geminiStream{
		iter:   iter,
		cancel: cancel,
	}, nil
}

// buildToolDeclarations converts the agent's tool catalog to genai function
// declarations.
func buildToolDeclarations(tools []model.ToolDecl) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: convertProperties(t.Properties),
				Required:   t.Required,
			},
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func convertProperties(props map[string]*model.Param) map[string]*genai.Schema {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]*genai.Schema, len(props))
	for name, p := range props {
		out[name] = convertParam(p)
	}
	return out
}

func convertParam(p *model.Param) *genai.Schema {
	s := &genai.Schema{
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
		Properties:  convertProperties(p.Properties),
	}
	if p.Items != nil {
		s.Items = convertParam(p.Items)
	}
	switch p.Type {
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	case "array":
		s.Type = genai.TypeArray
	case "object":
		s.Type = genai.TypeObject
	default:
		s.Type = genai.TypeString
	}
	return s
}

// geminiStream wraps the Gemini streaming iterator.
type geminiStream struct {
	iter   func(yield func(*genai.GenerateContentResponse, error) bool)
	cancel context.CancelFunc
}

func (s *geminiStream) FullMessage() (model.Message, error) {
	var fullText strings.Builder
	var toolCalls []model.Content

	for resp, err := range s.iter {
		if err != nil {
			return model.Message{}, err
		}
		if resp == nil {
			continue
		}

		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text != "" {
					fullText.WriteString(part.Text)
				}
				if part.FunctionCall != nil {
					fc := part.FunctionCall
					id := fc.ID
					if id == "" {
						id = "call-" + uuid.New().String()
					}
					toolCalls = append(toolCalls, model.Content{
						Type: domain.ContentTypeToolCall,
						ToolCall: &domain.ToolCall{
							ID:    id,
							Name:  fc.Name,
							Input: fc.Args,
						},
					})
				}
			}
		}
	}

	var content []model.Content
	if fullText.Len() > 0 {
		content = append(content, model.Content{
			Type: domain.ContentTypeText,
			Text: fullText.String(),
		})
	}
	content = append(content, toolCalls...)

	return model.Message{
		Role:    domain.RoleAssistant,
		Content: content,
	}, nil
}

func (s *geminiStream) Close() error {
	s.cancel()
	return nil
}
