package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"coscribe/pkg/domain"
	"coscribe/pkg/model"
	"coscribe/pkg/store"
)

// Catalog builds the document, memory, and asset tools backed by the stores.
type Catalog struct {
	documents store.DocumentStore
	memories  store.MemoryStore
	avatars   store.AvatarStore
	layouts   store.SceneLayoutStore
}

func NewCatalog(documents store.DocumentStore, memories store.MemoryStore, avatars store.AvatarStore, layouts store.SceneLayoutStore) *Catalog {
	return &Catalog{
		documents: documents,
		memories:  memories,
		avatars:   avatars,
		layouts:   layouts,
	}
}

// ReadDocument mirrors the current document content back to the model.
func (c *Catalog) ReadDocument() *Definition {
	return &Definition{
		Name:        "readDocument",
		Description: "Read the current content of the document being edited. Call this before making changes so edits build on what is already there.",
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, ErrNoThread
			}
			doc, err := c.documents.GetDocumentByThread(ctx, call.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("getting document: %w", err)
			}
			content := doc.DocumentContent
			if content == "" {
				content = "(empty document)"
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: content}, nil
		},
	}
}

// ReplaceDocument stages new document content for the editor to pick up.
func (c *Catalog) ReplaceDocument() *Definition {
	return &Definition{
		Name:        "replaceDocument",
		Description: "Replace the entire document content with new HTML. The content is staged and streamed into the editor.",
		Properties: map[string]*model.Param{
			"content": {Type: "string", Description: "The full HTML content for the document body"},
		},
		Required: []string{"content"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, ErrNoThread
			}
			content, errRes := stringInput(tc, "content")
			if errRes != nil {
				return errRes, nil
			}
			doc, err := c.documents.GetDocumentByThread(ctx, call.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("getting document: %w", err)
			}
			if err := c.documents.PatchDocument(ctx, doc.ID, store.DocumentPatch{PendingContent: &content}); err != nil {
				return nil, fmt.Errorf("staging content: %w", err)
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Document updated successfully."}, nil
		},
	}
}

// UpdateStoryboard stages a structured storyboard rendered as HTML.
func (c *Catalog) UpdateStoryboard() *Definition {
	return &Definition{
		Name:        "updateStoryboard",
		Description: "Replace the storyboard with a title, optional description, and a table of scenes. Use this instead of replaceDocument for storyboard documents.",
		Properties: map[string]*model.Param{
			"title":       {Type: "string", Description: "The storyboard title"},
			"description": {Type: "string", Description: "Optional one-paragraph description shown under the title"},
			"scenes": {
				Type:        "array",
				Description: "The scenes, in order",
				Items: &model.Param{
					Type: "object",
					Properties: map[string]*model.Param{
						"id":            {Type: "string", Description: "Stable scene identifier"},
						"name":          {Type: "string", Description: "Scene name"},
						"script":        {Type: "string", Description: "Narration script for the scene"},
						"avatarId":      {Type: "string", Description: "Avatar ID, or empty string for none"},
						"sceneLayoutId": {Type: "string", Description: "Scene layout ID, or empty string for none"},
					},
					Required: []string{"id", "name", "script"},
				},
			},
		},
		Required: []string{"title", "scenes"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, ErrNoThread
			}
			title, errRes := stringInput(tc, "title")
			if errRes != nil {
				return errRes, nil
			}
			description := optionalString(tc, "description")
			scenes, errRes := sceneInput(tc)
			if errRes != nil {
				return errRes, nil
			}

			content := SerializeStoryboard(title, description, scenes)

			doc, err := c.documents.GetDocumentByThread(ctx, call.ThreadID)
			if err != nil {
				return nil, fmt.Errorf("getting document: %w", err)
			}
			if err := c.documents.PatchDocument(ctx, doc.ID, store.DocumentPatch{PendingContent: &content}); err != nil {
				return nil, fmt.Errorf("staging content: %w", err)
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Storyboard updated successfully."}, nil
		},
	}
}

// sceneInput decodes the scenes array from the call input.
func sceneInput(tc *domain.ToolCall) ([]domain.Scene, *domain.ToolResult) {
	raw, ok := tc.Input["scenes"]
	if !ok {
		return nil, errorResult(tc, "'scenes' parameter is required")
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, errorResult(tc, "'scenes' must be an array")
	}
	scenes := make([]domain.Scene, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, errorResult(tc, "scene %d must be an object", i)
		}
		s := domain.Scene{
			ID:            stringField(obj, "id"),
			Name:          stringField(obj, "name"),
			Script:        stringField(obj, "script"),
			AvatarID:      stringField(obj, "avatarId"),
			SceneLayoutID: stringField(obj, "sceneLayoutId"),
		}
		if s.ID == "" || s.Name == "" {
			return nil, errorResult(tc, "scene %d is missing 'id' or 'name'", i)
		}
		scenes = append(scenes, s)
	}
	return scenes, nil
}

func stringField(obj map[string]any, key string) string {
	s, _ := obj[key].(string)
	return s
}

// ListAvatars returns the avatar catalog as JSON.
func (c *Catalog) ListAvatars() *Definition {
	return &Definition{
		Name:        "listAvatars",
		Description: "List the avatars available for storyboard scenes.",
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			avatars, err := c.avatars.ListAvatars(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing avatars: %w", err)
			}
			b, _ := json.Marshal(avatars)
			return &domain.ToolResult{ToolCallID: tc.ID, Content: string(b)}, nil
		},
	}
}

// ListSceneLayouts returns the scene layout catalog as JSON.
func (c *Catalog) ListSceneLayouts() *Definition {
	return &Definition{
		Name:        "listSceneLayouts",
		Description: "List the scene layouts available for storyboard scenes.",
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			layouts, err := c.layouts.ListSceneLayouts(ctx)
			if err != nil {
				return nil, fmt.Errorf("listing scene layouts: %w", err)
			}
			b, _ := json.Marshal(layouts)
			return &domain.ToolResult{ToolCallID: tc.ID, Content: string(b)}, nil
		},
	}
}

// ProposeMemory stages a memory about the user for their confirmation.
func (c *Catalog) ProposeMemory() *Definition {
	return &Definition{
		Name:        "proposeMemory",
		Description: "Propose remembering a fact about the user for future sessions. The user must confirm it before it is stored.",
		Properties: map[string]*model.Param{
			"content": {Type: "string", Description: "The fact to remember, phrased as a standalone statement"},
			"category": {
				Type:        "string",
				Description: "The kind of fact",
				Enum: []string{
					string(domain.MemoryCategoryUserFact),
					string(domain.MemoryCategoryProject),
					string(domain.MemoryCategoryDomain),
					string(domain.MemoryCategoryPreference),
				},
			},
		},
		Required: []string{"content", "category"},
		Handler: func(ctx context.Context, call *CallContext, tc *domain.ToolCall) (*domain.ToolResult, error) {
			if call.ThreadID == "" {
				return nil, ErrNoThread
			}
			if call.UserID == "" {
				return nil, ErrNoUser
			}
			content, errRes := stringInput(tc, "content")
			if errRes != nil {
				return errRes, nil
			}
			category := domain.MemoryCategory(optionalString(tc, "category"))
			if !domain.ValidMemoryCategory(category) {
				return errorResult(tc, "'category' must be one of user_fact, project, domain, preference"), nil
			}
			if _, err := c.memories.ProposePending(ctx, call.UserID, call.ThreadID, content, category); err != nil {
				return nil, fmt.Errorf("proposing memory: %w", err)
			}
			return &domain.ToolResult{ToolCallID: tc.ID, Content: "Memory proposed. Waiting for user confirmation."}, nil
		},
	}
}
