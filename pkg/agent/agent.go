// Package agent maps document types to agent definitions: the model,
// instructions, tool subset, and step budget that govern one kind of
// assistant.
package agent

import (
	"coscribe/pkg/domain"
	"coscribe/pkg/tool"
)

// DefaultModel is used when a definition does not name one.
const DefaultModel = "gemini-2.0-flash"

// Definition governs one run of the model/tool loop.
type Definition struct {
	Name         string
	Model        string
	Instructions string
	Tools        []*tool.Definition

	// MaxSteps bounds the number of model turns in a single run.
	MaxSteps int
}

// Registry holds the static agent definitions, keyed by document type.
type Registry struct {
	agents map[string]*Definition
}

// NewRegistry builds the static registry. The delegation tools are built by
// the runner and passed in; only the course outline agent carries them.
func NewRegistry(catalog *tool.Catalog, delegation ...*tool.Definition) *Registry {
	freeform := &Definition{
		Name:         "Document Editor",
		Model:        DefaultModel,
		Instructions: freeformInstructions,
		Tools: []*tool.Definition{
			catalog.ReadDocument(),
			catalog.ReplaceDocument(),
			catalog.ListAvatars(),
			catalog.ProposeMemory(),
		},
		MaxSteps: 6,
	}

	storyboard := &Definition{
		Name:         "Storyboard Writer",
		Model:        DefaultModel,
		Instructions: storyboardInstructions,
		Tools: []*tool.Definition{
			catalog.ReadDocument(),
			catalog.ReplaceDocument(),
			catalog.UpdateStoryboard(),
			catalog.ListAvatars(),
			catalog.ListSceneLayouts(),
			catalog.ProposeMemory(),
		},
		MaxSteps: 10,
	}

	courseOutline := &Definition{
		Name:         "Course Outline Designer",
		Model:        DefaultModel,
		Instructions: courseOutlineInstructions,
		Tools: append([]*tool.Definition{
			catalog.ReadDocument(),
			catalog.ReplaceDocument(),
			catalog.ProposeMemory(),
			tool.ShowOptions(),
			tool.ShowSuggestions(),
			tool.ShowCard(),
		}, delegation...),
		MaxSteps: 11,
	}

	return &Registry{agents: map[string]*Definition{
		domain.DocTypeFreeform:      freeform,
		domain.DocTypeStoryboard:    storyboard,
		domain.DocTypeCourseOutline: courseOutline,
	}}
}

// ForType resolves the agent for a document type. Unknown or empty types
// fall back to the freeform agent, never an error.
func (r *Registry) ForType(docType string) *Definition {
	if a, ok := r.agents[docType]; ok {
		return a
	}
	return r.agents[domain.DocTypeFreeform]
}
