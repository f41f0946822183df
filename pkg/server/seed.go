package server

import (
	"github.com/google/uuid"

	"coscribe/pkg/domain"
)

// DefaultAvatars is the stock avatar catalog, one batch per dicebear style.
func DefaultAvatars() []domain.Avatar {
	names := []struct{ name, style string }{
		{"Felix", "adventurer"},
		{"Aneka", "adventurer"},
		{"Jasper", "adventurer"},
		{"Luna", "adventurer"},
		{"Milo", "adventurer"},
		{"Bolt", "bottts"},
		{"Sparky", "bottts"},
		{"Circuit", "bottts"},
		{"Pixel", "bottts"},
		{"Glitch", "bottts"},
		{"Sunny", "fun-emoji"},
		{"Blaze", "fun-emoji"},
		{"Chill", "fun-emoji"},
		{"Spark", "fun-emoji"},
		{"Doodle", "fun-emoji"},
		{"Aria", "notionists"},
		{"Blake", "notionists"},
		{"Sage", "notionists"},
		{"Quinn", "notionists"},
		{"Reese", "notionists"},
	}
	avatars := make([]domain.Avatar, 0, len(names))
	for _, n := range names {
		avatars = append(avatars, domain.Avatar{
			ID:    uuid.New().String(),
			Name:  n.name,
			Style: n.style,
			Seed:  n.name,
		})
	}
	return avatars
}

// DefaultSceneLayouts is the stock scene layout catalog.
func DefaultSceneLayouts() []domain.SceneLayout {
	layouts := []struct{ name, description string }{
		{"Title Card", "Full-screen title with optional subtitle"},
		{"Intro", "Opening scene that sets context and hooks the viewer"},
		{"3 Bullet Points", "Three key points displayed sequentially"},
		{"Image + Title", "Visual with an overlaid heading"},
		{"Quote / Callout", "Highlighted quote or key takeaway"},
		{"Split Screen", "Side-by-side comparison or dual content"},
		{"Full Screen Video", "Full-frame video or animation clip"},
		{"Outro / CTA", "Closing scene with call-to-action"},
	}
	out := make([]domain.SceneLayout, 0, len(layouts))
	for _, l := range layouts {
		out = append(out, domain.SceneLayout{
			ID:          uuid.New().String(),
			Name:        l.name,
			Description: l.description,
		})
	}
	return out
}
