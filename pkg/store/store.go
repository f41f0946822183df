package store

import (
	"context"
	"io"

	"coscribe/pkg/domain"
)

// DocumentPatch carries the independently patchable document fields. Nil
// fields are left unchanged.
type DocumentPatch struct {
	Title           *string
	RunStatus       *domain.RunStatus
	PendingContent  *string
	DocumentContent *string
}

// DocumentStore manages the persistence of documents.
type DocumentStore interface {
	// CreateDocument persists a new document. The ID and ThreadID fields
	// must be set by the caller.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// GetDocument retrieves a document by its unique ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetDocumentByThread retrieves the document owning the given thread.
	// Every document has exactly one thread.
	GetDocumentByThread(ctx context.Context, threadID string) (*domain.Document, error)

	// ListDocuments returns a user's documents, newest first, optionally
	// filtered by type. An empty docType matches freeform documents.
	ListDocuments(ctx context.Context, userID, docType string) ([]domain.Document, error)

	// PatchDocument updates only the fields set in the patch.
	PatchDocument(ctx context.Context, id string, patch DocumentPatch) error

	// DeleteDocument removes a document by ID.
	DeleteDocument(ctx context.Context, id string) error
}

// MemoryStore manages the propose/confirm workflow for durable user facts.
type MemoryStore interface {
	// ProposePending inserts a pending memory, unless the same user already
	// has a pending or confirmed memory with exactly the same content, in
	// which case the existing record is returned unchanged.
	ProposePending(ctx context.Context, userID, threadID, content string, category domain.MemoryCategory) (*domain.Memory, error)

	// ListConfirmed returns all confirmed memories for a user. Used by
	// context augmentation.
	ListConfirmed(ctx context.Context, userID string) ([]domain.Memory, error)

	// ListPending returns pending memories proposed in the given thread.
	// Used by the UI to render confirm/reject affordances.
	ListPending(ctx context.Context, threadID string) ([]domain.Memory, error)

	// SetMemoryStatus confirms or rejects a pending memory. Scoped to the
	// owning user; a memory that is no longer pending is left untouched.
	SetMemoryStatus(ctx context.Context, userID, memoryID string, status domain.MemoryStatus) error
}

// AgentConfigStore manages persisted sub-agent definitions.
type AgentConfigStore interface {
	// CreateConfig persists a new config. Fails with ErrDuplicateSlug if
	// the slug is taken; no partial write occurs.
	CreateConfig(ctx context.Context, cfg *domain.AgentConfig) error

	GetConfig(ctx context.Context, id string) (*domain.AgentConfig, error)

	// GetConfigBySlug resolves a config by its globally unique slug,
	// regardless of status. Callers decide how to treat archived configs.
	GetConfigBySlug(ctx context.Context, slug string) (*domain.AgentConfig, error)

	// ListConfigs returns all configs, newest first. When activeOnly is
	// set, archived configs are excluded.
	ListConfigs(ctx context.Context, activeOnly bool) ([]domain.AgentConfig, error)

	// ListActiveConfigsForType returns active configs whose assigned types
	// contain docType or the wildcard.
	ListActiveConfigsForType(ctx context.Context, docType string) ([]domain.AgentConfig, error)

	// UpdateConfig persists changes to name, slug, instructions, model,
	// max steps, and assigned types. Slug collisions fail with
	// ErrDuplicateSlug.
	UpdateConfig(ctx context.Context, cfg *domain.AgentConfig) error

	// SetConfigStatus archives or restores a config.
	SetConfigStatus(ctx context.Context, id string, status domain.ConfigStatus) error
}

// SkillStore manages skills belonging to agent configs.
type SkillStore interface {
	CreateSkill(ctx context.Context, skill *domain.Skill) error
	GetSkill(ctx context.Context, id string) (*domain.Skill, error)
	GetSkillBySlug(ctx context.Context, slug string) (*domain.Skill, error)

	// ListSkillsByConfig returns all skills for a config, newest first.
	ListSkillsByConfig(ctx context.Context, configID string) ([]domain.Skill, error)

	// ListActiveSkillsByConfig returns only the skills that become tools.
	ListActiveSkillsByConfig(ctx context.Context, configID string) ([]domain.Skill, error)

	UpdateSkill(ctx context.Context, skill *domain.Skill) error
	SetSkillStatus(ctx context.Context, id string, status domain.ConfigStatus) error
}

// TemplateStore manages skill templates.
type TemplateStore interface {
	CreateTemplate(ctx context.Context, tpl *domain.SkillTemplate) error
	GetTemplate(ctx context.Context, id string) (*domain.SkillTemplate, error)
	GetTemplateBySlug(ctx context.Context, slug string) (*domain.SkillTemplate, error)
	ListTemplatesBySkill(ctx context.Context, skillID string) ([]domain.SkillTemplate, error)
	UpdateTemplate(ctx context.Context, tpl *domain.SkillTemplate) error
	DeleteTemplate(ctx context.Context, id string) error
}

// ThreadStore is the conversation provider: an append-only, per-thread
// message log referenced by opaque thread IDs.
type ThreadStore interface {
	// CreateThread allocates a new thread for a user and returns its ID.
	CreateThread(ctx context.Context, userID string) (string, error)

	// AppendMessage adds a message to the end of a thread. The message's
	// ID and Timestamp should be set by the caller.
	AppendMessage(ctx context.Context, msg *domain.ThreadMessage) error

	// ListMessages returns a thread's messages in order. If limit > 0,
	// only the most recent limit messages are returned. Messages older
	// than the most recent compaction summary are omitted; the summary
	// itself is returned in their place.
	ListMessages(ctx context.Context, threadID string, limit int) ([]domain.ThreadMessage, error)

	// Compact records a summary that replaces every message before
	// firstKeptID. Old messages stay in the log but are no longer
	// returned by ListMessages.
	Compact(ctx context.Context, threadID, summary, firstKeptID string) error

	// Subscribe returns a channel that emits thread IDs whenever a message
	// is appended to any thread. Used by the websocket layer to push
	// updates.
	Subscribe() <-chan string
}

// AvatarStore manages the avatar catalog.
type AvatarStore interface {
	ListAvatars(ctx context.Context) ([]domain.Avatar, error)

	// SeedAvatars inserts the given avatars if the catalog is empty.
	// Returns true if anything was inserted.
	SeedAvatars(ctx context.Context, avatars []domain.Avatar) (bool, error)
}

// SceneLayoutStore manages the scene layout catalog.
type SceneLayoutStore interface {
	ListSceneLayouts(ctx context.Context) ([]domain.SceneLayout, error)
	SeedSceneLayouts(ctx context.Context, layouts []domain.SceneLayout) (bool, error)
}

// SelectionStore manages captured editor selections.
type SelectionStore interface {
	CreateSelection(ctx context.Context, sel *domain.Selection) error
	ListActiveSelections(ctx context.Context, documentID string) ([]domain.Selection, error)
	SetSelectionStatus(ctx context.Context, userID, id string, status domain.SelectionStatus) error
}

// FileStore persists uploaded prompt attachments and resolves them to
// fetchable URLs for multimodal model input.
type FileStore interface {
	// SaveFile stores the content and returns an opaque storage ID.
	SaveFile(ctx context.Context, fileName string, r io.Reader) (string, error)

	// OpenFile returns the stored content for a storage ID.
	OpenFile(ctx context.Context, storageID string) (io.ReadCloser, error)

	// ResolveDownloadURL returns a URL from which the stored file can be
	// fetched by the model provider.
	ResolveDownloadURL(ctx context.Context, storageID string) (string, error)
}
