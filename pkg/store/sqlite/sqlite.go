package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"coscribe/pkg/domain"
	"coscribe/pkg/store"
)

// Store implements the coscribe persistence interfaces using SQLite.
type Store struct {
	db          *sql.DB
	subscribers []chan string
	mu          sync.RWMutex
}

// Verify interface compliance at compile time.
var _ store.DocumentStore = (*Store)(nil)
var _ store.MemoryStore = (*Store)(nil)
var _ store.ThreadStore = (*Store)(nil)
var _ store.AgentConfigStore = (*Store)(nil)
var _ store.SkillStore = (*Store)(nil)
var _ store.TemplateStore = (*Store)(nil)
var _ store.AvatarStore = (*Store)(nil)
var _ store.SceneLayoutStore = (*Store)(nil)
var _ store.SelectionStore = (*Store)(nil)

// New opens (or creates) a SQLite database at the given path and runs
// migrations.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS threads (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS thread_messages (
		id TEXT PRIMARY KEY,
		thread_id TEXT NOT NULL,
		role TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		seq INTEGER NOT NULL,
		FOREIGN KEY (thread_id) REFERENCES threads(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_messages_thread_seq ON thread_messages(thread_id, seq);

	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'freeform',
		thread_id TEXT NOT NULL UNIQUE,
		run_status TEXT NOT NULL DEFAULT 'idle',
		pending_content TEXT NOT NULL DEFAULT '',
		document_content TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_documents_user ON documents(user_id);

	CREATE TABLE IF NOT EXISTS memories (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		thread_id TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_memories_user_status ON memories(user_id, status);
	CREATE INDEX IF NOT EXISTS idx_memories_thread_status ON memories(thread_id, status);

	CREATE TABLE IF NOT EXISTS agent_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL UNIQUE,
		instructions TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		max_steps INTEGER NOT NULL DEFAULT 0,
		assigned_types TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS skills (
		id TEXT PRIMARY KEY,
		agent_config_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		procedure TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (agent_config_id) REFERENCES agent_configs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_skills_config ON skills(agent_config_id);

	CREATE TABLE IF NOT EXISTS skill_templates (
		id TEXT PRIMARY KEY,
		skill_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		slug TEXT NOT NULL UNIQUE,
		description TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		file_type TEXT NOT NULL DEFAULT 'template',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (skill_id) REFERENCES skills(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_templates_skill ON skill_templates(skill_id);

	CREATE TABLE IF NOT EXISTS avatars (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		style TEXT NOT NULL DEFAULT '',
		seed TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS scene_layouts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS selections (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		document_id TEXT NOT NULL,
		text TEXT NOT NULL DEFAULT '',
		html TEXT NOT NULL DEFAULT '',
		span_from INTEGER NOT NULL DEFAULT 0,
		span_to INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (document_id) REFERENCES documents(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_selections_document_status ON selections(document_id, status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// --- DocumentStore ---

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) error {
	doc.CreatedAt = time.Now().UTC()
	if doc.Type == "" {
		doc.Type = domain.DocTypeFreeform
	}
	if doc.RunStatus == "" {
		doc.RunStatus = domain.RunStatusIdle
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, user_id, title, type, thread_id, run_status, pending_content, document_content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.UserID, doc.Title, doc.Type, doc.ThreadID,
		doc.RunStatus, doc.PendingContent, doc.DocumentContent, doc.CreatedAt,
	)
	return err
}

const documentCols = `id, user_id, title, type, thread_id, run_status, pending_content, document_content, created_at`

func scanDocument(row interface{ Scan(...any) error }) (*domain.Document, error) {
	doc := &domain.Document{}
	err := row.Scan(&doc.ID, &doc.UserID, &doc.Title, &doc.Type, &doc.ThreadID,
		&doc.RunStatus, &doc.PendingContent, &doc.DocumentContent, &doc.CreatedAt)
	return doc, err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentCols+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return doc, err
}

func (s *Store) GetDocumentByThread(ctx context.Context, threadID string) (*domain.Document, error) {
	doc, err := scanDocument(s.db.QueryRowContext(ctx,
		`SELECT `+documentCols+` FROM documents WHERE thread_id = ?`, threadID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document for thread %s: %w", threadID, store.ErrNotFound)
	}
	return doc, err
}

func (s *Store) ListDocuments(ctx context.Context, userID, docType string) ([]domain.Document, error) {
	query := `SELECT ` + documentCols + ` FROM documents WHERE user_id = ?`
	args := []any{userID}
	if docType == "" || docType == domain.DocTypeFreeform {
		query += ` AND (type = '' OR type = ?)`
		args = append(args, domain.DocTypeFreeform)
	} else {
		query += ` AND type = ?`
		args = append(args, docType)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

func (s *Store) PatchDocument(ctx context.Context, id string, patch store.DocumentPatch) error {
	sets := []string{}
	args := []any{}
	if patch.Title != nil {
		sets = append(sets, "title=?")
		args = append(args, *patch.Title)
	}
	if patch.RunStatus != nil {
		sets = append(sets, "run_status=?")
		args = append(args, *patch.RunStatus)
	}
	if patch.PendingContent != nil {
		sets = append(sets, "pending_content=?")
		args = append(args, *patch.PendingContent)
	}
	if patch.DocumentContent != nil {
		sets = append(sets, "document_content=?")
		args = append(args, *patch.DocumentContent)
	}
	if len(sets) == 0 {
		return nil
	}

	query := "UPDATE documents SET "
	for i, set := range sets {
		if i > 0 {
			query += ", "
		}
		query += set
	}
	query += " WHERE id=?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// --- ThreadStore ---

func (s *Store) CreateThread(ctx context.Context, userID string) (string, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO threads (id, user_id, created_at) VALUES (?, ?, ?)`,
		id, userID, time.Now().UTC(),
	)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) AppendMessage(ctx context.Context, msg *domain.ThreadMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	var maxSeq int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM thread_messages WHERE thread_id=?`,
		msg.ThreadID,
	).Scan(&maxSeq)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO thread_messages (id, thread_id, role, content_type, content, model, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ThreadID, msg.Role, msg.ContentType,
		msg.Content, msg.Model, msg.Timestamp, maxSeq+1,
	)
	if err != nil {
		return err
	}

	s.notifySubscribers(msg.ThreadID)
	return nil
}

func (s *Store) ListMessages(ctx context.Context, threadID string, limit int) ([]domain.ThreadMessage, error) {
	query := `SELECT id, thread_id, role, content_type, content, model, timestamp
		FROM thread_messages WHERE thread_id=? ORDER BY seq ASC`
	args := []any{threadID}

	if limit > 0 {
		// Subquery to get only the last N messages in ASC order.
		query = `SELECT id, thread_id, role, content_type, content, model, timestamp FROM (
			SELECT id, thread_id, role, content_type, content, model, timestamp, seq
			FROM thread_messages WHERE thread_id=? ORDER BY seq DESC LIMIT ?
		) sub ORDER BY seq ASC`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []domain.ThreadMessage
	for rows.Next() {
		var m domain.ThreadMessage
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.ContentType, &m.Content, &m.Model, &m.Timestamp); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return resolveCompaction(msgs), nil
}

// resolveCompaction drops everything before the most recent compaction
// summary. The summary entry stands in for the dropped history.
func resolveCompaction(msgs []domain.ThreadMessage) []domain.ThreadMessage {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ContentType == domain.ContentTypeCompaction {
			return msgs[i:]
		}
	}
	return msgs
}

func (s *Store) Compact(ctx context.Context, threadID, summary, firstKeptID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var keptSeq int
	err = tx.QueryRowContext(ctx,
		`SELECT seq FROM thread_messages WHERE thread_id=? AND id=?`,
		threadID, firstKeptID,
	).Scan(&keptSeq)
	if err == sql.ErrNoRows {
		return store.ErrNotFound
	}
	if err != nil {
		return err
	}

	// Make room for the summary right before the first kept message.
	if _, err := tx.ExecContext(ctx,
		`UPDATE thread_messages SET seq=seq+1 WHERE thread_id=? AND seq>=?`,
		threadID, keptSeq,
	); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO thread_messages (id, thread_id, role, content_type, content, model, timestamp, seq)
		 VALUES (?, ?, ?, ?, ?, '', ?, ?)`,
		uuid.New().String(), threadID, domain.RoleSystem,
		domain.ContentTypeCompaction, summary, time.Now().UTC(), keptSeq,
	); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.notifySubscribers(threadID)
	return nil
}

func (s *Store) Subscribe() <-chan string {
	ch := make(chan string, 64)
	s.mu.Lock()
	s.subscribers = append(s.subscribers, ch)
	s.mu.Unlock()
	return ch
}

func (s *Store) notifySubscribers(threadID string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		select {
		case ch <- threadID:
		default:
			// Drop if subscriber is not consuming fast enough.
		}
	}
}

// --- MemoryStore ---

func (s *Store) ProposePending(ctx context.Context, userID, threadID, content string, category domain.MemoryCategory) (*domain.Memory, error) {
	// Dedup: an identical pending or confirmed fact for this user wins over
	// a new insert.
	existing := &domain.Memory{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, content, category, status, thread_id, created_at
		 FROM memories WHERE user_id=? AND content=? AND status IN (?, ?)
		 ORDER BY created_at ASC LIMIT 1`,
		userID, content, domain.MemoryStatusPending, domain.MemoryStatusConfirmed,
	).Scan(&existing.ID, &existing.UserID, &existing.Content, &existing.Category,
		&existing.Status, &existing.ThreadID, &existing.CreatedAt)
	if err == nil {
		return existing, nil
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	mem := &domain.Memory{
		ID:        newID(),
		UserID:    userID,
		Content:   content,
		Category:  category,
		Status:    domain.MemoryStatusPending,
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, content, category, status, thread_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		mem.ID, mem.UserID, mem.Content, mem.Category, mem.Status, mem.ThreadID, mem.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return mem, nil
}

func (s *Store) ListConfirmed(ctx context.Context, userID string) ([]domain.Memory, error) {
	return s.listMemories(ctx,
		`SELECT id, user_id, content, category, status, thread_id, created_at
		 FROM memories WHERE user_id=? AND status=? ORDER BY created_at ASC`,
		userID, domain.MemoryStatusConfirmed)
}

func (s *Store) ListPending(ctx context.Context, threadID string) ([]domain.Memory, error) {
	return s.listMemories(ctx,
		`SELECT id, user_id, content, category, status, thread_id, created_at
		 FROM memories WHERE thread_id=? AND status=? ORDER BY created_at ASC`,
		threadID, domain.MemoryStatusPending)
}

func (s *Store) listMemories(ctx context.Context, query string, args ...any) ([]domain.Memory, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mems []domain.Memory
	for rows.Next() {
		var m domain.Memory
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.Category, &m.Status, &m.ThreadID, &m.CreatedAt); err != nil {
			return nil, err
		}
		mems = append(mems, m)
	}
	return mems, rows.Err()
}

func (s *Store) SetMemoryStatus(ctx context.Context, userID, memoryID string, status domain.MemoryStatus) error {
	var owner string
	var current domain.MemoryStatus
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, status FROM memories WHERE id=?`, memoryID,
	).Scan(&owner, &current)
	if err == sql.ErrNoRows {
		return fmt.Errorf("memory %s: %w", memoryID, store.ErrNotFound)
	}
	if err != nil {
		return err
	}
	if owner != userID {
		return fmt.Errorf("memory %s: %w", memoryID, store.ErrNotFound)
	}
	// Confirm/reject is idempotent: a settled memory stays settled.
	if current != domain.MemoryStatusPending {
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE memories SET status=? WHERE id=?`, status, memoryID)
	return err
}
