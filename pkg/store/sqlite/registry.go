package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coscribe/pkg/domain"
	"coscribe/pkg/store"
)

func newID() string {
	return uuid.New().String()
}

// Assigned types are stored as a comma-joined list. None of the enumerated
// document types contain commas.
func joinTypes(types []string) string {
	return strings.Join(types, ",")
}

func splitTypes(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// --- AgentConfigStore ---

func (s *Store) CreateConfig(ctx context.Context, cfg *domain.AgentConfig) error {
	if err := s.checkSlugFree(ctx, "agent_configs", cfg.Slug, ""); err != nil {
		return err
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	if cfg.Status == "" {
		cfg.Status = domain.ConfigStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agent_configs (id, name, slug, instructions, model, max_steps, assigned_types, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		cfg.ID, cfg.Name, cfg.Slug, cfg.Instructions, cfg.Model, cfg.MaxSteps,
		joinTypes(cfg.AssignedTypes), cfg.Status, cfg.CreatedAt, cfg.UpdatedAt,
	)
	return err
}

const configCols = `id, name, slug, instructions, model, max_steps, assigned_types, status, created_at, updated_at`

func scanConfig(row interface{ Scan(...any) error }) (*domain.AgentConfig, error) {
	cfg := &domain.AgentConfig{}
	var types string
	err := row.Scan(&cfg.ID, &cfg.Name, &cfg.Slug, &cfg.Instructions, &cfg.Model,
		&cfg.MaxSteps, &types, &cfg.Status, &cfg.CreatedAt, &cfg.UpdatedAt)
	cfg.AssignedTypes = splitTypes(types)
	return cfg, err
}

func (s *Store) GetConfig(ctx context.Context, id string) (*domain.AgentConfig, error) {
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configCols+` FROM agent_configs WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent config %s: %w", id, store.ErrNotFound)
	}
	return cfg, err
}

func (s *Store) GetConfigBySlug(ctx context.Context, slug string) (*domain.AgentConfig, error) {
	cfg, err := scanConfig(s.db.QueryRowContext(ctx,
		`SELECT `+configCols+` FROM agent_configs WHERE slug=?`, slug))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("agent config %q: %w", slug, store.ErrNotFound)
	}
	return cfg, err
}

func (s *Store) ListConfigs(ctx context.Context, activeOnly bool) ([]domain.AgentConfig, error) {
	query := `SELECT ` + configCols + ` FROM agent_configs`
	var args []any
	if activeOnly {
		query += ` WHERE status=?`
		args = append(args, domain.ConfigStatusActive)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cfgs []domain.AgentConfig
	for rows.Next() {
		cfg, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		cfgs = append(cfgs, *cfg)
	}
	return cfgs, rows.Err()
}

func (s *Store) ListActiveConfigsForType(ctx context.Context, docType string) ([]domain.AgentConfig, error) {
	all, err := s.ListConfigs(ctx, true)
	if err != nil {
		return nil, err
	}
	var eligible []domain.AgentConfig
	for _, cfg := range all {
		for _, t := range cfg.AssignedTypes {
			if t == docType || t == domain.TypeWildcard {
				eligible = append(eligible, cfg)
				break
			}
		}
	}
	return eligible, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg *domain.AgentConfig) error {
	if err := s.checkSlugFree(ctx, "agent_configs", cfg.Slug, cfg.ID); err != nil {
		return err
	}
	cfg.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE agent_configs SET name=?, slug=?, instructions=?, model=?, max_steps=?, assigned_types=?, updated_at=?
		 WHERE id=?`,
		cfg.Name, cfg.Slug, cfg.Instructions, cfg.Model, cfg.MaxSteps,
		joinTypes(cfg.AssignedTypes), cfg.UpdatedAt, cfg.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent config %s: %w", cfg.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SetConfigStatus(ctx context.Context, id string, status domain.ConfigStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE agent_configs SET status=?, updated_at=? WHERE id=?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent config %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// checkSlugFree rejects a slug already used by a different row in the given
// table. Slug uniqueness is also enforced by the schema; checking first
// keeps the error portable and avoids a partial write.
func (s *Store) checkSlugFree(ctx context.Context, table, slug, selfID string) error {
	var existingID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM `+table+` WHERE slug=?`, slug,
	).Scan(&existingID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if existingID == selfID {
		return nil
	}
	return fmt.Errorf("slug %q: %w", slug, store.ErrDuplicateSlug)
}

// --- SkillStore ---

func (s *Store) CreateSkill(ctx context.Context, skill *domain.Skill) error {
	if _, err := s.GetConfig(ctx, skill.AgentConfigID); err != nil {
		return err
	}
	if err := s.checkSlugFree(ctx, "skills", skill.Slug, ""); err != nil {
		return err
	}
	now := time.Now().UTC()
	skill.CreatedAt = now
	skill.UpdatedAt = now
	if skill.Status == "" {
		skill.Status = domain.ConfigStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skills (id, agent_config_id, name, slug, description, procedure, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		skill.ID, skill.AgentConfigID, skill.Name, skill.Slug,
		skill.Description, skill.Procedure, skill.Status, skill.CreatedAt, skill.UpdatedAt,
	)
	return err
}

const skillCols = `id, agent_config_id, name, slug, description, procedure, status, created_at, updated_at`

func scanSkill(row interface{ Scan(...any) error }) (*domain.Skill, error) {
	sk := &domain.Skill{}
	err := row.Scan(&sk.ID, &sk.AgentConfigID, &sk.Name, &sk.Slug,
		&sk.Description, &sk.Procedure, &sk.Status, &sk.CreatedAt, &sk.UpdatedAt)
	return sk, err
}

func (s *Store) GetSkill(ctx context.Context, id string) (*domain.Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx,
		`SELECT `+skillCols+` FROM skills WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("skill %s: %w", id, store.ErrNotFound)
	}
	return sk, err
}

func (s *Store) GetSkillBySlug(ctx context.Context, slug string) (*domain.Skill, error) {
	sk, err := scanSkill(s.db.QueryRowContext(ctx,
		`SELECT `+skillCols+` FROM skills WHERE slug=?`, slug))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("skill %q: %w", slug, store.ErrNotFound)
	}
	return sk, err
}

func (s *Store) ListSkillsByConfig(ctx context.Context, configID string) ([]domain.Skill, error) {
	return s.listSkills(ctx,
		`SELECT `+skillCols+` FROM skills WHERE agent_config_id=? ORDER BY created_at DESC`,
		configID)
}

func (s *Store) ListActiveSkillsByConfig(ctx context.Context, configID string) ([]domain.Skill, error) {
	return s.listSkills(ctx,
		`SELECT `+skillCols+` FROM skills WHERE agent_config_id=? AND status=? ORDER BY created_at ASC`,
		configID, domain.ConfigStatusActive)
}

func (s *Store) listSkills(ctx context.Context, query string, args ...any) ([]domain.Skill, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var skills []domain.Skill
	for rows.Next() {
		sk, err := scanSkill(rows)
		if err != nil {
			return nil, err
		}
		skills = append(skills, *sk)
	}
	return skills, rows.Err()
}

func (s *Store) UpdateSkill(ctx context.Context, skill *domain.Skill) error {
	if err := s.checkSlugFree(ctx, "skills", skill.Slug, skill.ID); err != nil {
		return err
	}
	skill.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		`UPDATE skills SET name=?, slug=?, description=?, procedure=?, updated_at=? WHERE id=?`,
		skill.Name, skill.Slug, skill.Description, skill.Procedure, skill.UpdatedAt, skill.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("skill %s: %w", skill.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) SetSkillStatus(ctx context.Context, id string, status domain.ConfigStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE skills SET status=?, updated_at=? WHERE id=?`,
		status, time.Now().UTC(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("skill %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// --- TemplateStore ---

func (s *Store) CreateTemplate(ctx context.Context, tpl *domain.SkillTemplate) error {
	if _, err := s.GetSkill(ctx, tpl.SkillID); err != nil {
		return err
	}
	if err := s.checkSlugFree(ctx, "skill_templates", tpl.Slug, ""); err != nil {
		return err
	}
	tpl.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO skill_templates (id, skill_id, name, slug, description, content, file_type, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID, tpl.SkillID, tpl.Name, tpl.Slug, tpl.Description, tpl.Content, tpl.FileType, tpl.CreatedAt,
	)
	return err
}

const templateCols = `id, skill_id, name, slug, description, content, file_type, created_at`

func scanTemplate(row interface{ Scan(...any) error }) (*domain.SkillTemplate, error) {
	tpl := &domain.SkillTemplate{}
	err := row.Scan(&tpl.ID, &tpl.SkillID, &tpl.Name, &tpl.Slug,
		&tpl.Description, &tpl.Content, &tpl.FileType, &tpl.CreatedAt)
	return tpl, err
}

func (s *Store) GetTemplate(ctx context.Context, id string) (*domain.SkillTemplate, error) {
	tpl, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateCols+` FROM skill_templates WHERE id=?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %s: %w", id, store.ErrNotFound)
	}
	return tpl, err
}

func (s *Store) GetTemplateBySlug(ctx context.Context, slug string) (*domain.SkillTemplate, error) {
	tpl, err := scanTemplate(s.db.QueryRowContext(ctx,
		`SELECT `+templateCols+` FROM skill_templates WHERE slug=?`, slug))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("template %q: %w", slug, store.ErrNotFound)
	}
	return tpl, err
}

func (s *Store) ListTemplatesBySkill(ctx context.Context, skillID string) ([]domain.SkillTemplate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+templateCols+` FROM skill_templates WHERE skill_id=? ORDER BY created_at ASC`, skillID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tpls []domain.SkillTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		tpls = append(tpls, *tpl)
	}
	return tpls, rows.Err()
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *domain.SkillTemplate) error {
	if err := s.checkSlugFree(ctx, "skill_templates", tpl.Slug, tpl.ID); err != nil {
		return err
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE skill_templates SET name=?, slug=?, description=?, content=?, file_type=? WHERE id=?`,
		tpl.Name, tpl.Slug, tpl.Description, tpl.Content, tpl.FileType, tpl.ID,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("template %s: %w", tpl.ID, store.ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM skill_templates WHERE id=?`, id)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("template %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// --- AvatarStore ---

func (s *Store) ListAvatars(ctx context.Context) ([]domain.Avatar, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, style, seed, created_at FROM avatars ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var avatars []domain.Avatar
	for rows.Next() {
		var a domain.Avatar
		if err := rows.Scan(&a.ID, &a.Name, &a.Style, &a.Seed, &a.CreatedAt); err != nil {
			return nil, err
		}
		avatars = append(avatars, a)
	}
	return avatars, rows.Err()
}

func (s *Store) SeedAvatars(ctx context.Context, avatars []domain.Avatar) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM avatars`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	for _, a := range avatars {
		if a.ID == "" {
			a.ID = newID()
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO avatars (id, name, style, seed, created_at) VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.Name, a.Style, a.Seed, now,
		); err != nil {
			return false, err
		}
	}
	return true, nil
}

// --- SceneLayoutStore ---

func (s *Store) ListSceneLayouts(ctx context.Context) ([]domain.SceneLayout, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM scene_layouts ORDER BY created_at ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var layouts []domain.SceneLayout
	for rows.Next() {
		var l domain.SceneLayout
		if err := rows.Scan(&l.ID, &l.Name, &l.Description, &l.CreatedAt); err != nil {
			return nil, err
		}
		layouts = append(layouts, l)
	}
	return layouts, rows.Err()
}

func (s *Store) SeedSceneLayouts(ctx context.Context, layouts []domain.SceneLayout) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM scene_layouts`).Scan(&count); err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}

	now := time.Now().UTC()
	for _, l := range layouts {
		if l.ID == "" {
			l.ID = newID()
		}
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO scene_layouts (id, name, description, created_at) VALUES (?, ?, ?, ?)`,
			l.ID, l.Name, l.Description, now,
		); err != nil {
			return false, err
		}
	}
	return true, nil
}

// --- SelectionStore ---

func (s *Store) CreateSelection(ctx context.Context, sel *domain.Selection) error {
	sel.CreatedAt = time.Now().UTC()
	if sel.Status == "" {
		sel.Status = domain.SelectionStatusActive
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO selections (id, user_id, document_id, text, html, span_from, span_to, status, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sel.ID, sel.UserID, sel.DocumentID, sel.Text, sel.HTML, sel.From, sel.To, sel.Status, sel.CreatedAt,
	)
	return err
}

func (s *Store) ListActiveSelections(ctx context.Context, documentID string) ([]domain.Selection, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, document_id, text, html, span_from, span_to, status, created_at
		 FROM selections WHERE document_id=? AND status=? ORDER BY created_at ASC`,
		documentID, domain.SelectionStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sels []domain.Selection
	for rows.Next() {
		var sel domain.Selection
		if err := rows.Scan(&sel.ID, &sel.UserID, &sel.DocumentID, &sel.Text, &sel.HTML,
			&sel.From, &sel.To, &sel.Status, &sel.CreatedAt); err != nil {
			return nil, err
		}
		sels = append(sels, sel)
	}
	return sels, rows.Err()
}

func (s *Store) SetSelectionStatus(ctx context.Context, userID, id string, status domain.SelectionStatus) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE selections SET status=? WHERE id=? AND user_id=?`, status, id, userID)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("selection %s: %w", id, store.ErrNotFound)
	}
	return nil
}
