package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"coscribe/pkg/domain"
)

// Admin surface: agent configs, their skills and templates, and the asset
// catalogs. No per-user scoping; configs are shared across the workspace.

// --- Agent configs ---

func (s *Server) handleListConfigs(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	configs, err := s.stores.Configs.ListConfigs(r.Context(), activeOnly)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, configs)
}

func (s *Server) handleCreateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if cfg.Slug == "" || cfg.Name == "" || cfg.Instructions == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("name, slug, and instructions are required"))
		return
	}
	cfg.ID = uuid.New().String()
	cfg.Status = domain.ConfigStatusActive
	if err := s.stores.Configs.CreateConfig(r.Context(), &cfg); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, cfg)
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.stores.Configs.GetConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cfg)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg domain.AgentConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	cfg.ID = r.PathValue("id")
	if err := s.stores.Configs.UpdateConfig(r.Context(), &cfg); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, cfg)
}

func (s *Server) handleArchiveConfig(w http.ResponseWriter, r *http.Request) {
	s.setConfigStatus(w, r, domain.ConfigStatusArchived)
}

func (s *Server) handleRestoreConfig(w http.ResponseWriter, r *http.Request) {
	s.setConfigStatus(w, r, domain.ConfigStatusActive)
}

func (s *Server) setConfigStatus(w http.ResponseWriter, r *http.Request, status domain.ConfigStatus) {
	if err := s.stores.Configs.SetConfigStatus(r.Context(), r.PathValue("id"), status); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Skills ---

func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.stores.Skills.ListSkillsByConfig(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, skills)
}

func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var skill domain.Skill
	if err := json.NewDecoder(r.Body).Decode(&skill); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if skill.Slug == "" || skill.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("name and slug are required"))
		return
	}
	skill.ID = uuid.New().String()
	skill.AgentConfigID = r.PathValue("id")
	skill.Status = domain.ConfigStatusActive
	if err := s.stores.Skills.CreateSkill(r.Context(), &skill); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, skill)
}

func (s *Server) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	var skill domain.Skill
	if err := json.NewDecoder(r.Body).Decode(&skill); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	skill.ID = r.PathValue("id")
	if err := s.stores.Skills.UpdateSkill(r.Context(), &skill); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, skill)
}

func (s *Server) handleArchiveSkill(w http.ResponseWriter, r *http.Request) {
	s.setSkillStatus(w, r, domain.ConfigStatusArchived)
}

func (s *Server) handleRestoreSkill(w http.ResponseWriter, r *http.Request) {
	s.setSkillStatus(w, r, domain.ConfigStatusActive)
}

func (s *Server) setSkillStatus(w http.ResponseWriter, r *http.Request, status domain.ConfigStatus) {
	if err := s.stores.Skills.SetSkillStatus(r.Context(), r.PathValue("id"), status); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Skill templates ---

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.stores.Templates.ListTemplatesBySkill(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, templates)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.SkillTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if tpl.Slug == "" || tpl.Name == "" {
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("name and slug are required"))
		return
	}
	if tpl.FileType == "" {
		tpl.FileType = domain.TemplateFileTypeTemplate
	}
	tpl.ID = uuid.New().String()
	tpl.SkillID = r.PathValue("id")
	if err := s.stores.Templates.CreateTemplate(r.Context(), &tpl); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, tpl)
}

func (s *Server) handleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	var tpl domain.SkillTemplate
	if err := json.NewDecoder(r.Body).Decode(&tpl); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	tpl.ID = r.PathValue("id")
	if err := s.stores.Templates.UpdateTemplate(r.Context(), &tpl); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, tpl)
}

func (s *Server) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	if err := s.stores.Templates.DeleteTemplate(r.Context(), r.PathValue("id")); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Asset catalogs ---

func (s *Server) handleListAvatars(w http.ResponseWriter, r *http.Request) {
	avatars, err := s.stores.Avatars.ListAvatars(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, avatars)
}

func (s *Server) handleSeedAvatars(w http.ResponseWriter, r *http.Request) {
	seeded, err := s.stores.Avatars.SeedAvatars(r.Context(), DefaultAvatars())
	if err != nil {
		s.storeError(w, err)
		return
	}
	msg := "Avatars already exist"
	if seeded {
		msg = fmt.Sprintf("Seeded %d avatars", len(DefaultAvatars()))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"seeded": seeded, "message": msg})
}

func (s *Server) handleListSceneLayouts(w http.ResponseWriter, r *http.Request) {
	layouts, err := s.stores.Layouts.ListSceneLayouts(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, layouts)
}

func (s *Server) handleSeedSceneLayouts(w http.ResponseWriter, r *http.Request) {
	seeded, err := s.stores.Layouts.SeedSceneLayouts(r.Context(), DefaultSceneLayouts())
	if err != nil {
		s.storeError(w, err)
		return
	}
	msg := "Scene layouts already exist"
	if seeded {
		msg = fmt.Sprintf("Seeded %d scene layouts", len(DefaultSceneLayouts()))
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"seeded": seeded, "message": msg})
}
