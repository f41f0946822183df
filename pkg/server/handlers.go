package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"coscribe/pkg/domain"
	"coscribe/pkg/store"
)

// --- Documents ---

func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	docType := r.URL.Query().Get("type")
	docs, err := s.stores.Documents.ListDocuments(r.Context(), uid, docType)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, docs)
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Title string `json:"title"`
		Type  string `json:"type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Title == "" {
		req.Title = "Untitled"
	}
	if req.Type == "" {
		req.Type = domain.DocTypeFreeform
	}

	threadID, err := s.stores.Threads.CreateThread(r.Context(), uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	doc := &domain.Document{
		ID:        uuid.New().String(),
		UserID:    uid,
		Title:     req.Title,
		Type:      req.Type,
		ThreadID:  threadID,
		RunStatus: domain.RunStatusIdle,
	}
	if err := s.stores.Documents.CreateDocument(r.Context(), doc); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, doc)
}

// ownedDocument loads a document and checks the caller owns it.
func (s *Server) ownedDocument(r *http.Request, uid string) (*domain.Document, error) {
	doc, err := s.stores.Documents.GetDocument(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if doc.UserID != uid {
		return nil, store.ErrNotFound
	}
	return doc, nil
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if err := s.stores.Documents.DeleteDocument(r.Context(), doc.ID); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetDocumentContent persists editor state. Saving clears any staged
// pending content, since the editor has by then folded it in or discarded it.
func (s *Server) handleSetDocumentContent(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	empty := ""
	patch := store.DocumentPatch{DocumentContent: &req.Content, PendingContent: &empty}
	if err := s.stores.Documents.PatchDocument(r.Context(), doc.ID, patch); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearPending(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	empty := ""
	if err := s.stores.Documents.PatchDocument(r.Context(), doc.ID, store.DocumentPatch{PendingContent: &empty}); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Prompt      string              `json:"prompt"`
		Attachments []domain.Attachment `json:"attachments,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	if req.Prompt == "" {
		s.errorResponse(w, http.StatusBadRequest, errors.New("prompt is required"))
		return
	}
	msgID, err := s.runner.Send(r.Context(), uid, r.PathValue("id"), req.Prompt, req.Attachments)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusAccepted, map[string]string{"message_id": msgID})
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	msgs, err := s.stores.Threads.ListMessages(r.Context(), doc.ThreadID, 0)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, msgs)
}

// --- Selections ---

func (s *Server) handleCreateSelection(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	var sel domain.Selection
	if err := json.NewDecoder(r.Body).Decode(&sel); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	sel.ID = uuid.New().String()
	sel.UserID = uid
	sel.DocumentID = doc.ID
	sel.Status = domain.SelectionStatusActive
	if err := s.sel.CreateSelection(r.Context(), &sel); err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, sel)
}

func (s *Server) handleListSelections(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	sels, err := s.sel.ListActiveSelections(r.Context(), doc.ID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, sels)
}

func (s *Server) handleSetSelectionStatus(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Status domain.SelectionStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	switch req.Status {
	case domain.SelectionStatusUsed, domain.SelectionStatusDismissed:
	default:
		s.errorResponse(w, http.StatusBadRequest, fmt.Errorf("invalid status %q", req.Status))
		return
	}
	if err := s.sel.SetSelectionStatus(r.Context(), uid, r.PathValue("id"), req.Status); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Memories ---

func (s *Server) handleListConfirmedMemories(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	memories, err := s.stores.Memories.ListConfirmed(r.Context(), uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, memories)
}

func (s *Server) handleListPendingMemories(w http.ResponseWriter, r *http.Request) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	doc, err := s.ownedDocument(r, uid)
	if err != nil {
		s.storeError(w, err)
		return
	}
	memories, err := s.stores.Memories.ListPending(r.Context(), doc.ThreadID)
	if err != nil {
		s.storeError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, memories)
}

func (s *Server) handleConfirmMemory(w http.ResponseWriter, r *http.Request) {
	s.setMemoryStatus(w, r, domain.MemoryStatusConfirmed)
}

func (s *Server) handleRejectMemory(w http.ResponseWriter, r *http.Request) {
	s.setMemoryStatus(w, r, domain.MemoryStatusRejected)
}

func (s *Server) setMemoryStatus(w http.ResponseWriter, r *http.Request, status domain.MemoryStatus) {
	uid, ok := s.requireUser(w, r)
	if !ok {
		return
	}
	if err := s.stores.Memories.SetMemoryStatus(r.Context(), uid, r.PathValue("id"), status); err != nil {
		s.storeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Files ---

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.requireUser(w, r); !ok {
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	f, header, err := r.FormFile("file")
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, err)
		return
	}
	defer f.Close()

	storageID, err := s.files.SaveFile(r.Context(), header.Filename, f)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusCreated, domain.Attachment{
		StorageID: storageID,
		FileName:  header.Filename,
		MIMEType:  header.Header.Get("Content-Type"),
	})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	rc, err := s.files.OpenFile(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	io.Copy(w, rc)
}

// --- Models ---

func (s *Server) handleListModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.provider.List(r.Context())
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, models)
}
