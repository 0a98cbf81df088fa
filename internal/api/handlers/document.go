package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/candorhq/tacit/internal/api"
	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentManager interface {
	Upload(ctx context.Context, tenantID string, in service.UploadInput) (*domain.Document, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Document, error)
	List(ctx context.Context, tenantID string) ([]*domain.Document, error)
	Delete(ctx context.Context, tenantID, id string) error
}

type DocumentHandler struct {
	svc DocumentManager
}

func NewDocumentHandler(svc DocumentManager) *DocumentHandler {
	return &DocumentHandler{svc: svc}
}

type UploadDocumentRequest struct {
	Filename   string            `json:"filename"`
	Title      string            `json:"title"`
	CampaignID string            `json:"campaign_id"`
	Metadata   map[string]string `json:"metadata"`
	Text       string            `json:"text"`
}

type DocumentResponse struct {
	ID        string `json:"id"`
	Filename  string `json:"filename"`
	Title     string `json:"title"`
	SizeBytes int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

func documentToResponse(doc *domain.Document) *DocumentResponse {
	return &DocumentResponse{
		ID:        doc.ID,
		Filename:  doc.Filename,
		Title:     doc.Title,
		SizeBytes: doc.SizeBytes,
		CreatedAt: doc.CreatedAt.Format(time.RFC3339),
	}
}

func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req UploadDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Filename == "" {
		api.Error(w, http.StatusBadRequest, "filename is required")
		return
	}
	if req.Text == "" {
		api.Error(w, http.StatusBadRequest, "text is required")
		return
	}

	doc, err := h.svc.Upload(r.Context(), tenantID, service.UploadInput{
		Filename:   req.Filename,
		Title:      req.Title,
		CampaignID: req.CampaignID,
		Metadata:   req.Metadata,
		Text:       req.Text,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, documentToResponse(doc))
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	doc, err := h.svc.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, documentToResponse(doc))
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	docs, err := h.svc.List(r.Context(), tenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, documentToResponse(doc))
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"documents": responses})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	if err := h.svc.Delete(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}
