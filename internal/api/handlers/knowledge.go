package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/candorhq/tacit/internal/api"
	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/go-chi/chi/v5"
)

type IndexerService interface {
	Index(ctx context.Context, tenantID string, ref domain.ContentRef, text string) error
	Remove(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error
}

type RetrieverService interface {
	Search(ctx context.Context, query, tenantID string, opts service.SearchOptions) ([]*domain.SearchResult, error)
}

type KnowledgeHandler struct {
	indexer   IndexerService
	retriever RetrieverService
}

func NewKnowledgeHandler(indexer IndexerService, retriever RetrieverService) *KnowledgeHandler {
	return &KnowledgeHandler{indexer: indexer, retriever: retriever}
}

type IndexRequest struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	CampaignID string            `json:"campaign_id"`
	Metadata   map[string]string `json:"metadata"`
	Text       string            `json:"text"`
}

type SearchRequest struct {
	Query        string   `json:"query"`
	Threshold    *float32 `json:"threshold"`
	Limit        int      `json:"limit"`
	CampaignID   string   `json:"campaign_id"`
	ContentTypes []string `json:"content_types"`
}

type SearchResultResponse struct {
	Type       string            `json:"type"`
	ContentID  string            `json:"content_id"`
	CampaignID string            `json:"campaign_id,omitempty"`
	ChunkIndex int               `json:"chunk_index"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Score      float32           `json:"score"`
}

func searchResultToResponse(res *domain.SearchResult) *SearchResultResponse {
	return &SearchResultResponse{
		Type:       string(res.Type),
		ContentID:  res.ContentID,
		CampaignID: res.CampaignID,
		ChunkIndex: res.ChunkIndex,
		Content:    res.Content,
		Metadata:   res.Metadata,
		Score:      res.Score,
	}
}

// Index re-indexes one content item: its previous chunks are replaced by
// chunks of the submitted text.
func (h *KnowledgeHandler) Index(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.ID == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}
	contentType, err := domain.ParseContentType(req.Type)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	ref := domain.ContentRef{
		Type:       contentType,
		ID:         req.ID,
		CampaignID: req.CampaignID,
		Metadata:   req.Metadata,
	}
	if err := h.indexer.Index(r.Context(), tenantID, ref, req.Text); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{
		"type": string(contentType),
		"id":   req.ID,
	})
}

// Remove deletes all indexed chunks for a content item.
func (h *KnowledgeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	contentType, err := domain.ParseContentType(chi.URLParam(r, "type"))
	if err != nil {
		api.HandleError(w, err)
		return
	}
	contentID := chi.URLParam(r, "id")

	if err := h.indexer.Remove(r.Context(), tenantID, contentType, contentID); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

// Search runs a similarity search over the tenant's indexed knowledge.
func (h *KnowledgeHandler) Search(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	contentTypes := make([]domain.ContentType, 0, len(req.ContentTypes))
	for _, raw := range req.ContentTypes {
		ct, err := domain.ParseContentType(raw)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		contentTypes = append(contentTypes, ct)
	}

	results, err := h.retriever.Search(r.Context(), req.Query, tenantID, service.SearchOptions{
		Threshold:    req.Threshold,
		Limit:        req.Limit,
		CampaignID:   req.CampaignID,
		ContentTypes: contentTypes,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, 0, len(results))
	for _, res := range results {
		responses = append(responses, searchResultToResponse(res))
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"results": responses})
}
