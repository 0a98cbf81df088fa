package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/candorhq/tacit/internal/api"
	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/go-chi/chi/v5"
)

type ConversationManager interface {
	Create(ctx context.Context, tenantID, userID string) (*domain.Conversation, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	List(ctx context.Context, tenantID, userID, cursor string, limit int) (*service.ConversationPageResult, error)
	Messages(ctx context.Context, tenantID, conversationID string) ([]domain.Message, error)
}

type ConversationHandler struct {
	svc ConversationManager
}

func NewConversationHandler(svc ConversationManager) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

type CreateConversationRequest struct {
	UserID string `json:"user_id"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type MessageResponse struct {
	ID        string          `json:"id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   []domain.Source `json:"sources,omitempty"`
	CreatedAt string          `json:"created_at"`
}

type ConversationListResponse struct {
	Items      []*ConversationResponse `json:"items"`
	NextCursor string                  `json:"next_cursor,omitempty"`
	HasMore    bool                    `json:"has_more"`
}

func conversationToResponse(conv *domain.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:        conv.ID,
		UserID:    conv.UserID,
		Title:     conv.Title,
		CreatedAt: conv.CreatedAt.Format(time.RFC3339),
		UpdatedAt: conv.UpdatedAt.Format(time.RFC3339),
	}
}

func messageToResponse(msg domain.Message) *MessageResponse {
	return &MessageResponse{
		ID:        msg.ID,
		Role:      string(msg.Role),
		Content:   msg.Content,
		Sources:   msg.Sources,
		CreatedAt: msg.CreatedAt.Format(time.RFC3339),
	}
}

func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		api.Error(w, http.StatusBadRequest, "user_id is required")
		return
	}

	conv, err := h.svc.Create(r.Context(), tenantID, req.UserID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, conversationToResponse(conv))
}

func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	conv, err := h.svc.Get(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conversationToResponse(conv))
}

func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			api.Error(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	page, err := h.svc.List(r.Context(), tenantID, r.URL.Query().Get("user_id"), r.URL.Query().Get("cursor"), limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	items := make([]*ConversationResponse, 0, len(page.Items))
	for _, conv := range page.Items {
		items = append(items, conversationToResponse(conv))
	}

	api.Success(w, http.StatusOK, ConversationListResponse{
		Items:      items,
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	messages, err := h.svc.Messages(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*MessageResponse, 0, len(messages))
	for _, msg := range messages {
		responses = append(responses, messageToResponse(msg))
	}

	api.Success(w, http.StatusOK, map[string]interface{}{"messages": responses})
}
