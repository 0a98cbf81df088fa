package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockConversationManager struct {
	mock.Mock
}

func (m *MockConversationManager) Create(ctx context.Context, tenantID, userID string) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationManager) Get(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Conversation), args.Error(1)
}

func (m *MockConversationManager) List(ctx context.Context, tenantID, userID, cursor string, limit int) (*service.ConversationPageResult, error) {
	args := m.Called(ctx, tenantID, userID, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ConversationPageResult), args.Error(1)
}

func (m *MockConversationManager) Messages(ctx context.Context, tenantID, conversationID string) ([]domain.Message, error) {
	args := m.Called(ctx, tenantID, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Message), args.Error(1)
}

func TestConversationHandler_Create(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	conv := domain.NewConversation("c-1", "tenant-1", "user-1", time.Now().UTC())
	svc.On("Create", mock.Anything, "tenant-1", "user-1").Return(conv, nil)

	body := []byte(`{"user_id":"user-1"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data ConversationResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "c-1", resp.Data.ID)
	assert.Empty(t, resp.Data.Title)
	svc.AssertExpectations(t)
}

func TestConversationHandler_Create_MissingUserID(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewReader([]byte(`{}`))), "tenant-1")
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationHandler_Get_NotFound(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	svc.On("Get", mock.Anything, "tenant-1", "c-404").Return(nil, domain.ErrConversationNotFound)

	req := httptest.NewRequest(http.MethodGet, "/conversations/c-404", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "c-404")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = withTenant(req, "tenant-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConversationHandler_List(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	page := &service.ConversationPageResult{
		Items: []*domain.Conversation{
			domain.NewConversation("c-2", "tenant-1", "user-1", time.Now().UTC()),
			domain.NewConversation("c-1", "tenant-1", "user-1", time.Now().UTC()),
		},
		NextCursor: "cursor-abc",
		HasMore:    true,
	}
	svc.On("List", mock.Anything, "tenant-1", "", "", 25).Return(page, nil)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/conversations?limit=25", nil), "tenant-1")
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data ConversationListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 2)
	assert.Equal(t, "c-2", resp.Data.Items[0].ID)
	assert.True(t, resp.Data.HasMore)
	assert.Equal(t, "cursor-abc", resp.Data.NextCursor)
}

func TestConversationHandler_List_InvalidLimit(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	req := withTenant(httptest.NewRequest(http.MethodGet, "/conversations?limit=abc", nil), "tenant-1")
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConversationHandler_Messages(t *testing.T) {
	svc := new(MockConversationManager)
	handler := NewConversationHandler(svc)

	messages := []domain.Message{
		{ID: "m-1", Role: domain.RoleUser, Content: "question", CreatedAt: time.Now().UTC()},
		{ID: "m-2", Role: domain.RoleAssistant, Content: "answer [Source 1]", Sources: []domain.Source{{
			Type:  domain.ContentTypeTranscript,
			ID:    "t-1",
			Title: "Interview",
		}}, CreatedAt: time.Now().UTC()},
	}
	svc.On("Messages", mock.Anything, "tenant-1", "c-1").Return(messages, nil)

	req := httptest.NewRequest(http.MethodGet, "/conversations/c-1/messages", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "c-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = withTenant(req, "tenant-1")
	w := httptest.NewRecorder()

	handler.Messages(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Messages []MessageResponse `json:"messages"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Messages, 2)
	assert.Equal(t, "user", resp.Data.Messages[0].Role)
	assert.Empty(t, resp.Data.Messages[0].Sources)
	require.Len(t, resp.Data.Messages[1].Sources, 1)
	assert.Equal(t, "Interview", resp.Data.Messages[1].Sources[0].Title)
}
