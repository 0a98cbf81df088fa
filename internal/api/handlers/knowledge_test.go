package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockIndexerService struct {
	mock.Mock
}

func (m *MockIndexerService) Index(ctx context.Context, tenantID string, ref domain.ContentRef, text string) error {
	args := m.Called(ctx, tenantID, ref, text)
	return args.Error(0)
}

func (m *MockIndexerService) Remove(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error {
	args := m.Called(ctx, tenantID, contentType, contentID)
	return args.Error(0)
}

type MockRetrieverService struct {
	mock.Mock
}

func (m *MockRetrieverService) Search(ctx context.Context, query, tenantID string, opts service.SearchOptions) ([]*domain.SearchResult, error) {
	args := m.Called(ctx, query, tenantID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SearchResult), args.Error(1)
}

func withTenant(req *http.Request, tenantID string) *http.Request {
	return req.WithContext(context.WithValue(req.Context(), middleware.TenantIDKey, tenantID))
}

func TestKnowledgeHandler_Index(t *testing.T) {
	indexer := new(MockIndexerService)
	handler := NewKnowledgeHandler(indexer, new(MockRetrieverService))

	expectedRef := domain.ContentRef{
		Type:       domain.ContentTypeTranscript,
		ID:         "t-1",
		CampaignID: "camp-1",
		Metadata:   map[string]string{"title": "Session 12"},
	}
	indexer.On("Index", mock.Anything, "tenant-1", expectedRef, "transcript text").Return(nil)

	body, _ := json.Marshal(IndexRequest{
		Type:       "transcript",
		ID:         "t-1",
		CampaignID: "camp-1",
		Metadata:   map[string]string{"title": "Session 12"},
		Text:       "transcript text",
	})
	req := withTenant(httptest.NewRequest(http.MethodPost, "/knowledge/index", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Index(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	indexer.AssertExpectations(t)
}

func TestKnowledgeHandler_Index_InvalidType(t *testing.T) {
	indexer := new(MockIndexerService)
	handler := NewKnowledgeHandler(indexer, new(MockRetrieverService))

	body := []byte(`{"type":"podcast","id":"p-1","text":"text"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/knowledge/index", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Index(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	indexer.AssertNotCalled(t, "Index", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestKnowledgeHandler_Index_MissingID(t *testing.T) {
	handler := NewKnowledgeHandler(new(MockIndexerService), new(MockRetrieverService))

	body := []byte(`{"type":"transcript","text":"text"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/knowledge/index", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Index(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKnowledgeHandler_Index_EmbeddingFailure(t *testing.T) {
	indexer := new(MockIndexerService)
	handler := NewKnowledgeHandler(indexer, new(MockRetrieverService))

	indexer.On("Index", mock.Anything, "tenant-1", mock.Anything, "text").
		Return(domain.EmbeddingError(assert.AnError))

	body := []byte(`{"type":"insight","id":"i-1","text":"text"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/knowledge/index", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Index(w, req)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestKnowledgeHandler_Remove(t *testing.T) {
	indexer := new(MockIndexerService)
	handler := NewKnowledgeHandler(indexer, new(MockRetrieverService))

	indexer.On("Remove", mock.Anything, "tenant-1", domain.ContentTypeGraphNode, "g-1").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/knowledge/graph_node/g-1", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("type", "graph_node")
	rctx.URLParams.Add("id", "g-1")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	req = withTenant(req, "tenant-1")
	w := httptest.NewRecorder()

	handler.Remove(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	indexer.AssertExpectations(t)
}

func TestKnowledgeHandler_Search(t *testing.T) {
	retriever := new(MockRetrieverService)
	handler := NewKnowledgeHandler(new(MockIndexerService), retriever)

	threshold := float32(0.5)
	results := []*domain.SearchResult{{
		ChunkID:   1,
		Type:      domain.ContentTypeTranscript,
		ContentID: "t-1",
		Content:   "matched text",
		Score:     0.91,
	}}
	retriever.On("Search", mock.Anything, "beta launch", "tenant-1", service.SearchOptions{
		Threshold:    &threshold,
		Limit:        5,
		CampaignID:   "camp-1",
		ContentTypes: []domain.ContentType{domain.ContentTypeTranscript},
	}).Return(results, nil)

	body, _ := json.Marshal(SearchRequest{
		Query:        "beta launch",
		Threshold:    &threshold,
		Limit:        5,
		CampaignID:   "camp-1",
		ContentTypes: []string{"transcript"},
	})
	req := withTenant(httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Results []SearchResultResponse `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "matched text", resp.Data.Results[0].Content)
	assert.InDelta(t, 0.91, resp.Data.Results[0].Score, 0.0001)
	retriever.AssertExpectations(t)
}

func TestKnowledgeHandler_Search_EmptyResults(t *testing.T) {
	retriever := new(MockRetrieverService)
	handler := NewKnowledgeHandler(new(MockIndexerService), retriever)

	retriever.On("Search", mock.Anything, "nothing", "tenant-1", mock.AnythingOfType("service.SearchOptions")).
		Return([]*domain.SearchResult{}, nil)

	body := []byte(`{"query":"nothing"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"results":[]`)
}

func TestKnowledgeHandler_Search_InvalidContentType(t *testing.T) {
	retriever := new(MockRetrieverService)
	handler := NewKnowledgeHandler(new(MockIndexerService), retriever)

	body := []byte(`{"query":"q","content_types":["podcast"]}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	retriever.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
