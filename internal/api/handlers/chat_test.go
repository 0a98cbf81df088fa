package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockTurnRunner struct {
	mock.Mock
	events []service.TurnEvent
}

func (m *MockTurnRunner) RunTurn(ctx context.Context, in service.TurnInput, emit func(service.TurnEvent) error) error {
	args := m.Called(ctx, in)
	for _, event := range m.events {
		if err := emit(event); err != nil {
			return err
		}
	}
	return args.Error(0)
}

func TestChatHandler_StreamsEventsAsSSE(t *testing.T) {
	runner := &MockTurnRunner{events: []service.TurnEvent{
		{Type: service.TurnEventSources, Sources: []domain.Source{{
			Type:  domain.ContentTypeTranscript,
			ID:    "t-1",
			Title: "Interview",
		}}},
		{Type: service.TurnEventDelta, Delta: "The beta "},
		{Type: service.TurnEventDelta, Delta: "started in March."},
		{Type: service.TurnEventDone, UserMessageID: "m-1", AssistantMessageID: "m-2", Title: "When did the beta start?"},
	}}
	handler := NewChatHandler(runner)

	runner.On("RunTurn", mock.Anything, service.TurnInput{
		TenantID:       "tenant-1",
		ConversationID: "c-1",
		Query:          "When did the beta start?",
		CampaignID:     "camp-1",
	}).Return(nil)

	body := []byte(`{"conversation_id":"c-1","query":"When did the beta start?","campaign_id":"camp-1"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n\n")
	require.Len(t, lines, 4)
	for _, line := range lines {
		assert.True(t, strings.HasPrefix(line, "data: "))
	}
	assert.Contains(t, lines[0], `"type":"sources"`)
	assert.Contains(t, lines[0], `"Interview"`)
	assert.Contains(t, lines[1], `"type":"delta"`)
	assert.Contains(t, lines[3], `"type":"done"`)
	assert.Contains(t, lines[3], `"userMessageId":"m-1"`)
	runner.AssertExpectations(t)
}

func TestChatHandler_PreStreamErrorIsJSON(t *testing.T) {
	runner := &MockTurnRunner{}
	handler := NewChatHandler(runner)

	runner.On("RunTurn", mock.Anything, mock.AnythingOfType("service.TurnInput")).
		Return(domain.ErrTurnInProgress)

	body := []byte(`{"conversation_id":"c-1","query":"question"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "already in progress")
}

func TestChatHandler_MidStreamErrorStaysInStream(t *testing.T) {
	runner := &MockTurnRunner{events: []service.TurnEvent{
		{Type: service.TurnEventSources, Sources: []domain.Source{}},
		{Type: service.TurnEventError, Error: "completion generation failed"},
	}}
	handler := NewChatHandler(runner)

	runner.On("RunTurn", mock.Anything, mock.AnythingOfType("service.TurnInput")).
		Return(domain.CompletionError(assert.AnError))

	body := []byte(`{"conversation_id":"c-1","query":"question"}`)
	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat", bytes.NewReader(body)), "tenant-1")
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"type":"error"`)
	assert.NotContains(t, w.Body.String(), `{"error":`)
}

func TestChatHandler_InvalidBody(t *testing.T) {
	runner := &MockTurnRunner{}
	handler := NewChatHandler(runner)

	req := withTenant(httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader("{not json")), "tenant-1")
	w := httptest.NewRecorder()

	handler.Chat(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	runner.AssertNotCalled(t, "RunTurn", mock.Anything, mock.Anything)
}
