package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/candorhq/tacit/internal/api"
	"github.com/candorhq/tacit/internal/api/middleware"
	"github.com/candorhq/tacit/internal/service"
)

type TurnRunner interface {
	RunTurn(ctx context.Context, in service.TurnInput, emit func(service.TurnEvent) error) error
}

// ChatHandler streams conversation turns over Server-Sent Events.
type ChatHandler struct {
	coordinator TurnRunner
}

func NewChatHandler(coordinator TurnRunner) *ChatHandler {
	return &ChatHandler{coordinator: coordinator}
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	CampaignID     string `json:"campaign_id"`
}

// Chat runs one turn and streams its events. Failures before the first
// event are returned as a plain JSON error; once streaming has begun the
// terminal error event is the only error signal the client gets.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.GetTenantID(r.Context())

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.Error(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	streaming := false
	emit := func(event service.TurnEvent) error {
		if !streaming {
			w.Header().Set("Content-Type", "text/event-stream")
			w.Header().Set("Cache-Control", "no-cache")
			w.Header().Set("Connection", "keep-alive")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	err := h.coordinator.RunTurn(r.Context(), service.TurnInput{
		TenantID:       tenantID,
		ConversationID: req.ConversationID,
		Query:          req.Query,
		CampaignID:     req.CampaignID,
	}, emit)
	if err != nil && !streaming {
		api.HandleError(w, err)
	}
}
