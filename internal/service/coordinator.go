package service

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/telemetry"
	"github.com/google/uuid"
)

// TurnEventType discriminates streamed turn events
type TurnEventType string

const (
	TurnEventSources TurnEventType = "sources"
	TurnEventDelta   TurnEventType = "delta"
	TurnEventDone    TurnEventType = "done"
	TurnEventError   TurnEventType = "error"
)

const excerptMaxChars = 220

// TurnEvent is one structured streaming event of a conversation turn.
// Within a turn the order is: one sources event, zero or more delta
// events, then exactly one done or error event.
type TurnEvent struct {
	Type               TurnEventType   `json:"type"`
	Sources            []domain.Source `json:"sources,omitempty"`
	Delta              string          `json:"delta,omitempty"`
	UserMessageID      string          `json:"userMessageId,omitempty"`
	AssistantMessageID string          `json:"assistantMessageId,omitempty"`
	Title              string          `json:"title,omitempty"`
	Error              string          `json:"error,omitempty"`
}

// TurnInput describes one user turn
type TurnInput struct {
	TenantID       string
	ConversationID string
	Query          string
	CampaignID     string
}

// TurnRetriever runs the retrieval step of a turn
type TurnRetriever interface {
	Search(ctx context.Context, query, tenantID string, opts SearchOptions) ([]*domain.SearchResult, error)
}

// TurnCompleter streams the model answer for a composed prompt
type TurnCompleter interface {
	Stream(ctx context.Context, prompt string, fn func(delta string) error) (string, error)
}

// ConversationStore persists conversations and their messages
type ConversationStore interface {
	GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
	// AppendTurn writes the user and assistant messages in one transaction,
	// in that order, and applies the title when non-empty.
	AppendTurn(ctx context.Context, conversationID string, userMsg, assistantMsg *domain.Message, title string) error
}

// Coordinator orchestrates one conversation turn: retrieval, prompt
// composition, streamed generation, and transactional persistence of the
// resulting message pair. A failed or cancelled turn persists nothing.
type Coordinator struct {
	retriever TurnRetriever
	composer  *Composer
	completer TurnCompleter
	store     ConversationStore

	mu     sync.Mutex
	active map[string]struct{}
}

func NewCoordinator(retriever TurnRetriever, composer *Composer, completer TurnCompleter, store ConversationStore) *Coordinator {
	return &Coordinator{
		retriever: retriever,
		composer:  composer,
		completer: completer,
		store:     store,
		active:    make(map[string]struct{}),
	}
}

// RunTurn executes one turn, invoking emit for every streamed event. It
// emits exactly one terminal event (done or error) unless the context is
// cancelled, in which case event forwarding simply stops. The same
// conversation can run at most one turn at a time; a concurrent turn is
// rejected before any event is emitted.
func (c *Coordinator) RunTurn(ctx context.Context, in TurnInput, emit func(TurnEvent) error) error {
	if in.TenantID == "" {
		return domain.ErrMissingTenant
	}
	if in.ConversationID == "" || strings.TrimSpace(in.Query) == "" {
		return domain.ErrMissingRequiredField
	}

	if !c.acquire(in.ConversationID) {
		return domain.ErrTurnInProgress
	}
	defer c.release(in.ConversationID)

	ctx, span := telemetry.StartSpan(ctx, "Coordinator.RunTurn", telemetry.SpanAttributes{
		TenantID:       in.TenantID,
		CampaignID:     in.CampaignID,
		ConversationID: in.ConversationID,
		Operation:      "turn",
	})
	defer span.End()

	conv, err := c.store.GetByID(ctx, in.TenantID, in.ConversationID)
	if err != nil {
		return c.fail(ctx, emit, err)
	}

	history, err := c.store.ListRecentMessages(ctx, conv.ID, historyTurns*2)
	if err != nil {
		return c.fail(ctx, emit, domain.RetrievalError(err))
	}

	var opts SearchOptions
	opts.CampaignID = in.CampaignID
	results, err := c.retriever.Search(ctx, in.Query, in.TenantID, opts)
	if err != nil {
		return c.fail(ctx, emit, err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	sources := projectSources(results)
	if err := emit(TurnEvent{Type: TurnEventSources, Sources: sources}); err != nil {
		return err
	}

	prompt := c.composer.Compose(in.Query, results, history)

	answer, err := c.completer.Stream(ctx, prompt, func(delta string) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return emit(TurnEvent{Type: TurnEventDelta, Delta: delta})
	})
	if err != nil {
		return c.fail(ctx, emit, domain.CompletionError(err))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	now := time.Now().UTC()
	userMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleUser,
		Content:        in.Query,
		CreatedAt:      now,
	}
	assistantMsg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		Role:           domain.RoleAssistant,
		Content:        answer,
		Sources:        sources,
		CreatedAt:      now,
	}

	var title string
	if conv.Title == "" {
		title = domain.DeriveTitle(in.Query)
	}

	if err := c.store.AppendTurn(ctx, conv.ID, userMsg, assistantMsg, title); err != nil {
		return c.fail(ctx, emit, domain.PersistenceError(err))
	}

	return emit(TurnEvent{
		Type:               TurnEventDone,
		UserMessageID:      userMsg.ID,
		AssistantMessageID: assistantMsg.ID,
		Title:              title,
	})
}

// fail emits a single error event unless the turn was cancelled, in which
// case no further events are forwarded.
func (c *Coordinator) fail(ctx context.Context, emit func(TurnEvent) error, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if emitErr := emit(TurnEvent{Type: TurnEventError, Error: err.Error()}); emitErr != nil {
		return emitErr
	}
	return err
}

func (c *Coordinator) acquire(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.active[conversationID]; busy {
		return false
	}
	c.active[conversationID] = struct{}{}
	return true
}

func (c *Coordinator) release(conversationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, conversationID)
}

// projectSources maps search results to their client-facing projection,
// preserving retrieval order so [Source N] citations stay aligned.
func projectSources(results []*domain.SearchResult) []domain.Source {
	sources := make([]domain.Source, 0, len(results))
	for _, r := range results {
		sources = append(sources, domain.Source{
			Type:           r.Type,
			ID:             r.ContentID,
			Title:          r.Title(),
			Excerpt:        makeExcerpt(r.Content),
			RelevanceScore: r.Score,
			Metadata:       r.Metadata,
		})
	}
	return sources
}

func makeExcerpt(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(clean) <= excerptMaxChars {
		return clean
	}
	runes := []rune(clean)
	return string(runes[:excerptMaxChars-3]) + "..."
}
