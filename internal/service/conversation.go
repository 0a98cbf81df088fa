package service

import (
	"context"
	"time"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/pagination"
	"github.com/google/uuid"
)

// ConversationPageResult is one page of a tenant's conversations
type ConversationPageResult struct {
	Items      []*domain.Conversation
	NextCursor string
	HasMore    bool
}

// ConversationRepositoryInterface defines the persistence operations the
// conversation service needs
type ConversationRepositoryInterface interface {
	Create(ctx context.Context, conv *domain.Conversation) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error)
	ListByTenantWithCursor(ctx context.Context, tenantID, userID string, cursor *pagination.Cursor, limit int) (*ConversationPageResult, error)
	ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error)
}

// ConversationService handles conversation creation and presentation-layer
// reads. Writes of turn messages belong to the Coordinator.
type ConversationService struct {
	repo ConversationRepositoryInterface
}

func NewConversationService(repo ConversationRepositoryInterface) *ConversationService {
	return &ConversationService{repo: repo}
}

// Create starts a new, untitled conversation for a tenant user.
func (s *ConversationService) Create(ctx context.Context, tenantID, userID string) (*domain.Conversation, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenant
	}
	conv := domain.NewConversation(uuid.NewString(), tenantID, userID, time.Now().UTC())
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Get returns a tenant's conversation.
func (s *ConversationService) Get(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns a cursor-paginated page of a tenant's conversations, most
// recently updated first. userID optionally narrows to one user.
func (s *ConversationService) List(ctx context.Context, tenantID, userID, cursorStr string, limit int) (*ConversationPageResult, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenant
	}
	cursor, err := pagination.DecodeCursor(cursorStr)
	if err != nil {
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeValidation, "invalid cursor", err)
	}
	return s.repo.ListByTenantWithCursor(ctx, tenantID, userID, cursor, limit)
}

// Messages returns a conversation's full message history in creation order.
func (s *ConversationService) Messages(ctx context.Context, tenantID, conversationID string) ([]domain.Message, error) {
	if _, err := s.repo.GetByID(ctx, tenantID, conversationID); err != nil {
		return nil, err
	}
	return s.repo.ListMessages(ctx, conversationID)
}
