package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/candorhq/tacit/internal/pagination"
	"github.com/candorhq/tacit/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ConversationRepository handles persistence of conversations and their
// messages. Message order is assigned by the messages.seq sequence at
// insert time, never by timestamps.
type ConversationRepository struct {
	pool *pgxpool.Pool
}

func NewConversationRepository(pool *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{pool: pool}
}

func (r *ConversationRepository) Create(ctx context.Context, conv *domain.Conversation) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO conversations (id, tenant_id, user_id, title, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		conv.ID, conv.TenantID, conv.UserID, conv.Title, conv.CreatedAt, conv.UpdatedAt,
	)
	return err
}

func (r *ConversationRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Conversation, error) {
	var conv domain.Conversation
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, user_id, title, created_at, updated_at
		 FROM conversations WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&conv.ID, &conv.TenantID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConversationNotFound
		}
		return nil, err
	}
	return &conv, nil
}

func (r *ConversationRepository) ListByTenantWithCursor(ctx context.Context, tenantID, userID string, cursor *pagination.Cursor, limit int) (*service.ConversationPageResult, error) {
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT id, tenant_id, user_id, title, created_at, updated_at
		FROM conversations
		WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if userID != "" {
		args = append(args, userID)
		query += ` AND user_id = $2`
	}
	if cursor != nil {
		args = append(args, cursor.Timestamp, cursor.LastID)
		query += fmt.Sprintf(" AND (updated_at, id) < ($%d, $%d)", len(args)-1, len(args))
	}
	args = append(args, limit+1)
	query += fmt.Sprintf(" ORDER BY updated_at DESC, id DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []*domain.Conversation
	for rows.Next() {
		var conv domain.Conversation
		if err := rows.Scan(&conv.ID, &conv.TenantID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return nil, err
		}
		items = append(items, &conv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}

	var nextCursor string
	if hasMore && len(items) > 0 {
		lastItem := items[len(items)-1]
		nextCursor = pagination.EncodeCursor(lastItem.ID, lastItem.UpdatedAt)
	}

	return &service.ConversationPageResult{
		Items:      items,
		NextCursor: nextCursor,
		HasMore:    hasMore,
	}, nil
}

// ListMessages returns a conversation's full history in insertion order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// ListRecentMessages returns the newest limit messages in chronological
// order, oldest of the window first.
func (r *ConversationRepository) ListRecentMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, conversation_id, role, content, sources, created_at
		 FROM (
			SELECT id, conversation_id, role, content, sources, created_at, seq
			FROM messages WHERE conversation_id = $1 ORDER BY seq DESC LIMIT $2
		 ) recent ORDER BY seq ASC`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMessageRows(rows)
}

// AppendTurn writes the user and assistant messages of one turn and bumps
// the conversation's updated_at in a single transaction. A non-empty title
// is applied to the conversation, used for the first turn's derived title.
func (r *ConversationRepository) AppendTurn(ctx context.Context, conversationID string, userMsg, assistantMsg *domain.Message, title string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := insertMessage(ctx, tx, userMsg); err != nil {
		return err
	}
	if err := insertMessage(ctx, tx, assistantMsg); err != nil {
		return err
	}

	tag, err := tx.Exec(ctx,
		`UPDATE conversations
		 SET updated_at = $2,
		     title = CASE WHEN $3 <> '' THEN $3 ELSE title END
		 WHERE id = $1`,
		conversationID, assistantMsg.CreatedAt, title,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConversationNotFound
	}

	return tx.Commit(ctx)
}

func insertMessage(ctx context.Context, db dbtx, msg *domain.Message) error {
	if err := domain.ValidateMessage(msg); err != nil {
		return err
	}
	var sources []byte
	if len(msg.Sources) > 0 {
		data, err := json.Marshal(msg.Sources)
		if err != nil {
			return err
		}
		sources = data
	}
	_, err := db.Exec(ctx,
		`INSERT INTO messages (id, conversation_id, role, content, sources, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, sources, msg.CreatedAt,
	)
	return err
}

func scanMessageRows(rows pgx.Rows) ([]domain.Message, error) {
	messages := make([]domain.Message, 0)
	for rows.Next() {
		var msg domain.Message
		var role string
		var sources []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &sources, &msg.CreatedAt); err != nil {
			return nil, err
		}
		msg.Role = domain.MessageRole(role)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &msg.Sources); err != nil {
				return nil, err
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
