package repository

import (
	"context"
	"errors"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DocumentRepository handles persistence of document upload records.
type DocumentRepository struct {
	pool *pgxpool.Pool
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, filename, title, storage_key, size_bytes, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		doc.ID, doc.TenantID, doc.Filename, doc.Title, nullableString(doc.StorageKey), doc.SizeBytes, doc.CreatedAt,
	)
	return err
}

func (r *DocumentRepository) GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	var doc domain.Document
	var storageKey *string
	err := r.pool.QueryRow(ctx,
		`SELECT id, tenant_id, filename, title, storage_key, size_bytes, created_at
		 FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	).Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.Title, &storageKey, &doc.SizeBytes, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	if storageKey != nil {
		doc.StorageKey = *storageKey
	}
	return &doc, nil
}

func (r *DocumentRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, tenant_id, filename, title, storage_key, size_bytes, created_at
		 FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC, id DESC`,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	docs := make([]*domain.Document, 0)
	for rows.Next() {
		var doc domain.Document
		var storageKey *string
		if err := rows.Scan(&doc.ID, &doc.TenantID, &doc.Filename, &doc.Title, &storageKey, &doc.SizeBytes, &doc.CreatedAt); err != nil {
			return nil, err
		}
		if storageKey != nil {
			doc.StorageKey = *storageKey
		}
		docs = append(docs, &doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, tenantID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM documents WHERE tenant_id = $1 AND id = $2`,
		tenantID, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}
