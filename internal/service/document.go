package service

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/candorhq/tacit/internal/domain"
	"github.com/google/uuid"
)

// BlobStore persists raw document bodies in object storage
type BlobStore interface {
	PutObject(ctx context.Context, key string, body []byte, contentType string) error
	DeleteObject(ctx context.Context, key string) error
}

// DocumentRepository persists document upload records
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, tenantID, id string) (*domain.Document, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*domain.Document, error)
	Delete(ctx context.Context, tenantID, id string) error
}

// ContentIndexer feeds document text into the knowledge index
type ContentIndexer interface {
	Index(ctx context.Context, tenantID string, ref domain.ContentRef, text string) error
	Remove(ctx context.Context, tenantID string, contentType domain.ContentType, contentID string) error
}

// UploadInput describes an uploaded document to record and index
type UploadInput struct {
	Filename   string
	Title      string
	CampaignID string
	Metadata   map[string]string
	Text       string
}

// DocumentService records uploaded documents, stores their raw bodies in
// blob storage when configured, and indexes their text as knowledge.
type DocumentService struct {
	blobs   BlobStore
	repo    DocumentRepository
	indexer ContentIndexer
}

// NewDocumentService creates a DocumentService. blobs may be nil when no
// object storage is configured; documents are then indexed without a raw
// body copy.
func NewDocumentService(blobs BlobStore, repo DocumentRepository, indexer ContentIndexer) *DocumentService {
	return &DocumentService{
		blobs:   blobs,
		repo:    repo,
		indexer: indexer,
	}
}

// Upload stores and indexes a document. Indexing is idempotent and safe to
// retry; an indexing failure is surfaced with the stored document intact.
func (s *DocumentService) Upload(ctx context.Context, tenantID string, in UploadInput) (*domain.Document, error) {
	if tenantID == "" {
		return nil, domain.ErrMissingTenant
	}
	if in.Filename == "" || in.Text == "" {
		return nil, fmt.Errorf("filename and text are required: %w", domain.ErrMissingRequiredField)
	}

	doc := &domain.Document{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Filename:  in.Filename,
		Title:     in.Title,
		SizeBytes: int64(len(in.Text)),
		CreatedAt: time.Now().UTC(),
	}
	if doc.Title == "" {
		doc.Title = in.Filename
	}

	if s.blobs != nil {
		doc.StorageKey = path.Join(tenantID, "documents", doc.ID, in.Filename)
		if err := s.blobs.PutObject(ctx, doc.StorageKey, []byte(in.Text), "text/plain; charset=utf-8"); err != nil {
			return nil, fmt.Errorf("failed to store document body: %w", err)
		}
	}

	if err := s.repo.Create(ctx, doc); err != nil {
		return nil, err
	}

	metadata := make(map[string]string, len(in.Metadata)+2)
	for k, v := range in.Metadata {
		metadata[k] = v
	}
	metadata["title"] = doc.Title
	metadata["filename"] = doc.Filename

	ref := domain.ContentRef{
		Type:       domain.ContentTypeDocument,
		ID:         doc.ID,
		CampaignID: in.CampaignID,
		Metadata:   metadata,
	}
	if err := s.indexer.Index(ctx, tenantID, ref, in.Text); err != nil {
		return nil, err
	}

	return doc, nil
}

// Get returns a tenant's document record.
func (s *DocumentService) Get(ctx context.Context, tenantID, id string) (*domain.Document, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns a tenant's document records, newest first.
func (s *DocumentService) List(ctx context.Context, tenantID string) ([]*domain.Document, error) {
	return s.repo.ListByTenant(ctx, tenantID)
}

// Delete removes a document's record, index chunks, and stored body.
func (s *DocumentService) Delete(ctx context.Context, tenantID, id string) error {
	doc, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}

	if err := s.indexer.Remove(ctx, tenantID, domain.ContentTypeDocument, doc.ID); err != nil {
		return err
	}
	if s.blobs != nil && doc.StorageKey != "" {
		if err := s.blobs.DeleteObject(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("failed to delete document body: %w", err)
		}
	}
	return s.repo.Delete(ctx, tenantID, doc.ID)
}
