package domain

import (
	"fmt"
	"time"
)

// Document records an uploaded source document whose raw body lives in
// blob storage. Its text is indexed under ContentTypeDocument with the
// document id as the content id.
type Document struct {
	ID         string
	TenantID   string
	Filename   string
	Title      string
	StorageKey string
	SizeBytes  int64
	CreatedAt  time.Time
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}
	if d.ID == "" {
		return fmt.Errorf("document id is required: %w", ErrMissingRequiredField)
	}
	if d.TenantID == "" {
		return ErrMissingTenant
	}
	if d.Filename == "" {
		return fmt.Errorf("document filename is required: %w", ErrMissingRequiredField)
	}
	return nil
}
