package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
)

// AuditEntry captures a single audit event to persist.
type AuditEntry struct {
	UserID   *uint
	Action   string
	Resource string
	Result   string
	Metadata map[string]any
}

// AuditService persists and retrieves audit log entries.
type AuditService struct {
	repo *store.Repository[models.AuditLog]
}

// NewAuditService constructs an AuditService using the provided database handle.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	repo, err := store.NewRepository[models.AuditLog](db)
	if err != nil {
		return nil, err
	}
	return &AuditService{repo: repo}, nil
}

// Log stores an audit entry, marshalling metadata into JSON form.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	log := models.AuditLog{
		UserID:   entry.UserID,
		Action:   strings.TrimSpace(entry.Action),
		Resource: strings.TrimSpace(entry.Resource),
		Result:   strings.TrimSpace(entry.Result),
	}

	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		log.Metadata = encoded
	}

	return s.repo.Create(ctx, &log)
}

// List returns one page of audit logs matching the filters, newest first unless the request
// orders otherwise.
func (s *AuditService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.AuditLog], error) {
	ctx = ensureContext(ctx)
	if req.OrderBy == "" {
		req.OrderBy = "-created_at"
	}
	return s.repo.Paginate(ctx, req, filters)
}

// Export returns every audit log matching the filters without pagination.
func (s *AuditService) Export(ctx context.Context, filters query.Filters) ([]models.AuditLog, error) {
	return s.repo.List(ensureContext(ctx), filters)
}
