package services

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

var (
	// ErrPermissionNotFound indicates the requested permission does not exist.
	ErrPermissionNotFound = apperrors.New("PERMISSION_NOT_FOUND", "Permission not found", http.StatusNotFound)
	// ErrPermissionNameTaken indicates another live permission already holds the name.
	ErrPermissionNameTaken = apperrors.New("PERMISSION_NAME_TAKEN", "Permission name is already taken", http.StatusBadRequest)
	// ErrPermissionRouteTaken indicates another live api permission already guards the route.
	ErrPermissionRouteTaken = apperrors.New("PERMISSION_ROUTE_TAKEN", "Route is already guarded by another permission", http.StatusBadRequest)
)

// CreatePermissionInput describes the fields accepted when creating a permission.
type CreatePermissionInput struct {
	Name        string
	Description string
	Type        models.PermissionType
	Path        string
	Method      string
}

// UpdatePermissionInput enumerates mutable permission attributes.
type UpdatePermissionInput struct {
	Name        *string
	Description *string
	Path        *string
	Method      *string
}

// PermissionService manages the permission catalogue. Name uniqueness and route uniqueness
// for api-typed rows are checked here against live rows, so a soft-deleted permission frees
// its name and route for reuse.
type PermissionService struct {
	repo  *store.Repository[models.Permission]
	audit *AuditService
}

// NewPermissionService constructs a PermissionService instance.
func NewPermissionService(db *gorm.DB, audit *AuditService) (*PermissionService, error) {
	if db == nil {
		return nil, errors.New("permission service: db is required")
	}
	repo, err := store.NewRepository[models.Permission](db)
	if err != nil {
		return nil, err
	}
	return &PermissionService{repo: repo, audit: audit}, nil
}

// Create provisions a permission after validating its type and uniqueness.
func (s *PermissionService) Create(ctx context.Context, input CreatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("permission name is required")
	}

	permType := input.Type
	if permType == "" {
		permType = models.PermissionTypeAPI
	}
	if !permType.Valid() {
		return nil, apperrors.NewBadRequest("invalid permission type")
	}

	path := strings.TrimSpace(input.Path)
	method := strings.ToUpper(strings.TrimSpace(input.Method))
	if permType == models.PermissionTypeAPI {
		if path == "" || method == "" {
			return nil, apperrors.NewBadRequest("api permissions require a path and method")
		}
	}

	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}
	if permType == models.PermissionTypeAPI {
		if err := s.ensureRouteFree(ctx, path, method, 0); err != nil {
			return nil, err
		}
	}

	perm := &models.Permission{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
		Type:        permType,
		Path:        path,
		Method:      method,
	}
	if err := s.repo.Create(ctx, perm); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "permission.create", perm.Name, map[string]any{"permission_id": perm.ID})
	return perm, nil
}

// Get returns the permission by identity.
func (s *PermissionService) Get(ctx context.Context, id uint) (*models.Permission, error) {
	perm, err := s.repo.GetByID(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, ErrPermissionNotFound
	}
	return perm, nil
}

// List returns one page of permissions matching the filters.
func (s *PermissionService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.Permission], error) {
	return s.repo.Paginate(ensureContext(ctx), req, filters)
}

// Update applies the partial update, re-validating uniqueness for changed fields.
func (s *PermissionService) Update(ctx context.Context, id uint, input UpdatePermissionInput) (*models.Permission, error) {
	ctx = ensureContext(ctx)

	perm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if perm == nil {
		return nil, ErrPermissionNotFound
	}

	delta := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("permission name cannot be empty")
		}
		if name != perm.Name {
			if err := s.ensureNameFree(ctx, name, perm.ID); err != nil {
				return nil, err
			}
			delta["name"] = name
		}
	}
	if input.Description != nil {
		delta["description"] = strings.TrimSpace(*input.Description)
	}

	path := perm.Path
	method := perm.Method
	if input.Path != nil {
		path = strings.TrimSpace(*input.Path)
	}
	if input.Method != nil {
		method = strings.ToUpper(strings.TrimSpace(*input.Method))
	}
	if path != perm.Path || method != perm.Method {
		if perm.Type == models.PermissionTypeAPI {
			if path == "" || method == "" {
				return nil, apperrors.NewBadRequest("api permissions require a path and method")
			}
			if err := s.ensureRouteFree(ctx, path, method, perm.ID); err != nil {
				return nil, err
			}
		}
		delta["path"] = path
		delta["method"] = method
	}

	if err := s.repo.Update(ctx, perm, delta); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "permission.update", perm.Name, map[string]any{"permission_id": perm.ID})
	return perm, nil
}

// Delete soft deletes the permission. Role bindings survive but grant nothing.
func (s *PermissionService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	perm, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if perm == nil {
		return ErrPermissionNotFound
	}

	if err := s.repo.Delete(ctx, perm); err != nil {
		return err
	}

	s.recordAudit(ctx, "permission.delete", perm.Name, map[string]any{"permission_id": perm.ID})
	return nil
}

func (s *PermissionService) ensureNameFree(ctx context.Context, name string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{"name": name})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrPermissionNameTaken
	}
	return nil
}

func (s *PermissionService) ensureRouteFree(ctx context.Context, path, method string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{
		"type":   string(models.PermissionTypeAPI),
		"path":   path,
		"method": method,
	})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrPermissionRouteTaken
	}
	return nil
}

func (s *PermissionService) recordAudit(ctx context.Context, action, resource string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, AuditEntry{
		Action:   action,
		Resource: resource,
		Result:   "success",
		Metadata: meta,
	})
}
