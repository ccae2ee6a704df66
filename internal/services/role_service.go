package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

var (
	// ErrRoleNotFound indicates the requested role does not exist.
	ErrRoleNotFound = apperrors.New("ROLE_NOT_FOUND", "Role not found", http.StatusNotFound)
	// ErrRoleNameTaken indicates another live role already holds the name.
	ErrRoleNameTaken = apperrors.New("ROLE_NAME_TAKEN", "Role name is already taken", http.StatusBadRequest)
	// ErrRoleImmutable protects the superadmin role from rename and deletion.
	ErrRoleImmutable = apperrors.New("ROLE_IMMUTABLE", "The superadmin role cannot be modified", http.StatusBadRequest)
)

// CreateRoleInput describes the fields accepted when creating a role.
type CreateRoleInput struct {
	Name          string
	Description   string
	PermissionIDs []uint
}

// UpdateRoleInput enumerates mutable role attributes.
type UpdateRoleInput struct {
	Name        *string
	Description *string
}

// RoleService manages roles and their permission bindings.
type RoleService struct {
	db    *gorm.DB
	repo  *store.Repository[models.Role]
	audit *AuditService
}

// NewRoleService constructs a RoleService instance.
func NewRoleService(db *gorm.DB, audit *AuditService) (*RoleService, error) {
	if db == nil {
		return nil, errors.New("role service: db is required")
	}
	repo, err := store.NewRepository[models.Role](db)
	if err != nil {
		return nil, err
	}
	return &RoleService{db: db, repo: repo, audit: audit}, nil
}

// Create provisions a role and optionally binds an initial permission set.
func (s *RoleService) Create(ctx context.Context, input CreateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("role name is required")
	}
	if name == models.SuperAdminRoleName {
		return nil, ErrRoleNameTaken
	}
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	role := &models.Role{
		Name:        name,
		Description: strings.TrimSpace(input.Description),
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(role).Error; err != nil {
			return err
		}
		if ids := normalizeIDs(input.PermissionIDs); len(ids) > 0 {
			var perms []models.Permission
			if err := tx.Where("id IN ?", ids).Find(&perms).Error; err != nil {
				return err
			}
			if len(perms) != len(ids) {
				return apperrors.NewBadRequest("one or more permissions do not exist")
			}
			if err := tx.Model(role).Association("Permissions").Replace(perms); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "role.create", role.Name, map[string]any{"role_id": role.ID})
	return role, nil
}

// Get returns the role with its permissions preloaded.
func (s *RoleService) Get(ctx context.Context, id uint) (*models.Role, error) {
	role, err := s.repo.GetByID(ensureContext(ctx), id, store.WithPreload("Permissions"))
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}
	return role, nil
}

// List returns one page of roles matching the filters.
func (s *RoleService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.Role], error) {
	return s.repo.Paginate(ensureContext(ctx), req, filters)
}

// Update applies the partial update. The superadmin role cannot be renamed.
func (s *RoleService) Update(ctx context.Context, id uint, input UpdateRoleInput) (*models.Role, error) {
	ctx = ensureContext(ctx)

	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, ErrRoleNotFound
	}

	delta := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, apperrors.NewBadRequest("role name cannot be empty")
		}
		if name != role.Name {
			if role.Name == models.SuperAdminRoleName {
				return nil, ErrRoleImmutable
			}
			if name == models.SuperAdminRoleName {
				return nil, ErrRoleNameTaken
			}
			if err := s.ensureNameFree(ctx, name, role.ID); err != nil {
				return nil, err
			}
			delta["name"] = name
		}
	}
	if input.Description != nil {
		delta["description"] = strings.TrimSpace(*input.Description)
	}

	if err := s.repo.Update(ctx, role, delta); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "role.update", role.Name, map[string]any{"role_id": role.ID})
	return role, nil
}

// SetPermissions replaces the role's permission bindings with the given set. The superadmin
// role needs no bindings and rejects them.
func (s *RoleService) SetPermissions(ctx context.Context, id uint, permissionIDs []uint) error {
	ctx = ensureContext(ctx)

	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}
	if role.Name == models.SuperAdminRoleName {
		return ErrRoleImmutable
	}

	ids := normalizeIDs(permissionIDs)
	var perms []models.Permission
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&perms).Error; err != nil {
			return fmt.Errorf("role service: load permissions: %w", err)
		}
		if len(perms) != len(ids) {
			return apperrors.NewBadRequest("one or more permissions do not exist")
		}
	}
	if err := s.db.WithContext(ctx).Model(role).Association("Permissions").Replace(perms); err != nil {
		return fmt.Errorf("role service: set permissions: %w", err)
	}

	s.recordAudit(ctx, "role.set_permissions", role.Name, map[string]any{
		"role_id":        role.ID,
		"permission_ids": ids,
	})
	return nil
}

// Delete soft deletes the role. Membership rows survive but grant nothing, because permission
// resolution joins through live roles only.
func (s *RoleService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	role, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if role == nil {
		return ErrRoleNotFound
	}
	if role.Name == models.SuperAdminRoleName {
		return ErrRoleImmutable
	}

	if err := s.repo.Delete(ctx, role); err != nil {
		return err
	}

	s.recordAudit(ctx, "role.delete", role.Name, map[string]any{"role_id": role.ID})
	return nil
}

func (s *RoleService) ensureNameFree(ctx context.Context, name string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{"name": name})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrRoleNameTaken
	}
	return nil
}

func (s *RoleService) recordAudit(ctx context.Context, action, resource string, meta map[string]any) {
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
