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
	"github.com/palisade-admin/palisade/pkg/crypto"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
	"github.com/palisade-admin/palisade/pkg/metrics"
)

var (
	// ErrUserNotFound indicates the requested user does not exist.
	ErrUserNotFound = apperrors.New("USER_NOT_FOUND", "User not found", http.StatusNotFound)
	// ErrUsernameTaken indicates another live user already holds the username.
	ErrUsernameTaken = apperrors.New("USER_USERNAME_TAKEN", "Username is already taken", http.StatusBadRequest)
	// ErrUserInactive rejects authentication for deactivated accounts.
	ErrUserInactive = apperrors.New("USER_INACTIVE", "User account is deactivated", http.StatusForbidden)
)

// CreateUserInput describes the fields accepted when creating a user.
type CreateUserInput struct {
	Username string
	Password string
	IsActive *bool
	RoleIDs  []uint
}

// UpdateUserInput enumerates mutable user attributes.
type UpdateUserInput struct {
	Username *string
	IsActive *bool
}

// UserService manages user lifecycle including activation, password and membership management.
type UserService struct {
	db    *gorm.DB
	repo  *store.Repository[models.User]
	audit *AuditService
}

// NewUserService constructs a UserService instance.
func NewUserService(db *gorm.DB, audit *AuditService) (*UserService, error) {
	if db == nil {
		return nil, errors.New("user service: db is required")
	}
	repo, err := store.NewRepository[models.User](db)
	if err != nil {
		return nil, err
	}
	return &UserService{db: db, repo: repo, audit: audit}, nil
}

// Create provisions a new user with a hashed password.
func (s *UserService) Create(ctx context.Context, input CreateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	username := strings.TrimSpace(input.Username)
	if username == "" {
		return nil, apperrors.NewBadRequest("username is required")
	}
	if strings.TrimSpace(input.Password) == "" {
		return nil, apperrors.NewBadRequest("password is required")
	}

	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return nil, err
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("user service: hash password: %w", err)
	}

	user := &models.User{
		Username: username,
		Password: hashed,
		IsActive: true,
	}
	if input.IsActive != nil {
		user.IsActive = *input.IsActive
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		if ids := normalizeIDs(input.RoleIDs); len(ids) > 0 {
			var roles []models.Role
			if err := tx.Where("id IN ?", ids).Find(&roles).Error; err != nil {
				return err
			}
			if len(roles) != len(ids) {
				return apperrors.NewBadRequest("one or more roles do not exist")
			}
			if err := tx.Model(user).Association("Roles").Replace(roles); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, nil, "user.create", user.Username, "success", map[string]any{"user_id": user.ID})
	return user, nil
}

// Get returns the user with preloaded roles and departments.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.repo.GetByID(ensureContext(ctx), id,
		store.WithPreload("Roles"), store.WithPreload("Departments"))
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// GetByUsername returns the live user with the given username, or ErrUserNotFound.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.repo.FindOne(ensureContext(ctx), query.Filters{"username": strings.TrimSpace(username)})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// List returns one page of users matching the filters.
func (s *UserService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.User], error) {
	return s.repo.Paginate(ensureContext(ctx), req, filters, store.WithPreload("Roles"))
}

// Update applies the partial update to the user.
func (s *UserService) Update(ctx context.Context, id uint, input UpdateUserInput) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	delta := map[string]any{}
	if input.Username != nil {
		username := strings.TrimSpace(*input.Username)
		if username == "" {
			return nil, apperrors.NewBadRequest("username cannot be empty")
		}
		if username != user.Username {
			if err := s.ensureUsernameFree(ctx, username, user.ID); err != nil {
				return nil, err
			}
			delta["username"] = username
		}
	}
	if input.IsActive != nil {
		delta["is_active"] = *input.IsActive
	}

	if err := s.repo.Update(ctx, user, delta); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, nil, "user.update", user.Username, "success", map[string]any{"user_id": user.ID})
	return user, nil
}

// SetPassword replaces the user's password hash.
func (s *UserService) SetPassword(ctx context.Context, id uint, password string) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(password) == "" {
		return apperrors.NewBadRequest("password is required")
	}

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	hashed, err := crypto.HashPassword(password)
	if err != nil {
		return fmt.Errorf("user service: hash password: %w", err)
	}
	if err := s.repo.Update(ctx, user, map[string]any{"password": hashed}); err != nil {
		return err
	}

	s.recordAudit(ctx, &user.ID, "user.set_password", user.Username, "success", nil)
	return nil
}

// Authenticate verifies the username/password pair against a live, active account.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	ctx = ensureContext(ctx)

	user, err := s.repo.FindOne(ctx, query.Filters{"username": strings.TrimSpace(username)})
	if err != nil {
		return nil, err
	}
	if user == nil || !crypto.VerifyPassword(password, user.Password) {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.recordAudit(ctx, nil, "auth.login", username, "denied", nil)
		return nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		s.recordAudit(ctx, &user.ID, "auth.login", username, "denied", map[string]any{"reason": "inactive"})
		return nil, ErrUserInactive
	}

	metrics.AuthAttempts.WithLabelValues("success").Inc()
	s.recordAudit(ctx, &user.ID, "auth.login", username, "success", nil)
	return user, nil
}

// AssignRoles replaces the user's role memberships with the given set.
func (s *UserService) AssignRoles(ctx context.Context, id uint, roleIDs []uint) error {
	ctx = ensureContext(ctx)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	ids := normalizeIDs(roleIDs)
	var roles []models.Role
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&roles).Error; err != nil {
			return fmt.Errorf("user service: load roles: %w", err)
		}
		if len(roles) != len(ids) {
			return apperrors.NewBadRequest("one or more roles do not exist")
		}
	}
	if err := s.db.WithContext(ctx).Model(user).Association("Roles").Replace(roles); err != nil {
		return fmt.Errorf("user service: assign roles: %w", err)
	}

	s.recordAudit(ctx, nil, "user.assign_roles", user.Username, "success", map[string]any{
		"user_id":  user.ID,
		"role_ids": ids,
	})
	return nil
}

// AssignDepartments replaces the user's department memberships with the given set.
func (s *UserService) AssignDepartments(ctx context.Context, id uint, departmentIDs []uint) error {
	ctx = ensureContext(ctx)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	ids := normalizeIDs(departmentIDs)
	var departments []models.Department
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&departments).Error; err != nil {
			return fmt.Errorf("user service: load departments: %w", err)
		}
		if len(departments) != len(ids) {
			return apperrors.NewBadRequest("one or more departments do not exist")
		}
	}
	if err := s.db.WithContext(ctx).Model(user).Association("Departments").Replace(departments); err != nil {
		return fmt.Errorf("user service: assign departments: %w", err)
	}

	s.recordAudit(ctx, nil, "user.assign_departments", user.Username, "success", map[string]any{
		"user_id":        user.ID,
		"department_ids": ids,
	})
	return nil
}

// Delete soft deletes the user. Holders of the superadmin role cannot be deleted while the
// role is still assigned to them.
func (s *UserService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrUserNotFound
	}

	var count int64
	err = s.db.WithContext(ctx).Model(&models.Role{}).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ? AND roles.name = ?", id, models.SuperAdminRoleName).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("user service: check superadmin membership: %w", err)
	}
	if count > 0 {
		return apperrors.NewBadRequest("cannot delete a superadmin user")
	}

	if err := s.repo.Delete(ctx, user); err != nil {
		return err
	}

	s.recordAudit(ctx, nil, "user.delete", user.Username, "success", map[string]any{"user_id": user.ID})
	return nil
}

func (s *UserService) ensureUsernameFree(ctx context.Context, username string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{"username": username})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrUsernameTaken
	}
	return nil
}

func (s *UserService) recordAudit(ctx context.Context, userID *uint, action, resource, result string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Log(ctx, AuditEntry{
		UserID:   userID,
		Action:   action,
		Resource: resource,
		Result:   result,
		Metadata: meta,
	})
}
