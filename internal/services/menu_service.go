package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/hierarchy"
	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/rbac"
	"github.com/palisade-admin/palisade/internal/store"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

var (
	// ErrMenuNotFound indicates the requested menu does not exist.
	ErrMenuNotFound = apperrors.New("MENU_NOT_FOUND", "Menu not found", http.StatusNotFound)
	// ErrMenuCodeTaken indicates another live menu already holds the code.
	ErrMenuCodeTaken = apperrors.New("MENU_CODE_TAKEN", "Menu code is already taken", http.StatusBadRequest)
	// ErrMenuPathTaken indicates another live menu already holds the route path.
	ErrMenuPathTaken = apperrors.New("MENU_PATH_TAKEN", "Menu path is already taken", http.StatusBadRequest)
	// ErrMenuParentNotDirectory rejects nesting under a leaf node.
	ErrMenuParentNotDirectory = apperrors.New("MENU_PARENT_NOT_DIRECTORY", "Parent menu is not a directory", http.StatusBadRequest)
	// ErrMenuHasChildren rejects deleting a directory that still has children.
	ErrMenuHasChildren = apperrors.New("MENU_HAS_CHILDREN", "Menu still has children", http.StatusBadRequest)
)

// CreateMenuInput describes the fields accepted when creating a menu.
type CreateMenuInput struct {
	Code         string
	Title        string
	IsDirectory  bool
	Path         *string
	Icon         string
	Sort         int
	IsVisible    *bool
	ParentID     *uint
	PermissionID *uint
}

// UpdateMenuInput enumerates mutable menu attributes.
type UpdateMenuInput struct {
	Title        *string
	Path         *string
	Icon         *string
	Sort         *int
	IsVisible    *bool
	PermissionID *uint
	ClearPerm    bool
}

// MenuNode is a menu with its assembled children.
type MenuNode struct {
	models.Menu
	Children []*MenuNode `json:"children,omitempty"`
}

// MenuService manages navigation nodes and derives per-user visible trees through the
// permission resolver.
type MenuService struct {
	db       *gorm.DB
	repo     *store.Repository[models.Menu]
	resolver *rbac.Resolver
	audit    *AuditService
}

// NewMenuService constructs a MenuService instance.
func NewMenuService(db *gorm.DB, resolver *rbac.Resolver, audit *AuditService) (*MenuService, error) {
	if db == nil {
		return nil, errors.New("menu service: db is required")
	}
	repo, err := store.NewRepository[models.Menu](db)
	if err != nil {
		return nil, err
	}
	return &MenuService{db: db, repo: repo, resolver: resolver, audit: audit}, nil
}

// Create provisions a menu after validating code/path uniqueness and the parent rule.
func (s *MenuService) Create(ctx context.Context, input CreateMenuInput) (*models.Menu, error) {
	ctx = ensureContext(ctx)

	code := strings.TrimSpace(input.Code)
	title := strings.TrimSpace(input.Title)
	if code == "" {
		return nil, apperrors.NewBadRequest("menu code is required")
	}
	if title == "" {
		return nil, apperrors.NewBadRequest("menu title is required")
	}

	if err := s.ensureCodeFree(ctx, code, 0); err != nil {
		return nil, err
	}

	var path *string
	if input.Path != nil {
		trimmed := strings.TrimSpace(*input.Path)
		if trimmed != "" {
			if err := s.ensurePathFree(ctx, trimmed, 0); err != nil {
				return nil, err
			}
			path = &trimmed
		}
	}

	if input.ParentID != nil {
		parent, err := s.repo.GetByID(ctx, *input.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, apperrors.NewBadRequest("parent menu does not exist")
		}
		if !parent.IsDirectory {
			return nil, ErrMenuParentNotDirectory
		}
	}

	menu := &models.Menu{
		Code:         code,
		Title:        title,
		IsDirectory:  input.IsDirectory,
		Path:         path,
		Icon:         strings.TrimSpace(input.Icon),
		Sort:         input.Sort,
		IsVisible:    true,
		ParentID:     input.ParentID,
		PermissionID: input.PermissionID,
	}
	if input.IsVisible != nil {
		menu.IsVisible = *input.IsVisible
	}

	if err := s.repo.Create(ctx, menu); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "menu.create", menu.Code, map[string]any{"menu_id": menu.ID})
	return menu, nil
}

// Get returns the menu by identity.
func (s *MenuService) Get(ctx context.Context, id uint) (*models.Menu, error) {
	menu, err := s.repo.GetByID(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, ErrMenuNotFound
	}
	return menu, nil
}

// List returns one page of menus matching the filters.
func (s *MenuService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.Menu], error) {
	return s.repo.Paginate(ensureContext(ctx), req, filters)
}

// Update applies the partial update to the menu.
func (s *MenuService) Update(ctx context.Context, id uint, input UpdateMenuInput) (*models.Menu, error) {
	ctx = ensureContext(ctx)

	menu, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if menu == nil {
		return nil, ErrMenuNotFound
	}

	delta := map[string]any{}
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewBadRequest("menu title cannot be empty")
		}
		delta["title"] = title
	}
	if input.Path != nil {
		trimmed := strings.TrimSpace(*input.Path)
		if trimmed == "" {
			delta["path"] = nil
		} else {
			if menu.Path == nil || *menu.Path != trimmed {
				if err := s.ensurePathFree(ctx, trimmed, menu.ID); err != nil {
					return nil, err
				}
			}
			delta["path"] = trimmed
		}
	}
	if input.Icon != nil {
		delta["icon"] = strings.TrimSpace(*input.Icon)
	}
	if input.Sort != nil {
		delta["sort"] = *input.Sort
	}
	if input.IsVisible != nil {
		delta["is_visible"] = *input.IsVisible
	}
	if input.ClearPerm {
		delta["permission_id"] = nil
	} else if input.PermissionID != nil {
		delta["permission_id"] = *input.PermissionID
	}

	if err := s.repo.Update(ctx, menu, delta); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "menu.update", menu.Code, map[string]any{"menu_id": menu.ID})
	return menu, nil
}

// Delete soft deletes the menu. Directories must be emptied first.
func (s *MenuService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	menu, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if menu == nil {
		return ErrMenuNotFound
	}

	if menu.IsDirectory {
		count, err := s.repo.Count(ctx, query.Filters{"parent_id": menu.ID})
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrMenuHasChildren
		}
	}

	if err := s.repo.Delete(ctx, menu); err != nil {
		return err
	}

	s.recordAudit(ctx, "menu.delete", menu.Code, map[string]any{"menu_id": menu.ID})
	return nil
}

// Tree assembles the full menu forest ordered by sort weight.
func (s *MenuService) Tree(ctx context.Context) ([]*MenuNode, error) {
	ctx = ensureContext(ctx)

	menus, err := s.sortedMenus(ctx)
	if err != nil {
		return nil, err
	}
	return assembleMenus(menus), nil
}

// VisibleTree assembles the menu forest a user is allowed to see: visible nodes whose
// guarding permission, if any, the user holds. Superadmins see everything visible. A
// directory with no surviving children is pruned.
func (s *MenuService) VisibleTree(ctx context.Context, userID uint) ([]*MenuNode, error) {
	ctx = ensureContext(ctx)

	if s.resolver == nil {
		return nil, errors.New("menu service: resolver is required for visible trees")
	}

	menus, err := s.sortedMenus(ctx)
	if err != nil {
		return nil, err
	}

	super, err := s.resolver.IsSuperAdmin(ctx, userID)
	if err != nil {
		return nil, err
	}

	granted := map[uint]struct{}{}
	if !super {
		perms, err := s.resolver.PermissionsOf(ctx, userID, true)
		if err != nil {
			return nil, err
		}
		for _, perm := range perms {
			granted[perm.ID] = struct{}{}
		}
	}

	var allowed []models.Menu
	for _, menu := range menus {
		if !menu.IsVisible {
			continue
		}
		if !super && menu.PermissionID != nil {
			if _, ok := granted[*menu.PermissionID]; !ok {
				continue
			}
		}
		allowed = append(allowed, menu)
	}

	return pruneEmptyDirectories(assembleMenus(allowed)), nil
}

func (s *MenuService) sortedMenus(ctx context.Context) ([]models.Menu, error) {
	var menus []models.Menu
	err := s.db.WithContext(ctx).Order("sort ASC, id ASC").Find(&menus).Error
	if err != nil {
		return nil, fmt.Errorf("menu service: load menus: %w", err)
	}
	return menus, nil
}

func assembleMenus(menus []models.Menu) []*MenuNode {
	return hierarchy.Assemble(menus,
		func(m *models.Menu) uint { return m.ID },
		func(m *models.Menu) *uint { return m.ParentID },
		func(m *models.Menu, children []*MenuNode) *MenuNode {
			return &MenuNode{Menu: *m, Children: children}
		},
	)
}

func pruneEmptyDirectories(nodes []*MenuNode) []*MenuNode {
	var out []*MenuNode
	for _, node := range nodes {
		node.Children = pruneEmptyDirectories(node.Children)
		if node.IsDirectory && len(node.Children) == 0 {
			continue
		}
		out = append(out, node)
	}
	return out
}

func (s *MenuService) ensureCodeFree(ctx context.Context, code string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{"code": code})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrMenuCodeTaken
	}
	return nil
}

func (s *MenuService) ensurePathFree(ctx context.Context, path string, selfID uint) error {
	existing, err := s.repo.FindOne(ctx, query.Filters{"path": path})
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrMenuPathTaken
	}
	return nil
}

func (s *MenuService) recordAudit(ctx context.Context, action, resource string, meta map[string]any) {
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
