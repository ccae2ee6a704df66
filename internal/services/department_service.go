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
	"github.com/palisade-admin/palisade/internal/store"
	apperrors "github.com/palisade-admin/palisade/pkg/errors"
)

var (
	// ErrDepartmentNotFound indicates the requested department does not exist.
	ErrDepartmentNotFound = apperrors.New("DEPARTMENT_NOT_FOUND", "Department not found", http.StatusNotFound)
)

// CreateDepartmentInput describes the fields accepted when creating a department.
type CreateDepartmentInput struct {
	Name     string
	ParentID *uint
}

// DepartmentNode is a department with its assembled children.
type DepartmentNode struct {
	models.Department
	Children []*DepartmentNode `json:"children,omitempty"`
}

// DepartmentService manages the organizational tree. Each department materialises its full
// ancestor chain in Path at creation time; the path is immutable, so subtree queries are a
// single prefix match and tree assembly never recurses into the database.
type DepartmentService struct {
	db    *gorm.DB
	repo  *store.Repository[models.Department]
	audit *AuditService
}

// NewDepartmentService constructs a DepartmentService instance.
func NewDepartmentService(db *gorm.DB, audit *AuditService) (*DepartmentService, error) {
	if db == nil {
		return nil, errors.New("department service: db is required")
	}
	repo, err := store.NewRepository[models.Department](db)
	if err != nil {
		return nil, err
	}
	return &DepartmentService{db: db, repo: repo, audit: audit}, nil
}

// Create provisions a department and materialises its path. The row is created first so the
// database assigns its identity, then the path is written in the same transaction.
func (s *DepartmentService) Create(ctx context.Context, input CreateDepartmentInput) (*models.Department, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.NewBadRequest("department name is required")
	}

	dept := &models.Department{Name: name, ParentID: input.ParentID}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		parentPath := "/"
		if input.ParentID != nil {
			var parent models.Department
			err := tx.First(&parent, *input.ParentID).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NewBadRequest("parent department does not exist")
			}
			if err != nil {
				return err
			}
			parentPath = parent.Path
		}

		if err := tx.Create(dept).Error; err != nil {
			return err
		}

		dept.Path = fmt.Sprintf("%s%d/", parentPath, dept.ID)
		return tx.Model(dept).Update("path", dept.Path).Error
	})
	if err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "department.create", dept.Name, map[string]any{
		"department_id": dept.ID,
		"path":          dept.Path,
	})
	return dept, nil
}

// Get returns the department by identity.
func (s *DepartmentService) Get(ctx context.Context, id uint) (*models.Department, error) {
	dept, err := s.repo.GetByID(ensureContext(ctx), id)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		return nil, ErrDepartmentNotFound
	}
	return dept, nil
}

// List returns one page of departments matching the filters.
func (s *DepartmentService) List(ctx context.Context, req store.PageRequest, filters query.Filters) (*store.Page[models.Department], error) {
	return s.repo.Paginate(ensureContext(ctx), req, filters)
}

// Rename changes the department's name. Re-parenting is not supported: the materialized path
// is written once and never moves.
func (s *DepartmentService) Rename(ctx context.Context, id uint, name string) (*models.Department, error) {
	ctx = ensureContext(ctx)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.NewBadRequest("department name is required")
	}

	dept, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		return nil, ErrDepartmentNotFound
	}

	if err := s.repo.Update(ctx, dept, map[string]any{"name": name}); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, "department.rename", dept.Name, map[string]any{"department_id": dept.ID})
	return dept, nil
}

// Subtree returns the department and all its descendants, shallowest first.
func (s *DepartmentService) Subtree(ctx context.Context, id uint) ([]models.Department, error) {
	ctx = ensureContext(ctx)

	dept, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dept == nil {
		return nil, ErrDepartmentNotFound
	}

	var depts []models.Department
	err = s.db.WithContext(ctx).
		Where("path LIKE ?", dept.Path+"%").
		Order("path ASC").
		Find(&depts).Error
	if err != nil {
		return nil, fmt.Errorf("department service: load subtree: %w", err)
	}
	return depts, nil
}

// Tree assembles the full department forest in memory from one flat query.
func (s *DepartmentService) Tree(ctx context.Context) ([]*DepartmentNode, error) {
	ctx = ensureContext(ctx)

	var depts []models.Department
	err := s.db.WithContext(ctx).Order("path ASC").Find(&depts).Error
	if err != nil {
		return nil, fmt.Errorf("department service: load departments: %w", err)
	}

	nodes := hierarchy.Assemble(depts,
		func(d *models.Department) uint { return d.ID },
		func(d *models.Department) *uint { return d.ParentID },
		func(d *models.Department, children []*DepartmentNode) *DepartmentNode {
			return &DepartmentNode{Department: *d, Children: children}
		},
	)
	return nodes, nil
}

// Delete soft deletes the department and its whole subtree in one pass, using the path
// prefix to select descendants.
func (s *DepartmentService) Delete(ctx context.Context, id uint) error {
	ctx = ensureContext(ctx)

	dept, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if dept == nil {
		return ErrDepartmentNotFound
	}

	affected, err := s.repo.BulkDelete(ctx, store.BulkDeleteOptions{
		Filters: query.Filters{"path__startswith": dept.Path},
	})
	if err != nil {
		return err
	}

	s.recordAudit(ctx, "department.delete", dept.Name, map[string]any{
		"department_id": dept.ID,
		"affected":      affected,
	})
	return nil
}

func (s *DepartmentService) recordAudit(ctx context.Context, action, resource string, meta map[string]any) {
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
