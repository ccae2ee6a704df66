package rbac

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/pkg/logger"
	"github.com/palisade-admin/palisade/pkg/metrics"
)

const (
	// DefaultCacheSize bounds each cache; the stalest entries are evicted first.
	DefaultCacheSize = 1024
	// DefaultCacheTTL is used when no TTL is configured. Deployments should align it with
	// the access-token lifetime so stale grants never outlive a token.
	DefaultCacheTTL = 15 * time.Minute
)

// Config bundles resolver construction options.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Resolver derives a principal's effective roles and permissions from the role-membership
// relation and answers the authorization predicates used by the request boundary.
//
// Both caches expire by TTL only; nothing invalidates them when roles or permissions mutate,
// so a grant or revocation takes up to one TTL window to become visible for principals that
// were already resolved. Concurrent miss-and-fill races on the same key are harmless: both
// writers store the correct answer for a near-identical instant.
type Resolver struct {
	db    *gorm.DB
	log   *zap.Logger
	roles *expirable.LRU[uint, []models.Role]
	perms *expirable.LRU[uint, []models.Permission]
}

// NewResolver constructs a Resolver with its two time-bounded caches.
func NewResolver(db *gorm.DB, cfg Config) (*Resolver, error) {
	if db == nil {
		return nil, errors.New("rbac: db is required")
	}

	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return &Resolver{
		db:    db,
		log:   logger.WithModule("rbac"),
		roles: expirable.NewLRU[uint, []models.Role](size, nil, ttl),
		perms: expirable.NewLRU[uint, []models.Permission](size, nil, ttl),
	}, nil
}

// RolesOf returns the principal's live roles, serving from cache when a valid entry exists.
func (r *Resolver) RolesOf(ctx context.Context, userID uint, useCache bool) ([]models.Role, error) {
	if useCache {
		if cached, ok := r.roles.Get(userID); ok {
			metrics.ResolverCacheEvents.WithLabelValues("roles", "hit").Inc()
			return cached, nil
		}
		metrics.ResolverCacheEvents.WithLabelValues("roles", "miss").Inc()
	}

	var roles []models.Role
	err := r.db.WithContext(ctx).
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Find(&roles).Error
	if err != nil {
		return nil, fmt.Errorf("rbac: load roles for user %d: %w", userID, err)
	}

	if useCache {
		r.roles.Add(userID, roles)
		r.log.Debug("cached roles", zap.Uint("user_id", userID), zap.Int("count", len(roles)))
	}
	return roles, nil
}

// IsSuperAdmin reports whether any of the principal's roles is the reserved superadmin role.
func (r *Resolver) IsSuperAdmin(ctx context.Context, userID uint) (bool, error) {
	roles, err := r.RolesOf(ctx, userID, true)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role.Name == models.SuperAdminRoleName {
			return true, nil
		}
	}
	return false, nil
}

// PermissionsOf returns the permissions reachable through the principal's live role
// memberships. Permissions are never resolved through a direct principal link: revoking a
// role must revoke everything it granted, so the role relation stays in the join path.
func (r *Resolver) PermissionsOf(ctx context.Context, userID uint, useCache bool) ([]models.Permission, error) {
	if useCache {
		if cached, ok := r.perms.Get(userID); ok {
			metrics.ResolverCacheEvents.WithLabelValues("permissions", "hit").Inc()
			return cached, nil
		}
		metrics.ResolverCacheEvents.WithLabelValues("permissions", "miss").Inc()
	}

	var perms []models.Permission
	err := r.db.WithContext(ctx).
		Distinct("permissions.*").
		Joins("JOIN role_permissions ON role_permissions.permission_id = permissions.id").
		Joins("JOIN roles ON roles.id = role_permissions.role_id AND roles.deleted_at IS NULL").
		Joins("JOIN user_roles ON user_roles.role_id = roles.id").
		Where("user_roles.user_id = ?", userID).
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("rbac: load permissions for user %d: %w", userID, err)
	}

	if useCache {
		r.perms.Add(userID, perms)
		r.log.Debug("cached permissions", zap.Uint("user_id", userID), zap.Int("count", len(perms)))
	}
	return perms, nil
}

// AuthorizeRoute reports whether the principal may call the route/verb pair. Superadmins
// pass unconditionally; everyone else needs an api-typed permission whose path and method
// match exactly (case-sensitive).
func (r *Resolver) AuthorizeRoute(ctx context.Context, userID uint, path, method string) (bool, error) {
	super, err := r.IsSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	perms, err := r.PermissionsOf(ctx, userID, true)
	if err != nil {
		return false, err
	}
	for _, perm := range perms {
		if perm.Type == models.PermissionTypeAPI && perm.Path == path && perm.Method == method {
			return true, nil
		}
	}
	return false, nil
}

// AuthorizeName reports whether the principal holds the named permission. Superadmins pass
// unconditionally.
func (r *Resolver) AuthorizeName(ctx context.Context, userID uint, name string) (bool, error) {
	super, err := r.IsSuperAdmin(ctx, userID)
	if err != nil {
		return false, err
	}
	if super {
		return true, nil
	}

	perms, err := r.PermissionsOf(ctx, userID, true)
	if err != nil {
		return false, err
	}
	for _, perm := range perms {
		if perm.Name == name {
			return true, nil
		}
	}
	return false, nil
}
