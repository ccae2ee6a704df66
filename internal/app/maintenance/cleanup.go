// Package maintenance runs the background purge jobs: enforcing audit retention and
// physically removing rows whose soft-delete marker is older than the retention window.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/palisade-admin/palisade/internal/models"
	"github.com/palisade-admin/palisade/internal/query"
	"github.com/palisade-admin/palisade/internal/store"
	"github.com/palisade-admin/palisade/pkg/logger"
)

const (
	defaultRetentionDays = 30
	defaultSchedule      = "@daily"
)

// Cleaner coordinates background maintenance: audit retention and purging rows that have
// been soft deleted for longer than the retention window.
type Cleaner struct {
	db        *gorm.DB
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int
	schedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for retention comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithRetentionDays adjusts how long marked rows and audit logs are retained.
func WithRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithSchedule overrides the cron expression for the purge job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults.
func NewCleaner(db *gorm.DB, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:        db,
		now:       time.Now,
		retention: defaultRetentionDays,
		schedule:  defaultSchedule,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the purge job with the cron scheduler and launches it.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return nil
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		if err := c.RunOnce(context.Background()); err != nil {
			c.log.Warn("maintenance run failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all purge routines sequentially. Primarily used in tests and during
// graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cutoff := c.now().AddDate(0, 0, -c.retention).UTC()

	var errs error
	errs = multierr.Append(errs, c.purgeAuditLogs(ctx, cutoff))
	errs = multierr.Append(errs, purgeMarked[models.User](ctx, c, cutoff))
	errs = multierr.Append(errs, purgeMarked[models.Role](ctx, c, cutoff))
	errs = multierr.Append(errs, purgeMarked[models.Permission](ctx, c, cutoff))
	errs = multierr.Append(errs, purgeMarked[models.Department](ctx, c, cutoff))
	errs = multierr.Append(errs, purgeMarked[models.Menu](ctx, c, cutoff))
	return errs
}

// purgeAuditLogs hard deletes audit rows older than the cutoff.
func (c *Cleaner) purgeAuditLogs(ctx context.Context, cutoff time.Time) error {
	repo, err := store.NewRepository[models.AuditLog](c.db)
	if err != nil {
		return err
	}

	affected, err := repo.BulkDelete(ctx, store.BulkDeleteOptions{
		Filters: query.Filters{"created_at__lt": cutoff},
		Hard:    true,
	})
	if err != nil {
		return err
	}
	if affected > 0 {
		c.log.Info("purged audit logs", zap.Int64("rows", affected))
	}
	return nil
}

// purgeMarked hard deletes rows of one entity whose soft-delete marker predates the cutoff.
func purgeMarked[T any](ctx context.Context, c *Cleaner, cutoff time.Time) error {
	repo, err := store.NewRepository[T](c.db)
	if err != nil {
		return err
	}

	affected, err := repo.BulkDelete(ctx, store.BulkDeleteOptions{
		Filters: query.Filters{"deleted_at__lt": cutoff},
		Hard:    true,
	})
	if err != nil {
		return err
	}
	if affected > 0 {
		c.log.Info("purged marked rows",
			zap.String("table", repo.Fields().Table()),
			zap.Int64("rows", affected))
	}
	return nil
}
