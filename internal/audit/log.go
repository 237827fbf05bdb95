// Package audit records every registry mutation in the logs_usuario table and
// answers filtered and aggregate queries over it.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adamscao/protocolreg/internal/cache"
	"github.com/adamscao/protocolreg/internal/config"
	"github.com/adamscao/protocolreg/internal/db"
	"github.com/adamscao/protocolreg/internal/db/repository"
	"github.com/adamscao/protocolreg/internal/events"
	"github.com/adamscao/protocolreg/internal/models"
)

// ErrWriteFailed is returned by Run under the atomic policy when the audit row
// could not be written and the mutation was rolled back
var ErrWriteFailed = errors.New("audit write failed")

const (
	statsWindow    = 30 * 24 * time.Hour
	publishTimeout = 5 * time.Second
)

// Entry describes one action to be recorded
type Entry struct {
	Actor    models.Actor
	Action   string
	Table    string
	RecordID int64
	Details  any
	Failed   bool
}

// Options configures a Log
type Options struct {
	Policy       string
	DefaultLimit int
	MaxLimit     int
	Publisher    events.Publisher
	Cache        cache.Cache
	Now          func() time.Time
	Logger       *slog.Logger
}

// Log is the audit log component
type Log struct {
	db        *db.DB
	repo      *repository.AuditRepository
	policy    string
	limit     int
	maxLimit  int
	publisher events.Publisher
	cache     cache.Cache
	now       func() time.Time
	logger    *slog.Logger
}

// New creates an audit log over database
func New(database *db.DB, opts Options) *Log {
	l := &Log{
		db:        database,
		repo:      repository.NewAuditRepository(database),
		policy:    opts.Policy,
		limit:     opts.DefaultLimit,
		maxLimit:  opts.MaxLimit,
		publisher: opts.Publisher,
		cache:     opts.Cache,
		now:       opts.Now,
		logger:    opts.Logger,
	}
	if l.policy == "" {
		l.policy = config.AuditPolicyAtomic
	}
	if l.limit <= 0 {
		l.limit = 100
	}
	if l.maxLimit < l.limit {
		l.maxLimit = l.limit
	}
	if l.publisher == nil {
		l.publisher = events.Nop{}
	}
	if l.cache == nil {
		l.cache = cache.Nop{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	return l
}

// Now returns the current time of the log's clock
func (l *Log) Now() time.Time {
	return l.now().UTC()
}

// Policy returns the configured write policy
func (l *Log) Policy() string {
	return l.policy
}

func (l *Log) build(e Entry) (*models.LogEntry, error) {
	details, err := EncodeDetails(e.Details)
	if err != nil {
		return nil, err
	}

	entry := &models.LogEntry{
		ActorUserID:   e.Actor.ActorID(),
		Action:        e.Action,
		AffectedTable: e.Table,
		Details:       details,
		SourceIP:      e.Actor.SourceIP,
		ClientAgent:   e.Actor.ClientAgent,
		Timestamp:     l.Now(),
		Status:        models.AuditSuccess,
	}
	if e.RecordID != 0 {
		id := e.RecordID
		entry.AffectedRecordID = &id
	}
	if e.Failed {
		entry.Status = models.AuditError
	}
	return entry, nil
}

// Write appends one entry outside of any transaction. Failures are logged and
// never returned.
func (l *Log) Write(ctx context.Context, e Entry) {
	entry, err := l.build(e)
	if err == nil {
		err = l.repo.Create(ctx, entry)
	}
	if err != nil {
		l.logger.ErrorContext(ctx, "audit write failed",
			"action", e.Action, "table", e.Table, "record_id", e.RecordID, "error", err)
		return
	}
	l.committed(ctx, entry)
}

// Run executes a mutation and records the entry it returns. Under the atomic
// policy both share one transaction; under best_effort the mutation commits
// first and the entry is written afterwards with Write semantics.
func (l *Log) Run(ctx context.Context, fn func(tx *sql.Tx) (Entry, error)) error {
	if l.policy == config.AuditPolicyBestEffort {
		var e Entry
		if err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			e, err = fn(tx)
			return err
		}); err != nil {
			return err
		}
		l.Write(ctx, e)
		return nil
	}

	var entry *models.LogEntry
	err := l.db.WithTx(ctx, func(tx *sql.Tx) error {
		e, err := fn(tx)
		if err != nil {
			return err
		}
		entry, err = l.build(e)
		if err == nil {
			err = l.repo.WithTx(tx).Create(ctx, entry)
		}
		if err != nil {
			l.logger.ErrorContext(ctx, "audit write failed, rolling back",
				"action", e.Action, "table", e.Table, "record_id", e.RecordID, "error", err)
			return fmt.Errorf("%w: %v", ErrWriteFailed, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	l.committed(ctx, entry)
	return nil
}

// committed fans a stored entry out to the cache and the event publisher
func (l *Log) committed(ctx context.Context, entry *models.LogEntry) {
	if err := l.cache.Delete(ctx, cache.KeyAuditStats, cache.KeyDashboard); err != nil {
		l.logger.WarnContext(ctx, "cache invalidation failed", "error", err)
	}

	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := l.publisher.Publish(pubCtx, entry); err != nil {
		l.logger.WarnContext(ctx, "audit event publish failed",
			"audit_id", entry.ID, "action", entry.Action, "error", err)
	}
}

// Query returns entries matching filter, newest first. A limit below one uses
// the default; limits above the maximum are capped.
func (l *Log) Query(ctx context.Context, filter models.AuditFilter, limit int) ([]*models.LogEntry, error) {
	if limit < 1 {
		limit = l.limit
	}
	if limit > l.maxLimit {
		limit = l.maxLimit
	}
	return l.repo.Query(ctx, filter, limit)
}

// Aggregate computes counts by action, by actor and by day over the last 30 days
func (l *Log) Aggregate(ctx context.Context) (*models.AuditStats, error) {
	stats := &models.AuditStats{}
	if ok, err := l.cache.Get(ctx, cache.KeyAuditStats, stats); err != nil {
		l.logger.WarnContext(ctx, "cache read failed", "key", cache.KeyAuditStats, "error", err)
	} else if ok {
		return stats, nil
	}

	byAction, err := l.repo.CountByAction(ctx)
	if err != nil {
		return nil, err
	}
	byActor, err := l.repo.CountByActor(ctx)
	if err != nil {
		return nil, err
	}
	byDay, err := l.repo.CountByDay(ctx, l.Now().Add(-statsWindow))
	if err != nil {
		return nil, err
	}

	stats = &models.AuditStats{ByAction: byAction, ByActor: byActor, ByDay: byDay}
	if err := l.cache.Set(ctx, cache.KeyAuditStats, stats); err != nil {
		l.logger.WarnContext(ctx, "cache write failed", "key", cache.KeyAuditStats, "error", err)
	}
	return stats, nil
}
