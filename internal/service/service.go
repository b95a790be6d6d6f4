package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/cache"
	"github.com/larrybwosi/multitenancy-sub007/internal/config"
	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

var systemActor = domain.Actor{Username: "system", Role: domain.RoleSystem}

type Options struct {
	// NegativeTotalPolicy is config.NegativeTotalClamp or config.NegativeTotalReject.
	NegativeTotalPolicy string
	SweepPageSize       int
	Now                 func() time.Time
}

type Service struct {
	repo                store.Repository
	locker              cache.Locker
	logger              *zap.Logger
	negativeTotalPolicy string
	sweepPageSize       int
	now                 func() time.Time
}

func New(repo store.Repository, locker cache.Locker, logger *zap.Logger, opts Options) *Service {
	if locker == nil {
		locker = cache.NoopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.NegativeTotalPolicy != config.NegativeTotalReject {
		opts.NegativeTotalPolicy = config.NegativeTotalClamp
	}
	if opts.SweepPageSize < 1 {
		opts.SweepPageSize = 200
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:                repo,
		locker:              locker,
		logger:              logger.Named("service"),
		negativeTotalPolicy: opts.NegativeTotalPolicy,
		sweepPageSize:       opts.SweepPageSize,
		now:                 opts.Now,
	}
}

func requireActor(ctx context.Context) (domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.OrganizationID == "" {
		return domain.Actor{}, fmt.Errorf("%w: authenticated member required", store.ErrForbidden)
	}
	return actor, nil
}

func requireAdmin(ctx context.Context) (domain.Actor, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, err
	}
	if actor.Role != domain.RoleAdmin {
		return domain.Actor{}, fmt.Errorf("%w: admin role required", store.ErrForbidden)
	}
	return actor, nil
}

// fail passes caller-facing errors through and wraps everything else in an
// AppError after logging the original.
func (s *Service) fail(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if store.IsKnown(err) {
		return err
	}
	s.logger.Error("operation failed", zap.String("op", op), zap.Error(err))
	return &store.AppError{Op: op, Err: err}
}

func (s *Service) auditEntry(actor domain.Actor, action string, entityType string, entityID string, detail string) domain.AuditLog {
	return domain.AuditLog{
		ID:             xid.New("audit"),
		OrganizationID: actor.OrganizationID,
		ActorUsername:  actor.Username,
		ActorRole:      actor.Role,
		Action:         action,
		EntityType:     entityType,
		EntityID:       entityID,
		Detail:         detail,
		CreatedAt:      s.now().UTC(),
	}
}

// logAudit records an audit entry outside any transaction. Failures are
// logged and otherwise ignored.
func (s *Service) logAudit(ctx context.Context, actor domain.Actor, action string, entityType string, entityID string, detail string) {
	if err := s.repo.CreateAuditLog(ctx, s.auditEntry(actor, action, entityType, entityID, detail)); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity_type", entityType),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
	}
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.ListAuditLogs(ctx, actor.OrganizationID, limit)
	if err != nil {
		return nil, s.fail("list audit logs", err)
	}
	return logs, nil
}

// tenantLocation returns the tenant's configured timezone, falling back to UTC.
func (s *Service) tenantLocation(ctx context.Context, organizationID string) *time.Location {
	settings, err := s.repo.GetSettings(ctx, organizationID)
	if err != nil || settings.DefaultTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(settings.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func valueOr(ptr *string, fallback string) string {
	if ptr == nil || *ptr == "" {
		return fallback
	}
	return *ptr
}
