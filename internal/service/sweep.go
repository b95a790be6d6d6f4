package service

import (
	"context"
	"errors"
	"fmt"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
)

const (
	sweepLockPrefix = "attendance:auto-checkout:"
	sweepLockTTL    = 90 * time.Second
)

// RunAutoCheckoutSweep closes every open session of each tenant whose
// configured checkout time equals the current local minute. All closures
// in one pass share the same checkout instant. Tenant and member failures
// are logged and counted, never returned.
func (s *Service) RunAutoCheckoutSweep(ctx context.Context) (domain.SweepReport, error) {
	now := s.now().UTC().Truncate(time.Second)
	report := domain.SweepReport{RanAt: now}
	logger := s.logger.With(zap.Time("sweep_at", now))

	acquired, err := s.locker.Acquire(ctx, sweepLockPrefix+now.Format("200601021504"), sweepLockTTL)
	if err != nil {
		// each closure re-reads its log, so an overlapping pass closes nothing twice
		logger.Warn("sweep lock unavailable, continuing without it", zap.Error(err))
	} else if !acquired {
		logger.Debug("sweep already ran this minute on another instance")
		report.Skipped = true
		return report, nil
	}

	after := ""
	for {
		page, err := s.repo.ListAutoCheckoutSettings(ctx, after, s.sweepPageSize)
		if err != nil {
			return report, s.fail("list auto checkout settings", err)
		}

		for _, settings := range page {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.OrganizationsScanned++

			matched, err := checkoutDue(settings, now)
			if err != nil {
				report.OrganizationsSkipped++
				logger.Warn("skipping tenant with invalid auto checkout settings",
					zap.String("organization_id", settings.OrganizationID),
					zap.Error(err),
				)
				continue
			}
			if !matched {
				continue
			}

			report.OrganizationsMatched++
			closed, failed := s.closeTenantSessions(ctx, logger, settings.OrganizationID, now)
			report.SessionsClosed += closed
			report.Failures += failed
		}

		if len(page) < s.sweepPageSize {
			break
		}
		after = page[len(page)-1].OrganizationID
	}

	logger.Info("auto checkout sweep finished",
		zap.Int("organizations_scanned", report.OrganizationsScanned),
		zap.Int("organizations_matched", report.OrganizationsMatched),
		zap.Int("organizations_skipped", report.OrganizationsSkipped),
		zap.Int("sessions_closed", report.SessionsClosed),
		zap.Int("failures", report.Failures),
	)
	return report, nil
}

// RunAutoCheckoutScheduler triggers a sweep every interval until ctx ends.
// The first tick is aligned to the next minute boundary.
func (s *Service) RunAutoCheckoutScheduler(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	wait := time.Until(s.now().Truncate(time.Minute).Add(time.Minute))
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.RunAutoCheckoutSweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("auto checkout sweep failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) closeTenantSessions(ctx context.Context, logger *zap.Logger, organizationID string, now time.Time) (int, int) {
	closed, failed := 0, 0
	after := ""
	for {
		page, err := s.repo.ListOpenAttendance(ctx, organizationID, after, s.sweepPageSize)
		if err != nil {
			logger.Error("failed to list open attendance", zap.String("organization_id", organizationID), zap.Error(err))
			return closed, failed + 1
		}

		for _, entry := range page {
			ok, err := s.autoCheckout(ctx, entry, now)
			switch {
			case err != nil:
				failed++
				logger.Error("auto checkout failed",
					zap.String("organization_id", organizationID),
					zap.String("member_id", entry.MemberID),
					zap.String("attendance_log_id", entry.ID),
					zap.Error(err),
				)
			case ok:
				closed++
			}
		}

		if len(page) < s.sweepPageSize {
			return closed, failed
		}
		after = page[len(page)-1].ID
	}
}

// autoCheckout closes one session in its own transaction. It reports false
// when the session was closed by someone else first.
func (s *Service) autoCheckout(ctx context.Context, candidate domain.AttendanceLog, now time.Time) (bool, error) {
	closed := false
	err := s.repo.InTx(ctx, func(tx store.Tx) error {
		closed = false
		member, err := tx.LockMember(ctx, candidate.OrganizationID, candidate.MemberID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}

		entry, err := tx.GetAttendanceLog(ctx, candidate.OrganizationID, candidate.ID)
		if err != nil {
			return err
		}
		if !entry.IsOpen() {
			return nil
		}

		closeSession(entry, now, entry.CheckInLocationID, true, "")
		if err := tx.UpdateAttendanceLog(ctx, *entry); err != nil {
			return err
		}
		if member != nil && member.CurrentAttendanceLogID != nil && *member.CurrentAttendanceLogID == entry.ID {
			member.ClearCheckIn()
			if err := tx.UpdateMember(ctx, *member); err != nil {
				return err
			}
		}

		actor := systemActor
		actor.OrganizationID = candidate.OrganizationID
		closed = true
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "attendance_auto_checkout", "attendance_log", entry.ID,
			fmt.Sprintf("member=%s,duration=%d", entry.MemberID, *entry.DurationMinutes)))
	})
	if err != nil {
		return false, err
	}
	return closed, nil
}

// checkoutDue compares the tenant's local wall clock at now with its
// configured checkout time by exact HH:mm equality.
func checkoutDue(settings domain.OrganizationSettings, now time.Time) (bool, error) {
	if settings.AutoCheckoutTime == nil || !validCheckoutTime(*settings.AutoCheckoutTime) {
		return false, fmt.Errorf("auto checkout time %q is not HH:mm", valueOr(settings.AutoCheckoutTime, ""))
	}
	if settings.DefaultTimezone == "" {
		return false, errors.New("default timezone is not set")
	}
	loc, err := time.LoadLocation(settings.DefaultTimezone)
	if err != nil {
		return false, fmt.Errorf("load timezone %q: %w", settings.DefaultTimezone, err)
	}
	return now.In(loc).Format(checkoutTimeLayout) == *settings.AutoCheckoutTime, nil
}
