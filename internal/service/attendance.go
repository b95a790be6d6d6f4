package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/xid"
)

const checkoutTimeLayout = "15:04"

func (s *Service) CheckIn(ctx context.Context, req domain.CheckInRequest) (domain.AttendanceLog, error) {
	actor, memberID, err := resolveAttendanceMember(ctx, req.MemberID)
	if err != nil {
		return domain.AttendanceLog{}, err
	}
	locationID := strings.TrimSpace(req.LocationID)
	if locationID == "" {
		return domain.AttendanceLog{}, store.InvalidField("locationId", "is required")
	}

	now := s.now().UTC()
	var entry domain.AttendanceLog
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		member, err := tx.LockMember(ctx, actor.OrganizationID, memberID)
		if err != nil {
			return err
		}
		if _, err := tx.GetLocation(ctx, actor.OrganizationID, locationID); err != nil {
			return err
		}

		if member.IsCheckedIn {
			open, err := openSession(ctx, tx, *member)
			if err != nil {
				return err
			}
			if open != nil {
				return fmt.Errorf("%w: since %s", store.ErrAlreadyCheckedIn, open.CheckInTime.Format(time.RFC3339))
			}
			s.logger.Warn("repairing stale check-in flag",
				zap.String("organization_id", actor.OrganizationID),
				zap.String("member_id", member.ID),
			)
			member.ClearCheckIn()
		}

		entry = domain.AttendanceLog{
			ID:                xid.New("att"),
			OrganizationID:    actor.OrganizationID,
			MemberID:          member.ID,
			CheckInTime:       now,
			CheckInLocationID: locationID,
			Notes:             strings.TrimSpace(req.Notes),
		}
		if err := tx.InsertAttendanceLog(ctx, entry); err != nil {
			return err
		}

		member.IsCheckedIn = true
		member.CurrentAttendanceLogID = &entry.ID
		member.CurrentCheckInLocationID = &entry.CheckInLocationID
		member.LastCheckInTime = &now
		if err := tx.UpdateMember(ctx, *member); err != nil {
			return err
		}
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "attendance_check_in", "attendance_log", entry.ID,
			fmt.Sprintf("member=%s,location=%s", member.ID, locationID)))
	})
	if err != nil {
		return domain.AttendanceLog{}, s.fail("check in", err)
	}
	return entry, nil
}

// CheckOut closes the member's open session. A checked-in flag without a
// usable open session is repaired and committed before NotCheckedIn is
// returned.
func (s *Service) CheckOut(ctx context.Context, req domain.CheckOutRequest) (domain.AttendanceLog, error) {
	actor, memberID, err := resolveAttendanceMember(ctx, req.MemberID)
	if err != nil {
		return domain.AttendanceLog{}, err
	}

	now := s.now().UTC()
	repaired := false
	var entry domain.AttendanceLog
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		repaired = false
		entry = domain.AttendanceLog{}
		member, err := tx.LockMember(ctx, actor.OrganizationID, memberID)
		if err != nil {
			return err
		}
		if !member.IsCheckedIn {
			return store.ErrNotCheckedIn
		}

		open, err := openSession(ctx, tx, *member)
		if err != nil {
			return err
		}
		if open == nil {
			s.logger.Warn("repairing stale check-in flag",
				zap.String("organization_id", actor.OrganizationID),
				zap.String("member_id", member.ID),
			)
			member.ClearCheckIn()
			if err := tx.UpdateMember(ctx, *member); err != nil {
				return err
			}
			repaired = true
			return tx.InsertAuditLog(ctx, s.auditEntry(actor, "attendance_repair", "member", member.ID, "cleared stale check-in flag"))
		}

		locationID := open.CheckInLocationID
		if requested := strings.TrimSpace(req.LocationID); requested != "" {
			if _, err := tx.GetLocation(ctx, actor.OrganizationID, requested); err != nil {
				return err
			}
			locationID = requested
		}

		closeSession(open, now, locationID, false, req.Notes)
		if err := tx.UpdateAttendanceLog(ctx, *open); err != nil {
			return err
		}
		member.ClearCheckIn()
		if err := tx.UpdateMember(ctx, *member); err != nil {
			return err
		}
		entry = *open
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "attendance_check_out", "attendance_log", open.ID,
			fmt.Sprintf("member=%s,duration=%d", member.ID, *open.DurationMinutes)))
	})
	if err != nil {
		return domain.AttendanceLog{}, s.fail("check out", err)
	}
	if repaired {
		return domain.AttendanceLog{}, store.ErrNotCheckedIn
	}
	return entry, nil
}

func (s *Service) ListOpenAttendance(ctx context.Context) ([]domain.AttendanceLog, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return nil, err
	}
	logs, err := s.repo.ListOpenAttendance(ctx, actor.OrganizationID, "", 0)
	if err != nil {
		return nil, s.fail("list open attendance", err)
	}
	return logs, nil
}

// ListAttendanceLogs returns session history newest first. Cashiers only see
// their own sessions.
func (s *Service) ListAttendanceLogs(ctx context.Context, memberID string, limit int) ([]domain.AttendanceLog, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	memberID = strings.TrimSpace(memberID)
	if actor.Role != domain.RoleAdmin {
		if memberID != "" && memberID != actor.MemberID {
			return nil, fmt.Errorf("%w: cannot view another member's attendance", store.ErrForbidden)
		}
		memberID = actor.MemberID
	}
	logs, err := s.repo.ListAttendanceLogs(ctx, actor.OrganizationID, memberID, limit)
	if err != nil {
		return nil, s.fail("list attendance logs", err)
	}
	return logs, nil
}

func (s *Service) GetAutoCheckoutSettings(ctx context.Context) (domain.OrganizationSettings, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.OrganizationSettings{}, err
	}
	settings, err := s.repo.GetSettings(ctx, actor.OrganizationID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.OrganizationSettings{OrganizationID: actor.OrganizationID, DefaultTimezone: "UTC"}, nil
	}
	if err != nil {
		return domain.OrganizationSettings{}, s.fail("get settings", err)
	}
	return *settings, nil
}

func (s *Service) UpdateAutoCheckoutSettings(ctx context.Context, req domain.AutoCheckoutSettingsRequest) (domain.OrganizationSettings, error) {
	actor, err := requireAdmin(ctx)
	if err != nil {
		return domain.OrganizationSettings{}, err
	}

	fields := map[string]string{}
	timezone := strings.TrimSpace(req.DefaultTimezone)
	if timezone == "" {
		fields["defaultTimezone"] = "is required"
	} else if _, err := time.LoadLocation(timezone); err != nil {
		fields["defaultTimezone"] = "is not a known IANA timezone"
	}

	var checkoutAt *string
	if raw := valueOr(req.AutoCheckoutTime, ""); raw != "" {
		raw = strings.TrimSpace(raw)
		if !validCheckoutTime(raw) {
			fields["autoCheckoutTime"] = "must be HH:mm"
		}
		checkoutAt = &raw
	} else if req.EnableAutoCheckout {
		fields["autoCheckoutTime"] = "is required when auto checkout is enabled"
	}
	if len(fields) > 0 {
		return domain.OrganizationSettings{}, &store.ValidationError{Message: "invalid settings", Fields: fields}
	}

	settings := domain.OrganizationSettings{
		OrganizationID:     actor.OrganizationID,
		EnableAutoCheckout: req.EnableAutoCheckout,
		AutoCheckoutTime:   checkoutAt,
		DefaultTimezone:    timezone,
		UpdatedAt:          s.now().UTC(),
	}
	err = s.repo.InTx(ctx, func(tx store.Tx) error {
		if id := valueOr(req.DefaultLocationID, ""); id != "" {
			location, err := tx.GetLocation(ctx, actor.OrganizationID, id)
			if err != nil {
				return err
			}
			settings.DefaultLocationID = &location.ID
		}
		if err := tx.SaveSettings(ctx, settings); err != nil {
			return err
		}
		return tx.InsertAuditLog(ctx, s.auditEntry(actor, "settings_update", "organization", actor.OrganizationID,
			fmt.Sprintf("auto_checkout=%t,time=%s,timezone=%s", settings.EnableAutoCheckout, valueOr(settings.AutoCheckoutTime, "-"), settings.DefaultTimezone)))
	})
	if err != nil {
		return domain.OrganizationSettings{}, s.fail("update settings", err)
	}
	return settings, nil
}

// resolveAttendanceMember defaults to the acting member. Acting on someone
// else requires admin.
func resolveAttendanceMember(ctx context.Context, requested string) (domain.Actor, string, error) {
	actor, err := requireActor(ctx)
	if err != nil {
		return domain.Actor{}, "", err
	}
	memberID := strings.TrimSpace(requested)
	if memberID == "" {
		memberID = actor.MemberID
	}
	if memberID == "" {
		return domain.Actor{}, "", store.InvalidField("memberId", "is required")
	}
	if memberID != actor.MemberID && actor.Role != domain.RoleAdmin {
		return domain.Actor{}, "", fmt.Errorf("%w: admin role required to act for another member", store.ErrForbidden)
	}
	return actor, memberID, nil
}

// openSession returns the open log the member points at, or nil when the
// pointer is missing, dangling, closed or owned by someone else.
func openSession(ctx context.Context, tx store.Tx, member domain.Member) (*domain.AttendanceLog, error) {
	if member.CurrentAttendanceLogID == nil || *member.CurrentAttendanceLogID == "" {
		return nil, nil
	}
	entry, err := tx.GetAttendanceLog(ctx, member.OrganizationID, *member.CurrentAttendanceLogID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !entry.IsOpen() || entry.MemberID != member.ID {
		return nil, nil
	}
	return entry, nil
}

func closeSession(entry *domain.AttendanceLog, at time.Time, locationID string, auto bool, notes string) {
	minutes := durationMinutes(entry.CheckInTime, at)
	entry.CheckOutTime = &at
	entry.CheckOutLocationID = &locationID
	entry.DurationMinutes = &minutes
	entry.IsAutoCheckout = auto
	if notes = strings.TrimSpace(notes); notes != "" {
		if entry.Notes != "" {
			entry.Notes += "\n"
		}
		entry.Notes += notes
	}
}

func durationMinutes(in time.Time, out time.Time) int {
	d := out.Sub(in)
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}

func validCheckoutTime(raw string) bool {
	parsed, err := time.Parse(checkoutTimeLayout, raw)
	return err == nil && parsed.Format(checkoutTimeLayout) == raw
}
