package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/larrybwosi/multitenancy-sub007/internal/cache"
	"github.com/larrybwosi/multitenancy-sub007/internal/domain"
	"github.com/larrybwosi/multitenancy-sub007/internal/store"
	"github.com/larrybwosi/multitenancy-sub007/internal/store/memory"
)

func TestCheckInAndOut(t *testing.T) {
	svc, repo, clock := newTestService(t, Options{})
	ctx := cashierCtx()

	opened, err := svc.CheckIn(ctx, domain.CheckInRequest{LocationID: memory.DemoMainLocationID, Notes: "morning"})
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}

	if _, err := svc.CheckIn(ctx, domain.CheckInRequest{LocationID: memory.DemoMainLocationID}); !errors.Is(err, store.ErrAlreadyCheckedIn) {
		t.Fatalf("expected already checked in, got %v", err)
	}

	clock.Set(clock.Now().Add(8*time.Hour + 29*time.Minute + 40*time.Second))
	closed, err := svc.CheckOut(ctx, domain.CheckOutRequest{})
	if err != nil {
		t.Fatalf("check out failed: %v", err)
	}
	if closed.ID != opened.ID || closed.DurationMinutes == nil || *closed.DurationMinutes != 510 {
		t.Fatalf("unexpected closed log %+v", closed)
	}
	if closed.CheckOutLocationID == nil || *closed.CheckOutLocationID != memory.DemoMainLocationID || closed.IsAutoCheckout {
		t.Fatalf("expected manual checkout at the check-in location, got %+v", closed)
	}

	member, _ := repo.GetMember(context.Background(), memory.DemoOrganizationID, memory.DemoCashierID)
	if member.IsCheckedIn || member.CurrentAttendanceLogID != nil || member.CurrentCheckInLocationID != nil {
		t.Fatalf("expected member pointers cleared, got %+v", member)
	}
}

func TestCheckOutTwiceLeavesFirstLogUntouched(t *testing.T) {
	svc, repo, clock := newTestService(t, Options{})
	ctx := cashierCtx()

	if _, err := svc.CheckIn(ctx, domain.CheckInRequest{LocationID: memory.DemoMainLocationID}); err != nil {
		t.Fatalf("check in failed: %v", err)
	}
	clock.Set(clock.Now().Add(time.Hour))
	first, err := svc.CheckOut(ctx, domain.CheckOutRequest{})
	if err != nil {
		t.Fatalf("first check out failed: %v", err)
	}

	clock.Set(clock.Now().Add(time.Hour))
	if _, err := svc.CheckOut(ctx, domain.CheckOutRequest{}); !errors.Is(err, store.ErrNotCheckedIn) {
		t.Fatalf("expected not checked in on second call, got %v", err)
	}

	logs, _ := repo.ListAttendanceLogs(context.Background(), memory.DemoOrganizationID, memory.DemoCashierID, 0)
	if len(logs) != 1 {
		t.Fatalf("expected a single log, got %d", len(logs))
	}
	if !logs[0].CheckOutTime.Equal(*first.CheckOutTime) || *logs[0].DurationMinutes != 60 {
		t.Fatalf("first log changed by second checkout: %+v", logs[0])
	}
}

func TestCheckOutRepairsStaleFlag(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	ctx := context.Background()

	dangling := "att-missing"
	err := repo.InTx(ctx, func(tx store.Tx) error {
		member, err := tx.LockMember(ctx, memory.DemoOrganizationID, memory.DemoCashierID)
		if err != nil {
			return err
		}
		member.IsCheckedIn = true
		member.CurrentAttendanceLogID = &dangling
		return tx.UpdateMember(ctx, *member)
	})
	if err != nil {
		t.Fatalf("arrange stale flag: %v", err)
	}

	if _, err := svc.CheckOut(cashierCtx(), domain.CheckOutRequest{}); !errors.Is(err, store.ErrNotCheckedIn) {
		t.Fatalf("expected not checked in, got %v", err)
	}

	member, _ := repo.GetMember(ctx, memory.DemoOrganizationID, memory.DemoCashierID)
	if member.IsCheckedIn || member.CurrentAttendanceLogID != nil {
		t.Fatalf("expected repaired member, got %+v", member)
	}

	if _, err := svc.CheckIn(cashierCtx(), domain.CheckInRequest{LocationID: memory.DemoMainLocationID}); err != nil {
		t.Fatalf("check in after repair failed: %v", err)
	}
}

func TestCheckInStaleFlagProceeds(t *testing.T) {
	svc, repo, _ := newTestService(t, Options{})
	ctx := context.Background()

	err := repo.InTx(ctx, func(tx store.Tx) error {
		member, err := tx.LockMember(ctx, memory.DemoOrganizationID, memory.DemoCashierID)
		if err != nil {
			return err
		}
		member.IsCheckedIn = true
		return tx.UpdateMember(ctx, *member)
	})
	if err != nil {
		t.Fatalf("arrange stale flag: %v", err)
	}

	entry, err := svc.CheckIn(cashierCtx(), domain.CheckInRequest{LocationID: memory.DemoMainLocationID})
	if err != nil {
		t.Fatalf("expected check in to repair and proceed, got %v", err)
	}
	member, _ := repo.GetMember(ctx, memory.DemoOrganizationID, memory.DemoCashierID)
	if member.CurrentAttendanceLogID == nil || *member.CurrentAttendanceLogID != entry.ID {
		t.Fatalf("expected member to point at the new log, got %+v", member)
	}
}

func TestCheckInForAnotherMember(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	_, err := svc.CheckIn(cashierCtx(), domain.CheckInRequest{MemberID: memory.DemoAdminMemberID, LocationID: memory.DemoMainLocationID})
	if !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden for cashier acting on admin, got %v", err)
	}

	entry, err := svc.CheckIn(adminCtx(), domain.CheckInRequest{MemberID: memory.DemoCashierID, LocationID: memory.DemoWarehouseID})
	if err != nil {
		t.Fatalf("admin check in for cashier failed: %v", err)
	}
	if entry.MemberID != memory.DemoCashierID {
		t.Fatalf("expected log for cashier, got %s", entry.MemberID)
	}

	open, err := svc.ListOpenAttendance(adminCtx())
	if err != nil || len(open) != 1 {
		t.Fatalf("expected one open session, got %d err=%v", len(open), err)
	}

	if _, err := svc.CheckIn(adminCtx(), domain.CheckInRequest{MemberID: "mem-ghost", LocationID: memory.DemoMainLocationID}); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for unknown member, got %v", err)
	}
}

func TestListAttendanceLogsScopesCashierToSelf(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})

	if _, err := svc.CheckIn(adminCtx(), domain.CheckInRequest{LocationID: memory.DemoMainLocationID}); err != nil {
		t.Fatalf("admin check in failed: %v", err)
	}
	if _, err := svc.CheckIn(cashierCtx(), domain.CheckInRequest{LocationID: memory.DemoMainLocationID}); err != nil {
		t.Fatalf("cashier check in failed: %v", err)
	}

	own, err := svc.ListAttendanceLogs(cashierCtx(), "", 10)
	if err != nil || len(own) != 1 || own[0].MemberID != memory.DemoCashierID {
		t.Fatalf("expected only the cashier's log, got %+v err=%v", own, err)
	}
	if _, err := svc.ListAttendanceLogs(cashierCtx(), memory.DemoAdminMemberID, 10); !errors.Is(err, store.ErrForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	all, _ := svc.ListAttendanceLogs(adminCtx(), "", 10)
	if len(all) != 2 {
		t.Fatalf("expected admin to see both logs, got %d", len(all))
	}
}

func TestUpdateAutoCheckoutSettingsValidation(t *testing.T) {
	svc, _, _ := newTestService(t, Options{})
	ctx := adminCtx()

	tests := []struct {
		name  string
		req   domain.AutoCheckoutSettingsRequest
		field string
	}{
		{name: "bad timezone", req: domain.AutoCheckoutSettingsRequest{DefaultTimezone: "Mars/Olympus"}, field: "defaultTimezone"},
		{name: "missing time", req: domain.AutoCheckoutSettingsRequest{EnableAutoCheckout: true, DefaultTimezone: "UTC"}, field: "autoCheckoutTime"},
		{name: "unpadded time", req: domain.AutoCheckoutSettingsRequest{EnableAutoCheckout: true, AutoCheckoutTime: ptr("9:00"), DefaultTimezone: "UTC"}, field: "autoCheckoutTime"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.UpdateAutoCheckoutSettings(ctx, tc.req)
			var validation *store.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if _, ok := validation.Fields[tc.field]; !ok {
				t.Fatalf("expected %s in %+v", tc.field, validation.Fields)
			}
		})
	}

	saved, err := svc.UpdateAutoCheckoutSettings(ctx, domain.AutoCheckoutSettingsRequest{
		EnableAutoCheckout: true,
		AutoCheckoutTime:   ptr("21:30"),
		DefaultTimezone:    "Europe/Berlin",
		DefaultLocationID:  ptr(memory.DemoWarehouseID),
	})
	if err != nil {
		t.Fatalf("update settings failed: %v", err)
	}
	got, _ := svc.GetAutoCheckoutSettings(ctx)
	if *got.AutoCheckoutTime != "21:30" || got.DefaultTimezone != "Europe/Berlin" || *got.DefaultLocationID != memory.DemoWarehouseID {
		t.Fatalf("unexpected stored settings %+v", got)
	}
	if !saved.EnableAutoCheckout {
		t.Fatalf("expected auto checkout enabled")
	}
}

var errSerialization = errors.New("serialization failure")

// retryingRepo replays every unit of work once after a failed first attempt,
// the way the postgres store does on a serialization failure. During the
// failed attempt members appear to point at no session.
type retryingRepo struct {
	*memory.Store
}

func (r retryingRepo) InTx(ctx context.Context, fn func(tx store.Tx) error) error {
	_ = r.Store.InTx(ctx, func(tx store.Tx) error {
		if err := fn(staleMemberTx{Tx: tx}); err != nil {
			return err
		}
		return errSerialization
	})
	return r.Store.InTx(ctx, fn)
}

type staleMemberTx struct {
	store.Tx
}

func (t staleMemberTx) LockMember(ctx context.Context, organizationID string, memberID string) (*domain.Member, error) {
	member, err := t.Tx.LockMember(ctx, organizationID, memberID)
	if err != nil {
		return nil, err
	}
	member.CurrentAttendanceLogID = nil
	return member, nil
}

func TestCheckOutRetryAfterRepairAttempt(t *testing.T) {
	repo := memory.NewSeeded(zap.NewNop())
	clock := &testClock{now: time.Date(2024, 5, 15, 9, 30, 0, 0, time.UTC)}
	svc := New(retryingRepo{Store: repo}, cache.NoopLocker{}, zap.NewNop(), Options{Now: clock.Now})
	ctx := cashierCtx()

	opened, err := svc.CheckIn(ctx, domain.CheckInRequest{LocationID: memory.DemoMainLocationID})
	if err != nil {
		t.Fatalf("check in failed: %v", err)
	}

	clock.Set(clock.now.Add(2 * time.Hour))
	closed, err := svc.CheckOut(ctx, domain.CheckOutRequest{})
	if err != nil {
		t.Fatalf("expected retried check out to close the session, got %v", err)
	}
	if closed.ID != opened.ID || closed.CheckOutTime == nil || closed.DurationMinutes == nil || *closed.DurationMinutes != 120 {
		t.Fatalf("unexpected closed session %+v", closed)
	}
}
