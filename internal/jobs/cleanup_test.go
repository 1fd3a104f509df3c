package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"alcyxob/fitness-booking/internal/service"
)

type fakeSweeper struct {
	calls    int
	err      error
	deadline bool
}

func (f *fakeSweeper) CleanupPastSessions(ctx context.Context) (*service.CleanupResult, error) {
	f.calls++
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return nil, f.err
	}
	return &service.CleanupResult{Date: "2026-10-16", Ran: true}, nil
}

func TestNewCleanupScheduler(t *testing.T) {
	sweeper := &fakeSweeper{}

	c, err := NewCleanupScheduler("@daily", time.UTC, sweeper, 0)
	if err != nil {
		t.Fatalf("NewCleanupScheduler: %v", err)
	}
	if got := len(c.Entries()); got != 1 {
		t.Fatalf("entries = %d, want 1", got)
	}

	if _, err := NewCleanupScheduler("not a schedule", time.UTC, sweeper, 0); err == nil {
		t.Fatal("expected error for invalid spec")
	}
}

func TestCleanupJob(t *testing.T) {
	ok := &fakeSweeper{}
	cleanupJob(ok, time.Minute)()
	if ok.calls != 1 || !ok.deadline {
		t.Errorf("calls = %d deadline = %v, want 1 call with a deadline", ok.calls, ok.deadline)
	}

	// Errors are logged, not propagated.
	failing := &fakeSweeper{err: errors.New("db down")}
	cleanupJob(failing, time.Minute)()
	if failing.calls != 1 {
		t.Errorf("calls = %d, want 1", failing.calls)
	}
}
