package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/hearthhq/hearth/internal/clock"
	invitationdomain "github.com/hearthhq/hearth/internal/invitation/domain"
	"github.com/hearthhq/hearth/pkg/db/pagination"
	"go.uber.org/zap"
)

type invitationStub struct {
	mu      sync.Mutex
	sweeps  int
	expired int
	err     error
}

func (s *invitationStub) Create(ctx context.Context, householdID, actingUserID snowflake.ID, req invitationdomain.CreateInviteRequest) (*invitationdomain.InviteResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *invitationStub) Accept(ctx context.Context, token string, acceptingUserID snowflake.ID) (*invitationdomain.AcceptResponse, error) {
	return nil, errors.New("not implemented")
}

func (s *invitationStub) Revoke(ctx context.Context, householdID, actingUserID, invitationID snowflake.ID) (bool, error) {
	return false, errors.New("not implemented")
}

func (s *invitationStub) ListByHousehold(ctx context.Context, householdID, actingUserID snowflake.ID, page pagination.Pagination) ([]invitationdomain.InviteListItem, *pagination.PageInfo, error) {
	return nil, nil, errors.New("not implemented")
}

func (s *invitationStub) ExpireStale(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.sweeps++
	return s.expired, nil
}

func (s *invitationStub) Sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

func newTestScheduler(t *testing.T, stub *invitationStub, cfg Config) *Scheduler {
	t.Helper()

	sched, err := New(Params{
		Log:           zap.NewNop(),
		InvitationSvc: stub,
		Clock:         clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		Config:        cfg,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	return sched
}

func TestRunOnceSweeps(t *testing.T) {
	stub := &invitationStub{expired: 3}
	sched := newTestScheduler(t, stub, Config{})

	if err := sched.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if stub.Sweeps() != 1 {
		t.Fatalf("expected 1 sweep, got %d", stub.Sweeps())
	}
}

func TestRunOncePropagatesError(t *testing.T) {
	wantErr := errors.New("boom")
	sched := newTestScheduler(t, &invitationStub{err: wantErr}, Config{})

	if err := sched.RunOnce(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected sweep error, got %v", err)
	}
}

func TestRunForeverStopsOnCancel(t *testing.T) {
	stub := &invitationStub{}
	sched := newTestScheduler(t, stub, Config{RunInterval: time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sched.RunForever(ctx)
		close(done)
	}()

	// Let a few ticks elapse, then stop.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("scheduler did not stop after cancel")
	}
	if stub.Sweeps() == 0 {
		t.Fatalf("expected at least one sweep")
	}
}

func TestNewValidatesDependencies(t *testing.T) {
	_, err := New(Params{Log: zap.NewNop()})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg.RunInterval != time.Minute || cfg.JobTimeout != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	custom := Config{RunInterval: time.Hour}.withDefaults()
	if custom.RunInterval != time.Hour || custom.JobTimeout != 30*time.Second {
		t.Fatalf("unexpected merge: %+v", custom)
	}
}
