package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/application/port"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

func newSchedulerFixture() (*SchedulerService, *fakeScheduleRepo, *fakeEntityStore, *recordingExecutor) {
	repo := newFakeScheduleRepo()
	store := newFakeEntityStore()

	registry := port.NewRegistry()
	registry.Register(workflow.TypeApplication, store)

	svc := NewSchedulerService(repo, registry, zap.NewNop())
	executor := &recordingExecutor{apply: true}
	svc.SetExecutor(executor)
	return svc, repo, store, executor
}

func TestSchedulerService_ProcessDueExecutesOnce(t *testing.T) {
	svc, repo, store, executor := newSchedulerFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	app := newTestApplication(workflow.AppApproved)
	store.add(app)

	_, err := svc.ScheduleAt(ctx, app, workflow.AppCommitmentSent, "commitment letter dispatch", now.Add(-time.Minute), false)
	require.NoError(t, err)

	executed, err := svc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, workflow.AppCommitmentSent, app.CurrentState)
	assert.Empty(t, repo.pending())

	// A second poll finds nothing: executed records are filtered out.
	executed, err = svc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)
	assert.Len(t, executor.executed, 1)
}

func TestSchedulerService_NotYetDueLeftAlone(t *testing.T) {
	svc, repo, store, _ := newSchedulerFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	app := newTestApplication(workflow.AppApproved)
	store.add(app)

	_, err := svc.Schedule(ctx, app, workflow.AppCommitmentSent, "commitment letter dispatch", time.Hour)
	require.NoError(t, err)

	executed, err := svc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)
	assert.Len(t, repo.pending(), 1)

	// The hour passes; the transition fires.
	executed, err = svc.ProcessDue(ctx, now.Add(61*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Equal(t, workflow.AppCommitmentSent, app.CurrentState)
}

func TestSchedulerService_OrphanedScheduleRetired(t *testing.T) {
	svc, repo, _, executor := newSchedulerFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	// Entity never stored: the schedule is orphaned.
	app := newTestApplication(workflow.AppApproved)
	_, err := svc.ScheduleAt(ctx, app, workflow.AppCommitmentSent, "commitment letter dispatch", now.Add(-time.Minute), false)
	require.NoError(t, err)

	executed, err := svc.ProcessDue(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, 0, executed)
	assert.Empty(t, executor.executed)
	assert.Empty(t, repo.pending(), "orphaned schedule must be retired, not retried")
}

func TestSchedulerService_FailureLeavesPendingForRetry(t *testing.T) {
	svc, repo, store, executor := newSchedulerFixture()
	ctx := context.Background()
	now := time.Now().UTC()

	app := newTestApplication(workflow.AppApproved)
	store.add(app)

	_, err := svc.ScheduleAt(ctx, app, workflow.AppCommitmentSent, "commitment letter dispatch", now.Add(-time.Minute), false)
	require.NoError(t, err)

	executor.err = errors.New("store unavailable")
	executed, err := svc.ProcessDue(ctx, now)
	require.NoError(t, err, "one failing record must not fail the batch")
	assert.Equal(t, 0, executed)
	require.Len(t, repo.pending(), 1)

	// The fault clears; the next poll succeeds.
	executor.err = nil
	executed, err = svc.ProcessDue(ctx, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, executed)
	assert.Empty(t, repo.pending())
}

func TestSchedulerService_RecurringRearmsNextMonth(t *testing.T) {
	svc, repo, store, _ := newSchedulerFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppApproved)
	store.add(app)

	fireAt := time.Date(2026, time.March, 15, 9, 0, 0, 0, time.UTC)
	_, err := svc.ScheduleAt(ctx, app, workflow.AppCommitmentSent, "monthly statement", fireAt, true)
	require.NoError(t, err)

	executed, err := svc.ProcessDue(ctx, fireAt.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	pending := repo.pending()
	require.Len(t, pending, 1, "recurring schedule must re-arm")
	assert.True(t, pending[0].Recurring)
	assert.Equal(t, time.Date(2026, time.April, 15, 9, 0, 0, 0, time.UTC), pending[0].ScheduledFor)
}

func TestSchedulerService_RequiresExecutor(t *testing.T) {
	repo := newFakeScheduleRepo()
	svc := NewSchedulerService(repo, port.NewRegistry(), zap.NewNop())

	_, err := svc.ProcessDue(context.Background(), time.Now().UTC())
	require.Error(t, err)
}

func TestNextMonth_ClampsDay(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			"mid month",
			time.Date(2026, time.March, 15, 9, 30, 0, 0, time.UTC),
			time.Date(2026, time.April, 15, 9, 30, 0, 0, time.UTC),
		},
		{
			"jan 31 clamps to feb 28",
			time.Date(2026, time.January, 31, 12, 0, 0, 0, time.UTC),
			time.Date(2026, time.February, 28, 12, 0, 0, 0, time.UTC),
		},
		{
			"jan 31 leap year clamps to feb 29",
			time.Date(2028, time.January, 31, 12, 0, 0, 0, time.UTC),
			time.Date(2028, time.February, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			"march 31 clamps to april 30",
			time.Date(2026, time.March, 31, 0, 0, 0, 0, time.UTC),
			time.Date(2026, time.April, 30, 0, 0, 0, 0, time.UTC),
		},
		{
			"december rolls into january",
			time.Date(2026, time.December, 10, 8, 0, 0, 0, time.UTC),
			time.Date(2027, time.January, 10, 8, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nextMonth(tt.in))
		})
	}
}
