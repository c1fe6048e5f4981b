package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/entity"
	"github.com/claytonbench/underwriting-61kiqe-sub000/internal/domain/workflow"
)

func newTaskFixture() (*TaskService, *fakeTaskRepo) {
	repo := newFakeTaskRepo()
	return NewTaskService(repo, workflow.LendingTables(), zap.NewNop()), repo
}

func TestTaskService_OnStateEntryCreatesRequiredActions(t *testing.T) {
	svc, repo := newTaskFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppSubmitted)
	require.NoError(t, svc.OnStateEntry(ctx, app, workflow.AppSubmitted))

	tasks, err := repo.ListByEntity(ctx, app.Ref())
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, workflow.TaskReviewRequired, tasks[0].Kind)
	assert.Equal(t, entity.TaskStatusPending, tasks[0].Status)
	assert.Equal(t, workflow.AppSubmitted, tasks[0].State)

	// Due date derives from the state's 24h SLA.
	require.NotNil(t, tasks[0].DueAt)
	assert.WithinDuration(t, time.Now().UTC().Add(24*time.Hour), *tasks[0].DueAt, 5*time.Second)
}

func TestTaskService_OnStateEntryNoActions(t *testing.T) {
	svc, repo := newTaskFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppDraft)
	require.NoError(t, svc.OnStateEntry(ctx, app, workflow.AppDraft))

	tasks, err := repo.ListByEntity(ctx, app.Ref())
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestTaskService_CompleteAndTerminalRejection(t *testing.T) {
	svc, _ := newTaskFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppSubmitted)
	task, err := svc.CreateTask(ctx, app, workflow.TaskReviewRequired, "Review application", "analyst-1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Complete(ctx, task.ID, "analyst-1", "looks complete"))

	got, err := svc.TasksForEntity(ctx, app.Ref())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.TaskStatusCompleted, got[0].Status)
	assert.Equal(t, "analyst-1", got[0].CompletedBy)
	assert.Equal(t, "looks complete", got[0].Notes)

	// Completed tasks reject any further mutation.
	err = svc.Complete(ctx, task.ID, "analyst-2", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrAlreadyTerminal)

	err = svc.Cancel(ctx, task.ID, "analyst-2", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyTerminal)

	err = svc.Reassign(ctx, task.ID, "analyst-3", "lead-1", "")
	assert.ErrorIs(t, err, workflow.ErrAlreadyTerminal)
}

func TestTaskService_CancelAppendsReason(t *testing.T) {
	svc, _ := newTaskFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppSubmitted)
	task, err := svc.CreateTask(ctx, app, workflow.TaskReviewRequired, "Review application", "", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(ctx, task.ID, "lead-1", "application withdrawn"))

	got, err := svc.TasksForEntity(ctx, app.Ref())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, entity.TaskStatusCancelled, got[0].Status)
	assert.Equal(t, "application withdrawn", got[0].Notes)
}

func TestTaskService_Reassign(t *testing.T) {
	svc, _ := newTaskFixture()
	ctx := context.Background()

	app := newTestApplication(workflow.AppSubmitted)
	task, err := svc.CreateTask(ctx, app, workflow.TaskReviewRequired, "Review application", "analyst-1", nil)
	require.NoError(t, err)

	require.NoError(t, svc.Reassign(ctx, task.ID, "analyst-2", "lead-1", "workload balancing"))

	mine, err := svc.TasksByAssignee(ctx, "analyst-2")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	former, err := svc.TasksByAssignee(ctx, "analyst-1")
	require.NoError(t, err)
	assert.Empty(t, former)
}

func TestTaskService_UnknownTask(t *testing.T) {
	svc, _ := newTaskFixture()

	err := svc.Complete(context.Background(), "missing", "analyst-1", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, workflow.ErrNotFound)
}

func TestTaskService_OverdueQueries(t *testing.T) {
	svc, _ := newTaskFixture()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	app := newTestApplication(workflow.AppSubmitted)
	overdue, err := svc.CreateTask(ctx, app, workflow.TaskReviewRequired, "Review", "", &past)
	require.NoError(t, err)
	_, err = svc.CreateTask(ctx, app, workflow.TaskUnderwritingReview, "Underwrite", "", &future)
	require.NoError(t, err)

	got, err := svc.OverdueTasks(ctx, workflow.TypeApplication)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, overdue.ID, got[0].ID)
	assert.True(t, svc.IsOverdue(got[0]))

	// A different workflow type filter matches nothing.
	got, err = svc.OverdueTasks(ctx, workflow.TypeFunding)
	require.NoError(t, err)
	assert.Empty(t, got)
}
