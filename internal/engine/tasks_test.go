package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandflow-io/brandflow/pkg/brandflow/domain"
)

func TestCreateTask(t *testing.T) {
	eng, clock := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()

	var created []string
	eng.On(domain.EventTaskCreated, func(evt domain.WorkflowEvent) {
		created = append(created, evt.Data["taskId"].(string))
	})

	due := clock.Now().Add(48 * time.Hour)
	taskID, err := eng.CreateTask(ctx, id, TaskSpec{
		Name:             "Prepare samples",
		Assignee:         "u-designer",
		DueAt:            &due,
		ExpectedDuration: 4 * time.Hour,
	})
	require.NoError(t, err)

	tasks, err := eng.ListTasks(id)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, taskID, tasks[0].ID)
	assert.Equal(t, domain.TaskPending, tasks[0].Status)
	assert.Equal(t, "u-designer", tasks[0].Assignee)
	assert.Equal(t, 4*time.Hour, tasks[0].ExpectedDuration)
	assert.Equal(t, []string{taskID}, created)
}

func TestCreateTaskUnknownInstance(t *testing.T) {
	eng, _ := newTestEngine(t)
	_, err := eng.CreateTask(context.Background(), "nope", TaskSpec{Name: "x"})

	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "instance", nf.Kind)
}

func TestStartTask(t *testing.T) {
	eng, clock := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()
	taskID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Review artwork", Assignee: clerk.ID})
	require.NoError(t, err)

	clock.Advance(10 * time.Minute)
	require.NoError(t, eng.StartTask(ctx, id, taskID, clerk))

	tasks, _ := eng.ListTasks(id)
	assert.Equal(t, domain.TaskInProgress, tasks[0].Status)
	require.NotNil(t, tasks[0].StartedAt)
	assert.Equal(t, clock.Now(), *tasks[0].StartedAt)
}

func TestCompleteTaskExactlyOnce(t *testing.T) {
	eng, clock := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()
	taskID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Review artwork", Assignee: clerk.ID})
	require.NoError(t, err)

	clock.Advance(90 * time.Minute)
	require.NoError(t, eng.CompleteTask(ctx, id, taskID, clerk, map[string]any{"verdict": "ok"}))

	tasks, _ := eng.ListTasks(id)
	require.NotNil(t, tasks[0].CompletedAt)
	firstCompleted := *tasks[0].CompletedAt
	assert.Equal(t, 90*time.Minute, tasks[0].ActualDuration)
	assert.Equal(t, "ok", tasks[0].Result["verdict"])

	// The second completion fails and changes nothing.
	clock.Advance(time.Hour)
	err = eng.CompleteTask(ctx, id, taskID, manager, nil)
	var done *AlreadyCompletedError
	require.ErrorAs(t, err, &done)
	assert.Equal(t, "task", done.Kind)

	tasks, _ = eng.ListTasks(id)
	assert.Equal(t, firstCompleted, *tasks[0].CompletedAt)
	assert.Equal(t, 90*time.Minute, tasks[0].ActualDuration)
}

func TestCompleteTaskDoesNotMoveStateMachine(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()
	taskID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Collect documents"})
	require.NoError(t, err)

	require.NoError(t, eng.CompleteTask(ctx, id, taskID, clerk, nil))

	inst, _ := eng.GetWorkflow(id)
	assert.Equal(t, "draft", inst.CurrentState)
	assert.Equal(t, domain.StatusRunning, inst.Status)
}

func TestCancelTask(t *testing.T) {
	eng, _ := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()
	taskID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Obsolete step"})
	require.NoError(t, err)

	require.NoError(t, eng.CancelTask(ctx, id, taskID, manager))
	tasks, _ := eng.ListTasks(id)
	assert.Equal(t, domain.TaskCancelled, tasks[0].Status)

	var done *AlreadyCompletedError
	require.ErrorAs(t, eng.CompleteTask(ctx, id, taskID, clerk, nil), &done)
	require.ErrorAs(t, eng.StartTask(ctx, id, taskID, clerk), &done)
}

func TestSweepMarksOverdueTasks(t *testing.T) {
	eng, clock := newTestEngine(t)
	id := startApproval(t, eng, nil)
	ctx := context.Background()

	due := clock.Now().Add(time.Hour)
	lateID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Late task", DueAt: &due})
	require.NoError(t, err)
	doneID, err := eng.CreateTask(ctx, id, TaskSpec{Name: "Done task", DueAt: &due})
	require.NoError(t, err)
	openEnded, err := eng.CreateTask(ctx, id, TaskSpec{Name: "No due date"})
	require.NoError(t, err)
	require.NoError(t, eng.CompleteTask(ctx, id, doneID, clerk, nil))

	var overdue []string
	eng.On(domain.EventTaskOverdue, func(evt domain.WorkflowEvent) {
		overdue = append(overdue, evt.Data["taskId"].(string))
	})

	clock.Advance(2 * time.Hour)
	eng.RunEscalationSweep(ctx)

	tasks, _ := eng.ListTasks(id)
	byID := map[string]domain.TaskStatus{}
	for _, task := range tasks {
		byID[task.ID] = task.Status
	}
	assert.Equal(t, domain.TaskOverdue, byID[lateID])
	assert.Equal(t, domain.TaskCompleted, byID[doneID])
	assert.Equal(t, domain.TaskPending, byID[openEnded])
	assert.Equal(t, []string{lateID}, overdue)

	// A later sweep does not flag the same task twice.
	clock.Advance(time.Hour)
	eng.RunEscalationSweep(ctx)
	assert.Equal(t, []string{lateID}, overdue)
}
