package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/dgower/olbridge/internal/simstore"
)

func TestListTasksExcludesCompleted(t *testing.T) {
	b, store := newTestBridge(t)

	open, err := store.AddTask(simstore.SeedTask{
		Subject: "Open task",
		DueDate: time.Date(2026, 9, 10, 12, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	_, err = store.AddTask(simstore.SeedTask{
		Subject:         "Done task",
		Status:          2,
		Complete:        true,
		PercentComplete: 100,
	})
	require.NoError(t, err)

	tasks, err := b.ListTasks(false, 50)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, open, tasks[0].EntryID)

	all, err := b.ListTasks(true, 50)
	require.NoError(t, err)
	require.Len(t, all, 2)
}

func TestListTasksDueDateOrder(t *testing.T) {
	b, store := newTestBridge(t)

	later, err := store.AddTask(simstore.SeedTask{
		Subject: "Later",
		DueDate: time.Date(2026, 9, 20, 12, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	sooner, err := store.AddTask(simstore.SeedTask{
		Subject: "Sooner",
		DueDate: time.Date(2026, 9, 5, 12, 0, 0, 0, time.Local),
	})
	require.NoError(t, err)

	tasks, err := b.ListTasks(false, 50)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	require.Equal(t, sooner, tasks[0].EntryID)
	require.Equal(t, later, tasks[1].EntryID)
}

func TestCreateTaskRoundTrip(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{
		Subject:  "File the report",
		Body:     "before Friday",
		DueDate:  "2026-09-15",
		Priority: "high",
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.NotEmpty(t, res.EntryID)

	task, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "File the report", task.Subject)
	require.NotNil(t, task.DueDate)
	require.Equal(t, "2026-09-15", *task.DueDate)
	require.NotNil(t, task.Priority)
	require.Equal(t, "high", *task.Priority)
	require.False(t, task.Complete)
	require.Zero(t, task.PercentComplete)
}

func TestGetTaskIdempotent(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{
		Subject: "Renew certificates",
		DueDate: "2026-10-01",
	})
	require.NoError(t, err)

	first, err := b.GetTask(res.EntryID)
	require.NoError(t, err)

	second, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestCreateTaskValidation(t *testing.T) {
	b, _ := newTestBridge(t)

	_, err := b.CreateTask(CreateTaskRequest{})
	require.Equal(t, KindValidation, Classify(err))

	_, err = b.CreateTask(CreateTaskRequest{
		Subject: "x", DueDate: "15/09/2026",
	})
	require.Equal(t, KindValidation, Classify(err))

	_, err = b.CreateTask(CreateTaskRequest{
		Subject: "x", Priority: "urgent",
	})
	require.Equal(t, KindValidation, Classify(err))
}

// TestTaskNoDueDate pins the sentinel handling: a task without a due date
// reports none, even though the store represents it as a far-future
// timestamp.
func TestTaskNoDueDate(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{Subject: "No due"})
	require.NoError(t, err)

	task, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.Nil(t, task.DueDate)
}

// TestTaskMissingFields pins how foreign items surface: absent status or
// importance stays nil instead of defaulting to a real value.
func TestTaskMissingFields(t *testing.T) {
	b, store := newTestBridge(t)

	id, err := store.AddTask(simstore.SeedTask{
		Subject:      "Imported elsewhere",
		NoStatus:     true,
		NoImportance: true,
	})
	require.NoError(t, err)

	task, err := b.GetTask(id)
	require.NoError(t, err)
	require.Nil(t, task.Status)
	require.Nil(t, task.Priority)
}

func TestCompleteTaskIdempotent(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{Subject: "Finish it"})
	require.NoError(t, err)

	first, err := b.CompleteTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, first.Success)

	task, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, task.Complete)
	require.Equal(t, 100, task.PercentComplete)

	second, err := b.CompleteTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, second.Success)
	require.Equal(t, "task already complete", second.Message)

	task, err = b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, task.Complete)
	require.Equal(t, 100, task.PercentComplete)
}

func TestUpdateTaskCoupling(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{Subject: "Coupled"})
	require.NoError(t, err)

	// Percent 100 implies complete.
	pct := 100
	_, err = b.UpdateTask(res.EntryID, UpdateTaskRequest{
		PercentComplete: &pct,
	})
	require.NoError(t, err)

	task, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, task.Complete)

	// Lowering the percentage reopens the task.
	pct = 40
	_, err = b.UpdateTask(res.EntryID, UpdateTaskRequest{
		PercentComplete: &pct,
	})
	require.NoError(t, err)

	task, err = b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.False(t, task.Complete)
	require.Equal(t, 40, task.PercentComplete)

	// Status complete implies 100 percent.
	status := "complete"
	_, err = b.UpdateTask(res.EntryID, UpdateTaskRequest{Status: &status})
	require.NoError(t, err)

	task, err = b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, task.Complete)
	require.Equal(t, 100, task.PercentComplete)
}

func TestUpdateTaskValidationLeavesRecordUnchanged(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{Subject: "Stable"})
	require.NoError(t, err)

	subj := "Changed"
	badStatus := "paused"
	_, err = b.UpdateTask(res.EntryID, UpdateTaskRequest{
		Subject: &subj,
		Status:  &badStatus,
	})
	require.Equal(t, KindValidation, Classify(err))

	task, err := b.GetTask(res.EntryID)
	require.NoError(t, err)
	require.Equal(t, "Stable", task.Subject)
}

// TestCompletionMonotonic checks that no sequence of completions flips a
// finished task back: only an explicit percent or status change reopens.
func TestCompletionMonotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store, err := simstore.New(simstore.Config{})
		require.NoError(rt, err)
		defer store.Release()

		b := New(store)

		res, err := b.CreateTask(CreateTaskRequest{Subject: "Mono"})
		require.NoError(rt, err)

		n := rapid.IntRange(1, 5).Draw(rt, "completions")
		for i := 0; i < n; i++ {
			_, err := b.CompleteTask(res.EntryID)
			require.NoError(rt, err)

			task, err := b.GetTask(res.EntryID)
			require.NoError(rt, err)
			require.True(rt, task.Complete)
			require.Equal(rt, 100, task.PercentComplete)
		}
	})
}

func TestDeleteTask(t *testing.T) {
	b, _ := newTestBridge(t)

	res, err := b.CreateTask(CreateTaskRequest{Subject: "Gone"})
	require.NoError(t, err)

	del, err := b.DeleteTask(res.EntryID)
	require.NoError(t, err)
	require.True(t, del.Success)

	_, err = b.DeleteTask("missing")
	require.ErrorIs(t, err, ErrNotFound)
}
