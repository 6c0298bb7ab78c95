package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"natours_echo/internal/models"
	"natours_echo/internal/testutil"
)

var epoch = time.Date(2024, 3, 1, 3, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestRunner(db *gorm.DB, reg *Registry, c *clock) *Runner {
	r := NewRunner(db, reg)
	r.now = c.now
	return r
}

func enqueue(t *testing.T, db *gorm.DB, name string, due time.Time, rule *string, taskType models.ScheduledTaskType, maxAttempt int) *models.ScheduledTask {
	t.Helper()
	task, err := BuildScheduledTask(name, map[string]interface{}{"k": "v"}, due, rule, taskType, maxAttempt)
	require.NoError(t, err)
	require.NoError(t, Enqueue(context.Background(), db, task))
	return task
}

func reloadTask(t *testing.T, db *gorm.DB, id uint) models.ScheduledTask {
	t.Helper()
	var task models.ScheduledTask
	require.NoError(t, db.First(&task, id).Error)
	return task
}

func histories(t *testing.T, db *gorm.DB, id uint) []models.ScheduledTaskHistory {
	t.Helper()
	var rows []models.ScheduledTaskHistory
	require.NoError(t, db.Where("scheduled_task_id = ?", id).Order("id asc").Find(&rows).Error)
	return rows
}

func TestRunnerOneTimeSuccess(t *testing.T) {
	db := testutil.NewModelsDB(t)
	reg := NewRegistry()
	var got map[string]interface{}
	reg.Register("ok", func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
		got = args
		return map[string]interface{}{"status": "success"}, nil
	})
	c := &clock{t: epoch}
	task := enqueue(t, db, "ok", epoch.Add(-time.Minute), nil, models.ScheduledTaskTypeOneTime, 1)
	enqueue(t, db, "ok", epoch.Add(time.Hour), nil, models.ScheduledTaskTypeOneTime, 1)

	ran, err := newTestRunner(db, reg, c).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ran)
	assert.Equal(t, "v", got["k"])

	stored := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusDone, stored.Status)
	assert.Equal(t, 1, stored.Attempt)
	require.NotNil(t, stored.LastRun)
	assert.True(t, epoch.Equal(*stored.LastRun))

	rows := histories(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "success", rows[0].Status)
	assert.Equal(t, 1, rows[0].AttemptNumber)
	assert.Equal(t, "success", rows[0].Result["status"])

	// Done tasks are not picked up again.
	ran, err = newTestRunner(db, reg, c).ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)
}

func TestRunnerRetriesThenFails(t *testing.T) {
	db := testutil.NewModelsDB(t)
	reg := NewRegistry()
	reg.Register("flaky", func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
		return nil, errors.New("smtp unavailable")
	})
	c := &clock{t: epoch}
	r := newTestRunner(db, reg, c)
	task := enqueue(t, db, "flaky", epoch, nil, models.ScheduledTaskTypeOneTime, 3)

	_, err := r.ProcessDue(context.Background())
	require.NoError(t, err)
	stored := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, stored.Status)
	assert.Equal(t, 1, stored.Attempt)
	assert.True(t, epoch.Add(time.Minute).Equal(stored.Due))
	assert.Equal(t, "smtp unavailable", stored.LastError)

	// Not due again until the backoff has passed.
	ran, err := r.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, ran)

	c.t = epoch.Add(time.Minute)
	_, err = r.ProcessDue(context.Background())
	require.NoError(t, err)
	stored = reloadTask(t, db, task.ID)
	assert.Equal(t, 2, stored.Attempt)
	assert.True(t, c.t.Add(2*time.Minute).Equal(stored.Due))

	c.t = c.t.Add(2 * time.Minute)
	_, err = r.ProcessDue(context.Background())
	require.NoError(t, err)
	stored = reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusFailure, stored.Status)
	assert.Equal(t, 3, stored.Attempt)

	rows := histories(t, db, task.ID)
	require.Len(t, rows, 3)
	for i, row := range rows {
		assert.Equal(t, "failure", row.Status)
		assert.Equal(t, i+1, row.AttemptNumber)
		assert.Equal(t, "smtp unavailable", row.Result["error"])
	}
}

func TestRunnerRecurring(t *testing.T) {
	db := testutil.NewModelsDB(t)
	reg := NewRegistry()
	fail := false
	reg.Register("nightly", func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return map[string]interface{}{}, nil
	})
	rule := "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0"
	c := &clock{t: epoch.Add(5 * time.Second)}
	r := newTestRunner(db, reg, c)
	task := enqueue(t, db, "nightly", epoch, &rule, models.ScheduledTaskTypeRecurring, 1)

	_, err := r.ProcessDue(context.Background())
	require.NoError(t, err)
	stored := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, stored.Status)
	assert.Equal(t, 0, stored.Attempt)
	assert.True(t, epoch.Add(24*time.Hour).Equal(stored.Due), "due %s", stored.Due)

	// A recurring task that runs out of attempts moves on to its next
	// occurrence instead of failing for good.
	fail = true
	c.t = epoch.Add(24*time.Hour + time.Second)
	_, err = r.ProcessDue(context.Background())
	require.NoError(t, err)
	stored = reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusActive, stored.Status)
	assert.True(t, epoch.Add(48*time.Hour).Equal(stored.Due), "due %s", stored.Due)
	assert.Equal(t, "boom", stored.LastError)
}

func TestRunnerMissingHandler(t *testing.T) {
	db := testutil.NewModelsDB(t)
	c := &clock{t: epoch}
	task := enqueue(t, db, "ghost", epoch, nil, models.ScheduledTaskTypeOneTime, 3)

	_, err := newTestRunner(db, NewRegistry(), c).ProcessDue(context.Background())
	require.NoError(t, err)

	stored := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusFailure, stored.Status)
	rows := histories(t, db, task.ID)
	require.Len(t, rows, 1)
	assert.Equal(t, "handler_not_found", rows[0].Status)
}

func TestRunnerRecoversPanics(t *testing.T) {
	db := testutil.NewModelsDB(t)
	reg := NewRegistry()
	reg.Register("explode", func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
		var m map[string]int
		m["x"] = 1
		return nil, nil
	})
	c := &clock{t: epoch}
	task := enqueue(t, db, "explode", epoch, nil, models.ScheduledTaskTypeOneTime, 1)

	_, err := newTestRunner(db, reg, c).ProcessDue(context.Background())
	require.NoError(t, err)

	stored := reloadTask(t, db, task.ID)
	assert.Equal(t, models.ScheduledTaskStatusFailure, stored.Status)
	assert.Contains(t, stored.LastError, "task panicked")
}

func TestBuildScheduledTask(t *testing.T) {
	bad := "EVERY=DAY"
	empty := ""

	_, err := BuildScheduledTask("x", nil, epoch, &bad, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)
	_, err = BuildScheduledTask("x", nil, epoch, &empty, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)
	_, err = BuildScheduledTask("x", nil, epoch, nil, models.ScheduledTaskTypeRecurring, 1)
	assert.Error(t, err)
	_, err = BuildScheduledTask("x", make(chan int), epoch, nil, models.ScheduledTaskTypeOneTime, 1)
	assert.Error(t, err)

	task, err := BuildScheduledTask("x", nil, epoch, nil, models.ScheduledTaskTypeOneTime, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, task.MaxAttempt)
	assert.NotNil(t, task.Arguments)
	assert.Equal(t, models.ScheduledTaskStatusActive, task.Status)
}

func TestRegistryNames(t *testing.T) {
	reg := NewRegistry()
	noop := func(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
		return nil, nil
	}
	reg.Register("b", noop)
	reg.Register("a", noop)

	assert.Equal(t, []string{"a", "b"}, reg.Names())
	_, ok := reg.Get("c")
	assert.False(t, ok)
}
