package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/labstack/gommon/log"
	"gorm.io/gorm"

	"natours_echo/internal/models"
)

// Runner executes due scheduled tasks and records their history.
type Runner struct {
	db         *gorm.DB
	registry   *Registry
	now        func() time.Time
	retryDelay time.Duration
}

func NewRunner(db *gorm.DB, registry *Registry) *Runner {
	return &Runner{db: db, registry: registry, now: time.Now, retryDelay: time.Minute}
}

// ProcessDue runs every active task whose due time has passed and returns
// how many ran.
func (r *Runner) ProcessDue(ctx context.Context) (int, error) {
	var pending []models.ScheduledTask
	err := r.db.WithContext(ctx).
		Where("status = ? AND due <= ?", models.ScheduledTaskStatusActive, r.now()).
		Order("due asc").
		Find(&pending).Error
	if err != nil {
		return 0, fmt.Errorf("fetch pending tasks: %w", err)
	}

	ran := 0
	for _, task := range pending {
		if ctx.Err() != nil {
			return ran, ctx.Err()
		}
		r.Execute(ctx, task)
		ran++
	}
	return ran, nil
}

// Execute runs one task. A failed attempt is retried on a later tick,
// with a growing delay, until MaxAttempt attempts have been made.
func (r *Runner) Execute(ctx context.Context, task models.ScheduledTask) {
	log.Infof("Processing task: %s (ID: %d)", task.TaskName, task.ID)

	if task.Arguments == nil {
		task.Arguments = make(map[string]interface{})
	}
	attempt := task.Attempt + 1
	startTime := r.now()

	handler, found := r.registry.Get(task.TaskName)
	if !found {
		log.Warnf("Task handler not found for: %s. Marking as failure.", task.TaskName)
		r.record(ctx, task, startTime, 0, "handler_not_found", attempt, map[string]interface{}{"error": "Handler not found"})
		r.update(ctx, task, map[string]interface{}{
			"status":     models.ScheduledTaskStatusFailure,
			"last_run":   startTime,
			"last_error": "handler not found",
		})
		return
	}

	result, err := r.run(ctx, handler, task.Arguments)
	runtime := r.now().Sub(startTime)

	updates := map[string]interface{}{"last_run": startTime}
	if err != nil {
		log.Errorf("Task %s failed (attempt %d/%d): %v", task.TaskName, attempt, task.MaxAttempt, err)
		r.record(ctx, task, startTime, runtime, "failure", attempt, map[string]interface{}{"error": err.Error()})
		updates["last_error"] = err.Error()

		switch {
		case attempt < task.MaxAttempt:
			updates["attempt"] = attempt
			updates["due"] = r.now().Add(r.retryDelay * time.Duration(attempt))
		case task.TaskType == models.ScheduledTaskTypeRecurring:
			r.scheduleNext(task, updates)
		default:
			updates["attempt"] = attempt
			updates["status"] = models.ScheduledTaskStatusFailure
		}
		r.update(ctx, task, updates)
		return
	}

	log.Infof("Task %s completed successfully.", task.TaskName)
	r.record(ctx, task, startTime, runtime, "success", attempt, result)
	updates["last_error"] = ""

	switch task.TaskType {
	case models.ScheduledTaskTypeRecurring:
		r.scheduleNext(task, updates)
	default:
		updates["attempt"] = attempt
		updates["status"] = models.ScheduledTaskStatusDone
	}
	r.update(ctx, task, updates)
}

// scheduleNext moves a recurring task to its next occurrence, or finishes
// it when the rule has none left.
func (r *Runner) scheduleNext(task models.ScheduledTask, updates map[string]interface{}) {
	next := task.NextDue(r.now())
	if next.After(task.Due) {
		updates["status"] = models.ScheduledTaskStatusActive
		updates["due"] = next
		updates["attempt"] = 0
		return
	}
	updates["status"] = models.ScheduledTaskStatusDone
}

func (r *Runner) run(ctx context.Context, handler TaskHandler, args map[string]interface{}) (result map[string]interface{}, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("task panicked: %v", p)
		}
	}()
	return handler(ctx, r.db, args)
}

func (r *Runner) record(ctx context.Context, task models.ScheduledTask, runAt time.Time, runtime time.Duration, status string, attempt int, result map[string]interface{}) {
	history := models.ScheduledTaskHistory{
		ScheduledTaskID: task.ID,
		TaskName:        task.TaskName,
		RunAt:           runAt,
		RuntimeMs:       runtime.Milliseconds(),
		Status:          status,
		AttemptNumber:   attempt,
		Arguments:       task.Arguments,
		Result:          result,
	}
	if err := r.db.WithContext(ctx).Create(&history).Error; err != nil {
		log.Errorf("record history for task %d: %v", task.ID, err)
	}
}

func (r *Runner) update(ctx context.Context, task models.ScheduledTask, updates map[string]interface{}) {
	if err := r.db.WithContext(ctx).Model(&task).Updates(updates).Error; err != nil {
		log.Errorf("update task %d: %v", task.ID, err)
	}
}
