package tasks

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"natours_echo/internal/models"
)

// DefaultReconcileRule runs the reconciliation every night.
const DefaultReconcileRule = "FREQ=DAILY;BYHOUR=3;BYMINUTE=0;BYSECOND=0"

// ReconcileRatingsTaskDef recomputes the rating aggregates of every tour.
// Concurrent review writes can leave a tour's aggregate stale; this
// brings all of them back in line.
type ReconcileRatingsTaskDef struct{}

func (t *ReconcileRatingsTaskDef) TaskID() string {
	return "reconcile_ratings"
}

func (t *ReconcileRatingsTaskDef) CreateTask(rule string, start time.Time) (*models.ScheduledTask, error) {
	return BuildScheduledTask(t.TaskID(), map[string]interface{}{}, start, &rule, models.ScheduledTaskTypeRecurring, 3)
}

// EnsureScheduled creates the recurring task unless an active one exists.
func (t *ReconcileRatingsTaskDef) EnsureScheduled(ctx context.Context, db *gorm.DB, now time.Time) (*models.ScheduledTask, error) {
	var existing models.ScheduledTask
	err := db.WithContext(ctx).
		Where("task_name = ? AND status = ?", t.TaskID(), models.ScheduledTaskStatusActive).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	task, err := t.CreateTask(DefaultReconcileRule, now)
	if err != nil {
		return nil, err
	}
	if err := Enqueue(ctx, db, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (t *ReconcileRatingsTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]interface{}) (map[string]interface{}, error) {
	var tourIDs []string
	if err := db.WithContext(ctx).Model(&models.Tour{}).Pluck("id", &tourIDs).Error; err != nil {
		return nil, err
	}

	for _, id := range tourIDs {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return models.RecalculateRatings(ctx, tx, id)
		})
		if err != nil {
			return nil, err
		}
	}

	return map[string]interface{}{
		"status": "success",
		"tours":  len(tourIDs),
	}, nil
}

// ReconcileRatingsTask is the singleton instance of ReconcileRatingsTaskDef
var ReconcileRatingsTask = &ReconcileRatingsTaskDef{}
