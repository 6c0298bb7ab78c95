package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"natours_echo/internal/models"
)

// BuildScheduledTask is a helper to build ScheduledTask records generically
func BuildScheduledTask(taskName string, args interface{}, due time.Time, recurringInterval *string, taskType models.ScheduledTaskType, maxAttempt int) (*models.ScheduledTask, error) {
	mapArgs, err := toMap(args)
	if err != nil {
		return nil, err
	}

	if taskType == models.ScheduledTaskTypeRecurring {
		if recurringInterval == nil || *recurringInterval == "" {
			return nil, fmt.Errorf("recurring task %s needs a recurrence rule", taskName)
		}
		if err := models.ValidateRecurrence(*recurringInterval); err != nil {
			return nil, fmt.Errorf("invalid recurrence rule: %w", err)
		}
	}

	if maxAttempt < 1 {
		maxAttempt = 1
	}

	return &models.ScheduledTask{
		TaskName:          taskName,
		Arguments:         mapArgs,
		Due:               due,
		RecurringInterval: recurringInterval,
		Status:            models.ScheduledTaskStatusActive,
		TaskType:          taskType,
		MaxAttempt:        maxAttempt,
	}, nil
}

// Enqueue stores a task for the worker
func Enqueue(ctx context.Context, db *gorm.DB, task *models.ScheduledTask) error {
	return db.WithContext(ctx).Create(task).Error
}

// decodeArgs converts a task's argument map into a typed struct
func decodeArgs(args map[string]interface{}, dest interface{}) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to marshal args: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("failed to unmarshal args: %w", err)
	}
	return nil
}

func toMap(args interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into map: %w", err)
	}
	if out == nil {
		out = map[string]interface{}{}
	}
	return out, nil
}
