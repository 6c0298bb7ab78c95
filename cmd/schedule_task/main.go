package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/labstack/gommon/log"

	"natours_echo/internal/config"
	"natours_echo/internal/models"
	"natours_echo/internal/services"
	"natours_echo/internal/tasks"
)

func main() {
	taskName := flag.String("task_name", "", "Name of the task (mandatory)")
	argsStr := flag.String("arguments", "{}", "JSON arguments for the task")
	dueStr := flag.String("due", "", "Due date (format: 2006-01-02 15:04 or RFC3339, default: now)")
	taskType := flag.String("tasktype", string(models.ScheduledTaskTypeOneTime), "Task type: onetime or recurring")
	recurring := flag.String("recurring", "", "RRULE for recurring tasks, e.g. FREQ=DAILY;BYHOUR=3")
	maxAttempt := flag.Int("max_attempt", 3, "Max attempts")
	flag.Parse()

	// The registry only needs the names here; nothing is executed.
	tasks.DefineTasks(nil)

	if *taskName == "" {
		fmt.Println("Usage: schedule_task -task_name <name> [-arguments <json>] [-due <YYYY-MM-DD HH:MM>] [options]")
		fmt.Printf("Known tasks: %s\n", strings.Join(tasks.GlobalRegistry.Names(), ", "))
		flag.PrintDefaults()
		os.Exit(1)
	}
	if _, ok := tasks.GetHandler(*taskName); !ok {
		log.Fatalf("Unknown task %q. Known tasks: %s", *taskName, strings.Join(tasks.GlobalRegistry.Names(), ", "))
	}

	var args map[string]interface{}
	if err := json.Unmarshal([]byte(*argsStr), &args); err != nil {
		log.Fatalf("Invalid JSON arguments: %v", err)
	}

	due, err := parseDue(*dueStr)
	if err != nil {
		log.Fatalf("Invalid due date format. Use '2006-01-02 15:04' (Local) or RFC3339: %v", err)
	}

	var recurringPtr *string
	if *recurring != "" {
		recurringPtr = recurring
	}

	task, err := tasks.BuildScheduledTask(*taskName, args, due, recurringPtr, models.ScheduledTaskType(*taskType), *maxAttempt)
	if err != nil {
		log.Fatalf("Invalid task: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	db, err := services.InitDB(cfg.DatabaseURL, false)
	if err != nil {
		log.Fatalf("Failed to connect DB: %v", err)
	}

	if err := tasks.Enqueue(context.Background(), db, task); err != nil {
		log.Fatalf("Failed to create task: %v", err)
	}

	fmt.Printf("Successfully created task ID: %d\n", task.ID)
	fmt.Printf("Task: %s\nDue: %s\nType: %s\n", task.TaskName, task.Due, task.TaskType)
}

func parseDue(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now(), nil
	}
	if due, err := time.Parse(time.RFC3339, raw); err == nil {
		return due, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", raw, time.Local)
}
