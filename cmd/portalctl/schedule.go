package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"serviceportal/internal/models"
	"serviceportal/internal/tasks"
)

const dueLayout = "2006-01-02 15:04"

// parseDue accepts RFC3339 or "2006-01-02 15:04" in the local zone
func parseDue(raw string, loc *time.Location) (time.Time, error) {
	if due, err := time.Parse(time.RFC3339, raw); err == nil {
		return due, nil
	}
	due, err := time.ParseInLocation(dueLayout, raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q, use %q or RFC3339", raw, dueLayout)
	}
	return due, nil
}

func buildTask(name, rawArgs, rawDue, taskType, recurring string, maxAttempt int, loc *time.Location) (*models.ScheduledTask, error) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
		return nil, fmt.Errorf("invalid JSON arguments: %w", err)
	}
	due, err := parseDue(rawDue, loc)
	if err != nil {
		return nil, err
	}

	kind := models.ScheduledTaskType(taskType)
	if kind != models.ScheduledTaskTypeOneTime && kind != models.ScheduledTaskTypeRecurring {
		return nil, fmt.Errorf("unknown task type %q", taskType)
	}
	var rule *string
	if recurring != "" {
		rule = &recurring
	}
	if kind == models.ScheduledTaskTypeRecurring && rule == nil {
		return nil, fmt.Errorf("recurring tasks need --recurring")
	}
	return models.BuildScheduledTask(name, args, due, rule, kind, maxAttempt)
}

func scheduleCmd() *cobra.Command {
	var (
		name       string
		rawArgs    string
		rawDue     string
		taskType   string
		recurring  string
		maxAttempt int
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Create a scheduled task for the worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			task, err := buildTask(name, rawArgs, rawDue, taskType, recurring, maxAttempt, time.Local)
			if err != nil {
				return err
			}
			e, err := openEnv()
			if err != nil {
				return err
			}
			if err := e.store.CreateTask(context.Background(), task); err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			fmt.Printf("Created task %d\nTask: %s\nDue:  %s\nType: %s\n", task.ID, task.TaskName, task.Due, task.TaskType)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "task-name", "", "Name of the task")
	cmd.Flags().StringVar(&rawArgs, "arguments", "{}", "JSON arguments for the task")
	cmd.Flags().StringVar(&rawDue, "due", "", "Due date ("+dueLayout+" local, or RFC3339)")
	cmd.Flags().StringVar(&taskType, "type", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	cmd.Flags().StringVar(&recurring, "recurring", "", "RFC 5545 RRULE for recurring tasks")
	cmd.Flags().IntVar(&maxAttempt, "max-attempt", 3, "Attempts before the task is marked failed")
	_ = cmd.MarkFlagRequired("task-name")
	_ = cmd.MarkFlagRequired("due")
	return cmd
}

func scheduleDefaultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule-defaults",
		Short: "Create the recurring housekeeping tasks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := openEnv()
			if err != nil {
				return err
			}
			task, err := (&tasks.ExpireSessionsTaskDef{}).CreateTask(time.Now())
			if err != nil {
				return err
			}
			if err := e.store.CreateTask(context.Background(), task); err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			fmt.Printf("Created task %d (%s, %s)\n", task.ID, task.TaskName, *task.RecurringInterval)
			return nil
		},
	}
}
