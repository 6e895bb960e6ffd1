// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/wordtinker/TaskTools/internal/storage/models"
)

func addCommand(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	text := fs.String("text", "", "Task text")
	project := fs.String("project", "", "Project category")
	stage := fs.String("stage", string(models.StageIncoming), "Initial stage")
	valid := fs.String("valid", "", "Validity start date (YYYY-MM-DD)")
	deadline := fs.String("deadline", "", "Deadline date (YYYY-MM-DD)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	proj, err := models.ParseProject(*project)
	if err != nil {
		return err
	}
	st, err := models.ParseStage(*stage)
	if err != nil {
		return err
	}
	validDate, err := parseDate(*valid)
	if err != nil {
		return err
	}
	deadlineDate, err := parseDate(*deadline)
	if err != nil {
		return err
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	id, err := a.pool.AddTask(context.Background(), *text, proj, st, validDate, deadlineDate)
	if err != nil {
		return err
	}
	fmt.Printf("Created task %d\n", id)
	return nil
}

func moveCommand(args []string) error {
	fs := flag.NewFlagSet("move", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("usage: %s move <id> <stage> [project]", appName)
	}

	taskID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", rest[0])
	}
	stage, err := models.ParseStage(rest[1])
	if err != nil {
		return err
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.pool.Load(ctx, models.Today()); err != nil {
		return err
	}

	task, ok := a.pool.Get(taskID)
	if !ok {
		return fmt.Errorf("task %d is not on today's board", taskID)
	}
	project := task.Project
	if len(rest) > 2 {
		if project, err = models.ParseProject(rest[2]); err != nil {
			return err
		}
	}

	return a.pool.MoveTask(ctx, taskID, stage, project)
}

func rmCommand(args []string) error {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: %s rm <id>", appName)
	}

	taskID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", rest[0])
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	// Deletion cascades to the task's stage history and is idempotent.
	return a.store.DeleteTask(context.Background(), taskID)
}
