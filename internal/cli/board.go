// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"sort"

	"github.com/wordtinker/TaskTools/internal/pool"
	"github.com/wordtinker/TaskTools/internal/storage/models"

	"github.com/samber/lo"
)

func boardCommand(args []string) error {
	fs := flag.NewFlagSet("board", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	today := models.Today()

	if err := a.pool.Load(ctx, today); err != nil {
		return err
	}
	// Materialize due recurring tasks before rendering, as the desktop app
	// did on startup.
	if err := a.engine.Run(ctx, today); err != nil {
		return err
	}

	byStage := lo.GroupBy(a.pool.Tasks(), func(t pool.Task) models.Stage {
		return t.Stage
	})

	for _, stage := range models.Stages() {
		tasks, ok := byStage[stage]
		if !ok {
			continue
		}
		fmt.Printf("%s\n", stage)
		sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
		for _, t := range tasks {
			line := fmt.Sprintf("  [%d] %-40s %s", t.ID, t.Text, t.Project)
			if t.Deadline != nil {
				line += " D:" + formatDate(t.Deadline)
			}
			if t.Valid != nil {
				line += " V:" + formatDate(t.Valid)
			}
			fmt.Println(line)
		}
	}
	return nil
}
