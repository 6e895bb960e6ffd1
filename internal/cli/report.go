// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/wordtinker/TaskTools/internal/report"
	"github.com/wordtinker/TaskTools/internal/storage/models"
)

func reportCommand(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	from := fs.String("from", "", "Window start date (YYYY-MM-DD, default today)")
	to := fs.String("to", "", "Window finish date (YYYY-MM-DD, default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	today := models.Today()
	start := today
	finish := today
	if d, err := parseDate(*from); err != nil {
		return err
	} else if d != nil {
		start = *d
	}
	if d, err := parseDate(*to); err != nil {
		return err
	} else if d != nil {
		finish = *d
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	rows, err := report.Build(context.Background(), a.store, start, finish)
	if err != nil {
		return err
	}

	fmt.Printf("%-30s %-18s %-10s %-12s %-10s %-12s %-10s %-10s\n",
		"Text", "Project", "From", "On", "To", "On", "Valid", "Deadline")
	for _, r := range rows {
		fmt.Printf("%-30s %-18s %-10s %-12s %-10s %-12s %-10s %-10s\n",
			r.Text, r.Project, r.FromStage, r.FromDate.Format(time.DateOnly),
			r.ToStage, r.ToDate.Format(time.DateOnly),
			formatDate(r.Valid), formatDate(r.Deadline))
	}
	return nil
}
