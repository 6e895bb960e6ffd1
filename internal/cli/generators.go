// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/wordtinker/TaskTools/internal/storage/models"
)

func genCommand(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: %s gen <list|add|rm> [arguments]", appName)
	}

	switch args[0] {
	case "list":
		return genListCommand(args[1:])
	case "add":
		return genAddCommand(args[1:])
	case "rm":
		return genRmCommand(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown gen subcommand: %s\n", args[0])
		return fmt.Errorf("usage: %s gen <list|add|rm> [arguments]", appName)
	}
}

func genListCommand(args []string) error {
	fs := flag.NewFlagSet("gen list", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	gens, err := a.store.ListGenerators(context.Background())
	if err != nil {
		return err
	}

	fmt.Printf("%-4s %-8s %-6s %-30s %-18s %-10s %-6s %-8s\n",
		"ID", "Kind", "Shift", "Text", "Project", "Stage", "Valid", "Deadline")
	for _, g := range gens {
		fmt.Printf("%-4d %-8s %-6d %-30s %-18s %-10s %-6s %-8s\n",
			g.ID, g.Kind, g.Shift, g.Text, g.Project, g.InitialStage,
			formatDays(g.ValidDays), formatDays(g.DeadlineDays))
	}
	return nil
}

func genAddCommand(args []string) error {
	fs := flag.NewFlagSet("gen add", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	kind := fs.String("kind", "", "Generator kind: Daily or Monthly")
	shift := fs.Int("shift", 1, "Interval in days (Daily) or day of month (Monthly)")
	text := fs.String("text", "", "Template text for generated tasks")
	project := fs.String("project", "", "Project category")
	stage := fs.String("stage", string(models.StageIncoming), "Initial stage for generated tasks")
	validDays := fs.Int("valid-days", -1, "Validity offset in days from the occurrence date (negative = none)")
	deadlineDays := fs.Int("deadline-days", -1, "Deadline offset in days from the occurrence date (negative = none)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	k, err := models.ParseGeneratorKind(*kind)
	if err != nil {
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

	gen := models.Generator{
		Kind:         k,
		Shift:        *shift,
		Text:         *text,
		Project:      proj,
		InitialStage: st,
	}
	if *validDays >= 0 {
		gen.ValidDays = validDays
	}
	if *deadlineDays >= 0 {
		gen.DeadlineDays = deadlineDays
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	id, err := a.store.CreateGenerator(ctx, &gen)
	if err != nil {
		return err
	}
	fmt.Printf("Created generator %d\n", id)

	// A changed generator set fires a generation pass immediately.
	return a.engine.Run(ctx, models.Today())
}

func genRmCommand(args []string) error {
	fs := flag.NewFlagSet("gen rm", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("usage: %s gen rm <id>", appName)
	}

	genID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid generator id %q", rest[0])
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.store.DeleteGenerator(context.Background(), genID)
}

func generateCommand(args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := openApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.engine.Run(context.Background(), models.Today())
}

func formatDays(d *int) string {
	if d == nil {
		return "-"
	}
	return strconv.Itoa(*d)
}
