// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli is the thin presentation front end. It consumes the task pool,
// report builder and generator operations; all domain rules live below it.
package cli

import (
	"fmt"
	"os"
)

const (
	appName    = "tasktools"
	appVersion = "0.1.0"
)

// Execute runs the CLI application
func Execute() error {
	if len(os.Args) < 2 {
		return printUsage()
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "board":
		return boardCommand(args)
	case "add":
		return addCommand(args)
	case "move":
		return moveCommand(args)
	case "rm":
		return rmCommand(args)
	case "report":
		return reportCommand(args)
	case "gen":
		return genCommand(args)
	case "generate":
		return generateCommand(args)
	case "version":
		fmt.Printf("%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		return printUsage()
	}
}

func printUsage() error {
	fmt.Printf(`%s - personal task board

Usage:
  %s <command> [arguments]

Commands:
  board          Show today's tasks grouped by stage and project
  add            Add a new task
  move           Move a task to another stage and/or project
  rm <id>        Delete a task and its history
  report         Report stage transitions over a date range
  gen            Manage recurring-task generators (list/add/rm)
  generate       Materialize due occurrences from all generators
  version        Print version information
  help           Show this help message

Examples:
  %s board
  %s add -text "Pay rent" -project Money -stage ToDo -deadline 2026-09-01
  %s move 42 Doing
  %s report -from 2026-08-01 -to 2026-08-28
  %s gen add -kind Monthly -shift 15 -text "Pay rent" -project Money -stage ToDo

`, appName, appName, appName, appName, appName, appName, appName)
	return nil
}
