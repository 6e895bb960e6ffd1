// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package report reconstructs stage transitions over a date window: for every
// task active in the window it reports the stage it moved from and the stage
// it ended on.
package report

import (
	"context"
	"sync"
	"time"

	"github.com/wordtinker/TaskTools/internal/logger"
	"github.com/wordtinker/TaskTools/internal/storage"
	"github.com/wordtinker/TaskTools/internal/storage/models"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetReportLogger()
		log = &l
	})
	return log
}

// Row is one report line: the task moved From its preceding stage To the
// latest stage it reached within the window.
type Row struct {
	TaskID    int64
	Text      string
	Project   models.Project
	FromStage models.Stage
	FromDate  time.Time
	ToStage   models.Stage
	ToDate    time.Time
	Valid     *time.Time
	Deadline  *time.Time
}

// Store is the slice of the event store the report reads.
type Store interface {
	ReportRange(ctx context.Context, start, finish time.Time) ([]storage.ReportRow, error)
	StagesBefore(ctx context.Context, taskID int64, finish time.Time, excluding models.Stage) ([]models.StageEvent, error)
}

// Build produces the report for [start, finish]. The from-stage is
// reconstructed from the task's other events: none means the task had only one
// relevant stage (from equals to), exactly one is taken as-is, and with many
// the last one dated strictly before start wins (the closest preceding state
// at window open), falling back to the earliest available.
func Build(ctx context.Context, store Store, start, finish time.Time) ([]Row, error) {
	ranged, err := store.ReportRange(ctx, start, finish)
	if err != nil {
		return nil, err
	}

	from := models.DateOf(start)
	rows := make([]Row, 0, len(ranged))
	for _, r := range ranged {
		stages, err := store.StagesBefore(ctx, r.TaskID, finish, r.Stage)
		if err != nil {
			return nil, err
		}

		fromStage := r.Stage
		fromDate := r.Date
		switch len(stages) {
		case 0:
		case 1:
			fromStage = stages[0].Stage
			fromDate = stages[0].Date
		default:
			before := lo.Filter(stages, func(ev models.StageEvent, _ int) bool {
				return ev.Date.Before(from)
			})
			pick := stages[0]
			if len(before) > 0 {
				pick = before[len(before)-1]
			}
			fromStage = pick.Stage
			fromDate = pick.Date
		}

		rows = append(rows, Row{
			TaskID:    r.TaskID,
			Text:      r.Text,
			Project:   r.Project,
			FromStage: fromStage,
			FromDate:  fromDate,
			ToStage:   r.Stage,
			ToDate:    r.Date,
			Valid:     r.Valid,
			Deadline:  r.Deadline,
		})
	}
	getLog().Debug().Int("rows", len(rows)).Msg("Report built")
	return rows, nil
}
