// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package recurrence materializes task instances from generator definitions.
// A run computes, per generator, the occurrence dates that should exist
// between the last time it produced a task and today, writes one task per
// occurrence through the event store, and surfaces only the instances that
// pass the today-visibility predicate. Re-running with no elapsed time
// produces nothing: the date ranges collapse to empty.
package recurrence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wordtinker/TaskTools/internal/logger"
	"github.com/wordtinker/TaskTools/internal/pool"
	"github.com/wordtinker/TaskTools/internal/storage"
	"github.com/wordtinker/TaskTools/internal/storage/models"

	"github.com/rs/zerolog"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetRecurrenceLogger()
		log = &l
	})
	return log
}

// Store is the slice of the event store the engine reads and writes.
type Store interface {
	ListGenerators(ctx context.Context) ([]models.Generator, error)
	LastGeneratedDate(ctx context.Context, genID int64) (*time.Time, error)
	CreateTask(ctx context.Context, p storage.TaskParams) (int64, error)
}

// Sink receives the generated instances that are live today.
type Sink interface {
	Surface(t pool.Task)
}

// Engine runs the generators. One engine run per application session, plus on
// demand after generator edits.
type Engine struct {
	store Store
	sink  Sink
}

// New creates a recurrence engine writing through store and surfacing live
// instances into sink.
func New(store Store, sink Sink) *Engine {
	return &Engine{store: store, sink: sink}
}

// Run processes every generator to completion before starting the next. A
// malformed generator is logged and skipped; one generator's failure never
// blocks the others.
func (e *Engine) Run(ctx context.Context, today time.Time) error {
	gens, err := e.store.ListGenerators(ctx)
	if err != nil {
		return fmt.Errorf("failed to list generators: %w", err)
	}

	day := models.DateOf(today)
	for _, gen := range gens {
		if err := e.runGenerator(ctx, gen, day); err != nil {
			getLog().Error().Err(err).Int64("generator", gen.ID).Msg("Generator run failed")
		}
	}
	getLog().Debug().Int("generators", len(gens)).Msg("Generation pass finished")
	return nil
}

func (e *Engine) runGenerator(ctx context.Context, gen models.Generator, today time.Time) error {
	if gen.Shift < 1 {
		return fmt.Errorf("generator %d: non-positive shift %d", gen.ID, gen.Shift)
	}

	last, err := e.store.LastGeneratedDate(ctx, gen.ID)
	if err != nil {
		return err
	}

	var occurrences []time.Time
	switch gen.Kind {
	case models.GeneratorDaily:
		occurrences = dailyOccurrences(last, today, gen.Shift)
	case models.GeneratorMonthly:
		occurrences = monthlyOccurrences(last, today, gen.Shift)
	default:
		return fmt.Errorf("generator %d: unknown kind %q", gen.ID, string(gen.Kind))
	}

	for _, occurrence := range occurrences {
		if err := e.materialize(ctx, gen, occurrence, today); err != nil {
			return err
		}
	}
	return nil
}

// dailyOccurrences walks the gap day by day and fires on every multiple of
// the interval. Gaps are bounded by real elapsed time between application
// runs, so day granularity is acceptable.
func dailyOccurrences(last *time.Time, today time.Time, interval int) []time.Time {
	if last == nil {
		// A new daily generator produces exactly one occurrence, today.
		return []time.Time{today}
	}

	days := daysBetween(*last, today)
	if days < 0 {
		days = -days
	}
	var out []time.Time
	for i := 1; i <= days; i++ {
		if i%interval == 0 {
			out = append(out, last.AddDate(0, 0, i))
		}
	}
	return out
}

// monthlyOccurrences fires on the given day of each elapsed month. The
// day-of-month is clamped to the last day of short months; the same policy
// applies to the new-generator and backfill branches.
func monthlyOccurrences(last *time.Time, today time.Time, day int) []time.Time {
	if last == nil {
		// A new monthly generator whose day hasn't occurred yet this month
		// produces nothing.
		occ := monthDate(today.Year(), today.Month(), day)
		if occ.After(today) {
			return nil
		}
		return []time.Time{occ}
	}

	months := wholeMonthsBetween(*last, today)
	var out []time.Time
	for i := 1; i <= months; i++ {
		year, month := shiftMonth(last.Year(), last.Month(), i)
		occ := monthDate(year, month, day)
		if !occ.After(today) {
			out = append(out, occ)
		}
	}
	return out
}

func (e *Engine) materialize(ctx context.Context, gen models.Generator, occurrence, today time.Time) error {
	var valid, deadline *time.Time
	if gen.ValidDays != nil {
		v := occurrence.AddDate(0, 0, *gen.ValidDays)
		valid = &v
	}
	if gen.DeadlineDays != nil {
		d := occurrence.AddDate(0, 0, *gen.DeadlineDays)
		deadline = &d
	}

	// History is always written, even when the instance is not live today.
	id, err := e.store.CreateTask(ctx, storage.TaskParams{
		Text:        gen.Text,
		Project:     gen.Project,
		Stage:       gen.InitialStage,
		Valid:       valid,
		Deadline:    deadline,
		GeneratedBy: &gen.ID,
		Date:        &occurrence,
	})
	if err != nil {
		return fmt.Errorf("generator %d: occurrence %s: %w", gen.ID, occurrence.Format(time.DateOnly), err)
	}
	getLog().Info().
		Int64("generator", gen.ID).
		Int64("task", id).
		Str("date", occurrence.Format(time.DateOnly)).
		Msg("Materialized occurrence")

	if isLive(gen.InitialStage, occurrence, valid, today) {
		e.sink.Surface(pool.Task{
			ID:       id,
			Text:     gen.Text,
			Project:  gen.Project,
			Stage:    gen.InitialStage,
			Valid:    valid,
			Deadline: deadline,
		})
	}
	return nil
}

// isLive is the visibility predicate for backfilled instances: the validity
// window must have opened (or be absent), and an instance created directly in
// the terminal stage on a past date is already done.
func isLive(stage models.Stage, occurrence time.Time, valid *time.Time, today time.Time) bool {
	if valid != nil && valid.Before(today) {
		return false
	}
	if stage == models.StageDone && occurrence.Before(today) {
		return false
	}
	return true
}

// daysBetween returns the calendar-day difference b - a. Both arguments are
// expected at UTC midnight.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / (24 * time.Hour))
}

// wholeMonthsBetween returns the number of whole calendar months from a to b,
// years included. The count is decremented when b's day-of-month has not yet
// reached a's.
func wholeMonthsBetween(a, b time.Time) int {
	months := (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
	if b.Day() < a.Day() {
		months--
	}
	return months
}

// shiftMonth advances a year/month pair by delta months without day
// normalization.
func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + delta
	return idx / 12, time.Month(idx%12 + 1)
}

// monthDate builds a date in the given month with the day clamped to the
// month's length.
func monthDate(year int, month time.Month, day int) time.Time {
	if last := daysIn(year, month); day > last {
		day = last
	}
	if day < 1 {
		day = 1
	}
	return models.Date(year, month, day)
}

func daysIn(year int, month time.Month) int {
	// Day zero of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
