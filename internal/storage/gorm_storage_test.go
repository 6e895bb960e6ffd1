// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/wordtinker/TaskTools/internal/config"
	"github.com/wordtinker/TaskTools/internal/storage/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupStorage creates a migrated per-test sqlite database that is removed
// when the test finishes.
func setupStorage(t *testing.T) *GormStorage {
	t.Helper()

	testDBName := fmt.Sprintf("%s.db", t.Name())
	t.Cleanup(func() { os.Remove(testDBName) })

	s, err := NewGormStorage(&config.DatabaseConfig{
		Driver:   "sqlite",
		Database: testDBName,
	})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.AutoMigrate())
	return s
}

func date(y int, m time.Month, d int) time.Time {
	return models.Date(y, m, d)
}

func datePtr(y int, m time.Month, d int) *time.Time {
	t := models.Date(y, m, d)
	return &t
}

func TestCreateTaskRecordsFirstEvent(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)

	id, err := s.CreateTask(ctx, TaskParams{
		Text:    "pay rent",
		Project: models.ProjectMoney,
		Stage:   models.StageIncoming,
		Date:    &today,
	})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	states, err := s.CurrentTaskStages(ctx, today)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, id, states[0].TaskID)
	assert.Equal(t, models.StageIncoming, states[0].Stage)
	assert.Equal(t, "pay rent", states[0].Text)
	assert.Equal(t, models.ProjectMoney, states[0].Project)
}

func TestCreateTaskValidation(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	var vErr *ValidationError

	_, err := s.CreateTask(ctx, TaskParams{
		Text: "  ", Project: models.ProjectMoney, Stage: models.StageIncoming,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "text", vErr.Field)

	_, err = s.CreateTask(ctx, TaskParams{
		Text: "x", Project: "Hobby", Stage: models.StageIncoming,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "project", vErr.Field)

	_, err = s.CreateTask(ctx, TaskParams{
		Text: "x", Project: models.ProjectMoney, Stage: "Shipped",
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "stage", vErr.Field)
}

// The current stage is decided by insertion order, never by event dates. A
// backfilled event carrying an older date must still win if it was recorded
// last.
func TestCurrentStageFollowsInsertionOrder(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)

	id, err := s.CreateTask(ctx, TaskParams{
		Text: "write summary", Project: models.ProjectBusiness,
		Stage: models.StageToDo, Date: &today,
	})
	require.NoError(t, err)

	require.NoError(t, s.RecordStageChange(ctx, id, models.StageDoing, &today))
	backdated := date(2024, time.March, 1)
	require.NoError(t, s.RecordStageChange(ctx, id, models.StageWaiting, &backdated))

	states, err := s.CurrentTaskStages(ctx, today)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, models.StageWaiting, states[0].Stage)
}

func TestRecordStageChangeUnknownTask(t *testing.T) {
	s := setupStorage(t)

	err := s.RecordStageChange(context.Background(), 999, models.StageDoing, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTodayVisibility(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)
	yesterday := date(2024, time.March, 9)

	// Validity window still open.
	visible, err := s.CreateTask(ctx, TaskParams{
		Text: "visible", Project: models.ProjectHealth,
		Stage: models.StageToDo, Valid: datePtr(2024, time.March, 15), Date: &today,
	})
	require.NoError(t, err)

	// Validity window expired yesterday.
	_, err = s.CreateTask(ctx, TaskParams{
		Text: "expired", Project: models.ProjectHealth,
		Stage: models.StageToDo, Valid: &yesterday, Date: &today,
	})
	require.NoError(t, err)

	// Finished yesterday, stale on today's board.
	staleDone, err := s.CreateTask(ctx, TaskParams{
		Text: "stale done", Project: models.ProjectHealth,
		Stage: models.StageToDo, Date: &yesterday,
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordStageChange(ctx, staleDone, models.StageDone, &yesterday))

	// Finished today, still shows as an accomplishment.
	doneToday, err := s.CreateTask(ctx, TaskParams{
		Text: "done today", Project: models.ProjectHealth,
		Stage: models.StageToDo, Date: &yesterday,
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordStageChange(ctx, doneToday, models.StageDone, &today))

	states, err := s.CurrentTaskStages(ctx, today)
	require.NoError(t, err)

	ids := make([]int64, 0, len(states))
	for _, st := range states {
		ids = append(ids, st.TaskID)
	}
	assert.ElementsMatch(t, []int64{visible, doneToday}, ids)
}

func TestUpdateAttributes(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)

	id, err := s.CreateTask(ctx, TaskParams{
		Text: "old text", Project: models.ProjectFun,
		Stage: models.StageBacklog, Date: &today,
	})
	require.NoError(t, err)

	deadline := date(2024, time.April, 1)
	require.NoError(t, s.UpdateAttributes(ctx, id, "new text", models.ProjectDevelopment, nil, &deadline))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "new text", task.Text)
	assert.Equal(t, models.ProjectDevelopment, task.Project)
	assert.Nil(t, task.Valid)
	require.NotNil(t, task.Deadline)
	assert.True(t, deadline.Equal(models.DateOf(*task.Deadline)))

	// Attribute edits never touch the stage log.
	states, err := s.CurrentTaskStages(ctx, today)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, models.StageBacklog, states[0].Stage)
}

func TestUpdateAttributesUnknownTask(t *testing.T) {
	s := setupStorage(t)

	err := s.UpdateAttributes(context.Background(), 999, "text", models.ProjectMoney, nil, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSetProject(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)

	id, err := s.CreateTask(ctx, TaskParams{
		Text: "call mom", Project: models.ProjectFun,
		Stage: models.StageToday, Date: &today,
	})
	require.NoError(t, err)

	require.NoError(t, s.SetProject(ctx, id, models.ProjectRelationships))

	task, err := s.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectRelationships, task.Project)

	assert.ErrorIs(t, s.SetProject(ctx, 999, models.ProjectMoney), ErrNotFound)
}

func TestDeleteTaskCascadesAndIsIdempotent(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()
	today := date(2024, time.March, 10)

	id, err := s.CreateTask(ctx, TaskParams{
		Text: "short lived", Project: models.ProjectMoney,
		Stage: models.StageToDo, Date: &today,
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordStageChange(ctx, id, models.StageDoing, &today))

	require.NoError(t, s.DeleteTask(ctx, id))

	states, err := s.CurrentTaskStages(ctx, today)
	require.NoError(t, err)
	assert.Empty(t, states)

	events, err := s.StagesBefore(ctx, id, today, models.StageDone)
	require.NoError(t, err)
	assert.Empty(t, events)

	// Second delete of the same id is a no-op, not an error.
	require.NoError(t, s.DeleteTask(ctx, id))
}

func TestGeneratorCRUD(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	gen := models.Generator{
		Kind:         models.GeneratorDaily,
		Shift:        7,
		Text:         "water plants",
		Project:      models.ProjectEnvironment,
		InitialStage: models.StageToday,
	}
	id, err := s.CreateGenerator(ctx, &gen)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	gen.Shift = 3
	validDays := 2
	gen.ValidDays = &validDays
	require.NoError(t, s.UpdateGenerator(ctx, &gen))

	gens, err := s.ListGenerators(ctx)
	require.NoError(t, err)
	require.Len(t, gens, 1)
	assert.Equal(t, 3, gens[0].Shift)
	require.NotNil(t, gens[0].ValidDays)
	assert.Equal(t, 2, *gens[0].ValidDays)

	require.NoError(t, s.DeleteGenerator(ctx, id))
	gens, err = s.ListGenerators(ctx)
	require.NoError(t, err)
	assert.Empty(t, gens)

	// Deleting again is a no-op.
	require.NoError(t, s.DeleteGenerator(ctx, id))
}

func TestGeneratorValidation(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	var vErr *ValidationError

	_, err := s.CreateGenerator(ctx, &models.Generator{
		Kind: models.GeneratorDaily, Shift: 0, Text: "t",
		Project: models.ProjectMoney, InitialStage: models.StageIncoming,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shift", vErr.Field)

	_, err = s.CreateGenerator(ctx, &models.Generator{
		Kind: models.GeneratorMonthly, Shift: 30, Text: "t",
		Project: models.ProjectMoney, InitialStage: models.StageIncoming,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "shift", vErr.Field)

	_, err = s.CreateGenerator(ctx, &models.Generator{
		Kind: models.GeneratorDaily, Shift: 1, Text: "",
		Project: models.ProjectMoney, InitialStage: models.StageIncoming,
	})
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "text", vErr.Field)

	err = s.UpdateGenerator(ctx, &models.Generator{
		ID: 999, Kind: models.GeneratorDaily, Shift: 1, Text: "t",
		Project: models.ProjectMoney, InitialStage: models.StageIncoming,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestReportRange(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	start := date(2024, time.March, 8)
	finish := date(2024, time.March, 12)

	// Done before the window opened: excluded.
	early := date(2024, time.March, 1)
	finished, err := s.CreateTask(ctx, TaskParams{
		Text: "finished long ago", Project: models.ProjectMoney,
		Stage: models.StageToDo, Date: &early,
	})
	require.NoError(t, err)
	doneAt := date(2024, time.March, 5)
	require.NoError(t, s.RecordStageChange(ctx, finished, models.StageDone, &doneAt))

	// Progressed within the window. An event after finish must not leak in.
	active, err := s.CreateTask(ctx, TaskParams{
		Text: "active", Project: models.ProjectHealth,
		Stage: models.StageToDo, Date: &early,
	})
	require.NoError(t, err)
	within := date(2024, time.March, 10)
	after := date(2024, time.March, 20)
	require.NoError(t, s.RecordStageChange(ctx, active, models.StageDoing, &within))
	require.NoError(t, s.RecordStageChange(ctx, active, models.StageDone, &after))

	rows, err := s.ReportRange(ctx, start, finish)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, active, rows[0].TaskID)
	assert.Equal(t, models.StageDoing, rows[0].Stage)
	assert.True(t, within.Equal(models.DateOf(rows[0].Date)))
}

func TestStagesBefore(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	d1 := date(2024, time.March, 1)
	d2 := date(2024, time.March, 5)
	d3 := date(2024, time.March, 20)

	id, err := s.CreateTask(ctx, TaskParams{
		Text: "journey", Project: models.ProjectDevelopment,
		Stage: models.StageIncoming, Date: &d1,
	})
	require.NoError(t, err)
	require.NoError(t, s.RecordStageChange(ctx, id, models.StageToDo, &d2))
	require.NoError(t, s.RecordStageChange(ctx, id, models.StageDoing, &d2))
	require.NoError(t, s.RecordStageChange(ctx, id, models.StageDone, &d3))

	events, err := s.StagesBefore(ctx, id, date(2024, time.March, 10), models.StageDoing)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, models.StageIncoming, events[0].Stage)
	assert.Equal(t, models.StageToDo, events[1].Stage)
}

func TestLastGeneratedDate(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	genID, err := s.CreateGenerator(ctx, &models.Generator{
		Kind: models.GeneratorDaily, Shift: 1, Text: "standup",
		Project: models.ProjectBusiness, InitialStage: models.StageToday,
	})
	require.NoError(t, err)

	// Never fired yet.
	last, err := s.LastGeneratedDate(ctx, genID)
	require.NoError(t, err)
	assert.Nil(t, last)

	d1 := date(2024, time.March, 1)
	d2 := date(2024, time.March, 3)
	for _, d := range []time.Time{d1, d2} {
		occurrence := d
		_, err := s.CreateTask(ctx, TaskParams{
			Text: "standup", Project: models.ProjectBusiness,
			Stage: models.StageToday, GeneratedBy: &genID, Date: &occurrence,
		})
		require.NoError(t, err)
	}

	last, err = s.LastGeneratedDate(ctx, genID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, d2.Equal(*last))
}

// A generated task's generation date is its first event's date. Moving the
// task later, even with a far-future date, must not advance the generator's
// high-water mark.
func TestLastGeneratedDateIgnoresLaterMoves(t *testing.T) {
	s := setupStorage(t)
	ctx := context.Background()

	genID, err := s.CreateGenerator(ctx, &models.Generator{
		Kind: models.GeneratorDaily, Shift: 1, Text: "standup",
		Project: models.ProjectBusiness, InitialStage: models.StageToday,
	})
	require.NoError(t, err)

	occurrence := date(2024, time.March, 1)
	taskID, err := s.CreateTask(ctx, TaskParams{
		Text: "standup", Project: models.ProjectBusiness,
		Stage: models.StageToday, GeneratedBy: &genID, Date: &occurrence,
	})
	require.NoError(t, err)

	future := date(2024, time.June, 1)
	require.NoError(t, s.RecordStageChange(ctx, taskID, models.StageDone, &future))

	last, err := s.LastGeneratedDate(ctx, genID)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.True(t, occurrence.Equal(*last))
}

func TestGetTaskNotFound(t *testing.T) {
	s := setupStorage(t)

	_, err := s.GetTask(context.Background(), 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStorageErrorWrapping(t *testing.T) {
	inner := errors.New("disk on fire")
	err := storageErr("create task", inner)

	var sErr *StorageError
	require.ErrorAs(t, err, &sErr)
	assert.Equal(t, "create task", sErr.Op)
	assert.ErrorIs(t, err, inner)

	assert.NoError(t, storageErr("noop", nil))
}
