// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage is the durable event store: an append-only log of stage
// transitions per task, a mutable task-attributes table, and the generator
// table. All mutating operations commit synchronously before returning; the
// model is single-process, single-writer.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/wordtinker/TaskTools/internal/config"
	applog "github.com/wordtinker/TaskTools/internal/logger"
	"github.com/wordtinker/TaskTools/internal/storage/models"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := applog.GetStorageLogger()
		log = &l
	})
	return log
}

// GormStorage wraps the GORM database connection
type GormStorage struct {
	db *gorm.DB
}

// NewGormStorage creates a new GORM database connection
func NewGormStorage(cfg *config.DatabaseConfig) (*GormStorage, error) {
	var dialector gorm.Dialector

	switch cfg.Driver {
	case "sqlite":
		dialector = sqlite.Open(cfg.GetDSN())
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent), // Reduce GORM log noise
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &GormStorage{db: db}, nil
}

// AutoMigrate runs database migrations
func (s *GormStorage) AutoMigrate() error {
	err := s.db.AutoMigrate(
		&models.Task{},
		&models.StageEvent{},
		&models.Generator{},
	)
	if err != nil {
		return err
	}
	getLog().Debug().Msg("Database migrated")
	return nil
}

// Close closes the database connection
func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// TaskParams carries everything needed to create a task together with its
// first stage event.
type TaskParams struct {
	Text        string
	Project     models.Project
	Stage       models.Stage
	Valid       *time.Time
	Deadline    *time.Time
	GeneratedBy *int64
	// Date is the effective date of the first stage event. Nil means today.
	Date *time.Time
}

// TaskState is one row of the current-stage projection: a task's attributes
// together with the stage of its highest-sequence event.
type TaskState struct {
	TaskID   int64
	Project  models.Project
	Stage    models.Stage
	Text     string
	Valid    *time.Time
	Deadline *time.Time
}

// ReportRow is one row of the report-range projection. Stage and Date come
// from the task's highest-sequence event dated at or before the report finish.
type ReportRow struct {
	TaskID   int64
	Text     string
	Project  models.Project
	Stage    models.Stage
	Date     time.Time
	Valid    *time.Time
	Deadline *time.Time
}

// CreateTask inserts the attributes row and the first stage event as one
// transaction. A task record is meaningless with no current stage, so the two
// writes never commit separately.
func (s *GormStorage) CreateTask(ctx context.Context, p TaskParams) (int64, error) {
	if strings.TrimSpace(p.Text) == "" {
		return 0, &ValidationError{Field: "text", Reason: "cannot be empty"}
	}
	if _, err := p.Project.Value(); err != nil {
		return 0, &ValidationError{Field: "project", Reason: err.Error()}
	}
	if _, err := p.Stage.Value(); err != nil {
		return 0, &ValidationError{Field: "stage", Reason: err.Error()}
	}

	task := models.Task{
		Text:        p.Text,
		Project:     p.Project,
		Valid:       normalizeDate(p.Valid),
		Deadline:    normalizeDate(p.Deadline),
		GeneratedBy: p.GeneratedBy,
	}
	date := models.Today()
	if p.Date != nil {
		date = models.DateOf(*p.Date)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		event := models.StageEvent{
			Stage:  p.Stage,
			Date:   date,
			TaskID: task.ID,
		}
		return tx.Create(&event).Error
	})
	if err != nil {
		return 0, storageErr("create task", err)
	}
	return task.ID, nil
}

// RecordStageChange appends a stage event for the task. It does not check
// that the new stage differs from the current one; duplicate consecutive
// events are permitted and harmless for current-stage queries.
func (s *GormStorage) RecordStageChange(ctx context.Context, taskID int64, stage models.Stage, date *time.Time) error {
	if _, err := stage.Value(); err != nil {
		return &ValidationError{Field: "stage", Reason: err.Error()}
	}

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Task{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
		return storageErr("record stage change", err)
	}
	if count == 0 {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}

	effective := models.Today()
	if date != nil {
		effective = models.DateOf(*date)
	}
	event := models.StageEvent{Stage: stage, Date: effective, TaskID: taskID}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return storageErr("record stage change", err)
	}
	return nil
}

// UpdateAttributes overwrites the task's attributes row. Stage history is not
// touched.
func (s *GormStorage) UpdateAttributes(ctx context.Context, taskID int64, text string, project models.Project, valid, deadline *time.Time) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Reason: "cannot be empty"}
	}
	if _, err := project.Value(); err != nil {
		return &ValidationError{Field: "project", Reason: err.Error()}
	}

	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Updates(map[string]any{
			"text":     text,
			"project":  project,
			"valid":    normalizeDate(valid),
			"deadline": normalizeDate(deadline),
		})
	if result.Error != nil {
		return storageErr("update attributes", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return nil
}

// SetProject moves the task to another project category.
func (s *GormStorage) SetProject(ctx context.Context, taskID int64, project models.Project) error {
	if _, err := project.Value(); err != nil {
		return &ValidationError{Field: "project", Reason: err.Error()}
	}

	result := s.db.WithContext(ctx).Model(&models.Task{}).
		Where("id = ?", taskID).
		Update("project", project)
	if result.Error != nil {
		return storageErr("set project", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
	}
	return nil
}

// DeleteTask deletes the attributes row and every stage event of the task.
// Deleting an absent id is a no-op.
func (s *GormStorage) DeleteTask(ctx context.Context, taskID int64) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", taskID).Delete(&models.StageEvent{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Task{}, "id = ?", taskID).Error
	})
	return storageErr("delete task", err)
}

// CreateGenerator inserts a new generator and returns its id.
func (s *GormStorage) CreateGenerator(ctx context.Context, gen *models.Generator) (int64, error) {
	if err := validateGenerator(gen); err != nil {
		return 0, err
	}
	if err := s.db.WithContext(ctx).Create(gen).Error; err != nil {
		return 0, storageErr("create generator", err)
	}
	return gen.ID, nil
}

// UpdateGenerator overwrites a generator in place. Generators carry no
// history.
func (s *GormStorage) UpdateGenerator(ctx context.Context, gen *models.Generator) error {
	if err := validateGenerator(gen); err != nil {
		return err
	}
	result := s.db.WithContext(ctx).Model(&models.Generator{}).
		Where("id = ?", gen.ID).
		Updates(map[string]any{
			"kind":          gen.Kind,
			"shift":         gen.Shift,
			"text":          gen.Text,
			"project":       gen.Project,
			"initial_stage": gen.InitialStage,
			"valid_days":    gen.ValidDays,
			"deadline_days": gen.DeadlineDays,
		})
	if result.Error != nil {
		return storageErr("update generator", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("generator %d: %w", gen.ID, ErrNotFound)
	}
	return nil
}

// DeleteGenerator deletes a generator. Tasks it produced keep their
// generated_by reference for history. Deleting an absent id is a no-op.
func (s *GormStorage) DeleteGenerator(ctx context.Context, genID int64) error {
	err := s.db.WithContext(ctx).Delete(&models.Generator{}, "id = ?", genID).Error
	return storageErr("delete generator", err)
}

// ListGenerators retrieves all generators ordered by id.
func (s *GormStorage) ListGenerators(ctx context.Context) ([]models.Generator, error) {
	var gens []models.Generator
	err := s.db.WithContext(ctx).Order("id ASC").Find(&gens).Error
	if err != nil {
		return nil, storageErr("list generators", err)
	}
	return gens, nil
}

// CurrentTaskStages returns, for every task, the stage of its
// highest-sequence event, filtered by the today-visibility predicate:
// the validity window has opened or is absent, and the task is not
// stale-done (terminal stage dated strictly before today). A task marked
// done today still shows.
func (s *GormStorage) CurrentTaskStages(ctx context.Context, today time.Time) ([]TaskState, error) {
	day := models.DateOf(today)
	var states []TaskState
	err := s.db.WithContext(ctx).Raw(`
		SELECT e.task_id AS task_id, t.project AS project, e.stage AS stage,
		       t.text AS text, t.valid AS valid, t.deadline AS deadline
		FROM stage_events e
		INNER JOIN tasks t ON t.id = e.task_id
		WHERE e.seq = (SELECT MAX(e2.seq) FROM stage_events e2 WHERE e2.task_id = e.task_id)
		  AND (t.valid >= ? OR t.valid IS NULL)
		  AND NOT (e.stage = ? AND e.date < ?)
		ORDER BY e.task_id`,
		day, models.StageDone, day).
		Scan(&states).Error
	if err != nil {
		return nil, storageErr("current task stages", err)
	}
	return states, nil
}

// ReportRange returns, per task, the highest-sequence event dated at or
// before finish, excluding tasks already done before the window opened and
// tasks whose validity window opens before start. One pass over the log, not
// one query per task.
func (s *GormStorage) ReportRange(ctx context.Context, start, finish time.Time) ([]ReportRow, error) {
	from := models.DateOf(start)
	to := models.DateOf(finish)
	var rows []ReportRow
	err := s.db.WithContext(ctx).Raw(`
		SELECT e.task_id AS task_id, t.text AS text, t.project AS project,
		       e.stage AS stage, e.date AS date, t.valid AS valid, t.deadline AS deadline
		FROM stage_events e
		INNER JOIN tasks t ON t.id = e.task_id
		WHERE e.seq = (SELECT MAX(e2.seq) FROM stage_events e2
		               WHERE e2.task_id = e.task_id AND e2.date <= ?)
		  AND (t.valid >= ? OR t.valid IS NULL)
		  AND NOT (e.stage = ? AND e.date < ?)
		ORDER BY e.task_id`,
		to, from, models.StageDone, from).
		Scan(&rows).Error
	if err != nil {
		return nil, storageErr("report range", err)
	}
	return rows, nil
}

// StagesBefore returns the task's stage events dated at or before finish,
// excluding events with the given stage, in insertion order. Reporting uses
// it to reconstruct the stage a task transitioned from.
func (s *GormStorage) StagesBefore(ctx context.Context, taskID int64, finish time.Time, excluding models.Stage) ([]models.StageEvent, error) {
	var events []models.StageEvent
	err := s.db.WithContext(ctx).
		Where("task_id = ? AND date <= ? AND stage <> ?", taskID, models.DateOf(finish), excluding).
		Order("seq ASC").
		Find(&events).Error
	if err != nil {
		return nil, storageErr("stages before", err)
	}
	return events, nil
}

// LastGeneratedDate returns the maximum event date among tasks produced by
// the generator, considering only each task's first (lowest-sequence) event:
// a generated task's generation date is fixed at creation and must not drift
// when the task later moves to another stage dated differently. Returns nil
// if the generator has never produced a task.
func (s *GormStorage) LastGeneratedDate(ctx context.Context, genID int64) (*time.Time, error) {
	var row struct {
		Date time.Time
	}
	result := s.db.WithContext(ctx).
		Table("stage_events AS e").
		Select("e.date AS date").
		Joins("INNER JOIN tasks t ON t.id = e.task_id").
		Where("t.generated_by = ?", genID).
		Where("e.seq = (SELECT MIN(e2.seq) FROM stage_events e2 WHERE e2.task_id = e.task_id)").
		Order("e.date DESC").
		Limit(1).
		Scan(&row)
	if result.Error != nil {
		return nil, storageErr("last generated date", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	date := models.DateOf(row.Date)
	return &date, nil
}

// GetTask retrieves a single task's attributes row.
func (s *GormStorage) GetTask(ctx context.Context, taskID int64) (*models.Task, error) {
	var task models.Task
	err := s.db.WithContext(ctx).First(&task, "id = ?", taskID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		return nil, storageErr("get task", err)
	}
	return &task, nil
}

// validateGenerator rejects malformed generator definitions before any store
// call. Monthly shifts above 28 would skip short months, so they are refused
// up front.
func validateGenerator(gen *models.Generator) error {
	if strings.TrimSpace(gen.Text) == "" {
		return &ValidationError{Field: "text", Reason: "cannot be empty"}
	}
	if _, err := gen.Kind.Value(); err != nil {
		return &ValidationError{Field: "kind", Reason: err.Error()}
	}
	if _, err := gen.Project.Value(); err != nil {
		return &ValidationError{Field: "project", Reason: err.Error()}
	}
	if _, err := gen.InitialStage.Value(); err != nil {
		return &ValidationError{Field: "stage", Reason: err.Error()}
	}
	switch gen.Kind {
	case models.GeneratorDaily:
		if gen.Shift < 1 {
			return &ValidationError{Field: "shift", Reason: "daily interval must be at least 1 day"}
		}
	case models.GeneratorMonthly:
		if gen.Shift < 1 || gen.Shift > 28 {
			return &ValidationError{Field: "shift", Reason: "day of month must be between 1 and 28"}
		}
	}
	return nil
}

func normalizeDate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}
