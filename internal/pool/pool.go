// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pool holds the in-memory projection of the live task set: tasks
// passing the today-visibility predicate. It is built once from the store and
// kept current by explicit add/edit/drop operations, which notify subscribed
// listeners so presentation layers can route items to the correct
// stage-by-project bucket without re-querying the whole store.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wordtinker/TaskTools/internal/logger"
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
		l := logger.GetPoolLogger()
		log = &l
	})
	return log
}

// Task is the projection's view of a live task.
type Task struct {
	ID       int64
	Text     string
	Project  models.Project
	Stage    models.Stage
	Valid    *time.Time
	Deadline *time.Time
}

// Listener receives membership-change notifications. An edited task that
// changes stage or project is reported as a drop from the old bucket followed
// by an add to the new one.
type Listener interface {
	TaskAdded(taskID int64, stage models.Stage, project models.Project)
	TaskDropped(taskID int64, stage models.Stage, project models.Project)
}

// Store is the slice of the event store the pool drives.
type Store interface {
	CreateTask(ctx context.Context, p storage.TaskParams) (int64, error)
	RecordStageChange(ctx context.Context, taskID int64, stage models.Stage, date *time.Time) error
	UpdateAttributes(ctx context.Context, taskID int64, text string, project models.Project, valid, deadline *time.Time) error
	SetProject(ctx context.Context, taskID int64, project models.Project) error
	DeleteTask(ctx context.Context, taskID int64) error
	CurrentTaskStages(ctx context.Context, today time.Time) ([]storage.TaskState, error)
}

// TaskPool maintains the live visible task set keyed by task id.
type TaskPool struct {
	store     Store
	tasks     map[int64]*Task
	listeners []Listener
}

// New creates an empty task pool over the given store.
func New(store Store) *TaskPool {
	return &TaskPool{
		store: store,
		tasks: make(map[int64]*Task),
	}
}

// Subscribe registers a listener for membership changes.
func (p *TaskPool) Subscribe(l Listener) {
	p.listeners = append(p.listeners, l)
}

// Load builds the projection from the store's current-stage query.
func (p *TaskPool) Load(ctx context.Context, today time.Time) error {
	states, err := p.store.CurrentTaskStages(ctx, today)
	if err != nil {
		return fmt.Errorf("failed to load task pool: %w", err)
	}
	for _, st := range states {
		p.insert(Task{
			ID:       st.TaskID,
			Text:     st.Text,
			Project:  st.Project,
			Stage:    st.Stage,
			Valid:    st.Valid,
			Deadline: st.Deadline,
		})
	}
	getLog().Debug().Int("tasks", len(states)).Msg("Task pool loaded")
	return nil
}

// AddTask writes a new task to the store and surfaces it in the pool.
func (p *TaskPool) AddTask(ctx context.Context, text string, project models.Project, stage models.Stage, valid, deadline *time.Time) (int64, error) {
	id, err := p.store.CreateTask(ctx, storage.TaskParams{
		Text:     text,
		Project:  project,
		Stage:    stage,
		Valid:    valid,
		Deadline: deadline,
	})
	if err != nil {
		return 0, err
	}
	p.insert(Task{
		ID:       id,
		Text:     text,
		Project:  project,
		Stage:    stage,
		Valid:    valid,
		Deadline: deadline,
	})
	return id, nil
}

// EditTask applies exactly the store calls the change needs: a stage event
// only if the stage changed, an attributes update only if any attribute
// changed. Listeners see a drop/add pair when the task moves buckets.
func (p *TaskPool) EditTask(ctx context.Context, taskID int64, text string, project models.Project, stage models.Stage, valid, deadline *time.Time) error {
	task, ok := p.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %d: %w", taskID, storage.ErrNotFound)
	}

	oldStage := task.Stage
	oldProject := task.Project

	if oldStage != stage {
		if err := p.store.RecordStageChange(ctx, taskID, stage, nil); err != nil {
			return err
		}
		task.Stage = stage
	}

	if task.Text != text || oldProject != project ||
		!sameDate(task.Valid, valid) || !sameDate(task.Deadline, deadline) {
		if err := p.store.UpdateAttributes(ctx, taskID, text, project, valid, deadline); err != nil {
			return err
		}
		task.Text = text
		task.Project = project
		task.Valid = valid
		task.Deadline = deadline
	}

	if oldStage != stage || oldProject != project {
		p.notifyDropped(taskID, oldStage, oldProject)
		p.notifyAdded(taskID, task.Stage, task.Project)
	}
	return nil
}

// MoveTask moves a task to another stage and/or project bucket, recording a
// stage event and updating the project column only where they changed.
func (p *TaskPool) MoveTask(ctx context.Context, taskID int64, stage models.Stage, project models.Project) error {
	task, ok := p.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %d: %w", taskID, storage.ErrNotFound)
	}

	if task.Stage != stage {
		if err := p.store.RecordStageChange(ctx, taskID, stage, nil); err != nil {
			return err
		}
		task.Stage = stage
	}
	if task.Project != project {
		if err := p.store.SetProject(ctx, taskID, project); err != nil {
			return err
		}
		task.Project = project
	}
	return nil
}

// DropTask deletes the task from the store (cascading to its stage events)
// and removes it from the pool.
func (p *TaskPool) DropTask(ctx context.Context, taskID int64) error {
	task, ok := p.tasks[taskID]
	if !ok {
		return fmt.Errorf("task %d: %w", taskID, storage.ErrNotFound)
	}
	stage := task.Stage
	project := task.Project

	if err := p.store.DeleteTask(ctx, taskID); err != nil {
		return err
	}
	delete(p.tasks, taskID)
	p.notifyDropped(taskID, stage, project)
	return nil
}

// Surface inserts an already-persisted task into the projection. The
// recurrence engine uses it for backfilled instances that pass the visibility
// predicate.
func (p *TaskPool) Surface(t Task) {
	p.insert(t)
}

// Get returns the pooled task with the given id.
func (p *TaskPool) Get(taskID int64) (Task, bool) {
	task, ok := p.tasks[taskID]
	if !ok {
		return Task{}, false
	}
	return *task, true
}

// TaskName returns the text of the pooled task, or "" when absent.
func (p *TaskPool) TaskName(taskID int64) string {
	if task, ok := p.tasks[taskID]; ok {
		return task.Text
	}
	return ""
}

// Tasks returns a snapshot of the live task set.
func (p *TaskPool) Tasks() []Task {
	out := make([]Task, 0, len(p.tasks))
	for _, task := range p.tasks {
		out = append(out, *task)
	}
	return out
}

func (p *TaskPool) insert(t Task) {
	stored := t
	p.tasks[t.ID] = &stored
	p.notifyAdded(t.ID, t.Stage, t.Project)
}

func (p *TaskPool) notifyAdded(taskID int64, stage models.Stage, project models.Project) {
	for _, l := range p.listeners {
		l.TaskAdded(taskID, stage, project)
	}
}

func (p *TaskPool) notifyDropped(taskID int64, stage models.Stage, project models.Project) {
	for _, l := range p.listeners {
		l.TaskDropped(taskID, stage, project)
	}
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return models.DateOf(*a).Equal(models.DateOf(*b))
}
