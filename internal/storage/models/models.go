// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package models

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"
)

// Stage is a workflow stage a task can be in. The persisted form is
// "<Name>;<Label>" so that reordering declarations never corrupts stored data.
type Stage string

const (
	StageIncoming Stage = "Incoming"
	StageBacklog  Stage = "Backlog"
	StageToDo     Stage = "ToDo"
	StageToday    Stage = "Today"
	StageDoing    Stage = "Doing"
	StageWaiting  Stage = "Waiting"
	StageDone     Stage = "Done"
)

// stageLabels maps stage names to their display labels.
var stageLabels = map[Stage]string{
	StageIncoming: "Incoming",
	StageBacklog:  "Backlog",
	StageToDo:     "ToDo",
	StageToday:    "Today",
	StageDoing:    "Doing",
	StageWaiting:  "Waiting",
	StageDone:     "Done",
}

// Stages lists all stages in workflow order.
func Stages() []Stage {
	return []Stage{
		StageIncoming, StageBacklog, StageToDo, StageToday,
		StageDoing, StageWaiting, StageDone,
	}
}

// String returns the display label of the stage.
func (s Stage) String() string {
	if label, ok := stageLabels[s]; ok {
		return label
	}
	return string(s)
}

// Value implements the driver.Valuer interface.
func (s Stage) Value() (driver.Value, error) {
	label, ok := stageLabels[s]
	if !ok {
		return nil, fmt.Errorf("unknown stage: %q", string(s))
	}
	return encodeEnum(string(s), label), nil
}

// Scan implements the sql.Scanner interface.
func (s *Stage) Scan(value any) error {
	name, err := decodeEnum(value)
	if err != nil {
		return fmt.Errorf("scan stage: %w", err)
	}
	if _, ok := stageLabels[Stage(name)]; !ok {
		return fmt.Errorf("scan stage: unrecognized name %q", name)
	}
	*s = Stage(name)
	return nil
}

// ParseStage resolves a stage from its name or display label.
func ParseStage(v string) (Stage, error) {
	for name, label := range stageLabels {
		if v == string(name) || v == label {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown stage: %q", v)
}

// Project is a project category a task belongs to.
type Project string

const (
	ProjectMoney         Project = "Money"
	ProjectHealth        Project = "Health"
	ProjectBusiness      Project = "Business"
	ProjectFun           Project = "Fun"
	ProjectRelationships Project = "Relationships"
	ProjectDevelopment   Project = "Development"
	ProjectEnvironment   Project = "Environment"
)

var projectLabels = map[Project]string{
	ProjectMoney:         "Money",
	ProjectHealth:        "Health",
	ProjectBusiness:      "Business",
	ProjectFun:           "Fun",
	ProjectRelationships: "Friends & Family",
	ProjectDevelopment:   "Self-development",
	ProjectEnvironment:   "Environment",
}

// Projects lists all project categories in display order.
func Projects() []Project {
	return []Project{
		ProjectMoney, ProjectHealth, ProjectBusiness, ProjectFun,
		ProjectRelationships, ProjectDevelopment, ProjectEnvironment,
	}
}

// String returns the display label of the project.
func (p Project) String() string {
	if label, ok := projectLabels[p]; ok {
		return label
	}
	return string(p)
}

// Value implements the driver.Valuer interface.
func (p Project) Value() (driver.Value, error) {
	label, ok := projectLabels[p]
	if !ok {
		return nil, fmt.Errorf("unknown project: %q", string(p))
	}
	return encodeEnum(string(p), label), nil
}

// Scan implements the sql.Scanner interface.
func (p *Project) Scan(value any) error {
	name, err := decodeEnum(value)
	if err != nil {
		return fmt.Errorf("scan project: %w", err)
	}
	if _, ok := projectLabels[Project(name)]; !ok {
		return fmt.Errorf("scan project: unrecognized name %q", name)
	}
	*p = Project(name)
	return nil
}

// ParseProject resolves a project from its name or display label.
func ParseProject(v string) (Project, error) {
	for name, label := range projectLabels {
		if v == string(name) || v == label {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown project: %q", v)
}

// GeneratorKind is the recurrence pattern of a generator.
type GeneratorKind string

const (
	GeneratorDaily   GeneratorKind = "Daily"
	GeneratorMonthly GeneratorKind = "Monthly"
)

var generatorLabels = map[GeneratorKind]string{
	GeneratorDaily:   "Daily",
	GeneratorMonthly: "Monthly",
}

// String returns the display label of the generator kind.
func (k GeneratorKind) String() string {
	if label, ok := generatorLabels[k]; ok {
		return label
	}
	return string(k)
}

// Value implements the driver.Valuer interface.
func (k GeneratorKind) Value() (driver.Value, error) {
	label, ok := generatorLabels[k]
	if !ok {
		return nil, fmt.Errorf("unknown generator kind: %q", string(k))
	}
	return encodeEnum(string(k), label), nil
}

// Scan implements the sql.Scanner interface.
func (k *GeneratorKind) Scan(value any) error {
	name, err := decodeEnum(value)
	if err != nil {
		return fmt.Errorf("scan generator kind: %w", err)
	}
	if _, ok := generatorLabels[GeneratorKind(name)]; !ok {
		return fmt.Errorf("scan generator kind: unrecognized name %q", name)
	}
	*k = GeneratorKind(name)
	return nil
}

// ParseGeneratorKind resolves a generator kind from its name or display label.
func ParseGeneratorKind(v string) (GeneratorKind, error) {
	for name, label := range generatorLabels {
		if v == string(name) || v == label {
			return name, nil
		}
	}
	return "", fmt.Errorf("unknown generator kind: %q", v)
}

// encodeEnum renders the stored form of an enum value.
func encodeEnum(name, label string) string {
	return name + ";" + label
}

// decodeEnum extracts the enum name from a stored "<Name>;<Label>" value.
func decodeEnum(value any) (string, error) {
	var raw string
	switch v := value.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	default:
		return "", fmt.Errorf("cannot decode enum from %T", value)
	}
	name, _, ok := strings.Cut(raw, ";")
	if !ok {
		return "", fmt.Errorf("malformed enum value %q", raw)
	}
	return name, nil
}

// Task represents the GORM model for task attributes. Attributes are a plain
// mutable row; stage history lives in StageEvent.
type Task struct {
	ID          int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	Text        string     `gorm:"not null;type:text" json:"text"`
	Project     Project    `gorm:"not null;type:text" json:"project"`
	Valid       *time.Time `gorm:"type:date" json:"valid"`
	Deadline    *time.Time `gorm:"type:date" json:"deadline"`
	GeneratedBy *int64     `gorm:"index" json:"generated_by"`

	// Relations
	StageEvents []StageEvent `gorm:"foreignKey:TaskID;constraint:OnDelete:CASCADE" json:"stage_events,omitempty"`
}

// TableName returns the table name for Task
func (Task) TableName() string {
	return "tasks"
}

// StageEvent is an immutable stage transition fact. Seq is the stored
// insertion sequence; all "latest stage" queries order by it, never by Date,
// because a backfilled historical event may be inserted after later ones.
type StageEvent struct {
	Seq    int64     `gorm:"primaryKey;autoIncrement" json:"seq"`
	Stage  Stage     `gorm:"not null;type:text" json:"stage"`
	Date   time.Time `gorm:"not null;type:date;index" json:"date"`
	TaskID int64     `gorm:"not null;index" json:"task_id"`
}

// TableName returns the table name for StageEvent
func (StageEvent) TableName() string {
	return "stage_events"
}

// Generator is a recurrence pattern. Edits overwrite in place; it carries no
// history. ValidDays and DeadlineDays are offsets in days from the occurrence
// date, not absolute dates.
type Generator struct {
	ID           int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Kind         GeneratorKind `gorm:"not null;type:text" json:"kind"`
	Shift        int           `gorm:"not null" json:"shift"`
	Text         string        `gorm:"not null;type:text" json:"text"`
	Project      Project       `gorm:"not null;type:text" json:"project"`
	InitialStage Stage         `gorm:"not null;type:text;column:initial_stage" json:"initial_stage"`
	ValidDays    *int          `json:"valid_days"`
	DeadlineDays *int          `json:"deadline_days"`
}

// TableName returns the table name for Generator
func (Generator) TableName() string {
	return "generators"
}

// Date returns a date-only instant (UTC midnight). All dates in the store are
// normalized to this form so that comparisons behave as calendar-date
// comparisons.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates an instant to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return Date(y, m, d)
}

// Today returns the current calendar date.
func Today() time.Time {
	return DateOf(time.Now())
}
