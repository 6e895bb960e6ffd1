// Copyright (C) 2026 wordtinker
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"time"

	"github.com/wordtinker/TaskTools/internal/config"
	"github.com/wordtinker/TaskTools/internal/logger"
	"github.com/wordtinker/TaskTools/internal/pool"
	"github.com/wordtinker/TaskTools/internal/recurrence"
	"github.com/wordtinker/TaskTools/internal/storage"
	"github.com/wordtinker/TaskTools/internal/storage/models"
)

// app wires the storage, pool and recurrence engine for one command
// invocation.
type app struct {
	cfg    *config.AppConfig
	store  *storage.GormStorage
	pool   *pool.TaskPool
	engine *recurrence.Engine
}

func openApp(configPath string) (*app, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	store, err := storage.NewGormStorage(&cfg.Database)
	if err != nil {
		return nil, err
	}
	if err := store.AutoMigrate(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	log := logger.GetCLILogger()
	log.Debug().Str("database", cfg.Database.Database).Msg("Application wired")

	taskPool := pool.New(store)
	return &app{
		cfg:    cfg,
		store:  store,
		pool:   taskPool,
		engine: recurrence.New(store, taskPool),
	}, nil
}

func (a *app) Close() {
	a.store.Close()
	logger.CloseGlobal()
}

// parseDate parses an ISO calendar date flag value.
func parseDate(v string) (*time.Time, error) {
	if v == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", v)
	}
	d := models.DateOf(t)
	return &d, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
