// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"context"
	"database/sql"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/cobaltcore-dev/mirror/internal/conf"
	"github.com/cobaltcore-dev/mirror/internal/monitoring"
	"github.com/dlmiddlecote/sqlstats"
	"github.com/go-gorp/gorp"
	_ "github.com/lib/pq"
	"github.com/sapcc/go-bits/easypg"
)

// Wrapper around gorp.DbMap that adds some convenience functions.
type DB struct {
	*gorp.DbMap
	DBConfig conf.DBConfig
	monitor  Monitor
}

type Table interface {
	TableName() string
}

// Create a new postgres database and wait until it is connected.
func NewPostgresDB(ctx context.Context, c conf.DBConfig, registry *monitoring.Registry, monitor Monitor) DB {
	stripYaml := func(s string) string { return strings.ReplaceAll(s, "\n", "") }
	dbURL, err := easypg.URLFrom(easypg.URLParts{
		HostName:          stripYaml(c.Host),
		Port:              strconv.Itoa(c.Port),
		UserName:          stripYaml(c.User),
		Password:          stripYaml(c.Password),
		ConnectionOptions: "sslmode=disable",
		DatabaseName:      stripYaml(c.Database),
	})
	if err != nil {
		panic(err)
	}
	slog.Info("connecting to database", "host", c.Host, "database", c.Database)
	db, err := sql.Open("postgres", dbURL.String())
	if err != nil {
		panic(err)
	}

	retryInterval := time.Duration(c.Reconnect.RetryIntervalSeconds) * time.Second
	if retryInterval <= 0 {
		retryInterval = time.Second
	}
	maxRetries := c.Reconnect.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 10
	}
	var sqlDB *sql.DB
	for i := range maxRetries {
		if monitor.connectionAttempts != nil {
			monitor.connectionAttempts.Inc()
		}
		if err := db.PingContext(ctx); err == nil {
			sqlDB = db
			break
		} else {
			if i == maxRetries-1 {
				panic("giving up connecting to database")
			}
			slog.Error("failed to connect to database, retrying...", "error", err)
			time.Sleep(retryInterval)
		}
	}

	sqlDB.SetMaxOpenConns(16)
	if registry != nil {
		registry.MustRegister(sqlstats.NewStatsCollector(c.Database, sqlDB))
	}
	dbMap := &gorp.DbMap{Db: sqlDB, Dialect: gorp.PostgresDialect{}}
	slog.Info("database is ready")
	return DB{DBConfig: c, DbMap: dbMap, monitor: monitor}
}

// Ping the database periodically to check if it is still alive.
// Panics when the database is not reachable for too long.
func (d *DB) CheckLivenessPeriodically(ctx context.Context) {
	interval := time.Duration(d.DBConfig.Reconnect.LivenessPingIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			slog.Info("database liveness check shutting down")
			return
		case <-time.After(interval):
			failures := 0
			for {
				if err := d.Db.PingContext(ctx); err == nil {
					break
				}
				failures++
				if d.monitor.connectionAttempts != nil {
					d.monitor.connectionAttempts.Inc()
				}
				if failures >= max(d.DBConfig.Reconnect.MaxRetries, 1) {
					panic("database is not reachable")
				}
				slog.Error("database ping failed, retrying...", "failures", failures)
				time.Sleep(time.Duration(max(d.DBConfig.Reconnect.RetryIntervalSeconds, 1)) * time.Second)
			}
		}
	}
}

// Adds missing functionality to gorp.DbMap which creates one table.
func (d *DB) CreateTable(table ...*gorp.TableMap) error {
	tx, err := d.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		return err
	}
	for _, t := range table {
		slog.Info("creating table", "table", t.TableName)
		sql := t.SqlForCreate(true) // true means to add IF NOT EXISTS
		if _, err := tx.Exec(sql); err != nil {
			return tx.Rollback()
		}
	}
	return tx.Commit()
}

// Adds a Model table to the database.
func (d *DB) AddTable(t Table) *gorp.TableMap {
	slog.Info("adding table", "table", t.TableName())
	return d.AddTableWithName(t, t.TableName())
}

// Check if a table exists in the database.
func (d *DB) TableExists(t Table) bool {
	query := `SELECT EXISTS (
		SELECT 1
		FROM   information_schema.tables
		WHERE  table_name = :table_name
	);`
	var exists bool
	err := d.SelectOne(&exists, query, map[string]any{"table_name": t.TableName()})
	if err != nil {
		slog.Error("failed to check if table exists", "error", err)
		return false
	}
	return exists
}

// Convenience function to close the database connection.
func (d *DB) Close() {
	if err := d.DbMap.Db.Close(); err != nil {
		slog.Error("failed to close database connection", "error", err)
	}
}

// Database or transaction that supports update and insert methods.
type upsertable interface {
	Update(list ...interface{}) (int64, error)
	Insert(list ...interface{}) error
}

// Upsert a model into the database (Insert if possible, otherwise Update).
func Upsert(u upsertable, model any) error {
	if err := u.Insert(model); err != nil {
		if !isDuplicateKeyError(err) {
			return err
		}
		if _, err := u.Update(model); err != nil {
			return err
		}
	}
	return nil
}

// Matches both the postgres and the sqlite (tests) error message.
func isDuplicateKeyError(err error) bool {
	return strings.Contains(err.Error(), "duplicate key value violates unique constraint") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
