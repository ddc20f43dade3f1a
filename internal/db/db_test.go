// Copyright 2025 SAP SE
// SPDX-License-Identifier: Apache-2.0

package db

import (
	"database/sql"
	"testing"

	"github.com/go-gorp/gorp"
	_ "github.com/mattn/go-sqlite3"
)

type mockTable struct {
	ID  string `db:"id,primarykey"`
	Val string `db:"val"`
}

func (mockTable) TableName() string { return "mock_table" }

func newSqliteDB(t *testing.T) DB {
	tmpDir := t.TempDir()
	sqlDB, err := sql.Open("sqlite3", tmpDir+"/test.db")
	if err != nil {
		t.Fatal(err)
	}
	return DB{DbMap: &gorp.DbMap{Db: sqlDB, Dialect: gorp.SqliteDialect{}}}
}

func TestCreateTable(t *testing.T) {
	testDB := newSqliteDB(t)
	defer testDB.Close()

	table := testDB.AddTable(mockTable{})
	if err := testDB.CreateTable(table); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Creating the same table twice should be a no-op (IF NOT EXISTS).
	if err := testDB.CreateTable(table); err != nil {
		t.Fatalf("expected no error on second create, got %v", err)
	}
}

func TestUpsert(t *testing.T) {
	testDB := newSqliteDB(t)
	defer testDB.Close()

	table := testDB.AddTable(mockTable{})
	if err := testDB.CreateTable(table); err != nil {
		t.Fatal(err)
	}

	if err := Upsert(testDB.DbMap, &mockTable{ID: "1", Val: "first"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	// Same primary key again should update, not fail.
	if err := Upsert(testDB.DbMap, &mockTable{ID: "1", Val: "second"}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	var val string
	if err := testDB.SelectOne(&val, "SELECT val FROM mock_table WHERE id = '1'"); err != nil {
		t.Fatal(err)
	}
	if val != "second" {
		t.Errorf("expected val to be 'second', got %q", val)
	}
	count, err := testDB.SelectInt("SELECT COUNT(*) FROM mock_table")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}
}
