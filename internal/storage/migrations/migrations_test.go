package migrations

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestEmbeddedFiles(t *testing.T) {
	pg, err := files(PostgresFS, "postgres")
	if err != nil {
		t.Fatalf("files(postgres) failed: %v", err)
	}
	if len(pg) != 3 || pg[0] != "001_series.sql" {
		t.Errorf("Unexpected postgres migrations: %v", pg)
	}

	ch, err := files(ClickhouseFS, "clickhouse")
	if err != nil {
		t.Fatalf("files(clickhouse) failed: %v", err)
	}
	if len(ch) != 3 {
		t.Errorf("Unexpected clickhouse migrations: %v", ch)
	}
}

func TestClickhouseStatements(t *testing.T) {
	stmts, err := clickhouseStatements(ClickhouseFS)
	if err != nil {
		t.Fatalf("clickhouseStatements failed: %v", err)
	}

	var tables []string
	for _, st := range stmts {
		if !strings.HasPrefix(st.sql, "CREATE TABLE IF NOT EXISTS") {
			t.Errorf("%s: unexpected statement %q", st.file, st.sql)
		}
		tables = append(tables, strings.Fields(st.sql)[5])
	}

	want := []string{"evaluation_results", "selection_decisions", "group_decisions", "robustness_summaries"}
	if strings.Join(tables, ",") != strings.Join(want, ",") {
		t.Errorf("tables = %v, want %v", tables, want)
	}
	if stmts[0].file != "001_evaluations.sql" {
		t.Errorf("first statement from %s, want 001_evaluations.sql", stmts[0].file)
	}
}

func TestClickhouseStatements_RejectsBadFile(t *testing.T) {
	fsys := fstest.MapFS{
		"clickhouse/001_ok.sql":  {Data: []byte("CREATE TABLE IF NOT EXISTS a (x UInt8);")},
		"clickhouse/002_bad.sql": {Data: []byte("INSERT INTO a VALUES ('x;y');")},
	}

	_, err := clickhouseStatements(fsys)
	if err == nil || !strings.Contains(err.Error(), "002_bad.sql") {
		t.Errorf("expected error naming 002_bad.sql, got %v", err)
	}
}

func TestSplitStatements(t *testing.T) {
	sql := "-- header\nCREATE TABLE a (x UInt8);\n\n-- next\nCREATE TABLE b (y UInt8);\n"
	stmts := splitStatements(sql)
	if len(stmts) != 2 {
		t.Fatalf("Expected 2 statements, got %d: %q", len(stmts), stmts)
	}
	if stmts[1] != "CREATE TABLE b (y UInt8)" {
		t.Errorf("Unexpected statement: %q", stmts[1])
	}
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	if err := validateNoSemicolonInStrings("SELECT 'it''s fine'"); err != nil {
		t.Errorf("Escaped quote rejected: %v", err)
	}
	if err := validateNoSemicolonInStrings("SELECT 'a;b'"); err == nil {
		t.Error("Expected error for semicolon in string")
	}
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://u:p@localhost:9000/eb")
	if err != nil || db != "eb" {
		t.Errorf("databaseFromDSN = %q, %v", db, err)
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000"); err == nil {
		t.Error("Expected error for missing database")
	}
	if _, err := databaseFromDSN("clickhouse://localhost:9000/eb;DROP"); err == nil {
		t.Error("Expected error for unsafe database name")
	}
}
