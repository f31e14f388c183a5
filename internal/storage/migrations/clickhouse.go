package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	chstore "eb-evaluation-lab/internal/storage/clickhouse"
)

// statement is one result-store DDL statement and the file it came from.
type statement struct {
	file string
	sql  string
}

// RunClickhouseMigrations creates the run-results database named by the DSN and
// applies the embedded result-store schema to it. Every statement is
// CREATE ... IF NOT EXISTS, so reapplying is harmless. The schema is parsed
// before any connection is opened. Returns a connection to the results database.
func RunClickhouseMigrations(ctx context.Context, dsn string) (_ *chstore.Conn, err error) {
	dbName, err := databaseFromDSN(dsn)
	if err != nil {
		return nil, err
	}
	stmts, err := clickhouseStatements(ClickhouseFS)
	if err != nil {
		return nil, err
	}

	if err := createDatabase(ctx, dsn, dbName); err != nil {
		return nil, err
	}

	conn, err := chstore.NewConnWithDatabase(ctx, dsn, dbName)
	if err != nil {
		return nil, fmt.Errorf("connect clickhouse db: %w", err)
	}
	defer func() {
		if err != nil {
			conn.Close()
		}
	}()

	for _, st := range stmts {
		if err := conn.Exec(ctx, st.sql); err != nil {
			return nil, fmt.Errorf("apply migration %s: %w", st.file, err)
		}
	}
	return conn, nil
}

func createDatabase(ctx context.Context, dsn, dbName string) error {
	admin, err := chstore.NewConnWithDatabase(ctx, dsn, "")
	if err != nil {
		return fmt.Errorf("connect clickhouse admin: %w", err)
	}
	if err := admin.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+dbName); err != nil {
		admin.Close()
		return fmt.Errorf("create database %s: %w", dbName, err)
	}
	if err := admin.Close(); err != nil {
		return fmt.Errorf("close admin connection: %w", err)
	}
	return nil
}

// clickhouseStatements reads every schema file in order and splits it into
// single statements; the driver does not run several statements in one Exec.
func clickhouseStatements(fsys fs.FS) ([]statement, error) {
	names, err := files(fsys, "clickhouse")
	if err != nil {
		return nil, err
	}

	var out []statement
	for _, name := range names {
		data, err := fs.ReadFile(fsys, "clickhouse/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := validateNoSemicolonInStrings(string(data)); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", name, err)
		}
		for _, sql := range splitStatements(string(data)) {
			out = append(out, statement{file: name, sql: sql})
		}
	}
	return out, nil
}

// splitStatements splits SQL content into statements by semicolon after
// dropping "--" comment lines. Semicolons inside string literals are not
// supported; validateNoSemicolonInStrings rejects them first.
func splitStatements(input string) []string {
	var kept []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}

	var stmts []string
	for _, part := range strings.Split(strings.Join(kept, "\n"), ";") {
		if stmt := strings.TrimSpace(part); stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings rejects semicolons inside single-quoted strings.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		switch ch := sql[i]; {
		case ch == '\'' && inString && i+1 < len(sql) && sql[i+1] == '\'':
			i++ // escaped quote
		case ch == '\'':
			inString = !inString
		case ch == ';' && inString:
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

// databaseFromDSN returns the results database of a clickhouse:// DSN.
// The name is spliced into CREATE DATABASE, so only [A-Za-z0-9_] is accepted.
func databaseFromDSN(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse clickhouse dsn: %w", err)
	}
	db := strings.TrimPrefix(u.Path, "/")
	if db == "" {
		return "", fmt.Errorf("clickhouse dsn missing database")
	}
	for _, r := range db {
		if !(r == '_' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return "", fmt.Errorf("clickhouse database name %q: only letters, digits and _ allowed", db)
		}
	}
	return db, nil
}
