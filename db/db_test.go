// Tests run against a SQLite file in t.TempDir(); no external services required.
package db_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/useradmin/db"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test helpers
// ─────────────────────────────────────────────────────────────────────────────

func openTestDB(t *testing.T, hooks ...db.Hook) *db.DB {
	t.Helper()
	d, err := db.Open(db.Config{
		DSN:        filepath.Join(t.TempDir(), "users.db"),
		DriverName: "sqlite3",
		Hooks:      hooks,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	_, err = d.Exec(context.Background(), `
		CREATE TABLE users (
			id    INTEGER PRIMARY KEY AUTOINCREMENT,
			name  TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL
		)`)
	if err != nil {
		t.Fatalf("create schema: %v", err)
	}
	return d
}

func insertUser(t *testing.T, q db.Querier, name, email string) {
	t.Helper()
	_, err := q.Exec(context.Background(), `INSERT INTO users (name, email) VALUES (?, ?)`, name, email)
	if err != nil {
		t.Fatalf("insert %s: %v", name, err)
	}
}

func countUsers(t *testing.T, d *db.DB) int {
	t.Helper()
	var n int
	if err := d.QueryRow(context.Background(), `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}

// ─────────────────────────────────────────────────────────────────────────────
// Open / Ping
// ─────────────────────────────────────────────────────────────────────────────

func TestOpen(t *testing.T) {
	d := openTestDB(t)
	if err := d.Ping(context.Background()); err != nil {
		t.Fatalf("ping failed: %v", err)
	}
	if d.DriverName() != "sqlite3" {
		t.Fatalf("unexpected driver name %q", d.DriverName())
	}
}

func TestOpen_MissingDSN(t *testing.T) {
	if _, err := db.Open(db.Config{DriverName: "sqlite3"}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := db.Open(db.Config{DSN: "x.db"}); err == nil {
		t.Fatal("expected error for empty driver name")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Exec / QueryRow / Query
// ─────────────────────────────────────────────────────────────────────────────

func TestExec_RowsAffected(t *testing.T) {
	d := openTestDB(t)
	res, err := d.Exec(context.Background(),
		`INSERT INTO users (name, email) VALUES (?, ?)`, "Alice", "alice@test.com")
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if n, _ := res.RowsAffected(); n != 1 {
		t.Fatalf("expected 1 row affected, got %d", n)
	}
}

func TestQueryRow_NotFound(t *testing.T) {
	d := openTestDB(t)
	var name string
	err := d.QueryRow(context.Background(), `SELECT name FROM users WHERE id = ?`, 99999).Scan(&name)
	if !db.IsNotFound(err) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuery_MultipleRows(t *testing.T) {
	d := openTestDB(t)
	for _, name := range []string{"Carol", "Alice", "Bob"} {
		insertUser(t, d, name, strings.ToLower(name)+"@q.com")
	}

	rows, err := d.Query(context.Background(), `SELECT name FROM users ORDER BY name`)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatalf("scan: %v", err)
		}
		names = append(names, n)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows.Err: %v", err)
	}
	if strings.Join(names, ",") != "Alice,Bob,Carol" {
		t.Fatalf("unexpected order: %v", names)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// ExecTx
// ─────────────────────────────────────────────────────────────────────────────

func TestExecTx_Commit(t *testing.T) {
	d := openTestDB(t)
	err := d.ExecTx(context.Background(), func(tx *db.Tx) error {
		insertUser(t, tx, "Dave", "dave@tx.com")
		return nil
	})
	if err != nil {
		t.Fatalf("tx commit: %v", err)
	}
	if n := countUsers(t, d); n != 1 {
		t.Fatalf("expected 1 committed row, got %d", n)
	}
}

func TestExecTx_RollbackOnError(t *testing.T) {
	d := openTestDB(t)
	sentinelErr := errors.New("intentional failure")

	err := d.ExecTx(context.Background(), func(tx *db.Tx) error {
		insertUser(t, tx, "Eve", "eve@rollback.com")
		return sentinelErr
	})
	if !errors.Is(err, sentinelErr) {
		t.Fatalf("expected sentinelErr, got %v", err)
	}
	if n := countUsers(t, d); n != 0 {
		t.Fatalf("expected 0 rows after rollback, got %d", n)
	}
}

func TestExecTx_RollbackOnPanic(t *testing.T) {
	d := openTestDB(t)

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = d.ExecTx(context.Background(), func(tx *db.Tx) error {
			insertUser(t, tx, "Panicky", "p@rollback.com")
			panic("test panic")
		})
	}()

	if n := countUsers(t, d); n != 0 {
		t.Fatalf("expected 0 rows after panic rollback, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Prepared statements
// ─────────────────────────────────────────────────────────────────────────────

func TestPrepare(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	stmt, err := d.Prepare(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`)
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	defer stmt.Close()

	for _, name := range []string{"p1", "p2", "p3"} {
		if _, err := stmt.Exec(ctx, name, name+"@test.com"); err != nil {
			t.Fatalf("exec prepared: %v", err)
		}
	}
	if n := countUsers(t, d); n != 3 {
		t.Fatalf("expected 3 rows, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Error mapping
// ─────────────────────────────────────────────────────────────────────────────

func TestErrorMapper_DuplicateName(t *testing.T) {
	d := openTestDB(t)
	insertUser(t, d, "Alice", "a1@test.com")

	_, err := d.Exec(context.Background(),
		`INSERT INTO users (name, email) VALUES (?, ?)`, "Alice", "a2@test.com")
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}

	var dbErr *db.DBError
	if !errors.As(err, &dbErr) || dbErr.Cause == nil {
		t.Fatalf("expected DBError with a cause, got %#v", err)
	}
}

func TestErrorMapper_NotNull(t *testing.T) {
	d := openTestDB(t)
	_, err := d.Exec(context.Background(), `INSERT INTO users (name, email) VALUES (?, NULL)`, "NoEmail")
	if !db.IsCheckViolation(err) {
		t.Fatalf("expected ErrCheckViolation, got %v", err)
	}
}

func TestErrorMapper_PostgresCodeFromMessage(t *testing.T) {
	err := db.DefaultErrorMapper().Map(errors.New(`pq: duplicate key value violates unique constraint "users_name_key" (SQLSTATE 23505)`))
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestErrorMapper_MySQLNumber(t *testing.T) {
	cause := &mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Alice' for key 'users.name'"}
	err := db.DefaultErrorMapper().Map(fmt.Errorf("insert: %w", cause))
	if !db.IsDuplicateKey(err) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected the driver error to stay in the chain, got %v", err)
	}

	err = db.DefaultErrorMapper().Map(&mysql.MySQLError{Number: 1213, Message: "Deadlock found"})
	if !db.IsDeadlock(err) {
		t.Fatalf("expected ErrDeadlock, got %v", err)
	}
}

func TestErrorMapper_MySQLMessageAloneIsNotMapped(t *testing.T) {
	err := db.DefaultErrorMapper().Map(errors.New("Error 1062 (23000): Duplicate entry"))
	if db.IsDuplicateKey(err) {
		t.Fatalf("a plain string must not be taken for a driver error: %v", err)
	}
}

func TestErrorMapper_ContextDeadline(t *testing.T) {
	err := db.DefaultErrorMapper().Map(context.DeadlineExceeded)
	if !db.IsTimeout(err) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// WithRetry
// ─────────────────────────────────────────────────────────────────────────────

func TestWithRetry_SucceedsOnSecondAttempt(t *testing.T) {
	attempts := 0
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
	}, func() error {
		attempts++
		if attempts < 2 {
			return &db.DBError{Sentinel: db.ErrConnectionFailed, Cause: errors.New("refused")}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestWithRetry_StopsOnPermanentError(t *testing.T) {
	attempts := 0
	permanent := errors.New("permanent")
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 5,
		Delay:       time.Millisecond,
	}, func() error {
		attempts++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithRetry_ExhaustsAttempts(t *testing.T) {
	transient := errors.New("transient")
	err := db.WithRetry(context.Background(), db.RetryConfig{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		RetryOn:     func(err error) bool { return errors.Is(err, transient) },
	}, func() error { return transient })
	if !errors.Is(err, transient) {
		t.Fatalf("expected wrapped transient error, got %v", err)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Hooks
// ─────────────────────────────────────────────────────────────────────────────

type countingHook struct {
	before int
	after  int
	errs   int
}

func (h *countingHook) BeforeQuery(context.Context, string, []any) { h.before++ }
func (h *countingHook) AfterQuery(_ context.Context, _ string, _ []any, _ time.Duration, err error) {
	h.after++
	if err != nil {
		h.errs++
	}
}

type panickyHook struct{}

func (panickyHook) BeforeQuery(context.Context, string, []any) { panic("before") }
func (panickyHook) AfterQuery(context.Context, string, []any, time.Duration, error) {
	panic("after")
}

func TestHooks_CalledOnExec(t *testing.T) {
	hook := &countingHook{}
	d := openTestDB(t, hook, nil)

	// The schema statement in openTestDB already ran once.
	insertUser(t, d, "Hooked", "hook@test.com")
	if hook.before != 2 || hook.after != 2 {
		t.Fatalf("hook not called: before=%d after=%d", hook.before, hook.after)
	}

	insertUser(t, d, "Other", "other@test.com")
	_, _ = d.Exec(context.Background(), `INSERT INTO users (name, email) VALUES (?, ?)`, "Hooked", "x@test.com")
	if hook.errs != 1 {
		t.Fatalf("expected the mapped error to reach the hook once, got %d", hook.errs)
	}
}

func TestHooks_PanicIsRecovered(t *testing.T) {
	d := openTestDB(t, panickyHook{}, db.NewLogHook(db.LogHookConfig{LogArgs: true}))
	insertUser(t, d, "Survivor", "s@test.com")
	if n := countUsers(t, d); n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

func TestBuildDSN(t *testing.T) {
	cases := []struct {
		driver string
		opts   db.DriverOptions
		want   string
	}{
		{
			driver: "postgres",
			opts:   db.DriverOptions{Host: "localhost", User: "app", Password: "secret", Database: "users"},
			want:   "host=localhost port=5432 dbname=users sslmode=disable user=app password=secret",
		},
		{
			driver: "mysql",
			opts:   db.DriverOptions{Host: "db", User: "app", Password: "pw", Database: "users"},
			want:   "app:pw@tcp(db:3306)/users?clientFoundRows=true&parseTime=true",
		},
		{
			driver: "sqlite3",
			opts:   db.DriverOptions{Database: "users.db", Extra: map[string]string{"_fk": "1", "_busy_timeout": "5000"}},
			want:   "users.db?_busy_timeout=5000&_fk=1",
		},
	}
	for _, tc := range cases {
		got, err := db.BuildDSN(tc.driver, tc.opts)
		if err != nil {
			t.Fatalf("%s: %v", tc.driver, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.driver, got, tc.want)
		}
	}
}

func TestBuildDSN_Errors(t *testing.T) {
	if _, err := db.BuildDSN("oracle", db.DriverOptions{}); err == nil {
		t.Fatal("expected unknown driver error")
	}
	if _, err := db.BuildDSN("postgres", db.DriverOptions{Database: "x"}); err == nil {
		t.Fatal("expected missing host error")
	}
}
