package snapshot

import (
	"ceksiak/internal/assert"
	"ceksiak/internal/siak"
	"ceksiak/internal/telemetry"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "embed"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

const (
	report_sqlite_load = "sqlite.load"
	report_sqlite_save = "sqlite.save"
)

func isRemote(dsn string) bool {
	return strings.HasPrefix(dsn, "libsql://") ||
		strings.HasPrefix(dsn, "https://") ||
		strings.HasPrefix(dsn, "http://")
}

// OpenDB opens a local sqlite file, or a libsql server when `dsn` is a libsql:// or
// http(s):// url (pass the auth token as the `authToken` query parameter).
func OpenDB(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("a database path was not specified")
	}
	if isRemote(dsn) {
		return sql.Open("libsql", dsn)
	}

	if dsn != ":memory:" {
		_, statErr := os.Stat(dsn)
		if os.IsNotExist(statErr) {
			f, err := os.Create(dsn)
			if err != nil {
				return nil, err
			}
			f.Close()
		}
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// a single connection serializes writes and keeps an in-memory database alive
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA journal_mode=WAL")
	if err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// SQLiteStore appends every saved snapshot as a new row, so past snapshots stay
// available through History.
type SQLiteStore struct {
	db  *sql.DB
	tel telemetry.API
}

func NewSQLiteStore(ctx context.Context, db *sql.DB, tel telemetry.API) (SQLiteStore, error) {
	assert.NotNil(db, "database")
	assert.NotNil(tel, "telemetry")

	_, err := db.ExecContext(ctx, Schema)
	if err != nil {
		return SQLiteStore{}, fmt.Errorf("snapshot: apply schema: %w", err)
	}
	return SQLiteStore{
		db:  db,
		tel: telemetry.NewScopedAPI("snapshot", tel),
	}, nil
}

func (s SQLiteStore) Load(ctx context.Context) ([]siak.Course, bool) {
	var serialized string
	err := s.db.QueryRowContext(
		ctx,
		"select courses from course_snapshot order by id desc limit 1",
	).Scan(&serialized)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false
	}
	if err != nil {
		s.tel.ReportBroken(report_sqlite_load, err)
		return []siak.Course{}, true
	}

	var courses []siak.Course
	err = json.Unmarshal([]byte(serialized), &courses)
	if err != nil {
		s.tel.ReportWarning(report_sqlite_load, fmt.Errorf("decode: %w", err))
		return []siak.Course{}, true
	}
	if courses == nil {
		courses = []siak.Course{}
	}
	return courses, true
}

func (s SQLiteStore) Save(ctx context.Context, courses []siak.Course) error {
	if courses == nil {
		courses = []siak.Course{}
	}
	serialized, err := json.Marshal(courses)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		"insert into course_snapshot (created_at, courses) values (?, ?)",
		time.Now().Unix(),
		string(serialized),
	)
	if err != nil {
		s.tel.ReportBroken(report_sqlite_save, err)
		return fmt.Errorf("snapshot: save: %w", err)
	}
	return nil
}

type Entry struct {
	Id        int64
	CreatedAt time.Time
	Courses   []siak.Course
}

// History lists saved snapshots newest first, at most `limit` of them (all of them if
// `limit` <= 0).
func (s SQLiteStore) History(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(
		ctx,
		"select id, created_at, courses from course_snapshot order by id desc limit ?",
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			createdAt  int64
			serialized string
		)
		err := rows.Scan(&entry.Id, &createdAt, &serialized)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = time.Unix(createdAt, 0)
		err = json.Unmarshal([]byte(serialized), &entry.Courses)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot %d: %w", entry.Id, err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
