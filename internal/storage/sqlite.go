package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"tickrun/internal/task"
	logx "tickrun/pkg/logx"

	_ "modernc.org/sqlite"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

const taskColumns = `id, name, file_path, schedule_type, time, days, date, is_last_day_of_month, enabled, last_run, next_run, interval_minutes`

// OpenSQLite opens (creating if needed) a SQLite task database.
func OpenSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	path := cfg.Path
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	st := &sqliteStore{db: db, log: log}

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(r rowScanner) (task.Task, error) {
	var (
		rec     task.Record
		days    string
		enabled bool
		tod     sql.NullString
		date    sql.NullInt64
		lastRun sql.NullString
		nextRun sql.NullString
		every   sql.NullInt64
	)
	if err := r.Scan(&rec.ID, &rec.Name, &rec.FilePath, &rec.ScheduleType, &tod, &days, &date,
		&rec.IsLastDayOfMonth, &enabled, &lastRun, &nextRun, &every); err != nil {
		return task.Task{}, err
	}
	if strings.TrimSpace(days) != "" {
		if err := json.Unmarshal([]byte(days), &rec.Days); err != nil {
			return task.Task{}, fmt.Errorf("%w: days %q", task.ErrInvalid, days)
		}
	}
	rec.Enabled = &enabled
	rec.Time = nullStrPtr(tod)
	rec.LastRun = nullStrPtr(lastRun)
	rec.NextRun = nullStrPtr(nextRun)
	rec.Date = nullIntPtr(date)
	rec.IntervalMinutes = nullIntPtr(every)
	return rec.Task()
}

func taskArgs(t task.Task) ([]any, error) {
	rec := t.ToRecord()
	days, err := json.Marshal(rec.Days)
	if err != nil {
		return nil, err
	}
	return []any{
		rec.ID, rec.Name, rec.FilePath, rec.ScheduleType, strPtrArg(rec.Time), string(days),
		intPtrArg(rec.Date), rec.IsLastDayOfMonth, t.Enabled, strPtrArg(rec.LastRun),
		strPtrArg(rec.NextRun), intPtrArg(rec.IntervalMinutes),
	}, nil
}

func (s *sqliteStore) LoadAll(ctx context.Context) ([]task.Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			s.log.Warn("skipping unreadable task row", logx.Err(err))
			continue
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SaveAll(ctx context.Context, tasks []task.Task) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks`); err != nil {
		return err
	}
	for _, t := range tasks {
		args, err := taskArgs(t)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *sqliteStore) Add(ctx context.Context, t task.Task) error {
	args, err := taskArgs(t)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tasks(`+taskColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?) ON CONFLICT(id) DO NOTHING`, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, t.ID)
	}
	return nil
}

func (s *sqliteStore) Update(ctx context.Context, t task.Task) (bool, error) {
	args, err := taskArgs(t)
	if err != nil {
		return false, err
	}
	// id moves to the WHERE clause.
	args = append(args[1:], args[0])
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET name=?, file_path=?, schedule_type=?, time=?, days=?, date=?,
		 is_last_day_of_month=?, enabled=?, last_run=?, next_run=?, interval_minutes=?
		 WHERE id=?`, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqliteStore) Get(ctx context.Context, id string) (task.Task, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return task.Task{}, false, nil
	}
	if err != nil {
		return task.Task{}, false, err
	}
	return t, true, nil
}

func nullStrPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return &v.String
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func strPtrArg(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtrArg(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
