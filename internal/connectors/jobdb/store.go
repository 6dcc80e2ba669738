// Package jobdb reads compute jobs, their subjobs and the records they produced from the
// portal database (SQLite by default, MySQL at sites that share one server).
package jobdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"go-laue-run-monitor/internal/config"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// Store wraps database access for the run monitor.
type Store struct {
	db           *sql.DB
	driver       string
	queryTimeout time.Duration
	now          func() time.Time
}

// Open connects to the configured database and, for SQLite, creates missing tables.
func Open(cfg config.Config) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch driver {
	case "sqlite":
		if strings.TrimSpace(cfg.DBPath) == "" {
			return nil, errors.New("sqlite path required")
		}
	case "mysql":
	default:
		return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
	}

	db, err := sql.Open(driver, cfg.DSN())
	if err != nil {
		return nil, err
	}

	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DBConnTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		if err := bootstrapSQLite(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("bootstrap schema: %w", err)
		}
	}

	queryTimeout := cfg.DBQueryTimeout
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}

	return &Store{
		db:           db,
		driver:       driver,
		queryTimeout: queryTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns "sqlite" or "mysql".
func (s *Store) Driver() string {
	if s == nil {
		return ""
	}
	return s.driver
}

// Ping checks connectivity within the query timeout.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()
	return s.db.PingContext(ctx)
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS job (
  job_id INTEGER PRIMARY KEY AUTOINCREMENT,
  computer_name TEXT NOT NULL DEFAULT '',
  status INTEGER NOT NULL DEFAULT 0,
  priority INTEGER NOT NULL DEFAULT 0,
  submit_time DATETIME,
  start_time DATETIME,
  finish_time DATETIME,
  messages TEXT
);`,
	`CREATE TABLE IF NOT EXISTS subjob (
  subjob_id INTEGER PRIMARY KEY AUTOINCREMENT,
  job_id INTEGER NOT NULL REFERENCES job(job_id),
  computer_name TEXT NOT NULL DEFAULT '',
  status INTEGER NOT NULL DEFAULT 0,
  priority INTEGER NOT NULL DEFAULT 0,
  start_time DATETIME,
  finish_time DATETIME,
  messages TEXT
);`,
	`CREATE INDEX IF NOT EXISTS idx_subjob_job_id ON subjob(job_id);`,
	`CREATE TABLE IF NOT EXISTS calib (
  calib_id INTEGER PRIMARY KEY AUTOINCREMENT,
  scanNumber INTEGER,
  job_id INTEGER UNIQUE REFERENCES job(job_id),
  author TEXT,
  notes TEXT
);`,
	`CREATE TABLE IF NOT EXISTS recon (
  recon_id INTEGER PRIMARY KEY AUTOINCREMENT,
  scanNumber INTEGER,
  calib_id INTEGER REFERENCES calib(calib_id),
  job_id INTEGER UNIQUE REFERENCES job(job_id),
  author TEXT,
  notes TEXT
);`,
	`CREATE TABLE IF NOT EXISTS wirerecon (
  wirerecon_id INTEGER PRIMARY KEY AUTOINCREMENT,
  scanNumber INTEGER,
  job_id INTEGER UNIQUE REFERENCES job(job_id),
  author TEXT,
  notes TEXT
);`,
	`CREATE TABLE IF NOT EXISTS peakindex (
  peakindex_id INTEGER PRIMARY KEY AUTOINCREMENT,
  scanNumber INTEGER,
  job_id INTEGER UNIQUE REFERENCES job(job_id),
  author TEXT,
  notes TEXT,
  recon_id INTEGER REFERENCES recon(recon_id),
  wirerecon_id INTEGER REFERENCES wirerecon(wirerecon_id)
);`,
}

func bootstrapSQLite(ctx context.Context, db *sql.DB) error {
	for _, stmt := range sqliteSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// dbTime scans DATETIME columns from either driver: the mysql driver with parseTime
// yields time.Time, SQLite may hand back text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339Nano,
}

func (t *dbTime) Scan(src any) error {
	t.Time, t.Valid = time.Time{}, false
	switch v := src.(type) {
	case nil:
		return nil
	case time.Time:
		t.Time, t.Valid = v, true
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("unsupported time value %T", src)
}

func (t *dbTime) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed, true
			return nil
		}
	}
	return fmt.Errorf("unrecognized time %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullInt64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}
