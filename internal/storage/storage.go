// Package storage 尝试历史持久化
//
// 每次编排尝试（生成/验证/修复）落一条记录，失败的运行可以
// 不重跑直接诊断。根据 DSN 自动选择 SQLite（开发、单机）或
// PostgreSQL（集中部署）驱动。
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DriverSQLite / DriverPostgres 支持的驱动类型
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// AttemptRecord 单次编排尝试记录
type AttemptRecord struct {
	ID         int64
	RunID      string // 一次 Run 的全部尝试共享同一 ID
	Descriptor string // 描述符稳定键
	Action     string // generate / validate / fix
	Attempt    int    // 尝试序号（1 起）
	OK         bool
	ExitCode   *int
	Diagnostic string
	DurationMS int64
	CreatedAt  time.Time
}

// Store 尝试历史库
type Store struct {
	db     *sql.DB
	driver string
}

// DetectDriver 根据 DSN 前缀选择驱动
func DetectDriver(dsn string) string {
	lower := strings.ToLower(dsn)
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DriverPostgres
	case strings.HasPrefix(lower, "file:"), strings.HasPrefix(lower, "sqlite:"), lower == ":memory:":
		return DriverSQLite
	default:
		return DriverSQLite
	}
}

// Open 打开尝试历史库并自动建表
func Open(dsn string) (*Store, error) {
	driver := DetectDriver(dsn)

	if strings.HasPrefix(strings.ToLower(dsn), "sqlite:") {
		dsn = strings.TrimPrefix(dsn, "sqlite:")
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// SQLite 优化设置
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA synchronous=NORMAL",
			"PRAGMA busy_timeout=5000",
		}
		for _, p := range pragmas {
			if _, err := db.Exec(p); err != nil {
				db.Close()
				return nil, fmt.Errorf("failed to set pragma %s: %w", p, err)
			}
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate 建表
func (s *Store) migrate() error {
	schema := schemaSQLite
	if s.driver == DriverPostgres {
		schema = schemaPostgres
	}
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// RecordAttempt 追加一条尝试记录
func (s *Store) RecordAttempt(ctx context.Context, rec *AttemptRecord) error {
	query := s.rebind(`INSERT INTO attempts
		(run_id, descriptor, action, attempt, ok, exit_code, diagnostic, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		rec.RunID, rec.Descriptor, rec.Action, rec.Attempt,
		rec.OK, rec.ExitCode, rec.Diagnostic, rec.DurationMS, created)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// ListAttempts 按时间顺序返回某描述符的全部尝试
func (s *Store) ListAttempts(ctx context.Context, descriptor string) ([]AttemptRecord, error) {
	query := s.rebind(`SELECT id, run_id, descriptor, action, attempt, ok, exit_code, diagnostic, duration_ms, created_at
		FROM attempts WHERE descriptor = ? ORDER BY id`)

	rows, err := s.db.QueryContext(ctx, query, descriptor)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var exitCode sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Descriptor, &rec.Action, &rec.Attempt,
			&rec.OK, &exitCode, &rec.Diagnostic, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		if exitCode.Valid {
			code := int(exitCode.Int64)
			rec.ExitCode = &code
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// rebind 将 ? 占位符改写为 PostgreSQL 的 $N 形式
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schemaSQLite SQLite 建表语句
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS attempts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id VARCHAR(64) NOT NULL,
    descriptor VARCHAR(200) NOT NULL,
    action VARCHAR(16) NOT NULL,
    attempt INTEGER NOT NULL,
    ok BOOLEAN NOT NULL,
    exit_code INTEGER,
    diagnostic TEXT,
    duration_ms INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_descriptor ON attempts(descriptor);
`

// schemaPostgres PostgreSQL 建表语句（与 SQLite 等价）
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS attempts (
    id BIGSERIAL PRIMARY KEY,
    run_id VARCHAR(64) NOT NULL,
    descriptor VARCHAR(200) NOT NULL,
    action VARCHAR(16) NOT NULL,
    attempt INTEGER NOT NULL,
    ok BOOLEAN NOT NULL,
    exit_code INTEGER,
    diagnostic TEXT,
    duration_ms BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attempts_descriptor ON attempts(descriptor);
`
