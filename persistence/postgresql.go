// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/typerace/models"
)

// PostgreSQL 数据库实现
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	db, err := sql.Open("postgres", dsn(host, port, user, password, dbname))
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS match_records (
            id BIGSERIAL PRIMARY KEY,
            room_id VARCHAR(16) NOT NULL,
            mode VARCHAR(32) NOT NULL,
            started_at TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ NOT NULL,
            duration_ms BIGINT DEFAULT 0,
            participants JSONB NOT NULL,
            result JSONB NOT NULL,
            created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
        )
    `); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_match_records_room ON match_records (room_id, finished_at DESC)`)
	return err
}

// SaveMatch 保存对局记录
func (p *PostgreSQL) SaveMatch(ctx context.Context, match models.MatchResult) error {
	participants, err := json.Marshal(match.Participants)
	if err != nil {
		return err
	}
	result, err := json.Marshal(match)
	if err != nil {
		return err
	}

	_, err = p.db.ExecContext(ctx, `
        INSERT INTO match_records (room_id, mode, started_at, finished_at, duration_ms, participants, result)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		match.RoomID, string(match.Mode), match.StartedAt, match.FinishedAt,
		match.FinishedAt.Sub(match.StartedAt).Milliseconds(), participants, result)
	return err
}

func (p *PostgreSQL) RecentMatches(ctx context.Context, roomID string, limit int) ([]models.MatchResult, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
        SELECT result FROM match_records
        WHERE room_id = $1
        ORDER BY finished_at DESC
        LIMIT $2`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.MatchResult
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var m models.MatchResult
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrRecordNotFound
	}
	return out, nil
}

func (p *PostgreSQL) CountMatches(ctx context.Context) (int64, error) {
	var n int64
	err := p.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM match_records`).Scan(&n)
	return n, err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
