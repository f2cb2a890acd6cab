// persistence/interface.go
package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/wfunc/typerace/config"
	"github.com/wfunc/typerace/models"
)

// Database 对局记录存储接口
type Database interface {
	SaveMatch(ctx context.Context, match models.MatchResult) error
	// RecentMatches returns the newest matches of a room, newest first.
	RecentMatches(ctx context.Context, roomID string, limit int) ([]models.MatchResult, error)
	CountMatches(ctx context.Context) (int64, error)
	Close() error
}

// 错误定义
var (
	ErrRecordNotFound = errors.New("record not found")
	ErrUnknownDriver  = errors.New("unknown database driver")
)

// New opens the store selected by cfg.Driver: "gorm", "sql" or "none".
func New(cfg config.DatabaseConfig) (Database, error) {
	pg := cfg.Postgres
	switch cfg.Driver {
	case "", "none":
		return NewMemory(), nil
	case "gorm":
		return NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	case "sql":
		return NewPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func dsn(host string, port int, user, password, dbname string) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)
}
