// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/redacted-game/gameserver/models"

	_ "github.com/lib/pq" // PostgreSQL 驱动
)

// ReportStore 只读统计查询，直接走 database/sql
type ReportStore struct {
	db *sql.DB
}

// NewReportStore opens a small read-only pool next to the GORM one.
func NewReportStore(opts PostgresOptions) (*ReportStore, error) {
	db, err := sql.Open("postgres", opts.DSN())
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

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &ReportStore{db: db}, nil
}

const actionBreakdownQuery = `
        SELECT action_type, COUNT(*)
        FROM actions
        WHERE game_id = $1
        GROUP BY action_type
    `

// ActionBreakdown counts a game's logged actions per type.
func (r *ReportStore) ActionBreakdown(ctx context.Context, gameID uuid.UUID) (map[models.ActionType]int, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, actionBreakdownQuery, gameID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.ActionType]int)
	for rows.Next() {
		var (
			actionType string
			count      int
		)
		if err := rows.Scan(&actionType, &count); err != nil {
			return nil, err
		}
		counts[models.ActionType(actionType)] = count
	}
	return counts, rows.Err()
}

// Close 关闭数据库连接
func (r *ReportStore) Close() error {
	return r.db.Close()
}
