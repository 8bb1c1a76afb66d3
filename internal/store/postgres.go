package store

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	// postgres driver
	_ "github.com/lib/pq"

	"similarity_engine/internal/model"
)

// DefaultTable 默认的相似表名
const DefaultTable = "similar_tracks"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// PostgresStore 从 PostgreSQL 相似表读取结果
//
// 表结构：
//
//	track_id TEXT, position INT, name TEXT, score DOUBLE PRECISION
//
// 结果按 position 升序返回
type PostgresStore struct {
	db    *sql.DB
	table string

	selectQuery string
}

// OpenPostgres 建立连接池并检查连通性
func OpenPostgres(ctx context.Context, dsn string, maxOpenConns int) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres: connection string is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open failed: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: ping failed: %w", err)
	}

	// 给监控、迁移等其他连接留出余量
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}
	return db, nil
}

// NewPostgresStore 使用已有连接池创建 Store，table 为空时使用 DefaultTable
func NewPostgresStore(db *sql.DB, table string) (*PostgresStore, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: invalid table name %q", model.ErrInvalidArgument, table)
	}
	return &PostgresStore{
		db:    db,
		table: table,
		selectQuery: fmt.Sprintf(
			`SELECT name, score FROM %s WHERE track_id = $1 ORDER BY position`,
			table,
		),
	}, nil
}

// EnsureSchema 在表不存在时创建表和索引
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    track_id TEXT NOT NULL,
    position INT NOT NULL,
    name TEXT NOT NULL,
    score DOUBLE PRECISION NOT NULL DEFAULT 0,
    PRIMARY KEY (track_id, position)
)`, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: create schema for %s: %w", s.table, err)
		}
	}
	return nil
}

// FindSimilarTracks 返回 id 的全部相似条目，没有任何行时返回 model.ErrNotFound
func (s *PostgresStore) FindSimilarTracks(ctx context.Context, id model.ItemID) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, s.selectQuery, string(id))
	if err != nil {
		return nil, fmt.Errorf("postgres: query similar tracks for %s: %w", id, err)
	}
	defer rows.Close()

	items := []model.Item{}
	for rows.Next() {
		var item model.Item
		if err := rows.Scan(&item.Name, &item.Score); err != nil {
			return nil, fmt.Errorf("postgres: scan similar track row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate similar tracks for %s: %w", id, err)
	}

	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s", model.ErrNotFound, id)
	}
	return items, nil
}

// Close 关闭连接池
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
