// Package subcache 提供订阅内容的 SQLite 持久缓存。所有操作都容忍
// 未配置的存储句柄：nil *Store 上的调用退化为安全的空值/false，而非 panic。
package subcache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/sirupsen/logrus"
)

// schema 描述 sub_cache 表；created_at/updated_at 为 epoch 毫秒。
// created_at 上的降序索引支撑管理接口的按新旧列出。
const schema = `
CREATE TABLE IF NOT EXISTS sub_cache (
	cache_key     TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	content       TEXT NOT NULL,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL,
	success_count INTEGER DEFAULT 1,
	fail_count    INTEGER DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_sub_cache_created ON sub_cache(created_at DESC);
`

// Entry 是 sub_cache 的一行。Content 永远反映最近一次成功抓取，
// 失败只会累加 FailCount，绝不覆盖正文。
type Entry struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	Content      string `json:"content"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	SuccessCount int64  `json:"success_count"`
	FailCount    int64  `json:"fail_count"`
}

// Stats 是跨全表的聚合统计。
type Stats struct {
	TotalEntries int64 `json:"total_entries"`
	TotalSuccess int64 `json:"total_success"`
	TotalFail    int64 `json:"total_fail"`
	TotalBytes   int64 `json:"total_bytes"`
}

// Store 持有 SQLite 句柄。通过 Open 构造并在启动阶段完成建表，
// 之后所有操作同步落盘，写后读保证对同一调用方可见。
type Store struct {
	db     *sql.DB
	logger *logrus.Logger
}

// Open 打开（或创建）path 指向的 SQLite 文件并确保 schema 就绪。
func Open(path string, logger *logrus.Logger) (*Store, error) {
	if path == "" {
		return nil, errors.New("cache path required")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	store := &Store{db: db, logger: logger}
	if err := store.EnsureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// EnsureSchema 幂等地建表建索引，重复执行无副作用。
func (s *Store) EnsureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not configured")
	}
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Close 关闭底层句柄；nil Store 安全。
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get 返回 key 对应的条目；不存在或存储未配置时返回 nil。
func (s *Store) Get(ctx context.Context, key string) *Entry {
	if s == nil || s.db == nil {
		return nil
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT cache_key, url, content, created_at, updated_at, success_count, fail_count
		FROM sub_cache WHERE cache_key = ?`, key)

	var entry Entry
	err := row.Scan(&entry.Key, &entry.URL, &entry.Content,
		&entry.CreatedAt, &entry.UpdatedAt, &entry.SuccessCount, &entry.FailCount)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.WithFields(logrus.Fields{
				"action": "cache_get",
				"key":    key,
				"error":  err.Error(),
			}).Warn("cache_get_failed")
		}
		return nil
	}
	return &entry
}

// Put 执行 upsert：已有行替换 content 并累加 success_count（保留
// fail_count），新行以 success_count=1、fail_count=0 插入。
func (s *Store) Put(ctx context.Context, key, url, content string) bool {
	if s == nil || s.db == nil {
		return false
	}

	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sub_cache (cache_key, url, content, created_at, updated_at, success_count, fail_count)
		VALUES (?, ?, ?, ?, ?, 1, 0)
		ON CONFLICT(cache_key) DO UPDATE SET
			url           = excluded.url,
			content       = excluded.content,
			updated_at    = excluded.updated_at,
			success_count = success_count + 1`,
		key, url, content, now, now)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_put",
			"key":    key,
			"error":  err.Error(),
		}).Warn("cache_put_failed")
		return false
	}
	return true
}

// RecordFailure 在已有行上累加 fail_count 并刷新 updated_at。
// 失败绝不创建条目：key 不存在时返回 false。
func (s *Store) RecordFailure(ctx context.Context, key string) bool {
	if s == nil || s.db == nil {
		return false
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE sub_cache SET fail_count = fail_count + 1, updated_at = ?
		WHERE cache_key = ?`, time.Now().UnixMilli(), key)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_record_failure",
			"key":    key,
			"error":  err.Error(),
		}).Warn("cache_record_failure_failed")
		return false
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false
	}
	return affected > 0
}

// Clear 删除单个条目。
func (s *Store) Clear(ctx context.Context, key string) bool {
	if s == nil || s.db == nil {
		return false
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sub_cache WHERE cache_key = ?`, key)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_clear",
			"key":    key,
			"error":  err.Error(),
		}).Warn("cache_clear_failed")
		return false
	}
	return true
}

// ClearAll 清空整表。
func (s *Store) ClearAll(ctx context.Context) bool {
	if s == nil || s.db == nil {
		return false
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM sub_cache`)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_clear_all",
			"error":  err.Error(),
		}).Warn("cache_clear_all_failed")
		return false
	}
	return true
}

// Fix 针对疑似损坏的行执行“先删后插”，重置计数器为初始状态。
func (s *Store) Fix(ctx context.Context, key, url, content string) bool {
	if s == nil || s.db == nil {
		return false
	}
	if !s.Clear(ctx, key) {
		return false
	}
	return s.Put(ctx, key, url, content)
}

// Stats 返回跨全表聚合；存储未配置时为零值。
func (s *Store) Stats(ctx context.Context) Stats {
	if s == nil || s.db == nil {
		return Stats{}
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(success_count), 0),
		       COALESCE(SUM(fail_count), 0),
		       COALESCE(SUM(LENGTH(CAST(content AS BLOB))), 0)
		FROM sub_cache`)

	var stats Stats
	if err := row.Scan(&stats.TotalEntries, &stats.TotalSuccess, &stats.TotalFail, &stats.TotalBytes); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_stats",
			"error":  err.Error(),
		}).Warn("cache_stats_failed")
		return Stats{}
	}
	return stats
}

// List 按 created_at 降序列出最多 limit 条条目，供管理接口使用。
func (s *Store) List(ctx context.Context, limit int) []Entry {
	if s == nil || s.db == nil {
		return nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT cache_key, url, content, created_at, updated_at, success_count, fail_count
		FROM sub_cache ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_list",
			"error":  err.Error(),
		}).Warn("cache_list_failed")
		return nil
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(&entry.Key, &entry.URL, &entry.Content,
			&entry.CreatedAt, &entry.UpdatedAt, &entry.SuccessCount, &entry.FailCount); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		s.logger.WithFields(logrus.Fields{
			"action": "cache_list",
			"error":  err.Error(),
		}).Warn("cache_list_failed")
	}
	return entries
}
