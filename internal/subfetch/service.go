// Package subfetch 将 key 派生、身份轮换抓取与持久缓存组合为
// “抓取成功写穿、抓取失败回退”的单次决策。
package subfetch

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sub-hub/sub-hub/internal/cachekey"
	"github.com/sub-hub/sub-hub/internal/fetcher"
	"github.com/sub-hub/sub-hub/internal/subcache"
)

// DefaultMaxRetries 是未指定重试预算时的默认尝试次数。
const DefaultMaxRetries = 3

// FallbackWarning 标记结果来自缓存回退的固定文案。
const FallbackWarning = "remote fetch failed, using cached content"

// Options 控制单次 FetchWithCache 的请求头与重试预算。
type Options struct {
	Headers    map[string]string
	MaxRetries int
}

// Result 是编排器的终态输出：要么是新鲜内容，要么是带告警的缓存
// 内容，要么是彻底失败。Success=false 是唯一表示完全不可用的状态。
type Result struct {
	Content   string `json:"content"`
	FromCache bool   `json:"from_cache"`
	Success   bool   `json:"success"`
	Warning   string `json:"warning,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Service 持有抓取器与缓存句柄；store 可为 nil，此时仅禁用持久化
// 与回退，不影响抓取本身。
type Service struct {
	fetcher *fetcher.Fetcher
	store   *subcache.Store
	logger  *logrus.Logger
}

// NewService 构造编排服务。
func NewService(f *fetcher.Fetcher, store *subcache.Store, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{fetcher: f, store: store, logger: logger}
}

// FetchWithCache 执行完整的抓取或回退流程，永远返回终态 Result，
// 不向调用方抛出错误；批量调用方可据此跳过单个失败继续处理。
func (s *Service) FetchWithCache(ctx context.Context, rawURL string, opts Options) Result {
	key := cachekey.Derive(rawURL)
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	content, err := s.fetcher.Fetch(ctx, rawURL, opts.Headers, maxRetries)
	if err == nil {
		// 持久化是尽力而为的同步步骤：写失败只记日志，绝不掩盖成功的抓取。
		if !s.store.Put(ctx, key, rawURL, content) {
			s.logger.WithFields(logrus.Fields{
				"action": "cache_write_through",
				"key":    key,
				"url":    rawURL,
			}).Warn("cache_write_skipped")
		}
		return Result{Content: content, FromCache: false, Success: true}
	}

	s.logger.WithFields(logrus.Fields{
		"action":  "fetch_exhausted",
		"key":     key,
		"url":     rawURL,
		"retries": maxRetries,
		"error":   err.Error(),
	}).Warn("fetch_failed")

	if entry := s.store.Get(ctx, key); entry != nil && entry.Content != "" {
		// 记录降级可用性；对返回内容没有任何影响。
		s.store.RecordFailure(ctx, key)
		s.logger.WithFields(logrus.Fields{
			"action": "cache_fallback",
			"key":    key,
			"url":    rawURL,
		}).Info("serving_cached_content")
		return Result{
			Content:   entry.Content,
			FromCache: true,
			Success:   true,
			Warning:   FallbackWarning,
		}
	}

	return Result{Success: false, Error: err.Error()}
}
