package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/sub-hub/sub-hub/internal/cachekey"
	"github.com/sub-hub/sub-hub/internal/logging"
	"github.com/sub-hub/sub-hub/internal/subfetch"
)

// SubHandler 将 HTTP 请求翻译为 FetchWithCache 调用，并把终态 Result
// 映射回状态码与溯源响应头。
type SubHandler struct {
	service        *subfetch.Service
	logger         *logrus.Logger
	defaultRetries int
	maxBatchURLs   int
}

// NewSubHandler constructs the subscription fetch handler.
func NewSubHandler(service *subfetch.Service, logger *logrus.Logger, defaultRetries, maxBatchURLs int) *SubHandler {
	return &SubHandler{
		service:        service,
		logger:         logger,
		defaultRetries: defaultRetries,
		maxBatchURLs:   maxBatchURLs,
	}
}

// HandleSub 处理单个订阅抓取：?url= 为订阅地址，?retries= 覆盖重试预算，
// ?ua= 覆盖 User-Agent（否则由身份池轮换补齐）。
func (h *SubHandler) HandleSub(c fiber.Ctx) error {
	started := time.Now()
	rawURL := strings.TrimSpace(c.Query("url"))
	if rawURL == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_required"})
	}
	if err := validateSubscriptionURL(rawURL); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_invalid"})
	}

	opts := subfetch.Options{MaxRetries: h.retriesFrom(c.Query("retries"))}
	if ua := strings.TrimSpace(c.Query("ua")); ua != "" {
		opts.Headers = map[string]string{"User-Agent": ua}
	}

	result := h.service.FetchWithCache(requestContext(c), rawURL, opts)
	h.logResult(c, rawURL, result, started)

	if !result.Success {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": result.Error})
	}

	c.Set("Content-Type", "text/plain; charset=utf-8")
	c.Set("X-Sub-Hub-Cache-Hit", strconv.FormatBool(result.FromCache))
	if result.Warning != "" {
		c.Set("X-Sub-Hub-Warning", result.Warning)
	}
	return c.SendString(result.Content)
}

// batchRequest 是 POST /sub/batch 的请求体。
type batchRequest struct {
	URLs    []string `json:"urls"`
	Retries int      `json:"retries"`
}

// batchItem 汇报单个 URL 的结局，正文统一放在合并后的 content 字段。
type batchItem struct {
	URL       string `json:"url"`
	Success   bool   `json:"success"`
	FromCache bool   `json:"from_cache"`
	Warning   string `json:"warning,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleBatch 逐个抓取一组订阅并合并成功结果；单个失败绝不中断批次。
func (h *SubHandler) HandleBatch(c fiber.Ctx) error {
	started := time.Now()

	var req batchRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body_invalid"})
	}
	if len(req.URLs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "urls_required"})
	}
	if len(req.URLs) > h.maxBatchURLs {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "too_many_urls"})
	}

	opts := subfetch.Options{MaxRetries: h.retriesFromInt(req.Retries)}
	ctx := requestContext(c)

	items := make([]batchItem, 0, len(req.URLs))
	var merged strings.Builder
	succeeded := 0

	for _, rawURL := range req.URLs {
		rawURL = strings.TrimSpace(rawURL)
		if err := validateSubscriptionURL(rawURL); err != nil {
			items = append(items, batchItem{URL: rawURL, Error: "url_invalid"})
			continue
		}

		result := h.service.FetchWithCache(ctx, rawURL, opts)
		item := batchItem{
			URL:       rawURL,
			Success:   result.Success,
			FromCache: result.FromCache,
			Warning:   result.Warning,
			Error:     result.Error,
		}
		items = append(items, item)

		if result.Success {
			succeeded++
			if merged.Len() > 0 {
				merged.WriteByte('\n')
			}
			merged.WriteString(strings.TrimRight(result.Content, "\n"))
		}
	}

	h.logger.WithFields(logrus.Fields{
		"action":     "batch_fetch",
		"request_id": RequestID(c),
		"total":      len(req.URLs),
		"succeeded":  succeeded,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("batch_complete")

	return c.JSON(fiber.Map{
		"results":   items,
		"content":   merged.String(),
		"total":     len(req.URLs),
		"succeeded": succeeded,
	})
}

func (h *SubHandler) retriesFrom(raw string) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return h.defaultRetries
	}
	return h.retriesFromInt(value)
}

// retriesFromInt 将调用方给定的预算收敛到 1..10，越界时退回默认值。
func (h *SubHandler) retriesFromInt(value int) int {
	if value < 1 || value > 10 {
		return h.defaultRetries
	}
	return value
}

func (h *SubHandler) logResult(c fiber.Ctx, rawURL string, result subfetch.Result, started time.Time) {
	fields := logging.FetchFields(rawURL, cachekey.Derive(rawURL), result.FromCache, result.Success)
	fields["action"] = "sub_fetch"
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	if reqID := RequestID(c); reqID != "" {
		fields["request_id"] = reqID
	}
	if !result.Success {
		fields["error"] = result.Error
		h.logger.WithFields(fields).Error("sub_fetch_failed")
		return
	}
	h.logger.WithFields(fields).Info("sub_fetch_complete")
}

func validateSubscriptionURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errInvalidScheme
	}
	if parsed.Host == "" {
		return errMissingHost
	}
	return nil
}

var (
	errInvalidScheme = errors.New("仅支持 http/https 订阅地址")
	errMissingHost   = errors.New("订阅地址缺少 Host")
)

func requestContext(c fiber.Ctx) context.Context {
	ctx := c.Context()
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
