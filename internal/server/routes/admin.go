// Package routes 注册 /-/ 前缀下的管理与诊断接口。
package routes

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/sub-hub/sub-hub/internal/fetcher"
	"github.com/sub-hub/sub-hub/internal/subcache"
)

// RegisterCacheRoutes 暴露持久缓存的管理面：聚合统计、按新旧列出、
// 单键删除、整表清空与“先删后插”修复。store 为 nil 时接口返回 503。
func RegisterCacheRoutes(app *fiber.App, store *subcache.Store) {
	if app == nil {
		return
	}

	app.Get("/-/cache/stats", func(c fiber.Ctx) error {
		if store == nil {
			return storeUnavailable(c)
		}
		return c.JSON(store.Stats(c.Context()))
	})

	app.Get("/-/cache/entries", func(c fiber.Ctx) error {
		if store == nil {
			return storeUnavailable(c)
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		entries := store.List(c.Context(), limit)
		return c.JSON(fiber.Map{"entries": encodeEntries(entries)})
	})

	app.Delete("/-/cache/entries/:key", func(c fiber.Ctx) error {
		if store == nil {
			return storeUnavailable(c)
		}
		key := strings.TrimSpace(c.Params("key"))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key_required"})
		}
		return c.JSON(fiber.Map{"cleared": store.Clear(c.Context(), key)})
	})

	app.Delete("/-/cache/entries", func(c fiber.Ctx) error {
		if store == nil {
			return storeUnavailable(c)
		}
		return c.JSON(fiber.Map{"cleared": store.ClearAll(c.Context())})
	})

	app.Put("/-/cache/entries/:key", func(c fiber.Ctx) error {
		if store == nil {
			return storeUnavailable(c)
		}
		key := strings.TrimSpace(c.Params("key"))
		if key == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "key_required"})
		}

		var payload fixPayload
		if err := json.Unmarshal(c.Body(), &payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "body_invalid"})
		}
		if payload.URL == "" || payload.Content == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url_and_content_required"})
		}
		return c.JSON(fiber.Map{"fixed": store.Fix(c.Context(), key, payload.URL, payload.Content)})
	})
}

// RegisterIdentityRoutes 暴露身份池诊断接口，便于排查轮换顺序。
func RegisterIdentityRoutes(app *fiber.App) {
	if app == nil {
		return
	}

	app.Get("/-/identities", func(c fiber.Ctx) error {
		pool := fetcher.Identities()
		labels := make([]string, len(pool))
		for i, identity := range pool {
			labels[i] = identity.Label
		}
		return c.JSON(fiber.Map{
			"pool_size": fetcher.PoolSize(),
			"labels":    labels,
		})
	})
}

type fixPayload struct {
	URL     string `json:"url"`
	Content string `json:"content"`
}

type entryPayload struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	CreatedAt    int64  `json:"created_at"`
	UpdatedAt    int64  `json:"updated_at"`
	SuccessCount int64  `json:"success_count"`
	FailCount    int64  `json:"fail_count"`
	ContentBytes int    `json:"content_bytes"`
}

// encodeEntries 省略正文本身，只输出长度，避免管理接口返回超大响应。
func encodeEntries(entries []subcache.Entry) []entryPayload {
	if len(entries) == 0 {
		return nil
	}
	result := make([]entryPayload, 0, len(entries))
	for _, entry := range entries {
		result = append(result, entryPayload{
			Key:          entry.Key,
			URL:          entry.URL,
			CreatedAt:    entry.CreatedAt,
			UpdatedAt:    entry.UpdatedAt,
			SuccessCount: entry.SuccessCount,
			FailCount:    entry.FailCount,
			ContentBytes: len(entry.Content),
		})
	}
	return result
}

func storeUnavailable(c fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "cache_disabled"})
}
