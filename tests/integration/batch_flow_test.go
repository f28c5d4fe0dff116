package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"

	"github.com/sub-hub/sub-hub/internal/cachekey"
)

// TestBatchMergesHealthyAndFallback 验证批量抓取合并新鲜与回退内容，
// 且单个彻底失败不会中断批次。
func TestBatchMergesHealthyAndFallback(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/fresh", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("FRESH\n"))
	})
	mux.HandleFunc("/stale", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	mux.HandleFunc("/dead", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	upstream := httptest.NewServer(mux)
	defer upstream.Close()

	h := newHarness(t, upstream.Client())

	// 预置 /stale 的缓存条目，让它在批次里走回退路径。
	staleURL := upstream.URL + "/stale"
	h.Store.Put(context.Background(), cachekey.Derive(staleURL), staleURL, "STALE")

	payload, _ := json.Marshal(map[string]any{
		"urls": []string{
			upstream.URL + "/fresh",
			staleURL,
			upstream.URL + "/dead",
		},
		"retries": 1,
	})
	req := httptest.NewRequest("POST", "/sub/batch", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.App.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded struct {
		Results []struct {
			URL       string `json:"url"`
			Success   bool   `json:"success"`
			FromCache bool   `json:"from_cache"`
			Warning   string `json:"warning"`
		} `json:"results"`
		Content   string `json:"content"`
		Total     int    `json:"total"`
		Succeeded int    `json:"succeeded"`
	}
	body, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("解析批量响应失败: %v", err)
	}

	if decoded.Total != 3 || decoded.Succeeded != 2 {
		t.Fatalf("批量计数不匹配: %+v", decoded)
	}
	if decoded.Content != "FRESH\nSTALE" {
		t.Fatalf("合并内容不匹配: %q", decoded.Content)
	}
	if !decoded.Results[1].FromCache || decoded.Results[1].Warning == "" {
		t.Fatalf("回退条目应标记来源与告警: %+v", decoded.Results[1])
	}
	if decoded.Results[2].Success {
		t.Fatalf("彻底失败条目不应标记成功: %+v", decoded.Results[2])
	}
}

// TestBatchRejectsOversizedRequest 验证批量上限在路由层生效。
func TestBatchRejectsOversizedRequest(t *testing.T) {
	h := newHarness(t, http.DefaultClient)

	urls := make([]string, 9)
	for i := range urls {
		urls[i] = "http://origin.test/sub"
	}
	payload, _ := json.Marshal(map[string]any{"urls": urls})

	req := httptest.NewRequest("POST", "/sub/batch", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.App.Test(req)
	if err != nil {
		t.Fatalf("app.Test failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("超限批次应返回 400，得到 %d", resp.StatusCode)
	}
}
