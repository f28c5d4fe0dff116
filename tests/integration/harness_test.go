package integration

import (
	"io"
	"net/http"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/sub-hub/sub-hub/internal/fetcher"
	"github.com/sub-hub/sub-hub/internal/server"
	"github.com/sub-hub/sub-hub/internal/server/routes"
	"github.com/sub-hub/sub-hub/internal/subcache"
	"github.com/sub-hub/sub-hub/internal/subfetch"
)

// harness 把完整的服务栈（持久缓存 + 抓取器 + Fiber 应用）组装起来，
// 供集成测试以 app.Test 方式端到端验证。
type harness struct {
	App   *fiber.App
	Store *subcache.Store
}

func newHarness(t *testing.T, client *http.Client) *harness {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := subcache.Open(filepath.Join(t.TempDir(), "cache.db"), logger)
	if err != nil {
		t.Fatalf("打开缓存库失败: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	service := subfetch.NewService(fetcher.New(client, logger), store, logger)
	app, err := server.NewApp(server.AppOptions{
		Logger:         logger,
		Service:        service,
		DefaultRetries: 3,
		MaxBatchURLs:   8,
		ListenPort:     5000,
	})
	if err != nil {
		t.Fatalf("构建应用失败: %v", err)
	}

	routes.RegisterCacheRoutes(app, store)
	routes.RegisterIdentityRoutes(app)
	return &harness{App: app, Store: store}
}

// originStub 是可切换成功/失败的上游订阅源模拟器，并记录每次请求的
// User-Agent，便于断言身份轮换。
type originStub struct {
	mu      sync.Mutex
	failing bool
	body    string
	agents  []string
}

func (o *originStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.agents = append(o.agents, r.Header.Get("User-Agent"))
	failing := o.failing
	body := o.body
	o.mu.Unlock()

	if failing {
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	_, _ = w.Write([]byte(body))
}

func (o *originStub) setFailing(failing bool) {
	o.mu.Lock()
	o.failing = failing
	o.mu.Unlock()
}

func (o *originStub) setBody(body string) {
	o.mu.Lock()
	o.body = body
	o.mu.Unlock()
}

func (o *originStub) recordedAgents() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.agents...)
}
