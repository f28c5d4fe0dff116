// Package fetcher 以轮换客户端身份的方式抓取订阅内容，
// 在有限的尝试预算内顺序重试，绝不并发扇出。
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
)

// HTTPError 表示收到了响应但状态码不在成功区间。
type HTTPError struct {
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Status)
}

// FetchError 在所有尝试耗尽后返回，携带最后一次失败的原因。
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Fetcher 复用共享 http.Client，按身份池顺序发起抓取。
type Fetcher struct {
	client *http.Client
	logger *logrus.Logger
}

// New 构造 Fetcher；logger 为 nil 时使用 logrus 标准实例。
func New(client *http.Client, logger *logrus.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fetcher{client: client, logger: logger}
}

// Fetch 依次发起最多 maxAttempts 次请求：第 i 次使用 pool[(i-1) mod N]
// 的身份；若 baseHeaders 未指定 User-Agent，则由所选身份补齐；仅第一次
// 尝试额外合并该身份声明的其余请求头。任一尝试返回 2xx 即短路返回正文，
// 全部失败则返回携带最后一次原因的 *FetchError。
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, baseHeaders map[string]string, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var lastErr error
	attempts := 0
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		identity := identityFor(attempt)
		attempts = attempt

		body, err := f.attempt(ctx, rawURL, baseHeaders, identity, attempt == 1)
		if err == nil {
			return body, nil
		}
		lastErr = err

		f.logger.WithFields(logrus.Fields{
			"action":   "fetch_attempt",
			"url":      rawURL,
			"attempt":  attempt,
			"identity": identity.Label,
			"error":    err.Error(),
		}).Warn("fetch_attempt_failed")

		// context 已取消时继续重试没有意义。
		if ctx.Err() != nil {
			break
		}
	}

	return "", &FetchError{URL: rawURL, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) attempt(
	ctx context.Context,
	rawURL string,
	baseHeaders map[string]string,
	identity ClientIdentity,
	mergeIdentityHeaders bool,
) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	for key, value := range baseHeaders {
		req.Header.Set(key, value)
	}
	if !hasUserAgent(baseHeaders) {
		req.Header.Set("User-Agent", identity.Label)
	}
	if mergeIdentityHeaders {
		for key, value := range identity.Headers {
			// Accept-Encoding 必须留给 transport，否则透明解压被关闭。
			if strings.EqualFold(key, "Accept-Encoding") {
				continue
			}
			if req.Header.Get(key) == "" {
				req.Header.Set(key, value)
			}
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// 排空正文以便连接复用。
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", &HTTPError{Status: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func hasUserAgent(headers map[string]string) bool {
	for key := range headers {
		if strings.EqualFold(key, "User-Agent") {
			return true
		}
	}
	return false
}
