package config

import "testing"

func TestLoadFailsWithMissingFile(t *testing.T) {
	if _, err := Load(testConfigPath(t, "missing.toml")); err == nil {
		t.Fatalf("不存在的配置文件应返回错误")
	}
}

func TestLoadRejectsInvalidDuration(t *testing.T) {
	path := writeTempConfig(t, `
ListenPort = 5000
UpstreamTimeout = "boom"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("无效 Duration 应失败")
	}
}

func TestLoadAcceptsNumericSecondsDuration(t *testing.T) {
	path := writeTempConfig(t, `
ListenPort = 5000
UpstreamTimeout = 45
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("纯秒数 Duration 应被接受: %v", err)
	}
	if cfg.Global.UpstreamTimeout.DurationValue().Seconds() != 45 {
		t.Fatalf("UpstreamTimeout 应为 45s，得到 %v", cfg.Global.UpstreamTimeout.DurationValue())
	}
}

func TestLoadRejectsExcessiveRetries(t *testing.T) {
	if _, err := Load(testConfigPath(t, "bad-retries.toml")); err == nil {
		t.Fatalf("超出预算上限的 MaxRetries 应失败")
	}
}

func TestLoadRejectsBadRetries(t *testing.T) {
	path := writeTempConfig(t, `
ListenPort = 5000
MaxRetries = -2
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("负数 MaxRetries 应失败")
	}
}
