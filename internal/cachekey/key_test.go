package cachekey

import "testing"

func TestDeriveDeterministic(t *testing.T) {
	inputs := []string{
		"https://a.test/sub",
		"https://example.com/sub?token=abc123",
		"",
		"https://例子.测试/订阅",
		"ftp://weird input with spaces",
	}
	for _, input := range inputs {
		first := Derive(input)
		second := Derive(input)
		if first != second {
			t.Fatalf("同一输入应得到相同键: %q -> %q / %q", input, first, second)
		}
		if first == "" {
			t.Fatalf("键不应为空字符串: %q", input)
		}
	}
}

func TestDeriveEmptyReturnsSentinel(t *testing.T) {
	if got := Derive(""); got != SentinelKey {
		t.Fatalf("空 URL 应映射到哨兵键，得到 %q", got)
	}
}

func TestDeriveDiffersForDistinctURLs(t *testing.T) {
	a := Derive("https://a.test/sub")
	b := Derive("https://b.test/sub")
	if a == b {
		t.Fatalf("不同 URL 不应得到相同键: %q", a)
	}
}

func TestDeriveIsLowercaseHex(t *testing.T) {
	key := Derive("https://a.test/sub")
	for _, r := range key {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			t.Fatalf("键应为小写十六进制，得到 %q", key)
		}
	}
}
