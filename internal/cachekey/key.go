// Package cachekey 将订阅 URL 映射为持久缓存使用的短键。
package cachekey

import "strconv"

// SentinelKey 是空 URL 对应的固定键，保证 Derive 永不失败。
const SentinelKey = "0"

// Derive 把 URL 字节序列折叠进 32 位有符号累加器（acc = acc*31 + byte，
// 允许回绕），输出最终绝对值的小写十六进制。结果跨进程稳定、完全确定。
//
// 该散列非加密级：两个不同 URL 理论上可能得到同一个键并互相覆盖缓存，
// 短键契约优先于碰撞防护。
func Derive(rawURL string) string {
	if rawURL == "" {
		return SentinelKey
	}

	var acc int32
	for i := 0; i < len(rawURL); i++ {
		acc = acc<<5 - acc + int32(rawURL[i])
	}

	// int32 最小值取绝对值会溢出，先提升到 int64。
	value := int64(acc)
	if value < 0 {
		value = -value
	}
	return strconv.FormatInt(value, 16)
}
