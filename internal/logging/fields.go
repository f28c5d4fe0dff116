package logging

import "github.com/sirupsen/logrus"

// BaseFields 构建 action + 配置路径等基础字段，便于不同入口复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// FetchFields 提供订阅抓取请求的公共字段，供 HTTP 层日志复用。
func FetchFields(url, key string, fromCache, success bool) logrus.Fields {
	return logrus.Fields{
		"url":        url,
		"cache_key":  key,
		"from_cache": fromCache,
		"success":    success,
	}
}
