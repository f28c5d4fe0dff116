package config

import "errors"

// Validate 针对语义级别做进一步校验，防止非法配置启动服务。
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("配置为空")
	}

	g := c.Global
	if g.ListenPort <= 0 || g.ListenPort > 65535 {
		return newFieldError("ListenPort", "必须在 1-65535")
	}
	if g.MaxRetries < 1 {
		return newFieldError("MaxRetries", "必须大于等于 1")
	}
	if g.MaxRetries > 10 {
		return newFieldError("MaxRetries", "不应超过 10，过大的预算会拖垮订阅源")
	}
	if g.UpstreamTimeout.DurationValue() <= 0 {
		return newFieldError("UpstreamTimeout", "必须大于 0")
	}
	if g.MaxBatchURLs < 1 {
		return newFieldError("MaxBatchURLs", "必须大于等于 1")
	}
	if g.LogMaxSize < 0 {
		return newFieldError("LogMaxSize", "不能为负数")
	}
	if g.LogMaxBackups < 0 {
		return newFieldError("LogMaxBackups", "不能为负数")
	}

	return nil
}
