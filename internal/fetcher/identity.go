package fetcher

// ClientIdentity 模拟一种订阅客户端指纹：Label 即 User-Agent 值，
// Headers 是该客户端通常附带的其余请求头。
type ClientIdentity struct {
	Label   string
	Headers map[string]string
}

// identityPool 是进程生命周期内不变的有序身份池。第 i 次尝试使用
// pool[(i-1) mod N]，顺序决定了与常见订阅源的兼容性优先级。
// 身份头不得声明 Accept-Encoding：内容协商与解压交给 transport，
// 手动设置会关闭 net/http 的透明 gzip 解码，导致压缩字节被当作正文。
var identityPool = []ClientIdentity{
	{
		Label: "clash-verge/v1.7.7",
		Headers: map[string]string{
			"Accept": "*/*",
		},
	},
	{
		Label: "ClashforWindows/0.20.39",
		Headers: map[string]string{
			"Accept": "*/*",
		},
	},
	{
		Label: "v2rayNG/1.8.23",
		Headers: map[string]string{
			"Accept": "*/*",
		},
	},
	{
		Label: "Shadowrocket/2.2.40",
		Headers: map[string]string{
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
		},
	},
	{
		Label: "sing-box/1.9.3",
		Headers: map[string]string{
			"Accept": "*/*",
		},
	},
	{
		Label: "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		},
	},
}

// Identities 返回身份池的副本，供诊断接口与测试只读使用。
func Identities() []ClientIdentity {
	result := make([]ClientIdentity, len(identityPool))
	for i, identity := range identityPool {
		headers := make(map[string]string, len(identity.Headers))
		for key, value := range identity.Headers {
			headers[key] = value
		}
		result[i] = ClientIdentity{Label: identity.Label, Headers: headers}
	}
	return result
}

// PoolSize 返回身份池大小。
func PoolSize() int {
	return len(identityPool)
}

// identityFor 返回第 attempt 次（从 1 开始）尝试应使用的身份。
func identityFor(attempt int) ClientIdentity {
	return identityPool[(attempt-1)%len(identityPool)]
}
