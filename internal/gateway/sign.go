package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"

	"github.com/aa547887/GameSpace-sub003/internal/config"
)

// Signer 负责 CheckMacValue 的生成与验证。
// 算法：除检核码本身外所有栏位按键名排序，串成
// HashKey=...&k1=v1&...&HashIV=... 后整段 urlencode、转小写、
// 取 MD5，十六进制大写即为检核码。验证时不分大小写比对。
type Signer struct {
	hashKey string
	hashIV  string
}

// NewSigner 依金流配置创建签章器
func NewSigner(cfg *config.PaymentConfig) *Signer {
	return &Signer{hashKey: cfg.HashKey, hashIV: cfg.HashIV}
}

// Sign 对一组表单栏位计算检核码，params 里已有的 CheckMacValue 会被忽略
func (s *Signer) Sign(params url.Values) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if strings.EqualFold(k, SignField) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("HashKey=")
	b.WriteString(s.hashKey)
	for _, k := range keys {
		b.WriteString("&")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params.Get(k))
	}
	b.WriteString("&HashIV=")
	b.WriteString(s.hashIV)

	encoded := strings.ToLower(urlEncodeDotNet(b.String()))
	sum := md5.Sum([]byte(encoded))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Verify 验证进站报文的检核码。栏位缺失或不符都视为验证失败，
// 调用方此时不得有任何状态写入。
func (s *Signer) Verify(params url.Values) bool {
	declared := params.Get(SignField)
	if declared == "" {
		return false
	}
	return strings.EqualFold(s.Sign(params), declared)
}

// urlEncodeDotNet 网关规范要求的 .NET 风格 urlencode：
// 空白转 +，且 - _ . ! * ( ) 不转义
func urlEncodeDotNet(raw string) string {
	encoded := url.QueryEscape(raw)
	replacer := strings.NewReplacer(
		"%2D", "-",
		"%2d", "-",
		"%5F", "_",
		"%5f", "_",
		"%2E", ".",
		"%2e", ".",
		"%21", "!",
		"%2A", "*",
		"%2a", "*",
		"%28", "(",
		"%29", ")",
	)
	return replacer.Replace(encoded)
}
