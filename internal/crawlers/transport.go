package crawlers

import (
	"bytes"
	"compress/flate"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"

	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

// TransportOptions 底层HTTP传输配置
type TransportOptions struct {
	PoolSize           int                                   // 每个主机的空闲连接上限
	Proxy              func(*http.Request) (*url.URL, error) // 代理选择函数,可为 nil
	InsecureSkipVerify bool                                  // 跳过TLS证书验证
}

// NewTransport 创建带连接池与解压能力的传输层
// gzip 由 colly 自行处理,这里只负责 br 与 deflate
func NewTransport(opts TransportOptions) http.RoundTripper {
	pool := opts.PoolSize
	if pool < 2 {
		pool = 2
	}
	base := &http.Transport{
		Proxy:               opts.Proxy,
		MaxIdleConns:        pool,
		MaxIdleConnsPerHost: pool,
		MaxConnsPerHost:     pool,
		IdleConnTimeout:     90 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: opts.InsecureSkipVerify,
		},
	}
	return &decompressingTransport{base: base}
}

// decompressingTransport 在 colly 读取之前解开 br/deflate 响应体
type decompressingTransport struct {
	base http.RoundTripper
}

// RoundTrip 实现 http.RoundTripper
func (t *decompressingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	if encoding != "br" && encoding != "deflate" {
		return resp, nil
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("读取响应体失败: %w", err)
	}
	body, err := decompressResponse(encoding, raw)
	if err != nil {
		utils.Warnf("解压响应失败 [%s] (编码=%s): %v", req.URL, encoding, err)
		body = raw
	}

	resp.Body = io.NopCloser(bytes.NewReader(body))
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = int64(len(body))
	resp.Uncompressed = true
	return resp, nil
}

// decompressResponse 根据Content-Encoding解压响应体
func decompressResponse(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "deflate":
		reader := flate.NewReader(bytes.NewReader(body))
		defer reader.Close()

		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("deflate读取失败: %w", err)
		}
		return decompressed, nil

	case "br":
		decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(body)))
		if err != nil {
			return nil, fmt.Errorf("brotli读取失败: %w", err)
		}
		return decompressed, nil

	case "", "identity":
		return body, nil

	default:
		utils.Warnf("未知的Content-Encoding: %s", contentEncoding)
		return body, nil
	}
}

// decodeBody 把响应体转为UTF-8文本
// Content-Type 带 charset 时 colly 已完成转换;否则按 <meta> 声明解码(GBK/GB18030 站点)
func decodeBody(body []byte, contentType string) string {
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		if _, ok := params["charset"]; ok {
			return string(body)
		}
	}

	enc, name, _ := charset.DetermineEncoding(body, "text/html")
	// windows-1252 是探测失败时的兜底结果,对中文站点没有意义
	if name == "utf-8" || name == "windows-1252" {
		return string(body)
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		utils.Debugf("按 %s 解码失败,使用原始内容: %v", name, err)
		return string(body)
	}
	return string(decoded)
}
