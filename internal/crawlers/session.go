package crawlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"golang.org/x/time/rate"

	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

var (
	// ErrEmptyBody 响应体为空
	ErrEmptyBody = errors.New("响应体为空")
	// ErrNoSession 会话工厂未配置
	ErrNoSession = errors.New("会话工厂未配置")
)

// Session 一个工作者独占的HTTP会话
type Session interface {
	// FetchText 抓取页面并返回UTF-8文本
	FetchText(ctx context.Context, rawURL string) (string, error)
	// FetchBytes 以指定 Referer 抓取二进制内容,返回内容与 Content-Type
	FetchBytes(ctx context.Context, rawURL, referer string) ([]byte, string, error)
	// SetUserAgent 替换后续请求的 User-Agent
	SetUserAgent(ua string)
}

// SessionOptions 会话配置
type SessionOptions struct {
	Timeout            time.Duration
	PoolSize           int
	Headers            http.Header   // 基础请求头
	Limiter            *rate.Limiter // 进程内共享的限速器,可为 nil
	Proxies            *ProxyPool    // 进程内共享的代理池,可为 nil
	InsecureSkipVerify bool
}

// NewLimiter 按请求间隔(秒)创建共享限速器;间隔为0时不限速
func NewLimiter(interval float64) *rate.Limiter {
	if interval <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(time.Duration(interval*float64(time.Second))), 1)
}

// CollySession 基于 colly 的会话
// 每次请求从基础 collector 克隆,克隆体共享同一个传输层和连接池
type CollySession struct {
	collector *colly.Collector
	headers   http.Header
	limiter   *rate.Limiter
	proxies   *ProxyPool

	mu        sync.Mutex
	userAgent string
	proxy     *url.URL // 本次请求使用的代理
}

// NewCollySession 创建会话
func NewCollySession(opts SessionOptions) *CollySession {
	s := &CollySession{
		headers: opts.Headers.Clone(),
		limiter: opts.Limiter,
		proxies: opts.Proxies,
	}
	if s.headers == nil {
		s.headers = make(http.Header)
	}
	s.userAgent = s.headers.Get("User-Agent")

	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	c.SetRequestTimeout(timeout)
	c.WithTransport(NewTransport(TransportOptions{
		PoolSize:           opts.PoolSize,
		Proxy:              s.proxyFunc,
		InsecureSkipVerify: opts.InsecureSkipVerify,
	}))
	s.collector = c
	return s
}

// SetUserAgent 实现 Session
func (s *CollySession) SetUserAgent(ua string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgent = ua
}

// UserAgent 当前 User-Agent
func (s *CollySession) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgent
}

// FetchText 实现 Session
func (s *CollySession) FetchText(ctx context.Context, rawURL string) (string, error) {
	body, contentType, err := s.fetch(ctx, rawURL, "")
	if err != nil {
		return "", err
	}
	if len(body) == 0 {
		return "", ErrEmptyBody
	}
	return decodeBody(body, contentType), nil
}

// FetchBytes 实现 Session
func (s *CollySession) FetchBytes(ctx context.Context, rawURL, referer string) ([]byte, string, error) {
	body, contentType, err := s.fetch(ctx, rawURL, referer)
	if err != nil {
		return nil, "", err
	}
	if len(body) == 0 {
		return nil, "", ErrEmptyBody
	}
	return body, contentType, nil
}

func (s *CollySession) fetch(ctx context.Context, rawURL, referer string) ([]byte, string, error) {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, "", err
		}
	}

	proxy := s.proxies.Pick()
	s.mu.Lock()
	s.proxy = proxy
	ua := s.userAgent
	s.mu.Unlock()

	c := s.collector.Clone()
	c.Context = ctx

	var (
		body        []byte
		contentType string
		status      int
	)
	c.OnRequest(func(r *colly.Request) {
		for name, values := range s.headers {
			if len(values) > 0 {
				r.Headers.Set(name, values[0])
			}
		}
		if ua != "" {
			r.Headers.Set("User-Agent", ua)
		}
		if referer != "" {
			r.Headers.Set("Referer", referer)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		contentType = r.Headers.Get("Content-Type")
		status = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	err := c.Visit(rawURL)
	if err != nil {
		// 状态码为0说明请求没有拿到响应,计入代理失败
		if status == 0 && proxy != nil {
			s.proxies.MarkFailed(proxy)
			utils.Debugf("代理请求失败 [%s] via %s: %v", rawURL, proxy.Redacted(), err)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		if status != 0 {
			return nil, "", fmt.Errorf("请求 %s 失败: HTTP %d: %w", rawURL, status, err)
		}
		return nil, "", fmt.Errorf("请求 %s 失败: %w", rawURL, err)
	}
	if proxy != nil {
		s.proxies.MarkOK(proxy)
	}
	return body, contentType, nil
}

func (s *CollySession) proxyFunc(*http.Request) (*url.URL, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.proxy, nil
}
