package crawlers

import (
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

const (
	// DefaultProxyCooldown 代理被摘除后的冷却时间
	DefaultProxyCooldown = 60 * time.Second
	// DefaultProxyFailThreshold 连续失败多少次后摘除
	DefaultProxyFailThreshold = 2
)

type proxyState struct {
	url   *url.URL
	fails int
	until time.Time // 冷却结束时间
}

// ProxyPool 代理池
// 连续失败达到阈值的代理进入冷却,冷却结束后重新可用;成功会清零失败计数。
// 所有会话共享同一个池,方法都是并发安全的
type ProxyPool struct {
	mu        sync.Mutex
	proxies   []*proxyState
	cooldown  time.Duration
	threshold int
	now       func() time.Time
	intn      func(n int) int
}

// NewProxyPool 创建代理池;缺少协议的条目按 http:// 处理
func NewProxyPool(list []string, cooldown time.Duration, threshold int) (*ProxyPool, error) {
	if cooldown <= 0 {
		cooldown = DefaultProxyCooldown
	}
	if threshold < 1 {
		threshold = DefaultProxyFailThreshold
	}
	p := &ProxyPool{
		cooldown:  cooldown,
		threshold: threshold,
		now:       time.Now,
		intn:      rand.Intn,
	}
	for _, raw := range list {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if !strings.Contains(raw, "://") {
			raw = "http://" + raw
		}
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("无效的代理地址 %q", utils.RedactProxyURL(raw))
		}
		p.proxies = append(p.proxies, &proxyState{url: u})
	}
	return p, nil
}

// Len 代理总数
func (p *ProxyPool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.proxies)
}

// Available 当前未在冷却中的代理数
func (p *ProxyPool) Available() int {
	if p == nil {
		return 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for _, s := range p.proxies {
		if !now.Before(s.until) {
			n++
		}
	}
	return n
}

// Pick 随机挑选一个可用代理;全部冷却或池为空时返回 nil(直连)
func (p *ProxyPool) Pick() *url.URL {
	if p == nil || len(p.proxies) == 0 {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	ready := make([]*proxyState, 0, len(p.proxies))
	for _, s := range p.proxies {
		if !now.Before(s.until) {
			ready = append(ready, s)
		}
	}
	if len(ready) == 0 {
		return nil
	}
	return ready[p.intn(len(ready))].url
}

// MarkFailed 记录一次失败,达到阈值后进入冷却
func (p *ProxyPool) MarkFailed(u *url.URL) {
	if s := p.find(u); s != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		s.fails++
		if s.fails >= p.threshold {
			s.until = p.now().Add(p.cooldown)
			s.fails = 0
		}
	}
}

// MarkOK 记录一次成功,清零失败计数
func (p *ProxyPool) MarkOK(u *url.URL) {
	if s := p.find(u); s != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		s.fails = 0
	}
}

func (p *ProxyPool) find(u *url.URL) *proxyState {
	if p == nil || u == nil {
		return nil
	}
	for _, s := range p.proxies {
		if s.url == u || s.url.String() == u.String() {
			return s
		}
	}
	return nil
}
