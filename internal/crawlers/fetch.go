package crawlers

import (
	"context"
	"math/rand"
	"strings"
	"sync"
	"time"
)

// DefaultErrorMarkers 错误页/反爬页的特征短语
var DefaultErrorMarkers = []string{
	"出现错误", "出错", "错误", "访问过于频繁", "频繁", "验证", "安全", "禁止访问",
	"Access Denied", "Just a moment",
}

// ErrorPageDetector 按特征短语识别错误页和反爬页面
// 只是启发式判断,误判由重试兜底
type ErrorPageDetector struct {
	markers []string // 小写
}

// NewErrorPageDetector 创建检测器;markers 为空时使用默认短语
func NewErrorPageDetector(markers []string) *ErrorPageDetector {
	if len(markers) == 0 {
		markers = DefaultErrorMarkers
	}
	d := &ErrorPageDetector{markers: make([]string, 0, len(markers))}
	for _, m := range markers {
		if m = strings.TrimSpace(m); m != "" {
			d.markers = append(d.markers, strings.ToLower(m))
		}
	}
	return d
}

// IsErrorPage 空内容或包含任一特征短语即视为错误页(不区分大小写)
func (d *ErrorPageDetector) IsErrorPage(html string) bool {
	if html == "" {
		return true
	}
	lower := strings.ToLower(html)
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Sleeper 可被 ctx 打断的等待
type Sleeper func(ctx context.Context, d time.Duration) error

// SleepContext 默认 Sleeper
func SleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// FetchResult 一次带重试抓取的结果
// OK 为 false 时 HTML 可能是最后一次拿到的错误页,调用方按软失败处理
type FetchResult struct {
	HTML     string
	Attempts int
	OK       bool
	Err      error // 最后一次传输错误,或 ctx 取消
}

// Retrier 错误页检测 + 退避重试 + UA 轮换
type Retrier struct {
	Detector   *ErrorPageDetector
	UserAgents []string // 为空时不轮换
	Sleep      Sleeper

	randMu sync.Mutex
	rnd    *rand.Rand
}

// NewRetrier 创建重试器
func NewRetrier(detector *ErrorPageDetector, userAgents []string) *Retrier {
	if detector == nil {
		detector = NewErrorPageDetector(nil)
	}
	return &Retrier{
		Detector:   detector,
		UserAgents: userAgents,
		Sleep:      SleepContext,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Fetch 最多尝试 tries 次
// 传输错误与空内容、错误页同样处理:两次尝试之间等待
// baseSleep*(第几次) + U(0.2,0.9) 秒,并在配置了UA池时随机换一个UA
func (r *Retrier) Fetch(ctx context.Context, s Session, rawURL string, tries int, baseSleep float64) FetchResult {
	if tries < 1 {
		tries = 1
	}
	var res FetchResult
	for i := 0; i < tries; i++ {
		res.Attempts = i + 1

		html, err := s.FetchText(ctx, rawURL)
		if err == nil {
			res.HTML = html
			res.Err = nil
		} else {
			res.Err = err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.Err = ctxErr
			return res
		}
		if err == nil && !r.Detector.IsErrorPage(html) {
			res.OK = true
			return res
		}
		if i == tries-1 {
			break
		}

		wait := time.Duration((baseSleep*float64(i+1) + r.uniform(0.2, 0.9)) * float64(time.Second))
		if err := r.Sleep(ctx, wait); err != nil {
			res.Err = err
			return res
		}
		if len(r.UserAgents) > 0 {
			s.SetUserAgent(r.UserAgents[r.intn(len(r.UserAgents))])
		}
	}
	return res
}

// Backoff 第 round 轮(从0开始)重试前的等待: base*1.5^round + U(0,1.5) 秒
func (r *Retrier) Backoff(base float64, round int) time.Duration {
	factor := 1.0
	for i := 0; i < round; i++ {
		factor *= 1.5
	}
	return time.Duration((base*factor + r.uniform(0, 1.5)) * float64(time.Second))
}

func (r *Retrier) uniform(lo, hi float64) float64 {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return lo + r.rnd.Float64()*(hi-lo)
}

func (r *Retrier) intn(n int) int {
	r.randMu.Lock()
	defer r.randMu.Unlock()
	if r.rnd == nil {
		r.rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return r.rnd.Intn(n)
}
