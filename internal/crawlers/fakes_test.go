package crawlers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var errConnReset = errors.New("connection reset by peer")

// fakeSession 内存中的站点,可对指定URL注入若干次失败
type fakeSession struct {
	mu    sync.Mutex
	pages map[string]string
	fails map[string]int
	calls map[string]int
	uas   []string
}

func newFakeSession(pages map[string]string) *fakeSession {
	return &fakeSession{
		pages: pages,
		fails: make(map[string]int),
		calls: make(map[string]int),
	}
}

func (f *fakeSession) FetchText(ctx context.Context, rawURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++
	if f.fails[rawURL] > 0 {
		f.fails[rawURL]--
		return "", errConnReset
	}
	html, ok := f.pages[rawURL]
	if !ok {
		return "", fmt.Errorf("请求 %s 失败: HTTP 404", rawURL)
	}
	return html, nil
}

func (f *fakeSession) FetchBytes(ctx context.Context, rawURL, referer string) ([]byte, string, error) {
	html, err := f.FetchText(ctx, rawURL)
	if err != nil {
		return nil, "", err
	}
	return []byte(html), "application/octet-stream", nil
}

func (f *fakeSession) SetUserAgent(ua string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uas = append(f.uas, ua)
}

func (f *fakeSession) failTimes(rawURL string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[rawURL] = n
}

func (f *fakeSession) callsFor(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func noSleep(ctx context.Context, d time.Duration) error {
	return ctx.Err()
}

func newTestRetrier(uas ...string) *Retrier {
	r := NewRetrier(nil, uas)
	r.Sleep = noSleep
	return r
}
