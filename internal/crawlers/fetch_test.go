package crawlers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorPageDetector(t *testing.T) {
	d := NewErrorPageDetector(nil)

	tests := []struct {
		name string
		html string
		want bool
	}{
		{"空内容", "", true},
		{"访问频繁", "<p>您的访问过于频繁,请稍后再试</p>", true},
		{"Cloudflare 等待页", "<title>Just a moment...</title>", true},
		{"大小写不敏感", "<h1>ACCESS DENIED</h1>", true},
		{"正常页面", "<div id=\"content\">少年握紧了长剑</div>", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, d.IsErrorPage(tt.html))
		})
	}

	custom := NewErrorPageDetector([]string{"  维护中 ", ""})
	assert.True(t, custom.IsErrorPage("站点维护中"))
	assert.False(t, custom.IsErrorPage("访问过于频繁"), "自定义列表替换默认列表")
}

func TestRetrier_SucceedsAfterFailures(t *testing.T) {
	const u = "https://a.com/book/1/"
	site := newFakeSession(map[string]string{u: "<h1>斗破苍穹</h1>"})
	site.failTimes(u, 2)

	var waits []time.Duration
	r := NewRetrier(nil, []string{"UA-1", "UA-2"})
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}

	res := r.Fetch(context.Background(), site, u, 3, 1.0)
	assert.True(t, res.OK)
	assert.Equal(t, 3, res.Attempts)
	assert.NoError(t, res.Err)
	assert.Equal(t, "<h1>斗破苍穹</h1>", res.HTML)

	require.Len(t, waits, 2)
	// baseSleep*第几次 + U(0.2,0.9)
	assert.True(t, waits[0] >= 1200*time.Millisecond && waits[0] <= 1900*time.Millisecond, "第一次等待 %v", waits[0])
	assert.True(t, waits[1] >= 2200*time.Millisecond && waits[1] <= 2900*time.Millisecond, "第二次等待 %v", waits[1])
	assert.Len(t, site.uas, 2, "每次重试前都轮换UA")
	for _, ua := range site.uas {
		assert.Contains(t, []string{"UA-1", "UA-2"}, ua)
	}
}

func TestRetrier_ReturnsLastErrorPage(t *testing.T) {
	const u = "https://a.com/1.html"
	site := newFakeSession(map[string]string{u: "<p>访问过于频繁</p>"})
	r := newTestRetrier()

	res := r.Fetch(context.Background(), site, u, 3, 0)
	assert.False(t, res.OK)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, "<p>访问过于频繁</p>", res.HTML, "耗尽重试后仍返回最后一次的页面")
	assert.Equal(t, 3, site.callsFor(u))
	assert.Empty(t, site.uas, "未配置UA池时不轮换")
}

func TestRetrier_TransportErrorTreatedAsEmpty(t *testing.T) {
	site := newFakeSession(map[string]string{})
	r := newTestRetrier()

	res := r.Fetch(context.Background(), site, "https://a.com/x", 0, 0)
	assert.False(t, res.OK)
	assert.Equal(t, 1, res.Attempts, "tries<1 时至少尝试一次")
	assert.Error(t, res.Err)
	assert.Empty(t, res.HTML)
}

func TestRetrier_StopsOnCancel(t *testing.T) {
	const u = "https://a.com/x"
	site := newFakeSession(map[string]string{})
	ctx, cancel := context.WithCancel(context.Background())

	r := NewRetrier(nil, nil)
	r.Sleep = func(ctx context.Context, d time.Duration) error {
		cancel()
		return SleepContext(ctx, d)
	}

	res := r.Fetch(ctx, site, u, 5, 1)
	assert.ErrorIs(t, res.Err, context.Canceled)
	assert.Equal(t, 1, site.callsFor(u))
}

func TestRetrier_Backoff(t *testing.T) {
	r := newTestRetrier()
	for round, base := range []time.Duration{4 * time.Second, 6 * time.Second, 9 * time.Second} {
		d := r.Backoff(4.0, round)
		assert.True(t, d >= base && d <= base+1500*time.Millisecond, "第%d轮等待 %v", round, d)
	}
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, SleepContext(context.Background(), 0))
	assert.NoError(t, SleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), context.Canceled)
}
