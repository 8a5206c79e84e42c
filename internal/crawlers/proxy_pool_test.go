package crawlers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProxyPool_CooldownAndRecovery(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	p, err := NewProxyPool([]string{"1.1.1.1:8080", "http://user:pw@2.2.2.2:3128"}, time.Minute, 2)
	require.NoError(t, err)
	p.now = func() time.Time { return now }
	p.intn = func(n int) int { return 0 }

	require.Equal(t, 2, p.Len())
	first := p.Pick()
	require.NotNil(t, first)
	assert.Equal(t, "http://1.1.1.1:8080", first.String(), "缺少协议时补 http://")

	p.MarkFailed(first)
	assert.Equal(t, 2, p.Available(), "未达阈值不摘除")
	p.MarkOK(first)
	p.MarkFailed(first)
	assert.Equal(t, 2, p.Available(), "成功会清零失败计数")
	p.MarkFailed(first)
	assert.Equal(t, 1, p.Available())

	second := p.Pick()
	require.NotNil(t, second)
	assert.Equal(t, "2.2.2.2:3128", second.Host)

	p.MarkFailed(second)
	p.MarkFailed(second)
	assert.Nil(t, p.Pick(), "全部冷却时直连")

	now = now.Add(61 * time.Second)
	assert.Equal(t, 2, p.Available())
	assert.NotNil(t, p.Pick())
}

func TestProxyPool_NilAndInvalid(t *testing.T) {
	var p *ProxyPool
	assert.Nil(t, p.Pick())
	assert.Equal(t, 0, p.Len())
	p.MarkFailed(nil)

	empty, err := NewProxyPool(nil, 0, 0)
	require.NoError(t, err)
	assert.Nil(t, empty.Pick())

	_, err = NewProxyPool([]string{"http://"}, 0, 0)
	assert.Error(t, err)
}
