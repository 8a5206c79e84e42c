package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestListBooks_FilterAndDedup(t *testing.T) {
	page := `<html><body>
<div class="booklist"><ul>
  <li><a href="/book/1/">一</a></li>
  <li><a href="/book/2.html">二</a></li>
  <li><a href="/book/3/index.html">三</a></li>
  <li><a href="/book/1/">一(重复)</a></li>
  <li><a href="/book/4/5.html">章节链接</a></li>
  <li><a href="https://evil.com/book/6/">外站</a></li>
  <li><a href="https://m.a.com/book/7/">子域名</a></li>
  <li><a href="/xuanhuan/2.html">分页</a></li>
</ul></div>
</body></html>`

	got := ListBooks(page, "https://a.com/xuanhuan/")
	assert.Equal(t, []string{
		"https://a.com/book/1/",
		"https://a.com/book/2.html",
		"https://a.com/book/3/index.html",
		"https://m.a.com/book/7/",
	}, got)
}

func TestListBooks_RawMarkupFallback(t *testing.T) {
	// 没有任何 <a> 元素时,从原始标记里找书籍链接
	page := `<script>var books = ['<x href="/book/11/">', "/book/12/"];</script>`
	got := ListBooks(page, "https://a.com/list/1/")
	assert.Equal(t, []string{"https://a.com/book/11/"}, got)
}

func TestListBooks_Empty(t *testing.T) {
	assert.Empty(t, ListBooks("", "https://a.com/"))
}

func TestSameSite(t *testing.T) {
	assert.True(t, SameSite("a.com", ""))
	assert.True(t, SameSite("a.com", "a.com"))
	assert.True(t, SameSite("a.com:8080", "a.com"))
	assert.True(t, SameSite("a.com", "www.a.com"))
	assert.False(t, SameSite("a.com", "ba.com"))
	assert.False(t, SameSite("a.com", "b.com"))
}
