package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

type fakeCategories struct {
	names    map[string]string
	keywords map[string]string
	def      string
}

func (f fakeCategories) MapName(name string) (string, bool) {
	id, ok := f.names[name]
	return id, ok
}

func (f fakeCategories) MatchKeywords(blob string) string {
	for kw, id := range f.keywords {
		if strings.Contains(blob, kw) {
			return id
		}
	}
	return ""
}

func (f fakeCategories) DefaultID() string { return f.def }

const ogBookPage = `<html><head>
<title>斗破苍穹_天蚕土豆_某某小说网</title>
<meta property="og:novel:book_name" content="斗破苍穹">
<meta property="og:novel:author" content="天蚕土豆">
<meta property="og:image" content="/files/cover/123.jpg">
<meta property="og:description" content="这里是属于斗气的世界">
<meta property="og:novel:category" content="玄幻魔法">
<meta property="og:novel:status" content="已完结">
<meta property="og:novel:update_time" content="2023-07-15 12:30">
<meta name="keywords" content="斗破苍穹,天蚕土豆，玄幻/热血">
</head><body>
<div class="book"><div class="info"><h1>不应被选中</h1>
<div class="words">字数：532.5万</div></div></div>
</body></html>`

func TestBookMeta_OpenGraph(t *testing.T) {
	e := &MetaExtractor{Site: "example.com", Categories: fakeCategories{
		names: map[string]string{"玄幻魔法": "xuanhuan"}, def: "other",
	}}
	meta := e.BookMeta(ogBookPage, "https://www.example.com/book/123/", "")

	assert.Equal(t, "斗破苍穹", meta.Title)
	assert.Equal(t, "斗破苍穹", meta.ID)
	assert.Equal(t, "天蚕土豆", meta.Author)
	assert.Equal(t, "https://www.example.com/files/cover/123.jpg", meta.Cover)
	assert.Equal(t, "这里是属于斗气的世界", meta.Intro)
	assert.Equal(t, "xuanhuan", meta.CategoryID)
	assert.Equal(t, models.StatusCompleted, meta.Status)
	assert.Equal(t, 5325000, meta.Words)
	assert.Equal(t, "2023-07-15T12:30:00Z", meta.UpdateTime)
	assert.Equal(t, "123", meta.Source.SiteBookID)
	assert.Equal(t, "example.com", meta.Source.Site)
	assert.Equal(t, StableSlug("123", SlugLength), meta.Slug)
	assert.Equal(t, []string{"斗破苍穹", "天蚕土豆", "玄幻", "热血"}, meta.Tags)
}

func TestBookMeta_SelectorFallbacks(t *testing.T) {
	page := `<html><head><title>站点标题</title></head><body>
<div class="book-info">
  <h1>凡人修仙传</h1>
  <p class="author">作者：忘语</p>
  <div class="cover"><img src="img/c.png"></div>
  <p class="status">状态：连载中</p>
  <p class="update">最后更新：2024/1/2</p>
  <p class="sort"><a>仙侠</a></p>
</div>
<div id="intro">  一个普通的山村少年  </div>
</body></html>`

	e := &MetaExtractor{}
	meta := e.BookMeta(page, "https://a.com/book/77/index.html", "xianxia")

	assert.Equal(t, "凡人修仙传", meta.Title)
	assert.Equal(t, "忘语", meta.Author)
	assert.Equal(t, "https://a.com/book/77/img/c.png", meta.Cover)
	assert.Equal(t, models.StatusOngoing, meta.Status)
	assert.Equal(t, "2024-01-02T00:00:00Z", meta.UpdateTime)
	assert.Equal(t, "一个普通的山村少年", meta.Intro)
	assert.Equal(t, "xianxia", meta.CategoryID, "无分类规则时应使用提示")
	assert.Empty(t, meta.Tags)
}

func TestBookMeta_AuthorFromBodyText(t *testing.T) {
	page := `<html><body><h1>某书</h1><div>作者：张三 / 更新于昨天</div></body></html>`
	meta := (&MetaExtractor{}).BookMeta(page, "https://a.com/book/1/", "")
	assert.Equal(t, "张三", meta.Author)
}

func TestBookMeta_EmptyPage(t *testing.T) {
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	old := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = old }()

	e := &MetaExtractor{Categories: fakeCategories{def: "other"}}
	meta := e.BookMeta("", "https://a.com/some/page", "")

	require.NotEmpty(t, meta.Slug)
	assert.Equal(t, BookSlug("", "a.com", ""), meta.Slug)
	assert.Equal(t, meta.Slug, meta.Title, "标题缺失时以slug代替")
	assert.Equal(t, meta.Slug, meta.ID)
	assert.Equal(t, "other", meta.CategoryID)
	assert.Equal(t, models.StatusUnknown, meta.Status)
	assert.Equal(t, "2025-03-04T05:06:07Z", meta.UpdateTime)
	assert.NotNil(t, meta.Tags)
}

func TestBookMeta_CategoryResolutionOrder(t *testing.T) {
	page := `<html><head>
<meta property="og:novel:category" content="都市言情">
<meta name="keywords" content="修真,仙侠">
</head><body><h1>书</h1></body></html>`

	tests := []struct {
		name string
		cats fakeCategories
		hint string
		want string
	}{
		{
			name: "规则命中优先于关键词和提示",
			cats: fakeCategories{
				names:    map[string]string{"都市言情": "dushi"},
				keywords: map[string]string{"仙侠": "xianxia"},
				def:      "other",
			},
			hint: "xuanhuan",
			want: "dushi",
		},
		{
			name: "关键词优先于提示",
			cats: fakeCategories{keywords: map[string]string{"仙侠": "xianxia"}, def: "other"},
			hint: "xuanhuan",
			want: "xianxia",
		},
		{
			name: "提示优先于默认",
			cats: fakeCategories{def: "other"},
			hint: "xuanhuan",
			want: "xuanhuan",
		},
		{
			name: "全部落空取默认",
			cats: fakeCategories{def: "other"},
			want: "other",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &MetaExtractor{Categories: tt.cats}
			meta := e.BookMeta(page, "https://a.com/book/9/", tt.hint)
			assert.Equal(t, tt.want, meta.CategoryID)
		})
	}
}

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want models.BookStatus
	}{
		{"", models.StatusUnknown},
		{"已完结", models.StatusCompleted},
		{"完本", models.StatusCompleted},
		{"Completed", models.StatusCompleted},
		{"连载中", models.StatusOngoing},
		{"Serializing", models.StatusOngoing},
		{"暂停更新", models.BookStatus("暂停更新")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeStatus(tt.in), "输入 %q", tt.in)
	}
}

func TestParseUpdateTime(t *testing.T) {
	fixed := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	old := nowFunc
	nowFunc = func() time.Time { return fixed }
	defer func() { nowFunc = old }()

	tests := []struct {
		in   string
		want string
	}{
		{"2023-07-15", "2023-07-15T00:00:00Z"},
		{"更新于 2023-7-5 08:09:10", "2023-07-05T08:09:10Z"},
		{"2023年07月15日 12:30", "2023-07-15T12:30:00Z"},
		{"2023-13-40", "2020-01-01T00:00:00Z"},
		{"刚刚", "2020-01-01T00:00:00Z"},
		{"", "2020-01-01T00:00:00Z"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseUpdateTime(tt.in), "输入 %q", tt.in)
	}
}

func TestFindNumber(t *testing.T) {
	assert.Equal(t, 123456, FindNumber("共 123,456 字", 0))
	assert.Equal(t, 15000, FindNumber("1.5万字", 0))
	assert.Equal(t, -1, FindNumber("未知", -1))
	assert.Equal(t, 0, FindNumber("", 0))
}

func TestSiteBookID(t *testing.T) {
	assert.Equal(t, "123", SiteBookID("https://a.com/book/123/"))
	assert.Equal(t, "45", SiteBookID("https://a.com/book/45.html"))
	assert.Equal(t, "", SiteBookID("https://a.com/xuanhuan/"))
}
