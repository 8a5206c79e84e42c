package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

// CategoryMapper 分类映射
// MapName 只在规则命中时返回 ok=true
type CategoryMapper interface {
	MapName(name string) (id string, ok bool)
	MatchKeywords(blob string) string
	DefaultID() string
}

var (
	siteBookIDRe = regexp.MustCompile(`/book/(\d+)(?:/|\.html)?`)
	authorBodyRe = regexp.MustCompile(`作者[:：]\s*([^\s/|]+)`)
	updateTimeRe = regexp.MustCompile(`(\d{4})[-/年](\d{1,2})[-/月](\d{1,2})日?(?:\s*(\d{1,2}):(\d{2})(?::(\d{2}))?)?`)
	tagSplitRe   = regexp.MustCompile(`[，,/\s]+`)
)

// nowFunc 当前时间,测试可替换
var nowFunc = time.Now

// MetaExtractor 书籍详情页解析器
type MetaExtractor struct {
	Site       string         // 写入 source.site
	Categories CategoryMapper // 可为 nil
}

// BookMeta 解析书籍详情页
// 分类决议顺序: 站点分类规则 > 关键词匹配 > 调用方提示 > 默认分类
func (e *MetaExtractor) BookMeta(raw, bookURL, categoryHint string) models.BookMeta {
	doc := parseDoc(raw)

	title := firstOf(
		attrOf(doc, `meta[property="og:novel:book_name"]`, "content"),
		attrOf(doc, `meta[property="og:title"]`, "content"),
		textOf(doc, "h1"),
		textOf(doc, ".book .info h1"),
		textOf(doc, ".book-info h1"),
		textOf(doc, ".bookname h1"),
		textOf(doc, "title"),
	)

	author := firstOf(
		attrOf(doc, `meta[property="og:novel:author"]`, "content"),
		labelledTextOf(doc, ".book .info .author"),
		labelledTextOf(doc, ".book-info .author"),
		textOf(doc, `a[rel="author"]`),
		textOf(doc, ".author a"),
		labelledTextOf(doc, ".author"),
	)
	if author == "" {
		if m := authorBodyRe.FindStringSubmatch(CleanText(doc.Find("body").Text())); m != nil {
			author = m[1]
		}
	}

	cover := firstOf(
		func() string { v, _ := doc.Find(`meta[property="og:image"]`).First().Attr("content"); return strings.TrimSpace(v) },
		func() string { v, _ := doc.Find(".book .info .cover img").First().Attr("src"); return strings.TrimSpace(v) },
		func() string { v, _ := doc.Find(".book .cover img").First().Attr("src"); return strings.TrimSpace(v) },
		func() string { v, _ := doc.Find(".book-info .cover img").First().Attr("src"); return strings.TrimSpace(v) },
	)
	if cover != "" {
		cover = ResolveURL(bookURL, cover)
	}

	intro := firstOf(
		attrOf(doc, `meta[property="og:description"]`, "content"),
		textOf(doc, "#intro"),
		textOf(doc, ".intro"),
		textOf(doc, "#bookintro"),
		textOf(doc, ".book-intro"),
		attrOf(doc, `meta[name="description"]`, "content"),
	)

	catName := firstOf(
		attrOf(doc, `meta[property="og:novel:category"]`, "content"),
		textOf(doc, ".breadcrumb a:nth-last-child(2)"),
		labelledTextOf(doc, ".book .info .sort a"),
		labelledTextOf(doc, ".book-info .sort a"),
		labelledTextOf(doc, ".bookdata .sort a"),
		labelledTextOf(doc, ".book .info .category a"),
		labelledTextOf(doc, ".book-info .category a"),
	)
	keywords := firstAttr(doc, `meta[name="keywords"]`, "content")

	categoryID := e.resolveCategory(catName, categoryHint,
		catName,
		keywords,
		firstAttr(doc, `meta[property="og:description"]`, "content"),
		firstAttr(doc, `meta[name="description"]`, "content"),
	)

	status := NormalizeStatus(firstOf(
		attrOf(doc, `meta[property="og:novel:status"]`, "content"),
		labelledTextOf(doc, ".book .info .status"),
		labelledTextOf(doc, ".book-info .status"),
	))

	words := FindNumber(firstOf(
		labelledTextOf(doc, ".book .info .words"),
		labelledTextOf(doc, ".book-info .words"),
		labelledTextOf(doc, ".bookdata .words"),
	), 0)

	updateTime := ParseUpdateTime(firstOf(
		attrOf(doc, `meta[property="og:novel:update_time"]`, "content"),
		labelledTextOf(doc, ".book .info .update"),
		labelledTextOf(doc, ".book-info .update"),
		labelledTextOf(doc, ".bookdata .update"),
	))

	siteBookID := SiteBookID(bookURL)
	if siteBookID == "" {
		if readURL := firstAttr(doc, `meta[property="og:novel:read_url"]`, "content"); readURL != "" {
			siteBookID = SiteBookID(readURL)
		}
	}

	host := ""
	if u, err := url.Parse(bookURL); err == nil {
		host = u.Host
	}
	slug := BookSlug(siteBookID, host, title)

	id := firstOf(
		func() string { return title },
		func() string { return siteBookID },
		func() string { return slug },
	)
	if title == "" {
		title = slug
	}

	return models.BookMeta{
		ID:         id,
		Slug:       slug,
		Title:      title,
		Author:     author,
		CategoryID: categoryID,
		Status:     status,
		Cover:      cover,
		Intro:      intro,
		Words:      words,
		UpdateTime: updateTime,
		Source: models.BookSource{
			Site:       e.Site,
			BookURL:    bookURL,
			SiteBookID: siteBookID,
		},
		Tags:   SplitTags(keywords),
		Rating: 0,
	}
}

// resolveCategory 分类决议;规则命中后不再看关键词和提示
func (e *MetaExtractor) resolveCategory(name, hint string, blobParts ...string) string {
	def := ""
	if e.Categories != nil {
		def = e.Categories.DefaultID()
		if id, ok := e.Categories.MapName(name); ok {
			return id
		}
		parts := make([]string, 0, len(blobParts))
		for _, p := range blobParts {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if hit := e.Categories.MatchKeywords(strings.Join(parts, " ")); hit != "" {
			return hit
		}
	}
	if hint != "" {
		return hint
	}
	return def
}

// NormalizeStatus 规范化连载状态
// 含完结标记 -> completed;含连载标记 -> ongoing;空 -> unknown;否则原样保留
func NormalizeStatus(s string) models.BookStatus {
	s = strings.TrimSpace(s)
	if s == "" {
		return models.StatusUnknown
	}
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(s, "完"), strings.Contains(lower, "completed"), strings.Contains(lower, "finished"):
		return models.StatusCompleted
	case strings.Contains(s, "连载"), strings.Contains(lower, "ongoing"), strings.Contains(lower, "serializ"):
		return models.StatusOngoing
	}
	return models.BookStatus(s)
}

// ParseUpdateTime 宽松解析日期(+时间),失败时取当前UTC时间
func ParseUpdateTime(text string) string {
	if m := updateTimeRe.FindStringSubmatch(text); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		var hh, mm, ss int
		if m[4] != "" {
			hh, _ = strconv.Atoi(m[4])
			mm, _ = strconv.Atoi(m[5])
			if m[6] != "" {
				ss, _ = strconv.Atoi(m[6])
			}
		}
		t := time.Date(y, time.Month(mo), d, hh, mm, ss, 0, time.UTC)
		// time.Date 会把越界值进位,进位即说明原文不是合法日期
		if t.Year() == y && int(t.Month()) == mo && t.Day() == d && t.Hour() == hh && t.Minute() == mm && t.Second() == ss {
			return models.FormatUpdateTime(t)
		}
	}
	return models.FormatUpdateTime(nowFunc())
}

// SiteBookID 从书籍URL中提取站点书号
func SiteBookID(bookURL string) string {
	if m := siteBookIDRe.FindStringSubmatch(bookURL); m != nil {
		return m[1]
	}
	return ""
}

// SplitTags 按中英文逗号、斜杠、空白切分关键词
func SplitTags(keywords string) []string {
	tags := []string{}
	for _, t := range tagSplitRe.Split(keywords, -1) {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
