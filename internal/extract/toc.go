package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

// tocSelector 目录容器内的链接,按文档顺序合并
const tocSelector = "#list a, #list-chapterAll a, .listmain a, .chapterlist a, .reader-list a, .dirlist a, .chapter a"

var (
	chapterPathRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)/book/\d+/\d+\.html`),
		regexp.MustCompile(`(?i)/\d+/\d+\.html`),
		regexp.MustCompile(`(?i)/\d+_\d+\.html`),
		regexp.MustCompile(`(?i)/read/\d+(?:_\d+)?\.html`),
		regexp.MustCompile(`(?i)/book/\d+/\d+/?$`),
	}
	chapterHeadingRe = regexp.MustCompile(`第\s*\d+\s*[章节回部卷]`)
	bareNumberRe     = regexp.MustCompile(`^\d{1,4}\s*$`)

	siteIDHTMLRe = regexp.MustCompile(`/(\d+)\.html$`)
	siteIDDirRe  = regexp.MustCompile(`/book/\d+/(\d+)/?$`)
)

// maxHeadingRunes 按链接文字判定章节时,文字长度上限
const maxHeadingRunes = 20

// TOC 解析目录页
// 过滤后的链接按文档顺序编号 1..N;站点章节号只做记录,不参与排序
func TOC(raw, bookURL string) []models.ChapterRef {
	doc := parseDoc(raw)

	refs := []models.ChapterRef{}
	doc.Find(tocSelector).Each(func(_ int, a *goquery.Selection) {
		href := anchorHref(a)
		if IsInertHref(href) {
			return
		}
		u := ResolveURL(bookURL, href)
		title := CleanText(a.Text())
		if !LooksLikeChapter(u, title) {
			return
		}
		no := len(refs) + 1
		if title == "" {
			title = models.DefaultChapterTitle(no)
		}
		refs = append(refs, models.ChapterRef{
			No:     no,
			Title:  title,
			Href:   u,
			SiteID: chapterSiteID(u),
		})
	})
	return refs
}

// anchorHref href,其次 data-href / data-url
func anchorHref(a *goquery.Selection) string {
	for _, attr := range []string{"href", "data-href", "data-url"} {
		if v, ok := a.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// LooksLikeChapter 按URL路径形态或短链接文字判定章节链接
func LooksLikeChapter(rawURL, text string) bool {
	path := ""
	if u, err := url.Parse(rawURL); err == nil {
		path = strings.ToLower(u.Path)
	}
	for _, re := range chapterPathRes {
		if re.MatchString(path) {
			return true
		}
	}
	t := strings.TrimSpace(text)
	if t != "" && utf8.RuneCountInString(t) <= maxHeadingRunes {
		if chapterHeadingRe.MatchString(t) || bareNumberRe.MatchString(t) {
			return true
		}
	}
	return false
}

func chapterSiteID(u string) int64 {
	m := siteIDHTMLRe.FindStringSubmatch(u)
	if m == nil {
		m = siteIDDirRe.FindStringSubmatch(u)
	}
	if m == nil {
		return 0
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0
	}
	return id
}
