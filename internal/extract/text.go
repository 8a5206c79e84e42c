package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

var (
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	nbspRe   = regexp.MustCompile(`&nbsp;?`)
	spaceRe  = regexp.MustCompile(`\s+`)
	numberRe = regexp.MustCompile(`(\d[\d,\.]*)\s*(万)?`)
	labelRe  = regexp.MustCompile(`^(作\s*者|状\s*态|字\s*数|分\s*类|类\s*别|最后更新|更新时间|更新)\s*[:：]\s*`)
)

// CleanText 去标签、合并空白、去首尾空白
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = tagRe.ReplaceAllString(s, "")
	s = nbspRe.ReplaceAllString(s, " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// stripLabel 去掉 "作者："、"状态：" 一类的字段标签
func stripLabel(s string) string {
	return strings.TrimSpace(labelRe.ReplaceAllString(s, ""))
}

// FindNumber 提取文本中的第一个数字,支持千分位和 "万" 后缀
func FindNumber(text string, def int) int {
	if text == "" {
		return def
	}
	m := numberRe.FindStringSubmatch(text)
	if m == nil {
		return def
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return def
	}
	if m[2] != "" {
		v *= 10000
	}
	return int(v)
}

// parseDoc 解析HTML,失败时返回空文档
func parseDoc(raw string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return goquery.NewDocumentFromNode(&html.Node{Type: html.DocumentNode})
	}
	return doc
}

// firstText 第一个匹配节点的规范化文本
func firstText(doc *goquery.Document, css string) string {
	return CleanText(doc.Find(css).First().Text())
}

// firstAttr 第一个匹配节点的属性值(规范化)
func firstAttr(doc *goquery.Document, css, attr string) string {
	v, _ := doc.Find(css).First().Attr(attr)
	return CleanText(v)
}

// firstOf 按顺序求值回退链,返回第一个非空结果
func firstOf(fns ...func() string) string {
	for _, fn := range fns {
		if v := fn(); v != "" {
			return v
		}
	}
	return ""
}

func textOf(doc *goquery.Document, css string) func() string {
	return func() string { return firstText(doc, css) }
}

func attrOf(doc *goquery.Document, css, attr string) func() string {
	return func() string { return firstAttr(doc, css, attr) }
}

func labelledTextOf(doc *goquery.Document, css string) func() string {
	return func() string { return stripLabel(firstText(doc, css)) }
}

// ResolveURL 相对 base 解析 ref;解析失败时返回 ref 原值
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

// IsInertHref 判断链接是否无效(空、脚本伪协议、锚点、mailto/tel)
func IsInertHref(href string) bool {
	h := strings.ToLower(strings.TrimSpace(href))
	if h == "" {
		return true
	}
	for _, p := range []string{"javascript:", "#", "mailto:", "tel:"} {
		if strings.HasPrefix(h, p) {
			return true
		}
	}
	return strings.Contains(h, "void(0")
}
