package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// listingSelectors 分类页书籍链接候选,全部收集后统一过滤
var listingSelectors = []string{
	`a[href*="/book/"]`,
	".booklist a",
	".novellist a",
	"#newscontent a",
	".ranklist a",
	".toplist a",
	".topbox a",
	".list a",
	"ul li a",
}

var (
	bookPathRe    = regexp.MustCompile(`(?i)^/book/\d+(?:/|/index\.html|\.html)$`)
	rawBookHrefRe = regexp.MustCompile(`(?i)href=['"]([^'"]*/book/\d+[^'"]*)['"]`)
	rawBookPathRe = regexp.MustCompile(`(?i)(/book/\d+/\S*)`)
)

// ListBooks 提取分类页中的书籍详情链接
// 结果为绝对URL,同站点,按首次出现顺序去重
func ListBooks(raw, pageURL string) []string {
	doc := parseDoc(raw)

	var hrefs []string
	for _, css := range listingSelectors {
		doc.Find(css).Each(func(_ int, a *goquery.Selection) {
			if v, ok := a.Attr("href"); ok {
				hrefs = append(hrefs, v)
			}
		})
	}
	if len(hrefs) == 0 {
		for _, m := range rawBookHrefRe.FindAllStringSubmatch(raw, -1) {
			hrefs = append(hrefs, m[1])
		}
	}
	if len(hrefs) == 0 {
		for _, m := range rawBookPathRe.FindAllStringSubmatch(raw, -1) {
			hrefs = append(hrefs, m[1])
		}
	}

	baseHost := ""
	if u, err := url.Parse(pageURL); err == nil {
		baseHost = u.Host
	}

	out := []string{}
	seen := make(map[string]struct{})
	for _, h := range hrefs {
		u := ResolveURL(pageURL, strings.TrimSpace(h))
		if !LooksLikeBook(u, baseHost) {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}

// LooksLikeBook 同站点且路径形如 /book/{id}/、/book/{id}.html、/book/{id}/index.html
func LooksLikeBook(rawURL, baseHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if !SameSite(baseHost, u.Host) {
		return false
	}
	return bookPathRe.MatchString(u.Path)
}

// SameSite 目标主机与站点主机相同,或是其子域名;空主机视为同站
func SameSite(baseHost, targetHost string) bool {
	if targetHost == "" || targetHost == baseHost {
		return true
	}
	base := hostOnly(baseHost)
	host := hostOnly(targetHost)
	return host == base || strings.HasSuffix(host, "."+base)
}

func hostOnly(h string) string {
	if i := strings.IndexByte(h, ':'); i >= 0 {
		return h[:i]
	}
	return h
}
