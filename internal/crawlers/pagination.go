package crawlers

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/novelcrawl/internal/extract"
	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

// nextPageSelectors 按优先级排列的"下一页"定位方式
var nextPageSelectors = []string{
	`ul.pagination#pagelink a.next`,
	`a[rel="next"], link[rel="next"]`,
	`ul.pagination#pagelink li.active + li a`,
}

// glyphScopes 文本为 ">" 的分页链接,先限定在 #pagelink 分页条内,再放宽到任意分页条
var glyphScopes = []string{
	`ul[class*="pagination"]#pagelink a`,
	`ul[class*="pagination"] a`,
}

// FindNextPage 解析分类页的下一页地址,找不到时返回空串
func FindNextPage(raw, pageURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return ""
	}

	for _, css := range nextPageSelectors {
		if href := firstHref(doc.Find(css)); href != "" {
			return extract.ResolveURL(pageURL, href)
		}
	}

	for _, css := range glyphScopes {
		var href string
		doc.Find(css).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			if extract.CleanText(a.Text()) != ">" {
				return true
			}
			if v, ok := a.Attr("href"); ok && strings.TrimSpace(v) != "" {
				href = strings.TrimSpace(v)
				return false
			}
			return true
		})
		if href != "" {
			return extract.ResolveURL(pageURL, href)
		}
	}
	return ""
}

// firstHref 第一个匹配节点的非空 href
func firstHref(sel *goquery.Selection) string {
	v, _ := sel.First().Attr("href")
	return strings.TrimSpace(v)
}

var (
	indexPageRe = regexp.MustCompile(`(?i)/index_\d+\.html$`)
	htmlPageRe  = regexp.MustCompile(`(?i)/\d+\.html$`)
	pathPageRe  = regexp.MustCompile(`(?i)/page/\d+$`)
	numericRe   = regexp.MustCompile(`^\d+$`)
)

// NormalizeCategoryRoot 去掉分页后缀,得到分类第一页的根地址
//
//	/list/10/2.html、/list/10/page/2、/list/10/index_2.html、/list/10/2 -> /list/10
//
// 裸数字段只在形如 /{名称}/{数字}/{数字} 时去掉,因此对已归一化的根地址幂等
func NormalizeCategoryRoot(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return normalizeRootPath(raw)
	}
	u.Path = normalizeRootPath(u.Path)
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func normalizeRootPath(p string) string {
	for {
		next := stripPageSuffix(strings.TrimRight(p, "/"))
		if next == p {
			return p
		}
		p = next
	}
}

func stripPageSuffix(p string) string {
	for _, re := range []*regexp.Regexp{indexPageRe, htmlPageRe, pathPageRe} {
		if loc := re.FindStringIndex(p); loc != nil {
			return p[:loc[0]]
		}
	}

	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	n := len(segs)
	if n >= 2 && numericRe.MatchString(segs[n-1]) && numericRe.MatchString(segs[n-2]) &&
		(n == 2 || !numericRe.MatchString(segs[n-3])) {
		return p[:strings.LastIndex(p, "/")]
	}
	return p
}

// TemplatePageURLs 第 n 页的四种候选地址
func TemplatePageURLs(root string, n int) []string {
	return []string{
		fmt.Sprintf("%s/%d.html", root, n),
		fmt.Sprintf("%s/index_%d.html", root, n),
		fmt.Sprintf("%s/page/%d", root, n),
		fmt.Sprintf("%s?page=%d", root, n),
	}
}

// PageFetcher 带重试地抓取一个页面
type PageFetcher func(ctx context.Context, rawURL string) FetchResult

// EnumerateTemplatePages 按URL模板穷举分页
// 从第2页开始,每页依次尝试四种模板;某一页四种模板合计没有新书时停止,
// maxBooks>0 时达到上限即停止,maxPages>0 时最多穷举到该页
func EnumerateTemplatePages(ctx context.Context, fetch PageFetcher, categoryURL string, maxBooks, maxPages int) ([]string, error) {
	root := NormalizeCategoryRoot(categoryURL)

	found := []string{}
	seen := make(map[string]struct{})
	for n := 2; maxPages <= 0 || n <= maxPages; n++ {
		hit := 0
		for _, pageURL := range TemplatePageURLs(root, n) {
			res := fetch(ctx, pageURL)
			if err := ctx.Err(); err != nil {
				return found, err
			}
			if res.HTML == "" {
				continue
			}
			for _, book := range extract.ListBooks(res.HTML, categoryURL) {
				if _, ok := seen[book]; ok {
					continue
				}
				seen[book] = struct{}{}
				found = append(found, book)
				hit++
				if maxBooks > 0 && len(found) >= maxBooks {
					return found[:maxBooks], nil
				}
			}
		}
		utils.Debugf("模板翻页: 第%d页新增 %d 本", n, hit)
		if hit == 0 {
			break
		}
	}
	return found, nil
}
