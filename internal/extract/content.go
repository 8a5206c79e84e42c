package extract

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// MinContentRunes 正文有效长度下限,低于此值走全文回退
const MinContentRunes = 80

// contentContainers 正文容器候选,按优先级排列
var contentContainers = []string{
	"#htmlContent", ".htmlContent",
	"#chaptercontent", ".ReadAjax_content", ".Readarea",
	"#content", ".content",
	".read-content", ".chapter_content",
	"#chaptercontent1", "#chapterContent", "article",
}

// contentJunk 正文中需要整块移除的节点
const contentJunk = "script, style, a#pb_prev, a#pb_mulu, a#pb_next, " +
	`div[class*="Readpage"], p[class*="Readpage"], section[class*="Readpage"], ` +
	`div[class*="link"], p[class*="link"], section[class*="link"]`

var (
	brRe        = regexp.MustCompile(`(?i)<br\s*/?>`)
	pCloseRe    = regexp.MustCompile(`(?i)</p\s*>`)
	lineSplitRe = regexp.MustCompile(`\r?\n`)
	innerWSRe   = regexp.MustCompile(`[ \t]{2,}`)
	nbspRunRe   = regexp.MustCompile(`\x{00a0}+`)
	fallbackNL  = regexp.MustCompile(`[\n\r]+`)

	stripPolicy = bluemonday.StrictPolicy()
)

// ChapterContent 解析章节页正文为段落列表
func ChapterContent(raw string) []string {
	doc := parseDoc(raw)

	node := firstContainer(doc)
	if node == nil {
		node = doc.Find("body").First()
		if node.Length() == 0 {
			node = doc.Selection
		}
	}

	node = node.Clone()
	node.Find(contentJunk).Remove()
	markup, err := goquery.OuterHtml(node)
	if err != nil {
		markup = node.Text()
	}
	markup = brRe.ReplaceAllString(markup, "\n")
	markup = pCloseRe.ReplaceAllString(markup, "\n")
	text := html.UnescapeString(stripPolicy.Sanitize(markup))

	paras := make([]string, 0, 64)
	for _, ln := range lineSplitRe.Split(text, -1) {
		ln = nbspRunRe.ReplaceAllString(strings.TrimSpace(ln), " ")
		ln = strings.TrimSpace(ln)
		if ln == "" || IsNoiseLine(ln) {
			continue
		}
		paras = append(paras, innerWSRe.ReplaceAllString(ln, " "))
	}

	if joinedRunes(paras) >= MinContentRunes {
		return paras
	}

	// 回退结果更长才采用,等长时保留原有分段
	if fallback := fallbackParagraphs(doc); joinedRunes(fallback) > joinedRunes(paras) {
		return fallback
	}
	return paras
}

func firstContainer(doc *goquery.Document) *goquery.Selection {
	for _, css := range contentContainers {
		if sel := doc.Find(css).First(); sel.Length() > 0 {
			return sel
		}
	}
	return nil
}

// fallbackParagraphs 取文字最多的候选容器(都没有时取body)的规范化全文,
// 再按换行或句末标点后的空白切分
func fallbackParagraphs(doc *goquery.Document) []string {
	best := ""
	for _, css := range contentContainers {
		sel := doc.Find(css).First()
		if sel.Length() == 0 {
			continue
		}
		if v := normalizedText(sel); utf8.RuneCountInString(v) > utf8.RuneCountInString(best) {
			best = v
		}
	}
	if best == "" {
		best = normalizedText(doc.Find("body").First())
	}

	paras := []string{}
	for _, chunk := range splitSentences(best) {
		chunk = strings.TrimSpace(chunk)
		if chunk == "" || IsNoiseLine(chunk) {
			continue
		}
		paras = append(paras, chunk)
	}
	return paras
}

func normalizedText(sel *goquery.Selection) string {
	if sel.Length() == 0 {
		return ""
	}
	c := sel.Clone()
	c.Find("script, style").Remove()
	return CleanText(c.Text())
}

// splitSentences 按换行切分,并在句末标点之后的空白处断开(标点留在前一段)
func splitSentences(s string) []string {
	var out []string
	for _, block := range fallbackNL.Split(s, -1) {
		runes := []rune(block)
		start := 0
		for i := 0; i < len(runes); i++ {
			if !isSentenceEnd(runes[i]) || i+1 >= len(runes) || !unicode.IsSpace(runes[i+1]) {
				continue
			}
			out = append(out, string(runes[start:i+1]))
			j := i + 1
			for j < len(runes) && unicode.IsSpace(runes[j]) {
				j++
			}
			start = j
			i = j - 1
		}
		if start < len(runes) {
			out = append(out, string(runes[start:]))
		}
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '。', '！', '？', '!', '?', '.', ';':
		return true
	}
	return false
}

// IsNoiseLine 导航、推广、书签提示等固定噪声行
func IsNoiseLine(ln string) bool {
	switch ln {
	case "上一章", "下一章", "目录":
		return true
	}
	if strings.HasPrefix(ln, "新书推荐") {
		return true
	}
	if strings.Contains(ln, "加入书签") || strings.Contains(ln, "点此报错") {
		return true
	}
	hasURL := strings.Contains(ln, "https://") || strings.Contains(ln, "http://")
	if strings.Contains(ln, "请收藏本站") && (hasURL || strings.Contains(ln, "www.")) {
		return true
	}
	if strings.Contains(ln, "手机版：") && hasURL {
		return true
	}
	return false
}

func joinedRunes(paras []string) int {
	n := 0
	for _, p := range paras {
		n += utf8.RuneCountInString(p)
	}
	return n
}
