package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// BookStatus 连载状态
type BookStatus string

const (
	StatusUnknown   BookStatus = "unknown"   // 未知
	StatusOngoing   BookStatus = "ongoing"   // 连载中
	StatusCompleted BookStatus = "completed" // 已完结
)

// UpdateTimeLayout meta.json 中 update_time 的格式(UTC)
const UpdateTimeLayout = "2006-01-02T15:04:05Z"

// BookSource 书籍来源信息
type BookSource struct {
	Site       string `json:"site"`         // 站点名
	BookURL    string `json:"book_url"`     // 详情页URL
	SiteBookID string `json:"site_book_id"` // 站点原生书号
}

// BookMeta 书籍元数据(meta.json)
// 除 Cover 字段外,生成后不再修改
type BookMeta struct {
	ID         string     `json:"id"`
	Slug       string     `json:"slug"`
	Title      string     `json:"title"`
	Author     string     `json:"author"`
	CategoryID string     `json:"category_id"`
	Status     BookStatus `json:"status"`
	Cover      string     `json:"cover"` // 远程URL或本地路径
	Intro      string     `json:"intro"`
	Words      int        `json:"words"`
	UpdateTime string     `json:"update_time"` // ISO-8601 UTC
	Source     BookSource `json:"source"`
	Tags       []string   `json:"tags"`
	Rating     float64    `json:"rating"`
}

// ToJSON 序列化为JSON
func (m *BookMeta) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

// ChapterRef 目录中的一个章节
// No 按目录出现顺序从1开始连续编号,是唯一的排序键;SiteID 仅作记录
type ChapterRef struct {
	No     int    `json:"no"`
	Title  string `json:"title"`
	Href   string `json:"href"`
	SiteID int64  `json:"site_id"`
}

// DefaultChapterTitle 缺失标题时的兜底章节名
func DefaultChapterTitle(no int) string {
	return fmt.Sprintf("第%d章", no)
}

// ChapterSlug 章节slug(零填充的顺序号)
func ChapterSlug(no int) string {
	return fmt.Sprintf("%04d", no)
}

// ChapterEntry chapters.json 中 list 的一项
type ChapterEntry struct {
	No    int    `json:"no"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// ChapterSource chapters.json 中 source_map 的一项
type ChapterSource struct {
	Href   string `json:"href"`
	SiteID int64  `json:"site_id"`
}

// ChaptersIndex chapters.json
type ChaptersIndex struct {
	List      []ChapterEntry           `json:"list"`
	SourceMap map[string]ChapterSource `json:"source_map"`
}

// NewChaptersIndex 由目录生成章节索引
func NewChaptersIndex(toc []ChapterRef) ChaptersIndex {
	idx := ChaptersIndex{
		List:      make([]ChapterEntry, 0, len(toc)),
		SourceMap: make(map[string]ChapterSource, len(toc)),
	}
	for i, ch := range toc {
		no := ch.No
		if no <= 0 {
			no = i + 1
		}
		title := ch.Title
		if title == "" {
			title = DefaultChapterTitle(no)
		}
		slug := ChapterSlug(no)
		idx.List = append(idx.List, ChapterEntry{No: no, Title: title, Slug: slug})
		if ch.Href != "" {
			idx.SourceMap[slug] = ChapterSource{Href: ch.Href, SiteID: ch.SiteID}
		}
	}
	return idx
}

// FormatUpdateTime 按 UpdateTimeLayout 格式化时间
func FormatUpdateTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(UpdateTimeLayout)
}
