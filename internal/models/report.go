package models

import (
	"encoding/json"
	"time"
)

// CrawlReport 运行报告(reports/crawl_report_{id}.json)
type CrawlReport struct {
	TaskID      string `json:"task_id"`
	Site        string `json:"site"`
	CategoryURL string `json:"category_url"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Duration  float64   `json:"duration"` // 秒

	Stats CrawlStats `json:"stats"`

	Books       []BookResult `json:"books"`        // 每本书的结果
	FailedBooks []BookResult `json:"failed_books"` // 失败的书

	OutputDir string      `json:"output_dir"`
	Config    CrawlConfig `json:"config"` // 配置快照
}

// BookResult 单本书的处理结果
type BookResult struct {
	URL             string `json:"url"`
	Slug            string `json:"slug,omitempty"`
	Title           string `json:"title,omitempty"`
	Chapters        int    `json:"chapters"`         // 目录章节数
	ChaptersSaved   int    `json:"chapters_saved"`   // 本次保存
	ChaptersSkipped int    `json:"chapters_skipped"` // 已存在跳过
	ChaptersFailed  int    `json:"chapters_failed"`  // 最终失败
	FailedChapters  []int  `json:"failed_chapters,omitempty"`
	CoverLocal      bool   `json:"cover_local,omitempty"`     // 封面已本地化
	CoverGenerated  bool   `json:"cover_generated,omitempty"` // 使用了占位封面
	Error           string `json:"error,omitempty"`
}

// Stats 将单书结果折算为统计
func (r *BookResult) Stats() CrawlStats {
	s := CrawlStats{
		ChaptersSaved:   r.ChaptersSaved,
		ChaptersSkipped: r.ChaptersSkipped,
		ChaptersFailed:  r.ChaptersFailed,
	}
	if r.CoverLocal {
		s.CoversLocal = 1
	}
	if r.CoverGenerated {
		s.CoversGenerated = 1
	}
	if r.Error != "" {
		s.BooksFailed = 1
	} else {
		s.BooksSucceeded = 1
	}
	return s
}

// ToJSON 序列化为JSON
func (r *CrawlReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// FromJSON 从JSON反序列化
func (r *CrawlReport) FromJSON(data []byte) error {
	return json.Unmarshal(data, r)
}
