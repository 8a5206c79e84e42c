package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"   // 待执行
	TaskStatusRunning   TaskStatus = "running"   // 执行中
	TaskStatusCompleted TaskStatus = "completed" // 已完成
	TaskStatusFailed    TaskStatus = "failed"    // 失败
	TaskStatusCancelled TaskStatus = "cancelled" // 已取消
)

// CrawlConfig 爬取配置
type CrawlConfig struct {
	Rate           float64 `json:"rate" mapstructure:"rate"`                       // 请求间隔(秒),所有会话共享 (默认:0.08)
	MaxBooks       int     `json:"max_books" mapstructure:"max_books"`             // 最多采集书籍数,0为不限
	Threads        int     `json:"threads" mapstructure:"threads"`                 // 线程预算 (默认:24)
	BookWorkers    int     `json:"book_workers" mapstructure:"book_workers"`       // 书籍并发数,0为按线程预算计算
	ChapterWorkers int     `json:"chapter_workers" mapstructure:"chapter_workers"` // 章节并发数,0为按线程预算计算
	Pool           int     `json:"pool" mapstructure:"pool"`                       // 每个主机的连接池大小 (默认:256)
	Timeout        int     `json:"timeout" mapstructure:"timeout"`                 // 单次请求超时(秒) (默认:20)
	FetchChapters  bool    `json:"fetch_chapters" mapstructure:"fetch_chapters"`   // 是否抓取章节正文
	LocalCovers    bool    `json:"local_covers" mapstructure:"local_covers"`       // 是否本地化封面
	Overwrite      bool    `json:"overwrite" mapstructure:"overwrite"`             // 覆盖已存在的章节文件
	RetryRounds    int     `json:"retry_rounds" mapstructure:"retry_rounds"`       // 失败章节重试轮数 (默认:2)
	RetrySleep     float64 `json:"retry_sleep" mapstructure:"retry_sleep"`         // 重试轮基础等待(秒) (默认:4.0)

	// 各阶段的单URL尝试次数与退避基数
	DetailTries   int     `json:"detail_tries" mapstructure:"detail_tries"`
	DetailSleep   float64 `json:"detail_sleep" mapstructure:"detail_sleep"`
	IndexTries    int     `json:"index_tries" mapstructure:"index_tries"`
	IndexSleep    float64 `json:"index_sleep" mapstructure:"index_sleep"`
	ChapterTries  int     `json:"chapter_tries" mapstructure:"chapter_tries"`
	ChapterSleep  float64 `json:"chapter_sleep" mapstructure:"chapter_sleep"`
	CategoryTries int     `json:"category_tries" mapstructure:"category_tries"`
	TemplateTries int     `json:"template_tries" mapstructure:"template_tries"`
}

// DefaultCrawlConfig 默认爬取配置
func DefaultCrawlConfig() CrawlConfig {
	return CrawlConfig{
		Rate:          0.08,
		Threads:       24,
		Pool:          256,
		Timeout:       20,
		FetchChapters: true,
		LocalCovers:   true,
		RetryRounds:   2,
		RetrySleep:    4.0,
		DetailTries:   3,
		DetailSleep:   1.2,
		IndexTries:    2,
		IndexSleep:    1.0,
		ChapterTries:  3,
		ChapterSleep:  0.8,
		CategoryTries: 1,
		TemplateTries: 1,
	}
}

// Validate 验证配置
func (c *CrawlConfig) Validate() error {
	if c.Rate < 0 || c.Rate > 60 {
		return fmt.Errorf("请求间隔必须在0-60秒之间")
	}
	if c.MaxBooks < 0 {
		return fmt.Errorf("最大书籍数不能为负数")
	}
	if c.Threads < 1 || c.Threads > 256 {
		return fmt.Errorf("线程数必须在1-256之间")
	}
	if c.BookWorkers < 0 || c.BookWorkers > 64 {
		return fmt.Errorf("书籍并发数必须在0-64之间")
	}
	if c.ChapterWorkers < 0 || c.ChapterWorkers > 128 {
		return fmt.Errorf("章节并发数必须在0-128之间")
	}
	if c.Pool < 1 {
		return fmt.Errorf("连接池大小必须大于0")
	}
	if c.Timeout < 1 || c.Timeout > 300 {
		return fmt.Errorf("超时时间必须在1-300秒之间")
	}
	if c.RetryRounds < 0 || c.RetryRounds > 20 {
		return fmt.Errorf("重试轮数必须在0-20之间")
	}
	if c.RetrySleep < 0 {
		return fmt.Errorf("重试等待不能为负数")
	}
	for name, n := range map[string]int{
		"detail_tries":   c.DetailTries,
		"index_tries":    c.IndexTries,
		"chapter_tries":  c.ChapterTries,
		"category_tries": c.CategoryTries,
		"template_tries": c.TemplateTries,
	} {
		if n < 1 || n > 10 {
			return fmt.Errorf("%s 必须在1-10之间", name)
		}
	}
	return nil
}

// BookConcurrency 书籍层并发数: threads/2 (为0时取4),限制在4-12之间
func (c *CrawlConfig) BookConcurrency() int {
	if c.BookWorkers > 0 {
		return c.BookWorkers
	}
	n := c.Threads / 2
	if n == 0 {
		n = 4
	}
	return clampInt(n, 4, 12)
}

// ChapterConcurrency 章节层并发数: threads 限制在8-24之间
func (c *CrawlConfig) ChapterConcurrency() int {
	if c.ChapterWorkers > 0 {
		return c.ChapterWorkers
	}
	return clampInt(c.Threads, 8, 24)
}

// RequestTimeout 单次请求超时
func (c *CrawlConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func clampInt(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

// CrawlStats 一次运行的统计
type CrawlStats struct {
	BooksFound      int     `json:"books_found"`      // 发现的书籍数
	BooksSucceeded  int     `json:"books_succeeded"`  // 处理成功的书籍数
	BooksFailed     int     `json:"books_failed"`     // 处理失败的书籍数
	ChaptersSaved   int     `json:"chapters_saved"`   // 保存的章节数
	ChaptersSkipped int     `json:"chapters_skipped"` // 因已存在而跳过的章节数
	ChaptersFailed  int     `json:"chapters_failed"`  // 重试后仍失败的章节数
	CoversLocal     int     `json:"covers_local"`     // 本地化成功的封面数
	CoversGenerated int     `json:"covers_generated"` // 生成的占位封面数
	PagesVisited    int     `json:"pages_visited"`    // 访问的分类页数
	Duration        float64 `json:"duration"`         // 总耗时(秒)
}

// Add 累加另一份统计(不含 Duration)
func (s *CrawlStats) Add(o CrawlStats) {
	s.BooksFound += o.BooksFound
	s.BooksSucceeded += o.BooksSucceeded
	s.BooksFailed += o.BooksFailed
	s.ChaptersSaved += o.ChaptersSaved
	s.ChaptersSkipped += o.ChaptersSkipped
	s.ChaptersFailed += o.ChaptersFailed
	s.CoversLocal += o.CoversLocal
	s.CoversGenerated += o.CoversGenerated
	s.PagesVisited += o.PagesVisited
}

// CrawlTask 一次分类采集任务
type CrawlTask struct {
	ID          string     `json:"id"`                     // 任务唯一ID (UUID)
	Site        string     `json:"site"`                   // 站点名
	BaseURL     string     `json:"base_url"`               // 站点根
	CategoryURL string     `json:"category_url"`           // 分类页URL
	CreatedAt   time.Time  `json:"created_at"`             // 创建时间
	StartedAt   *time.Time `json:"started_at,omitempty"`   // 开始时间
	CompletedAt *time.Time `json:"completed_at,omitempty"` // 完成时间

	Config CrawlConfig `json:"config"`
	Status TaskStatus  `json:"status"`
	Stats  CrawlStats  `json:"stats"`

	ErrorMessage string `json:"error_message,omitempty"`
}

// NewCrawlTask 创建新任务
func NewCrawlTask(site, baseURL, categoryURL string, config CrawlConfig) (*CrawlTask, error) {
	if err := ValidateURL(baseURL); err != nil {
		return nil, err
	}
	if err := ValidateURL(categoryURL); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &CrawlTask{
		ID:          generateID(),
		Site:        site,
		BaseURL:     baseURL,
		CategoryURL: categoryURL,
		CreatedAt:   time.Now(),
		Config:      config,
		Status:      TaskStatusPending,
	}, nil
}

// ToJSON 序列化为JSON
func (t *CrawlTask) ToJSON() ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// FromJSON 从JSON反序列化
func (t *CrawlTask) FromJSON(data []byte) error {
	return json.Unmarshal(data, t)
}
