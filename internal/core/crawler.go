package core

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/RecoveryAshes/novelcrawl/internal/config"
	"github.com/RecoveryAshes/novelcrawl/internal/crawlers"
	"github.com/RecoveryAshes/novelcrawl/internal/extract"
	"github.com/RecoveryAshes/novelcrawl/internal/models"
	"github.com/RecoveryAshes/novelcrawl/internal/storage"
	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

// Crawler 分类采集协调器
// 负责组装共享的限速器、代理池、会话池,发现分类下的书籍并按书并发处理
type Crawler struct {
	cfg         *Config
	task        *models.CrawlTask
	categoryURL string
	hint        string // 由分类路径得到的分类提示

	sessions *crawlers.SessionPool
	retrier  *crawlers.Retrier
	pipeline *crawlers.BookPipeline
	reporter *utils.Reporter

	// ShowProgress 是否显示书籍进度条
	ShowProgress bool
}

// NewCrawler 创建协调器
// headers 为空时使用默认头部
func NewCrawler(cfg *Config, headers models.HeaderProvider) (*Crawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	categoryURL := cfg.CategoryURL()
	site := models.SiteName(cfg.Site.Base)

	task, err := models.NewCrawlTask(site, cfg.Site.Base, categoryURL, cfg.Crawl)
	if err != nil {
		return nil, fmt.Errorf("创建任务失败: %w", err)
	}

	if headers == nil {
		hm, err := NewHeaderManager(cfg.Site.Base, nil, nil)
		if err != nil {
			return nil, err
		}
		headers = hm
	}
	baseHeaders, err := headers.GetHeaders()
	if err != nil {
		return nil, fmt.Errorf("请求头无效: %w", err)
	}

	proxyList, err := utils.ReadLinesOrCSV(cfg.Fetch.Proxies)
	if err != nil {
		return nil, fmt.Errorf("读取代理列表失败: %w", err)
	}
	proxies, err := crawlers.NewProxyPool(proxyList,
		time.Duration(cfg.Fetch.ProxyCooldown)*time.Second, cfg.Fetch.ProxyFailThreshold)
	if err != nil {
		return nil, err
	}

	userAgents := append([]string(nil), cfg.Fetch.UserAgents...)
	if cfg.Fetch.UAFile != "" {
		lines, err := utils.ReadLines(cfg.Fetch.UAFile)
		if err != nil {
			return nil, fmt.Errorf("读取UA文件失败: %w", err)
		}
		userAgents = append(userAgents, lines...)
	}

	rules, err := config.LoadCategoryMap(cfg.CategoryMap)
	if err != nil {
		return nil, err
	}

	opts := crawlers.SessionOptions{
		Timeout:            cfg.Crawl.RequestTimeout(),
		PoolSize:           cfg.Crawl.Pool,
		Headers:            baseHeaders,
		Limiter:            crawlers.NewLimiter(cfg.Crawl.Rate),
		Proxies:            proxies,
		InsecureSkipVerify: cfg.Fetch.InsecureSkipVerify,
	}
	sessions := crawlers.NewSessionPool(func() crawlers.Session {
		return crawlers.NewCollySession(opts)
	})
	retrier := crawlers.NewRetrier(crawlers.NewErrorPageDetector(cfg.Fetch.ErrorMarkers), userAgents)

	c := &Crawler{
		cfg:         cfg,
		task:        task,
		categoryURL: categoryURL,
		hint:        rules.HintFor(cfg.Site.Category),
		sessions:    sessions,
		retrier:     retrier,
		reporter:    utils.NewReporter(cfg.Output.BaseDir),
		pipeline: &crawlers.BookPipeline{
			Config:   cfg.Crawl,
			Sessions: sessions,
			Retrier:  retrier,
			Meta:     &extract.MetaExtractor{Site: site, Categories: rules},
			Store:    storage.NewBookStore(cfg.Output.BaseDir),
			Covers:   storage.NewCoverStore(cfg.CoverDir()),
			Monitor:  crawlers.NewResourceMonitor(cfg.ResourceMonitorConfig()),
		},
	}

	utils.Infof("站点: %s  分类: %s  提示: %q", site, categoryURL, c.hint)
	utils.Debugf("书籍并发=%d 章节并发=%d 代理=%d UA=%d",
		cfg.Crawl.BookConcurrency(), cfg.Crawl.ChapterConcurrency(), proxies.Len(), len(userAgents))
	return c, nil
}

// Task 当前任务
func (c *Crawler) Task() *models.CrawlTask {
	return c.task
}

// Discover 发现分类下的书籍地址
// 依次: 解析第一页 -> 沿"下一页"链翻页 -> 按URL模板穷举,结果按首次发现顺序去重
// 返回书籍地址和访问成功的分类页数
func (c *Crawler) Discover(ctx context.Context) ([]string, int, error) {
	s, err := c.sessions.Get(crawlers.CategoryWorker)
	if err != nil {
		return nil, 0, err
	}
	maxBooks := c.cfg.Crawl.MaxBooks
	pages := 0

	var books []string
	seen := make(map[string]struct{})
	add := func(list []string) int {
		n := 0
		for _, u := range list {
			if maxBooks > 0 && len(books) >= maxBooks {
				break
			}
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			books = append(books, u)
			n++
		}
		return n
	}
	full := func() bool { return maxBooks > 0 && len(books) >= maxBooks }

	// 1. 第一页
	first := c.retrier.Fetch(ctx, s, c.categoryURL, c.cfg.Crawl.CategoryTries, c.cfg.Crawl.DetailSleep)
	if err := ctx.Err(); err != nil {
		return books, pages, err
	}
	html := ""
	if first.OK {
		pages++
		html = first.HTML
		utils.Infof("分类第1页: %d 本", add(extract.ListBooks(html, c.categoryURL)))
	} else {
		utils.Warnf("分类首页抓取失败 [%s]: %v", c.categoryURL, first.Err)
	}

	// 2. 下一页链
	chained := 0
	visited := map[string]struct{}{c.categoryURL: {}}
	pageURL := c.categoryURL
	for !full() && html != "" {
		next := crawlers.FindNextPage(html, pageURL)
		if next == "" {
			break
		}
		if _, ok := visited[next]; ok {
			utils.Debugf("下一页已访问过,停止翻页: %s", next)
			break
		}
		visited[next] = struct{}{}

		res := c.retrier.Fetch(ctx, s, next, c.cfg.Crawl.CategoryTries, c.cfg.Crawl.DetailSleep)
		if err := ctx.Err(); err != nil {
			return books, pages, err
		}
		if !res.OK {
			utils.Warnf("分类页抓取失败,停止翻页 [%s]: %v", next, res.Err)
			break
		}
		pages++
		n := add(extract.ListBooks(res.HTML, next))
		chained += n
		utils.Debugf("分类翻页 %s: 新增 %d 本", next, n)
		pageURL, html = next, res.HTML
	}

	// 3. 模板穷举
	if (maxBooks > 0 && !full()) || (maxBooks == 0 && chained == 0) {
		// 模板页可能与翻页链重合,交给 add 去重;上限传总数即可保证并集达到上限
		fetch := func(ctx context.Context, u string) crawlers.FetchResult {
			res := c.retrier.Fetch(ctx, s, u, c.cfg.Crawl.TemplateTries, c.cfg.Crawl.DetailSleep)
			if !res.OK {
				res.HTML = ""
			} else {
				pages++
			}
			return res
		}
		found, err := crawlers.EnumerateTemplatePages(ctx, fetch, c.categoryURL, maxBooks, c.cfg.Fetch.MaxTemplatePages)
		n := add(found)
		utils.Debugf("模板翻页新增 %d 本", n)
		if err != nil {
			return books, pages, err
		}
	}

	return books, pages, nil
}

// Run 执行分类采集并生成报告
// 只有 ctx 取消会作为错误返回,单本书的失败记录在报告中
func (c *Crawler) Run(ctx context.Context) (*models.CrawlReport, error) {
	start := time.Now()
	c.task.StartedAt = &start
	c.task.Status = models.TaskStatusRunning

	report := &models.CrawlReport{
		TaskID:      c.task.ID,
		Site:        c.task.Site,
		CategoryURL: c.categoryURL,
		StartTime:   start,
		OutputDir:   c.cfg.Output.BaseDir,
		Config:      c.cfg.Crawl,
		Books:       []models.BookResult{},
		FailedBooks: []models.BookResult{},
	}

	books, pages, err := c.Discover(ctx)
	report.Stats.BooksFound = len(books)
	report.Stats.PagesVisited = pages
	utils.Infof("发现 %d 本书 (分类页 %d)", len(books), pages)

	if err == nil && len(books) > 0 {
		err = c.runBooks(ctx, books, report)
	}

	c.finish(report, err)
	if _, rerr := c.reporter.GenerateReport(report); rerr != nil {
		utils.Errorf("保存报告失败: %v", rerr)
	}
	return report, err
}

// runBooks 书籍层并发
func (c *Crawler) runBooks(ctx context.Context, books []string, report *models.CrawlReport) error {
	var bar *progressbar.ProgressBar
	if c.ShowProgress {
		bar = utils.NewProgressBar(len(books), "采集书籍")
	}

	// 每个下标只由一个任务写入
	results := make([]*models.BookResult, len(books))
	idx := make([]int, len(books))
	for i := range idx {
		idx[i] = i
	}
	err := crawlers.RunPool(ctx, c.cfg.Crawl.BookConcurrency(), idx,
		func(ctx context.Context, worker int, i int) error {
			res, err := c.runBook(ctx, crawlers.BookWorker(worker), books[i])
			results[i] = res
			if bar != nil {
				_ = bar.Add(1)
			}
			return err
		})

	for _, res := range results {
		if res == nil {
			continue
		}
		report.Books = append(report.Books, *res)
		report.Stats.Add(res.Stats())
		if res.Error != "" {
			report.FailedBooks = append(report.FailedBooks, *res)
		}
	}
	return err
}

// runBook 处理一本书,非取消类错误与 panic 只记录不返回
func (c *Crawler) runBook(ctx context.Context, worker crawlers.WorkerKey, bookURL string) (res *models.BookResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			utils.Logger.Error().
				Str("book", bookURL).
				Str("stack", string(debug.Stack())).
				Msgf("处理书籍时发生panic: %v", r)
			res = &models.BookResult{URL: bookURL, Error: fmt.Sprintf("panic: %v", r)}
			err = nil
		}
	}()

	res, err = c.pipeline.Run(ctx, worker, bookURL, c.hint)
	if res == nil {
		res = &models.BookResult{URL: bookURL}
	}
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if res.Error == "" {
				res.Error = err.Error()
			}
			return res, err
		}
		utils.Errorf("书籍处理失败 [%s]: %v", bookURL, err)
		res.Error = err.Error()
		return res, nil
	}
	if res.Error != "" {
		utils.Errorf("书籍处理失败 [%s]: %s", bookURL, res.Error)
	}
	return res, nil
}

// RunBook 只处理一本书
func (c *Crawler) RunBook(ctx context.Context, bookURL string) (*models.BookResult, error) {
	if err := models.ValidateURL(bookURL); err != nil {
		return nil, err
	}
	res, err := c.runBook(ctx, crawlers.BookWorker(0), bookURL)
	if err == nil && res.Error == "" {
		utils.Infof("完成: %s -> %s", res.Title, filepath.Join(c.cfg.Output.BaseDir, res.Slug))
	}
	return res, err
}

// finish 填充结束时间、耗时和任务状态
func (c *Crawler) finish(report *models.CrawlReport, err error) {
	end := time.Now()
	report.EndTime = end
	report.Duration = end.Sub(report.StartTime).Seconds()
	report.Stats.Duration = report.Duration

	c.task.CompletedAt = &end
	c.task.Stats = report.Stats
	switch {
	case err == nil:
		c.task.Status = models.TaskStatusCompleted
	case errors.Is(err, context.Canceled):
		c.task.Status = models.TaskStatusCancelled
		c.task.ErrorMessage = err.Error()
	default:
		c.task.Status = models.TaskStatusFailed
		c.task.ErrorMessage = err.Error()
	}

	utils.Logger.Info().
		Int("books", report.Stats.BooksFound).
		Int("succeeded", report.Stats.BooksSucceeded).
		Int("failed", report.Stats.BooksFailed).
		Int("chapters", report.Stats.ChaptersSaved).
		Int("skipped", report.Stats.ChaptersSkipped).
		Float64("duration", report.Duration).
		Msg("采集结束")
}
