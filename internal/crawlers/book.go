package crawlers

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/RecoveryAshes/novelcrawl/internal/extract"
	"github.com/RecoveryAshes/novelcrawl/internal/models"
	"github.com/RecoveryAshes/novelcrawl/internal/storage"
	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

// BookPipeline 单本书的抓取流水线
// 详情页 -> 元数据 -> 封面 -> 目录(必要时取 index.html) -> 落盘 -> 并发抓章节 -> 失败章节重试
type BookPipeline struct {
	Config   models.CrawlConfig
	Sessions *SessionPool
	Retrier  *Retrier
	Meta     *extract.MetaExtractor
	Store    *storage.BookStore
	Covers   *storage.CoverStore // nil 时不处理封面
	Monitor  *ResourceMonitor    // nil 时不收紧章节并发
}

// Run 处理一本书
// 只在 ctx 取消或会话不可用时返回错误;章节级失败记录在结果中
func (p *BookPipeline) Run(ctx context.Context, worker WorkerKey, bookURL, categoryHint string) (*models.BookResult, error) {
	res := &models.BookResult{URL: bookURL}
	logger := utils.Logger.With().Str("book", bookURL).Str("worker", string(worker)).Logger()

	s, err := p.Sessions.Get(worker)
	if err != nil {
		res.Error = err.Error()
		return res, err
	}

	detail := p.Retrier.Fetch(ctx, s, bookURL, p.Config.DetailTries, p.Config.DetailSleep)
	if err := ctx.Err(); err != nil {
		return res, err
	}
	html := detail.HTML
	if !detail.OK {
		logger.Warn().Err(detail.Err).Int("attempts", detail.Attempts).Msg("详情页抓取失败,按空页面继续")
		html = ""
	}

	meta := p.Meta.BookMeta(html, bookURL, categoryHint)
	res.Slug = meta.Slug
	res.Title = meta.Title
	logger = logger.With().Str("slug", meta.Slug).Logger()

	if p.Config.LocalCovers && p.Covers != nil {
		p.localizeCover(ctx, s, &meta, bookURL, res, logger)
	}

	toc := extract.TOC(html, bookURL)
	if len(toc) == 0 {
		indexURL := extract.ResolveURL(bookURL, "index.html")
		alt := p.Retrier.Fetch(ctx, s, indexURL, p.Config.IndexTries, p.Config.IndexSleep)
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if alt.OK {
			toc = extract.TOC(alt.HTML, bookURL)
		}
		logger.Debug().Str("index", indexURL).Int("chapters", len(toc)).Msg("详情页无目录,改用 index.html")
	}
	res.Chapters = len(toc)

	if err := p.Store.SaveBook(meta, toc); err != nil {
		res.Error = err.Error()
		return res, nil
	}
	logger.Info().Str("title", meta.Title).Int("chapters", len(toc)).Msg("书籍信息已保存")

	if !p.Config.FetchChapters || len(toc) == 0 {
		return res, nil
	}

	existing := map[string]bool{}
	if !p.Config.Overwrite {
		if existing, err = p.Store.ExistingPrefixes(meta.Slug); err != nil {
			logger.Warn().Err(err).Msg("扫描已有章节失败,全部重新抓取")
			existing = map[string]bool{}
		}
	}

	pending := make([]ChapterTask, 0, len(toc))
	for _, ch := range toc {
		if extract.IsInertHref(ch.Href) {
			continue
		}
		if existing[models.ChapterSlug(ch.No)] {
			res.ChaptersSkipped++
			continue
		}
		pending = append(pending, ChapterTask{No: ch.No, Href: ch.Href})
	}

	width := p.Monitor.ClampWorkers(p.Config.ChapterConcurrency())
	queue := NewRetryQueue()
	var saved atomic.Int64

	if err := p.fetchChapters(ctx, worker, meta.Slug, width, pending, queue, &saved, logger); err != nil {
		res.ChaptersSaved = int(saved.Load())
		return res, err
	}

	for rd := 0; rd < p.Config.RetryRounds && queue.Len() > 0; rd++ {
		wait := p.Retrier.Backoff(p.Config.RetrySleep, rd)
		logger.Info().Int("round", rd+1).Int("failed", queue.Len()).Dur("wait", wait).Msg("重试失败章节")
		if err := p.Retrier.Sleep(ctx, wait); err != nil {
			res.ChaptersSaved = int(saved.Load())
			return res, err
		}
		if err := p.fetchChapters(ctx, worker, meta.Slug, width, queue.Drain(), queue, &saved, logger); err != nil {
			res.ChaptersSaved = int(saved.Load())
			return res, err
		}
	}

	res.ChaptersSaved = int(saved.Load())
	res.FailedChapters = queue.Numbers()
	res.ChaptersFailed = len(res.FailedChapters)
	if res.ChaptersFailed > 0 {
		logger.Warn().Ints("failed", res.FailedChapters).Msg("部分章节在重试后仍失败")
	}
	logger.Info().
		Int("saved", res.ChaptersSaved).
		Int("skipped", res.ChaptersSkipped).
		Int("failed", res.ChaptersFailed).
		Msg("书籍完成")
	return res, nil
}

// localizeCover 远程封面本地化,失败时生成占位封面
func (p *BookPipeline) localizeCover(ctx context.Context, s Session, meta *models.BookMeta, referer string, res *models.BookResult, logger zerolog.Logger) {
	if meta.Cover != "" {
		path, err := p.Covers.Localize(ctx, s, meta.Cover, meta.Slug, referer)
		if err == nil {
			meta.Cover = path
			res.CoverLocal = true
			return
		}
		logger.Debug().Err(err).Str("cover", meta.Cover).Msg("封面本地化失败,生成占位封面")
	}
	if ph := p.Covers.Placeholder(meta.Slug, meta.Title, meta.Author, meta.CategoryID); ph != "" {
		meta.Cover = ph
		res.CoverGenerated = true
	}
}

// fetchChapters 并发抓取一批章节,失败的放入 queue
func (p *BookPipeline) fetchChapters(ctx context.Context, book WorkerKey, slug string, width int, tasks []ChapterTask, queue *RetryQueue, saved *atomic.Int64, logger zerolog.Logger) error {
	if len(tasks) == 0 {
		return nil
	}
	return RunPool(ctx, width, tasks, func(ctx context.Context, w int, t ChapterTask) error {
		s, err := p.Sessions.Get(ChapterWorker(book, w))
		if err != nil {
			queue.Push(t)
			return nil
		}

		r := p.Retrier.Fetch(ctx, s, t.Href, p.Config.ChapterTries, p.Config.ChapterSleep)
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.OK {
			logger.Debug().Int("no", t.No).Err(r.Err).Msg("章节抓取失败")
			queue.Push(t)
			return nil
		}

		paras := extract.ChapterContent(r.HTML)
		if _, err := p.Store.SaveChapter(slug, t.No, paras); err != nil {
			logger.Debug().Int("no", t.No).Err(err).Msg("章节保存失败")
			queue.Push(t)
			return nil
		}
		saved.Add(1)
		return nil
	})
}
