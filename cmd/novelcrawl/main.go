package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/RecoveryAshes/novelcrawl/internal/core"
	"github.com/RecoveryAshes/novelcrawl/internal/models"
	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

// 命令行参数
// 爬取类参数只在显式指定时覆盖配置文件,见 core.LoadConfig
var (
	// 全局参数
	configFile     string
	verbose        bool
	noProgress     bool
	headers        []string // 自定义HTTP请求头
	validateConfig bool

	// 由 PersistentPreRunE 加载
	appConfig *core.Config
)

var rootCmd = &cobra.Command{
	Use:   "novelcrawl",
	Short: "小说站点分类采集工具",
	Long: `novelcrawl - 小说站点分类采集工具

按分类页发现书籍,抓取详情、目录与章节正文,落盘为 JSON + 文本:
  • 沿"下一页"链翻页,必要时按URL模板穷举分页
  • 错误页识别、退避重试与UA轮换
  • 代理池冷却摘除
  • 已下载章节自动跳过,可断点续采
  • 封面本地化,失败时生成占位封面

示例:
  novelcrawl --base https://www.example.com --category /xuanhuan/ --max-books 20
  novelcrawl --base https://www.example.com book https://www.example.com/book/123/
  novelcrawl --base https://www.example.com -H "Cookie: uid=1" --proxies proxies.txt

版本: ` + Version + `
构建时间: ` + BuildTime,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		config, err := core.LoadConfig(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("加载配置失败: %w", err)
		}
		config.Site.Base = NormalizeBase(config.Site.Base)

		logConfig := config.LogConfig()
		if verbose {
			logConfig.Level = "debug"
		}
		// 进度条模式下控制台只输出警告及以上
		logConfig.Quiet = cmd == cmd.Root() && !noProgress && !validateConfig
		if err := utils.InitLogger(logConfig); err != nil {
			return fmt.Errorf("初始化日志系统失败: %w", err)
		}

		if err := ValidateFlags(config, logConfig.Level); err != nil {
			return err
		}
		if verbose {
			utils.Info("详细模式已启用")
		}
		appConfig = config
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		headerManager, err := core.NewHeaderManager(appConfig.Site.Base, appConfig.Fetch.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}

		if validateConfig {
			return printValidation(headerManager)
		}

		crawler, err := core.NewCrawler(appConfig, headerManager)
		if err != nil {
			return fmt.Errorf("创建采集器失败: %w", err)
		}
		crawler.ShowProgress = !noProgress

		report, err := crawler.Run(ctx)
		if report != nil {
			printReport(report)
		}
		if errors.Is(err, context.Canceled) {
			utils.Warn("收到中断信号,采集已停止")
			return err
		}
		if err != nil {
			return fmt.Errorf("采集失败: %w", err)
		}

		utils.Info("✨ 采集任务完成!")
		return nil
	},
}

var bookCmd = &cobra.Command{
	Use:   "book <书籍详情页URL>",
	Short: "只采集一本书",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		bookURL := args[0]
		if err := models.ValidateURL(bookURL); err != nil {
			return fmt.Errorf("无效的书籍地址: %w", err)
		}

		headerManager, err := core.NewHeaderManager(appConfig.Site.Base, appConfig.Fetch.Headers, headers)
		if err != nil {
			return fmt.Errorf("创建HTTP头部管理器失败: %w", err)
		}
		crawler, err := core.NewCrawler(appConfig, headerManager)
		if err != nil {
			return fmt.Errorf("创建采集器失败: %w", err)
		}

		res, err := crawler.RunBook(ctx, bookURL)
		if err != nil {
			return err
		}
		fmt.Printf("📖 %s (%s)\n", res.Title, res.Slug)
		fmt.Printf("   目录 %d 章, 保存 %d, 跳过 %d, 失败 %d\n",
			res.Chapters, res.ChaptersSaved, res.ChaptersSkipped, res.ChaptersFailed)
		if res.Error != "" {
			return fmt.Errorf("采集失败: %s", res.Error)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "显示版本信息",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("novelcrawl %s\n", Version)
		fmt.Printf("构建时间: %s\n", BuildTime)
	},
}

// printValidation 显示合并后的有效头部(脱敏)
func printValidation(hm *core.HeaderManager) error {
	utils.Info("🔍 验证配置...")
	if err := hm.Validate(); err != nil {
		return fmt.Errorf("配置验证失败: %w", err)
	}
	safeHeaders := hm.GetSafeHeaders()
	utils.Info("✅ 配置验证通过!")
	utils.Infof("分类地址: %s", appConfig.CategoryURL())
	utils.Infof("当前有效的HTTP头部 (%d个):", len(safeHeaders))
	for name, value := range safeHeaders {
		utils.Infof("  %s: %s", name, value)
	}
	return nil
}

func printReport(report *models.CrawlReport) {
	s := report.Stats
	fmt.Println("\n==================================================")
	fmt.Println("📊 采集统计")
	fmt.Println("==================================================")
	fmt.Printf("✅ 发现书籍: %d (分类页 %d)\n", s.BooksFound, s.PagesVisited)
	fmt.Printf("✅ 成功书籍: %d\n", s.BooksSucceeded)
	fmt.Printf("❌ 失败书籍: %d\n", s.BooksFailed)
	fmt.Printf("✅ 保存章节: %d (跳过 %d)\n", s.ChaptersSaved, s.ChaptersSkipped)
	fmt.Printf("❌ 失败章节: %d\n", s.ChaptersFailed)
	fmt.Printf("🖼  封面: 本地 %d, 占位 %d\n", s.CoversLocal, s.CoversGenerated)
	fmt.Printf("⏱️  总耗时: %.2f秒\n", report.Duration)
	fmt.Println("==================================================")
}

func init() {
	defaults := models.DefaultCrawlConfig()
	pf := rootCmd.PersistentFlags()

	// 全局参数
	pf.StringVarP(&configFile, "config", "c", "", "配置文件路径")
	pf.BoolVarP(&verbose, "verbose", "v", false, "详细输出模式")
	pf.String("log-level", "info", "日志级别 (trace|debug|info|warn|error)")
	pf.BoolVar(&noProgress, "no-progress", false, "不显示进度条")
	pf.StringSliceVarP(&headers, "header", "H", []string{}, "自定义HTTP头部,格式: 'Name: Value',可多次指定")
	pf.BoolVar(&validateConfig, "validate-config", false, "验证配置并显示有效请求头")

	// 站点
	pf.String("base", "", "站点根地址,如 https://www.example.com (必需)")
	pf.String("category", core.DefaultCategory, "分类路径或完整URL")

	// 爬取参数
	pf.Float64("rate", defaults.Rate, "请求间隔(秒),所有会话共享")
	pf.Int("max-books", 0, "最多采集书籍数,0为不限")
	pf.Int("threads", defaults.Threads, "线程预算")
	pf.Int("book-workers", 0, "书籍并发数,0为按线程预算计算")
	pf.Int("chapter-workers", 0, "章节并发数,0为按线程预算计算")
	pf.Int("pool", defaults.Pool, "每个主机的连接池大小")
	pf.Int("timeout", defaults.Timeout, "单次请求超时(秒)")
	pf.Bool("fetch-chapters", defaults.FetchChapters, "抓取章节正文")
	pf.Bool("no-fetch-chapters", false, "只保存书籍信息与目录")
	pf.Bool("local-covers", defaults.LocalCovers, "本地化封面")
	pf.Bool("overwrite", false, "覆盖已存在的章节文件")
	pf.Int("retry-rounds", defaults.RetryRounds, "失败章节重试轮数")
	pf.Float64("retry-sleep", defaults.RetrySleep, "重试轮基础等待(秒)")

	// 抓取层
	pf.String("proxies", "", "代理列表,逗号分隔或每行一个的文件")
	pf.String("ua-file", "", "User-Agent 列表文件,每行一个")
	pf.String("category-map", "", "分类映射文件 (YAML/JSON)")
	pf.StringP("output", "o", "output", "输出目录")

	rootCmd.AddCommand(bookCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}
