package core

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/RecoveryAshes/novelcrawl/internal/crawlers"
	"github.com/RecoveryAshes/novelcrawl/internal/models"
	"github.com/RecoveryAshes/novelcrawl/internal/utils"
)

// DefaultCategory 未指定分类时采集的分类路径
const DefaultCategory = "/xuanhuan/"

// Config 应用程序配置
type Config struct {
	Site        SiteConfig         `mapstructure:"site"`
	Crawl       models.CrawlConfig `mapstructure:"crawl"`
	Fetch       FetchConfig        `mapstructure:"fetch"`
	Output      OutputConfig       `mapstructure:"output"`
	Logging     LoggingConfig      `mapstructure:"logging"`
	Resource    ResourceConfig     `mapstructure:"resource"`
	CategoryMap string             `mapstructure:"category_map"` // 分类映射文件路径
}

// SiteConfig 目标站点
type SiteConfig struct {
	Base     string `mapstructure:"base"`     // 站点根,如 https://www.example.com
	Category string `mapstructure:"category"` // 分类路径或完整URL
}

// FetchConfig 抓取层配置
type FetchConfig struct {
	Headers            map[string]string `mapstructure:"headers"`              // 额外请求头
	ErrorMarkers       []string          `mapstructure:"error_markers"`        // 错误页特征短语,为空用内置列表
	UserAgents         []string          `mapstructure:"user_agents"`          // 重试时轮换的UA
	UAFile             string            `mapstructure:"ua_file"`              // UA文件,每行一个
	Proxies            string            `mapstructure:"proxies"`              // 逗号分隔或每行一个的文件
	ProxyCooldown      int               `mapstructure:"proxy_cooldown"`       // 代理冷却时间(秒)
	ProxyFailThreshold int               `mapstructure:"proxy_fail_threshold"` // 连续失败多少次进入冷却
	InsecureSkipVerify bool              `mapstructure:"insecure_skip_verify"`
	MaxTemplatePages   int               `mapstructure:"max_template_pages"` // 模板翻页最多穷举到第几页,0为不限
}

// OutputConfig 输出配置
type OutputConfig struct {
	BaseDir  string `mapstructure:"base_dir"`  // 书库根目录
	CoverDir string `mapstructure:"cover_dir"` // 封面目录,为空时为 {base_dir}/covers
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level    string         `mapstructure:"level"`
	LogDir   string         `mapstructure:"log_dir"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig 日志轮转配置
type RotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"`
	Compress   bool `mapstructure:"compress"`
}

// ResourceConfig 资源保护配置(单位MB)
type ResourceConfig struct {
	Enabled          bool `mapstructure:"enabled"`
	MinFreeMemory    int  `mapstructure:"min_free_memory"`
	WorkerMemory     int  `mapstructure:"worker_memory"`
	CPULoadThreshold int  `mapstructure:"cpu_load_threshold"`
}

// flagKeys 命令行参数 -> 配置键;参数只在显式指定时覆盖配置文件
var flagKeys = map[string]string{
	"base":            "site.base",
	"category":        "site.category",
	"rate":            "crawl.rate",
	"max-books":       "crawl.max_books",
	"threads":         "crawl.threads",
	"book-workers":    "crawl.book_workers",
	"chapter-workers": "crawl.chapter_workers",
	"pool":            "crawl.pool",
	"timeout":         "crawl.timeout",
	"fetch-chapters":  "crawl.fetch_chapters",
	"local-covers":    "crawl.local_covers",
	"overwrite":       "crawl.overwrite",
	"retry-rounds":    "crawl.retry_rounds",
	"retry-sleep":     "crawl.retry_sleep",
	"proxies":         "fetch.proxies",
	"ua-file":         "fetch.ua_file",
	"category-map":    "category_map",
	"output":          "output.base_dir",
	"log-level":       "logging.level",
}

// LoadConfig 加载配置
// 优先级: 显式指定的命令行参数 > 配置文件 > 默认值;flags 可为 nil
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		// 显式指定的配置文件必须存在
		if _, err := os.Stat(configPath); err != nil {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".novelcrawl"))
		}
	}

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("绑定参数 --%s 失败: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &models.ConfigError{FilePath: configPath, Cause: err}
		}
	} else {
		utils.Debugf("使用配置文件: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, &models.ConfigError{FilePath: v.ConfigFileUsed(), Cause: err}
	}

	// --no-fetch-chapters 优先于 --fetch-chapters
	if flags != nil && flags.Changed("no-fetch-chapters") {
		if off, err := flags.GetBool("no-fetch-chapters"); err == nil && off {
			config.Crawl.FetchChapters = false
		}
	}
	return &config, nil
}

// setDefaults 设置默认配置值
func setDefaults(v *viper.Viper) {
	crawl := models.DefaultCrawlConfig()
	v.SetDefault("site.category", DefaultCategory)

	v.SetDefault("crawl.rate", crawl.Rate)
	v.SetDefault("crawl.max_books", crawl.MaxBooks)
	v.SetDefault("crawl.threads", crawl.Threads)
	v.SetDefault("crawl.book_workers", 0)
	v.SetDefault("crawl.chapter_workers", 0)
	v.SetDefault("crawl.pool", crawl.Pool)
	v.SetDefault("crawl.timeout", crawl.Timeout)
	v.SetDefault("crawl.fetch_chapters", crawl.FetchChapters)
	v.SetDefault("crawl.local_covers", crawl.LocalCovers)
	v.SetDefault("crawl.overwrite", false)
	v.SetDefault("crawl.retry_rounds", crawl.RetryRounds)
	v.SetDefault("crawl.retry_sleep", crawl.RetrySleep)
	v.SetDefault("crawl.detail_tries", crawl.DetailTries)
	v.SetDefault("crawl.detail_sleep", crawl.DetailSleep)
	v.SetDefault("crawl.index_tries", crawl.IndexTries)
	v.SetDefault("crawl.index_sleep", crawl.IndexSleep)
	v.SetDefault("crawl.chapter_tries", crawl.ChapterTries)
	v.SetDefault("crawl.chapter_sleep", crawl.ChapterSleep)
	v.SetDefault("crawl.category_tries", crawl.CategoryTries)
	v.SetDefault("crawl.template_tries", crawl.TemplateTries)

	v.SetDefault("fetch.proxy_cooldown", int(crawlers.DefaultProxyCooldown.Seconds()))
	v.SetDefault("fetch.proxy_fail_threshold", crawlers.DefaultProxyFailThreshold)
	v.SetDefault("fetch.max_template_pages", 0)

	v.SetDefault("output.base_dir", "output")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.log_dir", "logs")
	v.SetDefault("logging.rotation.max_size", 10)
	v.SetDefault("logging.rotation.max_backups", 3)
	v.SetDefault("logging.rotation.max_age", 28)
	v.SetDefault("logging.rotation.compress", true)

	res := crawlers.DefaultResourceMonitorConfig()
	v.SetDefault("resource.enabled", res.Enabled)
	v.SetDefault("resource.min_free_memory", res.MinFreeMemory/(1024*1024))
	v.SetDefault("resource.worker_memory", res.WorkerMemory/(1024*1024))
	v.SetDefault("resource.cpu_load_threshold", res.CPULoadThreshold)
}

// Validate 校验站点与爬取配置
func (c *Config) Validate() error {
	if c.Site.Base == "" {
		return fmt.Errorf("缺少站点根地址 (--base 或 site.base)")
	}
	if err := models.ValidateURL(c.Site.Base); err != nil {
		return fmt.Errorf("无效的站点根地址: %w", err)
	}
	if c.Fetch.MaxTemplatePages < 0 {
		return fmt.Errorf("max_template_pages 不能为负数")
	}
	return c.Crawl.Validate()
}

// CategoryURL 分类页完整地址
func (c *Config) CategoryURL() string {
	category := c.Site.Category
	if category == "" {
		category = DefaultCategory
	}
	return models.ResolveCategoryURL(c.Site.Base, category)
}

// CoverDir 封面目录
func (c *Config) CoverDir() string {
	if c.Output.CoverDir != "" {
		return c.Output.CoverDir
	}
	return filepath.Join(c.Output.BaseDir, "covers")
}

// LogConfig 转换为日志配置
func (c *Config) LogConfig() utils.LogConfig {
	return utils.LogConfig{
		Level:      c.Logging.Level,
		LogDir:     c.Logging.LogDir,
		MaxSize:    c.Logging.Rotation.MaxSize,
		MaxBackups: c.Logging.Rotation.MaxBackups,
		MaxAge:     c.Logging.Rotation.MaxAge,
		Compress:   c.Logging.Rotation.Compress,
	}
}

// ResourceMonitorConfig 转换为资源监控配置
func (c *Config) ResourceMonitorConfig() crawlers.ResourceMonitorConfig {
	return crawlers.ResourceMonitorConfig{
		Enabled:          c.Resource.Enabled,
		MinFreeMemory:    int64(c.Resource.MinFreeMemory) * 1024 * 1024,
		WorkerMemory:     int64(c.Resource.WorkerMemory) * 1024 * 1024,
		CPULoadThreshold: c.Resource.CPULoadThreshold,
	}
}
