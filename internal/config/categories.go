package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

// MaxConfigFileSize 分类映射文件最大大小 (1MB)
const MaxConfigFileSize = 1 * 1024 * 1024

//go:embed default_category_map.yaml
var defaultCategoryMap []byte

// CategoryRules 分类映射规则
// 作为显式配置值传入解析流程,加载后只读
type CategoryRules struct {
	CategoryRules   map[string]string   `yaml:"category_rules" json:"category_rules"`       // 站点分类名 -> ID
	KeywordRules    map[string][]string `yaml:"keyword_rules" json:"keyword_rules"`         // ID -> 关键词
	DefaultCategory string              `yaml:"default_id" json:"default_id"`               // 默认ID
	HintMap         map[string]string   `yaml:"category_hint_map" json:"category_hint_map"` // 路径段 -> ID

	names []string // 按长度降序的分类名,用于包含匹配
	ids   []string // 排序后的关键词规则ID
}

// categoryFile 映射文件结构,规则可以直接写在顶层,也可以嵌套在 category_map 下
type categoryFile struct {
	CategoryRules `yaml:",inline"`
	CategoryMap   *CategoryRules `yaml:"category_map" json:"category_map"`
}

// DefaultCategoryRules 内置规则(仅含目录段提示表)
func DefaultCategoryRules() *CategoryRules {
	var f categoryFile
	if err := yaml.Unmarshal(defaultCategoryMap, &f); err != nil {
		panic(fmt.Sprintf("内置分类映射无效: %v", err))
	}
	r := f.CategoryRules
	r.index()
	return &r
}

// LoadCategoryMap 加载分类映射文件(YAML或JSON)
// path 为空时返回内置规则;文件中的提示表非空时整体替换内置提示表
func LoadCategoryMap(path string) (*CategoryRules, error) {
	rules := DefaultCategoryRules()
	if path == "" {
		return rules, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: path, Cause: err}
	}
	if info.Size() > MaxConfigFileSize {
		return nil, &models.ConfigError{
			FilePath: path,
			Cause:    fmt.Errorf("配置文件过大: %d 字节 (最大 %d 字节)", info.Size(), MaxConfigFileSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &models.ConfigError{FilePath: path, Cause: err}
	}

	var f categoryFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, &f)
	default:
		err = json.Unmarshal(data, &f)
	}
	if err != nil {
		return nil, &models.ConfigError{FilePath: path, Cause: fmt.Errorf("解析失败: %w", err)}
	}

	loaded := f.CategoryRules
	if f.CategoryMap != nil {
		nested := *f.CategoryMap
		if len(nested.HintMap) == 0 {
			nested.HintMap = loaded.HintMap
		}
		loaded = nested
	}

	rules.CategoryRules = loaded.CategoryRules
	rules.KeywordRules = loaded.KeywordRules
	if loaded.DefaultCategory != "" {
		rules.DefaultCategory = loaded.DefaultCategory
	}
	if len(loaded.HintMap) > 0 {
		rules.HintMap = make(map[string]string, len(loaded.HintMap))
		for k, v := range loaded.HintMap {
			rules.HintMap[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	rules.index()
	return rules, nil
}

func (r *CategoryRules) index() {
	r.names = r.names[:0]
	for name := range r.CategoryRules {
		if name != "" {
			r.names = append(r.names, name)
		}
	}
	sort.Slice(r.names, func(i, j int) bool {
		if len(r.names[i]) != len(r.names[j]) {
			return len(r.names[i]) > len(r.names[j])
		}
		return r.names[i] < r.names[j]
	})

	r.ids = r.ids[:0]
	for id := range r.KeywordRules {
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)
}

// MapName 站点分类名映射为ID
// 先精确匹配,再找被分类名包含的最长规则名
func (r *CategoryRules) MapName(name string) (string, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", false
	}
	if id, ok := r.CategoryRules[name]; ok {
		return id, true
	}
	for _, rule := range r.names {
		if strings.Contains(name, rule) {
			return r.CategoryRules[rule], true
		}
	}
	return "", false
}

// MatchKeywords 关键词匹配,不区分大小写;按ID字典序取第一个命中
func (r *CategoryRules) MatchKeywords(blob string) string {
	if blob == "" {
		return ""
	}
	lower := strings.ToLower(blob)
	for _, id := range r.ids {
		for _, kw := range r.KeywordRules[id] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" && strings.Contains(lower, kw) {
				return id
			}
		}
	}
	return ""
}

// DefaultID 默认分类ID
func (r *CategoryRules) DefaultID() string {
	return r.DefaultCategory
}

// HintFor 由分类路径(或完整URL)的第一段得到分类提示
func (r *CategoryRules) HintFor(category string) string {
	path := category
	if strings.HasPrefix(category, "http://") || strings.HasPrefix(category, "https://") {
		if u, err := url.Parse(category); err == nil {
			path = u.Path
		}
	}
	seg, _, _ := strings.Cut(strings.Trim(path, "/"), "/")
	return r.HintMap[strings.ToLower(seg)]
}
