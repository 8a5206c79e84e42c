package main

import (
	"fmt"
	"strings"

	"github.com/RecoveryAshes/novelcrawl/internal/core"
)

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateFlags 校验合并后的配置
func ValidateFlags(cfg *core.Config, logLevel string) error {
	if cfg.Site.Base == "" {
		return fmt.Errorf("缺少站点根地址,请使用 --base 或在配置文件中设置 site.base")
	}

	if !validLogLevels[strings.ToLower(logLevel)] {
		return fmt.Errorf("无效的日志级别: %s (有效值: trace, debug, info, warn, error)", logLevel)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("参数无效: %w", err)
	}
	return nil
}

// NormalizeBase 规范化站点根地址
// 缺少协议时默认 https,去掉末尾的 /
func NormalizeBase(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	return strings.TrimRight(raw, "/")
}
