package models

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// ValidateURL 验证URL
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("无效的URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL必须是HTTP或HTTPS协议")
	}
	if parsed.Host == "" {
		return fmt.Errorf("URL必须包含主机名")
	}
	return nil
}

// ResolveCategoryURL 将分类路径拼接到站点根上;已是完整URL时原样返回
//
//	("https://a.com/", "/xuanhuan/") -> "https://a.com/xuanhuan/"
//	("https://a.com", "xuanhuan/")   -> "https://a.com/xuanhuan/"
func ResolveCategoryURL(base, category string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasPrefix(category, "http://") || strings.HasPrefix(category, "https://") {
		return category
	}
	if !strings.HasPrefix(category, "/") {
		category = "/" + category
	}
	return base + category
}

// SiteName 取站点主机名作为站点名(去掉 www. 前缀与端口)
func SiteName(base string) string {
	parsed, err := url.Parse(base)
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(parsed.Hostname(), "www.")
}

// generateID 生成唯一ID
func generateID() string {
	return uuid.New().String()
}

// NewRunID 生成运行ID
func NewRunID() string {
	return generateID()
}
