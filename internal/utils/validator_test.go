package utils

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

func TestHeaderValidator_ValidateHeader(t *testing.T) {
	validator := NewHeaderValidator()

	tests := []struct {
		name        string
		headerName  string
		headerValue string
		expectError bool
	}{
		{"合法头部", "User-Agent", "Mozilla/5.0", false},
		{"合法头部-Cookie", "Cookie", "uid=1; token=abc", false},
		{"合法值-空字符串", "X-Empty", "", false},
		{"合法值-接近上限", "X-Long", strings.Repeat(" ", 8000), false},
		{"禁止头部-Host", "Host", "example.com", true},
		{"禁止头部-不区分大小写", "host", "example.com", true},
		{"禁止头部-Accept-Encoding", "Accept-Encoding", "zstd", true},
		{"非法名称-空格", "User Agent", "value", true},
		{"非法名称-下划线", "User_Agent", "value", true},
		{"非法名称-空字符串", "", "value", true},
		{"非法值-控制字符", "User-Agent", "value\x00bad", true},
		{"非法值-中文", "Referer", "https://a.com/玄幻", true},
		{"非法值-超长", "X-TooLong", strings.Repeat("a", MaxHeaderValueLength+1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateHeader(tt.headerName, tt.headerValue)
			if (err != nil) != tt.expectError {
				t.Errorf("期望错误=%v, 实际错误=%v", tt.expectError, err)
			}
		})
	}
}

func TestHeaderValidator_Validate(t *testing.T) {
	validator := NewHeaderValidator()

	t.Run("合法的http.Header", func(t *testing.T) {
		headers := http.Header{
			"User-Agent": []string{"Mozilla/5.0"},
			"Accept":     []string{"*/*"},
			"Referer":    []string{"https://www.example.com/"},
		}
		if err := validator.Validate(headers); err != nil {
			t.Errorf("期望无错误, 实际错误=%v", err)
		}
	})

	t.Run("返回第一个非法头部的ValidationError", func(t *testing.T) {
		headers := http.Header{
			"X-Bad": []string{"value\x00bad"},
			"Host":  []string{"example.com"},
		}
		err := validator.Validate(headers)
		var verr *models.ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("期望ValidationError, 实际=%v", err)
		}
		// 按名称排序,Host 先于 X-Bad
		if verr.HeaderName != "Host" {
			t.Errorf("期望Host, 实际=%s", verr.HeaderName)
		}
	})
}
