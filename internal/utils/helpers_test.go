package utils

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadLinesOrCSV(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "proxies.txt")
	content := "# 代理列表\nhttp://1.1.1.1:80\n\n  http://2.2.2.2:80  \n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"文件按行读取", file, []string{"http://1.1.1.1:80", "http://2.2.2.2:80"}},
		{"逗号分隔", "a:1, b:2,,c:3", []string{"a:1", "b:2", "c:3"}},
		{"空字符串", "  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadLinesOrCSV(tt.input)
			if err != nil {
				t.Fatalf("意外错误: %v", err)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("期望=%v, 实际=%v", tt.expected, got)
			}
		})
	}
}

func TestReadLines_MissingFile(t *testing.T) {
	if _, err := ReadLines(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Error("期望文件不存在时报错")
	}
}
