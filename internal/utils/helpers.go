package utils

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLines 按行读取文件,跳过空行和 # 注释
func ReadLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("打开文件失败: %w", err)
	}
	defer file.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("读取文件失败 [%s]: %w", path, err)
	}
	return lines, nil
}

// ReadLinesOrCSV 参数是已存在的文件时按行读取,否则按逗号拆分
func ReadLinesOrCSV(val string) ([]string, error) {
	val = strings.TrimSpace(val)
	if val == "" {
		return nil, nil
	}
	if info, err := os.Stat(val); err == nil && !info.IsDir() {
		return ReadLines(val)
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out, nil
}
