package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

func TestReporter_GenerateReport(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(dir)

	report := &models.CrawlReport{
		TaskID:      "run-1",
		Site:        "a.com",
		CategoryURL: "https://www.a.com/xuanhuan/",
		StartTime:   time.Now(),
		Stats:       models.CrawlStats{BooksFound: 2, BooksSucceeded: 1, BooksFailed: 1},
		Books: []models.BookResult{
			{URL: "https://www.a.com/book/1/", Slug: "abcde"},
			{URL: "https://www.a.com/book/2/", Error: "boom"},
		},
		FailedBooks: []models.BookResult{{URL: "https://www.a.com/book/2/", Error: "boom"}},
	}

	path, err := r.GenerateReport(report)
	if err != nil {
		t.Fatalf("GenerateReport() error = %v", err)
	}
	if want := filepath.Join(dir, "reports", "crawl_report_run-1.json"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got models.CrawlReport
	if err := got.FromJSON(data); err != nil {
		t.Fatal(err)
	}
	if got.Stats.BooksFound != 2 || len(got.Books) != 2 {
		t.Errorf("报告内容不符: %+v", got.Stats)
	}

	failedData, err := os.ReadFile(filepath.Join(dir, "reports", "failed_books_run-1.json"))
	if err != nil {
		t.Fatalf("期望生成失败书籍列表: %v", err)
	}
	var failed []models.BookResult
	if err := json.Unmarshal(failedData, &failed); err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Error != "boom" {
		t.Errorf("失败书籍列表不符: %+v", failed)
	}
}

func TestReporter_NoFailedList(t *testing.T) {
	dir := t.TempDir()
	r := NewReporter(dir)
	if _, err := r.GenerateReport(&models.CrawlReport{TaskID: "run-2"}); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "reports", "failed_books_run-2.json")); !os.IsNotExist(err) {
		t.Errorf("没有失败书籍时不应生成列表, err = %v", err)
	}
}
