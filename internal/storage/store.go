package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RecoveryAshes/novelcrawl/internal/models"
)

// ErrEmptyChapter 章节没有任何段落
var ErrEmptyChapter = errors.New("章节内容为空")

// minChapterBytes 已存在的章节文件超过这个大小才算有效
const minChapterBytes = 10

// BookStore 本地书库
// 目录结构: {root}/{slug}/meta.json, toc.json, chapters.json, chapters/{no}-{no}.txt
type BookStore struct {
	root string
}

// NewBookStore 创建书库
func NewBookStore(root string) *BookStore {
	return &BookStore{root: root}
}

// Root 书库根目录
func (s *BookStore) Root() string {
	return s.root
}

// BookDir 书籍目录
func (s *BookStore) BookDir(slug string) string {
	return filepath.Join(s.root, slug)
}

// ChapterDir 章节目录
func (s *BookStore) ChapterDir(slug string) string {
	return filepath.Join(s.BookDir(slug), "chapters")
}

// ChapterPath 章节文件路径
func (s *BookStore) ChapterPath(slug string, no int) string {
	pad := models.ChapterSlug(no)
	return filepath.Join(s.ChapterDir(slug), pad+"-"+pad+".txt")
}

// EnsureDir 确保目录存在
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建目录失败 [%s]: %w", dir, err)
	}
	return nil
}

// SaveJSON 以缩进格式写入JSON(先写临时文件再改名)
func SaveJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化失败 [%s]: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败 [%s]: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("写入失败 [%s]: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("写入失败 [%s]: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("重命名失败 [%s]: %w", path, err)
	}
	return nil
}

// SaveBook 写入 meta.json、toc.json,目录非空时再写 chapters.json
func (s *BookStore) SaveBook(meta models.BookMeta, toc []models.ChapterRef) error {
	dir := s.BookDir(meta.Slug)
	if err := EnsureDir(dir); err != nil {
		return err
	}
	if toc == nil {
		toc = []models.ChapterRef{}
	}
	if err := SaveJSON(filepath.Join(dir, "meta.json"), meta); err != nil {
		return err
	}
	if err := SaveJSON(filepath.Join(dir, "toc.json"), toc); err != nil {
		return err
	}
	if len(toc) == 0 {
		return nil
	}
	return SaveJSON(filepath.Join(dir, "chapters.json"), models.NewChaptersIndex(toc))
}

// ExistingPrefixes 已有的有效章节文件前缀(零填充章节号)
func (s *BookStore) ExistingPrefixes(slug string) (map[string]bool, error) {
	dir := s.ChapterDir(slug)
	if err := EnsureDir(dir); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取章节目录失败 [%s]: %w", dir, err)
	}

	prefixes := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() <= minChapterBytes {
			continue
		}
		prefix, _, _ := strings.Cut(e.Name(), "-")
		prefixes[prefix] = true
	}
	return prefixes, nil
}

// SaveChapter 写入章节正文,段落之间用换行连接
func (s *BookStore) SaveChapter(slug string, no int, paras []string) (string, error) {
	if len(paras) == 0 {
		return "", ErrEmptyChapter
	}
	path := s.ChapterPath(slug, no)
	if err := writeFileAtomic(path, []byte(strings.Join(paras, "\n"))); err != nil {
		return "", err
	}
	return path, nil
}
