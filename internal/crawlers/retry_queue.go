package crawlers

import (
	"sort"
	"sync"
)

// ChapterTask 待抓取的章节
type ChapterTask struct {
	No   int
	Href string
}

// RetryQueue 失败章节队列
// 单本书的流水线内部使用;并发工作者通过 Push 记录失败,每轮开始前 Drain 取出全部
type RetryQueue struct {
	mu    sync.Mutex
	items []ChapterTask
	seen  map[int]bool // 按章节号去重
}

// NewRetryQueue 创建队列
func NewRetryQueue() *RetryQueue {
	return &RetryQueue{seen: make(map[int]bool)}
}

// Push 记录一个失败章节;同一章节号只记录一次
func (q *RetryQueue) Push(t ChapterTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.seen[t.No] {
		return
	}
	q.seen[t.No] = true
	q.items = append(q.items, t)
}

// Drain 取出全部失败章节(按章节号排序)并清空队列
func (q *RetryQueue) Drain() []ChapterTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.items
	q.items = nil
	q.seen = make(map[int]bool)
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out
}

// Len 当前失败章节数
func (q *RetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Numbers 当前失败章节号(升序)
func (q *RetryQueue) Numbers() []int {
	q.mu.Lock()
	defer q.mu.Unlock()
	nos := make([]int, 0, len(q.items))
	for _, t := range q.items {
		nos = append(nos, t.No)
	}
	sort.Ints(nos)
	return nos
}
