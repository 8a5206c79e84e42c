package crawlers

import (
	"fmt"
	"sync"
)

// WorkerKey 工作者标识,每个标识独占一个会话
type WorkerKey string

// CategoryWorker 分类页翻页使用的会话,翻页在编排器中顺序进行
const CategoryWorker WorkerKey = "category"

// BookWorker 书籍层第 i 个工作者
func BookWorker(i int) WorkerKey {
	return WorkerKey(fmt.Sprintf("book-%d", i))
}

// ChapterWorker 书籍工作者 book 名下第 i 个章节工作者
func ChapterWorker(book WorkerKey, i int) WorkerKey {
	return WorkerKey(fmt.Sprintf("%s/chapter-%d", book, i))
}

// SessionFactory 创建新会话
type SessionFactory func() Session

// SessionPool 按工作者标识惰性创建并复用会话
// 会话不在工作者之间共享;限速器和代理池由工厂注入,所有会话共用
type SessionPool struct {
	mu       sync.Mutex
	sessions map[WorkerKey]Session
	factory  SessionFactory
}

// NewSessionPool 创建会话池
func NewSessionPool(factory SessionFactory) *SessionPool {
	return &SessionPool{
		sessions: make(map[WorkerKey]Session),
		factory:  factory,
	}
}

// Get 取得工作者的会话,首次调用时创建
func (p *SessionPool) Get(key WorkerKey) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.sessions[key]; ok {
		return s, nil
	}
	if p.factory == nil {
		return nil, ErrNoSession
	}
	s := p.factory()
	if s == nil {
		return nil, ErrNoSession
	}
	p.sessions[key] = s
	return s, nil
}

// Len 已创建的会话数
func (p *SessionPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
