// Package crawlers 提供小说站点的抓取层:会话、重试、分页与单书流水线
//
// # 概述
//
// 每个工作者独占一个基于 colly 的 HTTP 会话,所有会话共享同一个限速器和代理池。
// 抓取结果先经过错误页检测,空内容、传输错误和反爬页面统一按失败重试。
//
// # 核心组件
//
// ## CollySession / SessionPool
//
// CollySession 每次请求从基础 collector 克隆,克隆体共用同一个连接池。
// 传输层负责 br/deflate 解压,正文按 Content-Type 或 <meta> 声明转为UTF-8(GBK 站点)。
//
//	pool := NewSessionPool(func() Session {
//	    return NewCollySession(SessionOptions{Timeout: 20 * time.Second, Limiter: limiter, Proxies: proxies})
//	})
//	s, err := pool.Get(BookWorker(0))
//
// ## Retrier
//
// 最多尝试 tries 次,两次尝试之间等待 baseSleep*第几次 + U(0.2,0.9) 秒,配置了UA池时随机换UA。
// 全部失败时返回最后一次拿到的页面,由调用方按软失败处理:
//
//	res := retrier.Fetch(ctx, s, url, 3, 1.2)
//	if !res.OK { /* 软失败 */ }
//
// ## ProxyPool
//
// 连续失败达到阈值(默认2次)的代理冷却60秒;全部冷却时直连。
//
// ## 分页
//
// FindNextPage 按 分页条next > rel=next > active后一项 > ">"链接 的顺序寻找下一页;
// 找不到时 EnumerateTemplatePages 按四种URL模板从第2页开始穷举,
// 某一页四种模板都没有新书即停止。
//
// ## BookPipeline
//
// 详情页 -> 元数据 -> 封面 -> 目录 -> 落盘 -> 并发抓章节 -> 失败章节按轮重试。
// 已存在且大于10字节的章节文件会被跳过,重复运行不会重写任何章节。
//
// ## RunPool / ResourceMonitor
//
// RunPool 用带编号的工作者并发处理任务,同一编号同一时刻只被一个任务占用,
// 任务据此取得自己独占的会话。ResourceMonitor 在章节并发展开前按可用内存和CPU负载收紧并发数:
//   - 可用内存 < 200MB: 降为1
//   - 可用内存 < 300MB: 减半
//   - CPU 超过阈值: 再减半
//
// # 并发安全
//
//   - SessionPool / ProxyPool / RetryQueue: sync.Mutex
//   - 限速器: golang.org/x/time/rate,本身并发安全
//   - 单个 Session 不在工作者之间共享
package crawlers
