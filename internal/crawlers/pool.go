package crawlers

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunPool 用至多 width 个带编号(0..width-1)的工作者处理 items
// 同一时刻每个编号只被一个任务占用,任务可据此取得自己独占的会话。
// fn 返回错误会取消尚未开始的任务并由 RunPool 返回;单个任务的可恢复失败应由 fn 自行记录后返回 nil
func RunPool[T any](ctx context.Context, width int, items []T, fn func(ctx context.Context, worker int, item T) error) error {
	if width < 1 {
		width = 1
	}
	if width > len(items) && len(items) > 0 {
		width = len(items)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(width)

	ids := make(chan int, width)
	for i := 0; i < width; i++ {
		ids <- i
	}

	for _, item := range items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			id := <-ids
			defer func() { ids <- id }()
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, id, item)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
