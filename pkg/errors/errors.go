package errors

import "errors"

// ErrOptimisticLock 条件更新未命中：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTimeout 轮询等待超时
var ErrTimeout = errors.New("等待超时")
