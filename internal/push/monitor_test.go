package push

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

// ── Mock SDK ──

type mockSDK struct {
	mu     sync.Mutex
	state  State
	err    error
	events chan struct{}
}

func newMockSDK() *mockSDK {
	return &mockSDK{events: make(chan struct{}, 1)}
}

func (m *mockSDK) State(_ context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.err
}

func (m *mockSDK) Events() <-chan struct{} {
	return m.events
}

func (m *mockSDK) set(st State) {
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()
}

var (
	stateEnabled  = State{PermissionGranted: true, OptedIn: true, SubscriptionID: "sub-1"}
	stateDisabled = State{}
)

func TestMonitor_NeverEnabled_ReportsDisabledImmediately(t *testing.T) {
	m := NewMonitor(newMockSDK(), zap.NewNop())

	if m.Observe(stateDisabled) {
		t.Error("从未启用过时应立即报告禁用")
	}
}

func TestMonitor_EnabledImmediatelyOnAgreement(t *testing.T) {
	m := NewMonitor(newMockSDK(), zap.NewNop())

	if !m.Observe(stateEnabled) {
		t.Error("三信号齐备时应立即报告启用")
	}
}

func TestMonitor_HysteresisHoldsThroughFourDisagreements(t *testing.T) {
	m := NewMonitor(newMockSDK(), zap.NewNop())
	m.Observe(stateEnabled)

	// 连续 4 次不一致观测不应翻转
	for i := 0; i < 4; i++ {
		if !m.Observe(stateDisabled) {
			t.Fatalf("第 %d 次不一致观测就翻转了", i+1)
		}
	}
	// 第 5 次才翻转
	if m.Observe(stateDisabled) {
		t.Error("第 5 次不一致观测后应翻转为禁用")
	}
}

func TestMonitor_AgreementResetsDisagreementCount(t *testing.T) {
	m := NewMonitor(newMockSDK(), zap.NewNop())
	m.Observe(stateEnabled)

	for i := 0; i < 4; i++ {
		m.Observe(stateDisabled)
	}
	// 一次一致观测清零计数
	m.Observe(stateEnabled)

	for i := 0; i < 4; i++ {
		if !m.Observe(stateDisabled) {
			t.Fatal("计数清零后 4 次不一致不应翻转")
		}
	}
}

func TestMonitor_PartialSignalsCountAsDisabled(t *testing.T) {
	m := NewMonitor(newMockSDK(), zap.NewNop())

	// 权限给了但无订阅 ID，不算启用
	if m.Observe(State{PermissionGranted: true, OptedIn: true}) {
		t.Error("缺订阅 ID 不应算启用")
	}
	if m.Observe(State{PermissionGranted: true, SubscriptionID: "sub-1"}) {
		t.Error("未 opt-in 不应算启用")
	}
}

func TestMonitor_Run_ObservesOnEvent(t *testing.T) {
	sdk := newMockSDK()
	sdk.set(stateEnabled)
	m := NewMonitor(sdk, zap.NewNop())
	m.interval = time.Hour // 排除定时器干扰

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	sdk.events <- struct{}{}

	deadline := time.After(2 * time.Second)
	for !m.Enabled() {
		select {
		case <-deadline:
			t.Fatal("事件触发的观测未生效")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestMonitor_Run_SwallowsSDKErrors(t *testing.T) {
	sdk := newMockSDK()
	sdk.set(stateEnabled)
	m := NewMonitor(sdk, zap.NewNop())
	m.Observe(stateEnabled)

	// SDK 读取失败不应计入不一致
	sdk.mu.Lock()
	sdk.err = errors.New("sdk not ready")
	sdk.mu.Unlock()
	for i := 0; i < 10; i++ {
		m.observeOnce(context.Background())
	}
	if !m.Enabled() {
		t.Error("SDK 错误不应翻转启用状态")
	}
}

func TestMonitor_WaitReady_Success(t *testing.T) {
	sdk := newMockSDK()
	m := NewMonitor(sdk, zap.NewNop())

	go func() {
		time.Sleep(50 * time.Millisecond)
		sdk.set(stateEnabled)
	}()

	if !m.WaitReady(context.Background(), 2*time.Second) {
		t.Error("SDK 就绪后 WaitReady 应成功")
	}
}

func TestMonitor_WaitReady_Timeout(t *testing.T) {
	sdk := newMockSDK() // 始终禁用
	m := NewMonitor(sdk, zap.NewNop())

	if m.WaitReady(context.Background(), 150*time.Millisecond) {
		t.Error("SDK 一直未就绪时 WaitReady 应超时")
	}
}
