package bridge

import (
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
)

// failingBackend 始终失败的后端，模拟平台禁用某类存储
type failingBackend struct{}

func (failingBackend) Name() string                { return "failing" }
func (failingBackend) Write(string, []byte) error  { return errors.New("storage disabled") }
func (failingBackend) Read(string) ([]byte, error) { return nil, errors.New("storage disabled") }
func (failingBackend) Clear(string) error          { return errors.New("storage disabled") }

func newTestBridge(backends ...Backend) *Bridge {
	return New(backends, 90*24*time.Hour, zap.NewNop())
}

func TestBridge_WriteThenRead_Roundtrip(t *testing.T) {
	b := newTestBridge(NewMemoryBackend(), NewMemoryBackend())

	rec := InstallCodeRecord{Code: "abc-123", TS: time.Now().UnixMilli()}
	b.Write(KeyInstallCode, rec)

	var got InstallCodeRecord
	if !b.Read(KeyInstallCode, &got) {
		t.Fatal("写入后读取应命中")
	}
	if got.Code != rec.Code || got.TS != rec.TS {
		t.Errorf("往返不一致: 期望=%+v 实际=%+v", rec, got)
	}
}

func TestBridge_Read_FallsThroughToLowerPriority(t *testing.T) {
	// 最高优先级后端不可用，读取应降级到下一后端
	healthy := NewMemoryBackend()
	b := newTestBridge(failingBackend{}, healthy)

	rec := InstallCodeRecord{Code: "fallback-code", TS: time.Now().UnixMilli()}
	b.Write(KeyInstallCode, rec)

	var got InstallCodeRecord
	if !b.Read(KeyInstallCode, &got) {
		t.Fatal("次优先级后端有副本时读取应命中")
	}
	if got.Code != "fallback-code" {
		t.Errorf("期望 fallback-code，实际=%q", got.Code)
	}
}

func TestBridge_Write_SwallowsBackendFailure(t *testing.T) {
	healthy := NewMemoryBackend()
	b := newTestBridge(failingBackend{}, healthy)

	// 写入不因单后端失败而中断，健康后端仍应落盘
	b.Write(KeyAuthBackup, AuthBackup{AccessToken: "at", RefreshToken: "rt"})

	var got AuthBackup
	if !b.Read(KeyAuthBackup, &got) {
		t.Fatal("健康后端应保有副本")
	}
	if got.AccessToken != "at" {
		t.Errorf("期望 access_token=at，实际=%q", got.AccessToken)
	}
}

func TestBridge_Read_SkipsExpiredRecord(t *testing.T) {
	be := NewMemoryBackend()
	b := newTestBridge(be)

	b.Write(KeyInstallCode, InstallCodeRecord{Code: "old"})

	// 把时钟拨快超过年龄上限
	b.now = func() time.Time { return time.Now().Add(91 * 24 * time.Hour) }

	var got InstallCodeRecord
	if b.Read(KeyInstallCode, &got) {
		t.Error("过龄记录不应命中")
	}
}

func TestBridge_Read_Miss(t *testing.T) {
	b := newTestBridge(NewMemoryBackend())

	var got InstallCodeRecord
	if b.Read(KeyInstallCode, &got) {
		t.Error("空桥读取不应命中")
	}
}

func TestBridge_Clear_RemovesAllCopies(t *testing.T) {
	be1, be2 := NewMemoryBackend(), NewMemoryBackend()
	b := newTestBridge(be1, be2)

	b.Write(KeyInstallCode, InstallCodeRecord{Code: "x"})
	b.Clear(KeyInstallCode)

	var got InstallCodeRecord
	if b.Read(KeyInstallCode, &got) {
		t.Error("清除后不应命中")
	}
}

func TestCacheFileBackend_ConsumeOnRead(t *testing.T) {
	be, err := NewCacheFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("创建缓存后端失败: %v", err)
	}

	if err := be.Write("k", []byte("v")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	data, err := be.Read("k")
	if err != nil || string(data) != "v" {
		t.Fatalf("首次读取应命中: data=%q err=%v", data, err)
	}

	// 消费语义：命中即删除
	if _, err := be.Read("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("二次读取应 ErrNotFound，实际=%v", err)
	}
}

func TestCookieJarBackend_ExpiryHonored(t *testing.T) {
	be := NewCookieJarBackend(t.TempDir(), -time.Second) // 写入即过期

	if err := be.Write("k", []byte("v")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	if _, err := be.Read("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("过期记录应 ErrNotFound，实际=%v", err)
	}
}

func TestKVFileBackend_Roundtrip(t *testing.T) {
	be := NewKVFileBackend(t.TempDir())

	if err := be.Write("k", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	data, err := be.Read("k")
	if err != nil || string(data) != `{"a":1}` {
		t.Errorf("往返不一致: data=%q err=%v", data, err)
	}

	if err := be.Clear("k"); err != nil {
		t.Fatalf("清除失败: %v", err)
	}
	if _, err := be.Read("k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("清除后应 ErrNotFound，实际=%v", err)
	}
}

func TestSQLiteBackend_Roundtrip(t *testing.T) {
	be, err := NewSQLiteBackend(t.TempDir())
	if err != nil {
		t.Fatalf("创建数据库后端失败: %v", err)
	}

	if err := be.Write("k", []byte("v1")); err != nil {
		t.Fatalf("写入失败: %v", err)
	}
	// 覆盖写
	if err := be.Write("k", []byte("v2")); err != nil {
		t.Fatalf("覆盖写失败: %v", err)
	}
	data, err := be.Read("k")
	if err != nil || string(data) != "v2" {
		t.Errorf("期望 v2，实际 data=%q err=%v", data, err)
	}
}
