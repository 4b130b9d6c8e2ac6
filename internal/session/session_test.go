package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/internal/bridge"
	"github.com/splusoficial/savvy-clinic-connect/internal/identity"
)

// ── Mock identity.Auth ──

type mockAuth struct {
	verifyResult  *identity.Session
	verifyErr     error
	verifyCalls   int
	refreshResult *identity.Session
	refreshErr    error
	refreshCalls  int
	lastRefresh   string
}

func (m *mockAuth) VerifyOTP(_ context.Context, _, _ string) (*identity.Session, error) {
	m.verifyCalls++
	return m.verifyResult, m.verifyErr
}

func (m *mockAuth) RefreshSession(_ context.Context, refreshToken string) (*identity.Session, error) {
	m.refreshCalls++
	m.lastRefresh = refreshToken
	return m.refreshResult, m.refreshErr
}

func newTestBridge() *bridge.Bridge {
	return bridge.New([]bridge.Backend{bridge.NewMemoryBackend()}, 0, zap.NewNop())
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("签发测试令牌失败: %v", err)
	}
	return s
}

func TestStore_Init_AdoptsValidExistingSession(t *testing.T) {
	auth := &mockAuth{}
	br := newTestBridge()
	store := NewStore(auth, br, zap.NewNop())

	existing := &identity.Session{
		AccessToken:  signedToken(t, time.Now().Add(time.Hour)),
		RefreshToken: "rt-1",
	}
	if !store.Init(context.Background(), existing) {
		t.Fatal("有效会话在场时 Init 应返回 true")
	}
	if auth.refreshCalls != 0 {
		t.Errorf("不应走刷新路径，refreshCalls=%d", auth.refreshCalls)
	}

	// 备份应已刷新
	var backup bridge.AuthBackup
	if !br.Read(bridge.KeyAuthBackup, &backup) {
		t.Fatal("Init 后桥中应有备份")
	}
	if backup.RefreshToken != "rt-1" {
		t.Errorf("备份 refresh_token 不符: %q", backup.RefreshToken)
	}
}

func TestStore_Init_ResurrectsFromBackup(t *testing.T) {
	auth := &mockAuth{
		refreshResult: &identity.Session{AccessToken: "new-at", RefreshToken: "new-rt"},
	}
	br := newTestBridge()
	br.Write(bridge.KeyAuthBackup, bridge.AuthBackup{AccessToken: "stale", RefreshToken: "old-rt"})

	store := NewStore(auth, br, zap.NewNop())
	if !store.Init(context.Background(), nil) {
		t.Fatal("备份可用时 Init 应返回 true")
	}
	if auth.lastRefresh != "old-rt" {
		t.Errorf("应以备份的 refresh_token 刷新，实际=%q", auth.lastRefresh)
	}
	if got := store.Current(); got == nil || got.AccessToken != "new-at" {
		t.Errorf("当前会话应为刷新结果: %+v", got)
	}

	// 复活成功后备份应更新为新令牌
	var backup bridge.AuthBackup
	if !br.Read(bridge.KeyAuthBackup, &backup) {
		t.Fatal("复活后桥中应有新备份")
	}
	if backup.RefreshToken != "new-rt" {
		t.Errorf("备份应为新 refresh_token，实际=%q", backup.RefreshToken)
	}
}

func TestStore_Init_ClearsDeadBackup(t *testing.T) {
	auth := &mockAuth{refreshErr: errors.New("invalid grant")}
	br := newTestBridge()
	br.Write(bridge.KeyAuthBackup, bridge.AuthBackup{RefreshToken: "dead-rt"})

	store := NewStore(auth, br, zap.NewNop())
	if store.Init(context.Background(), nil) {
		t.Fatal("备份失效时 Init 应返回 false")
	}

	var backup bridge.AuthBackup
	if br.Read(bridge.KeyAuthBackup, &backup) {
		t.Error("失效备份应被清除")
	}
}

func TestStore_Init_NoSessionNoBackup(t *testing.T) {
	auth := &mockAuth{}
	store := NewStore(auth, newTestBridge(), zap.NewNop())

	if store.Init(context.Background(), nil) {
		t.Error("无会话无备份时 Init 应返回 false")
	}
	if store.Current() != nil {
		t.Error("当前会话应为 nil")
	}
}

func TestStore_Establish_WritesBackup(t *testing.T) {
	auth := &mockAuth{
		verifyResult: &identity.Session{AccessToken: "at", RefreshToken: "rt"},
	}
	br := newTestBridge()
	store := NewStore(auth, br, zap.NewNop())

	sess, err := store.Establish(context.Background(), "dra@clinica.com", "123456")
	if err != nil {
		t.Fatalf("Establish 应成功: %v", err)
	}
	if sess.AccessToken != "at" {
		t.Errorf("会话不符: %+v", sess)
	}

	var backup bridge.AuthBackup
	if !br.Read(bridge.KeyAuthBackup, &backup) {
		t.Fatal("登录后桥中应有备份")
	}
}

func TestStore_Establish_VerifyRejected(t *testing.T) {
	auth := &mockAuth{verifyErr: identity.ErrOTPRejected}
	store := NewStore(auth, newTestBridge(), zap.NewNop())

	if _, err := store.Establish(context.Background(), "dra@clinica.com", "000000"); !errors.Is(err, identity.ErrOTPRejected) {
		t.Errorf("期望 ErrOTPRejected，实际=%v", err)
	}
	if store.Current() != nil {
		t.Error("校验失败不应持有会话")
	}
}

func TestStore_SignOut_ClearsEverything(t *testing.T) {
	auth := &mockAuth{
		verifyResult: &identity.Session{AccessToken: "at", RefreshToken: "rt"},
	}
	br := newTestBridge()
	store := NewStore(auth, br, zap.NewNop())

	if _, err := store.Establish(context.Background(), "dra@clinica.com", "123456"); err != nil {
		t.Fatalf("Establish 应成功: %v", err)
	}
	store.SignOut()

	if store.Current() != nil {
		t.Error("登出后当前会话应为 nil")
	}
	var backup bridge.AuthBackup
	if br.Read(bridge.KeyAuthBackup, &backup) {
		t.Error("登出后备份应被清除")
	}
}

func TestTokenExpired(t *testing.T) {
	if tokenExpired(signedToken(t, time.Now().Add(time.Hour))) {
		t.Error("未过期令牌不应判为过期")
	}
	if !tokenExpired(signedToken(t, time.Now().Add(-time.Hour))) {
		t.Error("过期令牌应判为过期")
	}
	if !tokenExpired("") {
		t.Error("空令牌应判为过期")
	}
	if !tokenExpired("not-a-jwt") {
		t.Error("畸形令牌应判为过期")
	}
}
