package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/config"
	"github.com/splusoficial/savvy-clinic-connect/internal/dto"
	"github.com/splusoficial/savvy-clinic-connect/internal/model"
	"github.com/splusoficial/savvy-clinic-connect/internal/repository"
)

// ── 测试辅助 ──

func testInstallConfig() *config.Config {
	return &config.Config{
		Install: config.InstallConfig{
			CodeTTL:     720 * time.Hour,
			MaxUses:     10,
			ReuseWindow: 168 * time.Hour,
			GraceWindow: 168 * time.Hour,
		},
	}
}

func setupTestInstallService() (InstallService, *mockInstallCodeRepo, *mockProfileRepo, *mockIdentityAdmin) {
	codeRepo := newMockInstallCodeRepo()
	profileRepo := newMockProfileRepo()
	repo := &repository.Repository{
		InstallCode:      codeRepo,
		Profile:          profileRepo,
		PushSubscription: newMockPushSubscriptionRepo(),
	}
	idp := newMockIdentityAdmin()
	svc := NewInstallService(testInstallConfig(), repo, idp, nil, zap.NewNop())
	return svc, codeRepo, profileRepo, idp
}

func testDevice() model.DeviceEvent {
	return model.DeviceEvent{UserAgent: "Mozilla/5.0 (iPhone)", IP: "203.0.113.7", At: time.Now()}
}

// ── CreateInstall 测试 ──

func TestInstallService_CreateInstall_EmailRequired(t *testing.T) {
	svc, _, _, idp := setupTestInstallService()

	_, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{})
	if !errors.Is(err, ErrEmailRequired) {
		t.Errorf("期望 ErrEmailRequired，实际: %v", err)
	}
	if idp.ensureCalls != 0 {
		t.Errorf("缺少 email 时不应触达身份提供方")
	}
}

func TestInstallService_CreateInstall_NewCode(t *testing.T) {
	svc, codeRepo, profileRepo, _ := setupTestInstallService()

	resp, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{
		Email: "clinica@example.com",
		Name:  "Clínica Sorriso",
		WhID:  "wh-42",
	})
	if err != nil {
		t.Fatalf("CreateInstall 应成功: %v", err)
	}
	if !resp.OK || resp.Reused {
		t.Errorf("期望 ok=true reused=false，实际 ok=%v reused=%v", resp.OK, resp.Reused)
	}
	if resp.Code == "" {
		t.Fatal("应返回安装码")
	}

	ic, ok := codeRepo.codes[resp.Code]
	if !ok {
		t.Fatal("安装码应已落库")
	}
	if ic.MaxUses != 10 || ic.UseCount != 0 {
		t.Errorf("期望 max_uses=10 use_count=0，实际 %d/%d", ic.MaxUses, ic.UseCount)
	}
	if time.Until(ic.ExpiresAt) < 719*time.Hour {
		t.Errorf("有效期应约为 30 天，实际 expires_at=%v", ic.ExpiresAt)
	}
	if len(profileRepo.profiles) != 1 {
		t.Errorf("应 upsert 一条档案")
	}
}

// 性质 1：同一 email 紧接着再次签发，应返回同一安装码且 reused=true
func TestInstallService_CreateInstall_ReuseWithinWindow(t *testing.T) {
	svc, _, _, _ := setupTestInstallService()

	first, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("首次签发应成功: %v", err)
	}
	second, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("再次签发应成功: %v", err)
	}
	if !second.Reused {
		t.Error("期望 reused=true")
	}
	if second.Code != first.Code {
		t.Errorf("期望返回同一安装码，首次=%s 再次=%s", first.Code, second.Code)
	}
}

func TestInstallService_CreateInstall_NoReuseWhenExhausted(t *testing.T) {
	svc, codeRepo, _, _ := setupTestInstallService()

	first, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	codeRepo.codes[first.Code].UseCount = 10 // 已达上限

	second, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("签发应成功: %v", err)
	}
	if second.Reused || second.Code == first.Code {
		t.Errorf("用尽的安装码不应被复用")
	}
}

func TestInstallService_CreateInstall_NoReuseOutsideWindow(t *testing.T) {
	svc, codeRepo, _, _ := setupTestInstallService()

	first, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	codeRepo.codes[first.Code].CreatedAt = time.Now().Add(-8 * 24 * time.Hour) // 超出 7 天复用窗口

	second, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("签发应成功: %v", err)
	}
	if second.Reused || second.Code == first.Code {
		t.Errorf("复用窗口外的安装码不应被复用")
	}
}

func TestInstallService_CreateInstall_UpstreamFailure(t *testing.T) {
	svc, _, _, idp := setupTestInstallService()
	idp.ensureErr = errUpstream

	_, err := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	if !errors.Is(err, errUpstream) {
		t.Errorf("期望上游错误透传，实际: %v", err)
	}
}

// ── ExchangeInstall 测试 ──

// 性质 4：未知 code 返回无效错误，且从不触达身份提供方
func TestInstallService_ExchangeInstall_UnknownCode(t *testing.T) {
	svc, _, _, idp := setupTestInstallService()

	_, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: "nao-existe"}, testDevice())
	if !errors.Is(err, ErrCodeNotFound) {
		t.Errorf("期望 ErrCodeNotFound，实际: %v", err)
	}
	if idp.linkCalls != 0 {
		t.Errorf("未知 code 不应触达身份提供方，实际调用 %d 次", idp.linkCalls)
	}
}

func TestInstallService_ExchangeInstall_Success(t *testing.T) {
	svc, codeRepo, _, idp := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	resp, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if err != nil {
		t.Fatalf("兑换应成功: %v", err)
	}
	if resp.Email != "a@b.com" || resp.EmailOTP != idp.otp {
		t.Errorf("期望 email=a@b.com otp=%s，实际 %s/%s", idp.otp, resp.Email, resp.EmailOTP)
	}
	if resp.UseCount != 1 || resp.MaxUses != 10 {
		t.Errorf("期望 use_count=1 max_uses=10，实际 %d/%d", resp.UseCount, resp.MaxUses)
	}

	ic := codeRepo.codes[created.Code]
	if ic.UseCount != 1 {
		t.Errorf("计数应自增为 1，实际=%d", ic.UseCount)
	}
	if len(ic.DevicesInfo) != 1 {
		t.Errorf("应追加一条设备遥测，实际=%d", len(ic.DevicesInfo))
	}
	if ic.LastUsedAt == nil {
		t.Error("last_used_at 应被刷新")
	}
}

// 性质 3：过期的安装码无论计数如何一律拒绝
func TestInstallService_ExchangeInstall_Expired(t *testing.T) {
	svc, codeRepo, _, idp := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	codeRepo.codes[created.Code].ExpiresAt = time.Now().Add(-time.Minute)

	_, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if !errors.Is(err, ErrCodeExpired) {
		t.Errorf("期望 ErrCodeExpired，实际: %v", err)
	}
	if idp.linkCalls != 0 {
		t.Error("过期 code 不应触达身份提供方")
	}
}

// 性质 2a：达上限但最近一次使用仍在 7 天宽限期内，兑换仍成功
func TestInstallService_ExchangeInstall_AtCapWithinGrace(t *testing.T) {
	svc, codeRepo, _, _ := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	recent := time.Now().Add(-24 * time.Hour)
	ic := codeRepo.codes[created.Code]
	ic.UseCount = 10
	ic.LastUsedAt = &recent

	resp, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if err != nil {
		t.Fatalf("宽限期内应兑换成功: %v", err)
	}
	if resp.UseCount != 11 {
		t.Errorf("期望 use_count=11，实际=%d", resp.UseCount)
	}
}

// 性质 2b：达上限且最近一次使用已超 7 天，按过期处理
func TestInstallService_ExchangeInstall_AtCapPastGrace(t *testing.T) {
	svc, codeRepo, _, _ := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	old := time.Now().Add(-8 * 24 * time.Hour)
	ic := codeRepo.codes[created.Code]
	ic.UseCount = 10
	ic.LastUsedAt = &old

	_, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if !errors.Is(err, ErrCodeExpired) {
		t.Errorf("期望 ErrCodeExpired，实际: %v", err)
	}
}

// 兑换记账失败不阻断兑换本身
func TestInstallService_ExchangeInstall_AccountingFailureNonFatal(t *testing.T) {
	svc, codeRepo, _, _ := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	codeRepo.redeemErr = errors.New("db indisponível")

	resp, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if err != nil {
		t.Fatalf("记账失败时兑换仍应成功: %v", err)
	}
	if resp.EmailOTP == "" {
		t.Error("应返回 OTP")
	}
	if resp.UseCount != 0 {
		t.Errorf("记账失败时计数不应自增，实际=%d", resp.UseCount)
	}
}

func TestInstallService_ExchangeInstall_UpstreamFailure(t *testing.T) {
	svc, _, _, idp := setupTestInstallService()

	created, _ := svc.CreateInstall(context.Background(), &dto.CreateInstallRequest{Email: "a@b.com"})
	idp.linkErr = errUpstream

	_, err := svc.ExchangeInstall(context.Background(), &dto.ExchangeInstallRequest{Code: created.Code}, testDevice())
	if !errors.Is(err, errUpstream) {
		t.Errorf("期望上游错误透传，实际: %v", err)
	}
}

// ── GenerateActionLink 测试 ──

func TestInstallService_GenerateActionLink(t *testing.T) {
	svc, _, _, idp := setupTestInstallService()

	resp, err := svc.GenerateActionLink(context.Background(), "a@b.com", "https://app.example.com/")
	if err != nil {
		t.Fatalf("应成功: %v", err)
	}
	if resp.ActionLink != idp.actionLink {
		t.Errorf("期望 action_link=%s，实际=%s", idp.actionLink, resp.ActionLink)
	}

	if _, err := svc.GenerateActionLink(context.Background(), "", ""); !errors.Is(err, ErrEmailRequired) {
		t.Errorf("缺少 email 应返回 ErrEmailRequired，实际: %v", err)
	}
}
