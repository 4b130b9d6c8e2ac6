package service

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/splusoficial/savvy-clinic-connect/internal/identity"
	"github.com/splusoficial/savvy-clinic-connect/internal/model"
	pkgerrors "github.com/splusoficial/savvy-clinic-connect/pkg/errors"
)

// ── Mock InstallCodeRepository ──

type mockInstallCodeRepo struct {
	codes     map[string]*model.InstallCode
	redeemErr error
}

func newMockInstallCodeRepo() *mockInstallCodeRepo {
	return &mockInstallCodeRepo{codes: make(map[string]*model.InstallCode)}
}

func (m *mockInstallCodeRepo) Create(_ context.Context, code *model.InstallCode) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now()
	}
	cp := *code
	m.codes[code.Code] = &cp
	return nil
}

func (m *mockInstallCodeRepo) GetByCode(_ context.Context, code string) (*model.InstallCode, error) {
	if ic, ok := m.codes[code]; ok {
		cp := *ic
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockInstallCodeRepo) FindLatest(_ context.Context, userID, email string) (*model.InstallCode, error) {
	var latest *model.InstallCode
	for _, ic := range m.codes {
		if ic.UserID != userID || ic.Email != email {
			continue
		}
		if latest == nil || ic.CreatedAt.After(latest.CreatedAt) {
			latest = ic
		}
	}
	if latest == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *latest
	return &cp, nil
}

func (m *mockInstallCodeRepo) TouchMetadata(_ context.Context, code string, metadata model.JSONMap) error {
	if ic, ok := m.codes[code]; ok {
		ic.Metadata = metadata
		return nil
	}
	return gorm.ErrRecordNotFound
}

// Redeem 模拟条件更新：守卫判定与计数自增同库内行为一致
func (m *mockInstallCodeRepo) Redeem(_ context.Context, code string, now time.Time, grace time.Duration, event model.DeviceEvent) error {
	if m.redeemErr != nil {
		return m.redeemErr
	}
	ic, ok := m.codes[code]
	if !ok {
		return pkgerrors.ErrOptimisticLock
	}
	if !ic.Redeemable(now, grace) {
		return pkgerrors.ErrOptimisticLock
	}
	ic.UseCount++
	ic.UsedAt = &now
	ic.LastUsedAt = &now
	ic.DevicesInfo = append(ic.DevicesInfo, event)
	return nil
}

func (m *mockInstallCodeRepo) List(_ context.Context) ([]model.InstallCode, error) {
	var result []model.InstallCode
	for _, ic := range m.codes {
		result = append(result, *ic)
	}
	return result, nil
}

// ── Mock ProfileRepository ──

type mockProfileRepo struct {
	profiles  map[string]*model.Profile
	upsertErr error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (m *mockProfileRepo) Upsert(_ context.Context, profile *model.Profile) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.profiles[profile.UserID] = profile
	return nil
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID string) (*model.Profile, error) {
	if p, ok := m.profiles[userID]; ok {
		return p, nil
	}
	return nil, gorm.ErrRecordNotFound
}

// ── Mock PushSubscriptionRepository ──

type mockPushSubscriptionRepo struct {
	subs      map[string]*model.PushSubscription
	upsertErr error
}

func newMockPushSubscriptionRepo() *mockPushSubscriptionRepo {
	return &mockPushSubscriptionRepo{subs: make(map[string]*model.PushSubscription)}
}

func (m *mockPushSubscriptionRepo) Upsert(_ context.Context, sub *model.PushSubscription) error {
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.subs[sub.OneSignalPlayerID] = sub
	return nil
}

func (m *mockPushSubscriptionRepo) ListByUser(_ context.Context, userID string) ([]model.PushSubscription, error) {
	var result []model.PushSubscription
	for _, s := range m.subs {
		if s.UserID == userID {
			result = append(result, *s)
		}
	}
	return result, nil
}

// ── Mock identity.Admin ──

var errUpstream = errors.New("提供方不可用")

type mockIdentityAdmin struct {
	userID       string
	ensureErr    error
	ensureCalls  int
	otp          string
	actionLink   string
	linkErr      error
	linkCalls    int
	lastLinkMail string
}

func newMockIdentityAdmin() *mockIdentityAdmin {
	return &mockIdentityAdmin{
		userID:     "11111111-1111-1111-1111-111111111111",
		otp:        "123456",
		actionLink: "https://auth.example.com/verify?token=abc",
	}
}

func (m *mockIdentityAdmin) EnsureUser(_ context.Context, email string, _ map[string]string) (string, error) {
	m.ensureCalls++
	if m.ensureErr != nil {
		return "", m.ensureErr
	}
	return m.userID, nil
}

func (m *mockIdentityAdmin) GenerateMagicLink(_ context.Context, email, _ string) (*identity.MagicLink, error) {
	m.linkCalls++
	m.lastLinkMail = email
	if m.linkErr != nil {
		return nil, m.linkErr
	}
	return &identity.MagicLink{ActionLink: m.actionLink, EmailOTP: m.otp, UserID: m.userID}, nil
}
