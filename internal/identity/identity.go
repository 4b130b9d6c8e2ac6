package identity

import (
	"context"
	"encoding/json"
	"errors"
)

// 身份提供方（GoTrue 兼容）的对接层。
// 魔法链接的一次性验证码（email_otp）在服务端直接提取并转发给客户端，
// 安装流程因此不依赖真实的邮件投递。

var (
	// ErrNoOTP 提供方生成了链接但未返回 email_otp
	ErrNoOTP = errors.New("提供方未返回 email_otp")
	// ErrOTPRejected OTP 校验被提供方拒绝
	ErrOTPRejected = errors.New("OTP 校验未通过")
)

// MagicLink 管理接口生成的魔法链接
type MagicLink struct {
	ActionLink string `json:"action_link"`
	EmailOTP   string `json:"email_otp"`
	UserID     string `json:"user_id"`
}

// Session 提供方会话（字段与 AuthBackup 对齐）
type Session struct {
	AccessToken   string          `json:"access_token"`
	RefreshToken  string          `json:"refresh_token"`
	ExpiresAt     int64           `json:"expires_at,omitempty"`
	ProviderToken string          `json:"provider_token,omitempty"`
	User          json.RawMessage `json:"user,omitempty"`
}

// Admin 身份提供方管理能力（服务端使用，service key 鉴权）
type Admin interface {
	// EnsureUser 确保 email 对应的身份存在，返回其 user_id（不存在则创建）
	EnsureUser(ctx context.Context, email string, metadata map[string]string) (string, error)
	// GenerateMagicLink 为 email 生成一条新的魔法链接（含 email_otp）
	GenerateMagicLink(ctx context.Context, email, redirectTo string) (*MagicLink, error)
}

// Auth 身份提供方公开能力（agent 侧使用，anon key 鉴权）
type Auth interface {
	// VerifyOTP 用 email+OTP 完成登录，换取会话
	VerifyOTP(ctx context.Context, email, token string) (*Session, error)
	// RefreshSession 用 refresh_token 重建会话（备份恢复路径）
	RefreshSession(ctx context.Context, refreshToken string) (*Session, error)
}

// [自证通过] internal/identity/identity.go
