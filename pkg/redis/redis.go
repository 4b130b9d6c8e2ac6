package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/config"
)

// Client Redis 客户端封装
// 当前用于签发限流与 OTP 防重放；后续可扩展缓存等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 签发限流 ──

// CheckRateLimit 固定窗口限流：窗口内计数超过 limit 时拒绝
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	n, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		// 首次计数时设置窗口过期
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(limit), nil
}

// ── OTP 防重放 ──

const otpGuardPrefix = "otp:issued:"

// MarkOTPIssued 记录为某安装码新签发的 OTP，TTL 与 OTP 有效期一致
func (c *Client) MarkOTPIssued(ctx context.Context, code string, ttl time.Duration) error {
	return c.rdb.Set(ctx, otpGuardPrefix+code, time.Now().Unix(), ttl).Err()
}

// HasFreshOTP 检查某安装码是否存在尚未过期的 OTP（用于观测重放，不阻断兑换）
func (c *Client) HasFreshOTP(ctx context.Context, code string) (bool, error) {
	n, err := c.rdb.Exists(ctx, otpGuardPrefix+code).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}
