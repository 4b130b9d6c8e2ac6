package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/splusoficial/savvy-clinic-connect/config"
	"github.com/splusoficial/savvy-clinic-connect/internal/assetcache"
	"github.com/splusoficial/savvy-clinic-connect/internal/bridge"
	"github.com/splusoficial/savvy-clinic-connect/internal/dto"
	"github.com/splusoficial/savvy-clinic-connect/internal/identity"
	"github.com/splusoficial/savvy-clinic-connect/internal/push"
	"github.com/splusoficial/savvy-clinic-connect/internal/session"
	"github.com/splusoficial/savvy-clinic-connect/internal/setup"
	applogger "github.com/splusoficial/savvy-clinic-connect/pkg/logger"
)

// cookieTTL Cookie 罐副本的过期时长
const cookieTTL = 7 * 24 * time.Hour

// precachePaths 必备资源清单
var precachePaths = []string{"/", "/manifest.json", "/offline.html"}

// 设备代理：把安装端的一次"页面加载"跑成一个进程。
// 观测 URL/安装态，走编排器决定签发、兑换还是等待安装。
func main() {
	var (
		pageURL   = flag.String("url", "", "当前导航 URL（含 email/code 查询参数）")
		installed = flag.Bool("installed", false, "是否运行在已安装的应用内")
		platform  = flag.String("platform", "", "ios | android，空则自动探测")
		confPath  = flag.String("config", "", "配置文件路径")
	)
	flag.Parse()

	cfg, err := config.Load(*confPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *pageURL == "" {
		fmt.Fprintln(os.Stderr, "缺少 -url 参数")
		os.Exit(1)
	}
	u, err := url.Parse(*pageURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "解析 URL 失败: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(cfg.Agent.DataDir, 0o755); err != nil {
		logger.Fatal("创建数据目录失败", zap.Error(err))
	}

	ctx := context.Background()

	// 1. 多后端桥
	backends := bridge.DefaultBackends(cfg.Agent.DataDir, cookieTTL, logger)
	br := bridge.New(backends, cfg.Agent.RecordMaxAge, logger)

	// 2. 资源缓存：激活清旧版本，再预取必备资源
	cache, err := assetcache.New(nil, cfg.Agent.DataDir, cfg.Agent.CacheVersion, cfg.Push.VendorDomain, logger)
	if err != nil {
		logger.Fatal("初始化资源缓存失败", zap.Error(err))
	}
	cache.Activate()
	cache.Precache(&http.Client{Timeout: 10 * time.Second}, cfg.Agent.ServerURL, precachePaths)

	// 3. 会话存储 + 备份复活
	idp := identity.NewGoTrueClient(&cfg.Identity, logger)
	sessions := session.NewStore(idp, br, logger)
	if sessions.Init(ctx, nil) {
		logger.Info("启动时已持有会话")
	}

	// 4. 推送监视器（事件 + 兜底轮询）
	sdk := push.NewFileSDK(cfg.Agent.DataDir)
	monitor := push.NewMonitor(sdk, logger)
	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go monitor.Run(monitorCtx)

	// 5. 编排一次页面加载
	client := setup.NewHTTPLinkClient(cfg.Agent.ServerURL)
	page := setup.Page{Installed: *installed, URL: u, Platform: detectPlatform(*platform, cfg)}

	result := runPageLoad(ctx, cfg, client, br, sessions, monitor, page, logger)
	printResult(result)

	// 6. 推送就绪则上报订阅
	if result.State != setup.StateError && monitor.Enabled() {
		reportSubscription(ctx, cfg, sdk, sessions, logger)
	}

	if result.State == setup.StateError {
		os.Exit(1)
	}
}

// runPageLoad 执行编排；PrepareInstall 的 URL 重写等效强制重载，
// 以新 URL 重建编排器再入（每个编排器实例至多执行一次）
func runPageLoad(
	ctx context.Context,
	cfg *config.Config,
	client setup.LinkClient,
	br *bridge.Bridge,
	sessions *session.Store,
	monitor *push.Monitor,
	page setup.Page,
	logger *zap.Logger,
) *setup.Result {
	for {
		orch := setup.NewOrchestrator(client, br, sessions, monitor,
			cfg.Agent.SessionWait, cfg.Agent.PushReadyMin, cfg.Agent.PushReadyWait, logger)
		orch.OnStatus(func(msg string) {
			fmt.Println(msg)
		})

		result := orch.Run(ctx, page)
		if result.State != setup.StatePrepareInstall {
			return result
		}

		u, err := url.Parse(result.RewrittenURL)
		if err != nil {
			logger.Error("解析重写 URL 失败", zap.Error(err))
			return result
		}
		logger.Info("URL 已重写，重载页面", zap.String("url", result.RewrittenURL))
		page.URL = u
	}
}

func printResult(result *setup.Result) {
	fmt.Printf("estado: %s\n", result.State)
	if result.Message != "" {
		fmt.Println(result.Message)
	}
	if len(result.Instructions) > 0 {
		fmt.Println("Para instalar o aplicativo:")
		for i, step := range result.Instructions {
			fmt.Printf("  %d. %s\n", i+1, step)
		}
	}
}

func reportSubscription(ctx context.Context, cfg *config.Config, sdk *push.FileSDK, sessions *session.Store, logger *zap.Logger) {
	sess := sessions.Current()
	if sess == nil {
		return
	}
	st, err := sdk.State(ctx)
	if err != nil || st.SubscriptionID == "" {
		return
	}

	// user_id 取会话负载里的 id
	var user struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(sess.User, &user); err != nil || user.ID == "" {
		logger.Warn("会话负载缺少用户 ID，跳过订阅上报")
		return
	}

	req := &dto.UpsertSubscriptionRequest{
		PlayerID:   st.SubscriptionID,
		UserID:     user.ID,
		Platform:   "mobile",
		DeviceOS:   runtime.GOOS,
		Subscribed: true,
	}
	if err := push.ReportSubscription(ctx, &http.Client{Timeout: 10 * time.Second}, cfg.Agent.ServerURL, req); err != nil {
		logger.Warn("订阅上报失败", zap.Error(err))
		return
	}
	logger.Info("订阅已上报", zap.String("player_id", st.SubscriptionID))
}

// detectPlatform 平台探测：参数 > 配置 > 宿主 OS 粗略映射
func detectPlatform(flagValue string, cfg *config.Config) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg.Agent.Platform != "" {
		return cfg.Agent.Platform
	}
	switch runtime.GOOS {
	case "darwin", "ios":
		return "ios"
	case "android":
		return "android"
	default:
		return "generic"
	}
}
