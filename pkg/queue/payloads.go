package queue

import (
	"time"

	"github.com/yeisme/arca/pkg/internal/model"
)

// EventHeader 定义所有事件的通用头部元数据.
type EventHeader struct {
	// Topic 冗余记录消息主题，便于离线处理或转储后定位来源主题.
	Topic string `json:"topic"`
	// RunID 产生该事件的批处理运行.
	RunID string `json:"run_id,omitempty"`
	// Producer 生产者服务名或节点标识.
	Producer string `json:"producer,omitempty"`
	// OccurredAt 事件发生时间（UTC，RFC3339）.
	OccurredAt time.Time `json:"occurred_at"`
	// Version 事件负载版本，便于向后兼容演进.
	Version string `json:"version,omitempty"`
}

// Message 是统一的消息封装，Header + Payload.
type Message[T any] struct {
	Header  EventHeader `json:"header"`
	Payload T           `json:"payload"`
}

// IndexRequestedPayload 请求为一条目录记录建立全文索引.
type IndexRequestedPayload struct {
	RecordID string   `json:"record_id"`
	Text     string   `json:"text"`
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Category string   `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Format   string   `json:"format,omitempty"`
	Origin   string   `json:"origin,omitempty"`
}

// RunCompletedPayload 批处理运行结束.
type RunCompletedPayload struct {
	Run model.RunRecord `json:"run"`
}
