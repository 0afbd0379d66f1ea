// Package queue 管理批处理管线发出的异步事件.
//
// 概览
//   - 采用发布/订阅模型，解耦"扫描、同步"与"索引、通知"等环节
//   - 统一的消息封装：Message[Payload] = Header + Payload
//   - 主题常量见 topics.go，负载结构体见 payloads.go
//   - 默认 JSON 编解码（bytedance/sonic），跨语言易解析
//
// 消息信封（Envelope）JSON 结构
//
//	{
//	  "header": {
//	    "topic": "arca.index.requested",
//	    "run_id": "01J...",
//	    "producer": "arca",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": { ... 取决于具体主题 ... }
//	}
//
// 发布/订阅示例
//
//	msg, _ := queue.NewWatermillMessage(
//	  queue.TopicIndexRequested, payload,
//	  queue.WithRunID(runID),
//	  queue.WithProducer("arca"),
//	)
//	_ = client.Publish(ctx, queue.TopicIndexRequested, msg)
//
//	ch, _ := client.Subscribe(ctx, queue.TopicIndexRequested)
//	for m := range ch {
//	    env, _ := queue.ParseWatermillMessage[queue.IndexRequestedPayload](m)
//	    m.Ack()
//	}
//
// 注意事项
//  1. occurred_at 为 UTC，RFC3339 格式
//  2. version 便于后向兼容，建议消费者忽略未知字段
//  3. 索引请求的消息 ID 为记录 ID，消费者可据此幂等
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"

	"github.com/yeisme/arca/pkg/internal/model"
)

const (
	PayloadVersionV1 string = "v1"
)

// NewEventHeader 便捷创建事件头.
func NewEventHeader(topic string, opts ...func(*EventHeader)) EventHeader {
	hdr := EventHeader{
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}
	for _, opt := range opts {
		opt(&hdr)
	}

	return hdr
}

// WithRunID 设置产生事件的运行 ID.
func WithRunID(id string) func(*EventHeader) { return func(h *EventHeader) { h.RunID = id } }

// WithProducer 设置 Producer.
func WithProducer(p string) func(*EventHeader) { return func(h *EventHeader) { h.Producer = p } }

// Encode 将消息封装为 JSON 字节切片.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 字节解码为消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造一个 watermill 消息，设置随机 ID 与元数据.
func NewWatermillMessage[T any](topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	return NewWatermillMessageWithID(watermill.NewUUID(), topic, payload, opts...)
}

// NewWatermillMessageWithID 与 NewWatermillMessage 相同，但使用给定的消息 ID.
func NewWatermillMessageWithID[T any](id, topic string, payload T, opts ...func(*EventHeader)) (*message.Message, error) {
	header := NewEventHeader(topic, opts...)
	env := Message[T]{Header: header, Payload: payload}

	data, err := Encode(env)
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(id, data)
	msg.Metadata.Set("topic", topic)

	if header.RunID != "" {
		msg.Metadata.Set("run_id", header.RunID)
	}

	if header.Producer != "" {
		msg.Metadata.Set("producer", header.Producer)
	}

	msg.Metadata.Set("occurred_at", header.OccurredAt.Format(time.RFC3339Nano))

	if header.Version != "" {
		msg.Metadata.Set("version", header.Version)
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}

// PublishRunCompleted 发布运行结束事件.
func PublishRunCompleted(pub message.Publisher, run model.RunRecord, opts ...func(*EventHeader)) error {
	opts = append([]func(*EventHeader){WithRunID(run.RunID)}, opts...)

	msg, err := NewWatermillMessageWithID(run.RunID, TopicRunCompleted, RunCompletedPayload{Run: run}, opts...)
	if err != nil {
		return err
	}

	return pub.Publish(TopicRunCompleted, msg)
}
