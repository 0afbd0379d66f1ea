package index

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"

	"github.com/yeisme/arca/pkg/internal/errs"
	"github.com/yeisme/arca/pkg/queue"
)

// Queue 将索引请求发布到消息队列，由下游异步写入索引.
type Queue struct {
	pub   message.Publisher
	topic string
}

// NewQueue 创建队列下游，topic 为空时使用 queue.TopicIndexRequested.
func NewQueue(pub message.Publisher, topic string) *Queue {
	if topic == "" {
		topic = queue.TopicIndexRequested
	}

	return &Queue{pub: pub, topic: topic}
}

// Index 实现 Sink，消息 ID 为记录 ID.
func (q *Queue) Index(ctx context.Context, recordID, text string, meta Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := queue.NewWatermillMessageWithID(recordID, q.topic, queue.IndexRequestedPayload{
		RecordID: recordID,
		Text:     text,
		Title:    meta.Title,
		Author:   meta.Author,
		Category: meta.Category,
		Tags:     meta.Tags,
		Format:   meta.Format,
		Origin:   meta.Origin,
	}, queue.WithProducer("arca"))
	if err != nil {
		return errs.E(errs.KindIndexSink, "encode index request", recordID, err)
	}

	msg.SetContext(ctx)

	if err := q.pub.Publish(q.topic, msg); err != nil {
		return errs.E(errs.KindIndexSink, "publish index request", recordID, err)
	}

	return nil
}

// Consume 把队列中的索引请求写入 sink，直到 msgs 关闭或 ctx 结束.
// 无法解码或写入失败的消息记录日志后确认，避免毒消息反复投递.
func Consume(ctx context.Context, msgs <-chan *message.Message, sink Sink, logger zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}

			env, err := queue.ParseWatermillMessage[queue.IndexRequestedPayload](m)
			if err != nil {
				logger.Warn().Err(err).Str("uuid", m.UUID).Msg("dropping malformed index request")
				m.Ack()

				continue
			}

			p := env.Payload
			meta := Metadata{
				Title: p.Title, Author: p.Author, Category: p.Category,
				Tags: p.Tags, Format: p.Format, Origin: p.Origin,
			}

			if err := sink.Index(ctx, p.RecordID, p.Text, meta); err != nil {
				logger.Warn().Err(err).Str("record_id", p.RecordID).Msg("index request failed")
			}

			m.Ack()
		}
	}
}
