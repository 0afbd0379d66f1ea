// Package queue 定义消息主题常量，供发布/订阅使用.
package queue

// 主题命名规范：arca.<域>.<动作>，尽量稳定且向后兼容.
const (
	TopicIndexRequested = "arca.index.requested" // 新目录记录等待写入搜索索引
	TopicRunCompleted   = "arca.run.completed"   // 批处理任务运行结束（含汇总）
)
