// Package errs 定义批处理流程中的结构化错误种类.
//
// 每个种类对应一种恢复策略：单文件瞬时错误跳过该文件，远端列举错误中止本次同步，
// 移动失败写入报告，索引下游失败仅记录日志，目录错误视为单条记录失败.
package errs

import (
	"errors"
	"fmt"
)

// Kind 错误种类.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindTransientFile 读取或解析单个文件失败.
	KindTransientFile
	// KindRemoteListing 远端文件夹列举失败.
	KindRemoteListing
	// KindRelocation 重复文件移动失败.
	KindRelocation
	// KindIndexSink 索引下游拒绝或不可达.
	KindIndexSink
	// KindCatalog 目录读写失败.
	KindCatalog
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindTransientFile: "transient_file",
	KindRemoteListing: "remote_listing",
	KindRelocation:    "relocation",
	KindIndexSink:     "index_sink",
	KindCatalog:       "catalog",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}

	return fmt.Sprintf("kind(%d)", uint8(k))
}

// 各种类的哨兵错误，用于 errors.Is 判断.
var (
	ErrTransientFile = &Error{Kind: KindTransientFile}
	ErrRemoteListing = &Error{Kind: KindRemoteListing}
	ErrRelocation    = &Error{Kind: KindRelocation}
	ErrIndexSink     = &Error{Kind: KindIndexSink}
	ErrCatalog       = &Error{Kind: KindCatalog}
)

// Error 带种类、操作与路径上下文的错误.
type Error struct {
	Kind Kind
	Op   string // 失败的操作，例如 "hash" "extract" "list"
	Path string // 相关文件路径或远端 ID
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op
	}

	if e.Path != "" {
		msg += " " + e.Path
	}

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Unwrap 返回底层错误.
func (e *Error) Unwrap() error { return e.Err }

// Is 按种类匹配哨兵错误.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Retryable 报告该错误在下一次运行中是否可能自行恢复.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindTransientFile, KindRemoteListing, KindIndexSink:
		return true
	default:
		return false
	}
}

// E 构造一个结构化错误，err 为 nil 时返回 nil.
func E(kind Kind, op, path string, err error) error {
	if err == nil {
		return nil
	}

	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf 返回错误链中第一个结构化错误的种类.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindUnknown
}

// IsRetryable 报告错误链中是否存在可重试的结构化错误.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable()
	}

	return false
}
