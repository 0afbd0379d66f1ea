// Package model 定义目录（catalog）中的持久化模型.
package model

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"
)

// Origin 记录来源.
type Origin string

const (
	OriginLocal  Origin = "local"
	OriginRemote Origin = "remote"
)

// SyntheticPrefix 无内容摘要的远端条目使用的合成指纹前缀.
// 十六进制摘要不含下划线，因此合成指纹不会与真实指纹冲突.
const SyntheticPrefix = "remote_"

// FileRecord 目录中的一条文件记录.
type FileRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// 相对扫描根目录的路径（"/" 分隔）；远端记录为远端 ID
	RelativePath string   `gorm:"size:1024"                 json:"relative_path"`
	Filename     string   `gorm:"size:512;index"            json:"filename"`
	Title        string   `gorm:"size:512"                  json:"title"`
	Author       string   `gorm:"size:255"                  json:"author,omitempty"`
	Format       string   `gorm:"size:32;index"             json:"format"`
	SizeBytes    int64    `json:"size_bytes"`
	Category     string   `gorm:"size:128;index"            json:"category"`
	Tags         []string `gorm:"-"                       json:"tags"`
	TagsJSON     string   `gorm:"column:tags;type:text"     json:"-"`
	Fingerprint  string   `gorm:"size:1040;uniqueIndex"     json:"fingerprint"`
	TextPreview  string   `gorm:"type:text"                 json:"text_preview"`
	Origin       Origin   `gorm:"size:16;index"             json:"origin"`
	// 仅远端记录存在；NULL 不参与唯一约束. S3 对象键最长 1024 字节
	RemoteID  *string   `gorm:"size:1024;uniqueIndex" json:"remote_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName 指定表名.
func (FileRecord) TableName() string { return "file_records" }

// BeforeSave 将标签序列化为 JSON 文本.
func (r *FileRecord) BeforeSave(*gorm.DB) error {
	r.Tags = NormalizeTags(r.Tags)

	b, err := sonic.Marshal(r.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	r.TagsJSON = string(b)

	return nil
}

// AfterFind 反序列化标签.
func (r *FileRecord) AfterFind(*gorm.DB) error {
	r.Tags = nil
	if r.TagsJSON == "" {
		return nil
	}

	if err := sonic.UnmarshalString(r.TagsJSON, &r.Tags); err != nil {
		return fmt.Errorf("unmarshal tags: %w", err)
	}

	return nil
}

// RemoteKey 返回远端 ID，本地记录返回空字符串.
func (r *FileRecord) RemoteKey() string {
	if r.RemoteID == nil {
		return ""
	}

	return *r.RemoteID
}

// IsSynthetic 报告指纹是否为合成指纹.
func (r *FileRecord) IsSynthetic() bool {
	return IsSyntheticFingerprint(r.Fingerprint)
}

// Clone 返回深拷贝.
func (r *FileRecord) Clone() *FileRecord {
	c := *r
	c.Tags = slices.Clone(r.Tags)

	if r.RemoteID != nil {
		id := *r.RemoteID
		c.RemoteID = &id
	}

	return &c
}

// SyntheticFingerprint 由远端 ID 派生合成指纹.
func SyntheticFingerprint(remoteID string) string {
	return SyntheticPrefix + remoteID
}

// IsSyntheticFingerprint 报告指纹是否由远端 ID 派生.
func IsSyntheticFingerprint(fp string) bool {
	return strings.HasPrefix(fp, SyntheticPrefix)
}

// NormalizeTags 去重并排序标签.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return []string{}
	}

	out := slices.Clone(tags)
	slices.Sort(out)

	return slices.Compact(out)
}

// StringPtr 返回字符串指针，空字符串返回 nil.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}
