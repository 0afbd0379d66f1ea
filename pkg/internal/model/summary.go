package model

import "time"

// ScanSummary 本地扫描汇总.
type ScanSummary struct {
	Candidates    int  `json:"candidates"`
	Inserted      int  `json:"inserted"`
	Skipped       int  `json:"skipped"`  // 已在目录中
	Repeated      int  `json:"repeated"` // 与本次运行中更早的文件内容相同
	Errored       int  `json:"errored"`
	IndexFailures int  `json:"index_failures"`
	Cancelled     bool `json:"cancelled"`
}

// ReconcileSummary 远端同步汇总.
type ReconcileSummary struct {
	Listed    int  `json:"listed"`
	Deleted   int  `json:"deleted"`
	Inserted  int  `json:"inserted"`
	Skipped   int  `json:"skipped"`
	Errored   int  `json:"errored"`
	Cancelled bool `json:"cancelled"`
}

// DedupSummary 重复文件处理汇总.
type DedupSummary struct {
	Files          int    `json:"files"`
	UniqueContents int    `json:"unique_contents"`
	Groups         int    `json:"groups"`
	Moved          int    `json:"moved"`
	Failed         int    `json:"failed"`
	HashErrors     int    `json:"hash_errors"`
	BytesReclaimed int64  `json:"bytes_reclaimed"`
	ReportPath     string `json:"report_path,omitempty"`
	Cancelled      bool   `json:"cancelled"`
}

// RunRecord 一次批处理运行的记录，保存于运行状态存储.
type RunRecord struct {
	Job       string            `json:"job"`
	RunID     string            `json:"run_id"`
	StartedAt time.Time         `json:"started_at"`
	Duration  time.Duration     `json:"duration"`
	Error     string            `json:"error,omitempty"`
	DryRun    bool              `json:"dry_run,omitempty"`
	Scan      *ScanSummary      `json:"scan,omitempty"`
	Reconcile *ReconcileSummary `json:"reconcile,omitempty"`
	Dedup     *DedupSummary     `json:"dedup,omitempty"`
}
