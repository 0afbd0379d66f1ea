package jobs

// 任务名称常量，便于统一管理与引用.
const (
	JobScan      = "scan"
	JobReconcile = "reconcile"
	JobDedup     = "dedup"
)

// Names 返回全部任务名称.
func Names() []string {
	return []string{JobScan, JobReconcile, JobDedup}
}

// Valid 报告任务名称是否存在.
func Valid(name string) bool {
	switch name {
	case JobScan, JobReconcile, JobDedup:
		return true
	default:
		return false
	}
}
