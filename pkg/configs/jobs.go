package configs

import (
	"github.com/spf13/viper"
)

const (
	DefaultScanCron      = "0 3 * * *"  // 每天 03:00 扫描本地图书馆
	DefaultReconcileCron = "30 3 * * *" // 每天 03:30 同步远端文件夹
)

// JobsConfig 定时任务配置，空字符串表示禁用对应任务.
type JobsConfig struct {
	ScanCron      string `mapstructure:"scan_cron"      rule:"omitempty,cron"`
	ReconcileCron string `mapstructure:"reconcile_cron" rule:"omitempty,cron"`
	DedupCron     string `mapstructure:"dedup_cron"     rule:"omitempty,cron"`
}

func (c *JobsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("jobs.scan_cron", DefaultScanCron)
	v.SetDefault("jobs.reconcile_cron", DefaultReconcileCron)
	v.SetDefault("jobs.dedup_cron", "")
}
