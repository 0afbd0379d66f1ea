package configs

import (
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	DefaultQuarantineDir    = "_CUARENTENA_DUPLICADOS"
	DefaultQuarantineReport = "reporte_duplicados.txt"
)

// QuarantineConfig 重复文件隔离配置.
// Dir 与 Report 为相对路径时相对于 library.root.
type QuarantineConfig struct {
	Dir    string `mapstructure:"dir"    rule:"required"`
	Report string `mapstructure:"report" rule:"required"`
}

// ResolveDir 返回隔离目录的绝对位置.
func (c *QuarantineConfig) ResolveDir(root string) string {
	return resolveUnder(root, c.Dir)
}

// ResolveReport 返回报告文件位置.
func (c *QuarantineConfig) ResolveReport(root string) string {
	return resolveUnder(root, c.Report)
}

func resolveUnder(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(root, p)
}

func (c *QuarantineConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("quarantine.dir", DefaultQuarantineDir)
	v.SetDefault("quarantine.report", DefaultQuarantineReport)
}
