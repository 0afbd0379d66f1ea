// Package main 启动 arca 命令行.
package main

import (
	"os"

	"github.com/yeisme/arca/pkg/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
