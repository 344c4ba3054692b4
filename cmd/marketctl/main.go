// cmd/marketctl 是运维命令行：建表、签发调试令牌、模拟承运商推送、清理过期挂牌。
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agrinexus/internal/pkg/bootstrap"
	"agrinexus/internal/pkg/logger"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "marketctl",
	Short:         "Operational tooling for the agrinexus marketplace",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.InitWithWriter("marketctl", "info", cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", bootstrap.ConfigPath(), "Path to config.yaml (missing file falls back to defaults and env)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(shipmentUpdateCmd)
	rootCmd.AddCommand(expireListingsCmd)
}

// loadConfig 与服务进程使用同一套加载规则。
func loadConfig() (*bootstrap.Config, error) {
	path := configPath
	if _, err := os.Stat(path); err != nil {
		path = ""
	}
	return bootstrap.LoadConfig(path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
