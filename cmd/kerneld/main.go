// Command kerneld runs the zeroos kernel: process table, syscall
// dispatcher, HAL, supervisor, and debug transport, all in one process.
// Grounded on the teacher's cmd/wtd/main.go: a small cobra root with one
// RunE that loads config and calls into internal/daemon.
package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zeroos-kernel/zeroos/internal/config"
	"github.com/zeroos-kernel/zeroos/internal/daemon"
	"github.com/zeroos-kernel/zeroos/internal/logger"
)

func main() {
	var configDir string
	var logLevel string
	var hostOverride string

	root := &cobra.Command{
		Use:   "kerneld",
		Short: "zeroos kernel daemon",
		Long:  "Runs the capability-secure microkernel: process table, syscall dispatcher, and host scheduler (native or browser).",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logLevel, ""); err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			dir := configDir
			if dir == "" {
				d, err := config.GetUserConfigDir()
				if err != nil {
					return fmt.Errorf("resolve config dir: %w", err)
				}
				dir = d
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("create config dir: %w", err)
			}

			cfg, err := config.LoadKernelConfig(dir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if hostOverride != "" {
				cfg.Host = hostOverride
			}
			if cfg.KernelID == "" {
				cfg.KernelID = "zeroos-" + uuid.New().String()[:8]
				if err := config.SaveKernelConfig(dir, cfg); err != nil {
					return fmt.Errorf("save config: %w", err)
				}
			}

			// No bytecode interpreter ships with zeroos itself; an
			// embedding application links its own ModuleFactory in. The
			// standalone binary runs with native LoadBinary/spawn failing
			// closed until one is wired.
			return daemon.RunWithSignals(cfg, nil)
		},
	}

	root.Flags().StringVar(&configDir, "config-dir", "", "Config directory (default: ~/.zeroos)")
	root.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.Flags().StringVar(&hostOverride, "host", "", "Override configured host: native or browser")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
