package main

import (
	"context"
	"os"

	"github.com/aretw0/warden/internal/cli"
	"github.com/aretw0/warden/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start every configured driver and the control API",
	Long: `Starts a worker for each driver in the config file, then keeps them alive
until interrupted. Signals arrive over the control API, the Redis bridge and
Lua callbacks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		sc := cli.NewSignalContext(context.Background())
		defer sc.Cancel()

		quiet, _ := cmd.Flags().GetBool("quiet")
		err = cli.Execute(sc, cli.RunOptions{
			Config: cfg,
			Logger: logger,
			Out:    os.Stdout,
			Banner: !quiet && tui.IsTerminal(os.Stdout),
		})
		if sig := sc.Signal(); sig != nil {
			logger.Info("Stopped", "signal", sig.String())
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolP("quiet", "q", false, "do not print the banner")
}
