package main

import (
	"fmt"

	"github.com/aretw0/warden/pkg/component"
	"github.com/spf13/cobra"
)

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the components this binary can run",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range component.Names() {
			fmt.Println(name)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the config file without starting anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.CheckComponents(); err != nil {
			return err
		}
		fmt.Printf("✓ %d driver(s) valid\n", len(cfg.Drivers))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(componentsCmd, validateCmd)
}
