package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/warden/internal/cli"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the drivers of a running warden",
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses, err := cli.NewClient(controlAddr()).Statuses(cmd.Context())
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			output, err := json.MarshalIndent(statuses, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal JSON: %w", err)
			}
			fmt.Println(string(output))
			return nil
		}
		return cli.RenderStatusTable(os.Stdout, statuses)
	},
}

var kickstartCmd = &cobra.Command{
	Use:   "kickstart <driver>",
	Short: "Restart the worker of a running driver",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := cli.NewClient(controlAddr()).Kickstart(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s restarted (generation %d, instance %s)\n", status.Name, status.Generation, status.InstanceID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd, kickstartCmd)
	statusCmd.Flags().Bool("json", false, "print JSON instead of a table")
}
