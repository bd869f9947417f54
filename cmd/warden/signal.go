package main

import (
	"fmt"

	"github.com/aretw0/warden/internal/cli"
	redisadapter "github.com/aretw0/warden/pkg/adapters/redis"
	"github.com/aretw0/warden/pkg/domain"
	"github.com/aretw0/warden/pkg/ports"
	"github.com/aretw0/warden/pkg/wire"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var signalCmd = &cobra.Command{
	Use:   "signal <driver> <COMMAND|params>",
	Short: "Send a signal to a driver",
	Long: `Publishes a signal addressed to a driver. By default it goes through the
control API of a running warden; with --redis it is published on the Redis
signal channel, reaching every warden bridged to it.`,
	Example: `  warden signal physics "JUMP|5"
  warden signal physics RESET --redis --redis-addr localhost:6379`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sender, _ := cmd.Flags().GetString("sender")
		sig := domain.Signal{Sender: sender, ComponentID: args[0], Data: args[1]}
		if err := wire.CheckCommand(domain.ParseCommand(sig.Data)); err != nil {
			return err
		}

		var pub ports.Publisher
		if useRedis, _ := cmd.Flags().GetBool("redis"); useRedis {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			addr := cfg.Redis.Addr
			if addr == "" {
				addr = viper.GetString("redis-addr")
			}
			if addr == "" {
				return fmt.Errorf("--redis needs redis.addr or --redis-addr")
			}
			client := backend.NewClient(&backend.Options{Addr: addr})
			defer client.Close()

			var opts []redisadapter.Option
			if cfg.Redis.Channel != "" {
				opts = append(opts, redisadapter.WithChannel(cfg.Redis.Channel))
			}
			pub = redisadapter.NewPublisher(client, opts...)
		} else {
			pub = cli.NewClient(controlAddr())
		}

		if err := pub.Publish(cmd.Context(), sig); err != nil {
			return err
		}
		fmt.Printf("Signal %q sent to %s\n", sig.Data, sig.ComponentID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signalCmd)
	signalCmd.Flags().String("sender", "cli", "sender recorded on the signal")
	signalCmd.Flags().Bool("redis", false, "publish on the Redis signal channel instead of the control API")
}
