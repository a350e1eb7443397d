package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "comanda",
	Short: "Restaurant order, kitchen and waiter services",
	Long: `comanda runs one of the restaurant back-office services.

Each subcommand starts a single service against the shared MySQL database
and RabbitMQ exchange. Configuration comes from defaults, an optional YAML
file and environment variables such as DB_HOST or RABBITMQ_URL.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
