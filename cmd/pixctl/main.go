package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cashflow/pix-gateway/internal/config"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	apiURL := "http://localhost:8080"
	if cfg, err := config.Load(); err == nil {
		apiURL = cfg.Client.APIURL
	}

	if err := newRootCmd(apiURL).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd(apiURL string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pixctl",
		Short:         "pixctl - inspect and wait for PIX payment confirmations",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("api", apiURL, "Base URL of the pix-gateway API")
	rootCmd.PersistentFlags().Duration("timeout", 0, "HTTP request timeout (0 uses the client default)")

	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(waitCmd())
	rootCmd.AddCommand(eventsCmd())
	return rootCmd
}
