package main

import (
	"fmt"
	"os"

	"github.com/punchamoorthee/lightningpay/internal/config"
	"github.com/punchamoorthee/lightningpay/internal/strike"
	"github.com/spf13/cobra"
)

var Version = "dev"

type globals struct {
	cfg     *config.Config
	apiKey  string
	sandbox bool
	asJSON  bool
}

func main() {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:           "strikectl",
		Short:         "Operator tool for Lightning payments via Strike",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if g.apiKey != "" {
				cfg.StrikeAPIKey = g.apiKey
			}
			if g.sandbox {
				cfg.StrikeEnvironment = "sandbox"
			}
			g.cfg = cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&g.apiKey, "api-key", "", "Strike API key (defaults to STRIKE_API_KEY)")
	rootCmd.PersistentFlags().BoolVar(&g.sandbox, "sandbox", false, "Use the Strike sandbox environment")
	rootCmd.PersistentFlags().BoolVarP(&g.asJSON, "json", "j", false, "Output as JSON")

	// Add subcommands
	rootCmd.AddCommand(receiptsCmd(g))
	rootCmd.AddCommand(requestCmd(g))
	rootCmd.AddCommand(createCmd(g))
	rootCmd.AddCommand(checkCmd(g))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (g *globals) client() (*strike.Client, error) {
	if g.cfg.StrikeAPIKey == "" {
		return nil, fmt.Errorf("no API key: set STRIKE_API_KEY or pass --api-key")
	}
	return strike.NewClient(strike.Config{
		APIKey:      g.cfg.StrikeAPIKey,
		Environment: g.cfg.StrikeEnvironment,
		BaseURL:     g.cfg.StrikeBaseURL,
		Timeout:     g.cfg.StrikeTimeout,
	}), nil
}
