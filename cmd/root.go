package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

//nolint:gochecknoglobals // Cobra boilerplate
var rootCmd = &cobra.Command{
	Use:   "updown-arb",
	Short: "Up/down market arbitrage engine",
	Long: `Arbitrage engine for binary up/down prediction markets.

Discovers short-lived up/down markets, mirrors their orderbooks over
WebSocket or REST polling, detects moments where ask_up + ask_down
plus fees is below 1.0, and executes both legs with bankroll caps,
partial-fill hedging, and a circuit breaker. Runs against a simulated
venue by default (DRY_RUN=true).`,
}

// Execute runs the root command. Called once from main.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
