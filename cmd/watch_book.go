package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/polyflip/updown-arb/internal/feed"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/pkg/config"
	"github.com/polyflip/updown-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var watchBookCmd = &cobra.Command{
	Use:   "watch-book <market-slug>",
	Short: "Watch both legs' top of book for one market",
	Long: `Polls the venue's REST book endpoint for the up and down tokens of
one market and prints the top of book on every scan.

Example:
  updown-arb watch-book btc-updown-15m-2026-08-24-1430`,
	Args: cobra.ExactArgs(1),
	RunE: runWatchBook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(watchBookCmd)
	watchBookCmd.Flags().DurationP("interval", "i", 2*time.Second, "Poll interval")
}

func runWatchBook(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()
	slug := args[0]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := config.NewLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	interval, _ := cmd.Flags().GetDuration("interval")

	market, err := findMarket(ctx, cfg, logger, slug)
	if err != nil {
		return err
	}

	fmt.Printf("Market: %s (expires %s)\n\n", market.Slug, market.ExpiresAt.Format(time.RFC3339))

	books := feed.NewBookClient(cfg.RestURL, cfg.PollTimeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		printLeg(ctx, books, "up  ", market.UpTokenID)
		printLeg(ctx, books, "down", market.DownTokenID)
		fmt.Println()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// findMarket scans the configured series until the slug turns up.
func findMarket(ctx context.Context, cfg *config.Config, logger *zap.Logger, slug string) (types.Market, error) {
	client := registry.NewDiscoveryClient(cfg.RestURL, cfg.PollTimeout, logger)

	for _, asset := range cfg.Assets {
		for _, duration := range cfg.Durations {
			markets, err := client.FetchMarkets(ctx, asset, duration, cfg.MarketLimit)
			if err != nil {
				continue
			}
			for _, m := range markets {
				if m.Slug == slug {
					return m, nil
				}
			}
		}
	}
	return types.Market{}, fmt.Errorf("market %q not found in configured series", slug)
}

func printLeg(ctx context.Context, books *feed.BookClient, label, tokenID string) {
	book, err := books.GetBook(ctx, tokenID)
	if err != nil {
		fmt.Printf("%s  <error: %v>\n", label, err)
		return
	}

	bid, ask := "-", "-"
	if len(book.Bids) > 0 {
		bid = fmt.Sprintf("%s x %s", book.Bids[0].Price, book.Bids[0].Size)
	}
	if len(book.Asks) > 0 {
		ask = fmt.Sprintf("%s x %s", book.Asks[0].Price, book.Asks[0].Size)
	}
	fmt.Printf("%s  bid %s | ask %s  (seq %d)\n", label, bid, ask, book.Seq)
}
