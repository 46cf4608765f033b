package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/polyflip/updown-arb/internal/feed"
	"github.com/polyflip/updown-arb/internal/registry"
	"github.com/polyflip/updown-arb/pkg/config"
	"github.com/polyflip/updown-arb/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "One-shot arbitrage scan across active up/down markets",
	Long: `Fetches the active up/down markets for the configured assets and
durations, pulls both legs' books, and prints the margin of each pair.
Pairs whose margin clears MIN_PROFIT_MARGIN are flagged.`,
	RunE: runScan,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().IntP("limit", "l", 20, "Maximum markets per series")
}

func runScan(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

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

	limit, _ := cmd.Flags().GetInt("limit")

	client := registry.NewDiscoveryClient(cfg.RestURL, cfg.PollTimeout, logger)
	books := feed.NewBookClient(cfg.RestURL, cfg.PollTimeout)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "SLUG\tEXPIRES\tASK UP\tASK DOWN\tMARGIN\t\n")
	fmt.Fprintf(w, "----\t-------\t------\t--------\t------\t\n")

	total, edges := 0, 0
	for _, asset := range cfg.Assets {
		for _, duration := range cfg.Durations {
			markets, err := client.FetchMarkets(ctx, asset, duration, limit)
			if err != nil {
				fmt.Fprintf(os.Stderr, "fetch %s-%s: %v\n", asset, duration, err)
				continue
			}
			for _, m := range markets {
				total++
				if scanPair(ctx, w, books, cfg, m) {
					edges++
				}
			}
		}
	}
	_ = w.Flush()

	fmt.Printf("\n%d markets scanned, %d above margin\n", total, edges)
	return nil
}

// scanPair prints one market's pair and reports whether it clears the
// configured margin.
func scanPair(ctx context.Context, w *tabwriter.Writer, books *feed.BookClient, cfg *config.Config, m types.Market) bool {
	askUp, okUp := bestAsk(ctx, books, m.UpTokenID)
	askDown, okDown := bestAsk(ctx, books, m.DownTokenID)
	if !okUp || !okDown {
		fmt.Fprintf(w, "%s\t%s\t-\t-\t-\t\n", m.Slug, m.ExpiresAt.Format(time.RFC3339))
		return false
	}

	upTicks := types.TicksFromPrice(askUp, m.TicksPerUnit)
	downTicks := types.TicksFromPrice(askDown, m.TicksPerUnit)
	reserve := types.FeeReserveTicks(upTicks+downTicks, m.TakerFeeBps)
	margin := types.Ticks(m.TicksPerUnit) - upTicks - downTicks - reserve

	flag := ""
	if margin.Price(m.TicksPerUnit) > cfg.MinProfitMargin {
		flag = "ARB"
	}
	fmt.Fprintf(w, "%s\t%s\t%.3f\t%.3f\t%.3f\t%s\n",
		m.Slug,
		m.ExpiresAt.Format(time.RFC3339),
		askUp,
		askDown,
		margin.Price(m.TicksPerUnit),
		flag)
	return flag != ""
}

func bestAsk(ctx context.Context, books *feed.BookClient, tokenID string) (float64, bool) {
	book, err := books.GetBook(ctx, tokenID)
	if err != nil || len(book.Asks) == 0 {
		return 0, false
	}
	price, err := strconv.ParseFloat(book.Asks[0].Price, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}
