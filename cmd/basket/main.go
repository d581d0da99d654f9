package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"shared-basket/internal/app"
	"shared-basket/internal/basket"
	"shared-basket/internal/catalog"
	"shared-basket/internal/config"
	"shared-basket/internal/database"
	"shared-basket/internal/familysync"
	"shared-basket/internal/llm"
	"shared-basket/internal/logger"
	"shared-basket/internal/metrics"
	"shared-basket/internal/oracle"
	"shared-basket/internal/storage"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}

	cfg, err := config.NewFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	args := os.Args[2:]

	switch os.Args[1] {
	case "prices":
		err = cmdPrices(ctx, cfg, args)
	case "list":
		err = cmdList(ctx, cfg)
	case "usage":
		err = cmdUsage(ctx, cfg, args)
	case "metrics-cleanup":
		err = cmdCleanup(ctx, cfg, args)
	case "health":
		err = cmdHealth(cfg)
	case "help", "-h", "--help":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage(os.Stderr)
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: basket <command> [arguments]")
	fmt.Fprintln(w, "\nCommands:")
	fmt.Fprintln(w, "  prices <item> [--location L]   Ask the price oracle for one item")
	fmt.Fprintln(w, "  list                           Print the saved list with totals")
	fmt.Fprintln(w, "  usage [--days N]               Daily model usage")
	fmt.Fprintln(w, "  metrics-cleanup [--days N]     Remove old metric records")
	fmt.Fprintln(w, "  health                         Memory, state directory and schema version")
}

func newOracle(ctx context.Context, cfg *config.Config) (*oracle.Oracle, func(), error) {
	var gens []llm.TextGenerator
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, err
		}
		gens = append(gens, gemini)
	}
	if cfg.GroqAPIKey != "" {
		gens = append(gens, llm.NewGroqClient(cfg.GroqAPIKey, cfg.GroqModel))
	}
	gen := llm.NewFallbackGenerator(gens...)
	return oracle.New(gen), func() { _ = gen.Close() }, nil
}

func cmdPrices(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("prices", flag.ContinueOnError)
	location := fs.StringP("location", "l", catalog.DefaultLocation, "Delivery area to price for")
	if err := fs.Parse(args); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if name == "" {
		return fmt.Errorf("item name is required")
	}

	o, closeGen, err := newOracle(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGen()

	prices, err := o.GetPrices(ctx, name, *location)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s %s @ %s\n", catalog.Emoji(name), name, *location)
	for _, p := range prices {
		fmt.Fprintf(tw, "  %s\t₪%s\n", p.Store, p.Price.StringFixed(2))
	}
	return tw.Flush()
}

func cmdList(ctx context.Context, cfg *config.Config) error {
	var local storage.BlobStore
	if cfg.StateBackend == config.BackendFile {
		fileStore, err := storage.NewFileStore(cfg.StateDir)
		if err != nil {
			return err
		}
		local = fileStore
	} else {
		db, err := database.Open(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()
		local = storage.NewSQLStore(db.SQL)
	}

	o, closeGen, err := newOracle(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeGen()

	a := app.New(app.Options{
		Oracle: o,
		Sync:   familysync.NewFacade(familysync.Options{Local: local}),
		Logger: logger.Nop(),
	})
	defer a.Close()
	if err := a.Load(ctx); err != nil {
		return err
	}

	v := a.View()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	var active *catalog.Store
	if v.Mode == basket.ModeSingleStore {
		active = v.SelectedStore
	}
	for _, it := range v.Items {
		mark := " "
		if it.IsBought {
			mark = "x"
		}
		price := "-"
		if store, ok := basket.AssignedStore(it, active); ok && !it.Scanning() {
			price = fmt.Sprintf("₪%s %s", it.PriceAt(store).StringFixed(2), store)
		}
		fmt.Fprintf(tw, "[%s] %s %s\t%g %s\t%s\n", mark, it.Emoji, it.Name, it.Quantity, it.Unit, price)
	}
	fmt.Fprintf(tw, "\nMode\t%s\n", v.Mode)
	fmt.Fprintf(tw, "Total\t₪%s (shipping ₪%s)\n", v.Totals.Total.StringFixed(2), v.Totals.Shipping.StringFixed(2))
	fmt.Fprintf(tw, "In cart\t₪%s (%.0f%%)\n", v.Totals.Spent.StringFixed(2), v.Progress)
	return tw.Flush()
}

func openMetrics(cfg *config.Config) (*metrics.Store, func(), error) {
	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	return metrics.NewStore(db.SQL), func() { _ = db.Close() }, nil
}

func cmdHealth(cfg *config.Config) error {
	h := metrics.ReadHealth(cfg.StateDir)
	fmt.Printf("heap=%dMB sys=%dMB gc=%d goroutines=%d state=%d files (%s)\n",
		h.HeapMB, h.ReservedMB, h.GCCycles, h.Goroutines, h.StateFiles, h.StateSize())

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()
	version, dirty, err := db.SchemaVersion()
	if err != nil {
		return err
	}
	fmt.Printf("schema=%d dirty=%v\n", version, dirty)
	return nil
}

func cmdUsage(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("usage", flag.ContinueOnError)
	days := fs.IntP("days", "d", 7, "Number of days to report")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeDB, err := openMetrics(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	usage, err := store.GetDailyUsage(ctx, *days)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tPROMPT\tCOMPLETION\tCALLS\tFALLBACKS")
	for _, d := range usage {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", d.Date, d.TotalPrompt, d.TotalCompletion, d.TotalExecution, d.TotalFallback)
	}
	return tw.Flush()
}

func cmdCleanup(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("metrics-cleanup", flag.ContinueOnError)
	days := fs.IntP("days", "d", 30, "Keep records for the last N days")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, closeDB, err := openMetrics(cfg)
	if err != nil {
		return err
	}
	defer closeDB()

	affected, err := store.Cleanup(ctx, *days)
	if err != nil {
		return err
	}
	fmt.Printf("Successfully removed %d old metric records.\n", affected)
	return nil
}
