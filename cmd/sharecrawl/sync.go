package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/sharecrawl"
	"github.com/praetorian-inc/sharecrawl/pkg/store"
)

var (
	syncStorePath   string
	syncWorkers     int
	syncNoContent   bool
	syncFull        bool
	syncDryRun      bool
	syncDLS         bool
	syncAskPassword bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Enumerate the configured source into the store",
	Long: `Walk the configured network drive or SharePoint site collections, store
one document per item and fetch file content on worker goroutines.

With --full, documents stored by an earlier sync that were not seen in
this pass are deleted.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncStorePath, "store", "", "Store database path (overrides store_path)")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "Number of concurrent content workers (overrides workers)")
	syncCmd.Flags().BoolVar(&syncNoContent, "no-content", false, "Store documents without fetching content")
	syncCmd.Flags().BoolVar(&syncFull, "full", false, "Delete stored documents not seen in this pass")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Enumerate into an in-memory store")
	syncCmd.Flags().BoolVar(&syncDLS, "dls", false, "Enable document level security (overrides dls)")
	syncCmd.Flags().BoolVar(&syncAskPassword, "ask-password", false, "Prompt for the source password")
}

func runSync(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := loadConfig(overrides{
		dls:         syncDLS,
		dlsSet:      cmd.Flags().Changed("dls"),
		askPassword: syncAskPassword,
	})
	if err != nil {
		return err
	}
	if syncStorePath != "" {
		cfg.StorePath = syncStorePath
	}
	if syncDryRun {
		cfg.StorePath = store.MemoryPath
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	opts := []sharecrawl.Option{sharecrawl.WithLogger(logger)}
	if syncWorkers > 0 {
		opts = append(opts, sharecrawl.WithWorkers(syncWorkers))
	}
	if syncNoContent {
		opts = append(opts, sharecrawl.WithoutContent())
	}
	syncer, err := sharecrawl.NewSyncer(ctx, cfg, opts...)
	if err != nil {
		return err
	}
	defer syncer.Close()

	if err := syncer.Ping(ctx); err != nil {
		return fmt.Errorf("checking source connection: %w", err)
	}

	s, err := store.New(store.Config{Path: cfg.StorePath})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	start := time.Now()
	run := syncer.Sync
	if syncFull {
		run = syncer.FullSync
	}
	stats, err := run(ctx, s)
	if err != nil {
		return err
	}

	printSyncSummary(cmd.OutOrStdout(), stats, time.Since(start), cfg.StorePath)
	return nil
}

func printSyncSummary(w io.Writer, stats *sharecrawl.SyncStats, elapsed time.Duration, storePath string) {
	heading := color.New(color.Bold)
	count := color.New(color.FgHiGreen)

	fmt.Fprintf(w, "%s\n", heading.Sprint("Sync complete"))
	fmt.Fprintf(w, "  Documents: %s\n", count.Sprint(stats.Documents))
	fmt.Fprintf(w, "  Contents:  %s\n", count.Sprint(stats.Contents))
	if stats.Skipped > 0 {
		fmt.Fprintf(w, "  Skipped:   %s\n", color.New(color.FgYellow).Sprint(stats.Skipped))
	}
	if n := len(stats.Incomplete); n > 0 {
		fmt.Fprintf(w, "  Incomplete: %s paths skipped, nothing deleted\n", color.New(color.FgYellow).Sprint(n))
	}
	if stats.Deleted > 0 {
		fmt.Fprintf(w, "  Deleted:   %s\n", color.New(color.FgRed).Sprint(stats.Deleted))
	}
	fmt.Fprintf(w, "  Elapsed:   %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Store: %s\n", storePath)
}
