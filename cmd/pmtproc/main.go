package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/paywatch/pmtproc/pkg/monitor"
)

var (
	version = "1.0.0"

	// Global flags
	configFile string
	verbose    bool
	debug      bool

	// Monitor flags
	outputDir    string
	navTimeout   int
	headless     bool
	noHistory    bool
	naiveDomains bool

	// History flags
	historyPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pmtproc",
		Short: "pmtproc - Payment Processor Traffic Monitor",
		Long: `pmtproc - A browser-driven monitor for crowdfunding payment infrastructure.

Opens a campaign page in a real browser, records every network exchange to a
HAR archive, and reports which payment-processor endpoints the page talks to.
Browse and donate as a normal visitor; close the browser window (or press
Ctrl+C) when done.`,
		Version: version,
	}

	monitorCmd := &cobra.Command{
		Use:   "monitor [slug|url]",
		Short: "Monitor a campaign page",
		Long:  "Open a campaign page, record traffic until the browser closes, and report payment-processor domains.",
		Args:  cobra.ExactArgs(1),
		RunE:  runMonitor,
	}

	scanCmd := &cobra.Command{
		Use:   "scan [har-file]",
		Short: "Scan an existing HAR archive",
		Long:  "Re-run payment URL matching against a previously recorded HAR archive.",
		Args:  cobra.ExactArgs(1),
		RunE:  runScan,
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long:  "List previous monitoring runs from the local ledger.",
		RunE:  runHistory,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML or JSON)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Debug mode")

	// Monitor flags
	monitorCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory for the HAR file and history ledger")
	monitorCmd.Flags().IntVarP(&navTimeout, "timeout", "t", 60, "Navigation timeout in seconds")
	monitorCmd.Flags().BoolVar(&headless, "headless", false, "Run the browser headless (no window to close; stop with Ctrl+C)")
	monitorCmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record this run in the history ledger")
	monitorCmd.Flags().BoolVar(&naiveDomains, "naive-domains", false, "Group domains by last two labels instead of the public suffix list")

	// Scan flags
	scanCmd.Flags().BoolVar(&naiveDomains, "naive-domains", false, "Group domains by last two labels instead of the public suffix list")

	// History flags
	historyCmd.Flags().StringVar(&historyPath, "ledger", "", "History ledger path (default: ./pmtproc_history.db)")
	historyCmd.Flags().StringVarP(&outputDir, "output-dir", "o", ".", "Directory holding the history ledger")

	rootCmd.AddCommand(monitorCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(historyCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	config, err := buildConfig()
	if err != nil {
		return err
	}
	config.Target = args[0]

	if cmd.Flags().Changed("output-dir") {
		config.OutputDir = outputDir
	}
	if cmd.Flags().Changed("timeout") {
		config.NavTimeout = time.Duration(navTimeout) * time.Second
	}
	if cmd.Flags().Changed("headless") {
		config.Headless = headless
	}
	if noHistory {
		config.History = false
	}
	if naiveDomains {
		config.NaiveDomains = true
	}
	config.Verbose = verbose
	config.Debug = debug

	m, err := monitor.New(monitor.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	// The session owns interrupt handling; Ctrl+C is one of its normal
	// stop triggers, not a reason to cancel the context.
	_, err = m.Run(context.Background())
	if errors.Is(err, monitor.ErrHARNotWritten) {
		return err
	}
	if err != nil {
		return fmt.Errorf("monitor run failed: %w", err)
	}
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	config, err := buildConfig()
	if err != nil {
		return err
	}
	if naiveDomains {
		config.NaiveDomains = true
	}
	// Validate requires a target; the scan path never dereferences it.
	config.Target = "offline"
	config.Verbose = verbose
	config.Debug = debug

	m, err := monitor.New(monitor.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	if _, err := m.ScanHAR(args[0]); err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	config, err := buildConfig()
	if err != nil {
		return err
	}
	config.Target = "offline"
	if cmd.Flags().Changed("output-dir") {
		config.OutputDir = outputDir
	}
	if historyPath != "" {
		config.HistoryPath = historyPath
	}

	m, err := monitor.New(monitor.WithConfig(config))
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	records, err := m.History()
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	if len(records) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%s  %-24s %4d matches  stop=%s\n",
			rec.FinishedAt.Format("2006-01-02 15:04:05"),
			rec.Slug, rec.MatchCount, rec.StopReason)
		for _, d := range rec.Domains {
			fmt.Printf("    %s (%d)\n", d.Domain, d.Count)
		}
	}
	return nil
}

func buildConfig() (*monitor.Config, error) {
	if configFile == "" {
		return monitor.DefaultConfig(), nil
	}
	config, err := monitor.LoadFromFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return config, nil
}
