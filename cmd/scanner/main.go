package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IvanShishkin/filemq/internal/config"
	"github.com/IvanShishkin/filemq/internal/core"
	"github.com/IvanShishkin/filemq/internal/logging"
	"github.com/IvanShishkin/filemq/internal/queue"
	"github.com/IvanShishkin/filemq/internal/testtree"
	"github.com/IvanShishkin/filemq/pkg/models"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[38;5;220m"
	colorGray   = "\033[38;5;245m"
	colorCyan   = "\033[36m"
)

var (
	version = "0.1.0"
	logger  *zap.Logger
	verbose bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "filemq",
		Short: "filemq - Directory scanner publishing file metadata to RabbitMQ",
		Long: `Recursively scans directory trees, extracts per-file metadata (optionally
a SHA-256 content hash), and publishes one JSON message per file to a
durable RabbitMQ queue.`,
		Version: version,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	// Global verbose flag
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	// Add commands
	rootCmd.AddCommand(scanCmd())
	rootCmd.AddCommand(readCmd())
	rootCmd.AddCommand(genCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// brokerFlags is the set of connection flags shared by scan and read
type brokerFlags struct {
	host     string
	port     int
	user     string
	password string
	queue    string
}

func (f *brokerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.host, "host", "", "RabbitMQ host (default: localhost)")
	cmd.Flags().IntVar(&f.port, "port", 0, "RabbitMQ port (default: 5672)")
	cmd.Flags().StringVar(&f.user, "user", "", "RabbitMQ username (default: guest)")
	cmd.Flags().StringVar(&f.password, "password", "", "RabbitMQ password (default: guest)")
	cmd.Flags().StringVar(&f.queue, "queue", "", "Queue name (default: file_scan_queue)")
}

func (f *brokerFlags) apply(cfg *config.Config) {
	if f.host != "" {
		cfg.Host = f.host
	}
	if f.port > 0 {
		cfg.Port = f.port
	}
	if f.user != "" {
		cfg.Username = f.user
	}
	if f.password != "" {
		cfg.Password = f.password
	}
	if f.queue != "" {
		cfg.QueueName = f.queue
	}
}

// scanCmd creates the scan command
func scanCmd() *cobra.Command {
	var (
		broker        brokerFlags
		extensions    []string
		calculateHash bool
		logLevel      string
		logFile       string
	)

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Scan directories and publish file metadata to RabbitMQ",
		Long: `Recursively scan one or more directories. For every discovered file the
scanner extracts metadata and publishes a JSON message to the queue.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load configuration
			cfg, err := config.LoadConfig()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
				return err
			}

			// Override config with CLI flags
			broker.apply(cfg)
			if len(extensions) > 0 {
				cfg.Extensions = extensions
			}
			if calculateHash {
				cfg.CalculateHash = true
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFile != "" {
				cfg.LogFile = logFile
			}
			if verbose {
				cfg.LogLevel = "debug"
			}

			// Initialize logger
			logger, err = logging.NewLogger(cfg.LogLevel, cfg.LogFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
				return err
			}
			defer logger.Sync()

			printScanBanner(args, cfg)

			// Cancellation on Ctrl-C; the broker connection is always closed
			// and in-flight statistics are still logged.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			publisher := queue.NewPublisher(cfg, logger)
			scanner := core.NewScanner(cfg, logger, publisher)

			scanner.SetProgressCallback(func(stats models.ScanStats) {
				fmt.Printf("  %sProgress:%s  %d processed, %d failed, %d skipped\n",
					colorGray, colorReset, stats.Processed, stats.Failed, stats.Skipped)
			})

			start := time.Now()
			stats, err := scanner.Run(ctx, args, cfg.Extensions)
			printSummary(stats, time.Since(start))

			if err != nil {
				return fmt.Errorf("scan finished with errors: %w", err)
			}
			return nil
		},
	}

	broker.register(cmd)
	cmd.Flags().StringSliceVar(&extensions, "extensions", nil, "Filter by file extensions (comma-separated, e.g. .txt,.pdf)")
	cmd.Flags().BoolVar(&calculateHash, "hash", false, "Calculate SHA-256 hash for files up to the size limit")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	cmd.Flags().StringVar(&logFile, "log-file", "", "Also write debug logs to this file")

	return cmd
}

// readCmd creates the read command, a debugging aid that fetches messages
// from the queue so scan output can be verified.
func readCmd() *cobra.Command {
	var (
		broker brokerFlags
		count  int
		ack    bool
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read messages from the queue for verification",
		Long:  `Fetch up to N messages from the scan queue and print them. Messages stay in the queue unless --ack is given.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			broker.apply(cfg)

			level := "warn"
			if verbose {
				level = "debug"
			}
			logger, err = logging.NewLogger(level, "")
			if err != nil {
				return err
			}
			defer logger.Sync()

			consumer := queue.NewConsumer(cfg, logger)
			if err := consumer.Connect(); err != nil {
				fmt.Printf("%s✗ %v%s\n", colorRed, err, colorReset)
				fmt.Println("\nMake sure RabbitMQ is running.")
				return err
			}
			defer consumer.Disconnect()

			fmt.Printf("Reading up to %d messages from queue: %s%s%s\n\n", count, colorBold, cfg.QueueName, colorReset)

			read, err := consumer.Fetch(count, ack, func(body []byte) {
				var pretty map[string]any
				if jsonErr := json.Unmarshal(body, &pretty); jsonErr == nil {
					out, _ := json.MarshalIndent(pretty, "", "  ")
					fmt.Println(string(out))
				} else {
					fmt.Println(string(body))
				}
				fmt.Println()
			})
			if err != nil {
				return err
			}

			fmt.Printf("%sTotal messages read: %d%s\n", colorGray, read, colorReset)
			if !ack && read > 0 {
				fmt.Printf("%sMessages were not removed from the queue (use --ack to remove)%s\n", colorGray, colorReset)
			}
			return nil
		},
	}

	broker.register(cmd)
	cmd.Flags().IntVar(&count, "count", 10, "Number of messages to read")
	cmd.Flags().BoolVar(&ack, "ack", false, "Acknowledge (remove) messages after reading")

	return cmd
}

// genCmd creates the gen command, which writes a test tree for exercising
// the scanner against a known directory shape.
func genCmd() *cobra.Command {
	var (
		manifestPath string
		seed         int64
	)

	cmd := &cobra.Command{
		Use:   "gen [dir]",
		Short: "Generate a test directory tree with random files",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if verbose {
				level = "debug"
			}
			var err error
			logger, err = logging.NewLogger(level, "")
			if err != nil {
				return err
			}
			defer logger.Sync()

			manifest := testtree.DefaultManifest()
			if manifestPath != "" {
				manifest, err = testtree.LoadManifest(manifestPath)
				if err != nil {
					return err
				}
			}

			gen := testtree.NewGenerator(logger, seed)
			total, err := gen.Generate(args[0], manifest)
			if err != nil {
				return err
			}

			fmt.Printf("%s✓%s Created %s%d%s files under %s\n", colorGreen, colorReset, colorBold, total, colorReset, args[0])
			return nil
		},
	}

	cmd.Flags().StringVar(&manifestPath, "manifest", "", "YAML manifest describing the tree (default: built-in layout)")
	cmd.Flags().Int64Var(&seed, "seed", time.Now().UnixNano(), "Random seed for file contents")

	return cmd
}

// printScanBanner prints the startup banner
func printScanBanner(paths []string, cfg *config.Config) {
	fmt.Println()
	fmt.Printf("%sfilemq v%s%s\n", colorGray, version, colorReset)
	fmt.Println()
	for _, p := range paths {
		fmt.Printf("  %sScanning:%s  %s\n", colorGray, colorReset, p)
	}
	fmt.Printf("  %sBroker:%s    %s:%d\n", colorGray, colorReset, cfg.Host, cfg.Port)
	fmt.Printf("  %sQueue:%s     %s\n", colorGray, colorReset, cfg.QueueName)
	if len(cfg.Extensions) > 0 {
		fmt.Printf("  %sFilter:%s    %v\n", colorGray, colorReset, cfg.Extensions)
	}
	if cfg.CalculateHash {
		fmt.Printf("  %sHashing:%s   enabled\n", colorGray, colorReset)
	}
	fmt.Println()
}

// printSummary prints the final statistics block
func printSummary(stats models.ScanStats, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("%s%sScan summary%s\n", colorBold, colorCyan, colorReset)
	fmt.Printf("  %sProcessed:%s %d\n", colorGray, colorReset, stats.Processed)
	if stats.Failed > 0 {
		fmt.Printf("  %sFailed:%s    %s%d%s\n", colorGray, colorReset, colorRed, stats.Failed, colorReset)
	} else {
		fmt.Printf("  %sFailed:%s    %d\n", colorGray, colorReset, stats.Failed)
	}
	fmt.Printf("  %sSkipped:%s   %d\n", colorGray, colorReset, stats.Skipped)
	fmt.Printf("  %sDuration:%s  %.2fs\n", colorGray, colorReset, elapsed.Seconds())
	fmt.Println()
}
