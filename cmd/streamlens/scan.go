package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/streamlens/streamlens/engine"
	"github.com/streamlens/streamlens/index"
)

var scanCmd = &cobra.Command{
	Use:   "scan <root>",
	Short: "Scan a source tree and print the report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runScan,
}

func init() {
	f := scanCmd.Flags()
	f.String("scope", "", "restrict the scan to a subdirectory of the root")
	f.Int("concurrency", engine.DefaultConcurrency, "number of concurrent file scanners")
	f.StringSlice("exclude", nil, "additional directory names to skip")
	f.Bool("include-tests", false, "scan test files too")
	f.Int64("max-file-size", index.DefaultMaxFileSize, "per-file size budget in bytes")
	f.Bool("pretty", true, "indent the JSON report")

	viper.BindPFlags(f)
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng, err := engine.New(
		engine.WithLogger(logger),
		engine.WithConcurrency(viper.GetInt("concurrency")),
		engine.WithScopePath(viper.GetString("scope")),
		engine.WithIndexerOptions(
			index.WithExcludes(viper.GetStringSlice("exclude")...),
			index.WithSkipTests(!viper.GetBool("include-tests")),
			index.WithMaxFileSize(viper.GetInt64("max-file-size")),
		),
	)
	if err != nil {
		return fmt.Errorf("init engine: %w", err)
	}

	report, err := eng.Scan(ctx, args[0])
	if err != nil {
		return fmt.Errorf("scan %v: %w", args[0], err)
	}
	logger.Info("rendering report",
		zap.Int("callSites", len(report.CallSites)),
		zap.Int("classifications", len(report.Classifications)))

	encoder := json.NewEncoder(os.Stdout)
	if viper.GetBool("pretty") {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(report)
}
