package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "streamlens",
	Short: "Static analyzer for Kafka producers and consumers",
	Long: `streamlens scans heterogeneous source trees, extracts Kafka producer and
consumer call sites across Java, Python, .NET, Go and Node/TypeScript
projects, infers value schemas, tags likely PII fields and classifies each
producer by its schema-governance posture.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "log verbosity (debug, info, warn, error)")
	viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.SetEnvPrefix("STREAMLENS")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

// newLogger builds the process logger honoring the configured level. Logs go
// to stderr so the JSON report on stdout stays machine-readable.
func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	level, err := zap.ParseAtomicLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, err
	}
	cfg.Level = level
	return cfg.Build()
}
