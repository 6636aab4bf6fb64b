// Command hoopvalue is the thin cmd/ entrypoint exercising the
// pipeline end to end, kept to exactly one subcommand (analyze) per
// SPEC_FULL.md §4. Grounded on cryptorun's cmd/cryptorun root.go/main.go
// (a package-level rootCmd, subcommands registering themselves via
// init, zerolog console output).
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "hoopvalue",
	Short: "hoopvalue basketball decision pipeline",
	Long: `hoopvalue turns per-game betting markets and player evidence into
tiered, bounded-concurrency-computed recommendations.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		configureLogging()
	},
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")

	viper.SetEnvPrefix("HOOPVALUE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("log-level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func configureLogging() {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}
