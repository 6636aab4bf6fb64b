package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hoopvalue/engine/internal/domain"
	"github.com/hoopvalue/engine/internal/fixture"
	"github.com/hoopvalue/engine/internal/httpapi"
	"github.com/hoopvalue/engine/internal/pipeline"
	"github.com/hoopvalue/engine/pkg/hoopvalue"
)

var (
	analyzeConfigPath  string
	analyzeFixturePath string
	analyzeMetricsAddr string
)

// analyzeOutput wraps RunOutput with the per-recommendation I1-I5
// validation results, exercising Validate end to end alongside
// Analyze without adding a second subcommand.
type analyzeOutput struct {
	domain.RunOutput
	Validations []domain.ValidationResult `json:"validations"`
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the projection/confidence/value pipeline over a fixture bundle",
	Long: `analyze reads an upstreams config file and a JSON fixture bundle
(run input plus every upstream record it needs) and prints the
resulting RunOutput, with each recommendation's I1-I5 validation
result attached, as JSON on stdout.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeConfigPath, "config", "", "Path to upstreams config YAML")
	analyzeCmd.Flags().StringVar(&analyzeFixturePath, "fixture", "", "Path to JSON fixture bundle")
	analyzeCmd.Flags().StringVar(&analyzeMetricsAddr, "metrics-addr", "", "If set, serve /healthz and /metrics on this address for the run's duration")
	_ = analyzeCmd.MarkFlagRequired("config")
	_ = analyzeCmd.MarkFlagRequired("fixture")

	_ = viper.BindPFlag("config", analyzeCmd.Flags().Lookup("config"))
	_ = viper.BindPFlag("fixture", analyzeCmd.Flags().Lookup("fixture"))
	_ = viper.BindPFlag("metrics-addr", analyzeCmd.Flags().Lookup("metrics-addr"))
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	configPath := viper.GetString("config")
	fixturePath := viper.GetString("fixture")
	metricsAddr := viper.GetString("metrics-addr")

	bundle, err := fixture.Load(fixturePath)
	if err != nil {
		return fmt.Errorf("load fixture bundle: %w", err)
	}
	markets, gameLog, teamForm := bundle.Providers()

	engine, err := hoopvalue.New(configPath, markets, gameLog, teamForm)
	if err != nil {
		return fmt.Errorf("construct engine: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := httpapi.NewMetrics(registry)

	if metricsAddr != "" {
		cfg := httpapi.DefaultConfig()
		cfg.Addr = metricsAddr
		srv := httpapi.NewServer(cfg, registry, func() (bool, map[string]string) { return true, nil })
		go func() {
			if err := srv.ListenAndServe(); err != nil {
				log.Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.Info().Str("addr", metricsAddr).Msg("serving /healthz and /metrics")
	}

	log.Info().Str("config", configPath).Str("fixture", fixturePath).Msg("running analyze")

	ctx := context.Background()
	start := time.Now()
	out, err := engine.Analyze(ctx, bundle.RunInput)
	if err != nil {
		return fmt.Errorf("analyze: %w", err)
	}
	metrics.ObserveRunOutput(time.Since(start), out)

	validations := make([]domain.ValidationResult, len(out.Recommendations))
	for i, rec := range out.Recommendations {
		validations[i] = pipeline.Validate(rec)
	}

	log.Info().Int("recommendations", len(out.Recommendations)).Int("errors", len(out.Errors)).Msg("analyze complete")

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(analyzeOutput{RunOutput: out, Validations: validations})
}
