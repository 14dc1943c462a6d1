package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"CryptoVol/internal/di"
	"CryptoVol/pkg/config"
	"CryptoVol/pkg/frame"
	"CryptoVol/pkg/samplegen"

	"github.com/spf13/cobra"
)

var (
	configPath   string
	dataPath     string
	artifactsDir string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "app",
		Short:         "Crypto volatility feature, training and serving pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "config file path (empty for defaults)")
	rootCmd.PersistentFlags().StringVar(&dataPath, "data", "", "raw price file, overrides source.path")
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts-dir", "", "artifact root, overrides artifacts.dir")

	rootCmd.AddCommand(featuresCmd())
	rootCmd.AddCommand(trainCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sampleCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	if dataPath != "" {
		cfg.Source.Type = "file"
		cfg.Source.Path = dataPath
	}
	if artifactsDir != "" {
		cfg.Artifacts.Dir = artifactsDir
		cfg.Artifacts.PredictionsDir = filepath.Join(artifactsDir, "predictions")
	}
	return cfg, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func featuresCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "features",
		Short: "Ingest the raw series and write the feature tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jobs, cleanup, err := di.InitializeJobs(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()

			tables, err := jobs.Builder.Build(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "feature rows: %d, model-ready rows: %d\n", tables.Full.Len(), tables.ModelReady.Len())
			return nil
		},
	}
}

func trainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Build features, train every candidate and persist the best pipeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			jobs, cleanup, err := di.InitializeJobs(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()

			ctx, stop := signalContext()
			defer stop()

			report, err := jobs.Pipeline.Run(ctx)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}

func serveCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upload form and the prediction API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if port > 0 {
				cfg.Server.Port = port
			}
			app, cleanup, err := di.InitializeServer(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()
			return app.Run()
		},
	}
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port, overrides server.port")
	return cmd
}

func sampleCmd() *cobra.Command {
	opts := samplegen.DefaultOptions()
	var out string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write a synthetic raw price file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Days < 1 || len(opts.Assets) == 0 {
				return fmt.Errorf("need at least one asset and one day")
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			fh, err := os.Create(out)
			if err != nil {
				return err
			}
			defer fh.Close()

			w := bufio.NewWriter(fh)
			f := samplegen.Generate(opts)
			if err := frame.WriteCSV(w, f); err != nil {
				return err
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", f.Len(), out)
			return fh.Close()
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "data/crypto_prices.csv", "output CSV path")
	cmd.Flags().StringSliceVar(&opts.Assets, "assets", opts.Assets, "asset names")
	cmd.Flags().IntVar(&opts.Days, "days", opts.Days, "days per asset")
	cmd.Flags().Int64Var(&opts.Seed, "seed", opts.Seed, "random seed")
	return cmd
}
