// Package cmd defines and implements the CLI commands for the blogsearch executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/blog-search/internal/app"
	"github.com/JakeFAU/blog-search/internal/config"
	"github.com/JakeFAU/blog-search/internal/crawler"
	"github.com/JakeFAU/blog-search/internal/index"
	"github.com/JakeFAU/blog-search/internal/logging"
	"github.com/JakeFAU/blog-search/internal/search"
)

type appKeyType string

const appKey appKeyType = "app"

// App is the subset of *app.App the commands use, so tests can inject a fake.
type App interface {
	Logger() *zap.Logger
	Ingest(ctx context.Context, root string) (crawler.IngestSummary, error)
	Index(ctx context.Context) (index.Summary, error)
	Search(ctx context.Context, query string, k int) ([]search.Result, string, error)
	Check(ctx context.Context) (app.Report, error)
	Serve(ctx context.Context) error
	Close(ctx context.Context) error
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "blogsearch",
		Short: "Crawl a blog and serve hybrid lexical and vector search over its articles.",
		Long: `blogsearch walks a paginated blog listing, extracts each article into the
article store, indexes the articles with embeddings into Elasticsearch and answers
hybrid keyword and semantic queries from the command line or over HTTP.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, ok := cmd.Context().Value(appKey).(App)
			if !ok || appInstance == nil {
				return nil
			}
			return appInstance.Close(context.WithoutCancel(cmd.Context()))
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./blogsearch.yaml)")

	cmd.AddCommand(
		newIngestCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newServeCmd(),
		newCheckCmd(),
	)
	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		os.Exit(1)
	}
}
