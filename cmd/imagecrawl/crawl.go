package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/imagecrawl/internal/config"
	"github.com/nao1215/imagecrawl/internal/crawler"
	"github.com/nao1215/imagecrawl/internal/dedup"
	"github.com/nao1215/imagecrawl/internal/fetcher"
	"github.com/nao1215/imagecrawl/internal/index"
	"github.com/nao1215/imagecrawl/internal/inspect"
	"github.com/nao1215/imagecrawl/internal/log"
	"github.com/nao1215/imagecrawl/internal/metrics"
	"github.com/nao1215/imagecrawl/internal/model"
	"github.com/nao1215/imagecrawl/internal/report"
	"github.com/nao1215/imagecrawl/internal/search"
	"github.com/nao1215/imagecrawl/internal/storage"
)

var (
	// errTermsAborted is returned after the report when any term failed.
	errTermsAborted = errors.New("terms aborted")

	// errInterrupted is returned when the run was cancelled by a signal.
	errInterrupted = errors.New("crawl interrupted")
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl image search results into classification buckets",
		Long: `Crawl pages through the image search results of every configured term
and stores each result under its classification. Images whose content is
already in the index are skipped, so re-running a crawl only adds new images.

Terms come from the classifications mapping of the configuration file, or
from one or more --term flags which replace it.

A failing search query aborts only its own term. The run continues with the
next term and exits non-zero after printing the summary.

Examples:
  # Crawl everything in .imagecrawl
  imagecrawl crawl

  # Crawl two terms without a config file
  imagecrawl crawl --term ios=iphone --term android="galaxy s8"

  # Process four candidates at a time and write a JSON summary
  imagecrawl crawl --concurrency 4 --json -o summary.json

Configuration file (.imagecrawl) example:
  concurrency: 1
  classifications:
    ios: [iphone, iphone 7]
    android: [android phone, galaxy s8]`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	addConfigFlag(cmd)
	addStorageFlags(cmd)

	cmd.Flags().String("env-file", "",
		"File holding "+config.EnvEngineID+" and "+config.EnvAPIKey+" (default: .env if present)")
	cmd.Flags().StringArray("term", nil,
		"Search term as classification=term; repeatable, replaces the config file terms")
	cmd.Flags().String("queries-dir", "",
		"Directory for raw search responses (default: XDG data dir/queries)")
	cmd.Flags().String("endpoint", config.DefaultSearchEndpoint,
		"Search API endpoint")

	// Crawl behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each search query and image download")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of candidates processed at once within a page")
	cmd.Flags().Int("page-ceiling", config.DefaultPageCeiling,
		"Stop paging a term once the start index reaches this value")
	cmd.Flags().Float64("rate-limit", 0,
		"Maximum search API requests per second (0 disables pacing)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Largest image accepted, in bytes")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header for all requests")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy for image downloads (e.g., 127.0.0.1:1080)")
	cmd.Flags().String("digest", string(config.DefaultDigest),
		"Content digest for new indexes: sha256 or sha3-256")
	cmd.Flags().Bool("no-exif", false,
		"Do not extract EXIF tags from stored images")

	// Observability flags
	cmd.Flags().String("log-file", "",
		"Also write JSON logs to this file, with rotation")
	cmd.Flags().String("metrics-addr", "",
		"Serve Prometheus metrics on this address during the crawl (e.g., 127.0.0.1:9090)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON summary (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown summary (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write summary to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	// Credentials are resolved before anything touches the network or disk.
	cfg.Credentials, err = config.LoadCredentials(cfg.EnvFile)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, logCloser, err := log.NewLogger(log.Options{
		Writer:     cmd.ErrOrStderr(),
		Verbose:    cfg.Verbose,
		File:       cfg.LogFile,
		MaxSizeMB:  config.DefaultLogMaxSizeMB,
		MaxBackups: config.DefaultLogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, finishing in-flight candidates...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout())
}

// buildConfig creates a Config from the configuration file and crawl flags.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := loadBaseConfig(cmd)
	if err != nil {
		return nil, err
	}

	for name, dst := range map[string]*string{
		"env-file":     &cfg.EnvFile,
		"queries-dir":  &cfg.QueriesDir,
		"endpoint":     &cfg.SearchEndpoint,
		"user-agent":   &cfg.UserAgent,
		"proxy":        &cfg.ProxyAddress,
		"log-file":     &cfg.LogFile,
		"metrics-addr": &cfg.MetricsAddr,
	} {
		if err := stringFlag(cmd, name, dst); err != nil {
			return nil, err
		}
	}

	if err := intFlag(cmd, "concurrency", &cfg.Concurrency); err != nil {
		return nil, err
	}
	if err := intFlag(cmd, "page-ceiling", &cfg.PageCeiling); err != nil {
		return nil, err
	}

	if changed(cmd, "timeout") {
		if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if changed(cmd, "rate-limit") {
		if cfg.RateLimit, err = cmd.Flags().GetFloat64("rate-limit"); err != nil {
			return nil, err
		}
	}
	if changed(cmd, "max-body-size") {
		if cfg.MaxBodySize, err = cmd.Flags().GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}

	var digest string
	if err := stringFlag(cmd, "digest", &digest); err != nil {
		return nil, err
	}
	if digest != "" {
		cfg.Digest = model.DigestAlgorithm(digest)
	}

	noExif, err := cmd.Flags().GetBool("no-exif")
	if err != nil {
		return nil, err
	}
	if noExif {
		cfg.InspectExif = false
	}

	terms, err := cmd.Flags().GetStringArray("term")
	if err != nil {
		return nil, err
	}
	if len(terms) > 0 {
		// Terms are grouped by classification in first-seen order, the
		// same traversal a config file plan produces.
		var plan config.Plan
		slot := make(map[model.Classification]int)
		for _, value := range terms {
			st, err := config.ParseTermFlag(value)
			if err != nil {
				return nil, err
			}
			i, ok := slot[st.Classification]
			if !ok {
				i = len(plan)
				slot[st.Classification] = i
				plan = append(plan, config.ClassificationTerms{Classification: st.Classification})
			}
			plan[i].Terms = append(plan[i].Terms, st.Term)
		}
		cfg.Plan = plan.Terms()
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("output")
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// runCrawl wires the components and executes the plan.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) error {
	logger.Info("starting imagecrawl",
		"version", getVersion(),
		"terms", len(cfg.Plan),
		"imagesDir", cfg.ImagesDir,
		"queriesDir", cfg.QueriesDir,
		"indexDir", cfg.IndexDir,
	)

	idxOpts := index.DefaultOptions()
	idxOpts.Digest = cfg.Digest
	idx, err := index.Open(cfg.IndexDir, idxOpts)
	if err != nil {
		return fmt.Errorf("failed to open index: %w", err)
	}
	defer idx.Close()
	logger.Debug("index opened", "path", idx.Path(), "digest", idx.Digest())

	fetchOpts := []fetcher.Option{
		fetcher.WithTimeout(cfg.Timeout),
		fetcher.WithUserAgent(cfg.UserAgent),
		fetcher.WithMaxBodySize(cfg.MaxBodySize),
	}
	if cfg.ProxyAddress != "" {
		fetchOpts = append(fetchOpts, fetcher.WithProxy(cfg.ProxyAddress))
	}
	f, err := fetcher.New(fetchOpts...)
	if err != nil {
		return fmt.Errorf("failed to create fetcher: %w", err)
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "address", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	dedupOpts := []dedup.Option{
		dedup.WithDigest(idx.Digest()),
		dedup.WithMetrics(m),
		dedup.WithLogger(logger),
	}
	if cfg.InspectExif {
		dedupOpts = append(dedupOpts, dedup.WithInspector(inspect.New()))
	}
	d := dedup.New(f, idx, storage.NewImageStore(cfg.ImagesDir), dedupOpts...)

	p := search.NewPaginator(cfg.Credentials,
		search.WithEndpoint(cfg.SearchEndpoint),
		search.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		search.WithRateLimit(cfg.RateLimit, 1),
		search.WithPageCeiling(cfg.PageCeiling),
		search.WithLogger(logger),
	)

	orchestrator := crawler.NewOrchestrator(p, d, storage.NewQueryLog(cfg.QueriesDir),
		crawler.WithConcurrency(cfg.Concurrency),
		crawler.WithLogger(logger),
		crawler.WithMetrics(m),
	)

	summary := orchestrator.Run(ctx, cfg.Plan)

	if err := outputReport(cfg, summary, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if ctx.Err() != nil {
		return errInterrupted
	}
	if aborted := summary.Aborted(); len(aborted) > 0 {
		return fmt.Errorf("%d of %d %w", len(aborted), len(summary.Terms), errTermsAborted)
	}
	return nil
}

// outputReport outputs the run summary in the requested format.
func outputReport(cfg *config.Config, summary *model.RunSummary, stdout io.Writer) error {
	output := stdout
	if cfg.ReportFile != "" {
		// Create directories if they don't exist
		dir := filepath.Dir(cfg.ReportFile)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}

		f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	var w report.Writer
	switch {
	case cfg.JSONReport:
		w = report.NewJSONWriter(output, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		w = report.NewMarkdownWriter(output)
	default:
		w = report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
	_, err := w.Write(summary)
	return err
}
