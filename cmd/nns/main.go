// Command nns scores every repetition of a movement dataset against its
// template trial and prints one agreement score per repetition.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahrav/go-nns/infrastructure/middleware"
	"github.com/ahrav/go-nns/infrastructure/store"
	"github.com/ahrav/go-nns/infrastructure/trialdata"
	"github.com/ahrav/go-nns/internal/application"
	"github.com/ahrav/go-nns/internal/domain"
	"github.com/ahrav/go-nns/internal/ports"
)

// errUsage reports invalid command-line arguments.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout)
	stop()

	if errors.Is(err, errUsage) {
		os.Exit(2)
	}
	if err != nil {
		log.Fatal(err)
	}
}

// run executes one analysis. Resources opened here are released before it
// returns, whatever the outcome.
func run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet(filepath.Base(os.Args[0]), flag.ContinueOnError)
	var (
		configPath  = fs.String("config", "", "Analysis configuration YAML (defaults to the quaternion analysis)")
		dbPath      = fs.String("db", "", "SQLite database to store the report in (disabled when empty)")
		pairingsOut = fs.String("pairings-out", "", "Write per-pairing scores as CSV to this file")
		metricsAddr = fs.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <dataset-dir>\n", fs.Name())
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errUsage
	}
	datasetDir := fs.Arg(0)

	reg := prometheus.NewRegistry()
	metrics := middleware.NewPrometheusMetrics(reg)
	if *metricsAddr != "" {
		go serveMetrics(*metricsAddr, reg)
	}

	batch, err := loadAggregator(ctx, *configPath, metrics)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var reports ports.ReportStore
	if *dbPath != "" {
		db, err := store.Open(*dbPath)
		if err != nil {
			return fmt.Errorf("failed to open report store: %w", err)
		}
		defer db.Close()
		reports = db
	}

	source := trialdata.NewLoader("", batch.Config().Channels...)
	analyzer, err := application.NewAnalyzer(source, batch, reports)
	if err != nil {
		return fmt.Errorf("failed to create analyzer: %w", err)
	}

	report, err := analyzer.Analyze(ctx, datasetDir)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	printReport(stdout, report)

	if *pairingsOut != "" {
		if err := writePairings(*pairingsOut, report.Scores); err != nil {
			return fmt.Errorf("failed to write pairing scores: %w", err)
		}
	}
	return nil
}

// loadAggregator builds the batch aggregator from path, or from the default
// configuration when path is empty.
func loadAggregator(ctx context.Context, path string, metrics ports.MetricsCollector) (*application.BatchAggregator, error) {
	registry := application.NewDefaultUnitRegistry()
	opts := []application.BatchOption{
		application.WithMetrics(metrics),
		application.WithUnitWrapper(middleware.Wrapper(metrics)),
	}

	if path == "" {
		return application.NewBatchAggregator(application.DefaultAnalysisConfig(), registry, opts...)
	}

	loader, err := application.NewConfigLoader(registry, opts...)
	if err != nil {
		return nil, err
	}
	return loader.LoadFromFile(ctx, path)
}

func printReport(w io.Writer, report domain.Report) {
	fmt.Fprintf(w, "The agreement scores for the %d considered repetitions with respect to the template are:\n",
		len(report.Scores))
	for _, s := range report.Scores {
		if s.Err != nil {
			fmt.Fprintf(w, "  %-10s      n/a  (%v)\n", s.TrialID, s.Err)
			continue
		}
		line := fmt.Sprintf("  %-10s %8.3f", s.TrialID, s.Score)
		if s.Failed > 0 {
			line += fmt.Sprintf("  (%d of %d pairings failed)", s.Failed, len(s.Pairings))
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Run ID: %s\n", report.RunID)
}

func writePairings(path string, scores []domain.RepetitionScore) error {
	f, err := os.Create(filepath.Clean(path))
	if err != nil {
		return err
	}
	if err := trialdata.WritePairingScores(f, scores); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("Metrics server stopped: %v", err)
	}
}
