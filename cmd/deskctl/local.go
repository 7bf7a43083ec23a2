package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/renewaldesk/internal/config"
	"github.com/fyrsmithlabs/renewaldesk/internal/eval"
	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
	httpserver "github.com/fyrsmithlabs/renewaldesk/internal/http"
	"github.com/fyrsmithlabs/renewaldesk/internal/logging"
	"github.com/fyrsmithlabs/renewaldesk/internal/metrics"
	"github.com/fyrsmithlabs/renewaldesk/internal/services"
	"github.com/fyrsmithlabs/renewaldesk/internal/store"
)

// openRegistry loads configuration and wires services for commands that
// run without a server. Metrics go to a private registry.
func (o *options) openRegistry(ctx context.Context) (*services.Registry, *logging.Logger, error) {
	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	logCfg, err := logging.FromLogConfig("error", "console", false)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(logCfg, nil)
	if err != nil {
		return nil, nil, err
	}
	reg, err := services.New(ctx, cfg, services.Options{
		Logger:  logger,
		Metrics: metrics.New(prometheus.NewRegistry()),
		Local:   true,
	})
	if err != nil {
		return nil, nil, err
	}
	return reg, logger, nil
}

func newLoadSamplesCmd(opts *options) *cobra.Command {
	var vendorID, examplesDir string
	cmd := &cobra.Command{
		Use:   "load-samples",
		Short: "Copy the bundled sample documents into the store",
		Long: `Copy sample_contract.pdf, invoices.csv and usage.csv from the examples
directory into the configured document store under a vendor id. No server
is needed.

Examples:
  deskctl load-samples
  deskctl load-samples --vendor-id acme --examples-dir ./examples`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			reg, _, err := opts.openRegistry(ctx)
			if err != nil {
				return err
			}
			defer reg.Close()

			dir := examplesDir
			if dir == "" {
				dir = reg.Config().Storage.ExamplesDir
			}
			uploads, err := sampleUploads(dir)
			if err != nil {
				return err
			}
			manifest, err := store.Ingest(ctx, reg.Store(), vendorID, uploads)
			if err != nil {
				return fmt.Errorf("storing samples: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), httpserver.IngestResponse{
				Status:      "loaded",
				VendorID:    vendorID,
				Message:     fmt.Sprintf("Loaded %d sample files", len(uploads)),
				ObjectStore: reg.Store().Bucket(),
				Files:       manifest,
			})
		},
	}
	cmd.Flags().StringVar(&vendorID, "vendor-id", httpserver.DefaultDemoVendor, "vendor id to load samples under")
	cmd.Flags().StringVar(&examplesDir, "examples-dir", "", "directory holding the sample files (default from config)")
	return cmd
}

// sampleUploads reads whichever sample files exist in dir.
func sampleUploads(dir string) ([]store.Upload, error) {
	names := map[evidence.Kind]string{
		evidence.KindContract: store.SampleContract,
		evidence.KindInvoices: store.SampleInvoices,
		evidence.KindUsage:    store.SampleUsage,
	}
	var uploads []store.Upload
	for _, kind := range evidence.Kinds() {
		path := filepath.Join(dir, names[kind])
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		uploads = append(uploads, store.Upload{Label: kind.String(), Filename: names[kind], Data: data})
	}
	if len(uploads) == 0 {
		return nil, fmt.Errorf("no sample files found in %s", dir)
	}
	return uploads, nil
}

func newEvalCmd(opts *options) *cobra.Command {
	var (
		casesPath    string
		expectedPath string
		reportPath   string
		baseDir      string
		smoke        bool
		concurrency  int
	)
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run golden cases through a local orchestrator",
		Long: `Run the golden cases through the configured orchestrator and compare
each brief against the expected field values. The report is written as
JSON and the summary is printed.

Examples:
  deskctl eval
  deskctl eval --smoke
  deskctl eval --cases eval/golden/cases.jsonl --expected eval/golden/expected.jsonl`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cases, err := eval.LoadCases(casesPath)
			if err != nil {
				return fmt.Errorf("loading cases: %w", err)
			}
			expected, err := eval.LoadExpected(expectedPath)
			if err != nil {
				return fmt.Errorf("loading expected results: %w", err)
			}

			harnessOpts := []eval.Option{
				eval.WithSmoke(smoke),
				eval.WithConcurrency(concurrency),
				eval.WithBaseDir(baseDir),
			}
			var gen eval.Generator
			if !smoke {
				reg, logger, err := opts.openRegistry(ctx)
				if err != nil {
					return err
				}
				defer reg.Close()
				gen = reg.Briefs()
				harnessOpts = append(harnessOpts, eval.WithLogger(logger.Underlying().Named("eval")))
			}

			report, err := eval.NewHarness(gen, harnessOpts...).Run(ctx, cases, expected)
			if err != nil {
				return err
			}
			if err := eval.WriteReport(reportPath, report); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report written to %s\n", reportPath)
			return writeJSON(cmd.OutOrStdout(), report.Summary)
		},
	}
	cmd.Flags().StringVar(&casesPath, "cases", "eval/golden/cases.jsonl", "JSONL file of cases")
	cmd.Flags().StringVar(&expectedPath, "expected", "eval/golden/expected.jsonl", "JSONL file of expected results")
	cmd.Flags().StringVar(&reportPath, "report", ".reports/eval-summary.json", "report output path")
	cmd.Flags().StringVar(&baseDir, "base-dir", "", "directory relative input paths resolve against")
	cmd.Flags().BoolVar(&smoke, "smoke", false, "only check that case inputs can be read")
	cmd.Flags().IntVar(&concurrency, "concurrency", eval.DefaultConcurrency, "cases run at once")
	return cmd
}
