package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	httpserver "github.com/fyrsmithlabs/renewaldesk/internal/http"
)

func newHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check renewaldesk server health",
		Long: `Check the health status of the renewaldesk HTTP server.

Examples:
  deskctl health
  deskctl health --server http://localhost:9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.call(http.MethodGet, "/health", "", nil)
			if err != nil {
				return err
			}
			var health httpserver.HealthResponse
			if err := json.Unmarshal(data, &health); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Server status: %s (commit %s)\n", health.Status, health.Commit)
			return nil
		},
	}
}

func newLLMHealthCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "llm-health",
		Short: "Check that the configured model is available",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := opts.call(http.MethodGet, "/llm/health", "", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newIngestCmd(opts *options) *cobra.Command {
	var contract, invoices, usage string
	cmd := &cobra.Command{
		Use:   "ingest <vendor-id>",
		Short: "Upload vendor documents",
		Long: `Upload a vendor's contract, invoices and usage files. At least one
file is required; files not given keep their previous upload.

Examples:
  deskctl ingest acme --contract acme.pdf --invoices invoices.csv --usage usage.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			files := map[string]string{"contract": contract, "invoices": invoices, "usage": usage}
			body, contentType, err := multipartBody(files)
			if err != nil {
				return err
			}
			data, err := opts.call(http.MethodPost, "/ingest?vendor_id="+url.QueryEscape(args[0]), contentType, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&contract, "contract", "", "contract file")
	cmd.Flags().StringVar(&invoices, "invoices", "", "invoices CSV")
	cmd.Flags().StringVar(&usage, "usage", "", "usage CSV")
	return cmd
}

// multipartBody builds a form with one part per non-empty path, in the
// contract, invoices, usage order.
func multipartBody(files map[string]string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	n := 0
	for _, field := range []string{"contract", "invoices", "usage"} {
		path := files[field]
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read %s file %s: %w", field, path, err)
		}
		part, err := w.CreateFormFile(field, filepath.Base(path))
		if err != nil {
			return nil, "", fmt.Errorf("failed to create form part: %w", err)
		}
		if _, err := part.Write(data); err != nil {
			return nil, "", fmt.Errorf("failed to write form part: %w", err)
		}
		n++
	}
	if n == 0 {
		return nil, "", fmt.Errorf("provide at least one of --contract, --invoices or --usage")
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func newBriefCmd(opts *options) *cobra.Command {
	var req httpserver.BriefRequest
	cmd := &cobra.Command{
		Use:   "brief <vendor-id>",
		Short: "Generate a renewal brief",
		Long: `Generate a renewal brief for a vendor from its ingested documents.
Provider flags override the server's LLM settings for this request only.

Examples:
  deskctl brief acme
  deskctl brief acme --provider ollama --model llama3.1:8b`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := json.Marshal(req)
			if err != nil {
				return fmt.Errorf("failed to marshal request: %w", err)
			}
			data, err := opts.call(http.MethodPost, "/renewal-brief?vendor_id="+url.QueryEscape(args[0]),
				"application/json", bytes.NewReader(payload))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().StringVar(&req.LLMProvider, "provider", "", "llm provider (mock or ollama)")
	cmd.Flags().StringVar(&req.OllamaModel, "model", "", "ollama model")
	cmd.Flags().StringVar(&req.OllamaBaseURL, "base-url", "", "ollama server URL")
	cmd.Flags().BoolVar(&req.Refresh, "refresh", false, "request fresh retrieval")
	return cmd
}

func newTraceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "trace <request-id>",
		Short: "Show the audit record of a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := opts.call(http.MethodGet, "/debug/trace/"+url.PathEscape(args[0]), "", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
}

func newHistoryCmd(opts *options) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history <vendor-id>",
		Short: "List past briefs for a vendor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/vendors/" + url.PathEscape(args[0]) + "/history"
			if limit > 0 {
				path += fmt.Sprintf("?limit=%d", limit)
			}
			data, err := opts.call(http.MethodGet, path, "", nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), data)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records")
	return cmd
}
