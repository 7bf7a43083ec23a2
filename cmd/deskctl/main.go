// Package main implements deskctl, the command-line client for the
// renewaldesk server plus local sample loading and eval runs.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// version information
var version = "dev"

const defaultServerURL = "http://localhost:8080"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// options are the persistent flags shared by every command.
type options struct {
	serverURL  string
	configPath string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "deskctl",
		Short: "CLI for the renewaldesk server",
		Long: `deskctl talks to a running renewaldesk server to ingest vendor
documents and request renewal briefs. The load-samples and eval commands
run locally against the configured store and orchestrator.`,
		Version:      version,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.serverURL, "server", defaultServerURL, "renewaldesk server URL")
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file for local commands")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Minute, "HTTP request timeout")

	root.AddCommand(
		newHealthCmd(opts),
		newLLMHealthCmd(opts),
		newIngestCmd(opts),
		newBriefCmd(opts),
		newTraceCmd(opts),
		newHistoryCmd(opts),
		newLoadSamplesCmd(opts),
		newEvalCmd(opts),
	)
	return root
}

// apiError is echo's default error body.
type apiError struct {
	Message string `json:"message"`
}

// call sends a request to the server and returns the raw response body.
// Non-2xx responses become errors carrying the server's message.
func (o *options) call(method, path, contentType string, body io.Reader) ([]byte, error) {
	url := strings.TrimRight(o.serverURL, "/") + path
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	client := &http.Client{Timeout: o.timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	return data, nil
}

// printJSON writes data indented, or as-is when it is not JSON.
func printJSON(w io.Writer, data []byte) error {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		_, err = w.Write(data)
		return err
	}
	buf.WriteByte('\n')
	_, err := buf.WriteTo(w)
	return err
}

// writeJSON encodes v indented.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
