package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/renewaldesk/internal/evidence"
	"github.com/fyrsmithlabs/renewaldesk/internal/history"
	"github.com/fyrsmithlabs/renewaldesk/internal/llm"
	"github.com/fyrsmithlabs/renewaldesk/internal/store"
	"github.com/fyrsmithlabs/renewaldesk/internal/synthesis"
)

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Commit: s.config.CommitSHA})
}

// handleIngest stores the uploaded documents and merges them into the
// vendor manifest.
func (s *Server) handleIngest(c echo.Context) error {
	vendorID := c.QueryParam("vendor_id")
	if vendorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vendor_id is required")
	}

	var uploads []store.Upload
	for _, kind := range evidence.Kinds() {
		fh, err := c.FormFile(kind.String())
		if err != nil {
			continue
		}
		data, err := readUpload(fh)
		if err != nil {
			return err
		}
		uploads = append(uploads, store.Upload{Label: kind.String(), Filename: fh.Filename, Data: data})
	}
	if len(uploads) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "Provide at least one file to ingest")
	}

	manifest, err := store.Ingest(c.Request().Context(), s.deps.Store, vendorID, uploads)
	switch {
	case errors.Is(err, store.ErrInvalidVendorID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("ingest failed", zap.String("vendor_id", vendorID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "ingest failed")
	}

	return c.JSON(http.StatusAccepted, IngestResponse{
		Status:      "accepted",
		VendorID:    vendorID,
		Message:     "Ingestion scheduled",
		ObjectStore: s.deps.Store.Bucket(),
		Files:       manifest,
	})
}

func readUpload(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable upload "+fh.Filename)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "unreadable upload "+fh.Filename)
	}
	if len(data) > maxUploadBytes {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload exceeds 10MB: "+fh.Filename)
	}
	return data, nil
}

// handleRenewalBrief generates a brief from the vendor's ingested
// documents, falling back to the bundled samples.
func (s *Server) handleRenewalBrief(c echo.Context) error {
	vendorID := c.QueryParam("vendor_id")
	if vendorID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "vendor_id is required")
	}

	var req BriefRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid renewal brief request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	orch, err := s.orchestratorFor(req)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	bundle, err := store.Resolve(ctx, s.deps.Store, vendorID, s.config.ExamplesDir)
	switch {
	case errors.Is(err, store.ErrInvalidVendorID):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("resolving documents failed", zap.String("vendor_id", vendorID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not load vendor documents")
	}
	return s.generate(c, orch, vendorID, bundle)
}

// handleDemoBrief generates a brief from the bundled sample files.
func (s *Server) handleDemoBrief(c echo.Context) error {
	vendorID := c.QueryParam("vendor_id")
	if vendorID == "" {
		vendorID = DefaultDemoVendor
	}

	bundle, err := store.Samples(s.config.ExamplesDir)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Sample files not found")
	case err != nil:
		s.logger.Error("reading samples failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read sample files")
	}
	return s.generate(c, s.deps.Briefs, vendorID, bundle)
}

func (s *Server) generate(c echo.Context, orch *synthesis.Orchestrator, vendorID string, bundle evidence.Bundle) error {
	b, err := orch.Generate(c.Request().Context(), vendorID, bundle)
	switch {
	case errors.Is(err, synthesis.ErrInjectionDetected):
		return echo.NewHTTPError(http.StatusBadRequest, "Prompt injection detected: "+err.Error())
	case errors.Is(err, synthesis.ErrMissingContract):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		s.logger.Error("brief generation failed", zap.String("vendor_id", vendorID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "brief generation failed")
	}
	return c.JSON(http.StatusOK, BriefResponse{Status: "ok", RequestID: b.RequestID, Brief: b})
}

// orchestratorFor applies per-request LLM overrides. The returned
// orchestrator shares the default one's budget ledger and sinks.
func (s *Server) orchestratorFor(req BriefRequest) (*synthesis.Orchestrator, error) {
	base := s.deps.Briefs
	if !req.overridesLLM() {
		return base, nil
	}

	cfg := base.Config()
	if req.LLMProvider != "" {
		if err := llm.ValidateProvider(req.LLMProvider); err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "Unsupported llm_provider: "+req.LLMProvider)
		}
		cfg.Provider = llm.NormalizeProvider(req.LLMProvider)
	}
	if req.OllamaModel != "" {
		cfg.Model = req.OllamaModel
	}

	var client llm.ChatClient
	if cfg.LLMBacked() {
		if s.deps.Clients == nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "ollama overrides are not enabled on this server")
		}
		c, err := s.deps.Clients.Get(req.OllamaBaseURL)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		client = c
	}

	orch, err := base.WithLLM(cfg, client)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return orch, nil
}

// handleLLMHealth reports whether the configured model is available.
func (s *Server) handleLLMHealth(c echo.Context) error {
	cfg := s.deps.Briefs.Config()
	report, err := llm.CheckHealth(c.Request().Context(), s.deps.Lister, cfg.Provider, cfg.Model)
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, fmt.Sprintf("Ollama unreachable: %v", err))
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleTrace(c echo.Context) error {
	rec, ok := s.deps.Traces.Get(c.Param("request_id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Trace not found")
	}
	return c.JSON(http.StatusOK, rec)
}

// handleHistory lists persisted audit records, newest first.
func (s *Server) handleHistory(c echo.Context) error {
	if s.deps.History == nil {
		return echo.NewHTTPError(http.StatusNotFound, "history is disabled")
	}
	vendorID := c.Param("vendor_id")
	if err := store.ValidateVendorID(vendorID); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	limit := history.DefaultLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	records, err := s.deps.History.List(c.Request().Context(), vendorID, limit)
	if err != nil {
		s.logger.Error("listing history failed", zap.String("vendor_id", vendorID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "could not read history")
	}
	return c.JSON(http.StatusOK, HistoryResponse{VendorID: vendorID, Records: records})
}
