package http

import (
	"github.com/fyrsmithlabs/renewaldesk/internal/audit"
	"github.com/fyrsmithlabs/renewaldesk/internal/brief"
	"github.com/fyrsmithlabs/renewaldesk/internal/store"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Commit string `json:"commit"`
}

// BriefRequest is the request body for POST /renewal-brief. Empty fields
// keep the server defaults.
type BriefRequest struct {
	Refresh       bool   `json:"refresh"`
	LLMProvider   string `json:"llm_provider,omitempty"`
	OllamaBaseURL string `json:"ollama_base_url,omitempty"`
	OllamaModel   string `json:"ollama_model,omitempty"`
}

func (r BriefRequest) overridesLLM() bool {
	return r.LLMProvider != "" || r.OllamaBaseURL != "" || r.OllamaModel != ""
}

// BriefResponse wraps a generated brief.
type BriefResponse = brief.Response

// IngestResponse is the response body for POST /ingest.
type IngestResponse struct {
	Status      string         `json:"status"`
	VendorID    string         `json:"vendor_id"`
	Message     string         `json:"message"`
	ObjectStore string         `json:"object_store"`
	Files       store.Manifest `json:"files"`
}

// HistoryResponse is the response body for GET /vendors/:vendor_id/history.
type HistoryResponse struct {
	VendorID string         `json:"vendor_id"`
	Records  []audit.Record `json:"records"`
}
