package synthesis

import "errors"

// Terminal request errors. Everything else is recovered inside the orchestrator.
var (
	ErrMissingContract   = errors.New("missing contract text; ingest files before requesting a brief")
	ErrInjectionDetected = errors.New("retrieved content contained adversarial instructions")
	ErrNoClient          = errors.New("llm-backed provider configured without a chat client")
)

// LLM diagnostic reasons.
const (
	ReasonBudgetExceeded   = "budget_exceeded"
	ReasonRequestFailed    = "request_failed"
	ReasonInvalidSchema    = "invalid_schema"
	ReasonMissingCitations = "missing_citations"
	ReasonRepairFailed     = "repair_failed"
	ReasonEmailFailed      = "email_failed"
)

// Validation failure stages.
const (
	StageSchema       = "schema"
	StageCitations    = "citations"
	StageRepairSchema = "repair_schema"
)
