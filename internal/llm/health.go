package llm

import (
	"context"
	"fmt"
	"slices"
)

// Health statuses.
const (
	HealthOK           = "ok"
	HealthMissingModel = "missing_model"
	HealthSkipped      = "skipped"
)

const sampleModelLimit = 5

// HealthReport describes whether the configured model is available.
type HealthReport struct {
	Status       string   `json:"status"`
	Provider     string   `json:"provider"`
	Model        string   `json:"model,omitempty"`
	ModelCount   int      `json:"model_count,omitempty"`
	SampleModels []string `json:"sample_models,omitempty"`
}

// CheckHealth lists the provider's models and reports whether model is
// among them. Non-Ollama providers are skipped. A listing failure wraps
// ErrUnreachable.
func CheckHealth(ctx context.Context, lister ModelLister, provider, model string) (HealthReport, error) {
	provider = NormalizeProvider(provider)
	if provider != ProviderOllama || lister == nil {
		return HealthReport{Status: HealthSkipped, Provider: provider}, nil
	}

	names, err := lister.ListModels(ctx)
	if err != nil {
		return HealthReport{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	status := HealthMissingModel
	if slices.Contains(names, model) {
		status = HealthOK
	}
	samples := names
	if len(samples) > sampleModelLimit {
		samples = samples[:sampleModelLimit]
	}
	return HealthReport{
		Status:       status,
		Provider:     provider,
		Model:        model,
		ModelCount:   len(names),
		SampleModels: samples,
	}, nil
}
