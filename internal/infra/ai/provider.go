package ai

import (
	"fmt"
	"net/http"

	appanalysis "github.com/bossom/bossom/internal/application/analysis"
	"github.com/bossom/bossom/internal/config"
	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/infra/ai/gcloud"
	"github.com/bossom/bossom/internal/infra/ai/mock"
	"github.com/bossom/bossom/internal/infra/ai/openai"
)

// NewClient picks the inference adapter named by inference.provider
func NewClient(cfg *config.Config) (domain.InferenceClient, error) {
	// the gateway owns the deadline, so the transport gets none of its own
	httpClient := &http.Client{}
	switch cfg.Inference.Provider {
	case config.ProviderGCloud:
		return gcloud.NewClient(httpClient, gcloud.Encoding(cfg.Inference.Encoding)), nil
	case config.ProviderOpenAI:
		return openai.NewClient(cfg.Inference.Model, httpClient), nil
	case config.ProviderMock:
		return mock.NewClient(0), nil
	}
	return nil, fmt.Errorf("unknown inference provider %q", cfg.Inference.Provider)
}

// NewGateway wires the configured adapter into an analysis Gateway
func NewGateway(cfg *config.Config) (*appanalysis.Gateway, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return &appanalysis.Gateway{
		Client:    client,
		Endpoint:  cfg.Inference.Endpoint,
		AuthToken: cfg.Inference.APIKey,
		Timeout:   cfg.InferenceTimeout(),
	}, nil
}
