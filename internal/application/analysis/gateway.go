package analysis

import (
	"context"
	"fmt"
	"time"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

// DefaultTimeout bounds the single outbound inference call
const DefaultTimeout = 30 * time.Second

// Gateway submits exactly one image per call to the inference backend and returns a
// normalized result or a typed *analysis.Error.
//
// It keeps no state between calls and performs no retry: one Submit is at most one
// outbound request. No idempotency key is sent, so duplicate submissions from a retrying
// caller reach the backend twice.
type Gateway struct {
	Client    domain.InferenceClient
	Endpoint  string
	AuthToken string
	Timeout   time.Duration
}

// Submit validates the payload, performs the inference call and normalizes the response.
func (g *Gateway) Submit(ctx context.Context, image []byte, contentType, filename string) (*domain.AnalysisResult, error) {
	if len(image) == 0 {
		return nil, domain.InvalidInput("image payload is empty")
	}
	if !domain.IsAcceptedContentType(contentType) {
		return nil, domain.InvalidInput(fmt.Sprintf("unsupported content type %q", contentType))
	}

	req := domain.AnalysisRequest{
		Image:               image,
		ContentType:         contentType,
		Filename:            filename,
		DestinationEndpoint: g.Endpoint,
		AuthToken:           g.AuthToken,
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := g.Client.Infer(ctx, req)
	if err != nil {
		if domain.KindOf(err) == "" {
			return nil, domain.Unreachable(err)
		}
		return nil, err
	}
	return Normalize(body)
}
