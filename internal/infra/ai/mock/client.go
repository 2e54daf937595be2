package mock

import (
	"context"
	"time"

	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/infra/ai/prompt"
)

// Client answers every request with the sample analysis. Dipakai untuk demo dan dev lokal
// tanpa model endpoint.
type Client struct {
	// Delay simulates model latency; the context still wins.
	Delay  time.Duration
	CaseID string
}

func NewClient(delay time.Duration) *Client {
	return &Client{Delay: delay}
}

func (c *Client) Infer(ctx context.Context, req domain.AnalysisRequest) ([]byte, error) {
	if len(req.Image) == 0 {
		return nil, domain.InvalidInput("image payload is empty")
	}
	if c.Delay > 0 {
		t := time.NewTimer(c.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, domain.Unreachable(ctx.Err())
		case <-t.C:
		}
	}
	return prompt.SampleJSON(c.CaseID), nil
}
