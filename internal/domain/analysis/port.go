package analysis

import "context"

// InferenceClient sends one request to an inference backend and returns the raw 2xx body.
// Implementations classify failures as *Error (EndpointUnreachable, EndpointError)
// and never retry.
type InferenceClient interface {
	Infer(ctx context.Context, req AnalysisRequest) ([]byte, error)
}
