package analysis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

type fakeClient struct {
	calls atomic.Int32
	body  []byte
	err   error
	wait  bool
	last  domain.AnalysisRequest
}

func (f *fakeClient) Infer(ctx context.Context, req domain.AnalysisRequest) ([]byte, error) {
	f.calls.Add(1)
	f.last = req
	if f.wait {
		<-ctx.Done()
		return nil, domain.Unreachable(ctx.Err())
	}
	return f.body, f.err
}

var pngBytes = []byte("\x89PNG\r\n\x1a\nfake")

func TestGateway_Success(t *testing.T) {
	client := &fakeClient{body: readFixture(t, "valid_response.json")}
	gw := &Gateway{Client: client, Endpoint: "https://model.example/predict", AuthToken: "secret"}

	res, err := gw.Submit(context.Background(), pngBytes, "image/png", "left-cc.png")
	require.NoError(t, err)
	assert.Equal(t, 4, res.BiradsCategory)
	assert.EqualValues(t, 1, client.calls.Load())

	assert.Equal(t, "https://model.example/predict", client.last.DestinationEndpoint)
	assert.Equal(t, "secret", client.last.AuthToken)
	assert.Equal(t, "image/png", client.last.ContentType)
	assert.Equal(t, "left-cc.png", client.last.Filename)
}

func TestGateway_InvalidInputNeverCallsUpstream(t *testing.T) {
	client := &fakeClient{}
	gw := &Gateway{Client: client}

	_, err := gw.Submit(context.Background(), nil, "image/png", "a.png")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gw.Submit(context.Background(), pngBytes, "text/plain", "a.txt")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = gw.Submit(context.Background(), pngBytes, "", "a.png")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	assert.EqualValues(t, 0, client.calls.Load())
}

func TestGateway_AcceptsDICOM(t *testing.T) {
	client := &fakeClient{body: readFixture(t, "valid_response.json")}
	gw := &Gateway{Client: client}

	_, err := gw.Submit(context.Background(), []byte("DICM"), "application/dicom", "study.dcm")
	require.NoError(t, err)
}

func TestGateway_UpstreamErrorsPassThroughOnce(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"unreachable", domain.Unreachable(errors.New("connection refused")), domain.ErrEndpointUnreachable},
		{"non-2xx", domain.EndpointError(503, "overloaded"), domain.ErrEndpointError},
		{"untyped error", errors.New("boom"), domain.ErrEndpointUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := &fakeClient{err: tc.err}
			gw := &Gateway{Client: client}

			_, err := gw.Submit(context.Background(), pngBytes, "image/png", "a.png")
			assert.ErrorIs(t, err, tc.want)
			assert.EqualValues(t, 1, client.calls.Load(), "no retry")
		})
	}
}

func TestGateway_EndpointErrorKeepsDiagnostics(t *testing.T) {
	gw := &Gateway{Client: &fakeClient{err: domain.EndpointError(401, `{"error":"bad token"}`)}}

	_, err := gw.Submit(context.Background(), pngBytes, "image/png", "a.png")
	var ae *domain.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 401, ae.StatusCode)
	assert.Equal(t, `{"error":"bad token"}`, ae.Body)
}

func TestGateway_MalformedVersusSchemaViolation(t *testing.T) {
	gw := &Gateway{Client: &fakeClient{body: []byte("not json")}}
	_, err := gw.Submit(context.Background(), pngBytes, "image/png", "a.png")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)

	gw = &Gateway{Client: &fakeClient{body: []byte(`{"confidenceScore":150}`)}}
	_, err = gw.Submit(context.Background(), pngBytes, "image/png", "a.png")
	assert.ErrorIs(t, err, domain.ErrSchemaViolation)
	assert.NotErrorIs(t, err, domain.ErrMalformedResponse)
	assert.NotErrorIs(t, err, domain.ErrEndpointError)
}

func TestGateway_Timeout(t *testing.T) {
	client := &fakeClient{wait: true}
	gw := &Gateway{Client: client, Timeout: 20 * time.Millisecond}

	start := time.Now()
	_, err := gw.Submit(context.Background(), pngBytes, "image/png", "a.png")
	assert.ErrorIs(t, err, domain.ErrEndpointUnreachable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
	assert.EqualValues(t, 1, client.calls.Load())
}
