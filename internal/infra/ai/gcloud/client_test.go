package gcloud

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

func testRequest(endpoint string) domain.AnalysisRequest {
	return domain.AnalysisRequest{
		Image:               []byte{0x89, 'P', 'N', 'G'},
		ContentType:         "image/png",
		Filename:            "left-cc.png",
		DestinationEndpoint: endpoint,
		AuthToken:           "api-key",
	}
}

func TestInfer_JSONEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer api-key", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var env jsonEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		raw, err := base64.StdEncoding.DecodeString(env.Image)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, raw)
		assert.Equal(t, "image/png", env.ContentType)
		assert.Equal(t, "left-cc.png", env.Filename)

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	body, err := NewClient(srv.Client(), EncodingJSON).Infer(context.Background(), testRequest(srv.URL))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestInfer_Multipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)
		assert.Equal(t, "left-cc.png", hdr.Filename)
		assert.Equal(t, "image/png", hdr.Header.Get("Content-Type"))
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), EncodingMultipart).Infer(context.Background(), testRequest(srv.URL))
	require.NoError(t, err)
}

func TestInfer_Non2xxIsEndpointError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"model loading"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.Client(), "").Infer(context.Background(), testRequest(srv.URL))
	var ae *domain.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, domain.KindEndpointError, ae.Kind)
	assert.Equal(t, http.StatusServiceUnavailable, ae.StatusCode)
	assert.Equal(t, `{"error":"model loading"}`, ae.Body)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInfer_ConnectionRefusedIsUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	_, err = NewClient(nil, "").Infer(context.Background(), testRequest("http://"+addr+"/predict"))
	assert.ErrorIs(t, err, domain.ErrEndpointUnreachable)
}

func TestInfer_TimeoutIsUnreachable(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := NewClient(srv.Client(), "").Infer(ctx, testRequest(srv.URL))
	assert.ErrorIs(t, err, domain.ErrEndpointUnreachable)
	assert.EqualValues(t, 1, calls.Load())
}

func TestInfer_UnsupportedEncoding(t *testing.T) {
	_, err := NewClient(nil, Encoding("xml")).Infer(context.Background(), testRequest("http://unused"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
