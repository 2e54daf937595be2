package gcloud

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"

	domain "github.com/bossom/bossom/internal/domain/analysis"
)

// Encoding of the outbound image
type Encoding string

const (
	// EncodingJSON sends {"image": "<base64>", "contentType": ..., "filename": ...}
	EncodingJSON Encoding = "json"
	// EncodingMultipart sends the raw bytes in form field "image"
	EncodingMultipart Encoding = "multipart"
)

// maxErrorBody caps how much of a non-2xx body is kept for diagnostics
const maxErrorBody = 4 << 10

// maxResponseBody caps a 2xx body
const maxResponseBody = 10 << 20

// Client posts an image to a bearer-authenticated model endpoint.
type Client struct {
	HTTP     *http.Client
	Encoding Encoding
}

func NewClient(httpClient *http.Client, enc Encoding) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if enc == "" {
		enc = EncodingJSON
	}
	return &Client{HTTP: httpClient, Encoding: enc}
}

type jsonEnvelope struct {
	Image       string `json:"image"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename,omitempty"`
}

// Infer performs exactly one POST to req.DestinationEndpoint.
func (c *Client) Infer(ctx context.Context, req domain.AnalysisRequest) ([]byte, error) {
	body, contentType, err := c.encode(req)
	if err != nil {
		return nil, domain.InvalidInput(err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.DestinationEndpoint, body)
	if err != nil {
		return nil, domain.Unreachable(fmt.Errorf("build request: %w", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.AuthToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.AuthToken)
	}

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, domain.Unreachable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, domain.EndpointError(resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody+1))
	if err != nil {
		return nil, domain.Unreachable(fmt.Errorf("read response: %w", err))
	}
	if len(data) > maxResponseBody {
		return nil, domain.Malformed("response body too large", nil)
	}
	return data, nil
}

func (c *Client) encode(req domain.AnalysisRequest) (io.Reader, string, error) {
	switch c.Encoding {
	case EncodingJSON, "":
		b, err := json.Marshal(jsonEnvelope{
			Image:       base64.StdEncoding.EncodeToString(req.Image),
			ContentType: req.ContentType,
			Filename:    req.Filename,
		})
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil

	case EncodingMultipart:
		buf := &bytes.Buffer{}
		w := multipart.NewWriter(buf)
		filename := req.Filename
		if filename == "" {
			filename = "image"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
		h.Set("Content-Type", req.ContentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create form file: %w", err)
		}
		if _, err := part.Write(req.Image); err != nil {
			return nil, "", fmt.Errorf("copy image data: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, "", err
		}
		return buf, w.FormDataContentType(), nil
	}
	return nil, "", fmt.Errorf("unsupported encoding %q", c.Encoding)
}
