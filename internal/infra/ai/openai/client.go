package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	domain "github.com/bossom/bossom/internal/domain/analysis"
	"github.com/bossom/bossom/internal/infra/ai/prompt"
)

const maxTokens = 2048

const defaultModel = "gpt-4o"

// Client sends the image to a vision-capable chat completion model and returns the
// JSON object the model produced.
type Client struct {
	Model string
	HTTP  *http.Client
}

func NewClient(model string, httpClient *http.Client) *Client {
	return &Client{Model: model, HTTP: httpClient}
}

func (c *Client) Infer(ctx context.Context, req domain.AnalysisRequest) ([]byte, error) {
	// vision input only understands browser image formats
	if req.ContentType == "application/dicom" {
		return nil, domain.InvalidInput("DICOM is not supported by the openai provider")
	}

	cfg := openai.DefaultConfig(req.AuthToken)
	if req.DestinationEndpoint != "" {
		cfg.BaseURL = strings.TrimRight(req.DestinationEndpoint, "/")
	}
	if c.HTTP != nil {
		cfg.HTTPClient = c.HTTP
	}
	client := openai.NewClientWithConfig(cfg)

	model := c.Model
	if model == "" {
		model = defaultModel
	}
	dataURI := fmt.Sprintf("data:%s;base64,%s", req.ContentType, base64.StdEncoding.EncodeToString(req.Image))
	chatReq := openai.ChatCompletionRequest{
		Model: model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: prompt.GetSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, MultiContent: []openai.ChatMessagePart{
				{Type: openai.ChatMessagePartTypeText, Text: prompt.GetUserPrompt(req.Filename, req.ContentType)},
				{Type: openai.ChatMessagePartTypeImageURL, ImageURL: &openai.ChatMessageImageURL{
					URL:    dataURI,
					Detail: openai.ImageURLDetailHigh,
				}},
			}},
		},
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if isReasoningModel(model) {
		chatReq.MaxCompletionTokens = maxTokens
	} else {
		chatReq.MaxTokens = maxTokens
	}

	resp, err := client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, classify(err)
	}
	if len(resp.Choices) == 0 {
		return nil, domain.Malformed("completion has no choices", nil)
	}
	return []byte(stripFences(resp.Choices[0].Message.Content)), nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.EndpointError(apiErr.HTTPStatusCode, apiErr.Message)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return domain.EndpointError(reqErr.HTTPStatusCode, msg)
	}
	return domain.Unreachable(err)
}

func isReasoningModel(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// stripFences removes a ```json ... ``` wrapper some models add despite the prompt
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
