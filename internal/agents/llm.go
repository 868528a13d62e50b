// Package agents provides the AI analyst that comments on the simulated market.
package agents

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Image is a chart screenshot sent to a vision model.
type Image struct {
	Data     []byte
	MimeType string
}

// NewImage wraps raw image bytes, sniffing the MIME type. Anything that is not
// recognised as an image is sent as PNG.
func NewImage(data []byte) Image {
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return Image{Data: data, MimeType: mime}
}

// DataURL returns the image as a base64 data URL.
func (i Image) DataURL() string {
	return "data:" + i.MimeType + ";base64," + base64.StdEncoding.EncodeToString(i.Data)
}

// LLMClient is the text and vision completion surface the analyst needs.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	CompleteWithImages(ctx context.Context, systemPrompt, userPrompt string, images []Image) (string, error)
}

// OpenAIClient implements LLMClient using the OpenAI API.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	visionModel string
}

// NewOpenAIClient creates a new OpenAI client. An empty baseURL uses the
// public endpoint.
func NewOpenAIClient(apiKey, baseURL, model, visionModel string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if visionModel == "" {
		visionModel = model
	}
	return &OpenAIClient{
		client:      openai.NewClientWithConfig(cfg),
		model:       model,
		visionModel: visionModel,
	}
}

// Complete sends a prompt with a system message and returns the response text.
func (c *OpenAIClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.create(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt},
		},
	})
}

// CompleteWithImages sends a prompt followed by inline images to the vision model.
func (c *OpenAIClient) CompleteWithImages(ctx context.Context, systemPrompt, userPrompt string, images []Image) (string, error) {
	parts := []openai.ChatMessagePart{
		{Type: openai.ChatMessagePartTypeText, Text: userPrompt},
	}
	for _, img := range images {
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{
				URL:    img.DataURL(),
				Detail: openai.ImageURLDetailAuto,
			},
		})
	}

	return c.create(ctx, openai.ChatCompletionRequest{
		Model: c.visionModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
}

func (c *OpenAIClient) create(ctx context.Context, req openai.ChatCompletionRequest) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

// Model returns the text model name.
func (c *OpenAIClient) Model() string {
	return c.model
}
