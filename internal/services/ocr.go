package services

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/medlane-ng/medlane-backend/internal/config"
)

const ocrPrompt = `Read this pharmacy prescription image. List each medicine
with its dosage and quantity, one per line. If the image is not a
prescription or is unreadable, reply with exactly UNREADABLE.`

// OCRService extracts text from prescription images through the OpenAI
// vision API. Calls are bounded by the configured timeout and failures
// degrade to a manual-review path, never a hard error for the user.
type OCRService struct {
	client *openai.Client
	cfg    config.OCRConfig
}

// NewOCRService builds the extractor. Without an API key every extraction
// reports unavailable and uploads go straight to manual review.
func NewOCRService(cfg config.OCRConfig) *OCRService {
	var client *openai.Client
	if cfg.OpenAIAPIKey != "" {
		client = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return &OCRService{client: client, cfg: cfg}
}

// ExtractText runs OCR on the media URL. The empty-string, nil-error return
// means the service is unconfigured or the image was unreadable.
func (o *OCRService) ExtractText(ctx context.Context, mediaURL string) (string, error) {
	if o.client == nil {
		return "", nil
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.APITimeout)
	defer cancel()

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: ocrPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: mediaURL},
					},
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("OCR request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OCR returned no choices")
	}

	text := resp.Choices[0].Message.Content
	if text == "UNREADABLE" {
		return "", nil
	}
	return text, nil
}
