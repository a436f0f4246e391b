package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	openRouterURL     = "https://openrouter.ai/api/v1/chat/completions"
	visionMaxRetries  = 3
	visionRetryDelay  = time.Second
	visionNoTextReply = "NO_TEXT_FOUND"
	visionPrompt      = "This image shows a single number from a game screen. " +
		"Return ONLY the digits 0-9 of that number with no separators, " +
		"no formatting and no explanation. " +
		"If no number is visible, return '" + visionNoTextReply + "'"
)

// VisionRecognizer asks an OpenRouter vision model to read a region. The
// model cannot be restricted to digits, so non-digit runes are stripped from
// the reply before fragments are returned.
type VisionRecognizer struct {
	APIKey   string
	Model    string
	Endpoint string
	Client   *http.Client
}

// NewVisionRecognizer returns a recognizer for the given model.
func NewVisionRecognizer(apiKey, model string, timeout time.Duration) (*VisionRecognizer, error) {
	if apiKey == "" {
		return nil, errors.New("vision recognizer: API key is required")
	}
	if model == "" {
		return nil, errors.New("vision recognizer: model is required")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &VisionRecognizer{
		APIKey:   apiKey,
		Model:    model,
		Endpoint: openRouterURL,
		Client:   &http.Client{Timeout: timeout},
	}, nil
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string        `json:"role"`
	Content []chatContent `json:"content"`
}

type chatContent struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Recognize implements Recognizer. An explicit no-text reply yields ErrNoText.
func (v *VisionRecognizer) Recognize(ctx context.Context, img image.Image) ([]string, error) {
	data, err := encodePNG(img)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(chatRequest{
		Model: v.Model,
		Messages: []chatMessage{{
			Role: "user",
			Content: []chatContent{
				{Type: "text", Text: visionPrompt},
				{Type: "image_url", ImageURL: &imageURL{
					URL: "data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		Temperature: 0,
		MaxTokens:   32,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal vision request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < visionMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(visionRetryDelay * time.Duration(attempt)):
			}
		}
		text, retry, err := v.send(ctx, body)
		if err == nil {
			return visionFragments(text)
		}
		lastErr = err
		if !retry {
			break
		}
	}
	return nil, lastErr
}

func (v *VisionRecognizer) send(ctx context.Context, body []byte) (string, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create vision request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+v.APIKey)

	resp, err := v.Client.Do(req)
	if err != nil {
		return "", ctx.Err() == nil, fmt.Errorf("vision request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("read vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		retry := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return "", retry, fmt.Errorf("vision API status %d: %s", resp.StatusCode, snippet(string(raw), 120))
	}
	var out chatResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", false, fmt.Errorf("decode vision response: %w", err)
	}
	if out.Error != nil {
		return "", false, fmt.Errorf("vision API error: %s", out.Error.Message)
	}
	if len(out.Choices) == 0 {
		return "", false, errors.New("vision API returned no choices")
	}
	return out.Choices[0].Message.Content, false, nil
}

func visionFragments(text string) ([]string, error) {
	text = strings.TrimSpace(text)
	if text == "" || strings.Contains(text, visionNoTextReply) {
		return nil, ErrNoText
	}
	var out []string
	for _, f := range splitFragments(text) {
		if digits := onlyDigits(f); digits != "" {
			out = append(out, digits)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoText
	}
	return out, nil
}

// Close is a no-op.
func (v *VisionRecognizer) Close() error { return nil }
