package translate

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/zhfeed/hnzh/internal/logger"
	"github.com/zhfeed/hnzh/internal/models"
)

// systemPrompt is the fixed translation instruction: professional,
// faithful, fluent Chinese.
const systemPrompt = "你是一个专业的翻译器，需要将英文内容翻译成地道的中文。保持专业术语的准确性，同时确保翻译后的内容通俗易懂。"

// Client translates English text to Chinese through an OpenAI-compatible
// chat-completions endpoint. All failure degrades to the original text:
// translation never blocks ingestion.
type Client struct {
	http   *resty.Client
	apiKey string
	model  string
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient builds a translation client. baseURL is the API root,
// e.g. "https://api.openai.com/v1".
func NewClient(baseURL, apiKey, model string, timeout time.Duration) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(3).
			SetRetryWaitTime(1 * time.Second).
			SetRetryMaxWaitTime(10 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			}),
		apiKey: apiKey,
		model:  model,
	}
}

// TranslateText submits text for translation and returns the localized
// result. On any failure it returns the input unchanged.
func (c *Client) TranslateText(ctx context.Context, text string) string {
	if text == "" {
		return text
	}

	translated, err := c.complete(ctx, text)
	if err != nil {
		logger.Get().Error().Err(err).Msg("Translation failed, falling back to original text")
		return text
	}
	return translated
}

// TranslateStory translates an item's title and, when present, its body.
// TextZh stays nil when there is no source text.
func (c *Client) TranslateStory(ctx context.Context, title, text string) models.Translation {
	tr := models.Translation{
		TitleZh: c.TranslateText(ctx, title),
	}
	if text != "" {
		textZh := c.TranslateText(ctx, text)
		tr.TextZh = &textZh
	}
	return tr
}

func (c *Client) complete(ctx context.Context, text string) (string, error) {
	req := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "请将以下内容翻译成中文：\n\n" + text},
		},
		Temperature: 0.3,
	}

	var resp chatResponse
	httpResp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetAuthToken(c.apiKey).
		SetBody(req).
		SetResult(&resp).
		SetError(&resp).
		Post("/chat/completions")

	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	if resp.Error != nil {
		return "", fmt.Errorf("API error: %s", resp.Error.Message)
	}
	if httpResp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("unexpected status code %d", httpResp.StatusCode())
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("no content in response")
	}

	return resp.Choices[0].Message.Content, nil
}

// BatchTranslate applies fn to each item strictly sequentially with an
// inter-item delay to respect upstream rate limits. A per-item failure
// leaves a nil slot without aborting the batch.
func BatchTranslate[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), delay time.Duration) []*R {
	results := make([]*R, 0, len(items))

	for _, item := range items {
		result, err := fn(ctx, item)
		if err != nil {
			logger.Get().Error().Err(err).Msg("Batch translation error")
			results = append(results, nil)
		} else {
			results = append(results, &result)
		}

		select {
		case <-ctx.Done():
			return results
		case <-time.After(delay):
		}
	}

	return results
}
