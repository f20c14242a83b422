package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// responseMarker separates the echoed instruction from the generation in
// instruction-tuned model output.
const responseMarker = "### Response:"

// LocalClient calls a self-hosted generation server:
// POST {text, temperature, top_p, top_k, max_new_tokens} -> {generated_text}.
type LocalClient struct {
	url        string
	httpClient *http.Client

	Temperature  float64
	TopP         float64
	TopK         int
	MaxNewTokens int

	Stats *LLMStats
}

func NewLocalClient(url string) *LocalClient {
	return &LocalClient{
		url:          url,
		httpClient:   &http.Client{Timeout: 5 * time.Minute},
		Temperature:  0,
		TopP:         1,
		TopK:         0,
		MaxNewTokens: 256,
		Stats:        NewLLMStats(time.Hour),
	}
}

func (c *LocalClient) Model() string { return "local:" + c.url }

type generateRequest struct {
	Text         string  `json:"text"`
	Temperature  float64 `json:"temperature"`
	TopP         float64 `json:"top_p"`
	TopK         int     `json:"top_k"`
	MaxNewTokens int     `json:"max_new_tokens"`
}

type generateResponse struct {
	GeneratedText string `json:"generated_text"`
}

func (c *LocalClient) Extract(ctx context.Context, text string) (Response, error) {
	start := time.Now()
	resp, err := c.generate(ctx, BuildPrompt(text))
	var parsed Response
	if err == nil {
		parsed = ParseResponse(resp)
	}
	c.Stats.Record(time.Since(start), len(parsed.Records), err)
	return parsed, err
}

func (c *LocalClient) generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(generateRequest{
		Text:         prompt,
		Temperature:  c.Temperature,
		TopP:         c.TopP,
		TopK:         c.TopK,
		MaxNewTokens: c.MaxNewTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("local model: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", newRetryableError(resp, respBody)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("local model status %d: %s", resp.StatusCode, Truncate(string(respBody), 200))
	}

	var gen generateResponse
	if err := json.Unmarshal(respBody, &gen); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	out := gen.GeneratedText
	if i := strings.LastIndex(out, responseMarker); i >= 0 {
		out = out[i+len(responseMarker):]
	}
	return strings.TrimSpace(out), nil
}

func (c *LocalClient) Close() {
	c.httpClient.CloseIdleConnections()
}
