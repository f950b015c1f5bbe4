// Package proxy implements the client for the remote LLM completion endpoint.
//
// The endpoint is treated as an opaque text-completion service: one POST with
// a chat-style message list, one text answer back. The client absorbs
// transient failures (retryable HTTP statuses and transport errors) with
// linear backoff before propagating, so callers either get text or a final
// error — never a partial result.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Messages
// ---------------------------------------------------------------------------

// Message is one chat-style message sent to the completion endpoint.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a single-element user message list.
func UserMessage(content string) []Message {
	return []Message{{Role: "user", Content: content}}
}

// ---------------------------------------------------------------------------
// Client
// ---------------------------------------------------------------------------

// DefaultMaxRetries is the attempt cap for transient failures.
const DefaultMaxRetries = 3

// DefaultRetryBase is the base delay for linear backoff (base × attempt).
const DefaultRetryBase = time.Second

// Client talks to the completion proxy.
type Client struct {
	// URL is the full proxy endpoint URL.
	URL string
	// Model is the model identifier sent with every request.
	Model string
	// MaxTokens caps the completion length (0 = omit).
	MaxTokens int
	// APIKey is sent as a bearer token when non-empty.
	APIKey string
	// Extra holds additional top-level body parameters passed through
	// verbatim (temperature, reasoning options, ...).
	Extra map[string]any
	// MaxRetries overrides DefaultMaxRetries when > 0.
	MaxRetries int
	// RetryBase overrides DefaultRetryBase when > 0.
	RetryBase time.Duration
	// HTTPClient overrides the default client (used by tests).
	HTTPClient *http.Client
	// ProxyURL is an optional HTTP/HTTPS proxy.
	ProxyURL string
	// Timeout is the per-request timeout (default 120s).
	Timeout time.Duration
	// OnLog emits debug/warning messages (nil = silent).
	OnLog func(format string, args ...any)
}

func (c *Client) log(format string, args ...any) {
	if c.OnLog != nil {
		c.OnLog(format, args...)
	}
}

func (c *Client) maxRetries() int {
	if c.MaxRetries > 0 {
		return c.MaxRetries
	}
	return DefaultMaxRetries
}

func (c *Client) retryBase() time.Duration {
	if c.RetryBase > 0 {
		return c.RetryBase
	}
	return DefaultRetryBase
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if c.ProxyURL != "" {
		if parsed, err := url.Parse(c.ProxyURL); err == nil {
			transport.Proxy = http.ProxyURL(parsed)
		}
	} else {
		transport.Proxy = http.ProxyFromEnvironment
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

// retryableStatus reports whether an HTTP status is worth retrying.
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, // 408
		http.StatusTooManyRequests,     // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return false
}

// buildBody assembles the request body for one completion call.
func (c *Client) buildBody(messages []Message) ([]byte, error) {
	body := map[string]any{
		"model":    c.Model,
		"messages": messages,
	}
	if c.MaxTokens > 0 {
		body["max_completion_tokens"] = c.MaxTokens
	}
	for k, v := range c.Extra {
		body[k] = v
	}
	return json.Marshal(body)
}

// Complete sends the messages to the proxy and returns the completion text.
// Transient failures are retried with linear backoff (base × attempt) up to
// the attempt cap; anything else is propagated immediately.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	body, err := c.buildBody(messages)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	client := c.httpClient()
	maxRetries := c.maxRetries()
	var lastErr error

	for attempt := 1; attempt <= maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
		if err != nil {
			return "", fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.APIKey)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("completion request failed: %w", err)
			if attempt < maxRetries {
				c.log("request error (attempt %d/%d): %v", attempt, maxRetries, err)
				if err := sleepCtx(ctx, c.retryBase()*time.Duration(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", lastErr
		}

		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = fmt.Errorf("proxy returned status %d: %s",
				resp.StatusCode, truncate(string(respBody), 500))
			if retryableStatus(resp.StatusCode) && attempt < maxRetries {
				c.log("status %d (attempt %d/%d), retrying", resp.StatusCode, attempt, maxRetries)
				if err := sleepCtx(ctx, c.retryBase()*time.Duration(attempt)); err != nil {
					return "", err
				}
				continue
			}
			return "", lastErr
		}

		return extractResponseText(respBody)
	}

	return "", fmt.Errorf("exhausted %d attempts: %w", maxRetries, lastErr)
}

// ---------------------------------------------------------------------------
// Response text extraction
// ---------------------------------------------------------------------------

// extractResponseText probes the known completion response shapes and returns
// the first text found. Shapes, in order:
//
//  1. choices[0].message.content (chat completions)
//  2. choices[0].text            (legacy completions)
//  3. output_text                (responses API convenience field)
//  4. output[0].content[0].text  (responses API)
func extractResponseText(body []byte) (string, error) {
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return "", fmt.Errorf("invalid JSON response: %w", err)
	}

	if errObj, ok := raw["error"]; ok && errObj != nil {
		if errMap, ok := errObj.(map[string]any); ok {
			if msg, ok := errMap["message"].(string); ok {
				return "", fmt.Errorf("proxy error: %s", msg)
			}
		}
		return "", fmt.Errorf("proxy error: %v", errObj)
	}

	if choices, ok := raw["choices"].([]any); ok && len(choices) > 0 {
		if choice, ok := choices[0].(map[string]any); ok {
			if message, ok := choice["message"].(map[string]any); ok {
				if content, ok := message["content"].(string); ok {
					return content, nil
				}
			}
			if text, ok := choice["text"].(string); ok {
				return text, nil
			}
		}
	}

	if text, ok := raw["output_text"].(string); ok {
		return text, nil
	}

	if output, ok := raw["output"].([]any); ok && len(output) > 0 {
		if item, ok := output[0].(map[string]any); ok {
			if contentArr, ok := item["content"].([]any); ok && len(contentArr) > 0 {
				if blockMap, ok := contentArr[0].(map[string]any); ok {
					if text, ok := blockMap["text"].(string); ok {
						return text, nil
					}
				}
			}
		}
	}

	return "", fmt.Errorf("could not extract text from response: %s", truncate(string(body), 500))
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func sleepCtx(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return strings.TrimSpace(s[:maxLen]) + "..."
}
