// Package generation talks to the plan-generation provider, or synthesises a
// plan locally when running in mock mode.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"pbassistant/backend/internal/prompt"
)

const (
	DefaultEndpoint = "https://api.deepseek.com/v1/chat/completions"
	DefaultTimeout  = 60 * time.Second

	maxErrorBody    = 1 << 20
	maxResponseBody = 8 << 20
)

// Options configures a Client.
type Options struct {
	Endpoint string
	APIKey   string
	MockMode bool
	Timeout  time.Duration

	// HTTPClient overrides the default transport; tests use it to avoid the network.
	HTTPClient *http.Client
	// Now drives the mock generator's reference time.
	Now func() time.Time
}

// Result is the normalised outcome of a generation call.
type Result struct {
	UsedMock    bool
	RawResponse json.RawMessage // nil in mock mode
	Content     string
}

// Client issues exactly one generation attempt per call; there is no retry.
type Client struct {
	endpoint   string
	apiKey     string
	mock       bool
	timeout    time.Duration
	httpClient *http.Client
	now        func() time.Time
}

func New(opts Options) *Client {
	endpoint := strings.TrimSpace(opts.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	apiKey := strings.TrimSpace(opts.APIKey)
	return &Client{
		endpoint:   endpoint,
		apiKey:     apiKey,
		mock:       opts.MockMode || apiKey == "",
		timeout:    timeout,
		httpClient: httpClient,
		now:        now,
	}
}

// UsesMock reports whether Generate synthesises plans without a network call.
func (c *Client) UsesMock() bool { return c.mock }

// Generate produces plan content for pkg.
func (c *Client) Generate(ctx context.Context, pkg *prompt.Package) (*Result, error) {
	if pkg == nil {
		return nil, &ProviderError{Message: "empty prompt package"}
	}
	if c.mock {
		content, err := mockContent(pkg, c.now())
		if err != nil {
			return nil, &ProviderError{Message: "mock generation failed", Err: err}
		}
		return &Result{UsedMock: true, Content: content}, nil
	}
	return c.invoke(ctx, pkg)
}

// --- Live provider call ---

// responseFormat requests JSON output; Schema carries the plan schema as a hint.
type responseFormat struct {
	Type   string          `json:"type"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type chatCompletionRequest struct {
	Model          string           `json:"model"`
	Messages       []prompt.Message `json:"messages"`
	ResponseFormat responseFormat   `json:"response_format"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) invoke(ctx context.Context, pkg *prompt.Package) (*Result, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:          pkg.Model,
		Messages:       pkg.Messages,
		ResponseFormat: responseFormat{Type: "json_object", Schema: pkg.Schema},
	})
	if err != nil {
		return nil, &ProviderError{Message: "encode request", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ProviderError{Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		msg := "request failed"
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return nil, &ProviderError{Message: msg, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := readLimited(resp, maxErrorBody)
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	raw, err := readLimited(resp, maxResponseBody)
	if err != nil {
		return nil, &ProviderError{Message: "read response", Err: err}
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &ProviderError{Message: "decode response", Err: err}
	}
	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return nil, &ProviderError{Message: "response missing message content"}
	}

	return &Result{
		UsedMock:    false,
		RawResponse: json.RawMessage(raw),
		Content:     parsed.Choices[0].Message.Content,
	}, nil
}

func readLimited(resp *http.Response, limit int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(resp.Body, limit))
}
