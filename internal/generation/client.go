// Package generation talks to the Gemini generateContent endpoint. Each call
// is a single-turn, single-attempt request; conversation history stays with
// the caller.
package generation

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

	"go.uber.org/zap"

	"gemchat/internal/config"
	"gemchat/internal/logging"
)

// apiKeyHeader carries the credential. The key is never placed in the URL,
// so transport errors (which quote the URL) cannot leak it.
const apiKeyHeader = "x-goog-api-key"

// Generator produces a reply for a single prompt.
type Generator interface {
	Generate(ctx context.Context, credential, prompt string) (string, error)
}

// Options configure a Client.
type Options struct {
	Endpoint   string
	Model      string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is a stateless Generator backed by the Gemini REST API.
type Client struct {
	endpoint   string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient builds a Client. The default HTTP client has no timeout: a call
// runs until the endpoint answers or the context ends.
func NewClient(opts Options) *Client {
	endpoint := strings.TrimRight(strings.TrimSpace(opts.Endpoint), "/")
	if endpoint == "" {
		endpoint = config.DefaultEndpoint
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = config.DefaultModel
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		endpoint:   endpoint,
		model:      model,
		httpClient: httpClient,
		logger:     logging.OrNop(opts.Logger).Named("generation"),
	}
}

func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as the only content unit and returns the first text
// part of the first candidate. Every error it returns is a *Failure.
func (c *Client) Generate(ctx context.Context, credential, prompt string) (string, error) {
	start := time.Now()
	log := c.logger.With(zap.String("model", c.model), zap.Int("prompt_len", len(prompt)))
	log.Debug("generate request")

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []contentPart{{Text: &prompt}}}},
	})
	if err != nil {
		return "", transportFailure(fmt.Errorf("encode request: %w", err))
	}

	target := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return "", transportFailure(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(apiKeyHeader, credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("generate request failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return "", transportFailure(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("read generate response failed", zap.Error(err))
		return "", transportFailure(fmt.Errorf("read response: %w", err))
	}

	log = log.With(zap.Int("status", resp.StatusCode), zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope errorEnvelope
		message := ""
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			message = strings.TrimSpace(envelope.Error.Message)
		}
		log.Warn("generate request rejected", zap.String("remote_message", message))
		return "", remoteRejected(resp.StatusCode, message)
	}

	var decoded generateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		log.Warn("decode generate response failed", zap.Error(err))
		return "", malformedResponse("response is not valid JSON", err)
	}
	if decoded.Error != nil {
		log.Warn("generate response carried an error", zap.String("remote_message", decoded.Error.Message))
		return "", remoteRejected(resp.StatusCode, strings.TrimSpace(decoded.Error.Message))
	}

	text, failure := firstText(decoded)
	if failure != nil {
		log.Warn("generate response had no text", zap.String("reason", failure.Message))
		return "", failure
	}

	log.Info("generate completed", zap.Int("response_len", len(text)))
	return text, nil
}

func firstText(resp generateResponse) (string, *Failure) {
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", malformedResponse("prompt blocked: "+resp.PromptFeedback.BlockReason, nil)
		}
		return "", malformedResponse("no candidates returned", nil)
	}
	first := resp.Candidates[0]
	if len(first.Content.Parts) == 0 {
		if first.FinishReason != "" {
			return "", malformedResponse("candidate has no content (finish reason "+first.FinishReason+")", nil)
		}
		return "", malformedResponse("candidate has no content", nil)
	}
	text := first.Content.Parts[0].Text
	if text == nil || *text == "" {
		return "", malformedResponse("candidate has no text", nil)
	}
	return *text, nil
}
