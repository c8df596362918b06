package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"mailpilot/internal/model"
	"mailpilot/pkg/circuitbreaker"
	"mailpilot/pkg/config"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/trace"
)

// Client talks to the AI service over HTTP. Callers go through the retrying
// invoker; the breaker keeps a dying AI service from being hammered, and an
// open breaker is classified non-retryable.
type Client struct {
	baseURL        string
	classifyClient *http.Client
	generateClient *http.Client
	cb             *circuitbreaker.CircuitBreaker
}

func NewClient(cfg config.AIConfig) *Client {
	cbConfig := circuitbreaker.Config{
		FailureThreshold:    3,
		SuccessThreshold:    2,
		Timeout:             30 * time.Second,
		HalfOpenMaxRequests: 2,
	}
	return &Client{
		baseURL:        cfg.BaseURL,
		classifyClient: &http.Client{Timeout: cfg.ClassifyTimeout},
		// Generation is slower; it gets its own, longer timeout.
		generateClient: &http.Client{Timeout: cfg.GenerateTimeout},
		cb:             circuitbreaker.NewCircuitBreaker(cbConfig),
	}
}

type classifyRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
	From    string `json:"from"`
}

type generateRequest struct {
	Thread    []model.EmailMessage `json:"thread"`
	Latest    model.EmailMessage   `json:"latest"`
	Style     string               `json:"style"`
	Signature string               `json:"signature"`
}

type generateResponse struct {
	Variants []model.ReplyDraft `json:"variants"`
}

// Classify asks the AI service to classify one email.
func (c *Client) Classify(ctx context.Context, subject, body, from string) (model.Classification, error) {
	var out model.Classification
	err := c.cb.Execute(func() error {
		return c.post(ctx, c.classifyClient, "/classify", classifyRequest{
			Subject: subject,
			Body:    body,
			From:    from,
		}, &out)
	})
	if err != nil {
		return model.Classification{}, fmt.Errorf("ai classify: %w", err)
	}
	return out, nil
}

// GenerateReplies asks the AI service for tone variants of a reply.
func (c *Client) GenerateReplies(ctx context.Context, thread []model.EmailMessage, latest model.EmailMessage, profile model.StyleProfile) ([]model.ReplyDraft, error) {
	var out generateResponse
	err := c.cb.Execute(func() error {
		return c.post(ctx, c.generateClient, "/generate", generateRequest{
			Thread:    thread,
			Latest:    latest,
			Style:     profile.Style,
			Signature: profile.Signature,
		}, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("ai generate: %w", err)
	}
	return out.Variants, nil
}

// post sends one JSON request and decodes the response. Error messages carry
// the HTTP status code so retry classification can tell 429/5xx from 4xx.
func (c *Client) post(ctx context.Context, client *http.Client, endpoint string, payload, out any) error {
	start := time.Now()

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.RecordAICallLatency(endpoint, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordAICallLatency(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return fmt.Errorf("ai service returned %d", resp.StatusCode)
	}

	metrics.RecordAICallLatency(endpoint, "success", time.Since(start))
	return json.NewDecoder(resp.Body).Decode(out)
}
