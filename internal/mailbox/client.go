package mailbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"mailpilot/internal/model"
	"mailpilot/pkg/config"
	"mailpilot/pkg/metrics"
	"mailpilot/pkg/trace"
)

// Client talks to the mailbox provider over HTTP. The grant token scopes
// every call to one user's mailbox.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.MailboxConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// FetchPage lists one page of messages. An empty NextCursor in the response
// signals end-of-mailbox.
func (c *Client) FetchPage(ctx context.Context, grant, cursor string, limit int) (model.MailboxPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var page model.MailboxPage
	if err := c.get(ctx, grant, "/messages?"+q.Encode(), "/messages", &page); err != nil {
		return model.MailboxPage{}, fmt.Errorf("mailbox fetch page: %w", err)
	}
	return page, nil
}

// GetMessage fetches one message by id.
func (c *Client) GetMessage(ctx context.Context, grant, id string) (model.EmailMessage, error) {
	var msg model.EmailMessage
	if err := c.get(ctx, grant, "/messages/"+url.PathEscape(id), "/messages/:id", &msg); err != nil {
		return model.EmailMessage{}, fmt.Errorf("mailbox get message: %w", err)
	}
	return msg, nil
}

// FetchThread fetches all messages of a thread, oldest first.
func (c *Client) FetchThread(ctx context.Context, grant, threadID string) ([]model.EmailMessage, error) {
	var out struct {
		Messages []model.EmailMessage `json:"messages"`
	}
	if err := c.get(ctx, grant, "/threads/"+url.PathEscape(threadID), "/threads/:id", &out); err != nil {
		return nil, fmt.Errorf("mailbox fetch thread: %w", err)
	}
	return out.Messages, nil
}

// SendMessage sends an outbound message and returns its id.
func (c *Client) SendMessage(ctx context.Context, grant string, req model.SendRequest) (string, error) {
	start := time.Now()

	b, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	c.setHeaders(ctx, httpReq, grant)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordMailboxCallLatency("/messages:send", "error", time.Since(start))
		return "", fmt.Errorf("mailbox send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		metrics.RecordMailboxCallLatency("/messages:send", fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return "", fmt.Errorf("mailbox provider returned %d", resp.StatusCode)
	}
	metrics.RecordMailboxCallLatency("/messages:send", "success", time.Since(start))

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// get issues one GET and decodes the response. Error messages carry the HTTP
// status code so retry classification can tell 429/5xx from 4xx.
func (c *Client) get(ctx context.Context, grant, path, endpoint string, out any) error {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(ctx, req, grant)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.RecordMailboxCallLatency(endpoint, "error", time.Since(start))
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.RecordMailboxCallLatency(endpoint, fmt.Sprintf("%d", resp.StatusCode), time.Since(start))
		return fmt.Errorf("mailbox provider returned %d", resp.StatusCode)
	}

	metrics.RecordMailboxCallLatency(endpoint, "success", time.Since(start))
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request, grant string) {
	req.Header.Set("Authorization", "Bearer "+grant)
	if traceID := trace.FromContext(ctx); traceID != "" {
		req.Header.Set(trace.HeaderName(), traceID)
	}
}
