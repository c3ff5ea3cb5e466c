// Package chatwoot is a small client for the Chatwoot application API.
package chatwoot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const accessTokenHeader = "Api-Access-Token"

type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

type Options struct {
	BaseURL       string
	Timeout       time.Duration
	RatePerSecond float64
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

// APIError is a non-2xx response from Chatwoot.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("chatwoot api returned %d: %s", e.StatusCode, e.Body)
}

type TemplateParams struct {
	Name            string          `json:"name"`
	Category        string          `json:"category"`
	Language        string          `json:"language"`
	ProcessedParams ProcessedParams `json:"processed_params"`
}

type ProcessedParams struct {
	Body map[string]string `json:"body"`
}

type MessageRequest struct {
	Content        string          `json:"content"`
	MessageType    string          `json:"message_type"`
	TemplateParams *TemplateParams `json:"template_params,omitempty"`
}

// TemplateMessage builds the outgoing note Chatwoot relays as a template send.
func TemplateMessage(templateName, category, language string, body map[string]string) MessageRequest {
	if body == nil {
		body = map[string]string{}
	}
	return MessageRequest{
		Content:     "Triggered template " + templateName,
		MessageType: "outgoing",
		TemplateParams: &TemplateParams{
			Name:            templateName,
			Category:        category,
			Language:        language,
			ProcessedParams: ProcessedParams{Body: body},
		},
	}
}

// SendMessage posts msg into the conversation and returns the Chatwoot
// message id, or "" when the response has none.
func (c *Client) SendMessage(ctx context.Context, creds Credentials, conversationID string, msg MessageRequest) (string, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/conversations/%s/messages", creds.AccountID, conversationID)
	resp, err := c.do(ctx, http.MethodPost, path, creds.APIAccessToken, msg)
	if err != nil {
		return "", err
	}

	var created struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(resp, &created); err != nil {
		return "", nil
	}
	return idString(created.ID), nil
}

// Contact fetches a contact record as an untyped JSON tree.
func (c *Client) Contact(ctx context.Context, creds Credentials, contactID string) (interface{}, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/contacts/%s", creds.AccountID, contactID)
	return c.getTree(ctx, path, creds.APIAccessToken)
}

// Conversation fetches a conversation record as an untyped JSON tree.
func (c *Client) Conversation(ctx context.Context, creds Credentials, conversationID string) (interface{}, error) {
	path := fmt.Sprintf("/api/v1/accounts/%s/conversations/%s", creds.AccountID, conversationID)
	return c.getTree(ctx, path, creds.APIAccessToken)
}

func (c *Client) getTree(ctx context.Context, path, token string) (interface{}, error) {
	resp, err := c.do(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	var tree interface{}
	if err := json.Unmarshal(resp, &tree); err != nil {
		return nil, fmt.Errorf("decode chatwoot response: %w", err)
	}
	return tree, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set(accessTokenHeader, token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, &APIError{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(respBody),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}
	return respBody, nil
}

// errorMessage reads the top-level "error" field, which Chatwoot sends as a
// string.
func errorMessage(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || len(envelope.Error) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(envelope.Error, &text); err == nil {
		return text
	}
	return ""
}

// idString accepts both numeric and string ids.
func idString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
