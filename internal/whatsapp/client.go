package whatsapp

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

// Client talks to the Meta WhatsApp Cloud API. Credentials are per request
// because every sequence belongs to its own business account.
type Client struct {
	baseURL    string
	apiVersion string
	http       *http.Client
	limiter    *rate.Limiter
}

type Options struct {
	BaseURL       string
	APIVersion    string
	Timeout       time.Duration
	RatePerSecond float64
}

func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	burst := 1
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
		burst = int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiVersion: strings.Trim(opts.APIVersion, "/"),
		http:       &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// --- Message Structures ---

type GenericMessage struct {
	MessagingProduct string       `json:"messaging_product"`
	To               string       `json:"to"`
	Type             string       `json:"type"`
	Template         *TemplateObj `json:"template,omitempty"`
}

type TemplateObj struct {
	Name       string         `json:"name"`
	Language   LanguageObj    `json:"language"`
	Components []ComponentObj `json:"components,omitempty"`
}

type LanguageObj struct {
	Code string `json:"code"`
}

type ComponentObj struct {
	Type       string         `json:"type"`
	Parameters []ParameterObj `json:"parameters"`
}

type ParameterObj struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type SendResponse struct {
	MessagingProduct string `json:"messaging_product"`
	Messages         []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// TemplateMessage is a template send addressed to one recipient.
type TemplateMessage struct {
	PhoneNumberID string
	AccessToken   string
	To            string
	TemplateName  string
	LanguageCode  string
	BodyParams    []string
}

// Payload builds the Cloud API request body. The components array is left
// out entirely when the template has no body parameters.
func (m TemplateMessage) Payload() GenericMessage {
	tmpl := &TemplateObj{
		Name:     m.TemplateName,
		Language: LanguageObj{Code: m.LanguageCode},
	}
	if len(m.BodyParams) > 0 {
		params := make([]ParameterObj, 0, len(m.BodyParams))
		for _, p := range m.BodyParams {
			params = append(params, ParameterObj{Type: "text", Text: p})
		}
		tmpl.Components = []ComponentObj{{Type: "body", Parameters: params}}
	}
	return GenericMessage{
		MessagingProduct: "whatsapp",
		To:               m.To,
		Type:             "template",
		Template:         tmpl,
	}
}

// APIError is a non-2xx response. Message holds error.message from the
// Graph error body when present.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("meta api returned %d: %s", e.StatusCode, e.Body)
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, url, token string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewBuffer(jsonData)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token)
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
			Message:    graphErrorMessage(respBody),
			Body:       strings.TrimSpace(string(respBody)),
		}
	}

	return respBody, nil
}

func graphErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}
	return envelope.Error.Message
}

// --- Messaging Methods ---

// SendTemplate posts a template message and returns the message id Meta
// assigned, or "" when the response carries none.
func (c *Client) SendTemplate(ctx context.Context, msg TemplateMessage) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, msg.PhoneNumberID)
	resp, err := c.sendRequest(ctx, http.MethodPost, url, msg.AccessToken, msg.Payload())
	if err != nil {
		return "", err
	}

	var parsed SendResponse
	if err := json.Unmarshal(resp, &parsed); err != nil {
		return "", nil
	}
	if len(parsed.Messages) == 0 {
		return "", nil
	}
	return parsed.Messages[0].ID, nil
}
