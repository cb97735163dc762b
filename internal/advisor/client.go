// Package advisor talks to the hosted assistant that proposes machine
// changes for the draft being edited.
package advisor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"machine-fleet-backend/config"
	"machine-fleet-backend/internal/draft"
	"machine-fleet-backend/internal/model"
)

var tracer = otel.Tracer("machine-fleet-backend/internal/advisor")

var (
	// ErrDisabled is returned when no advisor endpoint is configured.
	ErrDisabled = errors.New("advisor is not configured")
	// ErrUpstream wraps failed or malformed advisor replies.
	ErrUpstream = errors.New("advisor request failed")
)

// maxReplyBytes caps how much of a reply is read.
const maxReplyBytes = 1 << 20

// Suggestion is the assistant's answer: a message for the user and an
// optional partial machine to merge into the draft.
type Suggestion struct {
	Message string       `json:"message"`
	Patch   *draft.Patch `json:"patch,omitempty"`
}

type request struct {
	Prompt  string         `json:"prompt"`
	Machine *model.Machine `json:"machine"`
}

// Client posts prompts to the advisor endpoint.
type Client struct {
	cfg    config.AdvisorConfig
	client *http.Client
}

// NewClient creates a client from config.
func NewClient(cfg config.AdvisorConfig) *Client {
	var transport http.RoundTripper = &http.Transport{}
	if cfg.HTTPProxy != "" {
		proxyURL, err := url.Parse(cfg.HTTPProxy)
		if err != nil {
			log.Printf("Warning: Invalid proxy URL %q: %v. Advisor will not use a proxy.", cfg.HTTPProxy, err)
		} else {
			transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return &Client{
		cfg: cfg,
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
	}
}

// Enabled reports whether suggestions can be requested.
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled && c.cfg.URL != ""
}

// Suggest asks the assistant about machine m.
func (c *Client) Suggest(ctx context.Context, m *model.Machine, prompt string) (*Suggestion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	ctx, span := tracer.Start(ctx, "advisor.Suggest")
	defer span.End()

	s, err := c.post(ctx, m, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Bool("advisor.patch", !s.Patch.Empty()))
	return s, nil
}

func (c *Client) post(ctx context.Context, m *model.Machine, prompt string) (*Suggestion, error) {
	body, err := json.Marshal(request{Prompt: prompt, Machine: m})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal advisor request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	for key, value := range c.cfg.Headers {
		req.Header.Set(key, value)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read reply: %v", ErrUpstream, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var s Suggestion
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal reply: %v", ErrUpstream, err)
	}
	if s.Message == "" && s.Patch.Empty() {
		return nil, fmt.Errorf("%w: empty reply", ErrUpstream)
	}
	return &s, nil
}
