// Package openai implements the advisory collaborator on top of an
// OpenAI-compatible chat/completions endpoint.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/a3tai/contract-guardian/internal/advisory"
	apperrors "github.com/a3tai/contract-guardian/internal/errors"
)

const (
	analysisMaxTokens = 2000
	adviceMaxTokens   = 1000
)

const analysisSystemPrompt = `You are Contract Guardian, an expert contract analyst specializing in protecting creators, influencers, and content producers from unfair contract terms.

Your role is to:
1. Identify potential risks and unfair terms that could harm the signer
2. Provide clear, actionable recommendations
3. Assess the overall fairness of the contract
4. Focus on protecting the signer's rights, income, and creative control

Analyze the contract text and provide a structured response in JSON format with the following fields:
- summary: A brief 2-3 sentence overview of what this contract is about
- key_risks: Array of objects with "risk" and "impact" fields describing major concerns
- recommendations: Array of specific, actionable recommendations for the signer
- overall_assessment: A brief assessment of whether this contract is fair, concerning, or needs significant changes
- confidence_score: A number between 0-1 indicating your confidence in this analysis

Be thorough but concise. Focus on the most important issues that could significantly impact the signer.`

const adviceSystemPrompt = `You are Contract Guardian, a helpful assistant for contract-related questions. Provide clear, practical advice focused on protecting the signer's interests. Keep responses concise and actionable.`

// Config for the OpenAI client
type Config struct {
	APIKey      string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // default gpt-4
	Temperature float64       // default 0.3
	Timeout     time.Duration // http client timeout, default 30s
}

// Client calls chat/completions for narratives and free-form advice
type Client struct {
	cfg        Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient creates a client. It does not check that a key is present.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4"
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		log:        logger,
	}
}

// New returns a Client when an API key is available and advisory.Noop otherwise
func New(cfg Config, logger *slog.Logger) advisory.Advisor {
	c := NewClient(cfg, logger)
	if !c.Available() {
		c.log.Warn("advisory.unconfigured", "hint", "set OPENAI_API_KEY to enable narrative analysis")
		return advisory.Noop{}
	}
	return c
}

// Available reports whether an API key is configured
func (c *Client) Available() bool {
	return c.cfg.APIKey != ""
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.cfg.Model
}

// Advise asks the model for a JSON narrative and validates it before decoding
func (c *Client) Advise(ctx context.Context, text, title string) (*advisory.Narrative, error) {
	if !c.Available() {
		return nil, apperrors.New(apperrors.KindAdvisoryUnavailable, "OpenAI API key not configured")
	}
	if title == "" {
		title = "Contract"
	}

	rid := uuid.New().String()
	start := time.Now()
	c.log.Info("advisory.analyze.start", "req_id", rid, "model", c.cfg.Model, "text_len", len(text))

	user := fmt.Sprintf("Please analyze this contract titled %q:\n\n%s\n\nProvide your analysis in the JSON format specified above.", title, text)
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"max_tokens":      analysisMaxTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": analysisSystemPrompt},
			{"role": "user", "content": user},
		},
	}

	content, err := c.complete(ctx, rid, body)
	if err != nil {
		return nil, err
	}
	content = stripCodeFence(content)

	if err := advisory.ValidateNarrativeJSON([]byte(content)); err != nil {
		c.log.Error("advisory.analyze.schema_validation_failed",
			"req_id", rid, "error", err, "content", truncate(content, 2048),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, apperrors.Wrap(apperrors.KindAdvisoryUnavailable, "model returned invalid narrative", err)
	}
	n, err := advisory.ParseNarrative([]byte(content))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindAdvisoryUnavailable, "model returned invalid narrative", err)
	}

	c.log.Info("advisory.analyze.ok",
		"req_id", rid,
		"risks", len(n.KeyRisks),
		"confidence", n.ConfidenceScore,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return n, nil
}

// Ask returns free-form advice on a contract question
func (c *Client) Ask(ctx context.Context, question, contractContext string) (string, error) {
	if !c.Available() {
		return "", apperrors.New(apperrors.KindAdvisoryUnavailable, "OpenAI API key not configured")
	}
	if strings.TrimSpace(question) == "" {
		return "", apperrors.New(apperrors.KindInvalidInput, "question is required")
	}

	rid := uuid.New().String()
	var user strings.Builder
	user.WriteString("Question: " + question + "\n\n")
	if contractContext != "" {
		user.WriteString("Contract context: " + contractContext + "\n\n")
	}
	user.WriteString("Please provide helpful advice.")

	body := map[string]any{
		"model":       c.cfg.Model,
		"temperature": c.cfg.Temperature,
		"max_tokens":  adviceMaxTokens,
		"messages": []map[string]any{
			{"role": "system", "content": adviceSystemPrompt},
			{"role": "user", "content": user.String()},
		},
	}
	return c.complete(ctx, rid, body)
}

// complete posts a chat/completions request and returns the first choice's content
func (c *Client) complete(ctx context.Context, rid string, body map[string]any) (string, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"

	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		c.log.Error("advisory.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", apperrors.Wrap(apperrors.KindAdvisoryUnavailable, "advisory request failed", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("advisory.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return "", apperrors.Wrap(apperrors.KindAdvisoryUnavailable, "decode advisory response", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("advisory.no_choices", "req_id", rid, "raw", truncate(string(raw), 2048))
		return "", apperrors.New(apperrors.KindAdvisoryUnavailable, "no choices in advisory response")
	}

	c.log.Debug("advisory.http_ok", "req_id", rid, "elapsed_ms", time.Since(start).Milliseconds())
	return strings.TrimSpace(cc.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.log.Warn("advisory.response_body_close_error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, truncate(buf.String(), 512))
	}
	return buf.Bytes(), nil
}

// stripCodeFence removes a ```json ... ``` wrapper some models add despite JSON mode
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
