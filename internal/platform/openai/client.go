package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/yungbote/deckforge-backend/internal/observability"
	"github.com/yungbote/deckforge-backend/internal/platform/credentials"
	"github.com/yungbote/deckforge-backend/internal/platform/ctxutil"
	"github.com/yungbote/deckforge-backend/internal/platform/httpx"
	"github.com/yungbote/deckforge-backend/internal/platform/logger"
)

// CredentialSource supplies the API key; it is consulted before every request.
type CredentialSource interface {
	APIKey(ctx context.Context) (string, error)
}

// ErrNoCredential is returned (wrapped) when the CredentialSource has no key, signalled
// by an empty key or credentials.ErrMissing. Other source errors pass through.
var ErrNoCredential = errors.New("openai: no api key configured")

type Config struct {
	BaseURL             string
	Model               string
	ImageModel          string
	ImageSize           string
	ImageQuality        string
	ImageStyle          string
	ImageResponseFormat string // url|b64_json
	Timeout             time.Duration
	MaxRetries          int
	Temperature         *float64
}

func DefaultConfig() Config {
	return Config{
		BaseURL:             "https://api.openai.com",
		Model:               "gpt-4o",
		ImageModel:          "dall-e-3",
		ImageSize:           "1792x1024",
		ImageQuality:        "standard",
		ImageStyle:          "natural",
		ImageResponseFormat: "b64_json",
		Timeout:             180 * time.Second,
	}
}

// Turn is one conversational message passed through to the Responses API.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ImageRequest struct {
	Prompt string
	// Optional overrides of the configured defaults.
	Size           string
	Quality        string
	Style          string
	ResponseFormat string
}

// ImageResult carries exactly one of URL or B64JSON.
type ImageResult struct {
	URL           string
	B64JSON       string
	RevisedPrompt string
}

type Client interface {
	// GenerateJSONText requests strict json_schema output and returns the raw output text
	// without parsing it.
	GenerateJSONText(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (string, error)

	GenerateImage(ctx context.Context, req ImageRequest) (ImageResult, error)

	// StreamText streams output_text deltas and returns the full text.
	StreamText(ctx context.Context, system string, turns []Turn, onDelta func(delta string)) (string, error)
}

type client struct {
	log        *logger.Logger
	creds      CredentialSource
	cfg        Config
	httpClient *http.Client
}

func NewClient(log *logger.Logger, creds CredentialSource, cfg Config) (Client, error) {
	return NewClientWithHTTPClient(log, creds, cfg, nil)
}

func NewClientWithHTTPClient(log *logger.Logger, creds CredentialSource, cfg Config, hc *http.Client) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if creds == nil {
		return nil, fmt.Errorf("credential source required")
	}
	def := DefaultConfig()
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = def.Model
	}
	if strings.TrimSpace(cfg.ImageModel) == "" {
		cfg.ImageModel = def.ImageModel
	}
	if strings.TrimSpace(cfg.ImageSize) == "" {
		cfg.ImageSize = def.ImageSize
	}
	if strings.TrimSpace(cfg.ImageResponseFormat) == "" {
		cfg.ImageResponseFormat = def.ImageResponseFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		creds:      creds,
		cfg:        cfg,
		httpClient: hc,
	}, nil
}

// HTTPError is a non-2xx provider response.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, truncate(e.Body, 512))
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

func (c *client) apiKey(ctx context.Context) (string, error) {
	key, err := c.creds.APIKey(ctx)
	if errors.Is(err, credentials.ErrMissing) {
		return "", fmt.Errorf("%w: %v", ErrNoCredential, err)
	}
	if err != nil {
		return "", fmt.Errorf("load api key: %w", err)
	}
	if strings.TrimSpace(key) == "" {
		return "", ErrNoCredential
	}
	return key, nil
}

func (c *client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	key, err := c.apiKey(ctx)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctxutil.Default(ctx), method, c.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+key)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path, model string, body any, out any) error {
	ctx, span := observability.StartSpan(ctx, "openai "+path, attribute.String("openai.model", model))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	backoff := time.Second
	start := time.Now()
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err = ctx.Err(); err != nil {
			return err
		}
		var (
			resp *http.Response
			raw  []byte
		)
		resp, raw, err = c.doOnce(ctx, method, path, body)
		if err == nil {
			inputTokens, outputTokens := extractUsage(raw)
			observability.Current().ObserveLLMRequest(model, path, statusFromResp(resp), time.Since(start), inputTokens, outputTokens)
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				err = fmt.Errorf("openai decode error: %w", uErr)
				return err
			}
			return nil
		}
		if errors.Is(err, ErrNoCredential) {
			return err
		}
		if !httpx.IsRetryableError(err) || attempt == c.cfg.MaxRetries {
			observability.Current().ObserveLLMRequest(model, path, statusFromRespErr(resp, err), time.Since(start), 0, 0)
			return err
		}

		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("OpenAI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.cfg.MaxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)
		if sErr := httpx.Sleep(ctx, sleepFor); sErr != nil {
			err = sErr
			return err
		}
		backoff *= 2
	}
	return err
}

// -------------------- Images API --------------------

type imagesGenerationRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	N              int    `json:"n"`
	Size           string `json:"size,omitempty"`
	Quality        string `json:"quality,omitempty"`
	Style          string `json:"style,omitempty"`
	ResponseFormat string `json:"response_format,omitempty"`
}

type imagesGenerationResponse struct {
	Data []struct {
		B64JSON       string `json:"b64_json"`
		URL           string `json:"url"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

func pick(override, def string) string {
	if v := strings.TrimSpace(override); v != "" {
		return v
	}
	return strings.TrimSpace(def)
}

func (c *client) GenerateImage(ctx context.Context, in ImageRequest) (ImageResult, error) {
	var out ImageResult
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return out, errors.New("image prompt required")
	}
	req := imagesGenerationRequest{
		Model:          c.cfg.ImageModel,
		Prompt:         prompt,
		N:              1,
		Size:           pick(in.Size, c.cfg.ImageSize),
		Quality:        pick(in.Quality, c.cfg.ImageQuality),
		Style:          pick(in.Style, c.cfg.ImageStyle),
		ResponseFormat: pick(in.ResponseFormat, c.cfg.ImageResponseFormat),
	}

	var resp imagesGenerationResponse
	if err := c.do(ctx, http.MethodPost, "/v1/images/generations", req.Model, req, &resp); err != nil {
		return out, err
	}
	if len(resp.Data) == 0 {
		return out, errors.New("no image returned")
	}
	item := resp.Data[0]
	out.RevisedPrompt = strings.TrimSpace(item.RevisedPrompt)
	out.B64JSON = strings.TrimSpace(item.B64JSON)
	out.URL = strings.TrimSpace(item.URL)
	if out.B64JSON == "" && out.URL == "" {
		return out, errors.New("image response missing b64_json and url")
	}
	if out.B64JSON != "" {
		out.URL = ""
	}
	return out, nil
}

// -------------------- Responses API --------------------

type responsesInput struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responsesRequest struct {
	Model string           `json:"model"`
	Input []responsesInput `json:"input"`

	Text *struct {
		Format map[string]any `json:"format,omitempty"`
	} `json:"text,omitempty"`

	Temperature *float64 `json:"temperature,omitempty"`

	Stream bool `json:"stream,omitempty"`
}

type responsesResponse struct {
	Output []struct {
		Type    string `json:"type"`
		Role    string `json:"role,omitempty"`
		Content []struct {
			Type    string `json:"type"`
			Text    string `json:"text,omitempty"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"content,omitempty"`
	} `json:"output"`
	Refusal string `json:"refusal,omitempty"`
}

func extractOutputText(resp responsesResponse) (string, string) {
	var out strings.Builder
	refusal := strings.TrimSpace(resp.Refusal)
	for _, item := range resp.Output {
		if item.Type != "message" || item.Role != "assistant" {
			continue
		}
		for _, c := range item.Content {
			switch c.Type {
			case "output_text":
				out.WriteString(c.Text)
			case "refusal":
				if refusal == "" {
					refusal = strings.TrimSpace(c.Refusal)
				}
			}
		}
	}
	return out.String(), refusal
}

func (c *client) GenerateJSONText(ctx context.Context, system string, user string, schemaName string, schema map[string]any) (string, error) {
	if schemaName == "" {
		return "", errors.New("schemaName required")
	}
	if schema == nil {
		return "", errors.New("schema required")
	}
	req := responsesRequest{
		Model: c.cfg.Model,
		Input: []responsesInput{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: c.cfg.Temperature,
	}
	req.Text = &struct {
		Format map[string]any `json:"format,omitempty"`
	}{Format: map[string]any{
		"type":   "json_schema",
		"name":   schemaName,
		"schema": schema,
		"strict": true,
	}}

	var resp responsesResponse
	if err := c.do(ctx, http.MethodPost, "/v1/responses", req.Model, req, &resp); err != nil {
		return "", err
	}
	text, refusal := extractOutputText(resp)
	if refusal != "" {
		return "", fmt.Errorf("model refused: %s", refusal)
	}
	return text, nil
}

// StreamText streams output_text deltas from the Responses API. Any non-empty delta is
// forwarded to onDelta and accumulated into the returned text.
func (c *client) StreamText(ctx context.Context, system string, turns []Turn, onDelta func(delta string)) (string, error) {
	input := make([]responsesInput, 0, len(turns)+1)
	input = append(input, responsesInput{Role: "system", Content: strings.TrimSpace(system)})
	inputTokens := estimateTokens(system)
	for _, t := range turns {
		role := strings.ToLower(strings.TrimSpace(t.Role))
		if role != "assistant" {
			role = "user"
		}
		input = append(input, responsesInput{Role: role, Content: t.Content})
		inputTokens += estimateTokens(t.Content)
	}
	body := responsesRequest{Model: c.cfg.Model, Input: input, Temperature: c.cfg.Temperature, Stream: true}

	ctx, span := observability.StartSpan(ctx, "openai /v1/responses stream", attribute.String("openai.model", body.Model))
	var err error
	defer func() { observability.EndSpan(span, err) }()
	start := time.Now()

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/responses", body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		observability.Current().ObserveLLMRequest(body.Model, "/v1/responses", statusFromRespErr(nil, err), time.Since(start), inputTokens, 0)
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(resp.Body)
		err = &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
		observability.Current().ObserveLLMRequest(body.Model, "/v1/responses", statusFromResp(resp), time.Since(start), inputTokens, 0)
		return "", err
	}

	var full strings.Builder
	err = streamSSE(resp.Body, func(event string, data string) error {
		data = strings.TrimSpace(data)
		if data == "" || data == "[DONE]" {
			return nil
		}
		var evt streamEvent
		if json.Unmarshal([]byte(data), &evt) != nil {
			return nil
		}
		name := strings.TrimSpace(evt.Type)
		if name == "" {
			name = strings.TrimSpace(event)
		}
		if evt.Refusal != "" {
			return fmt.Errorf("model refused: %s", evt.Refusal)
		}
		if len(evt.Error) > 0 && string(evt.Error) != "null" {
			return fmt.Errorf("openai stream error: %s", string(evt.Error))
		}
		if strings.Contains(name, "output_text.delta") && evt.Delta != "" {
			full.WriteString(evt.Delta)
			if onDelta != nil {
				onDelta(evt.Delta)
			}
		}
		return nil
	})
	observability.Current().ObserveLLMRequest(body.Model, "/v1/responses", statusFromResp(resp), time.Since(start), inputTokens, estimateTokens(full.String()))
	if err != nil {
		return "", err
	}
	return full.String(), nil
}

type streamEvent struct {
	Type    string          `json:"type"`
	Delta   string          `json:"delta"`
	Refusal string          `json:"refusal"`
	Error   json.RawMessage `json:"error"`
}

// -------------------- helpers --------------------

func extractUsage(raw []byte) (int, int) {
	if len(raw) == 0 {
		return 0, 0
	}
	var payload struct {
		Usage *struct {
			InputTokens      int `json:"input_tokens"`
			OutputTokens     int `json:"output_tokens"`
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Usage == nil {
		return 0, 0
	}
	u := payload.Usage
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return u.PromptTokens, u.CompletionTokens
	}
	return u.InputTokens, u.OutputTokens
}

func statusFromResp(resp *http.Response) string {
	if resp == nil {
		return "unknown"
	}
	return strconv.Itoa(resp.StatusCode)
}

func statusFromRespErr(resp *http.Response, err error) string {
	if resp != nil {
		return strconv.Itoa(resp.StatusCode)
	}
	if code := httpx.StatusCode(err); code != 0 {
		return strconv.Itoa(code)
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "error"
}

func estimateTokens(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	return int(math.Ceil(float64(len([]rune(text))) / 4.0))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
