// Package inference talks to the hosted text-to-image API.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/mithix/backend/internal/metrics"
	"github.com/mithix/backend/internal/models"
)

var (
	ErrNotConfigured = errors.New("inference API key not configured")
	ErrModelLoading  = errors.New("model is currently loading")
	ErrUnauthorized  = errors.New("inference API rejected the credentials")
	ErrBadResponse   = errors.New("unexpected response format from inference API")
	ErrUpstream      = errors.New("inference API request failed")
)

// UpstreamError carries the status and raw body of a failed upstream call.
type UpstreamError struct {
	Err    error
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v (status %d)", e.Err, e.Status)
	}
	return fmt.Sprintf("%v (status %d): %s", e.Err, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Request is one text-to-image call.
type Request struct {
	Model          models.ModelID
	Prompt         string
	Width          int
	Height         int
	Steps          int
	CfgScale       *float64
	NegativePrompt *string
	Seed           *int64
}

// Image is the raw payload returned upstream.
type Image struct {
	Data        []byte
	ContentType string
}

type Client interface {
	GenerateImage(ctx context.Context, req Request) (*Image, error)
}

type Options struct {
	BaseURL  string
	APIKey   string
	Timeout  time.Duration
	MaxBytes int64
}

// HFClient calls the Hugging Face Inference API.
type HFClient struct {
	baseURL    string
	apiKey     string
	maxBytes   int64
	httpClient *http.Client
}

var _ Client = (*HFClient)(nil)

func NewHFClient(opts Options) *HFClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 * 1024 * 1024
	}
	return &HFClient{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		maxBytes:   opts.MaxBytes,
		httpClient: &http.Client{Timeout: opts.Timeout},
	}
}

type hfParameters struct {
	Width             int      `json:"width"`
	Height            int      `json:"height"`
	NumInferenceSteps int      `json:"num_inference_steps"`
	GuidanceScale     *float64 `json:"guidance_scale,omitempty"`
	NegativePrompt    *string  `json:"negative_prompt,omitempty"`
	Seed              *int64   `json:"seed,omitempty"`
}

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

func (c *HFClient) GenerateImage(ctx context.Context, req Request) (*Image, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(hfRequest{
		Inputs: req.Prompt,
		Parameters: hfParameters{
			Width:             req.Width,
			Height:            req.Height,
			NumInferenceSteps: req.Steps,
			GuidanceScale:     req.CfgScale,
			NegativePrompt:    req.NegativePrompt,
			Seed:              req.Seed,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+string(req.Model), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.RecordInference(string(req.Model), "network_error", time.Since(start).Seconds())
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()
	metrics.RecordInference(string(req.Model), strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if err := mapHTTPError(resp); err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if int64(len(data)) > c.maxBytes {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", ErrBadResponse, c.maxBytes)
	}

	header := resp.Header.Get("Content-Type")
	if !strings.Contains(header, "image") {
		return nil, &UpstreamError{Err: ErrBadResponse, Status: resp.StatusCode, Body: truncate(data)}
	}
	return &Image{Data: data, ContentType: contentType(header, data)}, nil
}

func mapHTTPError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	text := strings.TrimSpace(string(body))

	switch resp.StatusCode {
	case http.StatusServiceUnavailable:
		return &UpstreamError{Err: ErrModelLoading, Status: resp.StatusCode, Body: text}
	case http.StatusUnauthorized, http.StatusForbidden:
		return &UpstreamError{Err: ErrUnauthorized, Status: resp.StatusCode, Body: text}
	default:
		return &UpstreamError{Err: ErrUpstream, Status: resp.StatusCode, Body: text}
	}
}

// contentType prefers the sniffed type and falls back to the declared one.
func contentType(header string, data []byte) string {
	if detected := mimetype.Detect(data); strings.HasPrefix(detected.String(), "image/") {
		mt, _, _ := mime.ParseMediaType(detected.String())
		return mt
	}
	if mt, _, err := mime.ParseMediaType(header); err == nil {
		return mt
	}
	return "image/jpeg"
}

func truncate(data []byte) string {
	const limit = 1024
	if len(data) > limit {
		data = data[:limit]
	}
	return strings.TrimSpace(string(data))
}
