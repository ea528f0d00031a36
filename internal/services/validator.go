package services

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mithix/backend/internal/models"
)

// ErrValidation can be used with errors.Is to detect request validation failures.
var ErrValidation = errors.New("validation failed")

const (
	DefaultWidth     = 1024
	DefaultHeight    = 1024
	DefaultNumImages = 1
	// Distilled models need only a few steps.
	DefaultFastSteps     = 4
	DefaultStandardSteps = 30
)

//go:embed schemas/generate_image.json
var generateImageSchema []byte

const generateImageSchemaID = "https://mithix.ai/schemas/generate_image.json"

// GenerateImageRequest is the decoded body of POST /api/generate-image.
type GenerateImageRequest struct {
	Prompt         string   `json:"prompt"`
	NegativePrompt *string  `json:"negativePrompt"`
	Model          string   `json:"model"`
	StylePreset    *string  `json:"stylePreset"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Steps          int      `json:"steps"`
	CfgScale       *float64 `json:"cfgScale"`
	Seed           *int64   `json:"seed"`
	NumImages      int      `json:"numImages"`
	UserID         *string  `json:"userId"`

	ModelID models.ModelID `json:"-"`
}

// FieldError is one schema violation, keyed by the offending field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RequestValidationError lists every violation found in a request body.
type RequestValidationError struct {
	Fields []FieldError
}

func (e *RequestValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

func (e *RequestValidationError) Unwrap() error { return ErrValidation }

type Validator struct {
	schema *jsonschema.Schema
}

// NewValidator compiles the embedded request schema with the model enum
// taken from the catalog.
func NewValidator() (*Validator, error) {
	var doc map[string]any
	if err := json.Unmarshal(generateImageSchema, &doc); err != nil {
		return nil, fmt.Errorf("parse request schema: %w", err)
	}
	props, ok := doc["properties"].(map[string]any)
	if !ok {
		return nil, errors.New("request schema: missing properties")
	}
	model, ok := props["model"].(map[string]any)
	if !ok {
		return nil, errors.New("request schema: missing model property")
	}
	known := models.KnownModels()
	enum := make([]any, len(known))
	for i, m := range known {
		enum[i] = string(m)
	}
	model["enum"] = enum

	src, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode request schema: %w", err)
	}
	schema, err := jsonschema.CompileString(generateImageSchemaID, string(src))
	if err != nil {
		return nil, fmt.Errorf("compile request schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// ParseGenerateRequest validates raw against the schema and decodes it with
// defaults applied. Failures are *RequestValidationError.
func (v *Validator) ParseGenerateRequest(raw []byte) (*GenerateImageRequest, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &RequestValidationError{Fields: []FieldError{{Field: "body", Message: "malformed JSON: " + err.Error()}}}
	}
	if err := v.schema.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, &RequestValidationError{Fields: fieldErrors(ve)}
		}
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var req GenerateImageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, &RequestValidationError{Fields: []FieldError{{Field: "body", Message: err.Error()}}}
	}
	id, ok := models.ParseModel(req.Model)
	if !ok {
		return nil, &RequestValidationError{Fields: []FieldError{{Field: "model", Message: "unknown model"}}}
	}
	req.ModelID = id
	applyDefaults(&req)
	return &req, nil
}

func applyDefaults(req *GenerateImageRequest) {
	if req.Width == 0 {
		req.Width = DefaultWidth
	}
	if req.Height == 0 {
		req.Height = DefaultHeight
	}
	if req.NumImages == 0 {
		req.NumImages = DefaultNumImages
	}
	if req.Steps == 0 {
		switch req.ModelID.Tier() {
		case models.TierFast:
			req.Steps = DefaultFastSteps
		default:
			req.Steps = DefaultStandardSteps
		}
	}
}

// fieldErrors flattens the leaf causes of a schema failure.
func fieldErrors(ve *jsonschema.ValidationError) []FieldError {
	var out []FieldError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := strings.TrimPrefix(e.InstanceLocation, "/")
			if field == "" {
				field = "body"
			}
			out = append(out, FieldError{Field: field, Message: e.Message})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}
