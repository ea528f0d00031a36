package models

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"
)

// GenerationSettings is the parameter snapshot stored with each record.
type GenerationSettings struct {
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Steps          int      `json:"steps"`
	CfgScale       *float64 `json:"cfgScale"`
	NegativePrompt *string  `json:"negativePrompt"`
	Seed           *int64   `json:"seed"`
}

// GenerationDraft is everything the caller supplies when creating a record.
// Nil pointers are stored as explicit nulls.
type GenerationDraft struct {
	AccountID      *string
	Prompt         string
	NegativePrompt *string
	Model          ModelID
	StylePreset    *string
	ImageData      []byte
	ContentType    string
	Width          int
	Height         int
	Steps          int
	CfgScale       *float64
	Seed           *int64
	Settings       *GenerationSettings
}

// GenerationRecord is the immutable result of one successful generation.
type GenerationRecord struct {
	ID             string              `json:"id"`
	AccountID      *string             `json:"userId"`
	Prompt         string              `json:"prompt"`
	NegativePrompt *string             `json:"negativePrompt"`
	Model          ModelID             `json:"model"`
	StylePreset    *string             `json:"stylePreset"`
	ImageData      []byte              `json:"-"`
	ContentType    string              `json:"contentType"`
	Width          int                 `json:"width"`
	Height         int                 `json:"height"`
	Steps          int                 `json:"steps"`
	CfgScale       *float64            `json:"cfgScale"`
	Seed           *int64              `json:"seed"`
	Settings       *GenerationSettings `json:"settings"`
	CreatedAt      time.Time           `json:"createdAt"`
}

// NewRecord builds a record from a draft, copying every reference so the
// result shares no memory with d.
func NewRecord(id string, d *GenerationDraft, createdAt time.Time) *GenerationRecord {
	r := &GenerationRecord{
		ID:             id,
		AccountID:      d.AccountID,
		Prompt:         d.Prompt,
		NegativePrompt: d.NegativePrompt,
		Model:          d.Model,
		StylePreset:    d.StylePreset,
		ImageData:      d.ImageData,
		ContentType:    d.ContentType,
		Width:          d.Width,
		Height:         d.Height,
		Steps:          d.Steps,
		CfgScale:       d.CfgScale,
		Seed:           d.Seed,
		Settings:       d.Settings,
		CreatedAt:      createdAt,
	}
	return r.Clone()
}

// Clone returns a deep copy of r.
func (r *GenerationRecord) Clone() *GenerationRecord {
	if r == nil {
		return nil
	}
	cp := *r
	cp.AccountID = clonePtr(r.AccountID)
	cp.NegativePrompt = clonePtr(r.NegativePrompt)
	cp.StylePreset = clonePtr(r.StylePreset)
	cp.CfgScale = clonePtr(r.CfgScale)
	cp.Seed = clonePtr(r.Seed)
	if r.ImageData != nil {
		cp.ImageData = append([]byte(nil), r.ImageData...)
	}
	if r.Settings != nil {
		s := *r.Settings
		s.CfgScale = clonePtr(r.Settings.CfgScale)
		s.NegativePrompt = clonePtr(r.Settings.NegativePrompt)
		s.Seed = clonePtr(r.Settings.Seed)
		cp.Settings = &s
	}
	return &cp
}

// ImageURL renders the payload as a data URL.
func (r *GenerationRecord) ImageURL() string {
	ct := r.ContentType
	if ct == "" {
		ct = "image/jpeg"
	}
	return "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(r.ImageData)
}

// FileExtension returns the download extension matching ContentType.
func (r *GenerationRecord) FileExtension() string {
	switch strings.ToLower(r.ContentType) {
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "jpg"
	}
}

func (r *GenerationRecord) MarshalJSON() ([]byte, error) {
	type plain GenerationRecord
	return json.Marshal(struct {
		*plain
		ImageURL string `json:"imageUrl"`
	}{plain: (*plain)(r), ImageURL: r.ImageURL()})
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
