package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	// DefaultTTSModel is the default synthesis model name.
	DefaultTTSModel = "tts-1"

	// DefaultTTSVoice is the default voice id.
	DefaultTTSVoice = "alloy"

	// DefaultTTSFormat is the audio container requested from the backend.
	DefaultTTSFormat = "wav"
)

// HTTPSynthesizer talks to an OpenAI-compatible /v1/audio/speech endpoint.
type HTTPSynthesizer struct {
	baseURL    string
	apiKey     string
	model      string
	voice      string
	format     string
	httpClient *http.Client
}

// SynthesizerOption configures an HTTPSynthesizer.
type SynthesizerOption func(*HTTPSynthesizer)

// WithTTSModel overrides the synthesis model.
func WithTTSModel(model string) SynthesizerOption {
	return func(s *HTTPSynthesizer) {
		if model != "" {
			s.model = model
		}
	}
}

// WithTTSVoice overrides the voice id.
func WithTTSVoice(voice string) SynthesizerOption {
	return func(s *HTTPSynthesizer) {
		if voice != "" {
			s.voice = voice
		}
	}
}

// WithTTSFormat overrides the requested audio container.
func WithTTSFormat(format string) SynthesizerOption {
	return func(s *HTTPSynthesizer) {
		if format != "" {
			s.format = format
		}
	}
}

// WithTTSHTTPClient sets a custom HTTP client.
func WithTTSHTTPClient(client *http.Client) SynthesizerOption {
	return func(s *HTTPSynthesizer) { s.httpClient = client }
}

// NewHTTPSynthesizer creates a synthesizer against baseURL. The api key may
// be empty for local backends.
func NewHTTPSynthesizer(baseURL, apiKey string, opts ...SynthesizerOption) *HTTPSynthesizer {
	s := &HTTPSynthesizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      DefaultTTSModel,
		voice:      DefaultTTSVoice,
		format:     DefaultTTSFormat,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format,omitempty"`
}

// Synthesize renders text as audio bytes in the configured format.
func (s *HTTPSynthesizer) Synthesize(ctx context.Context, text string) (*Synthesis, error) {
	body, err := json.Marshal(speechRequest{
		Model:          s.model,
		Voice:          s.voice,
		Input:          text,
		ResponseFormat: s.format,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/audio/speech", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("synthesis failed: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("synthesis returned no audio")
	}
	return &Synthesis{Audio: audio, Format: s.format}, nil
}
