package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// DefaultSTTModel is the default transcription model name.
const DefaultSTTModel = "whisper-1"

// HTTPTranscriber talks to an OpenAI-compatible /v1/audio/transcriptions
// endpoint (hosted Whisper or a local server exposing the same shape).
type HTTPTranscriber struct {
	baseURL    string
	apiKey     string
	model      string
	language   string
	httpClient *http.Client
}

// TranscriberOption configures an HTTPTranscriber.
type TranscriberOption func(*HTTPTranscriber)

// WithSTTModel overrides the transcription model.
func WithSTTModel(model string) TranscriberOption {
	return func(t *HTTPTranscriber) {
		if model != "" {
			t.model = model
		}
	}
}

// WithSTTLanguage pins the expected language instead of auto-detection.
func WithSTTLanguage(language string) TranscriberOption {
	return func(t *HTTPTranscriber) { t.language = language }
}

// WithSTTHTTPClient sets a custom HTTP client.
func WithSTTHTTPClient(client *http.Client) TranscriberOption {
	return func(t *HTTPTranscriber) { t.httpClient = client }
}

// NewHTTPTranscriber creates a transcriber against baseURL. The api key may
// be empty for local backends.
func NewHTTPTranscriber(baseURL, apiKey string, opts ...TranscriberOption) *HTTPTranscriber {
	t := &HTTPTranscriber{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      DefaultSTTModel,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type transcriptionResponse struct {
	Text       string   `json:"text"`
	Language   string   `json:"language"`
	Duration   float64  `json:"duration"`
	Confidence *float64 `json:"confidence"`
	Segments   []struct {
		NoSpeechProb float64 `json:"no_speech_prob"`
	} `json:"segments"`
}

// Transcribe uploads one utterance and returns its text. Confidence is on a
// 0-100 scale: the backend's own figure when it reports one, otherwise
// derived from per-segment no-speech probabilities.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error) {
	if format == "" {
		format = "wav"
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "audio."+format)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	if err := mw.WriteField("model", t.model); err != nil {
		return nil, fmt.Errorf("write model field: %w", err)
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}
	if t.language != "" {
		if err := mw.WriteField("language", t.language); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/v1/audio/transcriptions", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if t.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("transcription failed: status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed transcriptionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse transcription: %w", err)
	}

	return &Transcription{
		Text:       strings.TrimSpace(parsed.Text),
		Confidence: parsed.confidence(),
		Language:   parsed.Language,
		Duration:   parsed.Duration,
	}, nil
}

func (r *transcriptionResponse) confidence() float64 {
	if r.Confidence != nil {
		return clampPercent(*r.Confidence)
	}
	if len(r.Segments) > 0 {
		sum := 0.0
		for _, s := range r.Segments {
			sum += s.NoSpeechProb
		}
		return clampPercent((1 - sum/float64(len(r.Segments))) * 100)
	}
	if strings.TrimSpace(r.Text) == "" {
		return 0
	}
	return 100
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
