package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribeMultipartShape(t *testing.T) {
	var gotModel, gotFormat, gotAuth, gotFilename string
	var gotAudio []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse form: %v", err)
		}
		gotModel = r.FormValue("model")
		gotFormat = r.FormValue("response_format")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		gotFilename = header.Filename
		buf := make([]byte, 16)
		n, _ := file.Read(buf)
		gotAudio = buf[:n]
		_ = json.NewEncoder(w).Encode(map[string]any{
			"text":     " hello world ",
			"language": "en",
			"duration": 1.5,
			"segments": []map[string]any{
				{"no_speech_prob": 0.1},
				{"no_speech_prob": 0.3},
			},
		})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, "stt-key")
	got, err := tr.Transcribe(context.Background(), []byte("RIFF"), "wav")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "hello world" || got.Language != "en" || got.Duration != 1.5 {
		t.Fatalf("transcription = %+v", got)
	}
	// (1 - 0.2) * 100
	if got.Confidence != 80 {
		t.Fatalf("confidence = %v, want 80", got.Confidence)
	}
	if gotModel != DefaultSTTModel || gotFormat != "verbose_json" {
		t.Fatalf("form model=%q response_format=%q", gotModel, gotFormat)
	}
	if gotFilename != "audio.wav" || string(gotAudio) != "RIFF" {
		t.Fatalf("file %q payload %q", gotFilename, gotAudio)
	}
	if gotAuth != "Bearer stt-key" {
		t.Fatalf("auth = %q", gotAuth)
	}
}

func TestTranscribeExplicitConfidenceWins(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "hi", "confidence": 42.5})
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, "")
	got, err := tr.Transcribe(context.Background(), []byte("x"), "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Confidence != 42.5 {
		t.Fatalf("confidence = %v, want 42.5", got.Confidence)
	}
}

func TestTranscribeErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tr := NewHTTPTranscriber(srv.URL, "")
	if _, err := tr.Transcribe(context.Background(), []byte("x"), "wav"); err == nil {
		t.Fatal("expected an error")
	}
}

func TestSynthesize(t *testing.T) {
	var got speechRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/speech" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_, _ = w.Write([]byte("FAKEWAV"))
	}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, "", WithTTSVoice("nova"))
	out, err := s.Synthesize(context.Background(), "say this")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(out.Audio) != "FAKEWAV" || out.Format != DefaultTTSFormat {
		t.Fatalf("synthesis = %+v", out)
	}
	if got.Input != "say this" || got.Voice != "nova" || got.Model != DefaultTTSModel {
		t.Fatalf("request = %+v", got)
	}
}

func TestSynthesizeEmptyBodyIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	s := NewHTTPSynthesizer(srv.URL, "")
	if _, err := s.Synthesize(context.Background(), "hi"); err == nil {
		t.Fatal("expected an error for an empty audio body")
	}
}
