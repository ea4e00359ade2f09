package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

func TestChatRequestShape(t *testing.T) {
	var got generateRequest
	var path, key string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{
					"role":  "model",
					"parts": []map[string]string{{"text": "gemini says hi"}},
				}},
			},
		})
	}))
	defer srv.Close()

	p := New("g-key", WithBaseURL(srv.URL))
	text, err := p.Chat(context.Background(), "hi", []llm.Turn{{User: "q", Assistant: "a"}}, "gemini-1.5-pro")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != "gemini says hi" {
		t.Fatalf("text = %q", text)
	}
	if path != "/models/gemini-1.5-pro:generateContent" {
		t.Fatalf("path = %q", path)
	}
	if key != "g-key" {
		t.Fatalf("api key header = %q", key)
	}
	if got.SystemInstruction == nil || len(got.SystemInstruction.Parts) == 0 {
		t.Fatal("system instruction missing")
	}
	if len(got.Contents) != 3 || got.Contents[1].Role != "model" {
		t.Fatalf("contents = %+v", got.Contents)
	}
}

func TestChatErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	p := New("bad", WithBaseURL(srv.URL))
	_, err := p.Chat(context.Background(), "hi", nil, "")
	if err == nil {
		t.Fatal("expected an error")
	}
}

func TestHealthCheckNoKey(t *testing.T) {
	p := New("")
	if p.HealthCheck(context.Background()) {
		t.Fatal("health check passed without an api key")
	}
	if p.Available() {
		t.Fatal("available without an api key")
	}
}
