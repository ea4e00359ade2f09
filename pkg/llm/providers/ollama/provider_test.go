package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

func tagsHandler(names ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models := make([]map[string]any, 0, len(names))
		for _, n := range names {
			models = append(models, map[string]any{"name": n, "size": 1 << 30})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"models": models})
	}
}

func TestInitializePrefersLlama31(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("mistral:7b", "llama3.1:8b", "llama2:13b"))
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(WithBaseURL(srv.URL))
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !p.Healthy() {
		t.Fatal("reachable daemon left adapter unhealthy")
	}
	if p.CurrentModel() != "llama3.1:8b" {
		t.Fatalf("default model = %q, want llama3.1:8b", p.CurrentModel())
	}
	if len(p.Models()) != 3 {
		t.Fatalf("catalog size = %d", len(p.Models()))
	}
}

func TestInitializeUnreachable(t *testing.T) {
	p := New(WithBaseURL("http://127.0.0.1:1"))
	if err := p.Initialize(context.Background()); err == nil {
		t.Fatal("expected an error for an unreachable daemon")
	}
	if p.Healthy() || p.Available() {
		t.Fatal("unreachable daemon reported healthy")
	}
}

func TestChatPromptShape(t *testing.T) {
	var got generateRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", tagsHandler("llama3.1:8b"))
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": " local reply"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	p := New(WithBaseURL(srv.URL), WithSystemPrompt("Persona."))
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	text, err := p.Chat(context.Background(), "now", []llm.Turn{{User: "before", Assistant: "answer"}}, "")
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if text != " local reply" {
		t.Fatalf("text = %q", text)
	}
	if got.Model != "llama3.1:8b" || got.Stream {
		t.Fatalf("request = %+v", got)
	}
	wantPrompt := "Persona.\n\nUser: before\nAssistant: answer\nUser: now\nAssistant:"
	if got.Prompt != wantPrompt {
		t.Fatalf("prompt = %q, want %q", got.Prompt, wantPrompt)
	}
	if got.Options == nil || got.Options.Temperature != 0.7 {
		t.Fatalf("options = %+v", got.Options)
	}
}

func TestSetModelAcceptsUnlisted(t *testing.T) {
	p := New()
	if !p.SetModel("anything:latest") {
		t.Fatal("rejected an unlisted model")
	}
	if p.SetModel("") {
		t.Fatal("accepted an empty model id")
	}
	if !strings.HasPrefix(p.CurrentModel(), "anything") {
		t.Fatalf("current model = %q", p.CurrentModel())
	}
}
