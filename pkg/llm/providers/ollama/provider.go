// Package ollama implements the adapter for a local Ollama daemon.
package ollama

import (
	"context"
	"net/http"
	"strings"

	"github.com/videofeedback/HAL2025/pkg/llm"
)

const (
	// DefaultBaseURL is the default local Ollama endpoint.
	DefaultBaseURL = "http://localhost:11434"

	// preferredModelPrefix picks the default model from the local tag list.
	preferredModelPrefix = "llama3.1"
)

// Provider implements llm.Adapter against a local Ollama daemon. The model
// catalog is discovered from the daemon rather than hardcoded, and any model
// id is accepted on SetModel since the daemon can pull models on demand.
type Provider struct {
	llm.Health

	baseURL      string
	httpClient   *http.Client
	systemPrompt string
	catalog      llm.Catalog
}

// Option configures the Ollama provider.
type Option func(*Provider)

// WithBaseURL points the adapter at a non-default daemon address.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) { p.httpClient = client }
}

// WithSystemPrompt sets the persona prepended to every prompt.
func WithSystemPrompt(prompt string) Option {
	return func(p *Provider) {
		if prompt != "" {
			p.systemPrompt = prompt
		}
	}
}

// New creates a new Ollama provider.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL:      DefaultBaseURL,
		httpClient:   &http.Client{},
		systemPrompt: llm.DefaultSystemPrompt,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the provider identifier.
func (p *Provider) Name() string { return "ollama" }

// RequiresCredential reports that Ollama is a local, keyless backend.
func (p *Provider) RequiresCredential() bool { return false }

// Initialize discovers the local model list, selects a default, and records
// the reachability of the daemon.
func (p *Provider) Initialize(ctx context.Context) error {
	models, err := p.fetchModels(ctx)
	if err != nil {
		p.SetHealthy(false)
		return err
	}
	p.catalog.Replace(models)
	if id := preferredModel(models); id != "" {
		p.catalog.SetCurrent(id)
	}
	p.SetHealthy(len(models) > 0)
	return nil
}

// Available reports whether the daemon was reachable on the last check.
func (p *Provider) Available() bool { return p.Healthy() }

// Models returns the discovered model catalog.
func (p *Provider) Models() []llm.ModelInfo { return p.catalog.Models() }

// CurrentModel returns the selected model id.
func (p *Provider) CurrentModel() string { return p.catalog.Current() }

// SetModel accepts any non-empty model id, advertised or not.
func (p *Provider) SetModel(model string) bool { return p.catalog.SelectAny(model) }

// Chat renders the conversation as a single prompt and generates once.
func (p *Provider) Chat(ctx context.Context, message string, history []llm.Turn, model string) (string, error) {
	if model == "" {
		model = p.catalog.Current()
	}
	resp, err := p.doGenerate(ctx, &generateRequest{
		Model:  model,
		Prompt: p.buildPrompt(message, history),
		Options: &generateOptions{
			Temperature: 0.7,
			TopP:        0.9,
		},
	})
	if err != nil {
		return "", err
	}
	return resp.Response, nil
}

// buildPrompt flattens the persona and prior turns into Ollama's single
// prompt format.
func (p *Provider) buildPrompt(message string, history []llm.Turn) string {
	var b strings.Builder
	b.WriteString(p.systemPrompt)
	b.WriteString("\n\n")
	for _, turn := range history {
		b.WriteString("User: ")
		b.WriteString(turn.User)
		b.WriteString("\nAssistant: ")
		b.WriteString(turn.Assistant)
		b.WriteString("\n")
	}
	b.WriteString("User: ")
	b.WriteString(message)
	b.WriteString("\nAssistant:")
	return b.String()
}

// HealthCheck probes the tag endpoint. It only reports the outcome; the
// health flag stays untouched.
func (p *Provider) HealthCheck(ctx context.Context) bool {
	models, err := p.fetchModels(ctx)
	return err == nil && len(models) > 0
}

func preferredModel(models []llm.ModelInfo) string {
	for _, m := range models {
		if strings.HasPrefix(m.ID, preferredModelPrefix) {
			return m.ID
		}
	}
	return ""
}
