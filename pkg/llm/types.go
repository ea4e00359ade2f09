package llm

// ModelInfo describes one model a provider can serve.
type ModelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Available bool   `json:"available"`
	CostTier  string `json:"cost_tier"`
	Size      int64  `json:"size,omitempty"`
}

// Turn is one completed user/assistant exchange passed back to a provider as
// conversational context.
type Turn struct {
	User      string
	Assistant string
}

// Result is a successful chat completion, annotated with the provider and
// model that actually served it.
type Result struct {
	Text         string
	Provider     string
	Model        string
	FallbackUsed bool
}
