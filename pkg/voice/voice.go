// Package voice defines the speech collaborators: transcription of client
// audio and synthesis of assistant replies. Both are optional; the relay
// degrades to text-only chat when they are not configured.
package voice

import "context"

// Transcription is the result of speech-to-text over one utterance.
type Transcription struct {
	Text       string
	Confidence float64 // 0-100
	Language   string
	Duration   float64 // seconds
}

// Transcriber converts one utterance of encoded audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (*Transcription, error)
}

// Synthesis is one spoken rendering of assistant text.
type Synthesis struct {
	Audio    []byte
	Format   string
	Duration float64 // seconds, 0 when the backend does not report it
}

// Synthesizer renders assistant text as audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*Synthesis, error)
}
