// Package protocol defines the JSON envelopes exchanged over a voice-chat
// websocket and the decoder for inbound frames.
package protocol

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/videofeedback/HAL2025/pkg/monitor"
)

// Client message types.
const (
	TypePing            = "ping"
	TypeChangeProvider  = "change_provider"
	TypeChangeModel     = "change_model"
	TypeTextInput       = "text_input"
	TypeAudioData       = "audio_data"
	TypeStatusQuery     = "system_status_query"
	TypeCapabilityQuery = "self_awareness_query"
	TypeErrorAnalysis   = "error_analysis_request"
)

// Server message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypePong                  = "pong"
	TypeProviderChanged       = "provider_changed"
	TypeModelChanged          = "model_changed"
	TypeTranscription         = "transcription"
	TypeResponse              = "response"
	TypeAudioResponse         = "audio_response"
	TypeStatusResponse        = "system_status_response"
	TypeCapabilityResponse    = "self_awareness_response"
	TypeErrorAnalysisResponse = "error_analysis_response"
	TypeError                 = "error"
)

// DecodeError describes a frame the decoder rejected. It is handler-scoped:
// the connection survives it.
type DecodeError struct {
	Code    string
	Message string
	Param   string
}

func (e *DecodeError) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.Param) == "" {
		return e.Message
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Param)
}

func badRequest(message, param string) *DecodeError {
	return &DecodeError{Code: "bad_request", Message: message, Param: param}
}

func unknownType(typ string) *DecodeError {
	return &DecodeError{
		Code:    "unknown_type",
		Message: fmt.Sprintf("unknown message type: %s", typ),
		Param:   "type",
	}
}

// ClientPing asks for a liveness echo.
type ClientPing struct {
	Type string `json:"type"`
}

// ClientChangeProvider records a provider (and optional model) preference
// for the session's next chats.
type ClientChangeProvider struct {
	Type     string `json:"type"`
	Provider string `json:"provider"`
	Model    string `json:"model,omitempty"`
}

// ClientChangeModel records a model preference, optionally scoped to a
// provider.
type ClientChangeModel struct {
	Type     string `json:"type"`
	Model    string `json:"model"`
	Provider string `json:"provider,omitempty"`
}

// ClientTextInput is one typed user message.
type ClientTextInput struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ClientAudioData carries one base64-encoded utterance.
type ClientAudioData struct {
	Type   string `json:"type"`
	Data   string `json:"data"`
	Format string `json:"format,omitempty"`
}

// ClientStatusQuery asks the monitor for a status report.
type ClientStatusQuery struct {
	Type             string `json:"type"`
	QueryType        string `json:"query_type,omitempty"`
	TimeframeMinutes int    `json:"timeframe_minutes,omitempty"`
}

// ClientCapabilityQuery asks whether the system can do something right now.
type ClientCapabilityQuery struct {
	Type     string         `json:"type"`
	Question string         `json:"question"`
	Context  map[string]any `json:"context,omitempty"`
}

// ClientErrorAnalysis asks the monitor to explain recent errors.
type ClientErrorAnalysis struct {
	Type string `json:"type"`
}

// DecodeClientMessage parses one inbound frame into its typed message.
func DecodeClientMessage(data []byte) (any, error) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, badRequest("invalid json frame", "")
	}
	typ := strings.TrimSpace(envelope.Type)
	if typ == "" {
		return nil, badRequest("missing type", "type")
	}

	switch typ {
	case TypePing:
		return ClientPing{Type: typ}, nil
	case TypeChangeProvider:
		var msg ClientChangeProvider
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid change_provider frame", "")
		}
		if strings.TrimSpace(msg.Provider) == "" {
			return nil, badRequest("change_provider.provider is required", "provider")
		}
		return msg, nil
	case TypeChangeModel:
		var msg ClientChangeModel
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid change_model frame", "")
		}
		if strings.TrimSpace(msg.Model) == "" {
			return nil, badRequest("change_model.model is required", "model")
		}
		return msg, nil
	case TypeTextInput:
		var msg ClientTextInput
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid text_input frame", "")
		}
		if strings.TrimSpace(msg.Text) == "" {
			return nil, badRequest("text_input.text is required", "text")
		}
		return msg, nil
	case TypeAudioData:
		var msg ClientAudioData
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid audio_data frame", "")
		}
		// Empty data is allowed through; the handler answers with an
		// error-tagged transcription rather than a protocol error.
		return msg, nil
	case TypeStatusQuery:
		var msg ClientStatusQuery
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid system_status_query frame", "")
		}
		return msg, nil
	case TypeCapabilityQuery:
		var msg ClientCapabilityQuery
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, badRequest("invalid self_awareness_query frame", "")
		}
		if strings.TrimSpace(msg.Question) == "" {
			return nil, badRequest("self_awareness_query.question is required", "question")
		}
		return msg, nil
	case TypeErrorAnalysis:
		return ClientErrorAnalysis{Type: typ}, nil
	default:
		return nil, unknownType(typ)
	}
}

// ServerConnectionEstablished is the first frame on a new connection.
type ServerConnectionEstablished struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// ServerPong answers a ping.
type ServerPong struct {
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// ServerProviderChanged acknowledges a provider preference change.
type ServerProviderChanged struct {
	Type      string `json:"type"`
	Provider  string `json:"provider"`
	Model     string `json:"model,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ServerModelChanged acknowledges a model preference change.
type ServerModelChanged struct {
	Type      string `json:"type"`
	Model     string `json:"model"`
	Provider  string `json:"provider,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ServerTranscription reports the outcome of speech-to-text, including
// failures: an Error here never ends the connection.
type ServerTranscription struct {
	Type       string  `json:"type"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language,omitempty"`
	Duration   float64 `json:"duration,omitempty"`
	Error      string  `json:"error,omitempty"`
	Timestamp  string  `json:"timestamp"`
}

// ServerResponse is one assistant reply.
type ServerResponse struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	Provider     string `json:"provider"`
	Model        string `json:"model"`
	FallbackUsed bool   `json:"fallback_used"`
	Source       string `json:"source,omitempty"`
	Timestamp    string `json:"timestamp"`
}

// ServerAudioResponse carries the spoken form of a reply.
type ServerAudioResponse struct {
	Type        string  `json:"type"`
	AudioData   string  `json:"audio_data"`
	AudioFormat string  `json:"audio_format"`
	Duration    float64 `json:"duration,omitempty"`
	Text        string  `json:"text,omitempty"`
	Source      string  `json:"source,omitempty"`
	Timestamp   string  `json:"timestamp"`
}

// ServerStatusResponse wraps a monitor status report.
type ServerStatusResponse struct {
	Type string `json:"type"`
	monitor.StatusReport
	Timestamp string `json:"timestamp"`
}

// ServerCapabilityResponse wraps a monitor capability answer.
type ServerCapabilityResponse struct {
	Type string `json:"type"`
	monitor.CapabilityAnswer
	Timestamp string `json:"timestamp"`
}

// ServerErrorAnalysisResponse wraps a monitor error report.
type ServerErrorAnalysisResponse struct {
	Type string `json:"type"`
	monitor.ErrorReport
	Timestamp string `json:"timestamp"`
}

// ServerError reports a handler-scoped failure. The connection stays open.
type ServerError struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}
