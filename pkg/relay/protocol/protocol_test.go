package protocol

import (
	"errors"
	"testing"
)

func TestDecodeEachType(t *testing.T) {
	cases := []struct {
		name  string
		frame string
		check func(t *testing.T, msg any)
	}{
		{
			name:  "ping",
			frame: `{"type":"ping"}`,
			check: func(t *testing.T, msg any) {
				if _, ok := msg.(ClientPing); !ok {
					t.Fatalf("got %T", msg)
				}
			},
		},
		{
			name:  "change_provider",
			frame: `{"type":"change_provider","provider":"claude","model":"claude-3-haiku-20240307"}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientChangeProvider)
				if !ok || m.Provider != "claude" || m.Model != "claude-3-haiku-20240307" {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "change_model",
			frame: `{"type":"change_model","model":"gpt-4o"}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientChangeModel)
				if !ok || m.Model != "gpt-4o" {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "text_input",
			frame: `{"type":"text_input","text":"hello"}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientTextInput)
				if !ok || m.Text != "hello" {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "audio_data with empty payload is accepted",
			frame: `{"type":"audio_data","data":"","format":"wav"}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientAudioData)
				if !ok || m.Data != "" || m.Format != "wav" {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "system_status_query",
			frame: `{"type":"system_status_query","query_type":"detailed","timeframe_minutes":30}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientStatusQuery)
				if !ok || m.QueryType != "detailed" || m.TimeframeMinutes != 30 {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "self_awareness_query",
			frame: `{"type":"self_awareness_query","question":"can you hear me?"}`,
			check: func(t *testing.T, msg any) {
				m, ok := msg.(ClientCapabilityQuery)
				if !ok || m.Question != "can you hear me?" {
					t.Fatalf("got %#v", msg)
				}
			},
		},
		{
			name:  "error_analysis_request",
			frame: `{"type":"error_analysis_request"}`,
			check: func(t *testing.T, msg any) {
				if _, ok := msg.(ClientErrorAnalysis); !ok {
					t.Fatalf("got %T", msg)
				}
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := DecodeClientMessage([]byte(tc.frame))
			if err != nil {
				t.Fatalf("DecodeClientMessage: %v", err)
			}
			tc.check(t, msg)
		})
	}
}

func TestDecodeRejections(t *testing.T) {
	cases := []struct {
		name     string
		frame    string
		wantCode string
	}{
		{"not json", `{{{`, "bad_request"},
		{"missing type", `{"text":"hi"}`, "bad_request"},
		{"unknown type", `{"type":"poke"}`, "unknown_type"},
		{"empty text input", `{"type":"text_input","text":"  "}`, "bad_request"},
		{"provider missing", `{"type":"change_provider"}`, "bad_request"},
		{"model missing", `{"type":"change_model"}`, "bad_request"},
		{"question missing", `{"type":"self_awareness_query"}`, "bad_request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeClientMessage([]byte(tc.frame))
			var derr *DecodeError
			if !errors.As(err, &derr) {
				t.Fatalf("got %T (%v), want *DecodeError", err, err)
			}
			if derr.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", derr.Code, tc.wantCode)
			}
		})
	}
}

func TestUnknownTypeMessageNamesTheType(t *testing.T) {
	_, err := DecodeClientMessage([]byte(`{"type":"warp_drive"}`))
	var derr *DecodeError
	if !errors.As(err, &derr) {
		t.Fatalf("got %T", err)
	}
	if derr.Message != "unknown message type: warp_drive" {
		t.Fatalf("message = %q", derr.Message)
	}
}
