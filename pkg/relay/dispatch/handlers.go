package dispatch

import (
	"context"
	"encoding/base64"
	"log/slog"
	"strings"
	"time"

	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/monitor"
	"github.com/videofeedback/HAL2025/pkg/relay/protocol"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
)

// dispatch routes one decoded message. A panic in a handler is converted to
// an error envelope; the connection loop keeps running.
func (d *Dispatcher) dispatch(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle, msg any) {
	defer func() {
		if v := recover(); v != nil {
			logger.Error("message handler panicked", "panic", v)
			d.sendError(sess, handle, "internal error processing message")
		}
	}()

	switch m := msg.(type) {
	case protocol.ClientPing:
		d.send(logger, sess, handle, &protocol.ServerPong{
			Type:      protocol.TypePong,
			Timestamp: d.ts(sess),
		})
	case protocol.ClientChangeProvider:
		sess.SetProviderPreference(m.Provider, m.Model)
		provider, model := sess.Preference()
		logger.Info("provider preference changed", "provider", provider, "model", model)
		d.send(logger, sess, handle, &protocol.ServerProviderChanged{
			Type:      protocol.TypeProviderChanged,
			Provider:  provider,
			Model:     model,
			Timestamp: d.ts(sess),
		})
	case protocol.ClientChangeModel:
		sess.SetPreference(m.Provider, m.Model)
		provider, model := sess.Preference()
		logger.Info("model preference changed", "provider", provider, "model", model)
		d.send(logger, sess, handle, &protocol.ServerModelChanged{
			Type:      protocol.TypeModelChanged,
			Model:     model,
			Provider:  provider,
			Timestamp: d.ts(sess),
		})
	case protocol.ClientTextInput:
		d.handleChat(ctx, logger, sess, handle, m.Text, "")
	case protocol.ClientAudioData:
		d.handleAudio(ctx, logger, sess, handle, m)
	case protocol.ClientStatusQuery:
		d.handleStatusQuery(ctx, logger, sess, handle, m)
	case protocol.ClientCapabilityQuery:
		d.handleCapabilityQuery(ctx, logger, sess, handle, m)
	case protocol.ClientErrorAnalysis:
		d.handleErrorAnalysis(ctx, logger, sess, handle)
	default:
		d.sendError(sess, handle, "unsupported message")
	}
}

// handleChat runs one exchange through the router and speaks the reply when
// synthesis is configured. Source is "voice_input" for transcribed audio and
// empty for typed text.
func (d *Dispatcher) handleChat(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle, text, source string) {
	provider, model := sess.Preference()

	start := time.Now()
	res, err := d.router.Chat(ctx, text, historyTurns(sess.History()), provider, model)
	elapsed := time.Since(start)
	if d.monitor != nil {
		d.monitor.ObserveChat(elapsed, err)
	}
	if err != nil {
		if d.metrics != nil {
			d.metrics.ChatRequestsTotal.WithLabelValues("none", "error").Inc()
		}
		logger.Error("chat failed", "error", err)
		d.sendError(sess, handle, "Error processing message: "+err.Error())
		return
	}
	if d.metrics != nil {
		d.metrics.ChatRequestsTotal.WithLabelValues(res.Provider, "ok").Inc()
		d.metrics.ChatDuration.WithLabelValues(res.Provider).Observe(elapsed.Seconds())
		if res.FallbackUsed {
			d.metrics.ChatFallbacksTotal.Inc()
		}
	}

	sess.AppendTurn(text, res.Text, res.Provider, res.Model)
	d.send(logger, sess, handle, &protocol.ServerResponse{
		Type:         protocol.TypeResponse,
		Text:         res.Text,
		Provider:     res.Provider,
		Model:        res.Model,
		FallbackUsed: res.FallbackUsed,
		Source:       source,
		Timestamp:    d.ts(sess),
	})

	if d.synthesizer == nil {
		return
	}
	syn, err := d.synthesizer.Synthesize(ctx, res.Text)
	if err != nil {
		// The text reply already went out; a silent assistant is not an
		// error the client needs to act on.
		logger.Warn("synthesis failed", "error", err)
		return
	}
	d.send(logger, sess, handle, &protocol.ServerAudioResponse{
		Type:        protocol.TypeAudioResponse,
		AudioData:   base64.StdEncoding.EncodeToString(syn.Audio),
		AudioFormat: syn.Format,
		Duration:    syn.Duration,
		Text:        res.Text,
		Source:      source,
		Timestamp:   d.ts(sess),
	})
}

// handleAudio transcribes one utterance and, when it is confident speech,
// feeds it into the chat pipeline tagged as voice input. Every outcome is
// reported as a transcription envelope; none of them end the connection.
func (d *Dispatcher) handleAudio(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle, m protocol.ClientAudioData) {
	fail := func(message string) {
		d.send(logger, sess, handle, &protocol.ServerTranscription{
			Type:      protocol.TypeTranscription,
			Error:     message,
			Timestamp: d.ts(sess),
		})
	}

	if m.Data == "" {
		fail("no audio data received")
		return
	}
	raw, err := base64.StdEncoding.DecodeString(m.Data)
	if err != nil {
		fail("invalid audio payload")
		return
	}
	if d.transcriber == nil {
		fail("transcription unavailable")
		return
	}

	// A declared format is remembered on the session; later frames that
	// omit it reuse the last one.
	format := m.Format
	if format != "" {
		sess.SetSetting("audio_format", format)
	} else if v, ok := sess.Setting("audio_format"); ok {
		format = v
	}

	tr, err := d.transcriber.Transcribe(ctx, raw, format)
	if err != nil {
		logger.Warn("transcription failed", "error", err)
		fail("transcription failed")
		return
	}
	if d.monitor != nil {
		d.monitor.ObserveTranscription(tr.Confidence)
	}

	text := strings.TrimSpace(tr.Text)
	d.send(logger, sess, handle, &protocol.ServerTranscription{
		Type:       protocol.TypeTranscription,
		Text:       text,
		Confidence: tr.Confidence,
		Language:   tr.Language,
		Duration:   tr.Duration,
		Timestamp:  d.ts(sess),
	})

	if text == "" || tr.Confidence <= d.cfg.ConfidenceThreshold {
		logger.Info("utterance below confidence threshold",
			"confidence", tr.Confidence, "threshold", d.cfg.ConfidenceThreshold)
		return
	}
	d.handleChat(ctx, logger, sess, handle, text, "voice_input")
}

func (d *Dispatcher) handleStatusQuery(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle, m protocol.ClientStatusQuery) {
	kind := m.QueryType
	if kind == "" {
		kind = "current"
	}
	timeframe := time.Duration(m.TimeframeMinutes) * time.Minute

	report := monitor.FallbackStatusReport()
	if d.monitor != nil {
		r, err := d.monitor.StatusQuery(ctx, kind, timeframe)
		if err != nil {
			logger.Warn("status query failed", "error", err)
		} else {
			report = r
		}
	}
	d.send(logger, sess, handle, &protocol.ServerStatusResponse{
		Type:         protocol.TypeStatusResponse,
		StatusReport: report,
		Timestamp:    d.ts(sess),
	})
}

func (d *Dispatcher) handleCapabilityQuery(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle, m protocol.ClientCapabilityQuery) {
	answer := monitor.FallbackCapabilityAnswer(m.Question)
	if d.monitor != nil {
		a, err := d.monitor.CapabilityQuery(ctx, m.Question, m.Context)
		if err != nil {
			logger.Warn("capability query failed", "error", err)
		} else {
			answer = a
		}
	}
	d.send(logger, sess, handle, &protocol.ServerCapabilityResponse{
		Type:             protocol.TypeCapabilityResponse,
		CapabilityAnswer: answer,
		Timestamp:        d.ts(sess),
	})
}

func (d *Dispatcher) handleErrorAnalysis(ctx context.Context, logger *slog.Logger, sess *session.Session, handle *connHandle) {
	report := monitor.FallbackErrorReport()
	if d.monitor != nil {
		r, err := d.monitor.ErrorAnalysis(ctx)
		if err != nil {
			logger.Warn("error analysis failed", "error", err)
		} else {
			report = r
		}
	}
	d.send(logger, sess, handle, &protocol.ServerErrorAnalysisResponse{
		Type:        protocol.TypeErrorAnalysisResponse,
		ErrorReport: report,
		Timestamp:   d.ts(sess),
	})
}

// send writes one envelope; write failures are logged, the read loop will
// observe the dead connection on its next read.
func (d *Dispatcher) send(logger *slog.Logger, sess *session.Session, handle *connHandle, v any) {
	if err := handle.SendJSON(v); err != nil {
		logger.Warn("send failed", "error", err)
	}
}

func (d *Dispatcher) sendError(sess *session.Session, handle *connHandle, message string) {
	_ = handle.SendJSON(&protocol.ServerError{
		Type:      protocol.TypeError,
		Message:   message,
		Timestamp: d.ts(sess),
	})
}

// ts stamps outbound envelopes with the session's last-activity time.
func (d *Dispatcher) ts(sess *session.Session) string {
	return sess.LastActivity().UTC().Format(time.RFC3339)
}

func (d *Dispatcher) countMessage(msg any) {
	if d.metrics == nil {
		return
	}
	typ := "unknown"
	switch msg.(type) {
	case protocol.ClientPing:
		typ = protocol.TypePing
	case protocol.ClientChangeProvider:
		typ = protocol.TypeChangeProvider
	case protocol.ClientChangeModel:
		typ = protocol.TypeChangeModel
	case protocol.ClientTextInput:
		typ = protocol.TypeTextInput
	case protocol.ClientAudioData:
		typ = protocol.TypeAudioData
	case protocol.ClientStatusQuery:
		typ = protocol.TypeStatusQuery
	case protocol.ClientCapabilityQuery:
		typ = protocol.TypeCapabilityQuery
	case protocol.ClientErrorAnalysis:
		typ = protocol.TypeErrorAnalysis
	}
	d.metrics.WSMessagesTotal.WithLabelValues(typ).Inc()
}

// historyTurns converts stored turns into the router's context shape.
func historyTurns(turns []session.Turn) []llm.Turn {
	out := make([]llm.Turn, 0, len(turns))
	for _, t := range turns {
		out = append(out, llm.Turn{User: t.User, Assistant: t.Assistant})
	}
	return out
}
