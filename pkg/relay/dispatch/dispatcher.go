// Package dispatch runs the per-connection message loop: it binds a
// websocket to its session, decodes inbound envelopes, and routes them to
// the chat, voice, and monitoring collaborators. Errors are scoped to the
// message that caused them; only connection-level failures end the loop.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/videofeedback/HAL2025/pkg/llm"
	"github.com/videofeedback/HAL2025/pkg/monitor"
	"github.com/videofeedback/HAL2025/pkg/relay/metrics"
	"github.com/videofeedback/HAL2025/pkg/relay/protocol"
	"github.com/videofeedback/HAL2025/pkg/relay/session"
	"github.com/videofeedback/HAL2025/pkg/voice"
)

// CloseInvalidSession is sent when a connection names a session id the
// store does not know.
const CloseInvalidSession = 4004

// ChatRouter is the slice of the provider router the dispatcher needs.
type ChatRouter interface {
	Chat(ctx context.Context, message string, history []llm.Turn, provider, model string) (*llm.Result, error)
}

// Monitor answers introspection queries and accepts observations.
type Monitor interface {
	StatusQuery(ctx context.Context, kind string, timeframe time.Duration) (monitor.StatusReport, error)
	CapabilityQuery(ctx context.Context, question string, context map[string]any) (monitor.CapabilityAnswer, error)
	ErrorAnalysis(ctx context.Context) (monitor.ErrorReport, error)
	ObserveTranscription(confidence float64)
	ObserveChat(d time.Duration, err error)
}

// Config tunes per-connection behavior.
type Config struct {
	WriteTimeout        time.Duration
	MaxMessageBytes     int64
	ConfidenceThreshold float64
}

// Dependencies wires the dispatcher's collaborators. Transcriber,
// Synthesizer, Monitor, and Metrics are optional.
type Dependencies struct {
	Logger      *slog.Logger
	Store       *session.Store
	Router      ChatRouter
	Transcriber voice.Transcriber
	Synthesizer voice.Synthesizer
	Monitor     Monitor
	Metrics     *metrics.Metrics
	Config      Config
}

// Dispatcher routes inbound envelopes for every connection.
type Dispatcher struct {
	logger      *slog.Logger
	store       *session.Store
	router      ChatRouter
	transcriber voice.Transcriber
	synthesizer voice.Synthesizer
	monitor     Monitor
	metrics     *metrics.Metrics
	cfg         Config
}

// New validates dependencies and builds a Dispatcher.
func New(deps Dependencies) (*Dispatcher, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Router == nil {
		return nil, fmt.Errorf("chat router is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Config.WriteTimeout <= 0 {
		deps.Config.WriteTimeout = 5 * time.Second
	}
	if deps.Config.MaxMessageBytes <= 0 {
		deps.Config.MaxMessageBytes = 8 << 20
	}
	if deps.Config.ConfidenceThreshold <= 0 {
		deps.Config.ConfidenceThreshold = 30
	}
	return &Dispatcher{
		logger:      deps.Logger,
		store:       deps.Store,
		router:      deps.Router,
		transcriber: deps.Transcriber,
		synthesizer: deps.Synthesizer,
		monitor:     deps.Monitor,
		metrics:     deps.Metrics,
		cfg:         deps.Config,
	}, nil
}

// HandleConnection owns one websocket from accept to teardown. It returns
// when the peer disconnects, the context ends, or an internal failure
// closes the connection.
func (d *Dispatcher) HandleConnection(ctx context.Context, conn wsConn, sessionID string) {
	logger := d.logger.With("session_id", sessionID)

	sess, ok := d.store.Get(sessionID)
	if !ok {
		logger.Warn("connection for unknown session rejected")
		deadline := time.Now().Add(d.cfg.WriteTimeout)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(CloseInvalidSession, "invalid session"), deadline)
		_ = conn.Close()
		return
	}

	conn.SetReadLimit(d.cfg.MaxMessageBytes)
	handle := newConnHandle(conn, d.cfg.WriteTimeout)
	sess.Bind(handle)
	defer sess.Unbind(handle)

	defer func() {
		if v := recover(); v != nil {
			logger.Error("connection loop panicked", "panic", v)
			_ = handle.CloseWithCode(websocket.CloseInternalServerErr, "internal error")
		}
	}()

	if d.metrics != nil {
		d.metrics.WSConnectionsTotal.Inc()
	}
	logger.Info("connection established")

	if err := handle.SendJSON(&protocol.ServerConnectionEstablished{
		Type:      protocol.TypeConnectionEstablished,
		SessionID: sess.ID(),
		Timestamp: sess.CreatedAt().UTC().Format(time.RFC3339),
	}); err != nil {
		logger.Warn("connection greeting failed", "error", err)
		_ = handle.Close()
		return
	}

	for {
		if ctx.Err() != nil {
			logger.Info("connection context done")
			_ = handle.Close()
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Warn("connection closed unexpectedly", "error", err)
			} else {
				logger.Info("connection closed")
			}
			return
		}
		sess.Touch()

		msg, err := protocol.DecodeClientMessage(data)
		if err != nil {
			d.sendError(sess, handle, err.Error())
			continue
		}
		d.countMessage(msg)
		d.dispatch(ctx, logger, sess, handle, msg)
	}
}
