// Package monitor answers introspection queries about the running relay:
// system status, capability questions, and analysis of recent errors. It
// reads its evidence from a log ring buffer and, when a local model is
// reachable, asks it to narrate; otherwise it falls back to built-in
// heuristics so queries always produce an answer.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// StatusReport answers a system_status_query.
type StatusReport struct {
	Status          string         `json:"status"`
	Metrics         map[string]any `json:"metrics"`
	Analysis        string         `json:"analysis"`
	Recommendations []string       `json:"recommendations"`
	Alerts          []Alert        `json:"alerts"`
}

// Alert is one recent problem surfaced in a status report.
type Alert struct {
	Severity string    `json:"severity"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

// CapabilityAssessment describes whether one capability is live.
type CapabilityAssessment struct {
	Capability  string `json:"capability"`
	Available   bool   `json:"available"`
	Explanation string `json:"explanation"`
}

// CapabilityAnswer answers a self_awareness_query.
type CapabilityAnswer struct {
	Answer     string               `json:"answer"`
	Assessment CapabilityAssessment `json:"capability_assessment"`
	Confidence int                  `json:"confidence"`
	Source     string               `json:"source"`
}

// ErrorReport answers an error_analysis_request.
type ErrorReport struct {
	Analysis                string   `json:"analysis"`
	RootCause               string   `json:"root_cause"`
	Severity                string   `json:"severity"`
	Recommendations         []string `json:"recommendations"`
	PredictedResolutionTime string   `json:"predicted_resolution_time"`
}

// ChatFunc asks a local model one question. Monitoring must keep working
// when no model is reachable, so implementations may fail freely.
type ChatFunc func(ctx context.Context, prompt string) (string, error)

// capability keywords map question phrasing to a known subsystem.
var capabilityKeywords = []struct {
	capability string
	keywords   []string
}{
	{"voice_input", []string{"hear", "listen", "microphone", "voice input", "transcri", "speech recognition"}},
	{"voice_output", []string{"speak", "talk", "voice output", "synthes", "text to speech", "tts"}},
	{"chat", []string{"chat", "respond", "answer", "conversation", "llm", "language model"}},
	{"monitoring", []string{"monitor", "status", "health", "diagnos", "aware"}},
}

// Monitor serves introspection queries. All methods are safe for
// concurrent use.
type Monitor struct {
	logger  *slog.Logger
	buffer  *LogBuffer
	chat    ChatFunc
	started time.Time
	now     func() time.Time

	sessionCount    func() int
	providersStatus func() (healthy, total int)
	voiceInput      func() bool
	voiceOutput     func() bool

	mu             sync.Mutex
	lastConfidence float64
	lastChatTime   time.Duration
	chatCount      int
	chatErrCount   int
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithChat wires a local model used to narrate reports.
func WithChat(chat ChatFunc) Option {
	return func(m *Monitor) { m.chat = chat }
}

// WithSessionCount wires the live session counter.
func WithSessionCount(count func() int) Option {
	return func(m *Monitor) { m.sessionCount = count }
}

// WithProviderStatus wires the healthy/total provider counts.
func WithProviderStatus(status func() (healthy, total int)) Option {
	return func(m *Monitor) { m.providersStatus = status }
}

// WithVoice reports whether the transcription and synthesis collaborators
// are configured.
func WithVoice(input, output func() bool) Option {
	return func(m *Monitor) {
		m.voiceInput = input
		m.voiceOutput = output
	}
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// New creates a Monitor reading evidence from buffer.
func New(logger *slog.Logger, buffer *LogBuffer, opts ...Option) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer == nil {
		buffer = NewLogBuffer(DefaultBufferSize)
	}
	m := &Monitor{
		logger: logger,
		buffer: buffer,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.started = m.now()
	return m
}

// ObserveTranscription records the confidence of the latest transcription.
func (m *Monitor) ObserveTranscription(confidence float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastConfidence = confidence
}

// ObserveChat records the outcome of one chat round trip.
func (m *Monitor) ObserveChat(d time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastChatTime = d
	m.chatCount++
	if err != nil {
		m.chatErrCount++
	}
}

// StatusQuery builds a status report over the given timeframe.
func (m *Monitor) StatusQuery(ctx context.Context, kind string, timeframe time.Duration) (StatusReport, error) {
	if timeframe <= 0 {
		timeframe = 10 * time.Minute
	}
	since := m.now().Add(-timeframe)
	errorCount := m.buffer.CountAtLevel(slog.LevelError, since)
	warnCount := m.buffer.CountAtLevel(slog.LevelWarn, since) - errorCount

	healthy, total := 0, 0
	if m.providersStatus != nil {
		healthy, total = m.providersStatus()
	}
	sessions := 0
	if m.sessionCount != nil {
		sessions = m.sessionCount()
	}

	m.mu.Lock()
	lastConfidence := m.lastConfidence
	lastChatMillis := m.lastChatTime.Milliseconds()
	chatCount, chatErrs := m.chatCount, m.chatErrCount
	m.mu.Unlock()

	metrics := map[string]any{
		"error_count":         errorCount,
		"warning_count":       warnCount,
		"active_sessions":     sessions,
		"providers_healthy":   healthy,
		"providers_total":     total,
		"chat_requests":       chatCount,
		"chat_errors":         chatErrs,
		"last_chat_time_ms":   lastChatMillis,
		"last_stt_confidence": lastConfidence,
		"uptime_seconds":      int(m.now().Sub(m.started).Seconds()),
		"monitoring_active":   m.chat != nil,
		"timeframe_minutes":   int(timeframe.Minutes()),
	}

	status := "healthy"
	switch {
	case errorCount > 10 || (total > 0 && healthy == 0):
		status = "error"
	case errorCount > 0 || warnCount > 3:
		status = "degraded"
	}

	report := StatusReport{
		Status:          status,
		Metrics:         metrics,
		Recommendations: m.recommend(status, errorCount, healthy, total),
		Alerts:          m.alerts(since),
	}
	report.Analysis = m.narrateStatus(ctx, kind, report)
	return report, nil
}

func (m *Monitor) recommend(status string, errors, healthy, total int) []string {
	recs := make([]string, 0, 3)
	if total > 0 && healthy == 0 {
		recs = append(recs, "No LLM providers are healthy; check API keys and backend reachability.")
	} else if total > 0 && healthy < total {
		recs = append(recs, fmt.Sprintf("%d of %d providers unhealthy; requests are being served by fallbacks.", total-healthy, total))
	}
	if errors > 0 {
		recs = append(recs, "Recent errors in the log; run an error_analysis_request for details.")
	}
	if status == "healthy" && len(recs) == 0 {
		recs = append(recs, "System operating normally; no action needed.")
	}
	return recs
}

func (m *Monitor) alerts(since time.Time) []Alert {
	alerts := make([]Alert, 0, 5)
	for _, e := range m.buffer.Recent(since) {
		if e.Level < slog.LevelError {
			continue
		}
		alerts = append(alerts, Alert{Severity: "error", Message: e.Message, Time: e.Time})
		if len(alerts) == 5 {
			break
		}
	}
	return alerts
}

func (m *Monitor) narrateStatus(ctx context.Context, kind string, report StatusReport) string {
	fallback := fmt.Sprintf("System status is %s with %v recent errors across %v active sessions.",
		report.Status, report.Metrics["error_count"], report.Metrics["active_sessions"])
	if m.chat == nil {
		return fallback
	}
	prompt := fmt.Sprintf(
		"You are the self-monitoring component of a voice assistant. "+
			"In two sentences, summarize this %s status snapshot for the user: status=%s, metrics=%v.",
		kind, report.Status, report.Metrics)
	answer, err := m.chat(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		m.logger.Warn("status narration unavailable", "error", err)
		return fallback
	}
	return strings.TrimSpace(answer)
}

// CapabilityQuery answers a natural-language question about what the system
// can do right now.
func (m *Monitor) CapabilityQuery(ctx context.Context, question string, _ map[string]any) (CapabilityAnswer, error) {
	assessment := m.assess(question)

	if m.chat != nil {
		prompt := fmt.Sprintf(
			"You are the self-monitoring component of a voice assistant. "+
				"The %q capability is currently %s (%s). "+
				"Answer the user's question in one or two sentences: %s",
			assessment.Capability, availability(assessment.Available), assessment.Explanation, question)
		answer, err := m.chat(ctx, prompt)
		if err == nil && strings.TrimSpace(answer) != "" {
			return CapabilityAnswer{
				Answer:     strings.TrimSpace(answer),
				Assessment: assessment,
				Confidence: 85,
				Source:     "self_analysis",
			}, nil
		}
		m.logger.Warn("capability narration unavailable", "error", err)
	}

	return CapabilityAnswer{
		Answer:     fmt.Sprintf("The %s capability is %s. %s", assessment.Capability, availability(assessment.Available), assessment.Explanation),
		Assessment: assessment,
		Confidence: 60,
		Source:     "knowledge_base",
	}, nil
}

func availability(available bool) string {
	if available {
		return "available"
	}
	return "unavailable"
}

func (m *Monitor) assess(question string) CapabilityAssessment {
	q := strings.ToLower(question)
	capability := "general"
	for _, entry := range capabilityKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(q, kw) {
				capability = entry.capability
				break
			}
		}
		if capability != "general" {
			break
		}
	}

	switch capability {
	case "voice_input":
		available := m.voiceInput != nil && m.voiceInput()
		expl := "Speech-to-text is configured and accepting audio."
		if !available {
			expl = "No transcription backend is configured."
		}
		return CapabilityAssessment{Capability: capability, Available: available, Explanation: expl}
	case "voice_output":
		available := m.voiceOutput != nil && m.voiceOutput()
		expl := "Text-to-speech is configured; responses can be spoken."
		if !available {
			expl = "No synthesis backend is configured."
		}
		return CapabilityAssessment{Capability: capability, Available: available, Explanation: expl}
	case "chat":
		healthy, total := 0, 0
		if m.providersStatus != nil {
			healthy, total = m.providersStatus()
		}
		available := healthy > 0
		expl := fmt.Sprintf("%d of %d language-model providers are healthy.", healthy, total)
		return CapabilityAssessment{Capability: capability, Available: available, Explanation: expl}
	case "monitoring":
		return CapabilityAssessment{
			Capability:  capability,
			Available:   true,
			Explanation: "Self-monitoring is running and reading recent logs.",
		}
	default:
		return CapabilityAssessment{
			Capability:  capability,
			Available:   true,
			Explanation: "I can chat, report my status, and, when configured, hear and speak.",
		}
	}
}

// ErrorAnalysis inspects recent errors and explains them.
func (m *Monitor) ErrorAnalysis(ctx context.Context) (ErrorReport, error) {
	since := m.now().Add(-30 * time.Minute)
	var errs []Entry
	for _, e := range m.buffer.Recent(since) {
		if e.Level >= slog.LevelError {
			errs = append(errs, e)
		}
	}

	if len(errs) == 0 {
		return ErrorReport{
			Analysis:                "No errors recorded in the last 30 minutes.",
			RootCause:               "none",
			Severity:                "none",
			Recommendations:         []string{"No action needed."},
			PredictedResolutionTime: "n/a",
		}, nil
	}

	rootCause, recs := classifyErrors(errs)
	severity := "low"
	resolution := "within the hour"
	switch {
	case len(errs) > 10:
		severity = "high"
		resolution = "needs operator attention"
	case len(errs) > 3:
		severity = "medium"
		resolution = "within a few hours"
	}

	report := ErrorReport{
		RootCause:               rootCause,
		Severity:                severity,
		Recommendations:         recs,
		PredictedResolutionTime: resolution,
	}
	report.Analysis = m.narrateErrors(ctx, errs, report)
	return report, nil
}

// classifyErrors picks the dominant error category from recent messages.
func classifyErrors(errs []Entry) (rootCause string, recommendations []string) {
	categories := map[string][]string{
		"provider_failure":   {"provider", "completion", "chat failed", "health check"},
		"transport_failure":  {"websocket", "connection", "broadcast", "send failed"},
		"voice_failure":      {"transcription", "synthesis", "audio"},
		"credential_failure": {"api key", "unauthorized", "401", "403"},
	}
	counts := make(map[string]int)
	for _, e := range errs {
		msg := strings.ToLower(e.Message)
		for cat, kws := range categories {
			for _, kw := range kws {
				if strings.Contains(msg, kw) {
					counts[cat]++
					break
				}
			}
		}
	}

	rootCause = "unclassified"
	best := 0
	names := make([]string, 0, len(counts))
	for cat := range counts {
		names = append(names, cat)
	}
	sort.Strings(names)
	for _, cat := range names {
		if counts[cat] > best {
			best = counts[cat]
			rootCause = cat
		}
	}

	switch rootCause {
	case "provider_failure":
		recommendations = []string{"Check provider API keys and status pages.", "Verify fallback providers are registered."}
	case "transport_failure":
		recommendations = []string{"Check client network stability.", "Inspect websocket close codes in the access log."}
	case "voice_failure":
		recommendations = []string{"Verify the transcription and synthesis backends are reachable."}
	case "credential_failure":
		recommendations = []string{"Rotate or re-set the failing API key."}
	default:
		recommendations = []string{"Review the recent error log entries directly."}
	}
	return rootCause, recommendations
}

func (m *Monitor) narrateErrors(ctx context.Context, errs []Entry, report ErrorReport) string {
	fallback := fmt.Sprintf("%d errors in the last 30 minutes, dominated by %s.", len(errs), report.RootCause)
	if m.chat == nil {
		return fallback
	}
	samples := make([]string, 0, 3)
	for i := len(errs) - 1; i >= 0 && len(samples) < 3; i-- {
		samples = append(samples, errs[i].Message)
	}
	prompt := fmt.Sprintf(
		"You are the self-monitoring component of a voice assistant. "+
			"In two sentences, explain these recent errors to the user (root cause: %s): %s",
		report.RootCause, strings.Join(samples, "; "))
	answer, err := m.chat(ctx, prompt)
	if err != nil || strings.TrimSpace(answer) == "" {
		m.logger.Warn("error narration unavailable", "error", err)
		return fallback
	}
	return strings.TrimSpace(answer)
}

// FallbackStatusReport is the generic payload sent when no report could be
// produced at all.
func FallbackStatusReport() StatusReport {
	return StatusReport{
		Status:          "unknown",
		Metrics:         map[string]any{},
		Analysis:        "Status information is temporarily unavailable.",
		Recommendations: []string{"Retry the status query shortly."},
		Alerts:          []Alert{},
	}
}

// FallbackCapabilityAnswer is the generic payload for capability queries
// when the monitor is unavailable.
func FallbackCapabilityAnswer(question string) CapabilityAnswer {
	return CapabilityAnswer{
		Answer: "I can answer questions and hold a conversation; detailed self-diagnostics are temporarily unavailable.",
		Assessment: CapabilityAssessment{
			Capability:  "general",
			Available:   true,
			Explanation: "Monitoring is not reachable; this is a static answer.",
		},
		Confidence: 30,
		Source:     "fallback",
	}
}

// FallbackErrorReport is the generic payload for error analysis when the
// monitor is unavailable.
func FallbackErrorReport() ErrorReport {
	return ErrorReport{
		Analysis:                "Error analysis is temporarily unavailable.",
		RootCause:               "unknown",
		Severity:                "unknown",
		Recommendations:         []string{"Retry the analysis shortly."},
		PredictedResolutionTime: "unknown",
	}
}
