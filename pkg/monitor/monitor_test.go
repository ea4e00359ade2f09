package monitor

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func testLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func TestLogBufferRingAndCounts(t *testing.T) {
	b := NewLogBuffer(4)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 6; i++ {
		level := slog.LevelInfo
		if i%2 == 0 {
			level = slog.LevelError
		}
		b.Record(Entry{Time: base.Add(time.Duration(i) * time.Second), Level: level, Message: "m"})
	}

	recent := b.Recent(base)
	if len(recent) != 4 {
		t.Fatalf("retained %d entries, want 4", len(recent))
	}
	// Oldest two (i=0,1) were evicted.
	if !recent[0].Time.Equal(base.Add(2 * time.Second)) {
		t.Fatalf("oldest retained = %v", recent[0].Time)
	}
	if got := b.CountAtLevel(slog.LevelError, base); got != 2 {
		t.Fatalf("error count = %d, want 2", got)
	}
	if got := b.CountAtLevel(slog.LevelError, base.Add(5*time.Second)); got != 0 {
		t.Fatalf("error count after cutoff = %d, want 0", got)
	}
}

func TestTeeHandlerCapturesWarningsPastFilteredDelegate(t *testing.T) {
	b := NewLogBuffer(8)
	delegate := slog.NewTextHandler(discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError})
	logger := slog.New(b.Handler(delegate))

	logger.Warn("suspicious")
	logger.Info("routine") // below delegate level and below warn: dropped

	if got := b.CountAtLevel(slog.LevelWarn, time.Time{}); got != 1 {
		t.Fatalf("captured %d warnings, want 1", got)
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestStatusQueryHealthy(t *testing.T) {
	b := NewLogBuffer(8)
	m := New(testLogger(), b,
		WithSessionCount(func() int { return 2 }),
		WithProviderStatus(func() (int, int) { return 2, 2 }),
	)

	report, err := m.StatusQuery(context.Background(), "current", 0)
	if err != nil {
		t.Fatalf("StatusQuery: %v", err)
	}
	if report.Status != "healthy" {
		t.Fatalf("status = %q, want healthy", report.Status)
	}
	if report.Metrics["active_sessions"] != 2 {
		t.Fatalf("active_sessions = %v", report.Metrics["active_sessions"])
	}
	if report.Analysis == "" || len(report.Recommendations) == 0 {
		t.Fatal("report missing analysis or recommendations")
	}
}

func TestStatusQueryDegradedOnErrors(t *testing.T) {
	b := NewLogBuffer(8)
	m := New(testLogger(), b, WithProviderStatus(func() (int, int) { return 1, 2 }))
	b.Record(Entry{Time: time.Now(), Level: slog.LevelError, Message: "provider chat failed"})

	report, _ := m.StatusQuery(context.Background(), "current", 10*time.Minute)
	if report.Status != "degraded" {
		t.Fatalf("status = %q, want degraded", report.Status)
	}
	if len(report.Alerts) != 1 {
		t.Fatalf("alerts = %d, want 1", len(report.Alerts))
	}
}

func TestStatusQueryErrorWhenNoProviderHealthy(t *testing.T) {
	m := New(testLogger(), NewLogBuffer(8), WithProviderStatus(func() (int, int) { return 0, 3 }))
	report, _ := m.StatusQuery(context.Background(), "current", 0)
	if report.Status != "error" {
		t.Fatalf("status = %q, want error", report.Status)
	}
}

func TestStatusNarrationFallsBackWhenChatFails(t *testing.T) {
	m := New(testLogger(), NewLogBuffer(8),
		WithChat(func(ctx context.Context, prompt string) (string, error) {
			return "", errors.New("model offline")
		}))
	report, _ := m.StatusQuery(context.Background(), "current", 0)
	if report.Analysis == "" {
		t.Fatal("no fallback analysis")
	}
}

func TestCapabilityQuerySources(t *testing.T) {
	m := New(testLogger(), NewLogBuffer(8),
		WithVoice(func() bool { return false }, func() bool { return true }))

	answer, err := m.CapabilityQuery(context.Background(), "Can you hear me right now?", nil)
	if err != nil {
		t.Fatalf("CapabilityQuery: %v", err)
	}
	if answer.Source != "knowledge_base" {
		t.Fatalf("source = %q, want knowledge_base without a model", answer.Source)
	}
	if answer.Assessment.Capability != "voice_input" || answer.Assessment.Available {
		t.Fatalf("assessment = %+v", answer.Assessment)
	}

	narrated := New(testLogger(), NewLogBuffer(8),
		WithChat(func(ctx context.Context, prompt string) (string, error) {
			return "Yes, I can speak.", nil
		}))
	answer, _ = narrated.CapabilityQuery(context.Background(), "can you talk?", nil)
	if answer.Source != "self_analysis" || answer.Confidence != 85 {
		t.Fatalf("narrated answer = %+v", answer)
	}
}

func TestErrorAnalysis(t *testing.T) {
	b := NewLogBuffer(16)
	m := New(testLogger(), b)

	report, err := m.ErrorAnalysis(context.Background())
	if err != nil {
		t.Fatalf("ErrorAnalysis: %v", err)
	}
	if report.Severity != "none" {
		t.Fatalf("severity = %q with no errors, want none", report.Severity)
	}

	for i := 0; i < 5; i++ {
		b.Record(Entry{Time: time.Now(), Level: slog.LevelError, Message: "provider chat failed"})
	}
	report, _ = m.ErrorAnalysis(context.Background())
	if report.RootCause != "provider_failure" {
		t.Fatalf("root cause = %q, want provider_failure", report.RootCause)
	}
	if report.Severity != "medium" {
		t.Fatalf("severity = %q, want medium", report.Severity)
	}
	if len(report.Recommendations) == 0 {
		t.Fatal("no recommendations")
	}
}
