package logging

import (
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// TestLogger records every entry, down to TraceLevel, for assertions.
type TestLogger struct {
	*Logger
	logs *observer.ObservedLogs
}

// NewTestLogger returns a recording logger. Nothing is redacted, so
// assertions see exactly what callers passed.
func NewTestLogger() *TestLogger {
	core, logs := observer.New(TraceLevel)
	return &TestLogger{Logger: &Logger{zap: zap.New(core)}, logs: logs}
}

// All returns the recorded entries in order.
func (t *TestLogger) All() []observer.LoggedEntry {
	return t.logs.All()
}

// Reset drops the recorded entries.
func (t *TestLogger) Reset() {
	t.logs.TakeAll()
}

func (t *TestLogger) matching(level zapcore.Level, substr string) []observer.LoggedEntry {
	return t.logs.Filter(func(e observer.LoggedEntry) bool {
		return e.Level == level && strings.Contains(e.Message, substr)
	}).All()
}

// AssertLogged fails tb unless an entry at level contains substr.
func (t *TestLogger) AssertLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if len(t.matching(level, substr)) == 0 {
		tb.Errorf("no %s entry containing %q; have %v", level, substr, t.messages())
	}
}

// AssertNotLogged fails tb if an entry at level contains substr.
func (t *TestLogger) AssertNotLogged(tb testing.TB, level zapcore.Level, substr string) {
	tb.Helper()
	if n := len(t.matching(level, substr)); n > 0 {
		tb.Errorf("%d unexpected %s entries containing %q", n, level, substr)
	}
}

// AssertField fails tb unless an entry with message msg has key set to
// want. Integers compare as int64, as zap stores them.
func (t *TestLogger) AssertField(tb testing.TB, msg, key string, want any) {
	tb.Helper()
	for _, e := range t.logs.FilterMessage(msg).All() {
		if got, ok := e.ContextMap()[key]; ok && reflect.DeepEqual(got, want) {
			return
		}
	}
	tb.Errorf("no %q entry with %s=%v", msg, key, want)
}

// AssertNoSecrets fails tb if any string field would have been masked by
// the default redaction rules.
func (t *TestLogger) AssertNoSecrets(tb testing.TB) {
	tb.Helper()
	r, err := newRedactor(NewDefaultConfig().Redaction)
	if err != nil {
		tb.Fatal(err)
	}
	for _, e := range t.logs.All() {
		if _, leak := r.value("", e.Message); leak {
			tb.Errorf("message %q matches a redaction pattern", e.Message)
		}
		for _, f := range e.Context {
			if f.Type != zapcore.StringType || strings.HasPrefix(f.String, redactedPrefix) {
				continue
			}
			if _, leak := r.value(f.Key, f.String); leak {
				tb.Errorf("field %q in %q would be redacted", f.Key, e.Message)
			}
		}
	}
}

// AssertNotContains fails tb if any message or string field contains
// text. Tests use it to prove document contents stay out of the logs.
func (t *TestLogger) AssertNotContains(tb testing.TB, text string) {
	tb.Helper()
	for _, e := range t.logs.All() {
		if strings.Contains(e.Message, text) {
			tb.Errorf("message %q contains %q", e.Message, text)
		}
		for _, f := range e.Context {
			if f.Type == zapcore.StringType && strings.Contains(f.String, text) {
				tb.Errorf("field %q in %q contains %q", f.Key, e.Message, text)
			}
		}
	}
}

func (t *TestLogger) messages() []string {
	entries := t.logs.All()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Level.String() + " " + e.Message
	}
	return out
}
