package logging

import (
	"regexp"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

const (
	redactedPrefix  = "[REDACTED"
	redactedKey     = redactedPrefix + "]"
	redactedPattern = redactedPrefix + ":pattern]"
)

// redactor decides what replaces a field value. The zero value redacts
// nothing.
type redactor struct {
	keys     map[string]struct{}
	patterns []*regexp.Regexp
}

func newRedactor(r Redaction) (*redactor, error) {
	out := &redactor{keys: make(map[string]struct{}, len(r.Keys))}
	for _, k := range r.Keys {
		out.keys[strings.ToLower(k)] = struct{}{}
	}
	for _, p := range r.Patterns {
		re, err := compilePattern(p)
		if err != nil {
			return nil, err
		}
		out.patterns = append(out.patterns, re)
	}
	return out, nil
}

func (r *redactor) key(k string) bool {
	_, ok := r.keys[strings.ToLower(k)]
	return ok
}

// value returns the replacement for a string field and whether one applies.
func (r *redactor) value(k, v string) (string, bool) {
	if r.key(k) {
		return redactedKey, true
	}
	for _, re := range r.patterns {
		if re.MatchString(v) {
			return redactedPattern, true
		}
	}
	return "", false
}

// RedactingEncoder masks sensitive fields before they reach the wrapped
// encoder. Non-string values are masked by key only.
type RedactingEncoder struct {
	zapcore.Encoder
	r *redactor
}

// NewRedactingEncoder wraps base with the given redaction rules.
func NewRedactingEncoder(base zapcore.Encoder, rules Redaction) (*RedactingEncoder, error) {
	r, err := newRedactor(rules)
	if err != nil {
		return nil, err
	}
	return &RedactingEncoder{Encoder: base, r: r}, nil
}

func (e *RedactingEncoder) Clone() zapcore.Encoder {
	return &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
}

// EncodeEntry routes per-entry fields through the redactor. The wrapped
// encoder would otherwise add them to its own clone unmasked.
func (e *RedactingEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	c := &RedactingEncoder{Encoder: e.Encoder.Clone(), r: e.r}
	for _, f := range fields {
		f.AddTo(c)
	}
	return c.Encoder.EncodeEntry(ent, nil)
}

func (e *RedactingEncoder) AddString(key, val string) {
	if masked, ok := e.r.value(key, val); ok {
		val = masked
	}
	e.Encoder.AddString(key, val)
}

func (e *RedactingEncoder) AddByteString(key string, val []byte) {
	if masked, ok := e.r.value(key, string(val)); ok {
		e.Encoder.AddString(key, masked)
		return
	}
	e.Encoder.AddByteString(key, val)
}

func (e *RedactingEncoder) AddBinary(key string, val []byte) {
	if e.r.key(key) {
		e.Encoder.AddString(key, redactedKey)
		return
	}
	e.Encoder.AddBinary(key, val)
}

func (e *RedactingEncoder) AddReflected(key string, val any) error {
	if e.r.key(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddReflected(key, val)
}

func (e *RedactingEncoder) AddArray(key string, arr zapcore.ArrayMarshaler) error {
	if e.r.key(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddArray(key, arr)
}

func (e *RedactingEncoder) AddObject(key string, obj zapcore.ObjectMarshaler) error {
	if e.r.key(key) {
		e.Encoder.AddString(key, redactedKey)
		return nil
	}
	return e.Encoder.AddObject(key, obj)
}
