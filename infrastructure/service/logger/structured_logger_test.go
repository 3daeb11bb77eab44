package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestStructuredLogger_JSONFieldsAndCorrelation(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructuredLogger(LoggerConfig{Level: "info", Format: "json", ServiceName: "tollgate-test", Output: &buf})

	ctx := context.WithValue(context.Background(), CorrelationIDKey, "cid-123")
	log.WithFields(map[string]interface{}{"component": "pipeline"}).
		Error(ctx, "append failed", errors.New("sealed"), map[string]interface{}{"client_id": "alice"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	entry := lines[0]
	assert.Equal(t, "append failed", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "cid-123", entry["correlation_id"])
	assert.Equal(t, "sealed", entry["error"])
	assert.Equal(t, "pipeline", entry["component"])
	assert.Equal(t, "alice", entry["client_id"])
	assert.Equal(t, "tollgate-test", entry["service"])
}

func TestStructuredLogger_DebugSuppressedAtInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructuredLogger(LoggerConfig{Level: "info", Format: "json", Output: &buf})

	log.Debug(context.Background(), "noise", nil)
	assert.Empty(t, buf.String())
}

func TestLogSecurityEvent_SeverityToLevel(t *testing.T) {
	tests := []struct {
		severity string
		level    string
	}{
		{"HIGH", "error"},
		{"MEDIUM", "warning"},
		{"LOW", "info"},
	}

	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewStructuredLogger(LoggerConfig{Level: "debug", Format: "json", Output: &buf})

			LogSecurityEvent(context.Background(), log, "INJECTION_DETECTED", tt.severity, nil)

			lines := decodeLines(t, &buf)
			require.Len(t, lines, 1)
			assert.Equal(t, tt.level, lines[0]["level"])
			assert.Equal(t, "security", lines[0]["event_type"])
			assert.Equal(t, "INJECTION_DETECTED", lines[0]["security_event"])
		})
	}
}

func TestLogAdminEvent_FailureIsWarning(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructuredLogger(LoggerConfig{Level: "info", Format: "json", Output: &buf})

	LogAdminEvent(context.Background(), log, "reset", "admin", false, nil)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "warning", lines[0]["level"])
	assert.Equal(t, false, lines[0]["success"])
}

func TestLogPerformance_DebugWithDuration(t *testing.T) {
	var buf bytes.Buffer
	log := NewStructuredLogger(LoggerConfig{Level: "debug", Format: "json", Output: &buf})

	LogPerformance(context.Background(), log, "verify_transfer", 1500*time.Millisecond, map[string]interface{}{"layer": "identity"})

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "performance", lines[0]["event_type"])
	assert.Equal(t, "verify_transfer", lines[0]["operation"])
	assert.Equal(t, float64(1500), lines[0]["duration_ms"])
	assert.Equal(t, "identity", lines[0]["layer"])
}

func TestNopLogger(t *testing.T) {
	log := NewNopLogger()
	assert.NotPanics(t, func() {
		log.Info(context.Background(), "x", nil)
		log.WithFields(map[string]interface{}{"a": 1}).Error(context.Background(), "y", errors.New("z"), nil)
	})
	assert.Equal(t, "", CorrelationID(context.Background()))
}
