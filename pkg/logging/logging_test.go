package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevel_Mapping(t *testing.T) {
	tests := []struct {
		level LogLevel
		name  string
		slog  slog.Level
	}{
		{LevelDebug, "DEBUG", slog.LevelDebug},
		{LevelInfo, "INFO", slog.LevelInfo},
		{LevelWarn, "WARN", slog.LevelWarn},
		{LevelError, "ERROR", slog.LevelError},
		{LogLevel(999), "UNKNOWN", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.name, tt.level.String())
			assert.Equal(t, tt.slog, tt.level.SlogLevel())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"trace", LevelDebug, false},
		{"DEBUG", LevelDebug, false},
		{"", LevelInfo, false},
		{"info", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"error", LevelError, false},
		{"loud", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInitForCLI_Filtering(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Debug("Engine", "rpc frame")
	Info("Engine", "connected to %s", "engine:9076")

	output := buf.String()
	assert.NotContains(t, output, "rpc frame")
	assert.Contains(t, output, "connected to engine:9076")
	assert.Contains(t, output, "subsystem=Engine")
}

func TestSubsystemLogger(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	log := For("Scheduler").With("case-1")
	log.Warn("port %d busy", 8099)
	log.Error(errors.New("boom"), "create failed")

	output := buf.String()
	assert.Contains(t, output, "Scheduler/case-1")
	assert.Contains(t, output, "port 8099 busy")
	assert.Contains(t, output, "error=boom")
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	child := rec.With("job")

	rec.Info("hello %s", "world")
	child.Warn("retrying")
	child.Error(errors.New("x"), "failed")

	entries := rec.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "hello world", entries[0].Message)
	assert.Equal(t, "job", entries[1].Subsystem)
	assert.Equal(t, 1, rec.Count(LevelWarn))
	assert.Equal(t, 1, rec.Count(LevelError))
}

func TestDiscard(t *testing.T) {
	log := Discard()
	log.Info("nothing")
	assert.NotNil(t, log.With("sub"))
}
