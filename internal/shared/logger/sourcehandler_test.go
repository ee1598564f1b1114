package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceHandler(t *testing.T) {
	tests := []struct {
		name       string
		level      slog.Level
		minLevel   slog.Level
		wantSource bool
	}{
		{name: "info below warn threshold", level: slog.LevelInfo, minLevel: slog.LevelWarn, wantSource: false},
		{name: "warn at threshold", level: slog.LevelWarn, minLevel: slog.LevelWarn, wantSource: true},
		{name: "error above threshold", level: slog.LevelError, minLevel: slog.LevelWarn, wantSource: true},
		{name: "debug with debug threshold", level: slog.LevelDebug, minLevel: slog.LevelDebug, wantSource: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			base := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
			log := slog.New(NewSourceHandler(base, tt.minLevel))

			log.Log(t.Context(), tt.level, "sweep finished", "count", 3)

			out := buf.String()
			assert.Contains(t, out, "sweep finished")
			assert.Equal(t, tt.wantSource, strings.Contains(out, "source="), out)
		})
	}
}

func TestSourceHandlerKeepsAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	base := slog.NewTextHandler(&buf, nil)
	log := slog.New(NewSourceHandler(base, slog.LevelWarn)).
		With("component", "dunning").
		WithGroup("run")

	log.Warn("step failed", "index", 2)

	out := buf.String()
	assert.Contains(t, out, "component=dunning")
	assert.Contains(t, out, "run.index=2")
	assert.Contains(t, out, "source=")
}

func TestNopLoggerDiscards(t *testing.T) {
	log := NewNop()
	assert.NotPanics(t, func() {
		log.With("k", "v").Named("x").Infow("ignored", "a", 1)
		log.Errorw("ignored")
	})
}
