package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stringer string

func (s stringer) String() string { return string(s) }

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{" warn ", slog.LevelWarn},
		{"error", slog.LevelError},
		{"debug-2", slog.LevelDebug - 2},
	}
	for _, c := range cases {
		got, err := ParseLevel(c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	_, err := ParseLevel("loud")
	assert.ErrorContains(t, err, `invalid log level "loud"`)
}

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	l := NewJSONLogger(&buf, slog.LevelDebug).WithRID(stringer("#3:4")).WithFile("a.json")
	l.LogCommit(2, 1, nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "commit completed", line["msg"])
	assert.Equal(t, "#3:4", line["rid"])
	assert.Equal(t, "a.json", line["file"])
	assert.Equal(t, float64(2), line["written"])
	assert.Equal(t, float64(1), line["deleted"])
}

func TestLevels(t *testing.T) {
	var buf bytes.Buffer
	l := NewTextLogger(&buf, slog.LevelInfo)

	l.LogRollback(3)
	l.LogCommit(1, 0, errors.New("boom"))
	assert.Empty(t, buf.String(), "debug messages are below info")

	l.LogLinkFailure(errors.New("link error: f: dangling link #1:2"))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "unresolved links")

	buf.Reset()
	l.LogImport(context.Background(), "x.json", 0, errors.New("bad"))
	assert.True(t, strings.HasPrefix(buf.String(), "time="))
	assert.Contains(t, buf.String(), "level=ERROR")
	assert.Contains(t, buf.String(), "file=x.json")
}

func TestNoop(t *testing.T) {
	l := Wrap(nil)
	assert.False(t, l.Enabled(context.Background(), slog.LevelError))
	l.LogLinkFailure(errors.New("ignored"))
}
