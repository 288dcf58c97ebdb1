package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{name: "nil error", err: nil, expected: 0},
		{name: "validation", err: ValidationError("bad flag").Build(), expected: 2},
		{name: "config", err: ConfigError("bad config").Build(), expected: 7},
		{name: "routing", err: RoutingError("missing parameter").Build(), expected: 9},
		{name: "stale program", err: InternalError("context released").Build(), expected: 10},
		{name: "program", err: ProgramError("compiler failed").Build(), expected: 11},
		{name: "wrapped build", err: fmt.Errorf("pass: %w", BuildError("failed").Build()), expected: 11},
		{name: "unclassified", err: stderrors.New("boom"), expected: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatNamesFailingFile(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	inner := ConfigError("front-matter is not a mapping").WithSource("posts/bad.md").Build()
	outer := WrapError(inner, CategoryBuild, "build pass failed").Fatal().Build()

	msg := adapter.FormatError(outer)
	assert.Contains(t, msg, "build pass failed")
	assert.Contains(t, msg, "posts/bad.md")
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	var logs, out bytes.Buffer
	adapter := NewCLIErrorAdapter(true, slog.New(slog.NewTextHandler(&logs, nil)))

	code := adapter.Report(&out, ProgramError("sassc exited with status 1").WithSource("style.scss").Build())
	require.Equal(t, 11, code)
	assert.Contains(t, out.String(), "style.scss")
	assert.Contains(t, logs.String(), "category=program")
}
