package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "config.yml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "config.yml", file)
	})

	t.Run("Error detection through wrapping", func(t *testing.T) {
		err := fmt.Errorf("walk: %w", RoutingError("missing parameter tag").Build())

		assert.True(t, IsClassified(err))
		assert.True(t, HasCategory(err, CategoryRouting))
		assert.Equal(t, CategoryRouting, GetCategory(err))
		assert.Equal(t, CategoryInternal, GetCategory(stderrors.New("plain")))
	})

	t.Run("Nested categories are all visible", func(t *testing.T) {
		inner := ProgramError("compile failed").WithSource("a.scss").Build()
		outer := WrapError(inner, CategoryBuild, "pass failed").Build()

		assert.True(t, HasCategory(outer, CategoryBuild))
		assert.True(t, HasCategory(outer, CategoryProgram))
		assert.False(t, HasCategory(outer, CategoryConfig))
		assert.Equal(t, "a.scss", SourceOf(outer))
	})
}

func TestErrorBuilder(t *testing.T) {
	cause := stderrors.New("yaml: line 2: mapping values are not allowed")
	err := WrapError(cause, CategoryConfig, "malformed directory config").
		WithSource("posts/config.yml").
		Fatal().
		Build()

	assert.True(t, err.IsFatal())
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "posts/config.yml")
	assert.Contains(t, err.Error(), "[config:fatal]")

	same := ConfigError("malformed directory config").Build()
	assert.True(t, stderrors.Is(err, same))
}

func TestErrorContextMerge(t *testing.T) {
	a := ErrorContext{"a": 1, "b": 1}
	b := ErrorContext{"b": 2}

	merged := a.Merge(b)
	assert.Equal(t, 1, merged["a"])
	assert.Equal(t, 2, merged["b"])
	assert.Equal(t, 1, a["b"])
}
