package errkind

import (
	"errors"
	"fmt"
	"testing"

	"github.com/floydai/floyd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAndKindOf(t *testing.T) {
	err := New(types.StorageError, errors.New("disk full"))

	assert.True(t, Is(err, types.StorageError))
	assert.False(t, Is(err, types.ToolError))

	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, types.StorageError, kind)
}

func TestKindOfPlainError(t *testing.T) {
	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := New(types.TransportError, cause)

	assert.True(t, errors.Is(err, cause))
}

func TestWrappedErrorSurvivesFmtWrap(t *testing.T) {
	err := New(types.ConfigError, errors.New("missing ANTHROPIC_API_KEY"))
	wrapped := fmt.Errorf("loading config: %w", err)

	assert.True(t, Is(wrapped, types.ConfigError))
}

func TestHumanizeKnownKind(t *testing.T) {
	err := New(types.PermissionDenied, errors.New("tool \"shell\" denied by rule *"))
	msg := Humanize(err)

	assert.Contains(t, msg, "denied by rule")
	assert.Contains(t, msg, "blocked by permission policy")
}

func TestHumanizePlainError(t *testing.T) {
	err := errors.New("unclassified failure")
	assert.Equal(t, "unclassified failure", Humanize(err))
}

func TestHumanizeNil(t *testing.T) {
	assert.Equal(t, "", Humanize(nil))
}
