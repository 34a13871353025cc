package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool()))

	got, ok := reg.Get("calculate_sum")
	assert.True(t, ok)
	assert.Equal(t, "calculate_sum", got.Name())
	assert.True(t, reg.Has("calculate_sum"))
	assert.Equal(t, 1, reg.Len())
}

func TestRegistryDuplicateName(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool()))

	err := reg.Register(sumTool())
	assert.ErrorIs(t, err, ErrDuplicateTool)
	assert.Equal(t, 1, reg.Len(), "failed registration must not change the registry")
}

func TestRegistryRegisterManyCollectsFailures(t *testing.T) {
	reg := NewRegistry()
	other := NewFunctionTool("other", "Other tool", map[string]any{"type": "object"},
		func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })

	err := reg.RegisterMany(sumTool(), sumTool(), other)
	assert.ErrorIs(t, err, ErrDuplicateTool)
	assert.True(t, reg.Has("other"), "independent registrations still apply")
	assert.Equal(t, 2, reg.Len())
}

func TestRegistryNamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, reg.Register(NewFunctionTool(name, "", map[string]any{"type": "object"},
			func(ctx context.Context, args map[string]any) (any, error) { return nil, nil })))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}

func TestRegistryRemove(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool()))

	assert.True(t, reg.Remove("calculate_sum"))
	assert.False(t, reg.Remove("calculate_sum"))
	assert.False(t, reg.Has("calculate_sum"))
}

func TestRegistryInvoke(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(sumTool()))

	result, err := reg.Invoke(context.Background(), "calculate_sum", map[string]any{"a": 40.0, "b": 2.0})
	require.NoError(t, err)
	assert.Equal(t, 42.0, result)
}

func TestRegistryInvokeUnknownTool(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Invoke(context.Background(), "ghost", nil)
	require.Error(t, err)

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, CodeNotFound, toolErr.Code)
	assert.ErrorIs(t, err, ErrToolNotFound)
}
