package cpulimit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestGuessEnvVarAbsent(t *testing.T) {
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.False(t, ok)
	require.Equal(t, 0, workers)
}

func TestGuessParsesValidValue(t *testing.T) {
	t.Setenv("CPU_LIMIT", "8c")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.True(t, ok)
	require.Equal(t, 8, workers)
}

func TestGuessRoundsFractionalValue(t *testing.T) {
	t.Setenv("CPU_LIMIT", "4.6c")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.True(t, ok)
	require.Equal(t, 5, workers)
}

func TestGuessFloorsTinyValuesToMinWorkers(t *testing.T) {
	t.Setenv("CPU_LIMIT", "1c")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.True(t, ok)
	require.Equal(t, 3, workers)
}

func TestGuessRejectsImplausiblyLargeValue(t *testing.T) {
	t.Setenv("CPU_LIMIT", "64c")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.False(t, ok)
	require.Equal(t, 0, workers)
}

func TestGuessRejectsZeroOrNegative(t *testing.T) {
	t.Setenv("CPU_LIMIT", "0c")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.False(t, ok)
	require.Equal(t, 0, workers)
}

func TestGuessRejectsUnsupportedSuffix(t *testing.T) {
	t.Setenv("CPU_LIMIT", "8")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.False(t, ok)
	require.Equal(t, 0, workers)
}

func TestGuessRejectsUnparseableNumber(t *testing.T) {
	t.Setenv("CPU_LIMIT", "not-a-numberc")
	workers, ok := Guess(zap.NewNop(), "fs-task-processor")
	require.False(t, ok)
	require.Equal(t, 0, workers)
}
