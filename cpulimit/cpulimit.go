// Package cpulimit infers the worker-thread count for the default task
// processor from the CPU_LIMIT environment variable, matching the
// floor-of-3 workaround container schedulers need when a cgroup CPU
// quota rounds down to a tiny number.
package cpulimit

import (
	"math"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

const (
	envVar = "CPU_LIMIT"
	suffix = "c"

	// minWorkers is the floor applied to a successfully parsed guess,
	// documented upstream as a workaround for small-container scheduling
	// starvation: below this, a single slow task can stall the whole
	// default processor.
	minWorkers = 3

	// A rounded value of zero or below is treated the same as unset;
	// values at or above rejectAt are rejected as implausible for a
	// single process.
	rejectAt = 32
)

// Guess reads CPU_LIMIT and returns the worker count to use instead of
// the configured value, and whether a guess was actually produced. name
// identifies the task processor the guess is for, used only in log
// messages.
func Guess(logger *zap.Logger, name string) (int, bool) {
	raw, ok := os.LookupEnv(envVar)
	if !ok {
		return 0, false
	}

	if !strings.HasSuffix(raw, suffix) {
		logger.Error("cpulimit: unsupported CPU_LIMIT suffix, ignoring",
			zap.String("task_processor", name), zap.String("value", raw))
		return 0, false
	}

	numeric := strings.TrimSuffix(raw, suffix)
	value, err := strconv.ParseFloat(numeric, 64)
	if err != nil {
		logger.Error("cpulimit: failed to parse CPU_LIMIT, ignoring",
			zap.String("task_processor", name), zap.String("value", raw), zap.Error(err))
		return 0, false
	}

	cpu := int(math.Round(value))
	if cpu <= 0 || cpu >= rejectAt {
		logger.Error("cpulimit: CPU_LIMIT out of supported range, ignoring",
			zap.String("task_processor", name), zap.String("value", raw), zap.Int("rounded", cpu))
		return 0, false
	}

	if cpu < minWorkers {
		cpu = minWorkers
	}
	return cpu, true
}
