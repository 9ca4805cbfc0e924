// Package backend resolves the configured compute backend by name.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/born-ml/cifarnet/internal/backend/cpu"
	"github.com/born-ml/cifarnet/internal/parallel"
)

// ErrUnknownBackend is returned by Resolve for names it does not recognize.
var ErrUnknownBackend = errors.New("unknown backend")

// Names lists the accepted backend names.
var Names = []string{"cpu", "cpu-serial"}

// Resolve maps a configured backend name to a backend instance.
//
//   - "cpu": kernels fan out over physical cores
//   - "cpu-serial": every kernel runs on the calling goroutine
func Resolve(name string) (*cpu.CPUBackend, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "cpu":
		return cpu.New(), nil
	case "cpu-serial":
		return cpu.NewWithConfig(parallel.Serial()), nil
	default:
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownBackend, name, strings.Join(Names, ", "))
	}
}
