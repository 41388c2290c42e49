package plan

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is returned when a split cannot give every worker a share.
var ErrInvalidArgument = errors.New("invalid argument")

// Split divides total units over workers. The first total%workers workers
// receive one extra unit, so quotas sum to total and differ by at most one.
func Split(total, workers int) ([]int, error) {
	if total < 1 {
		return nil, fmt.Errorf("total %d must be >= 1: %w", total, ErrInvalidArgument)
	}
	if workers < 1 {
		return nil, fmt.Errorf("workers %d must be >= 1: %w", workers, ErrInvalidArgument)
	}
	if total < workers {
		return nil, fmt.Errorf("total %d is lower than workers %d: %w", total, workers, ErrInvalidArgument)
	}

	base := total / workers
	remainder := total - base*workers

	quotas := make([]int, workers)
	for i := range quotas {
		quotas[i] = base
		if i < remainder {
			quotas[i]++
		}
	}

	return quotas, nil
}
