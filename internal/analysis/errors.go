package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackzampolin/papercheck/internal/providers"
)

var (
	// ErrServiceUnavailable means no oracle client is configured or the
	// oracle could not be reached.
	ErrServiceUnavailable = errors.New("analysis service unavailable")

	// ErrOracle means the oracle answered a call with an error, such as a
	// rejected request. It is neither a timeout nor an outage.
	ErrOracle = errors.New("oracle call failed")

	// ErrTimeout means the oracle did not answer within the hard timeout on
	// every allowed attempt.
	ErrTimeout = errors.New("analysis timed out")

	// ErrStructuralParse means the oracle output could not be read as the
	// expected JSON shape on every allowed attempt.
	ErrStructuralParse = errors.New("oracle output could not be parsed")

	// ErrSequenceGap marks missing numeric item numbers. It drives the repair
	// attempt and is never returned from Analyze.
	ErrSequenceGap = errors.New("item numbers have a gap")

	// ErrInvalidRequest means the request itself cannot be analyzed.
	ErrInvalidRequest = errors.New("invalid analysis request")
)

// callError maps a provider failure onto the analysis taxonomy. parent is the
// caller's context; a cancellation there is passed through unchanged.
func callError(parent context.Context, stage string, err error) error {
	switch {
	case parent.Err() != nil:
		return fmt.Errorf("%s: %w", stage, parent.Err())
	case errors.Is(err, providers.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %v", stage, ErrTimeout, err)
	case errors.Is(err, providers.ErrUnavailable), errors.Is(err, providers.ErrNotConfigured):
		return fmt.Errorf("%s: %w: %v", stage, ErrServiceUnavailable, err)
	default:
		return fmt.Errorf("%s: %w: %v", stage, ErrOracle, err)
	}
}

// retryable reports whether another identical attempt may succeed.
func retryable(err error) bool {
	return errors.Is(err, ErrStructuralParse) || errors.Is(err, ErrTimeout)
}
