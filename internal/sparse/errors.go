package sparse

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedFormat means an operation was invoked on a format it
	// does not support. Wrapped by FormatError, which names the format.
	ErrUnsupportedFormat = errors.New("unsupported sparse format")

	// ErrShapeMismatch means operand shapes are incompatible. Reported
	// before any device work is issued.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrStaleView means a column-slice view was used after its base
	// matrix reallocated the shared buffer.
	ErrStaleView = errors.New("column slice view invalidated by base reallocation")

	// ErrNotResizable means a resize or reallocation was attempted on a
	// matrix that does not own its buffer.
	ErrNotResizable = errors.New("matrix does not own its buffer")

	// ErrNzCountMismatch means the cached non-zero count disagrees with a
	// verified device fetch: some mutation path missed an invalidation.
	ErrNzCountMismatch = errors.New("cached non-zero count disagrees with device state")
)

// FormatError reports an operation applied to a format it does not support.
type FormatError struct {
	Op     string
	Format Format
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: not supported for %s format", e.Op, e.Format)
}

func (e *FormatError) Unwrap() error { return ErrUnsupportedFormat }

func unsupported(op string, f Format) error {
	return &FormatError{Op: op, Format: f}
}

func shapeMismatch(op string, detail string, args ...any) error {
	return fmt.Errorf("%s: %w: %s", op, ErrShapeMismatch, fmt.Sprintf(detail, args...))
}
