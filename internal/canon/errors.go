package canon

import (
	"errors"
	"fmt"

	"github.com/roach88/seanode/internal/ir"
)

// UnsupportedInputError reports operands that violate a rule's
// preconditions, such as a non-integer stamp or mismatched widths. It is a
// compiler-internal fault, never recovered locally.
type UnsupportedInputError struct {
	Op     ir.Op
	Node   *ir.Node // the node being canonicalized, nil for a fresh candidate
	Reason string
}

func (e *UnsupportedInputError) Error() string {
	if e.Node != nil {
		return fmt.Sprintf("canon: unsupported input to %s %s: %s", e.Op, e.Node, e.Reason)
	}
	return fmt.Sprintf("canon: unsupported input to %s: %s", e.Op, e.Reason)
}

// IsUnsupportedInput reports whether err is or wraps an UnsupportedInputError.
func IsUnsupportedInput(err error) bool {
	var e *UnsupportedInputError
	return errors.As(err, &e)
}
