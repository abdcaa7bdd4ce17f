package errors

import (
	"fmt"
	"strings"
)

// Composite aggregates the failures of N independent sub-operations into a
// single error. Used by batch processing where partial success is normal and
// sibling failures must not block each other.
type Composite struct {
	Message string
	Errs    []error
}

func (c *Composite) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d of batch failed", c.Message, len(c.Errs))
	for _, err := range c.Errs {
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap exposes the sub-failures to errors.Is/As.
func (c *Composite) Unwrap() []error {
	return c.Errs
}

// NewComposite builds a Composite from the collected sub-failures.
// Returns nil when errs is empty, so callers can return it unconditionally.
func NewComposite(message string, errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &Composite{Message: message, Errs: errs}
}
