package prompt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedTemplate indicates invalid placeholder syntax in the raw text.
	ErrMalformedTemplate = errors.New("malformed template")

	// ErrUnknownVariable indicates a partial binding for a name the template does not declare.
	ErrUnknownVariable = errors.New("unknown template variable")

	// ErrMissingVariable indicates a render was attempted with unbound placeholders.
	ErrMissingVariable = errors.New("missing template variable")

	// ErrDuplicateSlot indicates the same slot name was composed twice.
	ErrDuplicateSlot = errors.New("duplicate slot")

	// ErrUnknownSlot indicates a slot name the final template does not declare.
	ErrUnknownSlot = errors.New("unknown slot")
)

// MissingVariableError reports every unresolved placeholder of a failed
// render, not just the first. Names are qualified with their slot path when
// the failure happened inside a composite (e.g. "character.mood") so the
// caller can pinpoint the unbound leaf.
type MissingVariableError struct {
	// Template is the name of the template that failed to render, when known.
	Template string

	// Names lists all unresolved placeholder names, sorted.
	Names []string
}

func (e *MissingVariableError) Error() string {
	return fmt.Sprintf("missing template variable(s): %s", strings.Join(e.Names, ", "))
}

// Unwrap allows errors.Is(err, ErrMissingVariable).
func (e *MissingVariableError) Unwrap() error {
	return ErrMissingVariable
}
