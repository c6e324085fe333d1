package prompt

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Slot assigns a child renderer to a named placeholder of a final template.
type Slot struct {
	Name  string
	Child Renderer
}

// Composite nests child templates into slots of a final template. Children
// render first (recursively, since a child may itself be a Composite), then the
// final template renders with the child strings substituted for their slot
// names. Like Template, a Composite is immutable and safe to share.
type Composite struct {
	final *Template
	slots []Slot
}

// Compose builds a Composite. It fails with ErrDuplicateSlot when the same
// slot name appears twice and ErrUnknownSlot when a slot name is not among
// the final template's declared inputs.
func Compose(final *Template, slots ...Slot) (*Composite, error) {
	seen := map[string]struct{}{}
	for _, slot := range slots {
		if _, dup := seen[slot.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateSlot, slot.Name)
		}
		seen[slot.Name] = struct{}{}
		if !final.Declares(slot.Name) {
			return nil, fmt.Errorf("%w: final template does not declare %q", ErrUnknownSlot, slot.Name)
		}
		if slot.Child == nil {
			return nil, fmt.Errorf("%w: slot %q has no child", ErrUnknownSlot, slot.Name)
		}
	}
	return &Composite{final: final, slots: slots}, nil
}

// MustCompose is Compose for package-level composites with known-good slots.
func MustCompose(final *Template, slots ...Slot) *Composite {
	c, err := Compose(final, slots...)
	if err != nil {
		panic(err)
	}
	return c
}

// Inputs returns the union of all unbound child inputs plus the final
// template's own unfilled placeholders, sorted and deduplicated.
func (c *Composite) Inputs() []string {
	set := map[string]struct{}{}
	filled := map[string]struct{}{}
	for _, slot := range c.slots {
		filled[slot.Name] = struct{}{}
		for _, name := range slot.Child.Inputs() {
			set[name] = struct{}{}
		}
	}
	for _, name := range c.final.Inputs() {
		if _, ok := filled[name]; !ok {
			set[name] = struct{}{}
		}
	}
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render resolves every slot child against the shared flat input map, then
// renders the final template. For a slot named s, an input key "s.var"
// overrides a bare "var" for that child only. A child's MissingVariableError
// propagates with the slot name prefixed to each variable so the unbound
// leaf is identifiable from the top.
func (c *Composite) Render(inputs map[string]string) (string, error) {
	merged := make(map[string]string, len(inputs)+len(c.slots))
	for k, v := range inputs {
		merged[k] = v
	}

	for _, slot := range c.slots {
		text, err := slot.Child.Render(scopedInputs(inputs, slot.Name))
		if err != nil {
			return "", qualifyError(err, slot.Name)
		}
		merged[slot.Name] = text
	}

	out, err := c.final.Render(merged)
	if err != nil {
		return "", err
	}
	return out, nil
}

// scopedInputs builds the input view a slot child sees: the flat map, with
// any "slot.var" key stripped of its prefix and winning over a bare "var".
func scopedInputs(inputs map[string]string, slot string) map[string]string {
	prefix := slot + "."
	scoped := make(map[string]string, len(inputs))
	for k, v := range inputs {
		if !strings.Contains(k, ".") {
			scoped[k] = v
		}
	}
	for k, v := range inputs {
		if rest, ok := strings.CutPrefix(k, prefix); ok && rest != "" {
			scoped[rest] = v
		}
	}
	return scoped
}

// qualifyError prefixes slot names onto missing-variable paths so nested
// failures read like "character.mood".
func qualifyError(err error, slot string) error {
	var missing *MissingVariableError
	if errors.As(err, &missing) {
		qualified := make([]string, len(missing.Names))
		for i, name := range missing.Names {
			qualified[i] = slot + "." + name
		}
		return &MissingVariableError{Template: missing.Template, Names: qualified}
	}
	return fmt.Errorf("slot %q: %w", slot, err)
}
