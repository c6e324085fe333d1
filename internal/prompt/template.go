// Package prompt implements partially bindable text templates and their
// composition into larger prompts.
//
// A Template is an immutable value: Partial and Render never mutate the
// receiver, so a package-level template can be shared across concurrent
// requests. Placeholders use {name} syntax where name is alphanumeric plus
// underscore. Binding happens in stages: Partial fixes a subset of variables
// ahead of time (literals or per-render Suppliers), Render supplies the rest
// and produces the finished string.
//
// Composition nests child templates into named slots of a final template;
// see Compose. All leaves resolve against one flat input namespace, with
// slot-qualified keys ("slot.var") taking precedence over bare keys so
// callers can disambiguate collisions between unrelated children.
package prompt

import (
	"fmt"
	"sort"
	"strings"
)

// Supplier produces a binding value at render time. It is re-invoked on
// every render, so a supplier can return a fresh value per call (e.g. a
// randomly picked mood).
type Supplier func() string

// Renderer is the single polymorphic rendering operation shared by leaf
// templates, composites and few-shot templates.
type Renderer interface {
	// Render produces the finished string. Extra keys in inputs are
	// ignored; the whole composite tree shares one flat namespace.
	Render(inputs map[string]string) (string, error)

	// Inputs returns the declared placeholder names still unbound, sorted.
	Inputs() []string
}

// Template is a text blueprint with named holes.
// The zero value is not useful; construct with New.
type Template struct {
	name     string
	raw      string
	declared map[string]struct{}
	literals map[string]string
	supplied map[string]Supplier
}

// New parses raw for {identifier} placeholders and returns an immutable
// Template. It fails with ErrMalformedTemplate when a placeholder name is
// empty, contains illegal characters, or a brace is left unclosed.
func New(raw string) (*Template, error) {
	declared, err := parsePlaceholders(raw)
	if err != nil {
		return nil, err
	}
	return &Template{
		raw:      raw,
		declared: declared,
		literals: map[string]string{},
		supplied: map[string]Supplier{},
	}, nil
}

// MustNew is New for package-level templates with known-good text.
// It panics on parse failure.
func MustNew(raw string) *Template {
	t, err := New(raw)
	if err != nil {
		panic(err)
	}
	return t
}

// Named attaches a display name used in error messages. Returns the
// receiver for chaining at construction time; the name is the only field
// it sets, so sharing semantics are unaffected.
func (t *Template) Named(name string) *Template {
	t.name = name
	return t
}

// Raw returns the literal template text.
func (t *Template) Raw() string { return t.raw }

// Inputs returns the declared placeholders not yet bound via Partial, sorted.
func (t *Template) Inputs() []string {
	names := make([]string, 0, len(t.declared))
	for name := range t.declared {
		if _, ok := t.literals[name]; ok {
			continue
		}
		if _, ok := t.supplied[name]; ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declares reports whether the template declares the given placeholder.
func (t *Template) Declares(name string) bool {
	_, ok := t.declared[name]
	return ok
}

// Partial returns a new Template with the given bindings fixed. The
// original is unchanged. Values must be string or Supplier. Binding a name
// the template does not declare fails with ErrUnknownVariable; catching
// caller typos early beats silently ignoring them.
func (t *Template) Partial(bindings map[string]any) (*Template, error) {
	next := t.clone()
	for name, value := range bindings {
		if _, ok := t.declared[name]; !ok {
			return nil, fmt.Errorf("%w: %q not declared by template", ErrUnknownVariable, name)
		}
		switch v := value.(type) {
		case string:
			next.literals[name] = v
			delete(next.supplied, name)
		case Supplier:
			next.supplied[name] = v
			delete(next.literals, name)
		case func() string:
			next.supplied[name] = v
			delete(next.literals, name)
		default:
			return nil, fmt.Errorf("%w: %q bound to unsupported type %T", ErrUnknownVariable, name, value)
		}
	}
	return next, nil
}

// Render substitutes every placeholder and returns the finished string.
// Call-time inputs take precedence over Partial bindings. Suppliers are
// invoked now, once per render. If any declared placeholder remains
// unbound, Render fails with a MissingVariableError listing all of them.
func (t *Template) Render(inputs map[string]string) (string, error) {
	resolved := make(map[string]string, len(t.declared))
	for name, value := range t.literals {
		resolved[name] = value
	}
	for name, supply := range t.supplied {
		resolved[name] = supply()
	}
	for name, value := range inputs {
		if _, ok := t.declared[name]; ok {
			resolved[name] = value
		}
	}

	var missing []string
	for name := range t.declared {
		if _, ok := resolved[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return "", &MissingVariableError{Template: t.name, Names: missing}
	}

	return substitute(t.raw, resolved), nil
}

func (t *Template) clone() *Template {
	next := &Template{
		name:     t.name,
		raw:      t.raw,
		declared: t.declared, // immutable after parse, safe to share
		literals: make(map[string]string, len(t.literals)),
		supplied: make(map[string]Supplier, len(t.supplied)),
	}
	for k, v := range t.literals {
		next.literals[k] = v
	}
	for k, v := range t.supplied {
		next.supplied[k] = v
	}
	return next
}

// parsePlaceholders scans raw and returns the set of placeholder names.
func parsePlaceholders(raw string) (map[string]struct{}, error) {
	declared := map[string]struct{}{}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			continue
		}
		end := strings.IndexByte(raw[i:], '}')
		if end < 0 {
			return nil, fmt.Errorf("%w: unclosed placeholder at offset %d", ErrMalformedTemplate, i)
		}
		name := raw[i+1 : i+end]
		if name == "" {
			return nil, fmt.Errorf("%w: empty placeholder at offset %d", ErrMalformedTemplate, i)
		}
		if !validIdentifier(name) {
			return nil, fmt.Errorf("%w: illegal placeholder name %q", ErrMalformedTemplate, name)
		}
		declared[name] = struct{}{}
		i += end
	}
	return declared, nil
}

func validIdentifier(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_':
		default:
			return false
		}
	}
	return true
}

// substitute replaces every {name} with its resolved value. All names are
// guaranteed resolved by the caller.
func substitute(raw string, resolved map[string]string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '{' {
			b.WriteByte(raw[i])
			continue
		}
		end := strings.IndexByte(raw[i:], '}')
		name := raw[i+1 : i+end]
		b.WriteString(resolved[name])
		i += end
	}
	return b.String()
}
