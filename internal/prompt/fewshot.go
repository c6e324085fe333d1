package prompt

import (
	"strings"
)

// FewShot renders a fixed list of examples through one example template,
// wrapped in a prefix and suffix. It implements Renderer so it can fill a
// slot of a Composite (e.g. a joke guide composed into a persona prompt).
//
// Each example map must fully bind the example template; examples do not
// read from the shared render inputs.
type FewShot struct {
	// Prefix and Suffix are emitted verbatim around the rendered examples.
	Prefix string
	Suffix string

	// Example is the per-example template.
	Example *Template

	// Examples holds one binding map per example, rendered in order.
	Examples []map[string]string

	// Separator joins prefix, examples and suffix. Empty means "\n".
	Separator string
}

// Inputs returns nil: a FewShot is fully self-contained.
func (f *FewShot) Inputs() []string { return nil }

// Render renders every example and joins the parts. A missing variable in
// any example map aborts the render.
func (f *FewShot) Render(map[string]string) (string, error) {
	sep := f.Separator
	if sep == "" {
		sep = "\n"
	}

	parts := make([]string, 0, len(f.Examples)+2)
	if f.Prefix != "" {
		parts = append(parts, f.Prefix)
	}
	for _, example := range f.Examples {
		text, err := f.Example.Render(example)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	if f.Suffix != "" {
		parts = append(parts, f.Suffix)
	}

	return strings.Join(parts, sep), nil
}
