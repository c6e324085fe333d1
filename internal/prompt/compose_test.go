package prompt

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestCompositeSubstitution(t *testing.T) {
	mood := MustNew("grumpy")
	final := MustNew("Today I am {mood}.")

	comp, err := Compose(final, Slot{Name: "mood", Child: mood})
	if err != nil {
		t.Fatalf("Compose returned error: %v", err)
	}

	got, err := comp.Render(nil)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if want := "Today I am grumpy."; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestComposeDuplicateSlot(t *testing.T) {
	final := MustNew("{a}{b}")
	child := MustNew("x")

	_, err := Compose(final,
		Slot{Name: "a", Child: child},
		Slot{Name: "a", Child: child},
	)
	if !errors.Is(err, ErrDuplicateSlot) {
		t.Errorf("Compose error = %v, want ErrDuplicateSlot", err)
	}
}

func TestComposeUnknownSlot(t *testing.T) {
	final := MustNew("{a}")

	_, err := Compose(final, Slot{Name: "nope", Child: MustNew("x")})
	if !errors.Is(err, ErrUnknownSlot) {
		t.Errorf("Compose error = %v, want ErrUnknownSlot", err)
	}
}

func TestCompositeFlatNamespace(t *testing.T) {
	// Children consume keys from the shared namespace, like the final
	// template's own leftover placeholders.
	child := MustNew("a {animal}")
	final := MustNew("{subject} walked into a {place}.")

	comp, err := Compose(final, Slot{Name: "subject", Child: child})
	if err != nil {
		t.Fatal(err)
	}

	got, err := comp.Render(map[string]string{"animal": "horse", "place": "bar"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "a horse walked into a bar."; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestCompositeSlotQualifiedKeysWin(t *testing.T) {
	left := MustNew("{word}")
	right := MustNew("{word}")
	final := MustNew("{left}/{right}")

	comp, err := Compose(final,
		Slot{Name: "left", Child: left},
		Slot{Name: "right", Child: right},
	)
	if err != nil {
		t.Fatal(err)
	}

	got, err := comp.Render(map[string]string{
		"word":       "shared",
		"right.word": "scoped",
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := "shared/scoped"; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}
}

func TestCompositeMissingPathQualified(t *testing.T) {
	character := MustNew("feeling {mood}")
	final := MustNew("{character}")

	comp, err := Compose(final, Slot{Name: "character", Child: character})
	if err != nil {
		t.Fatal(err)
	}

	_, err = comp.Render(nil)
	var missing *MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("Render error = %v, want *MissingVariableError", err)
	}
	if want := []string{"character.mood"}; !reflect.DeepEqual(missing.Names, want) {
		t.Errorf("missing names = %v, want %v", missing.Names, want)
	}
}

func TestCompositeNested(t *testing.T) {
	inner := MustNew("very {adjective}")
	middle, err := Compose(MustNew("a {detail} dog"), Slot{Name: "detail", Child: inner})
	if err != nil {
		t.Fatal(err)
	}
	outer, err := Compose(MustNew("I saw {subject}."), Slot{Name: "subject", Child: middle})
	if err != nil {
		t.Fatal(err)
	}

	got, err := outer.Render(map[string]string{"adjective": "good"})
	if err != nil {
		t.Fatal(err)
	}
	if want := "I saw a very good dog."; got != want {
		t.Errorf("Render = %q, want %q", got, want)
	}

	// Missing leaves report the full path through both composites.
	_, err = outer.Render(nil)
	var missing *MissingVariableError
	if !errors.As(err, &missing) {
		t.Fatalf("Render error = %v, want *MissingVariableError", err)
	}
	if want := []string{"subject.detail.adjective"}; !reflect.DeepEqual(missing.Names, want) {
		t.Errorf("missing names = %v, want %v", missing.Names, want)
	}
}

func TestCompositeInputsUnion(t *testing.T) {
	task := MustNew("Tell a joke about {topic}")
	style := MustNew("in the style of {comedian}")
	final := MustNew("{task} {style} {extra}")

	comp, err := Compose(final,
		Slot{Name: "task", Child: task},
		Slot{Name: "style", Child: style},
	)
	if err != nil {
		t.Fatal(err)
	}

	want := []string{"comedian", "extra", "topic"}
	if got := comp.Inputs(); !reflect.DeepEqual(got, want) {
		t.Errorf("Inputs() = %v, want %v", got, want)
	}
}

func TestFewShotAsSlotChild(t *testing.T) {
	example := MustNew("Q: {question}\nA: {answer}")
	guide := &FewShot{
		Prefix:  "Examples:",
		Suffix:  "Now answer in the same style.",
		Example: example,
		Examples: []map[string]string{
			{"question": "2+2?", "answer": "4"},
			{"question": "3+3?", "answer": "6"},
		},
	}

	final := MustNew("{guide}\nQ: {question}")
	comp, err := Compose(final, Slot{Name: "guide", Child: guide})
	if err != nil {
		t.Fatal(err)
	}

	got, err := comp.Render(map[string]string{"question": "4+4?"})
	if err != nil {
		t.Fatal(err)
	}

	for _, fragment := range []string{"Examples:", "A: 4", "A: 6", "Now answer in the same style.", "Q: 4+4?"} {
		if !strings.Contains(got, fragment) {
			t.Errorf("rendered prompt missing %q:\n%s", fragment, got)
		}
	}
}
