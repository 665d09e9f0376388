package prompts

import (
	"errors"
	"testing"

	"github.com/pario-ai/promptlab/pkg/models"
)

func TestAssemble(t *testing.T) {
	tmpl := &models.PromptTemplate{ID: "t1", Body: "Hello {x} and {y}"}

	out, err := Assemble(tmpl, map[string]string{"x": "Ann", "y": "Bob", "z": "unused"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "Hello Ann and Bob" {
		t.Errorf("unexpected output %q", out)
	}

	again, err := Assemble(tmpl, map[string]string{"x": "Ann", "y": "Bob", "z": "unused"})
	if err != nil {
		t.Fatal(err)
	}
	if again != out {
		t.Errorf("assemble is not deterministic: %q vs %q", out, again)
	}
}

func TestAssembleMissingBinding(t *testing.T) {
	tmpl := &models.PromptTemplate{ID: "t1", Body: "Hello {x} and {y}"}

	_, err := Assemble(tmpl, map[string]string{"x": "Ann"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestAssembleNoPlaceholders(t *testing.T) {
	tmpl := &models.PromptTemplate{ID: "t1", Body: "Summarize the document."}

	out, err := Assemble(tmpl, nil)
	if err != nil {
		t.Fatal(err)
	}
	if out != tmpl.Body {
		t.Errorf("expected body unchanged, got %q", out)
	}
}
