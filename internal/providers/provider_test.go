package providers

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseKind(t *testing.T) {
	cases := map[string]Kind{
		"gemini":   KindGemini,
		" OpenAI ": KindOpenAI,
		"CLAUDE":   KindClaude,
	}
	for raw, want := range cases {
		got, errParse := ParseKind(raw)
		if errParse != nil {
			t.Fatalf("ParseKind(%q): %v", raw, errParse)
		}
		if got != want {
			t.Fatalf("ParseKind(%q) = %q, want %q", raw, got, want)
		}
	}

	if _, errParse := ParseKind("mistral"); !errors.Is(errParse, ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v", errParse)
	}
}

func TestNewRequiresCredential(t *testing.T) {
	if _, errNew := New(KindGemini, "  ", "gemini-2.0-flash"); !errors.Is(errNew, ErrEmptyCredential) {
		t.Fatalf("expected ErrEmptyCredential, got %v", errNew)
	}
}

func TestNewBuildsEachKind(t *testing.T) {
	for _, kind := range AllKinds() {
		adapter, errNew := New(kind, "test-key", "some-model")
		if errNew != nil {
			t.Fatalf("new %s adapter: %v", kind, errNew)
		}
		if adapter.Kind() != kind {
			t.Fatalf("adapter kind %q, want %q", adapter.Kind(), kind)
		}
		if adapter.Model() != "some-model" {
			t.Fatalf("adapter model %q, want %q", adapter.Model(), "some-model")
		}
	}
}

func TestModelAttempts(t *testing.T) {
	chain := []string{"model-b", "model-c"}

	got := modelAttempts("model-a", chain)
	want := []string{"model-a", "model-b", "model-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("modelAttempts = %v, want %v", got, want)
	}

	// A configured model inside the chain must not be attempted twice.
	got = modelAttempts("model-b", chain)
	want = []string{"model-b", "model-c"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("modelAttempts dedup = %v, want %v", got, want)
	}

	got = modelAttempts("  ", chain)
	if !reflect.DeepEqual(got, chain) {
		t.Fatalf("modelAttempts empty configured = %v, want %v", got, chain)
	}
}

func TestFallbackModelIsFastModel(t *testing.T) {
	for _, kind := range AllKinds() {
		fast, _ := DefaultModels(kind)
		if FallbackModel(kind) != fast {
			t.Fatalf("FallbackModel(%s) = %q, want %q", kind, FallbackModel(kind), fast)
		}
	}
}
