package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/conveyor/job"
)

func testNow() time.Time {
	return time.Now().UTC()
}

type greeting struct {
	Name string `json:"name"`
}

func TestRegisterDefinitionDecodesPayload(t *testing.T) {
	t.Parallel()

	r := job.NewRegistry()

	var got greeting
	def := job.NewDefinition("greet", func(_ context.Context, g greeting) error {
		got = g
		return nil
	})
	job.RegisterDefinition(r, def)

	h, ok := r.Get("greet")
	if !ok {
		t.Fatal("handler not found after registration")
	}

	if err := h(context.Background(), []byte(`{"name":"ada"}`)); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if got.Name != "ada" {
		t.Fatalf("payload decoded to %+v", got)
	}
}

func TestRegisterDefinitionEmptyPayload(t *testing.T) {
	t.Parallel()

	r := job.NewRegistry()
	called := false
	job.RegisterDefinition(r, job.NewDefinition("noop", func(_ context.Context, _ struct{}) error {
		called = true
		return nil
	}))

	h, _ := r.Get("noop")
	if err := h(context.Background(), nil); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if !called {
		t.Fatal("handler not invoked for empty payload")
	}
}

func TestRegisterDefinitionBadPayload(t *testing.T) {
	t.Parallel()

	r := job.NewRegistry()
	job.RegisterDefinition(r, job.NewDefinition("typed", func(_ context.Context, _ greeting) error {
		t.Fatal("handler must not run on decode failure")
		return nil
	}))

	h, _ := r.Get("typed")
	if err := h(context.Background(), []byte(`{not json`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRegistryGetUnknown(t *testing.T) {
	t.Parallel()

	r := job.NewRegistry()
	if _, ok := r.Get("missing"); ok {
		t.Fatal("Get returned a handler for an unregistered name")
	}
}

func TestRegistryNames(t *testing.T) {
	t.Parallel()

	r := job.NewRegistry()
	r.RegisterRaw("a", func(context.Context, []byte) error { return nil })
	r.RegisterRaw("b", func(context.Context, []byte) error { return nil })

	names := r.Names()
	if len(names) != 2 {
		t.Fatalf("Names() = %v, want 2 entries", names)
	}
}
