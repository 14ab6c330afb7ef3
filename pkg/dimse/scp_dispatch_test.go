package dimse

import "testing"

type stubHandler struct{ id string }

func (stubHandler) HandleSCP(hctx *HandlerContext, msg *DIMSEMessage) error { return nil }

func TestServiceClassRegistryRegisterLookup(t *testing.T) {
	r := NewServiceClassRegistry()
	h := stubHandler{id: "a"}
	r.Register(VerificationSOPClass, h)

	got, ok := r.Lookup(VerificationSOPClass)
	if !ok {
		t.Fatalf("expected handler to be found")
	}
	if got != ServiceClassHandler(h) {
		t.Fatalf("expected the registered handler instance back")
	}

	if _, ok := r.Lookup(StudyRootFindSOPClass); ok {
		t.Fatalf("expected no handler registered for an unrelated abstract syntax")
	}
}

func TestServiceClassRegistryUnregister(t *testing.T) {
	r := NewServiceClassRegistry()
	r.Register(VerificationSOPClass, stubHandler{})
	r.Unregister(VerificationSOPClass)

	if _, ok := r.Lookup(VerificationSOPClass); ok {
		t.Fatalf("expected handler to be gone after Unregister")
	}
}

func TestServiceClassRegistryAbstractSyntaxes(t *testing.T) {
	r := NewServiceClassRegistry()
	r.Register(VerificationSOPClass, stubHandler{})
	r.Register(StudyRootFindSOPClass, stubHandler{})

	syntaxes := r.AbstractSyntaxes()
	if len(syntaxes) != 2 {
		t.Fatalf("expected 2 registered abstract syntaxes, got %d", len(syntaxes))
	}
}
